package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"keygate.backend/internal/domain/entities"
	domainerrors "keygate.backend/internal/domain/errors"
	"keygate.backend/pkg/jwt"
)

func newTokenPair(t *testing.T, svc *jwt.JWTService, id uuid.UUID, role entities.UserRole) *jwt.TokenPair {
	t.Helper()
	pair, err := svc.GenerateTokenPair(id, "alice", string(role))
	require.NoError(t, err)
	return pair
}

func actorEcho(c *gin.Context) {
	actor, ok := GetActor(c)
	if !ok {
		c.Status(http.StatusTeapot)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": actor.ID, "username": actor.Username, "role": actor.Role})
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := jwt.NewJWTService("secret", time.Hour, 24*time.Hour)
	id := uuid.New()
	pair := newTokenPair(t, svc, id, entities.UserRoleModerator)

	r := gin.New()
	r.GET("/me", AuthMiddleware(svc), actorEcho)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer garbage", http.StatusUnauthorized},
		{"refresh token rejected", "Bearer " + pair.RefreshToken, http.StatusUnauthorized},
		{"valid", "Bearer " + pair.AccessToken, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set(AuthorizationHeader, tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(AuthorizationHeader, "Bearer "+pair.AccessToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), id.String())
	assert.Contains(t, w.Body.String(), `"role":"moderator"`)
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := jwt.NewJWTService("secret", -time.Minute, time.Hour)
	pair := newTokenPair(t, svc, uuid.New(), entities.UserRoleUser)

	r := gin.New()
	r.GET("/me", AuthMiddleware(svc), actorEcho)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(AuthorizationHeader, "Bearer "+pair.AccessToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Token has expired")
}

func TestWebsocketAuthMiddleware_QueryToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := jwt.NewJWTService("secret", time.Hour, time.Hour)
	pair := newTokenPair(t, svc, uuid.New(), entities.UserRoleAdmin)

	r := gin.New()
	r.GET("/ws", WebsocketAuthMiddleware(svc), actorEcho)
	r.GET("/plain", AuthMiddleware(svc), actorEcho)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?token="+pair.AccessToken, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/plain?token="+pair.AccessToken, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	guard := RequireRole(entities.UserRoleAdmin, entities.UserRoleModerator)
	r.GET("/none", guard, actorEcho)
	r.GET("/user", func(c *gin.Context) {
		SetActor(c, entities.Actor{ID: uuid.New(), Role: entities.UserRoleUser})
	}, guard, actorEcho)
	r.GET("/mod", func(c *gin.Context) {
		SetActor(c, entities.Actor{ID: uuid.New(), Role: entities.UserRoleModerator})
	}, guard, actorEcho)

	for path, status := range map[string]int{
		"/none": http.StatusUnauthorized,
		"/user": http.StatusForbidden,
		"/mod":  http.StatusOK,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, status, w.Code, path)
	}
}

type accountTable map[uuid.UUID]*entities.User

func (a accountTable) CurrentActor(_ context.Context, actor entities.Actor) (entities.Actor, error) {
	user, ok := a[actor.ID]
	if !ok {
		return entities.Actor{}, domainerrors.ErrUnauthorized
	}
	if user.IsBanned {
		return entities.Actor{}, domainerrors.ErrUserBanned
	}
	return entities.Actor{ID: user.ID, Username: user.Username, Role: user.Role}, nil
}

func TestAccountCheckMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := jwt.NewJWTService("secret", time.Hour, time.Hour)
	active := &entities.User{ID: uuid.New(), Username: "alice", Role: entities.UserRoleUser}
	banned := &entities.User{ID: uuid.New(), Username: "mallory", Role: entities.UserRoleModerator, IsBanned: true}
	accounts := accountTable{active.ID: active, banned.ID: banned}

	r := gin.New()
	api := r.Group("/api", AuthMiddleware(svc), AccountCheckMiddleware(accounts, false))
	api.GET("/read", actorEcho)
	api.POST("/write", actorEcho)
	r.GET("/ws", WebsocketAuthMiddleware(svc), AccountCheckMiddleware(accounts, true), actorEcho)

	// alice was promoted after her token was issued
	promotedPair := newTokenPair(t, svc, active.ID, entities.UserRoleUser)
	active.Role = entities.UserRoleModerator
	bannedPair := newTokenPair(t, svc, banned.ID, entities.UserRoleModerator)
	ghostPair := newTokenPair(t, svc, uuid.New(), entities.UserRoleUser)

	serve := func(method, path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set(AuthorizationHeader, "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := serve(http.MethodPost, "/api/write", promotedPair.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"moderator"`)

	w = serve(http.MethodGet, "/api/read", bannedPair.AccessToken)
	assert.Equal(t, http.StatusOK, w.Code, "reads trust the token")

	w = serve(http.MethodPost, "/api/write", bannedPair.AccessToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), domainerrors.CodeUserBanned)

	w = serve(http.MethodGet, "/ws", bannedPair.AccessToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(http.MethodGet, "/ws", ghostPair.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(http.MethodGet, "/ws", promotedPair.AccessToken)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAccountCheckMiddleware_NilResolverPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/write", func(c *gin.Context) {
		SetActor(c, entities.Actor{ID: uuid.New(), Role: entities.UserRoleUser})
	}, AccountCheckMiddleware(nil, true), actorEcho)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/write", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
