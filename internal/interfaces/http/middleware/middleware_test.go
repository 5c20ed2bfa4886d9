package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"keygate.backend/internal/domain/entities"
	"keygate.backend/pkg/logger"
	"keygate.backend/pkg/redis"
)

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		fromCtx, _ := c.Request.Context().Value(logger.RequestIDKey).(string)
		c.String(http.StatusOK, fromCtx)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(RequestIDHeader)
	require.NotEmpty(t, generated)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-42", w.Body.String())
}

func TestLoggerMiddleware_RedactsToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(LoggerMiddleware("/health"))
	var seen string
	r.GET("/ws", func(c *gin.Context) {
		seen = redactToken(c)
		c.Status(http.StatusOK)
	})
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?token=secret&x=1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, seen, "secret")
	assert.Contains(t, seen, "x=1")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func setupRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	redis.SetClient(client)
	t.Cleanup(func() {
		redis.SetClient(nil)
		_ = client.Close()
	})
	return mr
}

func idempotentRouter(calls *int32, status int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	actor := entities.Actor{ID: uuid.MustParse("0190b5a8-0000-7000-8000-000000000001"), Role: entities.UserRoleAdmin}
	r.POST("/keys", func(c *gin.Context) { SetActor(c, actor) }, IdempotencyMiddleware(RedisIdempotencyStore()), func(c *gin.Context) {
		n := atomic.AddInt32(calls, 1)
		c.JSON(status, gin.H{"call": n})
	})
	return r
}

func post(r *gin.Engine, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/keys", nil)
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	setupRedis(t)
	var calls int32
	r := idempotentRouter(&calls, http.StatusCreated)

	first := post(r, "abc")
	require.Equal(t, http.StatusCreated, first.Code)

	second := post(r, "abc")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Hit"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	post(r, "other")
	post(r, "")
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestIdempotency_InProgressConflict(t *testing.T) {
	mr := setupRedis(t)
	var calls int32
	r := idempotentRouter(&calls, http.StatusCreated)
	require.NoError(t, mr.Set("idempotency:0190b5a8-0000-7000-8000-000000000001:/keys:busy", processingMarker))

	w := post(r, "busy")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestIdempotency_FailedRequestReleasesKey(t *testing.T) {
	mr := setupRedis(t)
	var calls int32
	r := idempotentRouter(&calls, http.StatusBadRequest)

	post(r, "retry")
	post(r, "retry")
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	assert.Empty(t, mr.Keys())
}

func TestIdempotency_RedisUnavailablePassesThrough(t *testing.T) {
	redis.SetClient(nil)
	var calls int32
	r := idempotentRouter(&calls, http.StatusCreated)

	post(r, "abc")
	post(r, "abc")
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}
