package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"keygate.backend/internal/domain/entities"
	domainerrors "keygate.backend/internal/domain/errors"
	"keygate.backend/internal/interfaces/http/response"
	"keygate.backend/pkg/jwt"
	"keygate.backend/pkg/logger"
)

const (
	// AuthorizationHeader is the header key for authorization
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer tokens
	BearerPrefix = "Bearer "
	// TokenQueryParam carries the access token for websocket upgrades
	TokenQueryParam = "token"
	// ActorKey is the gin context key for the authenticated actor
	ActorKey = "actor"
)

// TokenValidator validates access tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*jwt.Claims, error)
}

// BearerToken extracts the access token from the Authorization header.
// When allowQuery is set the token query parameter is accepted as a fallback.
func BearerToken(c *gin.Context, allowQuery bool) (string, error) {
	authHeader := c.GetHeader(AuthorizationHeader)
	if authHeader != "" {
		if !strings.HasPrefix(authHeader, BearerPrefix) {
			return "", errors.New("Invalid authorization format. Use: Bearer <token>")
		}
		return strings.TrimPrefix(authHeader, BearerPrefix), nil
	}
	if allowQuery {
		if token := c.Query(TokenQueryParam); token != "" {
			return token, nil
		}
	}
	return "", errors.New("Authorization header is required")
}

// Authenticate resolves the actor carried by a token.
func Authenticate(validator TokenValidator, token string) (entities.Actor, error) {
	claims, err := validator.ValidateToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			return entities.Actor{}, domainerrors.NewAppError(http.StatusUnauthorized, domainerrors.CodeUnauthorized, "Token has expired", domainerrors.ErrTokenExpired)
		}
		return entities.Actor{}, domainerrors.Unauthorized("Invalid token")
	}
	return entities.Actor{
		ID:       claims.UserID,
		Username: claims.Username,
		Role:     entities.UserRole(claims.Role),
	}, nil
}

// AuthMiddleware requires a valid access token and stores the actor in the context.
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return authenticate(validator, false)
}

// WebsocketAuthMiddleware is AuthMiddleware that also accepts ?token=, since
// browsers cannot set headers on websocket upgrades.
func WebsocketAuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return authenticate(validator, true)
}

func authenticate(validator TokenValidator, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := BearerToken(c, allowQuery)
		if err != nil {
			logger.Warn(c.Request.Context(), "authentication failed", logField(c, err))
			response.Abort(c, domainerrors.Unauthorized(err.Error()))
			return
		}

		actor, err := Authenticate(validator, token)
		if err != nil {
			logger.Warn(c.Request.Context(), "authentication failed", logField(c, err))
			response.Abort(c, err)
			return
		}

		SetActor(c, actor)
		c.Next()
	}
}

// ActorResolver reloads an authenticated actor from the account store.
type ActorResolver interface {
	CurrentActor(ctx context.Context, actor entities.Actor) (entities.Actor, error)
}

// AccountCheckMiddleware re-reads the account behind the token and replaces
// the actor with its current role. Banned or deleted accounts are rejected.
// GET, HEAD and OPTIONS skip the lookup unless allMethods is set.
func AccountCheckMiddleware(accounts ActorResolver, allMethods bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if accounts == nil || (!allMethods && isReadOnly(c.Request.Method)) {
			c.Next()
			return
		}
		actor, ok := GetActor(c)
		if !ok {
			response.Abort(c, domainerrors.Unauthorized("Authentication required"))
			return
		}

		current, err := accounts.CurrentActor(c.Request.Context(), actor)
		if err != nil {
			logger.Warn(c.Request.Context(), "account check failed", logField(c, err))
			response.Abort(c, err)
			return
		}
		SetActor(c, current)
		c.Next()
	}
}

func isReadOnly(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// SetActor stores the actor on the gin context and tags the request logger with it.
func SetActor(c *gin.Context, actor entities.Actor) {
	c.Set(ActorKey, actor)
	ctx := context.WithValue(c.Request.Context(), logger.ActorIDKey, actor.ID.String())
	c.Request = c.Request.WithContext(ctx)
}

// GetActor gets the authenticated actor from context
func GetActor(c *gin.Context) (entities.Actor, bool) {
	v, exists := c.Get(ActorKey)
	if !exists {
		return entities.Actor{}, false
	}
	actor, ok := v.(entities.Actor)
	return actor, ok
}

// RequireRole creates a middleware that requires one of the given roles
func RequireRole(roles ...entities.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, exists := GetActor(c)
		if !exists {
			response.Abort(c, domainerrors.Unauthorized("User role not found"))
			return
		}

		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}

		response.Abort(c, domainerrors.Forbidden("Insufficient permissions"))
	}
}

func logField(c *gin.Context, err error) zap.Field {
	return zap.Dict("auth", zap.String("path", c.Request.URL.Path), zap.Error(err))
}
