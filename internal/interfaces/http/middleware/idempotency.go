package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	domainerrors "keygate.backend/internal/domain/errors"
	"keygate.backend/internal/interfaces/http/response"
	"keygate.backend/pkg/logger"
	"keygate.backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	// LockDuration is the time we hold the lock while processing
	LockDuration = 30 * time.Second
	// RetentionDuration is how long we keep the response
	RetentionDuration = 24 * time.Hour

	processingMarker = "processing"
)

// IdempotencyStore is the subset of pkg/redis used to remember responses.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
}

type redisStore struct{}

func (redisStore) Get(ctx context.Context, key string) (string, error) { return redis.Get(ctx, key) }
func (redisStore) Set(ctx context.Context, key string, value interface{}, exp time.Duration) error {
	return redis.Set(ctx, key, value, exp)
}
func (redisStore) SetNX(ctx context.Context, key string, value interface{}, exp time.Duration) (bool, error) {
	return redis.SetNX(ctx, key, value, exp)
}
func (redisStore) Del(ctx context.Context, key string) error { return redis.Del(ctx, key) }

// RedisIdempotencyStore stores replayable responses in the shared redis client.
func RedisIdempotencyStore() IdempotencyStore { return redisStore{} }

type storedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type bodyRecorder struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response for a repeated
// Idempotency-Key from the same actor, so a retried POST /keys does not
// issue a second key. Requests without the header pass through.
func IdempotencyMiddleware(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		actorID := "anonymous"
		if actor, ok := GetActor(c); ok {
			actorID = actor.ID.String()
		}
		storageKey := fmt.Sprintf("idempotency:%s:%s:%s", actorID, c.FullPath(), key)
		ctx := c.Request.Context()

		val, err := store.Get(ctx, storageKey)
		switch {
		case err == nil && val == processingMarker:
			response.Abort(c, domainerrors.NewAppError(http.StatusConflict, domainerrors.CodeConflict, "Request already in progress", domainerrors.ErrConflict))
			return
		case err == nil:
			var stored storedResponse
			if jsonErr := json.Unmarshal([]byte(val), &stored); jsonErr == nil {
				c.Header("X-Idempotency-Hit", "true")
				c.Data(stored.Status, "application/json; charset=utf-8", stored.Body)
				c.Abort()
				return
			}
			_ = store.Del(ctx, storageKey)
		case !redis.IsNil(err):
			// Redis unavailable: serve without idempotency.
			logger.Warn(ctx, "idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}

		acquired, err := store.SetNX(ctx, storageKey, processingMarker, LockDuration)
		if err != nil || !acquired {
			response.Abort(c, domainerrors.NewAppError(http.StatusConflict, domainerrors.CodeConflict, "Request in progress", domainerrors.ErrConflict))
			return
		}

		w := &bodyRecorder{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		status := c.Writer.Status()
		if status >= 200 && status < 300 {
			payload, _ := json.Marshal(storedResponse{Status: status, Body: w.body.Bytes()})
			if err := store.Set(ctx, storageKey, string(payload), RetentionDuration); err != nil {
				logger.Warn(ctx, "failed to store idempotent response", zap.Error(err))
			}
			return
		}
		// Failed requests may be retried with the same key.
		_ = store.Del(ctx, storageKey)
	}
}
