package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthHandler(t *testing.T) {
	ok := NewHealthHandler("keygate-backend", "1.0.0", map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
	})
	down := NewHealthHandler("keygate-backend", "1.0.0", map[string]HealthCheck{
		"database": func(context.Context) error { return errors.New("connection refused") },
	})
	r := newRouter()
	r.GET("/ok", ok.Health)
	r.GET("/down", down.Health)

	w := doJSON(t, r, http.MethodGet, "/ok", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "keygate-backend", body["service"])

	w = doJSON(t, r, http.MethodGet, "/down", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "connection refused", decode(t, w)["checks"].(map[string]interface{})["database"])
}
