package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"greendrake/dunning/internal/api/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func request(r *gin.Engine, remoteAddr, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = remoteAddr
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_PerClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := middleware.NewRateLimiterMiddleware(ctx, 0.001, 2)
	r := gin.New()
	r.Use(rl.Limit())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, request(r, "10.0.0.1:1234", "").Code)
	assert.Equal(t, http.StatusOK, request(r, "10.0.0.1:1234", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, request(r, "10.0.0.1:1234", "").Code)

	// A different client has its own bucket.
	assert.Equal(t, http.StatusOK, request(r, "10.0.0.2:1234", "").Code)
}
