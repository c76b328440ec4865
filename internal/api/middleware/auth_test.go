package middleware_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greendrake/dunning/internal/api/middleware"
	"greendrake/dunning/internal/auth"
)

const testSecret = "middleware-secret"

func authRouter() *gin.Engine {
	r := gin.New()
	r.Use(middleware.AuthMiddleware(testSecret), middleware.AdminMiddleware())
	r.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(middleware.ContextKeyUserID))
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	r := authRouter()

	admin, err := auth.GenerateJWT("ops-1", true, testSecret, time.Hour)
	require.NoError(t, err)
	nonAdmin, err := auth.GenerateJWT("viewer", false, testSecret, time.Hour)
	require.NoError(t, err)
	foreign, err := auth.GenerateJWT("ops-1", true, "another-secret", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad signature", "Bearer " + foreign, http.StatusUnauthorized},
		{"not admin", "Bearer " + nonAdmin, http.StatusForbidden},
		{"admin", "Bearer " + admin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := request(r, "10.0.0.1:1234", tt.header)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "ops-1", w.Body.String())
			}
		})
	}
}
