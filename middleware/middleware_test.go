package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/fallenleaves/config"
	"github.com/cppla/fallenleaves/utils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	config.Set(config.AppConfig{JWTSecret: "middleware-test-secret", TokenTTLHours: 1})
	m.Run()
}

func protectedEngine() *gin.Engine {
	r := gin.New()
	r.GET("/me", AuthRequired(), func(ctx *gin.Context) {
		id, ok := UserID(ctx)
		if !ok {
			ctx.Status(http.StatusInternalServerError)
			return
		}
		utils.Success(ctx, gin.H{"id": id, "username": ctx.GetString(ContextUsernameKey)})
	})
	return r
}

func get(r *gin.Engine, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	r := protectedEngine()
	token, _, err := utils.GenerateToken(7, "rowan", time.Hour)
	require.NoError(t, err)

	w := get(r, "/me", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"rowan"`)

	cases := map[string]struct {
		header string
		code   string
	}{
		"missing": {"", "40101"},
		"wrong":   {"Basic abc", "40102"},
		"empty":   {"Bearer  ", "40103"},
		"garbage": {"Bearer nope", "40105"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := get(r, "/me", tc.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tc.code)
		})
	}
}

func TestAuthRequiredRejectsRevokedToken(t *testing.T) {
	r := protectedEngine()
	token, exp, err := utils.GenerateToken(8, "hazel", time.Hour)
	require.NoError(t, err)
	claims, err := utils.ParseToken(token)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, get(r, "/me", "Bearer "+token).Code)
	utils.RevokeToken(claims.ID, exp)
	w := get(r, "/me", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "40104")
}

func TestRateLimitPerClient(t *testing.T) {
	r := gin.New()
	r.GET("/x", RateLimit(4), func(ctx *gin.Context) { ctx.Status(http.StatusOK) })

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	// burst is half the per-minute limit
	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2"))
}

func TestRateLimitKeysByUser(t *testing.T) {
	r := gin.New()
	r.GET("/x", func(ctx *gin.Context) {
		ctx.Set(ContextUserIDKey, uint(ctx.GetHeader("X-User")[0]-'0'))
		ctx.Next()
	}, RateLimit(2), func(ctx *gin.Context) { ctx.Status(http.StatusOK) })

	call := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("X-User", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("1"))
	assert.Equal(t, http.StatusTooManyRequests, call("1"))
	assert.Equal(t, http.StatusOK, call("2"))
}
