package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-practice/internal/config"
	"github.com/stemsi/exstem-practice/internal/model"
	"github.com/stemsi/exstem-practice/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

type oneUser struct{ u *model.User }

func (o oneUser) GetByEmail(context.Context, string) (*model.User, error) { return o.u, nil }
func (o oneUser) GetByID(context.Context, int) (*model.User, error)       { return o.u, nil }

func protected(auth *service.AuthService) *gin.Engine {
	r := gin.New()
	r.GET("/me", RequireJWT(auth), CheckSingleDeviceSession(auth), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetClaims(c).UserID})
	})
	return r
}

func get(r http.Handler, target, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireJWT(t *testing.T) {
	_, rdb := newRedis(t)
	user := &model.User{ID: 5, Email: "u@example.com"}
	cfg := &config.Config{JWTSecret: "secret", JWTExpiry: time.Hour, BcryptCost: 4}
	auth := service.NewAuthService(cfg, rdb, oneUser{user})
	r := protected(auth)

	token, err := auth.GenerateToken(context.Background(), user)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "garbage").Code)
	assert.Equal(t, http.StatusOK, get(r, "/me", token).Code)
	assert.Equal(t, http.StatusOK, get(r, "/me?token="+token, "").Code)

	// A newer login replaces this one.
	_, err = auth.GenerateToken(context.Background(), user)
	require.NoError(t, err)
	w := get(r, "/me", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "SESSION_INVALIDATED")
}

func TestRateLimiter(t *testing.T) {
	mr, rdb := newRedis(t)
	rl := NewRateLimiter(rdb, zerolog.Nop(), config.CacheKey.LoginAttemptsKey, 2, time.Minute)

	r := gin.New()
	r.GET("/login", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, get(r, "/login", "").Code)
	assert.Equal(t, http.StatusOK, get(r, "/login", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "/login", "").Code)

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusOK, get(r, "/login", "").Code)
}

func TestRateLimiterFailsOpen(t *testing.T) {
	mr, rdb := newRedis(t)
	rl := NewRateLimiter(rdb, zerolog.Nop(), config.CacheKey.LoginAttemptsKey, 1, time.Minute)

	r := gin.New()
	r.GET("/login", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	mr.Close()
	assert.Equal(t, http.StatusOK, get(r, "/login", "").Code)
}
