package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"orgchat-backend/internal/database"
)

func newRateLimitedRouter(t *testing.T, requests int, window time.Duration) (*gin.Engine, *miniredis.Miniredis) {
	gin.SetMode(gin.TestMode)

	s := miniredis.RunT(t)
	client := database.NewRedisClient(s.Addr())
	limiter := NewRateLimiter(client, requests, window)

	router := gin.New()
	router.Use(limiter.Middleware())
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pong": true})
	})
	return router, s
}

func ping(router *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(w, req)
	return w
}

// TestRateLimiterUnderLimitAcrossWindows tests that a client staying below
// the limit is never blocked, however long it keeps sending. The count must
// reset with the window instead of accumulating across windows.
func TestRateLimiterUnderLimitAcrossWindows(t *testing.T) {
	router, s := newRateLimitedRouter(t, 3, time.Minute)

	// One request every 30 seconds, half the allowed rate
	for i := 0; i < 6; i++ {
		w := ping(router)
		assert.Equal(t, http.StatusOK, w.Code, "request %d should be allowed", i+1)
		s.FastForward(30 * time.Second)
	}
}

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	router, _ := newRateLimitedRouter(t, 2, time.Minute)

	assert.Equal(t, http.StatusOK, ping(router).Code)
	assert.Equal(t, http.StatusOK, ping(router).Code)

	w := ping(router)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimiterResetsAfterWindow(t *testing.T) {
	router, s := newRateLimitedRouter(t, 2, time.Minute)

	assert.Equal(t, http.StatusOK, ping(router).Code)
	assert.Equal(t, http.StatusOK, ping(router).Code)
	assert.Equal(t, http.StatusTooManyRequests, ping(router).Code)

	s.FastForward(61 * time.Second)
	assert.Equal(t, http.StatusOK, ping(router).Code)
}

// TestRateLimiterFailOpen tests that a Redis outage does not block requests
func TestRateLimiterFailOpen(t *testing.T) {
	router, s := newRateLimitedRouter(t, 1, time.Minute)
	s.Close()

	assert.Equal(t, http.StatusOK, ping(router).Code)
	assert.Equal(t, http.StatusOK, ping(router).Code)
}
