package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"readearn/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMemoryRateLimiterRefillsOverTime(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryRateLimiter(2, time.Second, 2, time.Minute)
	l.WithNowFunc(func() time.Time { return now })

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	// other keys have their own bucket
	assert.True(t, l.Allow("b"))

	now = now.Add(500 * time.Millisecond)
	assert.True(t, l.Allow("a"))
}

func TestRedisRateLimitFallsBackToMemory(t *testing.T) {
	SetRedisClient(nil)

	r := gin.New()
	r.GET("/x", RedisRateLimit(2, time.Hour), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := func(sid string) int {
		rq := httptest.NewRequest(http.MethodGet, "/x", nil)
		rq.Header.Set(SessionHeader, sid)
		return serve(r, rq).Code
	}

	assert.Equal(t, http.StatusOK, req("s1"))
	assert.Equal(t, http.StatusOK, req("s1"))
	assert.Equal(t, http.StatusTooManyRequests, req("s1"))
	assert.Equal(t, http.StatusOK, req("s2"))
}

func TestActionRateLimitPerSession(t *testing.T) {
	SetRedisClient(nil)

	r := gin.New()
	r.POST("/gift", Session(), ActionRateLimit("gift", 1, time.Hour), func(c *gin.Context) { c.Status(http.StatusOK) })

	rq := httptest.NewRequest(http.MethodPost, "/gift?sid=abc", nil)
	assert.Equal(t, http.StatusOK, serve(r, rq).Code)

	rq = httptest.NewRequest(http.MethodPost, "/gift?sid=abc", nil)
	w := serve(r, rq)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "too many gift requests")
}

func TestSessionRequired(t *testing.T) {
	r := gin.New()
	r.GET("/me", Session(), func(c *gin.Context) { c.String(http.StatusOK, SessionID(c)) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"redirect":"/login"`)

	rq := httptest.NewRequest(http.MethodGet, "/me", nil)
	rq.Header.Set(SessionHeader, "sid-42")
	w = serve(r, rq)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sid-42", w.Body.String())
}

func TestRequestIDPropagates(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/id", func(c *gin.Context) {
		c.String(http.StatusOK, logger.RequestIDFromContext(c.Request.Context()))
	})

	rq := httptest.NewRequest(http.MethodGet, "/id", nil)
	rq.Header.Set(RequestIDHeader, "req-1")
	w := serve(r, rq)
	assert.Equal(t, "req-1", w.Body.String())
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/id", nil))
	assert.NotEmpty(t, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))
}
