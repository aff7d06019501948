package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_FixedWindow(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	l := NewRateLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	ok, _ := l.Allow("k")
	assert.True(t, ok)
	ok, _ = l.Allow("k")
	assert.True(t, ok)
	ok, end := l.Allow("k")
	assert.False(t, ok)
	assert.Equal(t, now.Add(time.Minute), end)

	// other keys are independent
	ok, _ = l.Allow("other")
	assert.True(t, ok)

	now = now.Add(time.Minute + time.Second)
	ok, _ = l.Allow("k")
	assert.True(t, ok)
}

func TestRateLimiter_Purge(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	l := NewRateLimiter(5, time.Minute)
	l.now = func() time.Time { return now }

	l.Allow("a")
	l.Allow("b")
	assert.Equal(t, 0, l.Purge())

	now = now.Add(2 * time.Minute)
	l.Allow("c")
	assert.Equal(t, 2, l.Purge())
}

func TestRateLimiter_ByIP_Returns429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := NewRateLimiter(1, time.Minute)
	r := gin.New()
	r.GET("/", l.ByIP(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
