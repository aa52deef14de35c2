package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestInMemoryRateLimiter_Allow(t *testing.T) {
	r := NewInMemoryRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		ok, _ := r.Allow("k")
		assert.True(t, ok, "request %d should pass", i+1)
	}
	ok, retryIn := r.Allow("k")
	assert.False(t, ok)
	assert.Greater(t, retryIn, time.Duration(0))

	// Other keys are unaffected.
	ok, _ = r.Allow("other")
	assert.True(t, ok)
}

func TestInMemoryRateLimiter_WindowResets(t *testing.T) {
	r := NewInMemoryRateLimiter(1, 20*time.Millisecond)

	ok, _ := r.Allow("k")
	assert.True(t, ok)
	ok, _ = r.Allow("k")
	assert.False(t, ok)

	time.Sleep(25 * time.Millisecond)
	ok, _ = r.Allow("k")
	assert.True(t, ok)
}

func TestRateLimitKeyed_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter := NewInMemoryRateLimiter(2, time.Minute)
	r := gin.New()
	r.POST("/r/:code/click",
		RateLimitKeyed(limiter, func(c *gin.Context) string { return c.Param("code") }),
		func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"tracked": true}) })

	hit := func(code string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/r/"+code+"/click", nil))
		return w
	}

	assert.Equal(t, http.StatusOK, hit("AAAA").Code)
	assert.Equal(t, http.StatusOK, hit("AAAA").Code)

	throttled := hit("AAAA")
	assert.Equal(t, http.StatusTooManyRequests, throttled.Code)
	assert.NotEmpty(t, throttled.Header().Get("Retry-After"))

	// A different code has its own budget.
	assert.Equal(t, http.StatusOK, hit("BBBB").Code)
}
