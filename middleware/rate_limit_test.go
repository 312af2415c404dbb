package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimitMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.Use(RateLimit(5, time.Minute))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Request %d: Expected status 200, got %d", i+1, w.Code)
		}
	}

	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}
}

func TestRateLimitDifferentIPs(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(2, time.Minute))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-Forwarded-For", "10.0.0.1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.2")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Different IP should not be rate limited, got %d", w.Code)
	}
}

func TestRateLimitBySession(t *testing.T) {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("session_id", c.GetHeader("X-Test-Session"))
		c.Next()
	})
	router.Use(RateLimitBy(NewRateLimiter(1, time.Minute), BySession))
	router.POST("/generate", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	send := func(session string) int {
		req := httptest.NewRequest("POST", "/generate", nil)
		req.Header.Set("X-Test-Session", session)
		req.RemoteAddr = "10.0.0.9:1000"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	if code := send("a"); code != http.StatusOK {
		t.Errorf("Expected first request of session a to pass, got %d", code)
	}
	if code := send("a"); code != http.StatusTooManyRequests {
		t.Errorf("Expected second request of session a to be limited, got %d", code)
	}
	if code := send("b"); code != http.StatusOK {
		t.Errorf("Expected session b from the same IP to pass, got %d", code)
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(1, time.Minute)
	limiter.now = func() time.Time { return now }
	limiter.lastReset = now

	if ok, _ := limiter.Allow("k"); !ok {
		t.Fatal("Expected first request to be allowed")
	}
	now = now.Add(20 * time.Second)
	ok, retryAfter := limiter.Allow("k")
	if ok {
		t.Fatal("Expected second request to be limited")
	}
	if retryAfter != 40*time.Second {
		t.Errorf("Expected retry after 40s, got %v", retryAfter)
	}

	now = now.Add(time.Minute)
	if ok, _ := limiter.Allow("k"); !ok {
		t.Error("Expected request after window reset to be allowed")
	}
}

func TestNewRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(100, time.Minute)

	if limiter == nil {
		t.Fatal("Expected non-nil limiter")
	}
	if limiter.rate != 100 {
		t.Errorf("Expected rate 100, got %d", limiter.rate)
	}
	if limiter.window != time.Minute {
		t.Errorf("Expected window 1 minute, got %v", limiter.window)
	}
}
