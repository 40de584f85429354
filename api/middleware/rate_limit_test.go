package middleware

import (
	"clientrisk-service/service/rate_limiter"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, rate_limiter.RateLimitRule) (*rate_limiter.RateLimitResult, error) {
	return nil, errors.New("redis down")
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func request(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/imports", nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(rate_limiter.NewLocalRateLimiter(), "imports", 2, time.Hour)(okHandler())

	w := request(h, "10.0.0.1:5000")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

	// 端口不同视为同一客户端
	assert.Equal(t, http.StatusOK, request(h, "10.0.0.1:5001").Code)

	w = request(h, "10.0.0.1:5002")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), `"status":429`)

	assert.Equal(t, http.StatusOK, request(h, "10.0.0.2:5000").Code)
}

func TestRateLimitFailsOpen(t *testing.T) {
	h := RateLimit(brokenLimiter{}, "imports", 1, time.Minute)(okHandler())
	assert.Equal(t, http.StatusOK, request(h, "10.0.0.1:5000").Code)
	assert.Equal(t, http.StatusOK, request(h, "10.0.0.1:5000").Code)
}

func TestClientAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.10:443"
	assert.Equal(t, "192.168.1.10", clientAddr(req))
	req.RemoteAddr = "unix-socket"
	assert.Equal(t, "unix-socket", clientAddr(req))
}
