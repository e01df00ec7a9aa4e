package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	for i := range 2 {
		w := serve(handler, "10.0.0.1:9999", nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := serve(handler, "10.0.0.1:9999", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "30", w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, float64(429), body["code"])
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimit_IndependentKeys(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.1:1234", nil).Code)
	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.2:1234", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(handler, "10.0.0.1:5678", nil).Code)
}

func TestRateLimit_CustomKeyFunc(t *testing.T) {
	handler := RateLimit(RateLimitConfig{
		Max:     1,
		Window:  time.Minute,
		KeyFunc: func(r *http.Request) string { return r.Header.Get("Authorization") },
	})(okHandler())

	a := map[string]string{"Authorization": "Bearer a"}
	b := map[string]string{"Authorization": "Bearer b"}
	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.1:1", a).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(handler, "10.0.0.1:1", a).Code)
	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.1:1", b).Code)
}

func TestRateLimit_Evict(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	now := time.Now()
	rl.limiter("a", now)
	rl.limiter("b", now.Add(50*time.Second))

	rl.evict(now.Add(90 * time.Second))

	assert.NotContains(t, rl.visitors, "a")
	assert.Contains(t, rl.visitors, "b")
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{name: "RemoteAddr", remote: "192.168.1.1:4444", want: "192.168.1.1"},
		{
			name:    "ForwardedFirstHop",
			remote:  "192.168.1.1:4444",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"},
			want:    "203.0.113.50",
		},
		{
			name:    "RealIP",
			remote:  "192.168.1.1:4444",
			headers: map[string]string{"X-Real-IP": "198.51.100.7"},
			want:    "198.51.100.7",
		},
		{name: "NoPort", remote: "pipe", want: "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
