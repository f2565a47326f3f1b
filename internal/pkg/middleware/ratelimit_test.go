package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedHandler(rl *RateLimiter) http.Handler {
	return rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
}

func TestRateLimiter_Burst(t *testing.T) {
	h := limitedHandler(NewRateLimiter(0.001, 2))

	codes := make([]int, 0, 3)
	for range 3 {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/auth/verify-wallet", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiter_PerClient(t *testing.T) {
	h := limitedHandler(NewRateLimiter(0.001, 1))

	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/auth/nonce", nil)
		req.RemoteAddr = addr
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, addr)
	}
}

func sendFrom(h http.Handler, remote, fwd string) int {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/auth/verify-wallet", nil)
	req.RemoteAddr = remote
	if fwd != "" {
		req.Header.Set("X-Forwarded-For", fwd)
	}
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimiter_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	h := limitedHandler(NewRateLimiter(0.001, 1))

	allowed := 0
	for i := range 20 {
		if sendFrom(h, "203.0.113.7:4000", fmt.Sprintf("10.0.0.%d", i)) == http.StatusOK {
			allowed++
		}
	}

	assert.Equal(t, 1, allowed)
}

func TestRateLimiter_TrustedProxy(t *testing.T) {
	trusted, err := ParsePrefixes([]string{"172.16.0.0/12"})
	require.NoError(t, err)
	h := limitedHandler(NewRateLimiter(0.001, 1, WithTrustedProxies(trusted...)))

	assert.Equal(t, http.StatusOK, sendFrom(h, "172.16.0.10:80", "1.1.1.1"))
	assert.Equal(t, http.StatusOK, sendFrom(h, "172.16.0.10:80", "2.2.2.2, 172.16.0.11"))
	assert.Equal(t, http.StatusTooManyRequests, sendFrom(h, "172.16.0.10:80", "1.1.1.1"))
}

func TestRateLimiter_TrustedProxy_SpoofedLeftHops(t *testing.T) {
	trusted, err := ParsePrefixes([]string{"172.16.0.10"})
	require.NoError(t, err)
	h := limitedHandler(NewRateLimiter(0.001, 1, WithTrustedProxies(trusted...)))

	allowed := 0
	for i := range 20 {
		// the gateway appends the real peer, anything before it comes from the caller
		fwd := fmt.Sprintf("10.0.0.%d, 198.51.100.4", i)
		if sendFrom(h, "172.16.0.10:80", fwd) == http.StatusOK {
			allowed++
		}
	}

	assert.Equal(t, 1, allowed)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	rl.limiter("a")
	now = now.Add(time.Hour)
	rl.limiter("b")

	rl.Cleanup(time.Minute)

	assert.Equal(t, 1, rl.size())
}

func TestClientIP(t *testing.T) {
	trusted, err := ParsePrefixes([]string{"10.0.0.0/8", "::1"})
	require.NoError(t, err)
	rl := NewRateLimiter(1, 1, WithTrustedProxies(trusted...))

	tbl := []struct {
		name   string
		remote string
		fwd    []string
		want   string
	}{
		{"untrusted peer", "192.168.1.5:40000", []string{"1.1.1.1"}, "192.168.1.5"},
		{"no port", "unix", nil, "unix"},
		{"trusted peer without header", "10.0.0.2:80", nil, "10.0.0.2"},
		{"trusted peer", "10.0.0.2:80", []string{"8.8.8.8"}, "8.8.8.8"},
		{"right-most untrusted hop", "10.0.0.2:80", []string{"9.9.9.9, 8.8.8.8, 10.0.0.3"}, "8.8.8.8"},
		{"repeated headers", "10.0.0.2:80", []string{"9.9.9.9", "8.8.8.8"}, "8.8.8.8"},
		{"all hops trusted", "10.0.0.2:80", []string{"10.0.0.4, 10.0.0.3"}, "10.0.0.4"},
		{"ipv6 loopback proxy", "[::1]:80", []string{"2001:db8::1"}, "2001:db8::1"},
	}

	for _, c := range tbl {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = c.remote
			for _, v := range c.fwd {
				req.Header.Add("X-Forwarded-For", v)
			}
			assert.Equal(t, c.want, rl.clientIP(req))
		})
	}
}

func TestParsePrefixes(t *testing.T) {
	got, err := ParsePrefixes([]string{" 10.1.2.3/8 ", "127.0.0.1", "", "::1"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "10.0.0.0/8", got[0].String())
	assert.Equal(t, "127.0.0.1/32", got[1].String())
	assert.Equal(t, "::1/128", got[2].String())

	_, err = ParsePrefixes([]string{"not-an-ip"})
	assert.Error(t, err)
	_, err = ParsePrefixes([]string{"10.0.0.0/99"})
	assert.Error(t, err)
}
