package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLimiter(perMinute int, methods ...string) (*Limiter, *clock) {
	c := &clock{t: time.Date(2024, time.May, 17, 12, 0, 0, 0, time.UTC)}
	rl := NewLimiter(Config{RequestsPerMinute: perMinute, Methods: methods})
	rl.now = c.now
	return rl, c
}

func TestAllowRefillsEvenly(t *testing.T) {
	rl, c := newTestLimiter(3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.1.1.1") {
			t.Fatalf("request %d should be allowed within the burst", i+1)
		}
	}
	if rl.Allow("1.1.1.1") {
		t.Fatal("fourth request should be denied once the burst is spent")
	}
	if !rl.Allow("2.2.2.2") {
		t.Fatal("other clients are tracked separately")
	}

	// 3 per minute refills one token every 20 seconds.
	c.t = c.t.Add(10 * time.Second)
	ok, wait := rl.reserve("1.1.1.1")
	if ok {
		t.Fatal("half a token is not enough")
	}
	if wait < 9*time.Second || wait > 11*time.Second {
		t.Fatalf("wait = %v, want about 10s", wait)
	}
	c.t = c.t.Add(11 * time.Second)
	if !rl.Allow("1.1.1.1") {
		t.Fatal("a refilled token should be allowed")
	}

	if got := rl.GetMetrics(); got.TotalHits != 2 || got.ClientCount != 2 {
		t.Fatalf("unexpected metrics %+v", got)
	}
}

func TestCleanupStaleEntries(t *testing.T) {
	rl, c := newTestLimiter(10)
	rl.Allow("1.1.1.1")
	c.t = c.t.Add(5 * time.Minute)
	rl.Allow("2.2.2.2")
	c.t = c.t.Add(6 * time.Minute)

	if removed := rl.cleanupStaleEntries(); removed != 1 {
		t.Fatalf("expected 1 stale entry removed, got %d", removed)
	}
	if rl.ActiveClients() != 1 {
		t.Fatalf("expected 1 active client, got %d", rl.ActiveClients())
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	cases := map[time.Duration]int{
		0:                      1,
		300 * time.Millisecond: 1,
		20 * time.Second:       20,
		20*time.Second + 1:     21,
	}
	for wait, want := range cases {
		if got := retryAfterSeconds(wait); got != want {
			t.Fatalf("retryAfterSeconds(%v) = %d, want %d", wait, got, want)
		}
	}
}

func TestMiddlewareOnlyLimitsConfiguredMethods(t *testing.T) {
	rl, _ := newTestLimiter(1, http.MethodPost)
	h := rl.Middleware(func(*http.Request) string { return "1.1.1.1" }, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := []int{}
	for _, method := range []string{http.MethodPost, http.MethodPost, http.MethodGet, http.MethodGet} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(method, "/api/transactions", nil))
		codes = append(codes, rr.Code)
		if rr.Code == http.StatusTooManyRequests && rr.Header().Get("Retry-After") != "60" {
			t.Fatalf("Retry-After = %q, want 60", rr.Header().Get("Retry-After"))
		}
	}

	want := []int{200, 429, 200, 200}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("request %d: got %d, want %d (all: %v)", i, codes[i], want[i], codes)
		}
	}
}
