package throttle

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func noLogger() *slog.Logger { return nil }

func TestNewRoundTripper_Validation(t *testing.T) {
	testCases := []struct {
		name   string
		cfg    Config
		expErr error
	}{
		{
			name:   "Invalid RPS (zero)",
			cfg:    Config{RPS: 0, Burst: 10},
			expErr: ErrMustNotBeZero,
		},
		{
			name:   "Invalid RPS (negative)",
			cfg:    Config{RPS: -5, Burst: 10},
			expErr: ErrMustNotBeZero,
		},
		{
			name:   "Invalid Burst (zero)",
			cfg:    Config{RPS: 10, Burst: 0},
			expErr: ErrMustNotBeZero,
		},
		{
			name:   "Invalid Burst (negative) per host",
			cfg:    Config{RPS: 10, Burst: -5, PerHost: true},
			expErr: ErrMustNotBeZero,
		},
		{
			name: "Valid input",
			cfg:  Config{RPS: 10, Burst: 20},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rt, err := NewRoundTripper(tc.cfg, noLogger, http.DefaultTransport)

			if tc.expErr != nil {
				if !errors.Is(err, tc.expErr) {
					t.Errorf("exp err %v; got: %v", tc.expErr, err)
				}
				return
			}

			if err != nil {
				t.Errorf("exp nil err, got: %v", err)
			}
			if rt == nil {
				t.Error("exp non-nil RoundTripper")
			}
		})
	}
}

func newServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ts.Close)

	return ts
}

func fire(t *testing.T, ctx context.Context, c *http.Client, target string, n int) []error {
	t.Helper()

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
			if err != nil {
				errs[i] = err
				return
			}

			resp, err := c.Do(req)
			if err != nil {
				errs[i] = err
				return
			}
			resp.Body.Close()
		}()
	}
	wg.Wait()

	return errs
}

func TestThrottle_WithinBurstIsFast(t *testing.T) {
	var calls atomic.Int32
	ts := newServer(t, &calls)

	rt, err := NewRoundTripper(Config{RPS: 5, Burst: 5}, noLogger, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	for _, err := range fire(t, t.Context(), &http.Client{Transport: rt}, ts.URL, 5) {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}

	if d := time.Since(start); d > 150*time.Millisecond {
		t.Errorf("requests within burst should be fast, took %v", d)
	}
	if got := calls.Load(); got != 5 {
		t.Errorf("exp 5 server calls, got %d", got)
	}
}

func TestThrottle_ExceedBurstWaits(t *testing.T) {
	var calls atomic.Int32
	ts := newServer(t, &calls)

	rt, err := NewRoundTripper(Config{RPS: 10, Burst: 5}, noLogger, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	for _, err := range fire(t, t.Context(), &http.Client{Transport: rt}, ts.URL, 8) {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}

	// (8-5) calls / 10 RPS = 0.3s, allow some scheduling slack.
	if d := time.Since(start); d < 250*time.Millisecond {
		t.Errorf("requests beyond burst should be slowed down, took %v", d)
	}
}

func TestThrottle_WaitTimesOut(t *testing.T) {
	var calls atomic.Int32
	ts := newServer(t, &calls)

	rt, err := NewRoundTripper(Config{RPS: 1, Burst: 1}, noLogger, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	var failed int
	for _, err := range fire(t, ctx, &http.Client{Transport: rt}, ts.URL, 3) {
		if err == nil {
			continue
		}
		failed++
		if !errors.Is(err, ErrWaitingFailed) {
			t.Errorf("exp ErrWaitingFailed, got: %v", err)
		}
	}

	if failed != 2 {
		t.Errorf("exp 2 throttled failures, got %d", failed)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("exp 1 server call, got %d", got)
	}
}

func TestThrottle_PreCancelledContext(t *testing.T) {
	var calls atomic.Int32
	ts := newServer(t, &calls)

	rt, err := NewRoundTripper(Config{RPS: 20, Burst: 10}, noLogger, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	errs := fire(t, ctx, &http.Client{Transport: rt}, ts.URL, 1)
	if !errors.Is(errs[0], ErrContextEnded) || !errors.Is(errs[0], context.Canceled) {
		t.Errorf("exp ErrContextEnded wrapping context.Canceled, got: %v", errs[0])
	}
	if got := calls.Load(); got != 0 {
		t.Errorf("pre-cancelled request should not reach the server, got %d calls", got)
	}
}

func TestThrottle_PerHostBuckets(t *testing.T) {
	var callsA, callsB atomic.Int32
	a := newServer(t, &callsA)
	b := newServer(t, &callsB)

	rt, err := NewRoundTripper(Config{RPS: 1, Burst: 2, PerHost: true}, noLogger, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}
	c := &http.Client{Transport: rt}

	start := time.Now()
	for _, target := range []string{a.URL, b.URL} {
		for _, err := range fire(t, t.Context(), c, target, 2) {
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}
	}

	if d := time.Since(start); d > 300*time.Millisecond {
		t.Errorf("each host should have its own burst, took %v", d)
	}
	if callsA.Load() != 2 || callsB.Load() != 2 {
		t.Errorf("exp 2 calls per host, got a=%d b=%d", callsA.Load(), callsB.Load())
	}
}

func TestThrottle_LogsExhaustion(t *testing.T) {
	var calls atomic.Int32
	ts := newServer(t, &calls)

	var buf bytes.Buffer
	var mu sync.Mutex
	logger := slog.New(slog.NewTextHandler(&lockedWriter{w: &buf, mu: &mu}, nil))

	rt, err := NewRoundTripper(Config{RPS: 20, Burst: 1}, func() *slog.Logger { return logger }, http.DefaultTransport)
	if err != nil {
		t.Fatal(err)
	}
	c := &http.Client{Transport: rt}

	for range 2 {
		for _, err := range fire(t, t.Context(), c, ts.URL, 1) {
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
	}

	mu.Lock()
	out := buf.String()
	mu.Unlock()

	if !strings.Contains(out, "throttle tokens exhausted") {
		t.Errorf("expected exhaustion log record, got: %s", out)
	}
	if !strings.Contains(out, "throttle wait complete") {
		t.Errorf("expected wait complete log record, got: %s", out)
	}
}

type lockedWriter struct {
	w  *bytes.Buffer
	mu *sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
