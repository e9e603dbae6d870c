package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestTracker(cfg Config) *Tracker {
	return NewTracker(cfg, zerolog.Nop())
}

func TestUpdateFromHeaders_ValidHeaders(t *testing.T) {
	tests := []struct {
		name          string
		headers       map[string]string
		wantLimit     int
		wantRemaining int
		wantReset     time.Duration
	}{
		{
			name:          "relative reset",
			headers:       map[string]string{"X-RateLimit-Limit": "100", "X-RateLimit-Remaining": "42", "X-RateLimit-Reset": "30"},
			wantLimit:     100,
			wantRemaining: 42,
			wantReset:     30 * time.Second,
		},
		{
			name: "epoch reset",
			headers: map[string]string{
				"X-RateLimit-Limit":     "50",
				"X-RateLimit-Remaining": "10",
				"X-RateLimit-Reset":     strconv.FormatInt(time.Now().Add(2*time.Minute).Unix(), 10),
			},
			wantLimit:     50,
			wantRemaining: 10,
			wantReset:     2 * time.Minute,
		},
		{
			name:          "lowercase header names and fractional reset",
			headers:       map[string]string{"x-ratelimit-remaining": "3", "x-ratelimit-reset": "9.2"},
			wantRemaining: 3,
			wantReset:     10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := newTestTracker(DefaultConfig("test"))
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}

			if err := tracker.UpdateFromHeaders(context.Background(), h); err != nil {
				t.Fatalf("UpdateFromHeaders() error = %v", err)
			}

			state, err := tracker.GetState(context.Background())
			if err != nil || state == nil {
				t.Fatalf("GetState() = %v, %v", state, err)
			}
			if state.Limit != tt.wantLimit || state.Remaining != tt.wantRemaining {
				t.Errorf("state = %+v, want limit %d remaining %d", state, tt.wantLimit, tt.wantRemaining)
			}
			if d := state.TimeUntilReset(); d < tt.wantReset-3*time.Second || d > tt.wantReset+time.Second {
				t.Errorf("TimeUntilReset() = %v, want about %v", d, tt.wantReset)
			}
		})
	}
}

func TestUpdateFromHeaders_InvalidHeaders(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		wantErr bool
	}{
		{"no headers", map[string]string{}, false},
		{"bad remaining", map[string]string{"X-RateLimit-Remaining": "lots", "X-RateLimit-Reset": "1"}, true},
		{"bad limit", map[string]string{"X-RateLimit-Limit": "?", "X-RateLimit-Remaining": "1", "X-RateLimit-Reset": "1"}, true},
		{"missing reset", map[string]string{"X-RateLimit-Remaining": "1"}, true},
		{"bad reset", map[string]string{"X-RateLimit-Remaining": "1", "X-RateLimit-Reset": "soon"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := newTestTracker(DefaultConfig("test"))
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			err := tracker.UpdateFromHeaders(context.Background(), h)
			if (err != nil) != tt.wantErr {
				t.Errorf("UpdateFromHeaders() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetState_NothingObserved(t *testing.T) {
	state, err := newTestTracker(DefaultConfig("test")).GetState(context.Background())
	if err != nil || state != nil {
		t.Errorf("GetState() = %v, %v; want nil, nil", state, err)
	}
}

func TestWait_Healthy(t *testing.T) {
	tracker := newTestTracker(Config{Name: "test"})
	start := time.Now()
	for i := 0; i < 10; i++ {
		if err := tracker.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Errorf("unlimited tracker waited %v", time.Since(start))
	}
}

func TestWait_TokenBucketPaces(t *testing.T) {
	tracker := newTestTracker(Config{Name: "test", RequestsPerSecond: 20, Burst: 1})
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := tracker.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	// two refills at 50ms each
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("3 requests at 20 rps took %v, want >= ~100ms", elapsed)
	}
}

func TestWait_ExhaustedWaitsForReset(t *testing.T) {
	tracker := newTestTracker(Config{Name: "test", MaxWait: 5 * time.Second})
	tracker.state = &State{Limit: 10, Remaining: 0, ResetAt: time.Now().Add(150 * time.Millisecond), LastUpdate: time.Now()}

	start := time.Now()
	if err := tracker.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("Wait() returned after %v, want to wait for reset", elapsed)
	}
}

func TestWait_ExhaustedBeyondMaxWait(t *testing.T) {
	tracker := newTestTracker(Config{Name: "test", MaxWait: time.Second})
	tracker.state = &State{Limit: 10, Remaining: 0, ResetAt: time.Now().Add(time.Hour), LastUpdate: time.Now()}

	err := tracker.Wait(context.Background())
	if !errors.Is(err, ErrQuotaExhausted) {
		t.Errorf("Wait() error = %v, want ErrQuotaExhausted", err)
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	tracker := newTestTracker(Config{Name: "test", MaxWait: time.Hour})
	tracker.state = &State{Limit: 10, Remaining: 0, ResetAt: time.Now().Add(time.Minute), LastUpdate: time.Now()}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := tracker.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}

func TestWait_Throttled(t *testing.T) {
	tracker := newTestTracker(Config{Name: "test", ThrottleDelay: 50 * time.Millisecond})
	tracker.state = &State{Limit: 100, Remaining: 2, ResetAt: time.Now().Add(time.Minute), LastUpdate: time.Now()}

	start := time.Now()
	if err := tracker.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("throttled Wait() took %v, want >= ThrottleDelay", elapsed)
	}
}
