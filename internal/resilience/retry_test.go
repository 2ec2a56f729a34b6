package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDoValSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), fastPolicy(), "op", func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 1, calls)
}

func TestDoValRetriesTransient(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), fastPolicy(), "op", func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, NewTransientError(errors.New("overloaded"), 529)
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.Equal(t, 3, calls)
}

func TestDoValDoesNotRetryPermanent(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastPolicy(), "op", func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("invalid request")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoValExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastPolicy(), "op", func(ctx context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("status 503"), 503)
	})

	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoValStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := DoVal(ctx, fastPolicy(), "op", func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(errors.New("rate limit"), 429)
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	p := Policy{
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     40 * time.Millisecond,
		Multiplier:     2.0,
	}

	assert.Equal(t, 10*time.Millisecond, p.backoff(0))
	assert.Equal(t, 20*time.Millisecond, p.backoff(1))
	assert.Equal(t, 40*time.Millisecond, p.backoff(2))
	assert.Equal(t, 40*time.Millisecond, p.backoff(5)) // capped
}

func TestBackoffJitterStaysInBand(t *testing.T) {
	p := Policy{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}

	for i := 0; i < 50; i++ {
		d := p.backoff(0)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"tagged transient", NewTransientError(errors.New("x"), 503), true},
		{"wrapped transient", errors.Join(errors.New("outer"), NewTransientError(errors.New("x"), 0)), true},
		{"rate limit text", errors.New("api error: rate limit exceeded"), true},
		{"overloaded text", errors.New("anthropic: overloaded"), true},
		{"status 429 text", errors.New("request failed with status 429"), true},
		{"io timeout text", errors.New("read tcp: i/o timeout"), true},
		{"plain error", errors.New("bad request"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
