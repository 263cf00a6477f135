package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shortContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	t.Cleanup(cancel)
	return ctx
}

func TestNewSelectsImplementation(t *testing.T) {
	assert.IsType(t, Unlimited{}, New(0, 1))
	assert.IsType(t, &Paced{}, New(5, 1))
}

func TestPacedBurst(t *testing.T) {
	p := NewPaced(1, 3)

	for i := 0; i < 3; i++ {
		assert.NoError(t, p.Wait(shortContext(t)), "request %d within burst", i+1)
	}
	assert.Error(t, p.Wait(shortContext(t)), "burst exhausted")
}

func TestPacedWaitSpacesRequests(t *testing.T) {
	p := NewPaced(20, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Wait(ctx))
	}
	// First token is immediate, the next two are 50ms apart.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestPacedWaitHonorsContext(t *testing.T) {
	p := NewPaced(0.1, 1)
	require.NoError(t, p.Wait(context.Background()))
	assert.Error(t, p.Wait(shortContext(t)))
}

func TestUnlimited(t *testing.T) {
	var l Limiter = Unlimited{}
	for i := 0; i < 100; i++ {
		assert.NoError(t, l.Wait(context.Background()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.Canceled)
}

func TestZeroBurstIsRaised(t *testing.T) {
	p := NewPaced(10, 0)
	assert.NoError(t, p.Wait(shortContext(t)))
}
