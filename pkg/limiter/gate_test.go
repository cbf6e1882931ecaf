package limiter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGate(baseDelay time.Duration, requestsPerSecond int) *Gate {
	rl := NewConcurrentRateLimiter()
	rl.SetBaseDelay(baseDelay)
	return NewGate(rl, requestsPerSecond)
}

func TestGate_FirstAcquireDoesNotWait(t *testing.T) {
	gate := newTestGate(1*time.Second, 2)

	start := time.Now()
	err := gate.Acquire(context.Background(), "example.com")
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 200*time.Millisecond,
		"a host with no prior fetch must not be delayed")
}

func TestGate_SameHostAcquiresAreSpaced(t *testing.T) {
	delay := 150 * time.Millisecond
	gate := newTestGate(delay, 2)
	ctx := context.Background()

	require.NoError(t, gate.Acquire(ctx, "example.com"))

	start := time.Now()
	require.NoError(t, gate.Acquire(ctx, "example.com"))
	elapsed := time.Since(start)

	// allow a small epsilon for timer resolution
	assert.GreaterOrEqual(t, elapsed, delay-20*time.Millisecond,
		"consecutive acquires for one host must respect the per-host spacing")
}

func TestGate_DifferentHostsProceedConcurrently(t *testing.T) {
	gate := newTestGate(1*time.Second, 4)
	ctx := context.Background()

	// Register both hosts so a second acquire for each would have to wait.
	require.NoError(t, gate.Acquire(ctx, "a.example.com"))
	require.NoError(t, gate.Acquire(ctx, "b.example.com"))

	start := time.Now()
	var wg sync.WaitGroup
	for _, host := range []string{"a.example.com", "b.example.com"} {
		wg.Add(1)
		go func(h string) {
			defer wg.Done()
			_ = gate.Acquire(ctx, h)
		}(host)
	}
	wg.Wait()

	// Each host waits ~1s, but they must wait in parallel, not serially.
	assert.Less(t, time.Since(start), 1500*time.Millisecond,
		"acquires for different hosts must not serialize each other")
}

func TestGate_SameHostAcquiresAreSerialized(t *testing.T) {
	delay := 100 * time.Millisecond
	gate := newTestGate(delay, 8)
	ctx := context.Background()

	require.NoError(t, gate.Acquire(ctx, "example.com"))

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = gate.Acquire(ctx, "example.com")
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, time.Since(start), 3*delay-30*time.Millisecond,
		"N concurrent acquires for one host must pay N spacing intervals")
}

func TestGate_InstallDelayOverridesSpacing(t *testing.T) {
	gate := newTestGate(10*time.Millisecond, 2)
	ctx := context.Background()

	gate.InstallDelay("slow.example.com", 200*time.Millisecond)

	require.NoError(t, gate.Acquire(ctx, "slow.example.com"))

	start := time.Now()
	require.NoError(t, gate.Acquire(ctx, "slow.example.com"))

	assert.GreaterOrEqual(t, time.Since(start), 180*time.Millisecond,
		"an installed per-host delay must override the default spacing")
}

func TestGate_AcquireHonorsContextCancellation(t *testing.T) {
	gate := newTestGate(5*time.Second, 2)

	require.NoError(t, gate.Acquire(context.Background(), "example.com"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := gate.Acquire(ctx, "example.com")

	assert.Error(t, err)
	assert.Less(t, time.Since(start), 1*time.Second,
		"a cancelled context must interrupt the spacing wait")
}
