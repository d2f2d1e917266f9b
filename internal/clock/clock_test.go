// internal/clock/clock_test.go
package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealSleep(t *testing.T) {
	start := time.Now()
	require.NoError(t, Real{}.Sleep(context.Background(), 5*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, Real{}.Sleep(ctx, time.Minute), context.DeadlineExceeded)
}

func TestFake(t *testing.T) {
	f := NewFake()
	start := f.Now()

	var hooked []time.Duration
	f.OnSleep(func(d time.Duration) { hooked = append(hooked, d) })

	require.NoError(t, f.Sleep(context.Background(), time.Second))
	require.NoError(t, f.Sleep(context.Background(), 2*time.Second))
	assert.Equal(t, 3*time.Second, f.Now().Sub(start))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, f.Slept())
	assert.Equal(t, f.Slept(), hooked)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, f.Sleep(ctx, time.Second), context.Canceled)
	assert.Equal(t, 3*time.Second, f.Now().Sub(start))
}
