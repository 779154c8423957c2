package backoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelay_ExponentialCap(t *testing.T) {
	p := Policy{Attempts: 5, Base: time.Second, Max: 5 * time.Second, Rand: func() float64 { return 0.999999 }}

	assert.InDelta(t, float64(time.Second), float64(p.Delay(1)), float64(time.Millisecond))
	assert.InDelta(t, float64(2*time.Second), float64(p.Delay(2)), float64(time.Millisecond))
	assert.InDelta(t, float64(4*time.Second), float64(p.Delay(3)), float64(time.Millisecond))
	assert.InDelta(t, float64(5*time.Second), float64(p.Delay(4)), float64(time.Millisecond))
	assert.InDelta(t, float64(5*time.Second), float64(p.Delay(10)), float64(time.Millisecond))
}

func TestDelay_Floor(t *testing.T) {
	p := Policy{Base: time.Second, Max: time.Minute, Rand: func() float64 { return 0 }}
	assert.Equal(t, MinDelay, p.Delay(1))
	assert.Equal(t, MinDelay, p.Delay(0))
}

func TestDelay_WithinBounds(t *testing.T) {
	p := Default()
	for attempt := 1; attempt <= 8; attempt++ {
		for i := 0; i < 50; i++ {
			d := p.Delay(attempt)
			assert.GreaterOrEqual(t, d, MinDelay)
			assert.LessOrEqual(t, d, p.Max)
		}
	}
}

func TestSleep_ContextCancelled(t *testing.T) {
	p := Policy{Base: time.Hour, Max: time.Hour, Rand: func() float64 { return 1 }}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Sleep(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleep_Elapses(t *testing.T) {
	p := Policy{Base: time.Millisecond, Max: time.Millisecond}
	assert.NoError(t, p.Sleep(context.Background(), 1))
}
