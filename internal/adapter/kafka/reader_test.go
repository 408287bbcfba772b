package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextBackoffDoubles(t *testing.T) {
	assert.Equal(t, 400*time.Millisecond, nextBackoff(200*time.Millisecond))
	assert.Equal(t, 800*time.Millisecond, nextBackoff(400*time.Millisecond))
}

func TestNextBackoffCapped(t *testing.T) {
	assert.Equal(t, maxBackoff, nextBackoff(3*time.Second))
	assert.Equal(t, maxBackoff, nextBackoff(maxBackoff))
}

func TestSleepWithContextCompletes(t *testing.T) {
	err := sleepWithContext(context.Background(), time.Millisecond)
	assert.NoError(t, err)
}

func TestSleepWithContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := sleepWithContext(ctx, time.Minute)

	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
