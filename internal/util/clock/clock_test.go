package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mkrupp/promptbank/internal/util/clock"
)

func TestManual_Advance(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := clock.NewManual(start)

	var fired []string

	c.AfterFunc(2*time.Minute, func() { fired = append(fired, "b") })
	c.AfterFunc(time.Minute, func() { fired = append(fired, "a") })
	stopped := c.AfterFunc(90*time.Second, func() { fired = append(fired, "stopped") })

	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())

	c.Advance(time.Minute)
	assert.Equal(t, []string{"a"}, fired)
	assert.Equal(t, start.Add(time.Minute), c.Now())

	c.Advance(10 * time.Minute)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, start.Add(11*time.Minute), c.Now())
	assert.Zero(t, c.Pending())
}

func TestManual_RearmingTask(t *testing.T) {
	t.Parallel()

	c := clock.NewManual(time.Unix(0, 0))
	runs := 0

	var tick func()
	tick = func() {
		runs++
		c.AfterFunc(5*time.Minute, tick)
	}
	c.AfterFunc(5*time.Minute, tick)

	c.Advance(16 * time.Minute)

	assert.Equal(t, 3, runs)
	assert.Equal(t, 1, c.Pending())
}
