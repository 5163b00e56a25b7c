// Package simclock provides the simulated clock driving playback: a current
// instant inside configured start/stop bounds, advanced from wall time
// through a rate multiplier.
package simclock

import (
	"sync"
	"time"
)

// Clock is a settable simulation clock. The render loop advances it once per
// frame; the pipeline reads it when computing time offsets and resets it to
// the start bound on wraparound.
type Clock struct {
	mu         sync.RWMutex
	start      time.Time
	stop       time.Time
	current    time.Time
	multiplier float64
}

// New constructs a clock positioned at start. A multiplier of 1 tracks wall
// time; 0 pauses playback.
func New(start, stop time.Time, multiplier float64) *Clock {
	return &Clock{
		start:      start,
		stop:       stop,
		current:    start,
		multiplier: multiplier,
	}
}

// Now returns the current simulation instant.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// SetNow moves the clock to t.
func (c *Clock) SetNow(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// Start returns the configured start bound.
func (c *Clock) Start() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.start
}

// Stop returns the configured stop bound.
func (c *Clock) Stop() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stop
}

// Span returns the configured playback window length.
func (c *Clock) Span() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stop.Sub(c.start)
}

// Multiplier returns the playback rate multiplier.
func (c *Clock) Multiplier() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.multiplier
}

// SetMultiplier changes the playback rate multiplier.
func (c *Clock) SetMultiplier(m float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.multiplier = m
}

// Advance moves the clock forward by wall scaled through the multiplier and
// returns the new instant.
func (c *Clock) Advance(wall time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(time.Duration(float64(wall) * c.multiplier))
	return c.current
}

// Reset rewinds the clock to the start bound.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.start
}
