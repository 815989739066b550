package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultRequestsPerWindow is the number of dispatches allowed inside one window.
	DefaultRequestsPerWindow = 2
	// DefaultWindow is the sliding window length.
	DefaultWindow = time.Second

	invalidRequestsTemplateConstant = "requests per window must be positive: %d"
	invalidWindowTemplateConstant   = "window must be positive: %s"
	clockMissingMessageConstant     = "limiter clock not configured"
)

// ErrClockNotConfigured indicates the limiter was constructed without a clock.
var ErrClockNotConfigured = errors.New(clockMissingMessageConstant)

// Clock abstracts time so limiter schedules can be verified deterministically.
type Clock interface {
	Now() time.Time
	After(duration time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) After(duration time.Duration) <-chan time.Time {
	return time.After(duration)
}

// SystemClock returns the wall clock.
func SystemClock() Clock {
	return systemClock{}
}

// Configuration describes the dispatch ceiling.
type Configuration struct {
	RequestsPerWindow int
	Window            time.Duration
}

// DefaultConfiguration returns two requests per second.
func DefaultConfiguration() Configuration {
	return Configuration{
		RequestsPerWindow: DefaultRequestsPerWindow,
		Window:            DefaultWindow,
	}
}

// Limiter hands out dispatch slots so that no more than RequestsPerWindow
// slots fall inside any window of length Window. Slots are granted in
// submission order.
type Limiter struct {
	configuration Configuration
	clock         Clock

	mutex sync.Mutex
	// granted holds the most recent RequestsPerWindow slots, oldest first.
	granted []time.Time
}

// NewLimiter constructs a Limiter using the provided clock.
func NewLimiter(configuration Configuration, clock Clock) (*Limiter, error) {
	if configuration.RequestsPerWindow <= 0 {
		return nil, fmt.Errorf(invalidRequestsTemplateConstant, configuration.RequestsPerWindow)
	}
	if configuration.Window <= 0 {
		return nil, fmt.Errorf(invalidWindowTemplateConstant, configuration.Window)
	}
	if clock == nil {
		return nil, ErrClockNotConfigured
	}

	return &Limiter{
		configuration: configuration,
		clock:         clock,
		granted:       make([]time.Time, 0, configuration.RequestsPerWindow),
	}, nil
}

// Configuration reports the limiter ceiling.
func (limiter *Limiter) Configuration() Configuration {
	return limiter.configuration
}

// Reserve grants the next dispatch slot and returns the time at which the
// caller may dispatch. The slot is consumed even if the caller never uses it.
func (limiter *Limiter) Reserve() time.Time {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	slot := limiter.clock.Now()
	if len(limiter.granted) == limiter.configuration.RequestsPerWindow {
		earliestAllowed := limiter.granted[0].Add(limiter.configuration.Window)
		if earliestAllowed.After(slot) {
			slot = earliestAllowed
		}
		limiter.granted = limiter.granted[1:]
	}
	if lastIndex := len(limiter.granted) - 1; lastIndex >= 0 && limiter.granted[lastIndex].After(slot) {
		slot = limiter.granted[lastIndex]
	}
	limiter.granted = append(limiter.granted, slot)

	return slot
}

// Wait blocks until the caller's slot arrives or the context ends.
func (limiter *Limiter) Wait(waitContext context.Context) error {
	if contextError := waitContext.Err(); contextError != nil {
		return contextError
	}

	slot := limiter.Reserve()
	delay := slot.Sub(limiter.clock.Now())
	if delay <= 0 {
		return nil
	}

	select {
	case <-limiter.clock.After(delay):
		return nil
	case <-waitContext.Done():
		return waitContext.Err()
	}
}
