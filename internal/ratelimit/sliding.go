// Package ratelimit tracks login attempts per identifier inside a sliding time window.
package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultMaxAttempts   = 5
	DefaultWindowMinutes = 15
)

// SlidingWindow counts attempts within the last window relative to now. State is process
// local; entries are pruned every time an identifier is read.
type SlidingWindow struct {
	maxAttempts int
	window      time.Duration
	now         func() time.Time

	mu       sync.Mutex
	attempts map[string][]time.Time
}

type Option func(*SlidingWindow)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *SlidingWindow) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSlidingWindow(maxAttempts int, windowMinutes int, opts ...Option) *SlidingWindow {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if windowMinutes <= 0 {
		windowMinutes = DefaultWindowMinutes
	}

	s := &SlidingWindow{
		maxAttempts: maxAttempts,
		window:      time.Duration(windowMinutes) * time.Minute,
		now:         time.Now,
		attempts:    map[string][]time.Time{},
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// IsRateLimited prunes attempts older than the window and reports whether the
// remaining count has reached the maximum.
func (s *SlidingWindow) IsRateLimited(identifier string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.pruneLocked(identifier)) >= s.maxAttempts
}

func (s *SlidingWindow) RecordAttempt(identifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts[identifier] = append(s.pruneLocked(identifier), s.now())
}

// Attempts returns the number of attempts currently inside the window.
func (s *SlidingWindow) Attempts(identifier string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.pruneLocked(identifier))
}

// Sweep prunes every identifier and returns how many were dropped for being empty.
func (s *SlidingWindow) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.attempts)
	for identifier := range s.attempts {
		s.pruneLocked(identifier)
	}

	return before - len(s.attempts)
}

func (s *SlidingWindow) pruneLocked(identifier string) []time.Time {
	entries, ok := s.attempts[identifier]
	if !ok {
		return nil
	}

	windowStart := s.now().Add(-s.window)
	kept := entries[:0]
	for _, at := range entries {
		if at.After(windowStart) {
			kept = append(kept, at)
		}
	}

	if len(kept) == 0 {
		delete(s.attempts, identifier)
		return nil
	}

	s.attempts[identifier] = kept
	return kept
}
