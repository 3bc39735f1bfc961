package main

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store holds the latest Reading. The zero Reading (all fields null) is
// returned until the first successful Set.
type Store struct {
	// mu protects latest (RWMutex allows multiple readers)
	mu     sync.RWMutex
	latest Reading

	now    func() time.Time
	logger *zap.Logger
}

// NewStore creates an empty store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		now:    time.Now,
		logger: logger.Named("store"),
	}
}

// Set coerces in into a Reading stamped with the current local time and
// replaces the stored Reading with it. The store is left untouched when any
// field fails validation.
func (s *Store) Set(in readingInput) (Reading, error) {
	current, err := coerceNumber("current", in.Current)
	if err != nil {
		return Reading{}, err
	}
	voltage, err := coerceNumber("voltage", in.Voltage)
	if err != nil {
		return Reading{}, err
	}
	timing, err := normalizeTiming(in.Timing)
	if err != nil {
		return Reading{}, err
	}

	at := s.now()
	ts := at.Local().Format(timestampLayout)
	next := Reading{
		Current:   current,
		Voltage:   voltage,
		Timing:    timing,
		Timestamp: &ts,
	}

	s.mu.Lock()
	s.latest = next
	s.mu.Unlock()
	observeReading(at)

	s.logger.Info("received reading", zap.Object("reading", next))
	return next, nil
}

// Get returns the stored Reading.
func (s *Store) Get() Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}
