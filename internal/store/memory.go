package store

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/sunny-forecast/internal/weather"
)

var (
	// ErrNotFound is returned when no history is available for a given location.
	ErrNotFound = errors.New("no forecast history for location")
)

// HistoryStore is a concurrency-safe in-memory log of consensus forecasts,
// keyed by location id.
type HistoryStore struct {
	mu sync.RWMutex

	// key: location id, value: records ordered by FetchedAt
	data map[string][]weather.HistoryRecord

	// retention configuration
	maxHistory int           // max number of records per location
	maxAge     time.Duration // optional max age for records

	clock clockwork.Clock
}

// NewHistoryStore creates a new HistoryStore with optional limits.
// If maxHistory or maxAge is <= 0, it is treated as unlimited.
func NewHistoryStore(maxHistory int, maxAge time.Duration, clock clockwork.Clock) *HistoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &HistoryStore{
		data:       make(map[string][]weather.HistoryRecord),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		clock:      clock,
	}
}

// Save appends a record for its location and enforces retention.
func (s *HistoryStore) Save(rec weather.HistoryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.data[rec.LocationID], rec)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history) > s.maxHistory {
		history = history[len(history)-s.maxHistory:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := s.clock.Now().Add(-s.maxAge)
		i := 0
		for i < len(history) && history[i].FetchedAt.Before(cutoff) {
			i++
		}
		history = history[i:]
	}

	if len(history) == 0 {
		delete(s.data, rec.LocationID)
		return
	}
	s.data[rec.LocationID] = history
}

// Latest returns the most recent record for a location.
func (s *HistoryStore) Latest(locationID string) (weather.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.data[locationID]
	if len(history) == 0 {
		return weather.HistoryRecord{}, ErrNotFound
	}
	return history[len(history)-1], nil
}

// All returns every retained record for a location, oldest first.
func (s *HistoryStore) All(locationID string) ([]weather.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.data[locationID]
	if len(history) == 0 {
		return nil, ErrNotFound
	}
	out := make([]weather.HistoryRecord, len(history))
	copy(out, history)
	return out, nil
}

// Range returns the records for a location fetched between from and to (inclusive).
func (s *HistoryStore) Range(locationID string, from, to time.Time) ([]weather.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []weather.HistoryRecord
	for _, rec := range s.data[locationID] {
		if !rec.FetchedAt.Before(from) && !rec.FetchedAt.After(to) {
			result = append(result, rec)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

// Reset drops every location's history.
func (s *HistoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string][]weather.HistoryRecord)
}
