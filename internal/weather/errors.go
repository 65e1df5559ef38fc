package weather

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNoData is matched by every NoDataError.
	ErrNoData = errors.New("no provider returned usable forecast data")

	// ErrEmptySeries is returned when selecting from an empty time series.
	ErrEmptySeries = errors.New("empty time series")

	// ErrNoProviders is returned when the service has nothing to query.
	ErrNoProviders = errors.New("no weather providers configured")
)

// NoDataError is the consensus result when zero providers succeeded.
// Failures maps provider id to the reason it failed.
type NoDataError struct {
	Failures map[string]Outcome `json:"failures"`
}

func (e *NoDataError) Error() string {
	if len(e.Failures) == 0 {
		return ErrNoData.Error()
	}
	ids := make([]string, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s=%s", id, e.Failures[id].Reason))
	}
	return fmt.Sprintf("%s (%s)", ErrNoData.Error(), strings.Join(parts, ", "))
}

func (e *NoDataError) Is(target error) bool {
	return target == ErrNoData
}
