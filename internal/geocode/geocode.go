// Package geocode resolves free-text queries to coordinates and coordinates
// to display names.
package geocode

import (
	"context"
	"errors"
	"fmt"

	"github.com/i474232898/sunny-forecast/internal/weather"
)

// ErrNotFound is returned when a search has no match.
var ErrNotFound = errors.New("location not found")

// Place is a geocoding match.
type Place struct {
	Coordinates weather.Coordinates `json:"coordinates"`
	DisplayName string              `json:"displayName"`
}

// Geocoder is implemented by every backend and by the cache decorator.
type Geocoder interface {
	Search(ctx context.Context, query string) (Place, error)
	Reverse(ctx context.Context, at weather.Coordinates) (string, error)
}

// FallbackName is the display name used when reverse lookup fails.
func FallbackName(at weather.Coordinates) string {
	return fmt.Sprintf("Location (%.2f, %.2f)", at.Lat, at.Lon)
}
