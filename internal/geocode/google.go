package geocode

import (
	"context"
	"fmt"
	"strings"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/sunny-forecast/internal/weather"
)

// GoogleGeocoder implements Geocoder with the Google Geocoding API.
// The underlying library keeps the API key in a package variable, so a
// process should hold a single instance.
type GoogleGeocoder struct {
	geocode func(geocoder.Address) (geocoder.Location, error)
	reverse func(geocoder.Location) ([]geocoder.Address, error)
}

func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{
		geocode: geocoder.Geocoding,
		reverse: geocoder.GeocodingReverse,
	}
}

// Search resolves query as a free-form address.
func (g *GoogleGeocoder) Search(ctx context.Context, query string) (Place, error) {
	loc, err := withContext(ctx, func() (geocoder.Location, error) {
		return g.geocode(geocoder.Address{City: query})
	})
	if err != nil {
		return Place{}, googleError(fmt.Sprintf("google geocode %q", query), err)
	}

	at := weather.Coordinates{Lat: loc.Latitude, Lon: loc.Longitude}
	name := query
	if addrs, err := withContext(ctx, func() ([]geocoder.Address, error) {
		return g.reverse(loc)
	}); err == nil && len(addrs) > 0 && addrs[0].FormattedAddress != "" {
		name = addrs[0].FormattedAddress
	}
	return Place{Coordinates: at, DisplayName: name}, nil
}

// Reverse returns the formatted address of the first result.
func (g *GoogleGeocoder) Reverse(ctx context.Context, at weather.Coordinates) (string, error) {
	addrs, err := withContext(ctx, func() ([]geocoder.Address, error) {
		return g.reverse(geocoder.Location{Latitude: at.Lat, Longitude: at.Lon})
	})
	if err != nil {
		return "", googleError("google reverse geocode "+at.String(), err)
	}
	if len(addrs) == 0 || addrs[0].FormattedAddress == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, at)
	}
	return addrs[0].FormattedAddress, nil
}

// withContext runs a blocking library call and abandons it when ctx ends.
// zeroResultsMessage is the text geocoder returns for a ZERO_RESULTS status.
const zeroResultsMessage = "No results found."

// googleError maps a zero-results answer to ErrNotFound and wraps
// everything else unchanged.
func googleError(op string, err error) error {
	if strings.TrimSpace(err.Error()) == zeroResultsMessage {
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func withContext[T any](ctx context.Context, call func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := call()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
