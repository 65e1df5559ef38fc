package providers

import (
	"net/http"

	"github.com/i474232898/sunny-forecast/internal/weather"
)

// NewDefault builds the full provider set in backfill priority order.
func NewDefault(client *http.Client, metNoUserAgent string) []weather.Provider {
	return []weather.Provider{
		NewOpenWeatherProvider(client),
		NewWeatherAPIProvider(client),
		NewVisualCrossingProvider(client),
		NewTomorrowIOProvider(client),
		NewMetNoProvider(client, metNoUserAgent),
		NewOpenMeteoProvider(client),
	}
}
