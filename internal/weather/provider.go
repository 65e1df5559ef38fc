package weather

import (
	"context"
	"time"
)

// Provider identifiers, listed in backfill priority order.
const (
	ProviderOpenWeather    = "openweathermap"
	ProviderWeatherAPI     = "weatherapi"
	ProviderVisualCrossing = "visualcrossing"
	ProviderTomorrowIO     = "tomorrowio"
	ProviderMetNo          = "metno"
	ProviderOpenMeteo      = "openmeteo"
)

// DefaultPriority is the order in which secondary fields are backfilled,
// most trusted first.
var DefaultPriority = []string{
	ProviderOpenWeather,
	ProviderWeatherAPI,
	ProviderVisualCrossing,
	ProviderTomorrowIO,
	ProviderMetNo,
	ProviderOpenMeteo,
}

// Provider abstracts a weather data source (e.g. OpenWeatherMap, WeatherAPI, Open-Meteo).
//
// Fetch never returns an error: transport, decoding and missing-data problems
// are reported through the sample's Outcome.
type Provider interface {
	ID() string
	Weight() float64
	RequiresCredential() bool
	Fetch(ctx context.Context, at Coordinates, target time.Time, credential string) SourceSample
}
