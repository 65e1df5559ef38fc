package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/sunny-forecast/internal/weather"
)

type AppConfig struct {
	Port        string        `validate:"required,numeric"`
	HTTPTimeout time.Duration `validate:"gt=0"`

	// RefreshInterval controls how often every tracked location is refreshed.
	RefreshInterval time.Duration `validate:"gte=1m"`

	OpenWeatherAPIKey    string
	WeatherAPIKey        string
	VisualCrossingAPIKey string
	TomorrowIOAPIKey     string
	MetNoUserAgent       string

	Geocoder              string `validate:"oneof=nominatim google"`
	GoogleGeocoderAPIKey  string `validate:"required_if=Geocoder google"`
	NominatimURL          string `validate:"omitempty,url"`
	NominatimCountryCodes string
	GeocodeCacheSize      int `validate:"gte=0"`

	CredentialStore string `validate:"oneof=memory mongo"`
	MongoURI        string `validate:"required_if=CredentialStore mongo"`
	MongoDatabase   string `validate:"required_if=CredentialStore mongo"`

	// Forecast history retention.
	HistoryMax    int           `validate:"gte=0"` // max records per location (0 = unlimited)
	HistoryMaxAge time.Duration `validate:"gte=0"` // max age of records (0 = unlimited)

	// Locations added at startup.
	InitialLocations []weather.Coordinates `validate:"max=10"`

	LogLevel  string `validate:"oneof=trace debug info warn warning error"`
	LogFormat string `validate:"oneof=json text"`
}

var validate = validator.New()

// Load reads configuration from the environment (and .env if present) with
// sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := &AppConfig{}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", "30m"); err != nil {
		return nil, err
	}
	if cfg.HistoryMaxAge, err = getenvDuration("HISTORY_MAX_AGE", "24h"); err != nil {
		return nil, err
	}
	cfg.HistoryMax = getenvInt("HISTORY_MAX", 48) // a day at 30-minute refreshes

	cfg.Port = getenvDefault("PORT", "8080")

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	cfg.VisualCrossingAPIKey = os.Getenv("VISUALCROSSING_API_KEY")
	cfg.TomorrowIOAPIKey = os.Getenv("TOMORROWIO_API_KEY")
	cfg.MetNoUserAgent = os.Getenv("METNO_USER_AGENT")

	cfg.Geocoder = strings.ToLower(getenvDefault("GEOCODER", "nominatim"))
	cfg.GoogleGeocoderAPIKey = os.Getenv("GOOGLE_GEOCODER_API_KEY")
	cfg.NominatimURL = getenvDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org")
	cfg.NominatimCountryCodes = getenvDefault("NOMINATIM_COUNTRY_CODES", "ch,fr,it,at,de")
	cfg.GeocodeCacheSize = getenvInt("GEOCODE_CACHE_SIZE", 256)

	cfg.CredentialStore = strings.ToLower(getenvDefault("CREDENTIAL_STORE", "memory"))
	cfg.MongoURI = os.Getenv("MONGO_URI")
	cfg.MongoDatabase = getenvDefault("MONGO_DATABASE", "sunny_forecast")

	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", "info"))
	cfg.LogFormat = strings.ToLower(getenvDefault("LOG_FORMAT", "json"))

	locs, err := ParseLocations(os.Getenv("INITIAL_LOCATIONS"))
	if err != nil {
		return nil, err
	}
	cfg.InitialLocations = locs

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Credentials returns the configured provider credentials keyed by provider id.
// Providers without a configured key are omitted.
func (c *AppConfig) Credentials() map[string]string {
	creds := map[string]string{
		weather.ProviderOpenWeather:    c.OpenWeatherAPIKey,
		weather.ProviderWeatherAPI:     c.WeatherAPIKey,
		weather.ProviderVisualCrossing: c.VisualCrossingAPIKey,
		weather.ProviderTomorrowIO:     c.TomorrowIOAPIKey,
	}
	for id, v := range creds {
		if v == "" {
			delete(creds, id)
		}
	}
	return creds
}

// ParseLocations parses "lat,lon;lat,lon". Empty input yields no locations.
func ParseLocations(s string) ([]weather.Coordinates, error) {
	var locs []weather.Coordinates
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.Split(pair, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid INITIAL_LOCATIONS entry %q: want lat,lon", pair)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil || lat < -90 || lat > 90 {
			return nil, fmt.Errorf("invalid latitude in INITIAL_LOCATIONS entry %q", pair)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("invalid longitude in INITIAL_LOCATIONS entry %q", pair)
		}
		locs = append(locs, weather.Coordinates{Lat: lat, Lon: lon})
	}
	return locs, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
