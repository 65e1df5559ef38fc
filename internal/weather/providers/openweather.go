package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/i474232898/sunny-forecast/internal/weather"
)

// OpenWeatherProvider implements the weather.Provider interface for the
// OpenWeatherMap 5-day / 3-hour forecast.
type OpenWeatherProvider struct {
	base
}

func NewOpenWeatherProvider(client *http.Client) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		base: newBase(weather.ProviderOpenWeather, 2.0, "https://api.openweathermap.org/data/2.5/forecast", client),
	}
}

func (p *OpenWeatherProvider) RequiresCredential() bool {
	return true
}

type openWeatherEntry struct {
	Dt   *int64 `json:"dt"`
	Main *struct {
		Temp      *float64 `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		Humidity  *float64 `json:"humidity"`
		Pressure  *float64 `json:"pressure"`
	} `json:"main"`
	Clouds *struct {
		All *float64 `json:"all"`
	} `json:"clouds"`
	Wind *struct {
		Speed *float64 `json:"speed"`
		Deg   *float64 `json:"deg"`
	} `json:"wind"`
	Visibility *float64 `json:"visibility"`
	Weather    []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, at weather.Coordinates, target time.Time, credential string) weather.SourceSample {
	if credential == "" {
		return p.failed(weather.ReasonNoCredential, nil)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("lat", coord(at.Lat))
		values.Set("lon", coord(at.Lon))
		values.Set("appid", credential)
		values.Set("units", "metric")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	var payload struct {
		List []openWeatherEntry `json:"list"`
	}
	if err := p.fetchJSON(ctx, buildRequest, &payload); err != nil {
		return p.failed(weather.ReasonRequestError, err)
	}

	entry, ts, err := pick(payload.List, func(e openWeatherEntry) (time.Time, bool) {
		if e.Dt == nil {
			return time.Time{}, false
		}
		return time.Unix(*e.Dt, 0).UTC(), true
	}, target)
	if err != nil {
		return p.failed(weather.ReasonNoData, err)
	}
	if entry.Main == nil || entry.Main.Temp == nil || entry.Clouds == nil || entry.Clouds.All == nil {
		return p.failed(weather.ReasonNoData, fmt.Errorf("forecast entry at %s lacks temperature or cloud cover", ts))
	}

	sample := weather.SourceSample{
		ProviderID:        p.id,
		ReliabilityWeight: p.weight,
		Timestamp:         ts,
		TemperatureC:      entry.Main.Temp,
		FeelsLikeC:        entry.Main.FeelsLike,
		HumidityPct:       entry.Main.Humidity,
		PressureHpa:       entry.Main.Pressure,
		CloudCoverPct:     entry.Clouds.All,
		VisibilityM:       entry.Visibility,
		Condition:         weather.ConditionUnknown,
	}
	if entry.Wind != nil {
		sample.WindSpeedKmh = msToKmh(entry.Wind.Speed)
		sample.WindDirectionDeg = entry.Wind.Deg
	}
	if len(entry.Weather) > 0 {
		sample.Condition = mapOpenWeatherCondition(entry.Weather[0].Main)
		sample.Description = entry.Weather[0].Description
	}
	sample.Icon = weather.IconFor(sample.Condition, sample.CloudCoverPct)

	return sample
}

var openWeatherConditions = map[string]weather.Condition{
	"Clear":        weather.ConditionClear,
	"Clouds":       weather.ConditionClouds,
	"Rain":         weather.ConditionRain,
	"Drizzle":      weather.ConditionDrizzle,
	"Snow":         weather.ConditionSnow,
	"Thunderstorm": weather.ConditionThunderstorm,
	"Mist":         weather.ConditionFog,
	"Fog":          weather.ConditionFog,
	"Haze":         weather.ConditionFog,
}

func mapOpenWeatherCondition(main string) weather.Condition {
	if c, ok := openWeatherConditions[main]; ok {
		return c
	}
	return weather.ConditionUnknown
}
