package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/i474232898/sunny-forecast/internal/weather"
)

// TomorrowIOProvider implements the weather.Provider interface for the
// Tomorrow.io v4 hourly forecast.
type TomorrowIOProvider struct {
	base
}

func NewTomorrowIOProvider(client *http.Client) *TomorrowIOProvider {
	return &TomorrowIOProvider{
		base: newBase(weather.ProviderTomorrowIO, 1.5, "https://api.tomorrow.io/v4/weather/forecast", client),
	}
}

func (p *TomorrowIOProvider) RequiresCredential() bool {
	return true
}

type tomorrowIOInterval struct {
	Time   *time.Time `json:"time"`
	Values *struct {
		Temperature          *float64 `json:"temperature"`
		TemperatureApparent  *float64 `json:"temperatureApparent"`
		Humidity             *float64 `json:"humidity"`
		CloudCover           *float64 `json:"cloudCover"`
		WindSpeed            *float64 `json:"windSpeed"`
		WindDirection        *float64 `json:"windDirection"`
		PressureSurfaceLevel *float64 `json:"pressureSurfaceLevel"`
		Visibility           *float64 `json:"visibility"`
		UVIndex              *float64 `json:"uvIndex"`
		WeatherCode          *int     `json:"weatherCode"`
	} `json:"values"`
}

func (p *TomorrowIOProvider) Fetch(ctx context.Context, at weather.Coordinates, target time.Time, credential string) weather.SourceSample {
	if credential == "" {
		return p.failed(weather.ReasonNoCredential, nil)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("location", fmt.Sprintf("%s,%s", coord(at.Lat), coord(at.Lon)))
		values.Set("apikey", credential)
		values.Set("timesteps", "1h")
		values.Set("units", "metric")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	var payload struct {
		Timelines *struct {
			Hourly []tomorrowIOInterval `json:"hourly"`
		} `json:"timelines"`
	}
	if err := p.fetchJSON(ctx, buildRequest, &payload); err != nil {
		return p.failed(weather.ReasonRequestError, err)
	}
	if payload.Timelines == nil {
		return p.failed(weather.ReasonNoData, fmt.Errorf("response has no timelines block"))
	}

	iv, ts, err := pick(payload.Timelines.Hourly, func(i tomorrowIOInterval) (time.Time, bool) {
		if i.Time == nil || i.Values == nil {
			return time.Time{}, false
		}
		return i.Time.UTC(), true
	}, target)
	if err != nil {
		return p.failed(weather.ReasonNoData, err)
	}

	v := iv.Values
	if v.Temperature == nil || v.CloudCover == nil {
		return p.failed(weather.ReasonNoData, fmt.Errorf("interval at %s lacks temperature or cloud cover", ts))
	}

	code := tomorrowIOCode{weather.ConditionUnknown, ""}
	if v.WeatherCode != nil {
		code = lookupTomorrowIOCode(*v.WeatherCode)
	}

	return weather.SourceSample{
		ProviderID:        p.id,
		ReliabilityWeight: p.weight,
		Timestamp:         ts,
		TemperatureC:      v.Temperature,
		FeelsLikeC:        v.TemperatureApparent,
		HumidityPct:       v.Humidity,
		CloudCoverPct:     v.CloudCover,
		WindSpeedKmh:      msToKmh(v.WindSpeed),
		WindDirectionDeg:  v.WindDirection,
		PressureHpa:       v.PressureSurfaceLevel,
		VisibilityM:       kmToMeters(v.Visibility),
		UVIndex:           v.UVIndex,
		Condition:         code.condition,
		Description:       code.description,
		Icon:              weather.IconFor(code.condition, v.CloudCover),
	}
}

type tomorrowIOCode struct {
	condition   weather.Condition
	description string
}

var tomorrowIOCodes = map[int]tomorrowIOCode{
	1000: {weather.ConditionClear, "clear, sunny"},
	1100: {weather.ConditionClear, "mostly clear"},
	1101: {weather.ConditionClouds, "partly cloudy"},
	1102: {weather.ConditionClouds, "mostly cloudy"},
	1001: {weather.ConditionClouds, "cloudy"},
	2000: {weather.ConditionFog, "fog"},
	2100: {weather.ConditionFog, "light fog"},
	4000: {weather.ConditionDrizzle, "drizzle"},
	4001: {weather.ConditionRain, "rain"},
	4200: {weather.ConditionRain, "light rain"},
	4201: {weather.ConditionRain, "heavy rain"},
	5000: {weather.ConditionSnow, "snow"},
	5001: {weather.ConditionSnow, "flurries"},
	5100: {weather.ConditionSnow, "light snow"},
	5101: {weather.ConditionSnow, "heavy snow"},
	6000: {weather.ConditionDrizzle, "freezing drizzle"},
	6001: {weather.ConditionRain, "freezing rain"},
	6200: {weather.ConditionRain, "light freezing rain"},
	6201: {weather.ConditionRain, "heavy freezing rain"},
	7000: {weather.ConditionSnow, "ice pellets"},
	7101: {weather.ConditionSnow, "heavy ice pellets"},
	7102: {weather.ConditionSnow, "light ice pellets"},
	8000: {weather.ConditionThunderstorm, "thunderstorm"},
}

func lookupTomorrowIOCode(code int) tomorrowIOCode {
	if c, ok := tomorrowIOCodes[code]; ok {
		return c
	}
	return tomorrowIOCode{weather.ConditionUnknown, ""}
}
