package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/sunny-forecast/internal/weather"
)

const openMeteoHourly = "temperature_2m,apparent_temperature,relative_humidity_2m,cloud_cover," +
	"wind_speed_10m,wind_direction_10m,pressure_msl,visibility,uv_index,weather_code"

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
// It needs no credential.
type OpenMeteoProvider struct {
	base
}

func NewOpenMeteoProvider(client *http.Client) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		base: newBase(weather.ProviderOpenMeteo, 1.0, "https://api.open-meteo.com/v1/forecast", client),
	}
}

func (p *OpenMeteoProvider) RequiresCredential() bool {
	return false
}

// Hourly arrays are parallel to Time; any value may be null.
type openMeteoHourlyBlock struct {
	Time                []int64    `json:"time"`
	Temperature         []*float64 `json:"temperature_2m"`
	ApparentTemperature []*float64 `json:"apparent_temperature"`
	RelativeHumidity    []*float64 `json:"relative_humidity_2m"`
	CloudCover          []*float64 `json:"cloud_cover"`
	WindSpeed           []*float64 `json:"wind_speed_10m"`
	WindDirection       []*float64 `json:"wind_direction_10m"`
	PressureMSL         []*float64 `json:"pressure_msl"`
	Visibility          []*float64 `json:"visibility"`
	UVIndex             []*float64 `json:"uv_index"`
	WeatherCode         []*int     `json:"weather_code"`
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, at weather.Coordinates, target time.Time, _ string) weather.SourceSample {
	days := clampInt(daysAhead(p.clock.Now(), target)+2, 1, 16)

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", coord(at.Lat))
		values.Set("longitude", coord(at.Lon))
		values.Set("hourly", openMeteoHourly)
		values.Set("forecast_days", strconv.Itoa(days))
		values.Set("timeformat", "unixtime")
		values.Set("timezone", "UTC")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	var payload struct {
		Hourly *openMeteoHourlyBlock `json:"hourly"`
	}
	if err := p.fetchJSON(ctx, buildRequest, &payload); err != nil {
		return p.failed(weather.ReasonRequestError, err)
	}
	if payload.Hourly == nil {
		return p.failed(weather.ReasonNoData, fmt.Errorf("response has no hourly block"))
	}

	h := payload.Hourly
	times := make([]time.Time, len(h.Time))
	for i, t := range h.Time {
		times[i] = time.Unix(t, 0).UTC()
	}
	idx, err := weather.SelectClosest(times, target)
	if err != nil {
		return p.failed(weather.ReasonNoData, err)
	}

	temp := at64(h.Temperature, idx)
	clouds := at64(h.CloudCover, idx)
	if temp == nil || clouds == nil {
		return p.failed(weather.ReasonNoData, fmt.Errorf("hour at %s lacks temperature or cloud cover", times[idx]))
	}

	cond := weather.ConditionUnknown
	desc := ""
	if code := atInt(h.WeatherCode, idx); code != nil {
		cond = mapOpenMeteoCondition(*code)
		desc = describeWMO(*code)
	}

	return weather.SourceSample{
		ProviderID:        p.id,
		ReliabilityWeight: p.weight,
		Timestamp:         times[idx],
		TemperatureC:      temp,
		FeelsLikeC:        at64(h.ApparentTemperature, idx),
		HumidityPct:       at64(h.RelativeHumidity, idx),
		CloudCoverPct:     clouds,
		WindSpeedKmh:      at64(h.WindSpeed, idx),
		WindDirectionDeg:  at64(h.WindDirection, idx),
		PressureHpa:       at64(h.PressureMSL, idx),
		VisibilityM:       at64(h.Visibility, idx),
		UVIndex:           at64(h.UVIndex, idx),
		Condition:         cond,
		Description:       desc,
		Icon:              weather.IconFor(cond, clouds),
	}
}

func at64(values []*float64, i int) *float64 {
	if i < 0 || i >= len(values) {
		return nil
	}
	return values[i]
}

func atInt(values []*int, i int) *int {
	if i < 0 || i >= len(values) {
		return nil
	}
	return values[i]
}

// mapOpenMeteoCondition maps WMO weather interpretation codes.
func mapOpenMeteoCondition(code int) weather.Condition {
	switch {
	case code == 0:
		return weather.ConditionClear
	case code >= 1 && code <= 3:
		return weather.ConditionClouds
	case code == 45 || code == 48:
		return weather.ConditionFog
	case code >= 51 && code <= 57:
		return weather.ConditionDrizzle
	case (code >= 61 && code <= 67) || (code >= 80 && code <= 82):
		return weather.ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return weather.ConditionSnow
	case code >= 95 && code <= 99:
		return weather.ConditionThunderstorm
	default:
		return weather.ConditionUnknown
	}
}

var wmoDescriptions = map[int]string{
	0:  "clear sky",
	1:  "mainly clear",
	2:  "partly cloudy",
	3:  "overcast",
	45: "fog",
	48: "depositing rime fog",
	51: "light drizzle",
	53: "moderate drizzle",
	55: "dense drizzle",
	61: "slight rain",
	63: "moderate rain",
	65: "heavy rain",
	71: "slight snow fall",
	73: "moderate snow fall",
	75: "heavy snow fall",
	80: "slight rain showers",
	81: "moderate rain showers",
	82: "violent rain showers",
	95: "thunderstorm",
	96: "thunderstorm with slight hail",
	99: "thunderstorm with heavy hail",
}

func describeWMO(code int) string {
	if d, ok := wmoDescriptions[code]; ok {
		return d
	}
	return string(mapOpenMeteoCondition(code))
}
