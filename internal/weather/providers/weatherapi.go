package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/sunny-forecast/internal/common"
	"github.com/i474232898/sunny-forecast/internal/weather"
)

// WeatherAPIProvider implements the weather.Provider interface for the
// WeatherAPI.com hourly forecast.
type WeatherAPIProvider struct {
	base
}

func NewWeatherAPIProvider(client *http.Client) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		base: newBase(weather.ProviderWeatherAPI, 1.5, "https://api.weatherapi.com/v1/forecast.json", client),
	}
}

func (p *WeatherAPIProvider) RequiresCredential() bool {
	return true
}

type weatherAPIHour struct {
	TimeEpoch  *int64   `json:"time_epoch"`
	TempC      *float64 `json:"temp_c"`
	FeelsLikeC *float64 `json:"feelslike_c"`
	Humidity   *float64 `json:"humidity"`
	Cloud      *float64 `json:"cloud"`
	WindKph    *float64 `json:"wind_kph"`
	WindDegree *float64 `json:"wind_degree"`
	PressureMb *float64 `json:"pressure_mb"`
	VisKm      *float64 `json:"vis_km"`
	UV         *float64 `json:"uv"`
	Condition  *struct {
		Text string `json:"text"`
	} `json:"condition"`
}

func (p *WeatherAPIProvider) Fetch(ctx context.Context, at weather.Coordinates, target time.Time, credential string) weather.SourceSample {
	if credential == "" {
		return p.failed(weather.ReasonNoCredential, nil)
	}

	days := clampInt(daysAhead(p.clock.Now(), target)+1, 1, 10)

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", credential)
		// WeatherAPI uses "q" for location; it accepts "lat,lon".
		values.Set("q", fmt.Sprintf("%s,%s", coord(at.Lat), coord(at.Lon)))
		values.Set("days", strconv.Itoa(days))
		values.Set("aqi", "no")
		values.Set("alerts", "no")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	var payload struct {
		Forecast *struct {
			Forecastday []struct {
				Hour []weatherAPIHour `json:"hour"`
			} `json:"forecastday"`
		} `json:"forecast"`
	}
	if err := p.fetchJSON(ctx, buildRequest, &payload); err != nil {
		return p.failed(weather.ReasonRequestError, err)
	}
	if payload.Forecast == nil {
		return p.failed(weather.ReasonNoData, fmt.Errorf("response has no forecast block"))
	}

	var hours []weatherAPIHour
	for _, d := range payload.Forecast.Forecastday {
		hours = append(hours, d.Hour...)
	}

	hour, ts, err := pick(hours, func(h weatherAPIHour) (time.Time, bool) {
		if h.TimeEpoch == nil {
			return time.Time{}, false
		}
		return time.Unix(*h.TimeEpoch, 0).UTC(), true
	}, target)
	if err != nil {
		return p.failed(weather.ReasonNoData, err)
	}
	if hour.TempC == nil || hour.Cloud == nil {
		return p.failed(weather.ReasonNoData, fmt.Errorf("hour at %s lacks temperature or cloud cover", ts))
	}

	sample := weather.SourceSample{
		ProviderID:        p.id,
		ReliabilityWeight: p.weight,
		Timestamp:         ts,
		TemperatureC:      hour.TempC,
		FeelsLikeC:        hour.FeelsLikeC,
		HumidityPct:       hour.Humidity,
		CloudCoverPct:     hour.Cloud,
		WindSpeedKmh:      hour.WindKph,
		WindDirectionDeg:  hour.WindDegree,
		PressureHpa:       hour.PressureMb,
		VisibilityM:       kmToMeters(hour.VisKm),
		UVIndex:           hour.UV,
		Condition:         weather.ConditionUnknown,
	}
	if hour.Condition != nil {
		sample.Condition = mapWeatherAPICondition(hour.Condition.Text)
		sample.Description = strings.TrimSpace(hour.Condition.Text)
	}
	sample.Icon = weather.IconFor(sample.Condition, sample.CloudCoverPct)

	return sample
}

// mapWeatherAPICondition matches keywords in the free-text condition.
// Order matters: "Patchy light rain with thunder" is a thunderstorm.
func mapWeatherAPICondition(text string) weather.Condition {
	t := strings.TrimSpace(text)
	switch {
	case t == "":
		return weather.ConditionUnknown
	case common.HasAny(t, "thunder", "storm"):
		return weather.ConditionThunderstorm
	case common.HasAny(t, "snow", "sleet", "blizzard", "ice pellets"):
		return weather.ConditionSnow
	case common.HasAny(t, "drizzle"):
		return weather.ConditionDrizzle
	case common.HasAny(t, "rain", "shower"):
		return weather.ConditionRain
	case common.HasAny(t, "fog", "mist"):
		return weather.ConditionFog
	case common.HasAny(t, "cloud", "overcast"):
		return weather.ConditionClouds
	case common.HasAny(t, "sunny", "clear"):
		return weather.ConditionClear
	default:
		return weather.ConditionUnknown
	}
}
