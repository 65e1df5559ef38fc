package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/i474232898/sunny-forecast/internal/common"
	"github.com/i474232898/sunny-forecast/internal/weather"
)

// VisualCrossingProvider implements the weather.Provider interface for the
// Visual Crossing timeline API.
type VisualCrossingProvider struct {
	base
}

func NewVisualCrossingProvider(client *http.Client) *VisualCrossingProvider {
	return &VisualCrossingProvider{
		base: newBase(weather.ProviderVisualCrossing, 1.5,
			"https://weather.visualcrossing.com/VisualCrossingWebServices/rest/services/timeline", client),
	}
}

func (p *VisualCrossingProvider) RequiresCredential() bool {
	return true
}

type visualCrossingHour struct {
	DatetimeEpoch *int64   `json:"datetimeEpoch"`
	Temp          *float64 `json:"temp"`
	FeelsLike     *float64 `json:"feelslike"`
	Humidity      *float64 `json:"humidity"`
	CloudCover    *float64 `json:"cloudcover"`
	WindSpeed     *float64 `json:"windspeed"`
	WindDir       *float64 `json:"winddir"`
	Pressure      *float64 `json:"pressure"`
	Visibility    *float64 `json:"visibility"`
	UVIndex       *float64 `json:"uvindex"`
	Conditions    string   `json:"conditions"`
	Icon          string   `json:"icon"`
}

func (p *VisualCrossingProvider) Fetch(ctx context.Context, at weather.Coordinates, target time.Time, credential string) weather.SourceSample {
	if credential == "" {
		return p.failed(weather.ReasonNoCredential, nil)
	}

	// Ask for the day around the target so the series brackets it.
	from := target.UTC().AddDate(0, 0, -1).Format("2006-01-02")
	to := target.UTC().AddDate(0, 0, 1).Format("2006-01-02")

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", credential)
		values.Set("unitGroup", "metric")
		values.Set("include", "hours")
		values.Set("contentType", "json")

		location := coord(at.Lat) + "," + coord(at.Lon)
		u := fmt.Sprintf("%s/%s/%s/%s?%s", p.baseURL, location, from, to, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	var payload struct {
		Days []struct {
			Hours []visualCrossingHour `json:"hours"`
		} `json:"days"`
	}
	if err := p.fetchJSON(ctx, buildRequest, &payload); err != nil {
		return p.failed(weather.ReasonRequestError, err)
	}

	var hours []visualCrossingHour
	for _, d := range payload.Days {
		hours = append(hours, d.Hours...)
	}

	hour, ts, err := pick(hours, func(h visualCrossingHour) (time.Time, bool) {
		if h.DatetimeEpoch == nil {
			return time.Time{}, false
		}
		return time.Unix(*h.DatetimeEpoch, 0).UTC(), true
	}, target)
	if err != nil {
		return p.failed(weather.ReasonNoData, err)
	}
	if hour.Temp == nil || hour.CloudCover == nil {
		return p.failed(weather.ReasonNoData, fmt.Errorf("hour at %s lacks temperature or cloud cover", ts))
	}

	cond := mapVisualCrossingIcon(hour.Icon)

	return weather.SourceSample{
		ProviderID:        p.id,
		ReliabilityWeight: p.weight,
		Timestamp:         ts,
		TemperatureC:      hour.Temp,
		FeelsLikeC:        hour.FeelsLike,
		HumidityPct:       hour.Humidity,
		CloudCoverPct:     hour.CloudCover,
		WindSpeedKmh:      hour.WindSpeed,
		WindDirectionDeg:  hour.WindDir,
		PressureHpa:       hour.Pressure,
		VisibilityM:       kmToMeters(hour.Visibility),
		UVIndex:           hour.UVIndex,
		Condition:         cond,
		Description:       hour.Conditions,
		Icon:              weather.IconFor(cond, hour.CloudCover),
	}
}

// mapVisualCrossingIcon maps the icon set names ("partly-cloudy-day",
// "thunder-showers-night", ...).
func mapVisualCrossingIcon(icon string) weather.Condition {
	i := strings.TrimSpace(icon)
	switch {
	case i == "":
		return weather.ConditionUnknown
	case common.HasAny(i, "thunder"):
		return weather.ConditionThunderstorm
	case common.HasAny(i, "snow", "sleet", "hail"):
		return weather.ConditionSnow
	case common.HasAny(i, "rain", "showers"):
		return weather.ConditionRain
	case common.HasAny(i, "fog"):
		return weather.ConditionFog
	case common.HasAny(i, "cloudy"):
		return weather.ConditionClouds
	case common.HasAny(i, "clear"):
		return weather.ConditionClear
	default:
		return weather.ConditionUnknown
	}
}
