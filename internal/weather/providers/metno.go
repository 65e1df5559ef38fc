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

// DefaultMetNoUserAgent identifies us to api.met.no, which rejects anonymous clients.
const DefaultMetNoUserAgent = "sunny-forecast/1.0 github.com/i474232898/sunny-forecast"

// MetNoProvider implements the weather.Provider interface for the MET Norway
// locationforecast API. It needs no credential but requires a User-Agent.
type MetNoProvider struct {
	base
	userAgent string
}

func NewMetNoProvider(client *http.Client, userAgent string) *MetNoProvider {
	return &MetNoProvider{
		base:      newBase(weather.ProviderMetNo, 1.2, "https://api.met.no/weatherapi/locationforecast/2.0/compact", client),
		userAgent: common.FirstNonEmpty(userAgent, DefaultMetNoUserAgent),
	}
}

func (p *MetNoProvider) RequiresCredential() bool {
	return false
}

type metNoSummary struct {
	Summary *struct {
		SymbolCode string `json:"symbol_code"`
	} `json:"summary"`
}

type metNoStep struct {
	Time *time.Time `json:"time"`
	Data *struct {
		Instant *struct {
			Details *struct {
				AirPressureAtSeaLevel    *float64 `json:"air_pressure_at_sea_level"`
				AirTemperature           *float64 `json:"air_temperature"`
				CloudAreaFraction        *float64 `json:"cloud_area_fraction"`
				RelativeHumidity         *float64 `json:"relative_humidity"`
				WindFromDirection        *float64 `json:"wind_from_direction"`
				WindSpeed                *float64 `json:"wind_speed"`
				UltravioletIndexClearSky *float64 `json:"ultraviolet_index_clear_sky"`
			} `json:"details"`
		} `json:"instant"`
		Next1Hours  *metNoSummary `json:"next_1_hours"`
		Next6Hours  *metNoSummary `json:"next_6_hours"`
		Next12Hours *metNoSummary `json:"next_12_hours"`
	} `json:"data"`
}

// symbol returns the most specific symbol code available for the step.
func (s metNoStep) symbol() string {
	for _, next := range []*metNoSummary{s.Data.Next1Hours, s.Data.Next6Hours, s.Data.Next12Hours} {
		if next != nil && next.Summary != nil && next.Summary.SymbolCode != "" {
			return next.Summary.SymbolCode
		}
	}
	return ""
}

func (p *MetNoProvider) Fetch(ctx context.Context, at weather.Coordinates, target time.Time, _ string) weather.SourceSample {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("lat", coord(at.Lat))
		values.Set("lon", coord(at.Lon))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", p.userAgent)
		return req, nil
	}

	var payload struct {
		Properties *struct {
			Timeseries []metNoStep `json:"timeseries"`
		} `json:"properties"`
	}
	if err := p.fetchJSON(ctx, buildRequest, &payload); err != nil {
		return p.failed(weather.ReasonRequestError, err)
	}
	if payload.Properties == nil {
		return p.failed(weather.ReasonNoData, fmt.Errorf("response has no properties block"))
	}

	step, ts, err := pick(payload.Properties.Timeseries, func(s metNoStep) (time.Time, bool) {
		if s.Time == nil || s.Data == nil || s.Data.Instant == nil || s.Data.Instant.Details == nil {
			return time.Time{}, false
		}
		return s.Time.UTC(), true
	}, target)
	if err != nil {
		return p.failed(weather.ReasonNoData, err)
	}

	d := step.Data.Instant.Details
	if d.AirTemperature == nil || d.CloudAreaFraction == nil {
		return p.failed(weather.ReasonNoData, fmt.Errorf("step at %s lacks temperature or cloud cover", ts))
	}

	symbol := step.symbol()
	cond := mapMetNoSymbol(symbol)

	return weather.SourceSample{
		ProviderID:        p.id,
		ReliabilityWeight: p.weight,
		Timestamp:         ts,
		TemperatureC:      d.AirTemperature,
		HumidityPct:       d.RelativeHumidity,
		CloudCoverPct:     d.CloudAreaFraction,
		WindSpeedKmh:      msToKmh(d.WindSpeed),
		WindDirectionDeg:  d.WindFromDirection,
		PressureHpa:       d.AirPressureAtSeaLevel,
		UVIndex:           d.UltravioletIndexClearSky,
		Condition:         cond,
		Description:       describeMetNoSymbol(symbol),
		Icon:              weather.IconFor(cond, d.CloudAreaFraction),
	}
}

func trimMetNoVariant(symbol string) string {
	for _, suffix := range []string{"_day", "_night", "_polartwilight"} {
		symbol = strings.TrimSuffix(symbol, suffix)
	}
	return symbol
}

// mapMetNoSymbol maps symbol codes like "lightrainshowers_day".
func mapMetNoSymbol(symbol string) weather.Condition {
	s := trimMetNoVariant(symbol)
	switch {
	case s == "":
		return weather.ConditionUnknown
	case s == "clearsky":
		return weather.ConditionClear
	case common.HasAny(s, "thunder"):
		return weather.ConditionThunderstorm
	case common.HasAny(s, "snow", "sleet"):
		return weather.ConditionSnow
	case common.HasAny(s, "rain"):
		return weather.ConditionRain
	case s == "fog":
		return weather.ConditionFog
	case s == "fair" || s == "partlycloudy" || s == "cloudy":
		return weather.ConditionClouds
	default:
		return weather.ConditionUnknown
	}
}

var metNoWords = strings.NewReplacer(
	"clearsky", "clear sky",
	"partlycloudy", "partly cloudy",
	"heavy", "heavy ",
	"light", "light ",
	"showers", " showers",
	"andthunder", " and thunder",
)

func describeMetNoSymbol(symbol string) string {
	s := trimMetNoVariant(symbol)
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(metNoWords.Replace(s)), " ")
}
