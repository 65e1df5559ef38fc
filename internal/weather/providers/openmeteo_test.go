package providers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/sunny-forecast/internal/weather"
)

func openMeteoFixture() string {
	t := testTarget.Unix()
	return fmt.Sprintf(`{"latitude":45.92,"longitude":6.87,"hourly":{
	  "time":[%d,%d,%d],
	  "temperature_2m":[9.5,12.3,13.0],
	  "apparent_temperature":[8.0,11.1,12.2],
	  "relative_humidity_2m":[90,72,65],
	  "cloud_cover":[100,62,40],
	  "wind_speed_10m":[4.0,11.5,12.0],
	  "wind_direction_10m":[90,135,140],
	  "pressure_msl":[1008.0,1010.2,1010.9],
	  "visibility":[2000,24140,25000],
	  "uv_index":[0.0,4.35,5.1],
	  "weather_code":[45,2,1]
	}}`, t-3600, t, t+3600)
}

func TestOpenMeteoProvider_Fetch(t *testing.T) {
	srv, _ := jsonServer(t, http.StatusOK, openMeteoFixture(), func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "45.9237", q.Get("latitude"))
		assert.Equal(t, "unixtime", q.Get("timeformat"))
		assert.Equal(t, "4", q.Get("forecast_days"))
		assert.Contains(t, q.Get("hourly"), "weather_code")
	})

	p := NewOpenMeteoProvider(srv.Client())
	point(&p.base, srv.URL)

	// Open-Meteo needs no key; a stray one is ignored.
	s := p.Fetch(context.Background(), testPoint, testTarget, "ignored")
	require.True(t, s.Outcome.OK(), s.Outcome.Detail)
	assert.Equal(t, weather.ProviderOpenMeteo, s.ProviderID)
	assert.Equal(t, 1.0, s.ReliabilityWeight)
	requireValue(t, 12.3, s.TemperatureC)
	requireValue(t, 11.1, s.FeelsLikeC)
	requireValue(t, 72, s.HumidityPct)
	requireValue(t, 62, s.CloudCoverPct)
	requireValue(t, 11.5, s.WindSpeedKmh)
	requireValue(t, 135, s.WindDirectionDeg)
	requireValue(t, 1010.2, s.PressureHpa)
	requireValue(t, 24140, s.VisibilityM)
	requireValue(t, 4.35, s.UVIndex)
	assert.Equal(t, weather.ConditionClouds, s.Condition)
	assert.Equal(t, "partly cloudy", s.Description)
	assert.Equal(t, "⛅", s.Icon)
}

func TestOpenMeteoProvider_Failures(t *testing.T) {
	t.Run("no hourly block", func(t *testing.T) {
		srv, _ := jsonServer(t, http.StatusOK, `{"error":false}`, nil)
		p := NewOpenMeteoProvider(srv.Client())
		point(&p.base, srv.URL)

		s := p.Fetch(context.Background(), testPoint, testTarget, "")
		assert.Equal(t, weather.ReasonNoData, s.Outcome.Reason)
	})

	t.Run("empty series", func(t *testing.T) {
		srv, _ := jsonServer(t, http.StatusOK, `{"hourly":{"time":[],"temperature_2m":[]}}`, nil)
		p := NewOpenMeteoProvider(srv.Client())
		point(&p.base, srv.URL)

		s := p.Fetch(context.Background(), testPoint, testTarget, "")
		assert.Equal(t, weather.ReasonNoData, s.Outcome.Reason)
		assert.Contains(t, s.Outcome.Detail, "empty")
	})

	t.Run("null values at selected hour", func(t *testing.T) {
		body := fmt.Sprintf(`{"hourly":{"time":[%d],"temperature_2m":[null],"cloud_cover":[20]}}`, testTarget.Unix())
		srv, _ := jsonServer(t, http.StatusOK, body, nil)
		p := NewOpenMeteoProvider(srv.Client())
		point(&p.base, srv.URL)

		s := p.Fetch(context.Background(), testPoint, testTarget, "")
		assert.Equal(t, weather.ReasonNoData, s.Outcome.Reason)
	})

	t.Run("short parallel arrays", func(t *testing.T) {
		body := fmt.Sprintf(`{"hourly":{"time":[%d,%d],"temperature_2m":[4,5],"cloud_cover":[20,30]}}`,
			testTarget.Unix()-3600, testTarget.Unix())
		srv, _ := jsonServer(t, http.StatusOK, body, nil)
		p := NewOpenMeteoProvider(srv.Client())
		point(&p.base, srv.URL)

		s := p.Fetch(context.Background(), testPoint, testTarget, "")
		require.True(t, s.Outcome.OK())
		assert.Nil(t, s.HumidityPct)
		assert.Equal(t, weather.ConditionUnknown, s.Condition)
	})
}

func TestMapOpenMeteoCondition(t *testing.T) {
	tests := []struct {
		code int
		want weather.Condition
		icon string
	}{
		{0, weather.ConditionClear, "☀️"},
		{2, weather.ConditionClouds, "⛅"},
		{45, weather.ConditionFog, "🌫️"},
		{53, weather.ConditionDrizzle, "🌦️"},
		{63, weather.ConditionRain, "🌧️"},
		{81, weather.ConditionRain, "🌧️"},
		{75, weather.ConditionSnow, "❄️"},
		{86, weather.ConditionSnow, "❄️"},
		{96, weather.ConditionThunderstorm, "⛈️"},
		{42, weather.ConditionUnknown, "🌤️"},
	}
	clouds := 50.0
	for _, tt := range tests {
		for i := 0; i < 3; i++ {
			cond := mapOpenMeteoCondition(tt.code)
			assert.Equal(t, tt.want, cond, "code %d", tt.code)
			assert.Equal(t, tt.icon, weather.IconFor(cond, &clouds), "code %d", tt.code)
		}
	}
	assert.Equal(t, "Unknown", describeWMO(42))
}
