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

func weatherAPIFixture() string {
	t := testTarget.Unix()
	return fmt.Sprintf(`{"location":{"name":"Chamonix"},"forecast":{"forecastday":[
	  {"hour":[
	    {"time_epoch":%d,"temp_c":11.0,"humidity":80,"cloud":88,"wind_kph":9.0,"condition":{"text":"Overcast"}}
	  ]},
	  {"hour":[
	    {"time_epoch":%d,"temp_c":13.5,"feelslike_c":12.1,"humidity":64,"cloud":45,"wind_kph":14.4,"wind_degree":300,"pressure_mb":1009,"vis_km":8.5,"uv":3,"condition":{"text":"Patchy light rain with thunder "}},
	    {"time_epoch":%d,"temp_c":12.0,"humidity":70,"cloud":60,"wind_kph":10.0,"condition":{"text":"Light rain"}}
	  ]}
	]}}`, t-24*3600, t+20*60, t+2*3600)
}

func TestWeatherAPIProvider_Fetch(t *testing.T) {
	srv, _ := jsonServer(t, http.StatusOK, weatherAPIFixture(), func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, testKey, q.Get("key"))
		assert.Equal(t, "45.9237,6.8694", q.Get("q"))
		assert.Equal(t, "3", q.Get("days"))
	})

	p := NewWeatherAPIProvider(srv.Client())
	point(&p.base, srv.URL)

	s := p.Fetch(context.Background(), testPoint, testTarget, testKey)
	require.True(t, s.Outcome.OK(), s.Outcome.Detail)
	assert.Equal(t, weather.ProviderWeatherAPI, s.ProviderID)
	requireValue(t, 13.5, s.TemperatureC)
	requireValue(t, 12.1, s.FeelsLikeC)
	requireValue(t, 45, s.CloudCoverPct)
	requireValue(t, 14.4, s.WindSpeedKmh)
	requireValue(t, 8500, s.VisibilityM)
	requireValue(t, 3, s.UVIndex)
	assert.Equal(t, weather.ConditionThunderstorm, s.Condition)
	assert.Equal(t, "Patchy light rain with thunder", s.Description)
	assert.Equal(t, "⛈️", s.Icon)
}

func TestWeatherAPIProvider_Failures(t *testing.T) {
	t.Run("no credential", func(t *testing.T) {
		p := NewWeatherAPIProvider(http.DefaultClient)
		s := p.Fetch(context.Background(), testPoint, testTarget, "")
		assert.Equal(t, weather.ReasonNoCredential, s.Outcome.Reason)
	})

	t.Run("missing forecast block", func(t *testing.T) {
		srv, _ := jsonServer(t, http.StatusOK, `{"location":{}}`, nil)
		p := NewWeatherAPIProvider(srv.Client())
		point(&p.base, srv.URL)

		s := p.Fetch(context.Background(), testPoint, testTarget, testKey)
		assert.Equal(t, weather.ReasonNoData, s.Outcome.Reason)
	})

	t.Run("server down", func(t *testing.T) {
		srv, calls := jsonServer(t, http.StatusBadGateway, ``, nil)
		p := NewWeatherAPIProvider(srv.Client())
		point(&p.base, srv.URL)

		s := p.Fetch(context.Background(), testPoint, testTarget, testKey)
		assert.Equal(t, weather.ReasonRequestError, s.Outcome.Reason)
		assert.Equal(t, int32(3), calls.Load())
	})
}

func TestMapWeatherAPICondition(t *testing.T) {
	tests := []struct {
		text string
		want weather.Condition
	}{
		{"Sunny", weather.ConditionClear},
		{"Clear", weather.ConditionClear},
		{"Partly cloudy", weather.ConditionClouds},
		{"Overcast", weather.ConditionClouds},
		{"Mist", weather.ConditionFog},
		{"Freezing fog", weather.ConditionFog},
		{"Patchy light drizzle", weather.ConditionDrizzle},
		{"Moderate rain", weather.ConditionRain},
		{"Light rain shower", weather.ConditionRain},
		{"Patchy sleet possible", weather.ConditionSnow},
		{"Blizzard", weather.ConditionSnow},
		{"Thundery outbreaks possible", weather.ConditionThunderstorm},
		{"Moderate or heavy snow with thunder", weather.ConditionThunderstorm},
		{"", weather.ConditionUnknown},
		{"Volcanic ash", weather.ConditionUnknown},
	}
	for _, tt := range tests {
		for i := 0; i < 3; i++ {
			assert.Equal(t, tt.want, mapWeatherAPICondition(tt.text), tt.text)
		}
	}
}
