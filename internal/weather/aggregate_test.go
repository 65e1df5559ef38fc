package weather

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTarget = time.Date(2026, 6, 2, 12, 0, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }

func success(id string, weight, temp, clouds float64, cond Condition) SourceSample {
	return SourceSample{
		ProviderID:        id,
		ReliabilityWeight: weight,
		TemperatureC:      f(temp),
		CloudCoverPct:     f(clouds),
		Condition:         cond,
	}
}

func TestCombine_WeightedMeansAndHighAgreement(t *testing.T) {
	samples := []SourceSample{
		success(ProviderOpenWeather, 2.0, 10, 20, ConditionClouds),
		success(ProviderWeatherAPI, 1.0, 12, 25, ConditionClouds),
		success(ProviderOpenMeteo, 1.0, 11, 22, ConditionClouds),
	}

	fc, err := Combine(testTarget, samples)
	require.NoError(t, err)

	require.NotNil(t, fc.TemperatureC)
	assert.Equal(t, 11, *fc.TemperatureC) // 10.75
	require.NotNil(t, fc.CloudCoverPct)
	assert.Equal(t, 22, *fc.CloudCoverPct) // 21.75
	assert.Equal(t, AgreementHigh, fc.AgreementQuality)
	assert.Equal(t, 78, fc.SunnyScore)
	assert.Equal(t, ConditionClouds, fc.DominantCondition)
	assert.Equal(t, 3, fc.ContributingCount)
	assert.Equal(t, 3, fc.TotalProviders)
	assert.Equal(t, testTarget, fc.TargetInstant)
}

func TestCombine_AgreementClassification(t *testing.T) {
	tests := []struct {
		name   string
		temps  []float64
		clouds []float64
		want   AgreementQuality
	}{
		{"tight", []float64{10, 12, 11}, []float64{20, 25, 22}, AgreementHigh},
		{"moderate temperature spread", []float64{10, 18, 14}, []float64{20, 25, 22}, AgreementMedium},
		{"moderate cloud spread", []float64{10, 11, 12}, []float64{10, 50, 30}, AgreementMedium},
		{"wide temperature spread", []float64{5, 15, 25}, []float64{20, 25, 22}, AgreementLow},
		{"wide cloud spread", []float64{10, 11, 12}, []float64{0, 100, 50}, AgreementLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var samples []SourceSample
			for i := range tt.temps {
				samples = append(samples, success("p", 1, tt.temps[i], tt.clouds[i], ConditionClouds))
			}
			fc, err := Combine(testTarget, samples)
			require.NoError(t, err)
			assert.Equal(t, tt.want, fc.AgreementQuality)
		})
	}
}

func TestCombine_SunnyScoreRules(t *testing.T) {
	t.Run("clear raises to floor", func(t *testing.T) {
		fc, err := Combine(testTarget, []SourceSample{success(ProviderMetNo, 1.2, 20, 40, ConditionClear)})
		require.NoError(t, err)
		assert.Equal(t, 85, fc.SunnyScore)
		assert.Equal(t, "☀️", fc.Icon)
	})

	t.Run("clear keeps higher base", func(t *testing.T) {
		fc, err := Combine(testTarget, []SourceSample{success(ProviderMetNo, 1.2, 20, 5, ConditionClear)})
		require.NoError(t, err)
		assert.Equal(t, 95, fc.SunnyScore)
	})

	t.Run("rain penalty floors at zero", func(t *testing.T) {
		fc, err := Combine(testTarget, []SourceSample{success(ProviderMetNo, 1.2, 8, 80, ConditionRain)})
		require.NoError(t, err)
		assert.Equal(t, 0, fc.SunnyScore)
	})

	t.Run("clear and snow both apply", func(t *testing.T) {
		fc, err := Combine(testTarget, []SourceSample{
			success(ProviderOpenWeather, 1, 0, 40, ConditionClear),
			success(ProviderWeatherAPI, 1, 0, 40, ConditionSnow),
		})
		require.NoError(t, err)
		assert.Equal(t, 45, fc.SunnyScore)
	})

	t.Run("drizzle is not penalized", func(t *testing.T) {
		fc, err := Combine(testTarget, []SourceSample{success(ProviderMetNo, 1, 12, 60, ConditionDrizzle)})
		require.NoError(t, err)
		assert.Equal(t, 40, fc.SunnyScore)
	})

	t.Run("score stays within bounds", func(t *testing.T) {
		for clouds := 0.0; clouds <= 100; clouds += 5 {
			for _, cond := range []Condition{ConditionClear, ConditionRain, ConditionThunderstorm, ConditionUnknown} {
				fc, err := Combine(testTarget, []SourceSample{success("p", 1.5, 10, clouds, cond)})
				require.NoError(t, err)
				assert.GreaterOrEqual(t, fc.SunnyScore, 0)
				assert.LessOrEqual(t, fc.SunnyScore, 100)
			}
		}
	})
}

func TestCombine_NoSuccesses(t *testing.T) {
	samples := []SourceSample{
		Failed(ProviderOpenWeather, 2.0, ReasonNoCredential, ""),
		Failed(ProviderOpenMeteo, 1.0, ReasonRequestError, "timeout"),
	}

	fc, err := Combine(testTarget, samples)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoData))
	assert.Equal(t, ConsensusForecast{}, fc)

	var nd *NoDataError
	require.True(t, errors.As(err, &nd))
	assert.Equal(t, ReasonNoCredential, nd.Failures[ProviderOpenWeather].Reason)
	assert.Equal(t, ReasonRequestError, nd.Failures[ProviderOpenMeteo].Reason)
	assert.Contains(t, err.Error(), "openmeteo=RequestError")

	_, err = Combine(testTarget, nil)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestCombine_FailuresDoNotContribute(t *testing.T) {
	samples := []SourceSample{
		Failed(ProviderOpenWeather, 2.0, ReasonNoData, ""),
		success(ProviderOpenMeteo, 1.0, 14, 30, ConditionClouds),
	}

	fc, err := Combine(testTarget, samples)
	require.NoError(t, err)
	assert.Equal(t, 14, *fc.TemperatureC)
	assert.Equal(t, 1, fc.ContributingCount)
	assert.Equal(t, 2, fc.TotalProviders)
	assert.Equal(t, ProviderOpenMeteo, fc.BackfillSource)
}

func TestCombine_UniformWeightsReduceToArithmeticMean(t *testing.T) {
	temps := []float64{3, 7, 8, 10}
	var samples []SourceSample
	for _, v := range temps {
		s := success("p", 1, v, 50, ConditionClouds)
		s.HumidityPct = f(v * 10)
		samples = append(samples, s)
	}

	fc, err := Combine(testTarget, samples)
	require.NoError(t, err)
	assert.Equal(t, 7, *fc.TemperatureC) // 28 / 4
	assert.Equal(t, 70, *fc.HumidityPct)
}

func TestCombine_MissingFieldsUseReportingSubset(t *testing.T) {
	a := success(ProviderOpenWeather, 2, 10, 20, ConditionClouds)
	a.WindSpeedKmh = f(30)
	b := success(ProviderOpenMeteo, 1, 10, 20, ConditionClouds)

	fc, err := Combine(testTarget, []SourceSample{a, b})
	require.NoError(t, err)
	require.NotNil(t, fc.WindSpeedKmh)
	assert.Equal(t, 30, *fc.WindSpeedKmh)
	assert.Nil(t, fc.HumidityPct)
}

func TestCombine_DominantConditionIsWeighted(t *testing.T) {
	samples := []SourceSample{
		success("a", 1.0, 10, 50, ConditionRain),
		success("b", 1.0, 10, 50, ConditionRain),
		success("c", 2.5, 10, 50, ConditionClouds),
	}
	fc, err := Combine(testTarget, samples)
	require.NoError(t, err)
	assert.Equal(t, ConditionClouds, fc.DominantCondition)

	// Equal weight: first seen wins.
	samples = []SourceSample{
		success("a", 1.0, 10, 50, ConditionFog),
		success("b", 1.0, 10, 50, ConditionClouds),
	}
	fc, err = Combine(testTarget, samples)
	require.NoError(t, err)
	assert.Equal(t, ConditionFog, fc.DominantCondition)
}

func TestCombine_BackfillFollowsPriority(t *testing.T) {
	meteo := success(ProviderOpenMeteo, 1.0, 10, 20, ConditionClouds)
	meteo.PressureHpa = f(1000)
	meteo.VisibilityM = f(24000)

	wapi := success(ProviderWeatherAPI, 1.5, 10, 20, ConditionClouds)
	wapi.PressureHpa = f(1013.4)
	wapi.VisibilityM = f(9600)
	wapi.FeelsLikeC = f(8.6)
	wapi.UVIndex = f(4)
	wapi.WindDirectionDeg = f(271.6)
	wapi.Description = "Partly cloudy"

	fc, err := Combine(testTarget, []SourceSample{meteo, wapi})
	require.NoError(t, err)
	assert.Equal(t, ProviderWeatherAPI, fc.BackfillSource)
	assert.Equal(t, 1013, *fc.PressureHpa)
	assert.Equal(t, 10, *fc.VisibilityKm)
	assert.Equal(t, 9, *fc.FeelsLikeC)
	assert.Equal(t, 4.0, *fc.UVIndex)
	assert.Equal(t, 272, *fc.WindDirectionDeg)
	assert.Equal(t, "Partly cloudy", fc.Description)

	fc, err = CombineWithPriority(testTarget, []SourceSample{meteo, wapi}, []string{"nobody"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenMeteo, fc.BackfillSource)
}

func TestCombine_Deterministic(t *testing.T) {
	samples := []SourceSample{
		success(ProviderOpenWeather, 2.0, 10.2, 33, ConditionClouds),
		success(ProviderTomorrowIO, 1.5, 11.9, 41, ConditionDrizzle),
		success(ProviderMetNo, 1.2, 9.7, 12, ConditionClear),
	}
	first, err := Combine(testTarget, samples)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Combine(testTarget, samples)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, 11.0, roundHalfUp(10.75))
	assert.Equal(t, 3.0, roundHalfUp(2.5))
	assert.Equal(t, -2.0, roundHalfUp(-2.5))
}
