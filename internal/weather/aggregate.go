package weather

import (
	"math"
	"time"
)

const (
	clearScoreFloor     = 85
	precipitationMalus  = 40
	highTempSpread      = 3.0
	highCloudSpread     = 15.0
	mediumTempSpread    = 5.0
	mediumCloudSpread   = 25.0
	neutralCloudPercent = 50.0
)

// Combine reduces a batch of samples to one consensus using DefaultPriority
// for backfilled fields.
func Combine(target time.Time, samples []SourceSample) (ConsensusForecast, error) {
	return CombineWithPriority(target, samples, DefaultPriority)
}

// CombineWithPriority merges all successful samples into a ConsensusForecast.
// Numeric fields are weight-averaged over the successes that report them; the
// dominant condition is a weighted vote. When nothing succeeded it returns a
// *NoDataError and a zero forecast.
func CombineWithPriority(target time.Time, samples []SourceSample, priority []string) (ConsensusForecast, error) {
	successes := make([]SourceSample, 0, len(samples))
	failures := make(map[string]Outcome)
	for _, s := range samples {
		if s.Outcome.OK() {
			successes = append(successes, s)
		} else {
			failures[s.ProviderID] = s.Outcome
		}
	}

	if len(successes) == 0 {
		return ConsensusForecast{}, &NoDataError{Failures: failures}
	}

	temp := weightedMean(successes, func(s SourceSample) *float64 { return s.TemperatureC })
	humidity := weightedMean(successes, func(s SourceSample) *float64 { return s.HumidityPct })
	clouds := weightedMean(successes, func(s SourceSample) *float64 { return s.CloudCoverPct })
	wind := weightedMean(successes, func(s SourceSample) *float64 { return s.WindSpeedKmh })

	dominant := dominantCondition(successes)
	backfill := backfillSource(successes, priority)

	fc := ConsensusForecast{
		TargetInstant:     target,
		TemperatureC:      roundPtr(temp),
		HumidityPct:       roundPtr(humidity),
		CloudCoverPct:     roundPtr(clouds),
		WindSpeedKmh:      roundPtr(wind),
		SunnyScore:        sunnyScore(successes, clouds),
		DominantCondition: dominant,
		AgreementQuality:  agreement(successes),
		Icon:              IconFor(dominant, clouds),
		ContributingCount: len(successes),
		TotalProviders:    len(samples),
		BackfillSource:    backfill.ProviderID,
		Description:       backfill.Description,
		FeelsLikeC:        roundPtr(backfill.FeelsLikeC),
		PressureHpa:       roundPtr(backfill.PressureHpa),
		WindDirectionDeg:  roundPtr(backfill.WindDirectionDeg),
		UVIndex:           backfill.UVIndex,
		Samples:           samples,
	}
	if backfill.VisibilityM != nil {
		km := *backfill.VisibilityM / 1000
		fc.VisibilityKm = roundPtr(&km)
	}

	return fc, nil
}

func weightedMean(samples []SourceSample, field func(SourceSample) *float64) *float64 {
	var sum, weight float64
	for _, s := range samples {
		v := field(s)
		if v == nil {
			continue
		}
		sum += *v * s.ReliabilityWeight
		weight += s.ReliabilityWeight
	}
	if weight == 0 {
		return nil
	}
	mean := sum / weight
	return &mean
}

// stdDev is the unweighted population standard deviation of the reported values.
func stdDev(samples []SourceSample, field func(SourceSample) *float64) float64 {
	var values []float64
	for _, s := range samples {
		if v := field(s); v != nil {
			values = append(values, *v)
		}
	}
	if len(values) < 2 {
		return 0
	}

	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(values)))
}

func agreement(samples []SourceSample) AgreementQuality {
	tempSpread := stdDev(samples, func(s SourceSample) *float64 { return s.TemperatureC })
	cloudSpread := stdDev(samples, func(s SourceSample) *float64 { return s.CloudCoverPct })

	switch {
	case tempSpread < highTempSpread && cloudSpread < highCloudSpread:
		return AgreementHigh
	case tempSpread < mediumTempSpread && cloudSpread < mediumCloudSpread:
		return AgreementMedium
	default:
		return AgreementLow
	}
}

func sunnyScore(samples []SourceSample, clouds *float64) int {
	cloud := neutralCloudPercent
	if clouds != nil {
		cloud = *clouds
	}
	score := 100 - cloud

	var anyClear, anyPrecip bool
	for _, s := range samples {
		if s.Condition == ConditionClear {
			anyClear = true
		}
		if s.Condition.Precipitating() {
			anyPrecip = true
		}
	}

	if anyClear {
		score = math.Max(score, clearScoreFloor)
	}
	if anyPrecip {
		score = math.Max(0, score-precipitationMalus)
	}

	score = math.Min(100, math.Max(0, score))
	return int(roundHalfUp(score))
}

// dominantCondition is a weighted vote; ties go to the condition seen first.
func dominantCondition(samples []SourceSample) Condition {
	tally := make(map[Condition]float64)
	var order []Condition
	for _, s := range samples {
		c := s.Condition
		if c == "" {
			c = ConditionUnknown
		}
		if _, seen := tally[c]; !seen {
			order = append(order, c)
		}
		tally[c] += s.ReliabilityWeight
	}

	best := ConditionUnknown
	bestWeight := -1.0
	for _, c := range order {
		if tally[c] > bestWeight {
			best = c
			bestWeight = tally[c]
		}
	}
	return best
}

// backfillSource picks the first success in priority order, falling back to
// the first success in the batch.
func backfillSource(samples []SourceSample, priority []string) SourceSample {
	for _, id := range priority {
		for _, s := range samples {
			if s.ProviderID == id {
				return s
			}
		}
	}
	return samples[0]
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

func roundPtr(v *float64) *int {
	if v == nil {
		return nil
	}
	n := int(roundHalfUp(*v))
	return &n
}
