package weather

import (
	"fmt"
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown      Condition = "Unknown"
	ConditionClear        Condition = "Clear"
	ConditionClouds       Condition = "Clouds"
	ConditionRain         Condition = "Rain"
	ConditionSnow         Condition = "Snow"
	ConditionThunderstorm Condition = "Thunderstorm"
	ConditionDrizzle      Condition = "Drizzle"
	ConditionFog          Condition = "Fog"
)

// Precipitating reports whether the condition counts against the sunny score.
func (c Condition) Precipitating() bool {
	return c == ConditionRain || c == ConditionSnow || c == ConditionThunderstorm
}

// Coordinates are WGS84 degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

// FailureReason classifies why a provider produced no sample.
type FailureReason string

const (
	ReasonNoCredential FailureReason = "NoCredential"
	ReasonRequestError FailureReason = "RequestError"
	ReasonNoData       FailureReason = "NoData"
)

// Outcome is the tagged result of a single provider fetch.
// A zero Reason means success.
type Outcome struct {
	Reason FailureReason `json:"reason,omitempty"`
	Detail string        `json:"detail,omitempty"`
}

// OK reports whether the fetch succeeded.
func (o Outcome) OK() bool {
	return o.Reason == ""
}

// SourceSample is one provider's normalized reading for the target instant.
// Measurement fields are nil when the provider does not report them, and are
// always nil on a failed sample.
type SourceSample struct {
	ProviderID        string    `json:"provider"`
	ReliabilityWeight float64   `json:"weight"`
	Timestamp         time.Time `json:"timestamp,omitempty"`

	TemperatureC     *float64 `json:"temperatureC,omitempty"`
	FeelsLikeC       *float64 `json:"feelsLikeC,omitempty"`
	HumidityPct      *float64 `json:"humidityPct,omitempty"`
	CloudCoverPct    *float64 `json:"cloudCoverPct,omitempty"`
	WindSpeedKmh     *float64 `json:"windSpeedKmh,omitempty"`
	WindDirectionDeg *float64 `json:"windDirectionDeg,omitempty"`
	PressureHpa      *float64 `json:"pressureHpa,omitempty"`
	VisibilityM      *float64 `json:"visibilityM,omitempty"`
	UVIndex          *float64 `json:"uvIndex,omitempty"`

	Condition   Condition `json:"condition,omitempty"`
	Description string    `json:"description,omitempty"`
	Icon        string    `json:"icon,omitempty"`

	Outcome Outcome `json:"outcome"`
}

// Failed builds a failure sample carrying no measurements.
func Failed(providerID string, weight float64, reason FailureReason, detail string) SourceSample {
	return SourceSample{
		ProviderID:        providerID,
		ReliabilityWeight: weight,
		Outcome:           Outcome{Reason: reason, Detail: detail},
	}
}

// AgreementQuality describes how closely providers agree.
type AgreementQuality string

const (
	AgreementHigh   AgreementQuality = "High"
	AgreementMedium AgreementQuality = "Medium"
	AgreementLow    AgreementQuality = "Low"
)

// ConsensusForecast is the combined view over every successful sample of one
// fetch cycle. Averages are rounded for display; nil means no contributing
// provider reported the field.
type ConsensusForecast struct {
	TargetInstant time.Time `json:"targetInstant"`

	TemperatureC  *int `json:"temperatureC,omitempty"`
	HumidityPct   *int `json:"humidityPct,omitempty"`
	CloudCoverPct *int `json:"cloudCoverPct,omitempty"`
	WindSpeedKmh  *int `json:"windSpeedKmh,omitempty"`

	SunnyScore        int              `json:"sunnyScore"`
	DominantCondition Condition        `json:"dominantCondition"`
	AgreementQuality  AgreementQuality `json:"agreementQuality"`
	Description       string           `json:"description,omitempty"`
	Icon              string           `json:"icon"`

	ContributingCount int `json:"contributingCount"`
	TotalProviders    int `json:"totalProviders"`

	// Backfilled from the highest-priority successful source.
	BackfillSource   string   `json:"backfillSource,omitempty"`
	FeelsLikeC       *int     `json:"feelsLikeC,omitempty"`
	PressureHpa      *int     `json:"pressureHpa,omitempty"`
	VisibilityKm     *int     `json:"visibilityKm,omitempty"`
	UVIndex          *float64 `json:"uvIndex,omitempty"`
	WindDirectionDeg *int     `json:"windDirectionDeg,omitempty"`

	Samples []SourceSample `json:"samples,omitempty"`
}

// HistoryRecord is a stored consensus for one location.
type HistoryRecord struct {
	LocationID string            `json:"locationId"`
	FetchedAt  time.Time         `json:"fetchedAt"`
	Forecast   ConsensusForecast `json:"forecast"`
}
