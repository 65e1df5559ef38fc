package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/sunny-forecast/internal/observability"
)

// Service fans a forecast request out to every provider and combines the results.
type Service struct {
	providers []Provider
	priority  []string
	logger    logrus.FieldLogger
	metrics   *observability.Metrics
}

// NewService creates a new Service.
func NewService(providers []Provider, logger logrus.FieldLogger, metrics *observability.Metrics) *Service {
	return &Service{
		providers: providers,
		priority:  DefaultPriority,
		logger:    logger,
		metrics:   metrics,
	}
}

// Providers returns the configured providers in query order.
func (s *Service) Providers() []Provider {
	return s.providers
}

// Provider looks up a configured provider by id.
func (s *Service) Provider(id string) (Provider, bool) {
	for _, p := range s.providers {
		if p.ID() == id {
			return p, true
		}
	}
	return nil, false
}

// Forecast queries every provider for the given point and instant and returns
// their consensus. A *NoDataError is returned when no provider succeeded.
func (s *Service) Forecast(ctx context.Context, at Coordinates, target time.Time, credentials map[string]string) (ConsensusForecast, error) {
	if len(s.providers) == 0 {
		return ConsensusForecast{}, ErrNoProviders
	}

	samples := s.Collect(ctx, at, target, credentials)
	fc, err := CombineWithPriority(target, samples, s.priority)
	if err != nil {
		s.logger.WithField("location", at.String()).WithError(err).Warn("no usable provider data")
		return ConsensusForecast{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"location":     at.String(),
		"contributing": fc.ContributingCount,
		"total":        fc.TotalProviders,
		"sunny_score":  fc.SunnyScore,
		"agreement":    fc.AgreementQuality,
	}).Debug("consensus computed")
	return fc, nil
}

// Collect runs every provider concurrently and waits for all of them.
// The result has one sample per provider, in provider order; a provider that
// fails or panics yields a failure sample and never affects its siblings.
func (s *Service) Collect(ctx context.Context, at Coordinates, target time.Time, credentials map[string]string) []SourceSample {
	samples := make([]SourceSample, len(s.providers))

	var g errgroup.Group
	for i, p := range s.providers {
		i, p := i, p
		g.Go(func() error {
			samples[i] = s.fetchOne(ctx, p, at, target, credentials[p.ID()])
			return nil
		})
	}
	_ = g.Wait()

	return samples
}

func (s *Service) fetchOne(ctx context.Context, p Provider, at Coordinates, target time.Time, credential string) (sample SourceSample) {
	log := s.logger.WithFields(logrus.Fields{"provider": p.ID(), "location": at.String()})
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			sample = Failed(p.ID(), p.Weight(), ReasonRequestError, fmt.Sprintf("panic: %v", r))
		}

		outcome := "success"
		if !sample.Outcome.OK() {
			outcome = string(sample.Outcome.Reason)
		}
		s.metrics.ProviderRequests.WithLabelValues(p.ID(), outcome).Inc()
		s.metrics.ProviderDuration.WithLabelValues(p.ID()).Observe(time.Since(start).Seconds())

		switch sample.Outcome.Reason {
		case "":
		case ReasonNoCredential:
			log.Debug("provider skipped: no credential")
		default:
			log.WithField("reason", sample.Outcome.Reason).Warnf("provider fetch failed: %s", sample.Outcome.Detail)
		}
	}()

	sample = p.Fetch(ctx, at, target, credential)
	// Identity always comes from the provider, not the payload.
	sample.ProviderID = p.ID()
	sample.ReliabilityWeight = p.Weight()
	return sample
}
