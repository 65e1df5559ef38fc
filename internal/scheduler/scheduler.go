package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
)

// Refresher is refreshed on every tick.
type Refresher interface {
	RefreshAll()
	Len() int
}

// Scheduler periodically refreshes every tracked location.
type Scheduler struct {
	scheduler *gocron.Scheduler
	target    Refresher
	interval  time.Duration
	logger    logrus.FieldLogger
}

// New creates a new Scheduler.
func New(target Refresher, interval time.Duration, logger logrus.FieldLogger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		target:    target,
		interval:  interval,
		logger:    logger.WithField("component", "scheduler"),
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first run happens one interval after Start.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 30
	}

	_, err := s.scheduler.Every(minutes).Minutes().WaitForSchedule().Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.WithField("every_minutes", minutes).Info("scheduler started")
	return nil
}

func (s *Scheduler) run() {
	n := s.target.Len()
	if n == 0 {
		s.logger.Debug("no locations tracked; skipping refresh")
		return
	}
	s.logger.WithField("locations", n).Info("refreshing all locations")
	s.target.RefreshAll()
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
