// Package registry tracks the locations being compared and keeps each one's
// consensus forecast current.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/i474232898/sunny-forecast/internal/geocode"
	"github.com/i474232898/sunny-forecast/internal/mapview"
	"github.com/i474232898/sunny-forecast/internal/observability"
	"github.com/i474232898/sunny-forecast/internal/weather"
)

// MaxLocations is the registry capacity.
const MaxLocations = 10

var (
	ErrRegistryFull   = fmt.Errorf("maximum %d locations allowed", MaxLocations)
	ErrUnknownID      = errors.New("unknown location id")
	ErrInvalidPolygon = errors.New("polygon needs at least 3 vertices")
)

// User-visible error messages stored on a location.
const (
	msgUnavailable = "Weather data unavailable"
	msgFailed      = "Failed to fetch weather"
)

type FetchState string

const (
	StateIdle    FetchState = "idle"
	StateLoading FetchState = "loading"
	StateDone    FetchState = "done"
)

// Location is a snapshot of one tracked point.
type Location struct {
	ID          string                     `json:"id"`
	Name        string                     `json:"name"`
	Coordinates weather.Coordinates        `json:"coordinates"`
	AddedAt     time.Time                  `json:"addedAt"`
	FetchState  FetchState                 `json:"fetchState"`
	Forecast    *weather.ConsensusForecast `json:"forecast,omitempty"`
	Error       string                     `json:"error,omitempty"`
	FetchedAt   time.Time                  `json:"fetchedAt,omitempty"`
}

// Usable reports whether the location holds a completed, non-error forecast.
func (l Location) Usable() bool {
	return l.FetchState == StateDone && l.Forecast != nil && l.Error == ""
}

// Forecaster produces a consensus for one point.
type Forecaster interface {
	Forecast(ctx context.Context, at weather.Coordinates, target time.Time, credentials map[string]string) (weather.ConsensusForecast, error)
}

// MapView receives marker updates. Its methods run with the registry lock
// held and must not call back into the registry.
type MapView interface {
	PlaceMarker(id string, at weather.Coordinates)
	UpdateMarkerIcon(id, glyph string)
	UpdateMarkerPopup(id string, popup mapview.Popup)
	RemoveAllMarkers()
}

// CredentialStore holds provider credentials.
type CredentialStore interface {
	Get(ctx context.Context, providerID string) (string, error)
	Set(ctx context.Context, providerID, credential string) error
	All(ctx context.Context) (map[string]string, error)
}

// HistoryStore records every completed consensus.
type HistoryStore interface {
	Save(rec weather.HistoryRecord)
	Reset()
}

// Options configures a Registry. Forecaster, MapView, Geocoder and
// Credentials are required.
type Options struct {
	Forecaster  Forecaster
	MapView     MapView
	Geocoder    geocode.Geocoder
	Credentials CredentialStore
	History     HistoryStore // optional

	Logger  logrus.FieldLogger
	Metrics *observability.Metrics
	Clock   clockwork.Clock

	// Location is the zone of the default target instant. Defaults to time.Local.
	Location *time.Location
	// FetchTimeout bounds one refresh. Defaults to 60s.
	FetchTimeout time.Duration
}

type entry struct {
	Location
	gen uint64 // bumped by every refresh; older results are discarded
}

// Registry is the application state: the tracked locations, the shared
// target instant and access to credentials. It is safe for concurrent use.
type Registry struct {
	mu        sync.Mutex
	locations []*entry
	target    time.Time

	forecaster   Forecaster
	mapView      MapView
	geocoder     geocode.Geocoder
	credentials  CredentialStore
	history      HistoryStore
	logger       logrus.FieldLogger
	metrics      *observability.Metrics
	clock        clockwork.Clock
	fetchTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(opts Options) *Registry {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewUnregisteredMetrics()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		target:       DefaultTargetInstant(opts.Clock.Now().In(opts.Location)),
		forecaster:   opts.Forecaster,
		mapView:      opts.MapView,
		geocoder:     opts.Geocoder,
		credentials:  opts.Credentials,
		history:      opts.History,
		logger:       opts.Logger.WithField("component", "registry"),
		metrics:      opts.Metrics,
		clock:        opts.Clock,
		fetchTimeout: opts.FetchTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// DefaultTargetInstant is tomorrow at 12:00 in now's zone.
func DefaultTargetInstant(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 12, 0, 0, 0, now.Location())
}

// Add tracks a new location and starts its first refresh. An empty name is
// resolved by reverse lookup, falling back to "Location (lat, lng)".
func (r *Registry) Add(ctx context.Context, at weather.Coordinates, name string) (Location, error) {
	if r.Len() >= MaxLocations {
		return Location{}, ErrRegistryFull
	}

	if name == "" {
		name = r.displayName(ctx, at)
	}

	r.mu.Lock()
	if len(r.locations) >= MaxLocations {
		r.mu.Unlock()
		return Location{}, ErrRegistryFull
	}
	e := &entry{Location: Location{
		ID:          uuid.NewString(),
		Name:        name,
		Coordinates: at,
		AddedAt:     r.clock.Now(),
		FetchState:  StateIdle,
	}}
	r.locations = append(r.locations, e)
	count := len(r.locations)
	loc := e.Location
	r.mapView.PlaceMarker(loc.ID, at)
	r.mapView.UpdateMarkerPopup(loc.ID, mapview.Summary(loc.Name, nil, ""))
	r.mu.Unlock()

	r.metrics.LocationsTracked.Set(float64(count))
	r.logger.WithFields(logrus.Fields{"location_id": loc.ID, "name": loc.Name, "location": at.String()}).Info("location added")

	r.Refresh(loc.ID)
	return loc, nil
}

func (r *Registry) displayName(ctx context.Context, at weather.Coordinates) string {
	name, err := r.geocoder.Reverse(ctx, at)
	if err != nil || name == "" {
		r.logger.WithField("location", at.String()).WithError(err).Debug("reverse lookup failed; using coordinates")
		return geocode.FallbackName(at)
	}
	return name
}

// Search geocodes query and adds the best match.
func (r *Registry) Search(ctx context.Context, query string) (Location, error) {
	if r.Len() >= MaxLocations {
		return Location{}, ErrRegistryFull
	}

	place, err := r.geocoder.Search(ctx, query)
	if err != nil {
		return Location{}, fmt.Errorf("search %q: %w", query, err)
	}
	return r.Add(ctx, place.Coordinates, place.DisplayName)
}

// AddPolygon samples the polygon's bounding-box center and its four corners
// and adds them while room remains. It fails with ErrRegistryFull only when
// nothing could be added.
func (r *Registry) AddPolygon(ctx context.Context, vertices []weather.Coordinates) ([]Location, error) {
	points, err := SamplePolygon(vertices)
	if err != nil {
		return nil, err
	}

	var added []Location
	for i, p := range points {
		loc, err := r.Add(ctx, p, fmt.Sprintf("Area Point %d", i+1))
		if errors.Is(err, ErrRegistryFull) {
			break
		}
		if err != nil {
			return added, err
		}
		added = append(added, loc)
	}
	if len(added) == 0 {
		return nil, ErrRegistryFull
	}
	return added, nil
}

// SamplePolygon returns the center, NE, NW, SE and SW points of the
// vertices' bounding box.
func SamplePolygon(vertices []weather.Coordinates) ([]weather.Coordinates, error) {
	if len(vertices) < 3 {
		return nil, ErrInvalidPolygon
	}

	minLat, maxLat := vertices[0].Lat, vertices[0].Lat
	minLon, maxLon := vertices[0].Lon, vertices[0].Lon
	for _, v := range vertices[1:] {
		minLat, maxLat = min(minLat, v.Lat), max(maxLat, v.Lat)
		minLon, maxLon = min(minLon, v.Lon), max(maxLon, v.Lon)
	}

	return []weather.Coordinates{
		{Lat: (minLat + maxLat) / 2, Lon: (minLon + maxLon) / 2},
		{Lat: maxLat, Lon: maxLon},
		{Lat: maxLat, Lon: minLon},
		{Lat: minLat, Lon: maxLon},
		{Lat: minLat, Lon: minLon},
	}, nil
}

// Clear removes every location unconditionally. Refreshes still in flight
// are discarded when they complete.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.locations = nil
	r.mapView.RemoveAllMarkers()
	if r.history != nil {
		r.history.Reset()
	}
	r.mu.Unlock()

	r.metrics.LocationsTracked.Set(0)
	r.logger.Info("registry cleared")
}

// TargetInstant returns the shared target instant.
func (r *Registry) TargetInstant() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target
}

// SetTargetInstant updates the target and refreshes every location that
// holds a non-error forecast or is still loading. A loading location's
// in-flight result is superseded by the new refresh.
func (r *Registry) SetTargetInstant(t time.Time) {
	r.mu.Lock()
	r.target = t
	var ids []string
	for _, e := range r.locations {
		if e.FetchState == StateLoading || (e.Forecast != nil && e.Error == "") {
			ids = append(ids, e.ID)
		}
	}
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{"target": t, "refreshing": len(ids)}).Info("target instant changed")
	for _, id := range ids {
		r.Refresh(id)
	}
}

// OnCredentialChange stores the credential and, when it is non-empty,
// refreshes every location.
func (r *Registry) OnCredentialChange(ctx context.Context, providerID, credential string) error {
	if err := r.credentials.Set(ctx, providerID, credential); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	r.logger.WithFields(logrus.Fields{"provider": providerID, "set": credential != ""}).Info("credential changed")
	if credential != "" {
		r.RefreshAll()
	}
	return nil
}

// RefreshAll refreshes every tracked location.
func (r *Registry) RefreshAll() {
	for _, id := range r.ids() {
		r.Refresh(id)
	}
}

// Refresh starts a background fetch for one location. It is a no-op for an
// unknown id.
func (r *Registry) Refresh(id string) {
	r.mu.Lock()
	e := r.find(id)
	if e == nil {
		r.mu.Unlock()
		return
	}
	e.gen++
	gen := e.gen
	e.FetchState = StateLoading
	at := e.Coordinates
	target := r.target
	r.mapView.UpdateMarkerPopup(id, mapview.Loading(e.Name))
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.fetch(id, gen, at, target)
	}()
}

func (r *Registry) fetch(id string, gen uint64, at weather.Coordinates, target time.Time) {
	log := r.logger.WithFields(logrus.Fields{"location_id": id, "location": at.String(), "generation": gen})

	ctx, cancel := context.WithTimeout(r.ctx, r.fetchTimeout)
	defer cancel()

	creds, err := r.credentials.All(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to load credentials; querying keyless providers only")
		creds = nil
	}

	fc, err := r.forecaster.Forecast(ctx, at, target, creds)
	now := r.clock.Now()

	r.mu.Lock()
	e := r.find(id)
	if e == nil || e.gen != gen {
		r.mu.Unlock()
		r.metrics.Refreshes.WithLabelValues("superseded").Inc()
		log.Debug("discarding superseded refresh")
		return
	}
	e.FetchState = StateDone
	e.FetchedAt = now
	if err != nil {
		e.Forecast = nil
		e.Error = msgFailed
		if errors.Is(err, weather.ErrNoData) {
			e.Error = msgUnavailable
		}
		r.mapView.UpdateMarkerIcon(id, mapview.DefaultIcon)
		r.mapView.UpdateMarkerPopup(id, mapview.Summary(e.Name, nil, e.Error))
	} else {
		e.Forecast = &fc
		e.Error = ""
		r.mapView.UpdateMarkerIcon(id, fc.Icon)
		r.mapView.UpdateMarkerPopup(id, mapview.Summary(e.Name, &fc, ""))
		if r.history != nil {
			r.history.Save(weather.HistoryRecord{LocationID: id, FetchedAt: now, Forecast: fc})
		}
	}
	r.mu.Unlock()

	if err != nil {
		r.metrics.Refreshes.WithLabelValues("nodata").Inc()
		log.WithError(err).Warn("refresh produced no forecast")
		return
	}

	r.metrics.Refreshes.WithLabelValues("applied").Inc()
	log.WithField("sunny_score", fc.SunnyScore).Debug("refresh applied")
}

// Get returns one location.
func (r *Registry) Get(id string) (Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e := r.find(id); e != nil {
		return e.Location, nil
	}
	return Location{}, ErrUnknownID
}

// Len returns the number of tracked locations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locations)
}

// List returns the locations in insertion order.
func (r *Registry) List() []Location {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Location, len(r.locations))
	for i, e := range r.locations {
		out[i] = e.Location
	}
	return out
}

// Sorted returns the locations for display: usable forecasts by sunny score
// descending, then every loading or errored location in insertion order.
func (r *Registry) Sorted() []Location {
	locs := r.List()
	SortForDisplay(locs)
	return locs
}

// SortForDisplay sorts in place. Ties keep their relative order.
func SortForDisplay(locs []Location) {
	sort.SliceStable(locs, func(i, j int) bool {
		a, b := locs[i], locs[j]
		if a.Usable() && b.Usable() {
			return a.Forecast.SunnyScore > b.Forecast.SunnyScore
		}
		return a.Usable() && !b.Usable()
	})
}

// Wait blocks until every started refresh has finished.
func (r *Registry) Wait() {
	r.wg.Wait()
}

// Close cancels in-flight refreshes and waits for them.
func (r *Registry) Close() {
	r.cancel()
	r.wg.Wait()
}

func (r *Registry) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, len(r.locations))
	for i, e := range r.locations {
		ids[i] = e.ID
	}
	return ids
}

// find must be called with mu held.
func (r *Registry) find(id string) *entry {
	for _, e := range r.locations {
		if e.ID == id {
			return e
		}
	}
	return nil
}
