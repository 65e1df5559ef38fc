// Package mapview keeps the marker state a map client renders.
package mapview

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/i474232898/sunny-forecast/internal/weather"
)

// DefaultIcon is shown before a location has a forecast.
const DefaultIcon = "📍"

// Popup is the structured marker popup.
type Popup struct {
	Title        string `json:"title"`
	Icon         string `json:"icon,omitempty"`
	TemperatureC *int   `json:"temperatureC,omitempty"`
	Description  string `json:"description,omitempty"`
	SunnyScore   *int   `json:"sunnyScore,omitempty"`
	Error        string `json:"error,omitempty"`
	Loading      bool   `json:"loading,omitempty"`
}

var titleCaser = cases.Title(language.Und)

// Text renders the popup as plain lines.
func (p Popup) Text() string {
	lines := []string{p.Title}
	if p.TemperatureC != nil {
		lines = append(lines, fmt.Sprintf("%s %d°C", p.Icon, *p.TemperatureC))
	}
	if p.Description != "" {
		lines = append(lines, titleCaser.String(p.Description))
	}
	if p.SunnyScore != nil {
		lines = append(lines, fmt.Sprintf("☀️ Sunny Score: %d%%", *p.SunnyScore))
	}
	if p.Error != "" {
		lines = append(lines, p.Error)
	}
	if p.Loading {
		lines = append(lines, "Loading weather...")
	}
	return strings.Join(lines, "\n")
}

// Summary builds the popup for a location. fc may be nil.
func Summary(name string, fc *weather.ConsensusForecast, errMsg string) Popup {
	p := Popup{Title: name, Error: errMsg}
	if fc == nil {
		return p
	}
	score := fc.SunnyScore
	p.Icon = fc.Icon
	p.TemperatureC = fc.TemperatureC
	p.Description = fc.Description
	p.SunnyScore = &score
	return p
}

// Loading is the popup shown while a refresh is in flight.
func Loading(name string) Popup {
	return Popup{Title: name, Loading: true}
}

// Marker is one pin on the map.
type Marker struct {
	ID          string              `json:"id"`
	Coordinates weather.Coordinates `json:"coordinates"`
	Icon        string              `json:"icon"`
	Popup       Popup               `json:"popup"`
	PopupText   string              `json:"popupText"`
}

// Board is a concurrency-safe in-memory marker set. Updates for unknown
// ids are ignored.
type Board struct {
	mu      sync.RWMutex
	markers map[string]*Marker
	order   []string
}

func NewBoard() *Board {
	return &Board{markers: make(map[string]*Marker)}
}

// PlaceMarker adds a marker, or moves an existing one.
func (b *Board) PlaceMarker(id string, at weather.Coordinates) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if m, ok := b.markers[id]; ok {
		m.Coordinates = at
		return
	}
	b.markers[id] = &Marker{ID: id, Coordinates: at, Icon: DefaultIcon}
	b.order = append(b.order, id)
}

func (b *Board) UpdateMarkerIcon(id, glyph string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if m, ok := b.markers[id]; ok {
		m.Icon = glyph
	}
}

func (b *Board) UpdateMarkerPopup(id string, popup Popup) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if m, ok := b.markers[id]; ok {
		m.Popup = popup
		m.PopupText = popup.Text()
	}
}

func (b *Board) RemoveAllMarkers() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.markers = make(map[string]*Marker)
	b.order = nil
}

// Markers returns a snapshot in placement order.
func (b *Board) Markers() []Marker {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Marker, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.markers[id])
	}
	return out
}
