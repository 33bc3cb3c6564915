// Package pinmap keeps the annotations currently on the map. Like the
// annotations it holds, a Map belongs to the render loop and is not safe for
// use from other goroutines.
package pinmap

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"mapweather/internal/annotation"
	"mapweather/internal/location"
	"mapweather/internal/timezone"
	"mapweather/internal/types"
)

var ErrPinNotFound = errors.New("pin not found")

// Pin is an annotation placed on the map
type Pin struct {
	ID         uuid.UUID
	Timezone   string
	Revision   int // bumped on every callout change notification
	Annotation *annotation.State

	unsubscribe func()
}

// AnnotationFactory builds the display state for a newly dropped pin
type AnnotationFactory func(coords types.Coords) *annotation.State

type Map struct {
	tracker       *location.Tracker
	newAnnotation AnnotationFactory
	timezones     timezone.Service
	logger        *slog.Logger

	pins    map[uuid.UUID]*Pin
	current *Pin
}

// New creates an empty map. timezones may be nil.
func New(tracker *location.Tracker, newAnnotation AnnotationFactory, timezones timezone.Service, logger *slog.Logger) *Map {
	return &Map{
		tracker:       tracker,
		newAnnotation: newAnnotation,
		timezones:     timezones,
		logger:        logger.With("component", "pin-map"),
		pins:          make(map[uuid.UUID]*Pin),
	}
}

// UpdateLocation handles a location fix. When the fix is real movement, every
// existing pin is removed and a new one dropped at coords; moved reports whether
// that happened. The returned pin is the current one either way (nil before the first fix).
func (m *Map) UpdateLocation(coords types.Coords) (pin *Pin, moved bool) {
	if !m.tracker.Update(coords) {
		return m.current, false
	}

	for id := range m.pins {
		m.remove(id)
	}

	pin = &Pin{
		ID:         uuid.New(),
		Annotation: m.newAnnotation(coords),
	}
	if m.timezones != nil {
		tz, err := m.timezones.GetTimezone(coords)
		if err != nil {
			m.logger.Warn("failed to determine timezone", "coordinates", coords.String(), "error", err)
		} else {
			pin.Timezone = tz
		}
	}
	pin.unsubscribe = pin.Annotation.Subscribe(func(v annotation.View) {
		pin.Revision++
		m.logger.Debug("callout refreshed", "pin", pin.ID.String(), "status", v.Status, "revision", pin.Revision)
	})

	m.pins[pin.ID] = pin
	m.current = pin

	m.logger.Info("dropped pin", "pin", pin.ID.String(), "coordinates", coords.String(), "timezone", pin.Timezone)
	return pin, true
}

func (m *Map) Current() (*Pin, bool) {
	return m.current, m.current != nil
}

func (m *Map) Get(id uuid.UUID) (*Pin, bool) {
	pin, ok := m.pins[id]
	return pin, ok
}

// Select starts loading weather for the pin's callout
func (m *Map) Select(id uuid.UUID) (*Pin, error) {
	pin, ok := m.pins[id]
	if !ok {
		return nil, ErrPinNotFound
	}
	pin.Annotation.Load()
	return pin, nil
}

// Deselect cancels any load in progress and restores the callout placeholders
func (m *Map) Deselect(id uuid.UUID) (*Pin, error) {
	pin, ok := m.pins[id]
	if !ok {
		return nil, ErrPinNotFound
	}
	pin.Annotation.Reset()
	return pin, nil
}

// Remove takes a pin off the map
func (m *Map) Remove(id uuid.UUID) error {
	if _, ok := m.pins[id]; !ok {
		return ErrPinNotFound
	}
	m.remove(id)
	return nil
}

func (m *Map) remove(id uuid.UUID) {
	pin := m.pins[id]
	pin.Annotation.Reset()
	pin.unsubscribe()
	delete(m.pins, id)
	if m.current == pin {
		m.current = nil
	}
	m.logger.Debug("removed pin", "pin", id.String())
}
