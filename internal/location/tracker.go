package location

import (
	"log/slog"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"mapweather/internal/types"
)

// DefaultDistanceThreshold is the movement, in meters, below which a new fix is treated as GPS drift
const DefaultDistanceThreshold = 10.0

// Tracker filters location updates so that only real movement produces a new position
type Tracker struct {
	threshold float64
	logger    *slog.Logger

	mu   sync.Mutex
	last *types.Coords
}

func NewTracker(thresholdMeters float64, logger *slog.Logger) *Tracker {
	if thresholdMeters <= 0 {
		thresholdMeters = DefaultDistanceThreshold
	}
	return &Tracker{
		threshold: thresholdMeters,
		logger:    logger.With("component", "location-tracker"),
	}
}

// Update records a new fix. It returns true when the fix is the first one or lies
// strictly farther than the threshold from the last accepted fix.
func (t *Tracker) Update(coords types.Coords) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.last == nil {
		t.last = &coords
		t.logger.Debug("first location fix", "coordinates", coords.String())
		return true
	}

	moved := Distance(*t.last, coords)
	if moved <= t.threshold {
		t.logger.Debug("ignoring location drift", "meters", moved)
		return false
	}

	t.logger.Debug("location changed", "coordinates", coords.String(), "meters", moved)
	t.last = &coords
	return true
}

// lastFix returns the last accepted fix
func (t *Tracker) lastFix() (types.Coords, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.last == nil {
		return types.Coords{}, false
	}
	return *t.last, true
}

// Distance returns the great-circle distance between a and b in meters
func Distance(a, b types.Coords) float64 {
	return geo.DistanceHaversine(
		orb.Point{a.Longitude, a.Latitude},
		orb.Point{b.Longitude, b.Latitude},
	)
}
