package timezone

import (
	"fmt"
	"sync"
	"time"
	_ "time/tzdata" // zone names from tzf must load on hosts without zoneinfo

	"github.com/ringsaturn/tzf"

	"mapweather/internal/types"
)

// Service resolves the IANA timezone for a pin's coordinate
type Service interface {
	GetTimezone(coords types.Coords) (string, error)
}

// service implements timezone lookup using tzf
type service struct {
	finder tzf.F
}

var (
	instance *service
	initErr  error
	once     sync.Once
)

// NewService creates or returns the singleton timezone service.
// tzf.Finder keeps its polygon data in memory, so there is only ever one.
func NewService() (Service, error) {
	once.Do(func() {
		finder, err := tzf.NewDefaultFinder()
		if err != nil {
			initErr = fmt.Errorf("failed to initialize timezone finder: %w", err)
			return
		}
		instance = &service{
			finder: finder,
		}
	})
	if initErr != nil {
		return nil, initErr
	}
	return instance, nil
}

// GetTimezone returns names like "America/New_York" for the given coordinate
func (s *service) GetTimezone(coords types.Coords) (string, error) {
	name := s.finder.GetTimezoneName(coords.Longitude, coords.Latitude)
	if name == "" {
		return "", fmt.Errorf("could not determine timezone for coordinates %s", coords.String())
	}
	return name, nil
}

// LocalTime converts now into the named zone. An empty or unknown zone yields UTC.
func LocalTime(zone string, now time.Time) time.Time {
	if zone == "" {
		return now.UTC()
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return now.UTC()
	}
	return now.In(loc)
}
