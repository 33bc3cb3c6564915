package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"

	"mapweather/internal/providers/wunderground"
	"mapweather/internal/types"
)

type ConditionsProvider interface {
	// GetConditions fetches the provider's observation envelope for the given coordinate
	GetConditions(ctx context.Context, latitude, longitude float64) (*wunderground.ConditionsAPIResponse, error)
}

// DeliverFunc receives the outcome of a fetch. It runs on the fetch goroutine and
// is never called once the fetch's handle has been cancelled. ctx is the fetch's
// own context, so follow-up work started from deliver shares its cancellation.
type DeliverFunc func(ctx context.Context, obs *Observation, err error)

// Handle is the cancellation token for one in-flight fetch
type Handle struct {
	cancel    context.CancelFunc
	cancelled atomic.Bool
	done      chan struct{}
}

// Cancel stops the fetch. Safe to call more than once and after completion.
func (h *Handle) Cancel() {
	h.cancelled.Store(true)
	h.cancel()
}

// Cancelled reports whether Cancel was called
func (h *Handle) Cancelled() bool {
	return h.cancelled.Load()
}

// Done is closed once the fetch goroutine exits, whether or not it delivered
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

type Fetcher struct {
	provider ConditionsProvider
	logger   *slog.Logger
}

func NewFetcher(provider ConditionsProvider, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		provider: provider,
		logger:   logger.With("component", "weather-fetcher"),
	}
}

// Fetch starts an asynchronous lookup for coords and returns its handle.
// deliver is called at most once, and only if the handle was not cancelled.
func (f *Fetcher) Fetch(ctx context.Context, coords types.Coords, deliver DeliverFunc) *Handle {
	fetchCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		defer cancel()

		obs, err := f.Lookup(fetchCtx, coords)
		if h.Cancelled() || fetchCtx.Err() != nil {
			f.logger.Debug("fetch cancelled, dropping result", "coordinates", coords.String())
			return
		}
		deliver(fetchCtx, obs, err)
	}()

	return h
}

// Lookup performs a single synchronous fetch for coords
func (f *Fetcher) Lookup(ctx context.Context, coords types.Coords) (*Observation, error) {
	apiResponse, err := f.provider.GetConditions(ctx, coords.Latitude, coords.Longitude)
	if err != nil {
		if errors.Is(err, wunderground.ErrInvalidBody) {
			f.logger.Warn("provider returned an unparsable body", "coordinates", coords.String(), "error", err)
			return nil, &FetchError{Kind: MalformedResponse, Err: err}
		}
		f.logger.Warn("failed to get conditions from provider", "coordinates", coords.String(), "error", err)
		return nil, networkFailure(fmt.Errorf("failed to get conditions: %w", err))
	}

	// Nothing to parse for a caller that already went away
	if err := ctx.Err(); err != nil {
		return nil, networkFailure(err)
	}

	obs, err := mapConditionsAPIResponseToObservation(coords, apiResponse)
	if err != nil {
		f.logger.Warn("provider response is missing required fields", "coordinates", coords.String(), "error", err)
		return nil, err
	}

	f.logger.Debug("fetched observation", "coordinates", coords.String(), "city", obs.City)
	return obs, nil
}

func mapConditionsAPIResponseToObservation(coords types.Coords, apiResponse *wunderground.ConditionsAPIResponse) (*Observation, error) {
	if apiResponse == nil || apiResponse.CurrentObservation == nil {
		return nil, malformedResponse("current_observation is missing")
	}
	current := apiResponse.CurrentObservation

	if current.DisplayLocation == nil {
		return nil, malformedResponse("current_observation.display_location is missing")
	}
	city, ok := wunderground.String(current.DisplayLocation.Full)
	if !ok || strings.TrimSpace(city) == "" {
		return nil, malformedResponse("current_observation.display_location.full is missing")
	}

	obs := &Observation{
		Coordinates: coords,
		City:        city,
	}
	if temp, ok := wunderground.String(current.TemperatureString); ok {
		obs.Temperature = temp
	}
	if raw, ok := wunderground.String(current.IconURL); ok {
		obs.IconURL = SecureURL(raw)
	}
	if raw, ok := wunderground.String(current.ForecastURL); ok {
		obs.ForecastURL = SecureURL(raw)
	}

	return obs, nil
}

// SecureURL parses raw and upgrades an http or scheme-relative URL to https.
// It returns nil when raw does not parse or ends up with any scheme other than https.
func SecureURL(raw string) *url.URL {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}

	switch strings.ToLower(u.Scheme) {
	// "" covers scheme-relative URLs such as //icons.wxug.com/i/c/k/clear.gif
	case "", "http", "https":
		u.Scheme = "https"
	default:
		return nil
	}

	if u.Host == "" {
		return nil
	}
	return u
}
