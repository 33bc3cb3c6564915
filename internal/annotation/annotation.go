// Package annotation holds the display state of a single map pin.
//
// A State is owned by the render loop: construct it, call Load, Reset, View and
// Subscribe only from tasks running on the Dispatcher it was built with.
// Fetches run on their own goroutines and hand results back through the
// Dispatcher, so display fields are never touched off the render loop.
package annotation

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"mapweather/internal/types"
	"mapweather/internal/weather"
)

const PlaceholderCity = "Loading City & Weather"

// DefaultIconTimeout bounds how long text fields wait on the forecast icon
const DefaultIconTimeout = 2 * time.Second

// Fetcher starts an asynchronous weather lookup
type Fetcher interface {
	Fetch(ctx context.Context, coords types.Coords, deliver weather.DeliverFunc) *weather.Handle
}

// IconLoader downloads a forecast icon
type IconLoader interface {
	LoadIcon(ctx context.Context, u *url.URL) (*weather.Icon, error)
}

// Dispatcher runs closures on the render loop
type Dispatcher interface {
	Post(fn func())
}

type Status string

const (
	StatusPlaceholder Status = "placeholder"
	StatusLoading     Status = "loading"
	StatusLoaded      Status = "loaded"
	StatusFailed      Status = "failed"
)

type AccessoryKind string

const (
	AccessorySpinner AccessoryKind = "spinner"
	AccessoryImage   AccessoryKind = "image"
	AccessoryNone    AccessoryKind = "none"
)

// Accessory is the left callout view: a spinner, the forecast icon, or nothing
type Accessory struct {
	Kind AccessoryKind
	Icon *weather.Icon
}

// View is a snapshot of the fields a renderer shows in the callout
type View struct {
	Coordinates types.Coords
	City        string
	Temperature string // empty when absent
	ForecastURL *url.URL
	Accessory   Accessory
	Status      Status
}

// Title and Subtitle follow the callout naming of map toolkits
func (v View) Title() string    { return v.City }
func (v View) Subtitle() string { return v.Temperature }

// Option configures a State
type Option func(*State)

// WithContext sets the parent context of every fetch the State starts.
// Cancelling it aborts in-flight provider and icon requests.
func WithContext(ctx context.Context) Option {
	return func(s *State) {
		if ctx != nil {
			s.baseCtx = ctx
		}
	}
}

// WithIconTimeout caps the icon download that precedes a callout update
func WithIconTimeout(d time.Duration) Option {
	return func(s *State) {
		if d > 0 {
			s.iconTimeout = d
		}
	}
}

type State struct {
	coords      types.Coords
	fetcher     Fetcher
	icons       IconLoader
	dispatcher  Dispatcher
	logger      *slog.Logger
	baseCtx     context.Context
	iconTimeout time.Duration

	city        string
	temperature string
	forecastURL *url.URL
	accessory   Accessory
	status      Status

	active     *weather.Handle
	generation uint64

	listeners  map[int]func(View)
	nextListen int
}

func New(coords types.Coords, fetcher Fetcher, icons IconLoader, dispatcher Dispatcher, logger *slog.Logger, opts ...Option) *State {
	s := &State{
		coords:      coords,
		fetcher:     fetcher,
		icons:       icons,
		dispatcher:  dispatcher,
		logger:      logger.With("component", "annotation", "coordinates", coords.String()),
		baseCtx:     context.Background(),
		iconTimeout: DefaultIconTimeout,
		listeners:   make(map[int]func(View)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Reset()
	return s
}

func (s *State) View() View {
	return View{
		Coordinates: s.coords,
		City:        s.city,
		Temperature: s.temperature,
		ForecastURL: s.forecastURL,
		Accessory:   s.accessory,
		Status:      s.status,
	}
}

// Subscribe registers fn to be called on the render loop whenever a fetch
// changes the callout fields. The returned func removes the subscription.
func (s *State) Subscribe(fn func(View)) func() {
	id := s.nextListen
	s.nextListen++
	s.listeners[id] = fn
	return func() { delete(s.listeners, id) }
}

// Load cancels any active fetch and starts a new one for this coordinate
func (s *State) Load() {
	s.cancelActive()

	s.generation++
	gen := s.generation
	s.status = StatusLoading

	s.logger.Debug("loading weather", "generation", gen)
	s.active = s.fetcher.Fetch(s.baseCtx, s.coords, func(ctx context.Context, obs *weather.Observation, err error) {
		var icon *weather.Icon
		if err == nil && obs.IconURL != nil && s.icons != nil {
			icon = s.loadIcon(ctx, obs.IconURL)
		}
		if ctx.Err() != nil {
			// cancelled while the icon was downloading
			return
		}
		s.dispatcher.Post(func() {
			s.complete(gen, obs, icon, err)
		})
	})
}

// loadIcon is best effort. A slow or failed download yields nil and the
// current accessory is kept.
func (s *State) loadIcon(ctx context.Context, u *url.URL) *weather.Icon {
	iconCtx, cancel := context.WithTimeout(ctx, s.iconTimeout)
	defer cancel()

	icon, err := s.icons.LoadIcon(iconCtx, u)
	if err != nil {
		s.logger.Debug("icon load failed", "url", u.String(), "error", err)
		return nil
	}
	return icon
}

// Reset cancels any active fetch and restores the placeholder fields.
// The forecast link is kept until a later fetch replaces it.
func (s *State) Reset() {
	s.cancelActive()
	s.generation++

	s.city = PlaceholderCity
	s.temperature = ""
	s.accessory = Accessory{Kind: AccessorySpinner}
	s.status = StatusPlaceholder
}

func (s *State) cancelActive() {
	if s.active != nil {
		s.active.Cancel()
		s.active = nil
	}
}

// complete runs on the render loop
func (s *State) complete(gen uint64, obs *weather.Observation, icon *weather.Icon, err error) {
	if gen != s.generation || s.active == nil {
		s.logger.Debug("dropping stale fetch result", "generation", gen, "current", s.generation)
		return
	}
	s.active = nil

	if err != nil {
		s.logger.Info("weather fetch failed", "error", err)
		s.status = StatusFailed
		if s.accessory.Kind == AccessorySpinner {
			s.accessory = Accessory{Kind: AccessoryNone}
			s.notify()
		}
		return
	}

	s.city = obs.City
	s.temperature = obs.Temperature
	s.forecastURL = obs.ForecastURL
	if icon != nil {
		s.accessory = Accessory{Kind: AccessoryImage, Icon: icon}
	}
	s.status = StatusLoaded

	s.logger.Debug("weather loaded", "city", obs.City, "temperature", obs.Temperature)
	s.notify()
}

func (s *State) notify() {
	v := s.View()
	for _, fn := range s.listeners {
		fn(v)
	}
}
