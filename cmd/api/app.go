package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"mapweather/internal/annotation"
	"mapweather/internal/config"
	"mapweather/internal/location"
	"mapweather/internal/mainloop"
	"mapweather/internal/pinmap"
	"mapweather/internal/providers/wunderground"
	"mapweather/internal/timezone"
	"mapweather/internal/types"
	"mapweather/internal/weather"
)

// App encapsulates application dependencies
type App struct {
	mux    *http.ServeMux
	api    huma.API
	logger *slog.Logger
	loop   *mainloop.Loop
	pins   *pinmap.Map
	now    func() time.Time

	// stopFetches aborts in-flight weather fetches at shutdown
	stopFetches context.CancelFunc
}

// NewApp creates a new application with injected dependencies. timezones may be nil.
func NewApp(cfg *config.Config, logger *slog.Logger, timezones timezone.Service) *App {
	return newApp(cfg, logger, timezones, &http.Client{Timeout: cfg.Provider.Timeout})
}

// newApp builds the App around httpClient, which serves both provider and icon requests
func newApp(cfg *config.Config, logger *slog.Logger, timezones timezone.Service, httpClient *http.Client) *App {
	// Create standard library HTTP mux
	mux := http.NewServeMux()

	// Create Huma API with standard library adapter
	humaConfig := huma.DefaultConfig("MapWeather API", "1.0.0")
	humaConfig.Info.Description = "Location-tracked map pins with current weather callouts"
	humaConfig.Servers = []*huma.Server{
		{URL: "http://localhost" + cfg.GetServerAddr(), Description: "Development server"},
	}

	api := humago.New(mux, humaConfig)

	provider := wunderground.NewClientWithBaseURL(cfg.Provider.BaseURL, cfg.Provider.APIKey, httpClient, logger)
	fetcher := weather.NewFetcher(provider, logger)
	icons := weather.NewIconLoader(httpClient, logger)
	loop := mainloop.New(cfg.Render.QueueSize, logger)

	fetchCtx, stopFetches := context.WithCancel(context.Background())
	newAnnotation := func(coords types.Coords) *annotation.State {
		return annotation.New(coords, fetcher, icons, loop, logger,
			annotation.WithContext(fetchCtx),
			annotation.WithIconTimeout(cfg.Provider.IconTimeout),
		)
	}
	tracker := location.NewTracker(cfg.Location.DistanceThreshold, logger)

	app := &App{
		mux:         mux,
		api:         api,
		logger:      logger,
		loop:        loop,
		pins:        pinmap.New(tracker, newAnnotation, timezones, logger),
		now:         time.Now,
		stopFetches: stopFetches,
	}

	logger.Info("application initialized")

	// Register routes
	app.registerRoutes()

	return app
}

// Run starts the render loop and the HTTP server, and shuts both down when ctx ends
func (app *App) Run(ctx context.Context, addr string) error {
	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	defer app.stopFetches()
	go app.loop.Run(loopCtx)

	server := &http.Server{
		Addr:              addr,
		Handler:           app.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		app.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// onLoop runs fn on the render loop, where pins and annotations may be touched
func (app *App) onLoop(ctx context.Context, fn func() error) error {
	var fnErr error
	if err := app.loop.Do(ctx, func() { fnErr = fn() }); err != nil {
		app.logger.Error("render loop unavailable", "error", err)
		return huma.Error503ServiceUnavailable("render loop unavailable", err)
	}
	return fnErr
}
