package weather

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"mapweather/internal/providers/wunderground"
	"mapweather/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Mock providers for testing

type mockConditionsProvider struct {
	response *wunderground.ConditionsAPIResponse
	err      error
	calls    atomic.Int32
}

func (m *mockConditionsProvider) GetConditions(ctx context.Context, latitude, longitude float64) (*wunderground.ConditionsAPIResponse, error) {
	m.calls.Add(1)
	return m.response, m.err
}

// blockingProvider waits for release before answering
type blockingProvider struct {
	release  chan struct{}
	response *wunderground.ConditionsAPIResponse
}

func (b *blockingProvider) GetConditions(ctx context.Context, latitude, longitude float64) (*wunderground.ConditionsAPIResponse, error) {
	<-b.release
	return b.response, nil
}

func rawString(s string) []byte {
	return []byte(`"` + s + `"`)
}

func newYorkResponse() *wunderground.ConditionsAPIResponse {
	return &wunderground.ConditionsAPIResponse{
		CurrentObservation: &wunderground.CurrentObservation{
			DisplayLocation:   &wunderground.DisplayLocation{Full: rawString("New York, NY")},
			IconURL:           rawString("http://x/icon.png"),
			ForecastURL:       rawString("http://x/forecast"),
			TemperatureString: rawString("72 F"),
		},
	}
}

func TestSecureURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "http upgraded", raw: "http://icons.wxug.com/i/c/k/clear.gif", want: "https://icons.wxug.com/i/c/k/clear.gif"},
		{name: "https kept", raw: "https://www.wunderground.com/US/NY/New_York.html", want: "https://www.wunderground.com/US/NY/New_York.html"},
		{name: "uppercase scheme", raw: "HTTP://x/icon.png", want: "https://x/icon.png"},
		{name: "scheme relative", raw: "//x/icon.png", want: "https://x/icon.png"},
		{name: "query preserved", raw: "http://x/forecast?units=f", want: "https://x/forecast?units=f"},
		{name: "empty", raw: "", want: ""},
		{name: "other scheme", raw: "ftp://x/icon.png", want: ""},
		{name: "relative path", raw: "/icon.png", want: ""},
		{name: "unparsable", raw: "http://[::1", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SecureURL(tt.raw)
			if tt.want == "" {
				if got != nil {
					t.Errorf("SecureURL(%q) = %s, want nil", tt.raw, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("SecureURL(%q) = nil, want %s", tt.raw, tt.want)
			}
			if got.String() != tt.want {
				t.Errorf("SecureURL(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFetcher_Lookup(t *testing.T) {
	coords := types.NewCoords(40.7128, -74.0060)

	tests := []struct {
		name     string
		response *wunderground.ConditionsAPIResponse
		err      error
		wantKind ErrorKind
		validate func(*testing.T, *Observation)
	}{
		{
			name:     "successful lookup",
			response: newYorkResponse(),
			validate: func(t *testing.T, obs *Observation) {
				if obs.City != "New York, NY" {
					t.Errorf("City = %q, want New York, NY", obs.City)
				}
				if obs.Temperature != "72 F" {
					t.Errorf("Temperature = %q, want 72 F", obs.Temperature)
				}
				if obs.IconURL == nil || obs.IconURL.String() != "https://x/icon.png" {
					t.Errorf("IconURL = %v, want https://x/icon.png", obs.IconURL)
				}
				if obs.ForecastURL == nil || obs.ForecastURL.String() != "https://x/forecast" {
					t.Errorf("ForecastURL = %v, want https://x/forecast", obs.ForecastURL)
				}
				if obs.Coordinates != coords {
					t.Errorf("Coordinates = %v, want %v", obs.Coordinates, coords)
				}
			},
		},
		{
			name: "optional fields absent",
			response: &wunderground.ConditionsAPIResponse{
				CurrentObservation: &wunderground.CurrentObservation{
					DisplayLocation: &wunderground.DisplayLocation{Full: rawString("Aspen, CO")},
					IconURL:         []byte(`42`),
				},
			},
			validate: func(t *testing.T, obs *Observation) {
				if obs.City != "Aspen, CO" {
					t.Errorf("City = %q, want Aspen, CO", obs.City)
				}
				if obs.Temperature != "" {
					t.Errorf("Temperature = %q, want absent", obs.Temperature)
				}
				if obs.IconURL != nil || obs.ForecastURL != nil {
					t.Errorf("URLs = %v, %v; want absent", obs.IconURL, obs.ForecastURL)
				}
			},
		},
		{
			name:     "missing current_observation",
			response: &wunderground.ConditionsAPIResponse{},
			wantKind: MalformedResponse,
		},
		{
			name: "missing display_location",
			response: &wunderground.ConditionsAPIResponse{
				CurrentObservation: &wunderground.CurrentObservation{TemperatureString: rawString("72 F")},
			},
			wantKind: MalformedResponse,
		},
		{
			name: "city not a string",
			response: &wunderground.ConditionsAPIResponse{
				CurrentObservation: &wunderground.CurrentObservation{
					DisplayLocation: &wunderground.DisplayLocation{Full: []byte(`{"name":"x"}`)},
				},
			},
			wantKind: MalformedResponse,
		},
		{
			name: "blank city",
			response: &wunderground.ConditionsAPIResponse{
				CurrentObservation: &wunderground.CurrentObservation{
					DisplayLocation: &wunderground.DisplayLocation{Full: rawString("  ")},
				},
			},
			wantKind: MalformedResponse,
		},
		{
			name:     "unparsable body",
			err:      wunderground.ErrInvalidBody,
			wantKind: MalformedResponse,
		},
		{
			name:     "connection refused",
			err:      errors.New("dial tcp: connection refused"),
			wantKind: NetworkFailure,
		},
		{
			name:     "non-2xx status",
			err:      &wunderground.StatusError{StatusCode: http.StatusBadGateway},
			wantKind: NetworkFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockConditionsProvider{response: tt.response, err: tt.err}
			fetcher := NewFetcher(provider, discardLogger())

			got, err := fetcher.Lookup(context.Background(), coords)

			if tt.wantKind != 0 {
				var fetchErr *FetchError
				if !errors.As(err, &fetchErr) {
					t.Fatalf("Lookup() error = %v, want *FetchError", err)
				}
				if fetchErr.Kind != tt.wantKind {
					t.Errorf("Lookup() error kind = %v, want %v", fetchErr.Kind, tt.wantKind)
				}
				if got != nil {
					t.Errorf("Lookup() returned observation %+v alongside an error", got)
				}
				return
			}

			if err != nil {
				t.Fatalf("Lookup() unexpected error = %v", err)
			}
			if tt.validate != nil {
				tt.validate(t, got)
			}
			if n := provider.calls.Load(); n != 1 {
				t.Errorf("provider called %d times, want 1", n)
			}
		})
	}
}

func TestFetchError_Is(t *testing.T) {
	network := networkFailure(errors.New("timeout"))
	if !errors.Is(network, ErrNetworkFailure) || errors.Is(network, ErrMalformedResponse) {
		t.Errorf("network failure matched wrong sentinel: %v", network)
	}

	malformed := malformedResponse("city missing")
	if !errors.Is(malformed, ErrMalformedResponse) || errors.Is(malformed, ErrNetworkFailure) {
		t.Errorf("malformed response matched wrong sentinel: %v", malformed)
	}

	if !strings.Contains(network.Error(), "timeout") {
		t.Errorf("Error() = %q, want it to carry the cause", network.Error())
	}
}

func TestFetcher_Lookup_Provider(t *testing.T) {
	const body = `{"current_observation":{"display_location":{"full":"New York, NY"},"icon_url":"http://x/icon.png","forecast_url":"http://x/forecast","temperature_string":"72 F"}}`

	t.Run("example response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/KEY/conditions/forecast/alert/q/40.7128,-74.006.json" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			_, _ = w.Write([]byte(body))
		}))
		defer server.Close()

		client := wunderground.NewClientWithBaseURL(server.URL, "KEY", server.Client(), discardLogger())
		fetcher := NewFetcher(client, discardLogger())

		obs, err := fetcher.Lookup(context.Background(), types.NewCoords(40.7128, -74.0060))
		if err != nil {
			t.Fatalf("Lookup() unexpected error = %v", err)
		}
		if obs.City != "New York, NY" || obs.Temperature != "72 F" {
			t.Errorf("Lookup() = %+v", obs)
		}
		if obs.IconURL.String() != "https://x/icon.png" || obs.ForecastURL.String() != "https://x/forecast" {
			t.Errorf("URLs = %s, %s; want https upgrades", obs.IconURL, obs.ForecastURL)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"response":{"error":{"type":"keynotfound"}}}`))
		}))
		defer server.Close()

		client := wunderground.NewClientWithBaseURL(server.URL, "KEY", server.Client(), discardLogger())
		_, err := NewFetcher(client, discardLogger()).Lookup(context.Background(), types.NewCoords(1, 2))
		if !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("Lookup() error = %v, want ErrMalformedResponse", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		client := wunderground.NewClientWithBaseURL(server.URL, "KEY", &http.Client{Timeout: 50 * time.Millisecond}, discardLogger())
		_, err := NewFetcher(client, discardLogger()).Lookup(context.Background(), types.NewCoords(1, 2))
		if !errors.Is(err, ErrNetworkFailure) {
			t.Errorf("Lookup() error = %v, want ErrNetworkFailure", err)
		}
	})
}

func TestFetcher_Fetch_Delivers(t *testing.T) {
	provider := &mockConditionsProvider{response: newYorkResponse()}
	fetcher := NewFetcher(provider, discardLogger())

	results := make(chan *Observation, 1)
	h := fetcher.Fetch(context.Background(), types.NewCoords(40.7128, -74.0060), func(ctx context.Context, obs *Observation, err error) {
		if err != nil {
			t.Errorf("deliver got error = %v", err)
		}
		results <- obs
	})

	select {
	case obs := <-results:
		if obs.City != "New York, NY" {
			t.Errorf("City = %q, want New York, NY", obs.City)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	<-h.Done()
	if h.Cancelled() {
		t.Error("handle reports cancelled after a normal completion")
	}
}

func TestFetcher_Fetch_DeliversErrors(t *testing.T) {
	provider := &mockConditionsProvider{err: errors.New("no route to host")}
	fetcher := NewFetcher(provider, discardLogger())

	errs := make(chan error, 1)
	fetcher.Fetch(context.Background(), types.NewCoords(1, 2), func(ctx context.Context, obs *Observation, err error) {
		errs <- err
	})

	select {
	case err := <-errs:
		if !errors.Is(err, ErrNetworkFailure) {
			t.Errorf("deliver error = %v, want ErrNetworkFailure", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
	if n := provider.calls.Load(); n != 1 {
		t.Errorf("provider called %d times, want a single attempt", n)
	}
}

func TestFetcher_Fetch_CancelSuppressesDelivery(t *testing.T) {
	provider := &blockingProvider{release: make(chan struct{}), response: newYorkResponse()}
	fetcher := NewFetcher(provider, discardLogger())

	var delivered atomic.Bool
	h := fetcher.Fetch(context.Background(), types.NewCoords(1, 2), func(ctx context.Context, obs *Observation, err error) {
		delivered.Store(true)
	})

	h.Cancel()
	h.Cancel()
	close(provider.release)

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("fetch goroutine did not exit")
	}

	if delivered.Load() {
		t.Error("result delivered after cancellation")
	}
	if !h.Cancelled() {
		t.Error("Cancelled() = false after Cancel()")
	}
}

func TestFetcher_Fetch_ParentContextSuppressesDelivery(t *testing.T) {
	provider := &blockingProvider{release: make(chan struct{}), response: newYorkResponse()}
	fetcher := NewFetcher(provider, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	var delivered atomic.Bool
	h := fetcher.Fetch(ctx, types.NewCoords(1, 2), func(ctx context.Context, obs *Observation, err error) {
		delivered.Store(true)
	})

	cancel()
	close(provider.release)
	<-h.Done()

	if delivered.Load() {
		t.Error("result delivered after the parent context ended")
	}
}
