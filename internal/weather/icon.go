package weather

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // provider icons are gifs
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

const maxIconBytes = 1 << 20

var ErrInsecureURL = errors.New("refusing non-https url")

// IconLoader downloads forecast icons. Only complete, decodable images are returned.
type IconLoader struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func NewIconLoader(httpClient *http.Client, logger *slog.Logger) *IconLoader {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &IconLoader{
		httpClient: httpClient,
		logger:     logger.With("component", "icon-loader"),
	}
}

func (l *IconLoader) LoadIcon(ctx context.Context, u *url.URL) (*Icon, error) {
	if u == nil {
		return nil, errors.New("icon url is absent")
	}
	if u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %s", ErrInsecureURL, u.Redacted())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch icon: %w", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("icon fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxIconBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read icon: %w", err)
	}
	if len(data) > maxIconBytes {
		return nil, fmt.Errorf("icon exceeds %d bytes", maxIconBytes)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode icon: %w", err)
	}

	l.logger.Debug("loaded icon", "url", u.String(), "format", format, "bytes", len(data))

	return &Icon{
		Data:        data,
		ContentType: "image/" + format,
		Width:       cfg.Width,
		Height:      cfg.Height,
	}, nil
}
