package weather

import (
	"net/url"

	"mapweather/internal/types"
)

// Observation is the display data for one coordinate produced by a successful fetch.
// Empty Temperature and nil URLs mean the provider did not supply the field.
type Observation struct {
	Coordinates types.Coords
	City        string
	Temperature string
	IconURL     *url.URL
	ForecastURL *url.URL
}

// Icon is a fully downloaded, decodable forecast icon
type Icon struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}
