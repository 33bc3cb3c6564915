package main

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"mapweather/internal/annotation"
	"mapweather/internal/pinmap"
	"mapweather/internal/timezone"
	"mapweather/internal/types"
)

// PinView is the callout data a renderer needs for one pin
type PinView struct {
	ID          string  `json:"id" doc:"Pin identifier"`
	Latitude    float64 `json:"latitude" doc:"Latitude in decimal degrees"`
	Longitude   float64 `json:"longitude" doc:"Longitude in decimal degrees"`
	Timezone    string  `json:"timezone,omitempty" example:"America/New_York" doc:"IANA timezone of the pin"`
	LocalTime   string  `json:"localTime" doc:"Current time at the pin, RFC 3339"`
	City        string  `json:"city" example:"New York, NY" doc:"Callout title"`
	Temperature string  `json:"temperature,omitempty" example:"72 F" doc:"Callout subtitle; omitted until loaded"`
	ForecastURL string  `json:"forecastUrl,omitempty" doc:"Full forecast page, always https"`
	Accessory   string  `json:"accessory" enum:"spinner,image,none" doc:"Left callout accessory"`
	IconURL     string  `json:"iconUrl,omitempty" doc:"Path of the loaded forecast icon"`
	Status      string  `json:"status" enum:"placeholder,loading,loaded,failed"`
	Revision    int     `json:"revision" doc:"Incremented whenever a fetch changes the callout"`
}

type PinOutput struct {
	Body PinView
}

type PinIDInput struct {
	ID string `path:"id" format:"uuid" doc:"Pin identifier"`
}

type UpdateLocationInput struct {
	Body struct {
		Latitude  float64 `json:"latitude" example:"40.7128" doc:"Latitude in decimal degrees"`
		Longitude float64 `json:"longitude" example:"-74.006" doc:"Longitude in decimal degrees"`
	}
}

type UpdateLocationOutput struct {
	Body struct {
		Moved bool    `json:"moved" doc:"True when a new pin was dropped"`
		Pin   PinView `json:"pin"`
	}
}

type IconOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

func (app *App) pinView(pin *pinmap.Pin) PinView {
	v := pin.Annotation.View()

	view := PinView{
		ID:          pin.ID.String(),
		Latitude:    v.Coordinates.Latitude,
		Longitude:   v.Coordinates.Longitude,
		Timezone:    pin.Timezone,
		LocalTime:   timezone.LocalTime(pin.Timezone, app.now()).Format(time.RFC3339),
		City:        v.City,
		Temperature: v.Temperature,
		Accessory:   string(v.Accessory.Kind),
		Status:      string(v.Status),
		Revision:    pin.Revision,
	}
	if v.ForecastURL != nil {
		view.ForecastURL = v.ForecastURL.String()
	}
	if v.Accessory.Kind == annotation.AccessoryImage {
		view.IconURL = "/pins/" + view.ID + "/icon"
	}
	return view
}

func parsePinID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, huma.Error400BadRequest("invalid pin id", err)
	}
	return id, nil
}

func pinError(err error) error {
	if errors.Is(err, pinmap.ErrPinNotFound) {
		return huma.Error404NotFound("pin not found")
	}
	return err
}

// handleUpdateLocation feeds a location fix to the map
func (app *App) handleUpdateLocation(ctx context.Context, input *UpdateLocationInput) (*UpdateLocationOutput, error) {
	coords := types.NewCoords(input.Body.Latitude, input.Body.Longitude)
	resp := &UpdateLocationOutput{}

	err := app.onLoop(ctx, func() error {
		pin, moved := app.pins.UpdateLocation(coords)
		if pin == nil {
			return huma.Error404NotFound("no pin on the map")
		}
		resp.Body.Moved = moved
		resp.Body.Pin = app.pinView(pin)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (app *App) handleGetCurrentPin(ctx context.Context, input *struct{}) (*PinOutput, error) {
	resp := &PinOutput{}
	err := app.onLoop(ctx, func() error {
		pin, ok := app.pins.Current()
		if !ok {
			return huma.Error404NotFound("no pin on the map yet")
		}
		resp.Body = app.pinView(pin)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (app *App) handleGetPin(ctx context.Context, input *PinIDInput) (*PinOutput, error) {
	id, err := parsePinID(input.ID)
	if err != nil {
		return nil, err
	}

	resp := &PinOutput{}
	err = app.onLoop(ctx, func() error {
		pin, ok := app.pins.Get(id)
		if !ok {
			return pinError(pinmap.ErrPinNotFound)
		}
		resp.Body = app.pinView(pin)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// handleSelectPin starts the weather load; poll the pin until its status leaves "loading"
func (app *App) handleSelectPin(ctx context.Context, input *PinIDInput) (*PinOutput, error) {
	id, err := parsePinID(input.ID)
	if err != nil {
		return nil, err
	}

	resp := &PinOutput{}
	err = app.onLoop(ctx, func() error {
		pin, err := app.pins.Select(id)
		if err != nil {
			return pinError(err)
		}
		resp.Body = app.pinView(pin)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (app *App) handleDeselectPin(ctx context.Context, input *PinIDInput) (*PinOutput, error) {
	id, err := parsePinID(input.ID)
	if err != nil {
		return nil, err
	}

	resp := &PinOutput{}
	err = app.onLoop(ctx, func() error {
		pin, err := app.pins.Deselect(id)
		if err != nil {
			return pinError(err)
		}
		resp.Body = app.pinView(pin)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// handleRemovePin takes the pin off the map, cancelling any load in progress
func (app *App) handleRemovePin(ctx context.Context, input *PinIDInput) (*struct{}, error) {
	id, err := parsePinID(input.ID)
	if err != nil {
		return nil, err
	}

	err = app.onLoop(ctx, func() error {
		return pinError(app.pins.Remove(id))
	})
	if err != nil {
		return nil, err
	}
	return nil, nil
}

func (app *App) handleGetPinIcon(ctx context.Context, input *PinIDInput) (*IconOutput, error) {
	id, err := parsePinID(input.ID)
	if err != nil {
		return nil, err
	}

	resp := &IconOutput{}
	err = app.onLoop(ctx, func() error {
		pin, ok := app.pins.Get(id)
		if !ok {
			return pinError(pinmap.ErrPinNotFound)
		}
		accessory := pin.Annotation.View().Accessory
		if accessory.Kind != annotation.AccessoryImage || accessory.Icon == nil {
			return huma.Error404NotFound("icon not loaded")
		}
		resp.ContentType = accessory.Icon.ContentType
		resp.Body = accessory.Icon.Data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
