package main

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// registerRoutes sets up all API endpoints
func (app *App) registerRoutes() {
	// Health check endpoint
	huma.Register(app.api, huma.Operation{
		OperationID: "ping",
		Method:      http.MethodGet,
		Path:        "/ping",
		Summary:     "Ping health check",
		Description: "Check if the API is running",
		Tags:        []string{"health"},
	}, app.handlePing)

	huma.Register(app.api, huma.Operation{
		OperationID: "update-location",
		Method:      http.MethodPut,
		Path:        "/location",
		Summary:     "Report device location",
		Description: "Drops a new pin when the device moved farther than the drift threshold",
		Tags:        []string{"location"},
	}, app.handleUpdateLocation)

	huma.Register(app.api, huma.Operation{
		OperationID: "get-current-pin",
		Method:      http.MethodGet,
		Path:        "/pins/current",
		Summary:     "Get the current pin",
		Tags:        []string{"pins"},
	}, app.handleGetCurrentPin)

	huma.Register(app.api, huma.Operation{
		OperationID: "get-pin",
		Method:      http.MethodGet,
		Path:        "/pins/{id}",
		Summary:     "Get a pin's callout",
		Tags:        []string{"pins"},
	}, app.handleGetPin)

	huma.Register(app.api, huma.Operation{
		OperationID:   "remove-pin",
		Method:        http.MethodDelete,
		Path:          "/pins/{id}",
		Summary:       "Remove a pin",
		Description:   "Takes the pin off the map and cancels any load in progress",
		Tags:          []string{"pins"},
		DefaultStatus: http.StatusNoContent,
	}, app.handleRemovePin)

	huma.Register(app.api, huma.Operation{
		OperationID: "select-pin",
		Method:      http.MethodPost,
		Path:        "/pins/{id}/select",
		Summary:     "Select a pin",
		Description: "Starts loading current weather for the pin's callout",
		Tags:        []string{"pins"},
	}, app.handleSelectPin)

	huma.Register(app.api, huma.Operation{
		OperationID: "deselect-pin",
		Method:      http.MethodPost,
		Path:        "/pins/{id}/deselect",
		Summary:     "Deselect a pin",
		Description: "Cancels any load in progress and restores the callout placeholders",
		Tags:        []string{"pins"},
	}, app.handleDeselectPin)

	huma.Register(app.api, huma.Operation{
		OperationID: "get-pin-icon",
		Method:      http.MethodGet,
		Path:        "/pins/{id}/icon",
		Summary:     "Get the forecast icon",
		Tags:        []string{"pins"},
	}, app.handleGetPinIcon)
}
