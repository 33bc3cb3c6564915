package main

import (
	"context"
	"time"
)

// PingOutput represents the response for the ping endpoint
type PingOutput struct {
	Body struct {
		Message    string `json:"message" example:"pong" doc:"Response message"`
		RenderLoop string `json:"renderLoop" enum:"ok,stalled" doc:"Whether the render loop is draining tasks"`
	}
}

// handlePing is a health check endpoint that returns a simple pong message
func (app *App) handlePing(ctx context.Context, input *struct{}) (*PingOutput, error) {
	resp := &PingOutput{}
	resp.Body.Message = "pong"

	loopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := app.loop.Do(loopCtx, func() {}); err != nil {
		app.logger.Warn("render loop did not answer ping", "error", err)
		resp.Body.RenderLoop = "stalled"
	} else {
		resp.Body.RenderLoop = "ok"
	}
	return resp, nil
}
