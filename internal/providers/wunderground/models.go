package wunderground

import "encoding/json"

// ConditionsAPIResponse is the subset of the conditions/forecast/alert envelope used here.
// Observation fields are kept raw so that a missing or mistyped field does not fail decoding.
type ConditionsAPIResponse struct {
	CurrentObservation *CurrentObservation `json:"current_observation"`
}

type CurrentObservation struct {
	DisplayLocation   *DisplayLocation `json:"display_location"`
	IconURL           json.RawMessage  `json:"icon_url"`
	ForecastURL       json.RawMessage  `json:"forecast_url"`
	TemperatureString json.RawMessage  `json:"temperature_string"`
}

type DisplayLocation struct {
	Full json.RawMessage `json:"full"`
}

// String decodes a raw field as a JSON string. ok is false when the field is
// absent, null, or not a string.
func String(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
