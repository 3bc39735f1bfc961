package main

import (
	"encoding/json"

	"go.uber.org/zap/zapcore"
)

// timestampLayout is the server-assigned timestamp format (YYYY-MM-DD HH:MM:SS).
const timestampLayout = "2006-01-02 15:04:05"

// Reading is the single most recent sensor record reported by the device.
// A nil field serializes as JSON null.
type Reading struct {
	Current   *float64        `json:"current"`
	Voltage   *float64        `json:"voltage"`
	Timing    json.RawMessage `json:"timing"`
	Timestamp *string         `json:"timestamp"`
}

// MarshalLogObject lets a Reading be logged with zap.Object.
func (r Reading) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	if r.Current != nil {
		enc.AddFloat64("current", *r.Current)
	}
	if r.Voltage != nil {
		enc.AddFloat64("voltage", *r.Voltage)
	}
	if len(r.Timing) > 0 {
		enc.AddByteString("timing", r.Timing)
	}
	if r.Timestamp != nil {
		enc.AddString("timestamp", *r.Timestamp)
	}
	return nil
}

// readingInput is the POST body. Every key is optional; values are kept raw
// so each field can be coerced on its own terms.
type readingInput struct {
	Current json.RawMessage `json:"current"`
	Voltage json.RawMessage `json:"voltage"`
	Timing  json.RawMessage `json:"timing"`
}

// postResponse wraps the stored Reading in the POST reply.
type postResponse struct {
	Success bool     `json:"success"`
	Data    *Reading `json:"data,omitempty"`
	Error   string   `json:"error,omitempty"`
}
