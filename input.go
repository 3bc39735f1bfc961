package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// MalformedRequestError reports a POST body that is missing, is not valid
// JSON, or is not a JSON object.
type MalformedRequestError struct {
	Reason string
	Err    error
}

func (e *MalformedRequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed request: %s: %v", e.Reason, e.Err)
	}
	return "malformed request: " + e.Reason
}

func (e *MalformedRequestError) Unwrap() error { return e.Err }

// ValidationError reports a field whose value cannot be interpreted as a number.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s is not a number", e.Field, e.Value)
}

// decodeInput reads exactly one JSON object from r.
func decodeInput(r io.Reader) (readingInput, error) {
	dec := json.NewDecoder(r)

	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return readingInput{}, &MalformedRequestError{Reason: "empty body"}
		}
		return readingInput{}, &MalformedRequestError{Reason: "invalid JSON", Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return readingInput{}, &MalformedRequestError{Reason: "unexpected data after JSON value", Err: err}
	}
	if raw[0] != '{' {
		return readingInput{}, &MalformedRequestError{Reason: "body must be a JSON object"}
	}

	var in readingInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return readingInput{}, &MalformedRequestError{Reason: "invalid JSON", Err: err}
	}
	return in, nil
}

// isNull reports whether a raw value is absent or JSON null.
func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// coerceNumber converts a JSON number or numeric string to a float64.
// Absent and null values yield nil.
func coerceNumber(field string, raw json.RawMessage) (*float64, error) {
	if isNull(raw) {
		return nil, nil
	}
	raw = bytes.TrimSpace(raw)

	var v float64
	switch c := raw[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, &ValidationError{Field: field, Value: string(raw)}
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, &ValidationError{Field: field, Value: string(raw)}
		}
		v = f
	case c == '-' || (c >= '0' && c <= '9'):
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, &ValidationError{Field: field, Value: string(raw)}
		}
	default:
		return nil, &ValidationError{Field: field, Value: string(raw)}
	}

	// NaN and infinities have no JSON encoding.
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, &ValidationError{Field: field, Value: string(raw)}
	}
	return &v, nil
}

// normalizeTiming returns timing compacted, or nil when it is absent or null.
func normalizeTiming(raw json.RawMessage) (json.RawMessage, error) {
	if isNull(raw) {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("compacting timing: %w", err)
	}
	return json.RawMessage(buf.Bytes()), nil
}
