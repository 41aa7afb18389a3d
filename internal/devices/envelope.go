package devices

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrProtocol is returned when the backend answers with an error envelope or
// a body that is neither an envelope nor a device resource.
var ErrProtocol = errors.New("protocol error")

// Outcome is a device operation result normalized from either response
// shape the backend uses.
type Outcome struct {
	// Connected is the device's connection state as reported by the backend.
	Connected bool

	// Message is the backend's human-readable message, if any.
	Message string

	// OK is false only for error envelopes; Normalize also returns an error
	// in that case.
	OK bool

	// Data is the raw resource. For envelopes this is the data member.
	Data json.RawMessage
}

// envelope is the {status, message, data} wrapper some routes answer with.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type resource struct {
	Connected bool `json:"connected"`
}

// Normalize converts a response body into an [Outcome].
//
// A body is an envelope when its top-level status is "success" or "error" and
// it carries no top-level connected member; anything else that decodes as a
// JSON object is a bare resource. Bare device resources may use "error" as
// their own status value, so the connected member takes precedence.
func Normalize(body []byte) (Outcome, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return Outcome{}, fmt.Errorf("%w: body is not a JSON object", ErrProtocol)
	}

	if isEnvelope(fields) {
		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return Outcome{}, fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		if env.Status == "error" {
			msg := env.Message
			if msg == "" {
				msg = "backend reported an error"
			}
			return Outcome{Message: env.Message, Data: env.Data}, fmt.Errorf("%w: %s", ErrProtocol, msg)
		}

		out := Outcome{OK: true, Message: env.Message, Data: env.Data}
		if len(env.Data) > 0 && string(env.Data) != "null" {
			var res resource
			if err := json.Unmarshal(env.Data, &res); err != nil {
				return Outcome{}, fmt.Errorf("%w: envelope data: %v", ErrProtocol, err)
			}
			out.Connected = res.Connected
		}
		return out, nil
	}

	var res resource
	if err := json.Unmarshal(body, &res); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return Outcome{OK: true, Connected: res.Connected, Data: json.RawMessage(body)}, nil
}

func isEnvelope(fields map[string]json.RawMessage) bool {
	if _, ok := fields["connected"]; ok {
		return false
	}
	raw, ok := fields["status"]
	if !ok {
		return false
	}
	var status string
	if err := json.Unmarshal(raw, &status); err != nil {
		return false
	}
	return status == "success" || status == "error"
}

// errorMessage extracts a readable message from a non-2xx body. It
// understands error envelopes and the {"detail": ...} wrapper the backend
// framework puts around them, and falls back to the status text.
func errorMessage(body []byte, statusCode int) string {
	var wrapped struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil {
		if wrapped.Message != "" {
			return wrapped.Message
		}
		if len(wrapped.Detail) > 0 {
			var detail string
			if err := json.Unmarshal(wrapped.Detail, &detail); err == nil && detail != "" {
				return detail
			}
			var env envelope
			if err := json.Unmarshal(wrapped.Detail, &env); err == nil && env.Message != "" {
				return env.Message
			}
		}
	}
	if text := strings.TrimSpace(http.StatusText(statusCode)); text != "" {
		return fmt.Sprintf("HTTP %d %s", statusCode, text)
	}
	return fmt.Sprintf("HTTP %d", statusCode)
}
