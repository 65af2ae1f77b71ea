package citasapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is the normalized form of every backend response body.
//
// The backend answers in several shapes: {success, data, error, message, errors, count},
// a bare value, or a list wrapped under "citas". All of them end up here with the
// payload in Data.
type Envelope struct {
	Success bool
	Data    json.RawMessage
	Error   string
	Message string
	Errors  []string
	Count   int
}

// ErrorMessage returns the most specific error text the backend sent
func (e *Envelope) ErrorMessage() string {
	switch {
	case e.Error != "":
		return e.Error
	case len(e.Errors) > 0:
		return e.Errors[0]
	case !e.Success && e.Message != "":
		return e.Message
	}
	return ""
}

type rawEnvelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Citas   json.RawMessage `json:"citas"`
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	Count   int             `json:"count"`
}

// Normalize converts a raw response body into an Envelope. An empty body is a
// successful response with no data.
func Normalize(body []byte) (*Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return &Envelope{Success: true}, nil
	}
	if trimmed[0] != '{' {
		if !json.Valid(trimmed) {
			return &Envelope{Success: true}, fmt.Errorf("response is not JSON")
		}
		return &Envelope{Success: true, Data: json.RawMessage(trimmed)}, nil
	}

	var raw rawEnvelope
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return &Envelope{Success: true}, fmt.Errorf("decode response: %w", err)
	}

	env := &Envelope{
		Success: true,
		Message: raw.Message,
		Count:   raw.Count,
		Error:   looseString(raw.Error),
		Errors:  looseStrings(raw.Errors),
	}
	if raw.Success != nil {
		env.Success = *raw.Success
	}

	switch {
	case len(raw.Data) > 0:
		env.Data = raw.Data
	case len(raw.Citas) > 0:
		env.Data = raw.Citas
	default:
		// bare objects and {success: true, user: {...}} keep the whole body
		env.Data = json.RawMessage(trimmed)
	}

	return env, nil
}

// looseString accepts "text", {"message": "text"} or anything printable
func looseString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}

// looseStrings accepts ["a", "b"], [{"msg": "a"}] or a single string
func looseStrings(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		if s := looseString(raw); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Msg     string `json:"msg"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(item, &obj); err == nil {
			if obj.Msg != "" {
				out = append(out, obj.Msg)
			} else if obj.Message != "" {
				out = append(out, obj.Message)
			}
		}
	}
	return out
}
