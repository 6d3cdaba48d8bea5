package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pocketgadget/gadgetd/internal/advert"
	"github.com/pocketgadget/gadgetd/internal/dispatch"
)

// ResultJSON is the body of every control endpoint response.
type ResultJSON struct {
	Command  string `json:"command"`
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// statusFor maps a command error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrInvalidBrightness), errors.Is(err, advert.ErrInvalidPowerLevel):
		return http.StatusBadRequest
	case errors.Is(err, dispatch.ErrNoAdvertiser):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeResult(w http.ResponseWriter, code int, command, msg string) {
	data, _ := json.Marshal(ResultJSON{
		Command:  command,
		Accepted: code == http.StatusAccepted,
		Error:    msg,
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}
