package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/Deepanshu2050/subcription-manager/internal/models"
)

const maxBodyBytes = 1 << 20

// envelope is the body of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Count   *int   `json:"count,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func respond(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func respondList[T any](w http.ResponseWriter, items []T) {
	n := len(items)
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: items, Count: &n})
}

func respondMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message})
}

func failMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Message: message})
}

// fail maps err onto a status code. noun names the resource in not-found
// messages. Unexpected errors are logged and their detail is only exposed in
// development.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, noun string, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		failMessage(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, models.ErrNotFound):
		failMessage(w, http.StatusNotFound, noun+" not found")
	case errors.Is(err, models.ErrForbidden):
		failMessage(w, http.StatusForbidden, "Not authorized to access this "+strings.ToLower(noun))
	case errors.Is(err, models.ErrUnauthorized):
		failMessage(w, http.StatusUnauthorized, "Not authorized")
	default:
		log.Printf("%s %s error: %v", r.Method, r.URL.Path, err)
		body := envelope{Message: "Server error"}
		if h.development {
			body.Error = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, body)
	}
}

// decode reads a JSON request body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return &models.ValidationError{Message: fmt.Sprintf("invalid request body: %v", err)}
	}
	return nil
}

const dateLayout = "2006-01-02"

// parseDate accepts an RFC 3339 timestamp or a bare date in the server
// timezone. A bare date read as the end of a range covers the whole day.
func (h *Handlers) parseDate(field, value string, endOfDay bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(dateLayout, value, h.loc)
	if err != nil {
		return nil, models.Invalid(field, "must be an RFC 3339 timestamp or a YYYY-MM-DD date")
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Millisecond)
	}
	return &t, nil
}

// optionalDate parses value when non-nil.
func (h *Handlers) optionalDate(field string, value *string, endOfDay bool) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	return h.parseDate(field, *value, endOfDay)
}

// queryDate parses a query parameter, returning the zero time when absent.
func (h *Handlers) queryDate(r *http.Request, name string, endOfDay bool) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := h.parseDate(name, v, endOfDay)
	if err != nil {
		return time.Time{}, err
	}
	return *t, nil
}
