package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/yyds352/hospital-appointment/internal/appointment"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

// handleServiceError maps the service error categories onto HTTP.
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, appointment.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, appointment.ErrCapacity):
		writeError(w, http.StatusConflict, "capacity_error", err.Error())
	case errors.Is(err, appointment.ErrState):
		writeError(w, http.StatusConflict, "state_error", err.Error())
	case errors.Is(err, appointment.ErrNoDepartmentMatch):
		writeError(w, http.StatusUnprocessableEntity, "no_department_match", err.Error())
	case errors.Is(err, appointment.ErrSelection):
		writeError(w, http.StatusConflict, "no_available_doctor", err.Error())
	case errors.Is(err, appointment.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "unavailable", "temporarily unavailable, please retry")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func parseUUID(w http.ResponseWriter, raw, name string, required bool) (uuid.UUID, bool) {
	if raw == "" {
		if required {
			writeError(w, http.StatusBadRequest, "invalid_"+name, name+" is required")
			return uuid.Nil, false
		}
		return uuid.Nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseTime(w http.ResponseWriter, q url.Values, name string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, q.Get(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be an RFC 3339 timestamp")
		return time.Time{}, false
	}
	return t, true
}

func parseDate(w http.ResponseWriter, raw, name string) (time.Time, bool) {
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}
