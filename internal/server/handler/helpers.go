package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/holiman/uint256"

	"github.com/alanyoungcy/curvemarket/internal/domain"
	"github.com/alanyoungcy/curvemarket/internal/host"
)

// maxRequestBytes bounds decoded request bodies.
const maxRequestBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Code  uint16 `json:"code,omitempty"`
	Name  string `json:"name,omitempty"`
}

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeCallError maps a service error to its HTTP status. Ledger errors
// carry their code; anything unrecognised is logged and reported as 500.
func writeCallError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if le, ok := domain.AsLedgerError(err); ok {
		writeJSON(w, statusForClass(le.Class()), errorBody{Error: le.Error(), Code: le.Code, Name: le.Name})
		return
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrLockHeld):
		writeError(w, http.StatusLocked, err.Error())
	case errors.Is(err, host.ErrInsufficientBalance):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, host.ErrReentrantCall):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func statusForClass(c domain.ErrorClass) int {
	switch c {
	case domain.ClassAccess:
		return http.StatusForbidden
	case domain.ClassState, domain.ClassClaims, domain.ClassInit:
		return http.StatusConflict
	case domain.ClassTrading, domain.ClassVault, domain.ClassFactory, domain.ClassMath:
		return http.StatusUnprocessableEntity
	case domain.ClassUnknown:
	}
	return http.StatusInternalServerError
}

// decodeBody decodes the JSON request body into v, rejecting unknown
// fields. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// callerOf returns the authenticated caller, writing a 401 when absent.
func callerOf(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	addr, ok := domain.CallerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
	}
	return addr, ok
}

// pathID parses the {id} path parameter as a market id.
func pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return 0, false
	}
	return id, true
}

func parseUint(s, field string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", field, s)
	}
	return v, nil
}

func parseAmount(s, field string) (*uint256.Int, error) {
	v, err := domain.ParseAmount(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", field, err)
	}
	return v, nil
}

func parseAddress(s, field string) (domain.Address, error) {
	a, err := domain.ParseAddress(s)
	if err != nil {
		return domain.Address{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return a, nil
}

// parseLimit reads the limit query parameter. Defaults to 100, capped at 1000.
func parseLimit(r *http.Request) int {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 1000 {
		limit = 1000
	}
	return limit
}

// eventsResponse is the reply to every mutating call.
type eventsResponse struct {
	Events []domain.EventRecord `json:"events"`
}

func writeEvents(w http.ResponseWriter, status int, recs []domain.EventRecord) {
	if recs == nil {
		recs = []domain.EventRecord{}
	}
	writeJSON(w, status, eventsResponse{Events: recs})
}
