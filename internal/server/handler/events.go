package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/curvemarket/internal/domain"
)

// EventSource lists persisted ledger events.
type EventSource interface {
	Events(ctx context.Context, afterSeq uint64, limit int) ([]domain.EventRecord, error)
}

// EventHandler serves the event log.
type EventHandler struct {
	events EventSource
	logger *slog.Logger
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(events EventSource, logger *slog.Logger) *EventHandler {
	return &EventHandler{events: events, logger: logger}
}

type listEventsResponse struct {
	Events  []domain.EventRecord `json:"events"`
	NextSeq uint64               `json:"next_seq"`
}

// ListEvents pages through the event log by sequence number.
// GET /api/events?since=0&limit=100
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if s := r.URL.Query().Get("since"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since")
			return
		}
		since = v
	}

	recs, err := h.events.Events(r.Context(), since, parseLimit(r))
	if err != nil {
		writeCallError(w, r, h.logger, err)
		return
	}
	next := since
	if len(recs) > 0 {
		next = recs[len(recs)-1].Seq
	}
	if recs == nil {
		recs = []domain.EventRecord{}
	}
	writeJSON(w, http.StatusOK, listEventsResponse{Events: recs, NextSeq: next})
}
