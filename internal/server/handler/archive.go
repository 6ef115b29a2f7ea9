package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/curvemarket/internal/domain"
)

// ArchiveReader reads back the cold-storage event archive.
type ArchiveReader interface {
	ArchivedDays(ctx context.Context) ([]string, error)
	ReadDay(ctx context.Context, day time.Time) ([]domain.EventRecord, error)
}

// ArchiveHandler serves archived event days.
type ArchiveHandler struct {
	archive ArchiveReader
	logger  *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(archive ArchiveReader, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{archive: archive, logger: logger}
}

// ListDays returns the archived days, oldest first.
// GET /api/archive/events
func (h *ArchiveHandler) ListDays(w http.ResponseWriter, r *http.Request) {
	days, err := h.archive.ArchivedDays(r.Context())
	if err != nil {
		writeCallError(w, r, h.logger, err)
		return
	}
	if days == nil {
		days = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

// GetDay returns one archived day's events.
// GET /api/archive/events/{day}
func (h *ArchiveHandler) GetDay(w http.ResponseWriter, r *http.Request) {
	d, err := time.Parse(time.DateOnly, r.PathValue("day"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
		return
	}
	recs, err := h.archive.ReadDay(r.Context(), d)
	if err != nil {
		writeCallError(w, r, h.logger, err)
		return
	}
	writeEvents(w, http.StatusOK, recs)
}
