package http

import (
	"bytes"
	"errors"
	"net/http"

	"trivia-match/internal/app"
	"trivia-match/internal/domain"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ResultsHandler serves a room's results as a CSV download.
type ResultsHandler struct {
	exporter *app.Exporter
	clock    clockwork.Clock
}

func NewResultsHandler(registry *app.Registry, clock clockwork.Clock) *ResultsHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ResultsHandler{exporter: app.NewExporter(registry, clock), clock: clock}
}

// ServeCSV handles GET /rooms/{roomId}/results.csv.
func (h *ResultsHandler) ServeCSV(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomId")
	var buf bytes.Buffer
	if err := h.exporter.Export(r.Context(), &buf, roomID); err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		log.Warn().Err(err).Str("room_id", roomID).Msg("results export failed")
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+app.ExportFileName(roomID, h.clock.Now())+`"`)
	_, _ = w.Write(buf.Bytes())
}
