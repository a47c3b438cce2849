package app

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
)

var resultHeader = []string{
	"roomId", "timestampUTC", "name", "unit", "score",
	"totalResponseTimeMs", "answeredCount", "correctCount", "averageCorrectTimeMs",
}

// Exporter writes the results of a room as CSV in ranking order.
type Exporter struct {
	registry *Registry
	clock    clockwork.Clock
}

func NewExporter(registry *Registry, clock clockwork.Clock) *Exporter {
	return &Exporter{registry: registry, clock: clock}
}

// Export writes one header row and one row per player.
func (e *Exporter) Export(ctx context.Context, w io.Writer, roomID string) error {
	room, err := e.registry.Load(ctx, roomID)
	if err != nil {
		return err
	}
	players := room.PlayerList()
	byID := make(map[string]int, len(players))
	for i, p := range players {
		byID[p.ID] = i
	}
	stamp := e.clock.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")

	cw := csv.NewWriter(w)
	if err := cw.Write(resultHeader); err != nil {
		return err
	}
	for _, s := range Rank(players) {
		p := players[byID[s.PlayerID]]
		row := []string{
			room.ID,
			stamp,
			p.Name,
			p.Unit,
			strconv.Itoa(p.Score),
			strconv.FormatInt(p.TotalResponseTimeMs, 10),
			strconv.Itoa(p.AnsweredCount()),
			strconv.Itoa(p.CorrectCount()),
			strconv.FormatInt(p.AverageCorrectTimeMs(), 10),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFileName is the suggested download name for a room's results.
func ExportFileName(roomID string, at time.Time) string {
	return "results-" + roomID + "-" + at.UTC().Format("20060102-150405") + ".csv"
}
