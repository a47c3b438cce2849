package app_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"trivia-match/internal/app"
	"trivia-match/internal/domain"
)

func TestExportWritesRankedRows(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	room, _ := env.registry.Create(ctx, "host-1", domain.Settings{})
	_, _ = env.registry.AddPlayer(ctx, room.ID, "p1", "Silva, Ana", "ICU")
	_, _ = env.registry.AddPlayer(ctx, room.ID, "p2", "Bruno", "ER")
	_, _ = env.registry.AddPlayer(ctx, room.ID, "p3", "Carla", "Lab")

	answer := func(player, question string, choice domain.Choice, ms int) {
		t.Helper()
		if _, err := env.ledger.RegisterAnswer(ctx, room.ID, player, question, choice, domain.ChoiceB, time.Duration(ms)*time.Millisecond); err != nil {
			t.Fatalf("answer failed: %v", err)
		}
	}
	answer("p1", "q1", domain.ChoiceB, 1000)
	answer("p1", "q2", domain.ChoiceB, 2001)
	answer("p2", "q1", domain.ChoiceB, 800)
	answer("p2", "q2", domain.ChoiceA, 900)
	answer("p3", "q1", domain.ChoiceNone, 15000)

	var buf bytes.Buffer
	if err := app.NewExporter(env.registry, env.clock).Export(ctx, &buf, room.ID); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"Silva, Ana"`)) {
		t.Fatalf("names with commas must be quoted:\n%s", buf.String())
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid csv: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header and 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "roomId" || rows[0][8] != "averageCorrectTimeMs" {
		t.Fatalf("unexpected header %v", rows[0])
	}

	stamp := epoch.Format("2006-01-02T15:04:05.000Z07:00")
	want := [][]string{
		{room.ID, stamp, "Silva, Ana", "ICU", "20", "3001", "2", "2", "1501"},
		{room.ID, stamp, "Bruno", "ER", "10", "800", "2", "1", "800"},
		{room.ID, stamp, "Carla", "Lab", "0", "0", "1", "0", "0"},
	}
	for i, w := range want {
		got := rows[i+1]
		for j := range w {
			if got[j] != w[j] {
				t.Fatalf("row %d column %d: expected %q, got %q", i+1, j, w[j], got[j])
			}
		}
	}
}

func TestExportUnknownRoom(t *testing.T) {
	env := newTestEnv(t)
	var buf bytes.Buffer
	err := app.NewExporter(env.registry, env.clock).Export(context.Background(), &buf, "404404")
	if !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected room not found, got %v", err)
	}
}

func TestJoinLinkRoundTrip(t *testing.T) {
	link, err := app.JoinLink("https://quiz.example.org/play", "123456")
	if err != nil {
		t.Fatalf("link failed: %v", err)
	}
	if link != "https://quiz.example.org/play?room=123456" {
		t.Fatalf("unexpected link %s", link)
	}
	for _, in := range []string{link, " 123456 ", "/play?room=123456"} {
		code, err := app.RoomCode(in)
		if err != nil || code != "123456" {
			t.Fatalf("RoomCode(%q) = %q, %v", in, code, err)
		}
	}
	if _, err := app.RoomCode("https://quiz.example.org/play?x=1"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
