package app

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"trivia-match/internal/domain"
	"trivia-match/internal/infra/memory"
	"trivia-match/internal/match"

	"github.com/jonboulle/clockwork"
)

func TestLateSelectDoesNotLeakIntoNextQuestion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC))
	st := memory.NewStoreWithClock(clock)
	registry := NewRegistry(st, rand.New(rand.NewSource(1)))
	room, err := registry.Create(ctx, "host-1", domain.Settings{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := registry.AddPlayer(ctx, room.ID, "p1", "Ana", "ICU"); err != nil {
		t.Fatalf("add player: %v", err)
	}

	c := NewController(&Session{RoomID: room.ID, PlayerID: "p1"}, ControllerDeps{
		Registry: registry,
		Ledger:   NewLedger(st),
		Clock:    clock,
		Timing:   DefaultTiming(),
	})
	defer c.stopTimers()
	for i := 0; i < 2; i++ {
		c.questions = append(c.questions, domain.Question{
			ID:            fmt.Sprintf("q%d", i),
			Options:       map[domain.Choice]string{domain.ChoiceA: "a", domain.ChoiceB: "b", domain.ChoiceC: "c", domain.ChoiceD: "d"},
			CorrectOption: domain.ChoiceB,
		})
	}
	c.machine.Handle(match.Begin{})
	c.dispatch(ctx, match.Loaded{Total: 2, At: clock.Now()})

	// clicked while question 0 is on screen, processed only after it moved on
	c.Select(domain.ChoiceB)
	stale := <-c.inputs

	c.dispatch(ctx, match.Tick{At: clock.Now().Add(15 * time.Second)})
	c.dispatch(ctx, match.ExplanationElapsed{At: clock.Now().Add(18 * time.Second)})
	if c.machine.Index() != 1 || c.machine.State() != match.QuestionActive {
		t.Fatalf("expected question 1 active, got %d/%s", c.machine.Index(), c.machine.State())
	}

	c.onInput(ctx, stale)
	if c.machine.State() != match.QuestionActive {
		t.Fatalf("stale answer locked the next question, state %s", c.machine.State())
	}

	c.Select(domain.ChoiceB)
	c.onInput(ctx, <-c.inputs)
	if c.machine.State() != match.Explaining {
		t.Fatalf("current answer should lock, state %s", c.machine.State())
	}
}
