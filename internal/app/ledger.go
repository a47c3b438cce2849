package app

import (
	"context"
	"fmt"
	"time"

	"trivia-match/internal/domain"
	"trivia-match/internal/store"
)

// Ledger records answers and keeps each player's score and total response
// time consistent with the answers they hold.
type Ledger struct {
	store store.Store
}

func NewLedger(st store.Store) *Ledger {
	return &Ledger{store: st}
}

// RegisterAnswer stores the player's answer to questionID and applies its
// score in the same transaction. Registering an answer to a question the
// player already answered replaces the earlier record and its contribution,
// so score == 10*correct and the time total only counts correct answers.
func (l *Ledger) RegisterAnswer(ctx context.Context, roomID, playerID, questionID string, choice, correctOption domain.Choice, elapsed time.Duration) (domain.AnswerRecord, error) {
	if roomID == "" || playerID == "" || questionID == "" {
		return domain.AnswerRecord{}, fmt.Errorf("%w: room, player and question are required", domain.ErrValidation)
	}
	rec := domain.AnswerRecord{
		Choice:  choice,
		Correct: choice != domain.ChoiceNone && choice == correctOption,
		TimeMs:  elapsed.Round(time.Millisecond).Milliseconds(),
	}
	if rec.TimeMs < 0 {
		rec.TimeMs = 0
	}

	_, err := l.store.Transact(ctx, playerPath(roomID, playerID), func(cur store.Snapshot) (any, error) {
		if !cur.Exists() {
			return nil, fmt.Errorf("%w: %s", domain.ErrPlayerNotFound, playerID)
		}
		var p domain.Player
		if err := cur.Decode(&p); err != nil {
			return nil, err
		}
		var doc map[string]any
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}

		score, total := p.Score, p.TotalResponseTimeMs
		if prev, ok := p.Answers[questionID]; ok && prev.Correct {
			score -= domain.PointsPerCorrect
			total -= prev.TimeMs
		}
		if rec.Correct {
			score += domain.PointsPerCorrect
			total += rec.TimeMs
		}
		if score < 0 {
			score = 0
		}
		if total < 0 {
			total = 0
		}

		answers, _ := doc["answers"].(map[string]any)
		if answers == nil {
			answers = map[string]any{}
		}
		answers[questionID] = rec
		doc["answers"] = answers
		doc["score"] = score
		doc["totalResponseTimeMs"] = total
		return doc, nil
	})
	if err != nil {
		return domain.AnswerRecord{}, err
	}
	return rec, nil
}
