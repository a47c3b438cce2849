package app

import (
	"time"

	"trivia-match/internal/domain"
	"trivia-match/internal/match"
)

// Presenter renders controller output. Calls come from the controller's
// goroutine, one at a time.
type Presenter interface {
	StateChanged(from, to match.State)
	ShowQuestion(index, total int, q domain.Question)
	ShowRemaining(remaining time.Duration)
	PlayWarning(second int)
	ShowAnswer(q domain.Question, rec domain.AnswerRecord)
	ShowExplanation(q domain.Question)
	ShowScoreboard(standings []domain.Standing)
	ShowRanking(standings []domain.Standing)
	ShowError(err error)
}

// NopPresenter discards everything.
type NopPresenter struct{}

func (NopPresenter) StateChanged(match.State, match.State)           {}
func (NopPresenter) ShowQuestion(int, int, domain.Question)          {}
func (NopPresenter) ShowRemaining(time.Duration)                     {}
func (NopPresenter) PlayWarning(int)                                 {}
func (NopPresenter) ShowAnswer(domain.Question, domain.AnswerRecord) {}
func (NopPresenter) ShowExplanation(domain.Question)                 {}
func (NopPresenter) ShowScoreboard([]domain.Standing)                {}
func (NopPresenter) ShowRanking([]domain.Standing)                   {}
func (NopPresenter) ShowError(error)                                 {}
