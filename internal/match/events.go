package match

import (
	"time"

	"trivia-match/internal/domain"
)

// Event is an input to the Machine.
type Event interface{ isEvent() }

// Begin asks an idle machine to load the match questions.
type Begin struct{}

// Loaded reports that Total questions are available locally. StartIndex
// resumes a match already under way; Window overrides the answer window
// with the room's settings when positive.
type Loaded struct {
	Total      int
	StartIndex int
	Window     time.Duration
	At         time.Time
}

// LoadFailed reports that the question list could not be prepared.
type LoadFailed struct{ Err error }

// Tick is a countdown scheduler tick.
type Tick struct{ At time.Time }

// Select is the local player picking an option.
type Select struct {
	Choice domain.Choice
	At     time.Time
}

// ExplanationElapsed fires when the explanation hold is over.
type ExplanationElapsed struct{ At time.Time }

// MatchOver is observed when the room was finished before the loop started.
type MatchOver struct{}

func (Begin) isEvent()              {}
func (Loaded) isEvent()             {}
func (LoadFailed) isEvent()         {}
func (Tick) isEvent()               {}
func (Select) isEvent()             {}
func (ExplanationElapsed) isEvent() {}
func (MatchOver) isEvent()          {}

// Command is a side effect requested by the Machine.
type Command interface{ isCommand() }

type EnterState struct{ From, To State }

type LoadQuestions struct{}

type ShowQuestion struct{ Index, Total int }

// PublishProgress writes the room's questionIndex (host only).
type PublishProgress struct{ Index int }

type StartCountdown struct{}

type StopCountdown struct{}

type ShowRemaining struct{ Remaining time.Duration }

type PlayWarning struct{ Second int }

// RecordAnswer registers the local player's answer; ChoiceNone with the
// full window means the time ran out.
type RecordAnswer struct {
	Index   int
	Choice  domain.Choice
	Elapsed time.Duration
}

type ShowExplanation struct{ Index int }

type HoldExplanation struct{ Delay time.Duration }

// FinishMatch marks the room finished (host only).
type FinishMatch struct{}

type ShowRanking struct{}

type ReportError struct{ Err error }

func (EnterState) isCommand()      {}
func (LoadQuestions) isCommand()   {}
func (ShowQuestion) isCommand()    {}
func (PublishProgress) isCommand() {}
func (StartCountdown) isCommand()  {}
func (StopCountdown) isCommand()   {}
func (ShowRemaining) isCommand()   {}
func (PlayWarning) isCommand()     {}
func (RecordAnswer) isCommand()    {}
func (ShowExplanation) isCommand() {}
func (HoldExplanation) isCommand() {}
func (FinishMatch) isCommand()     {}
func (ShowRanking) isCommand()     {}
func (ReportError) isCommand()     {}
