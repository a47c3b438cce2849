// Package match holds the per-client question loop as a pure state machine:
// events go in, the resulting state changes and side effects come out as
// commands for the driver to execute. It never touches clocks, timers or
// the store.
package match

import (
	"time"

	"trivia-match/internal/domain"
)

// State of the client-side question loop.
type State int

const (
	Idle State = iota
	Loading
	QuestionActive
	Locked
	Explaining
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case QuestionActive:
		return "question_active"
	case Locked:
		return "locked"
	case Explaining:
		return "explaining"
	case Finished:
		return "finished"
	}
	return "unknown"
}

// Config tunes a Machine.
type Config struct {
	TimePerQuestion  time.Duration
	ExplanationDelay time.Duration
	// WarningSeconds is how many final whole seconds get a warning cue.
	WarningSeconds int
	// Host machines publish progression and finish the room.
	Host bool
	// Spectators drive the loop but never record answers.
	Spectator bool
}

// DefaultConfig mirrors the classic 15s question / 3s explanation rhythm.
func DefaultConfig() Config {
	return Config{
		TimePerQuestion:  15 * time.Second,
		ExplanationDelay: 3 * time.Second,
		WarningSeconds:   5,
	}
}

// Machine is not safe for concurrent use; the driver owns it.
type Machine struct {
	cfg         Config
	window      time.Duration
	state       State
	index       int
	total       int
	startedAt   time.Time
	lastWarning int
}

func New(cfg Config) *Machine {
	if cfg.TimePerQuestion <= 0 {
		cfg.TimePerQuestion = DefaultConfig().TimePerQuestion
	}
	if cfg.ExplanationDelay < 0 {
		cfg.ExplanationDelay = 0
	}
	return &Machine{cfg: cfg, window: cfg.TimePerQuestion, state: Idle}
}

func (m *Machine) State() State { return m.state }

// Index is the position of the current question in the local sequence.
func (m *Machine) Index() int { return m.index }

func (m *Machine) Total() int { return m.total }

// Window is the answer window of the running match.
func (m *Machine) Window() time.Duration { return m.window }

// Handle applies ev and returns the commands it produced. Events that do not
// apply to the current state produce no commands.
func (m *Machine) Handle(ev Event) []Command {
	switch ev := ev.(type) {
	case Begin:
		if m.state != Idle {
			return nil
		}
		return []Command{m.enter(Loading), LoadQuestions{}}

	case Loaded:
		if m.state != Loading {
			return nil
		}
		if ev.Window > 0 {
			m.window = ev.Window
		}
		m.total = ev.Total
		if ev.StartIndex >= ev.Total {
			m.index = ev.Total
			return m.finish()
		}
		m.index = ev.StartIndex
		if m.index < 0 {
			m.index = 0
		}
		return m.startQuestion(ev.At)

	case LoadFailed:
		if m.state != Loading {
			return nil
		}
		return []Command{m.enter(Idle), ReportError{Err: ev.Err}}

	case Tick:
		if m.state != QuestionActive {
			return nil
		}
		remaining := m.remaining(ev.At)
		cmds := []Command{ShowRemaining{Remaining: remaining}}
		cmds = append(cmds, m.warnings(remaining)...)
		if remaining == 0 {
			cmds = append(cmds, m.lock(domain.ChoiceNone, m.window)...)
		}
		return cmds

	case Select:
		if m.state != QuestionActive {
			return nil
		}
		remaining := m.remaining(ev.At)
		if remaining == 0 {
			// the window closed before the pick was processed
			return append(m.warnings(0), m.lock(domain.ChoiceNone, m.window)...)
		}
		return m.lock(ev.Choice, m.window-remaining)

	case ExplanationElapsed:
		if m.state != Explaining {
			return nil
		}
		if m.index+1 < m.total {
			m.index++
			return m.startQuestion(ev.At)
		}
		m.index = m.total
		return m.finish()

	case MatchOver:
		if m.state != Idle && m.state != Loading {
			return nil
		}
		return []Command{m.enter(Finished), ShowRanking{}}
	}
	return nil
}

func (m *Machine) enter(to State) Command {
	from := m.state
	m.state = to
	return EnterState{From: from, To: to}
}

func (m *Machine) startQuestion(at time.Time) []Command {
	m.startedAt = at
	// a window shorter than the warning zone only cues the seconds it has
	m.lastWarning = min(m.cfg.WarningSeconds, wholeSeconds(m.window)) + 1
	cmds := []Command{m.enter(QuestionActive), ShowQuestion{Index: m.index, Total: m.total}}
	if m.cfg.Host {
		cmds = append(cmds, PublishProgress{Index: m.index})
	}
	return append(cmds, StartCountdown{}, ShowRemaining{Remaining: m.window})
}

// remaining is always recomputed from the question start, never decremented,
// so late or skipped ticks do not skew the countdown.
func (m *Machine) remaining(at time.Time) time.Duration {
	left := m.window - at.Sub(m.startedAt)
	if left < 0 {
		return 0
	}
	return left
}

// warnings emits one cue per whole second crossed inside the warning zone,
// including seconds a late tick jumped over, and never repeats one.
func (m *Machine) warnings(remaining time.Duration) []Command {
	left := wholeSeconds(remaining)
	if left < 1 {
		left = 1
	}
	var cmds []Command
	for s := m.lastWarning - 1; s >= left; s-- {
		if s <= m.cfg.WarningSeconds {
			cmds = append(cmds, PlayWarning{Second: s})
		}
	}
	if left < m.lastWarning {
		m.lastWarning = left
	}
	return cmds
}

// wholeSeconds rounds d up to whole seconds.
func wholeSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

func (m *Machine) lock(choice domain.Choice, elapsed time.Duration) []Command {
	if elapsed < 0 {
		elapsed = 0
	}
	cmds := []Command{StopCountdown{}, m.enter(Locked)}
	if !m.cfg.Spectator {
		cmds = append(cmds, RecordAnswer{Index: m.index, Choice: choice, Elapsed: elapsed})
	}
	return append(cmds,
		m.enter(Explaining),
		ShowExplanation{Index: m.index},
		HoldExplanation{Delay: m.cfg.ExplanationDelay},
	)
}

func (m *Machine) finish() []Command {
	cmds := []Command{m.enter(Finished)}
	if m.cfg.Host {
		cmds = append(cmds, FinishMatch{})
	}
	return append(cmds, ShowRanking{})
}
