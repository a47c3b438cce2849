package domain

import (
	"fmt"
	"sort"
	"strings"
)

// PointsPerCorrect is awarded for every correct answer.
const PointsPerCorrect = 10

// Status is the match-level lifecycle of a room.
type Status string

const (
	StatusLobby      Status = "lobby"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
)

func (s Status) order() int {
	switch s {
	case StatusLobby:
		return 0
	case StatusInProgress:
		return 1
	case StatusFinished:
		return 2
	}
	return -1
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return s.order() >= 0 }

// CanAdvanceTo reports whether moving from s to next keeps the lifecycle
// forward-only (lobby < in_progress < finished). Staying put is allowed.
func (s Status) CanAdvanceTo(next Status) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return next.order() >= s.order()
}

// Choice is an answer option. ChoiceNone marks an unanswered question.
type Choice string

const (
	ChoiceNone Choice = ""
	ChoiceA    Choice = "A"
	ChoiceB    Choice = "B"
	ChoiceC    Choice = "C"
	ChoiceD    Choice = "D"
)

// Choices lists the selectable options in display order.
var Choices = []Choice{ChoiceA, ChoiceB, ChoiceC, ChoiceD}

// ParseChoice accepts a/b/c/d in any case.
func ParseChoice(raw string) (Choice, error) {
	c := Choice(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range Choices {
		if c == known {
			return c, nil
		}
	}
	return ChoiceNone, fmt.Errorf("%w: unknown option %q", ErrValidation, raw)
}

// Settings are written by the host when the match starts.
type Settings struct {
	QuestionCount     int    `json:"questionCount"`
	TimePerQuestionMs int    `json:"timePerQuestionMs"`
	BankID            string `json:"bankId,omitempty"`
}

// Room is the shared match document stored at rooms/{roomId}.
type Room struct {
	ID            string            `json:"-"`
	Status        Status            `json:"status"`
	HostID        string            `json:"hostId"`
	Settings      Settings          `json:"settings"`
	QuestionIndex int               `json:"questionIndex"`
	QuestionIDs   []string          `json:"questionIds,omitempty"`
	CreatedAt     int64             `json:"createdAt"`
	Players       map[string]Player `json:"players,omitempty"`
}

// PlayerList returns the room's players in join order, ties broken by id.
func (r Room) PlayerList() []Player {
	return OrderPlayers(r.Players)
}

// OrderPlayers flattens a player map into a deterministic slice ordered by
// joinedAt, then id. Ids are copied from the map keys.
func OrderPlayers(players map[string]Player) []Player {
	list := make([]Player, 0, len(players))
	for id, p := range players {
		p.ID = id
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].JoinedAt != list[j].JoinedAt {
			return list[i].JoinedAt < list[j].JoinedAt
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// Player is a participant document stored at rooms/{roomId}/players/{playerId}.
type Player struct {
	ID                  string                  `json:"-"`
	Name                string                  `json:"name"`
	Unit                string                  `json:"unit"`
	JoinedAt            int64                   `json:"joinedAt"`
	Score               int                     `json:"score"`
	TotalResponseTimeMs int64                   `json:"totalResponseTimeMs"`
	Answers             map[string]AnswerRecord `json:"answers,omitempty"`
}

// AnsweredCount counts recorded answers, including unanswered timeouts.
func (p Player) AnsweredCount() int {
	return len(p.Answers)
}

// CorrectCount counts correct answers.
func (p Player) CorrectCount() int {
	n := 0
	for _, a := range p.Answers {
		if a.Correct {
			n++
		}
	}
	return n
}

// AverageCorrectTimeMs is the mean response time over correct answers, or 0.
func (p Player) AverageCorrectTimeMs() int64 {
	correct := p.CorrectCount()
	if correct == 0 {
		return 0
	}
	return (p.TotalResponseTimeMs + int64(correct)/2) / int64(correct)
}

// AnswerRecord is one player's response to one question.
type AnswerRecord struct {
	Choice  Choice `json:"choice"`
	Correct bool   `json:"correct"`
	TimeMs  int64  `json:"timeMs"`
}

// Question is an entry of the static question bank.
type Question struct {
	ID            string            `json:"id"`
	Prompt        string            `json:"prompt"`
	Options       map[Choice]string `json:"options"`
	CorrectOption Choice            `json:"correctOption"`
	Explanation   string            `json:"explanation"`
}

// Validate checks that the question has an id, all four options and a
// selectable correct option.
func (q Question) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("%w: question without id", ErrValidation)
	}
	for _, c := range Choices {
		if _, ok := q.Options[c]; !ok {
			return fmt.Errorf("%w: question %s is missing option %s", ErrValidation, q.ID, c)
		}
	}
	if _, err := ParseChoice(string(q.CorrectOption)); err != nil {
		return fmt.Errorf("question %s: %w", q.ID, err)
	}
	return nil
}

// Bank is a named, ordered question collection.
type Bank struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// Validate validates every question and rejects duplicate ids.
func (b Bank) Validate() error {
	seen := make(map[string]struct{}, len(b.Questions))
	for _, q := range b.Questions {
		if err := q.Validate(); err != nil {
			return err
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: duplicate question id %s", ErrValidation, q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return nil
}

// Index maps question id to question.
func (b Bank) Index() map[string]Question {
	idx := make(map[string]Question, len(b.Questions))
	for _, q := range b.Questions {
		idx[q.ID] = q
	}
	return idx
}

// Standing is one row of a scoreboard or final ranking.
type Standing struct {
	Position            int    `json:"position"`
	PlayerID            string `json:"playerId"`
	Name                string `json:"name"`
	Unit                string `json:"unit"`
	Score               int    `json:"score"`
	TotalResponseTimeMs int64  `json:"totalResponseTimeMs"`
}

// Membership is the (room, player) pair a device remembers so it can resume
// a match after a restart.
type Membership struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}
