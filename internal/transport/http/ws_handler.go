package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"trivia-match/internal/app"
	"trivia-match/internal/domain"
	"trivia-match/internal/infra/memory"
	"trivia-match/internal/match"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Deps wires the gateway to the match services.
type Deps struct {
	Registry      *app.Registry
	Ledger        *app.Ledger
	Bank          app.QuestionBank
	BankID        string
	Clock         clockwork.Clock
	Devices       *memory.LocalStates
	Timing        app.Timing
	QuestionCount int
	BaseURL       string
}

// WSHandler exposes one client session per websocket connection. The match
// logic runs in an app.Controller; the browser only renders what it is sent.
type WSHandler struct {
	deps     Deps
	upgrader websocket.Upgrader
}

func NewWSHandler(deps Deps) *WSHandler {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Devices == nil {
		deps.Devices = memory.NewLocalStates()
	}
	return &WSHandler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	Count int `json:"count"`
}

type answerPayload struct {
	Choice string `json:"choice"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type sessionPayload struct {
	RoomID    string `json:"roomId"`
	PlayerID  string `json:"playerId"`
	Host      bool   `json:"host"`
	Spectator bool   `json:"spectator"`
	Resumed   bool   `json:"resumed"`
	JoinLink  string `json:"joinLink,omitempty"`
}

// ServeWS upgrades the request and attaches it to a room. Query parameters:
// userId (device identity), action (host or join), room, name, unit and
// spectate. A remembered membership of the same device is resumed first.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	device := h.deps.Devices.Device(userID)
	lobby := app.NewLobby(h.deps.Registry, device)
	sess, err := h.attach(ctx, lobby, device, userID, q.Get("action"), q.Get("room"), q.Get("name"), q.Get("unit"), q.Get("spectate") == "true")
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	logger := log.With().Str("room_id", sess.RoomID).Str("player_id", sess.PlayerID).Logger()

	send := make(chan outboundMessage[any], 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()
	out := &wsPresenter{send: send, writerDone: writerDone}

	info := sessionPayload{
		RoomID:    sess.RoomID,
		PlayerID:  sess.PlayerID,
		Host:      sess.Host,
		Spectator: sess.Spectator,
		Resumed:   sess.Resumed,
	}
	if h.deps.BaseURL != "" {
		info.JoinLink, _ = app.JoinLink(h.deps.BaseURL, sess.RoomID)
	}
	out.emit("session", info)

	ctrl := app.NewController(sess, app.ControllerDeps{
		Registry:  h.deps.Registry,
		Ledger:    h.deps.Ledger,
		Bank:      h.deps.Bank,
		BankID:    h.deps.BankID,
		Clock:     h.deps.Clock,
		Presenter: out,
		Timing:    h.deps.Timing,
	})
	ctrlDone := make(chan struct{})
	go func() {
		defer close(ctrlDone)
		if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			out.ShowError(err)
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			var payload startPayload
			_ = json.Unmarshal(inbound.Payload, &payload)
			if payload.Count <= 0 {
				payload.Count = h.deps.QuestionCount
			}
			ctrl.Start(payload.Count)
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				out.ShowError(errors.New("invalid answer payload"))
				continue
			}
			choice, err := domain.ParseChoice(payload.Choice)
			if err != nil {
				out.ShowError(err)
				continue
			}
			ctrl.Select(choice)
		case "leave":
			if err := lobby.Leave(ctx, sess); err != nil {
				logger.Warn().Err(err).Msg("leave failed")
			}
			cancel()
		default:
			out.ShowError(errors.New("unsupported message type"))
		}
		if ctx.Err() != nil {
			break
		}
	}

	cancel()
	<-ctrlDone
	close(send)
	<-writerDone
}

func (h *WSHandler) attach(ctx context.Context, lobby *app.Lobby, device app.LocalState, userID, action, room, name, unit string, spectate bool) (*app.Session, error) {
	if room != "" {
		code, err := app.RoomCode(room)
		if err != nil {
			return nil, err
		}
		room = code
	}
	if sess, ok := app.NewReconnector(h.deps.Registry, device).Restore(ctx, userID); ok && (room == "" || room == sess.RoomID) && action != "host" {
		return sess, nil
	}
	if action == "host" {
		sess, _, err := lobby.Host(ctx, app.HostRequest{
			HostID:   userID,
			Spectate: spectate,
			Settings: domain.Settings{
				QuestionCount:     h.deps.QuestionCount,
				TimePerQuestionMs: int(h.deps.Timing.TimePerQuestion / time.Millisecond),
				BankID:            h.deps.BankID,
			},
		})
		return sess, err
	}
	return lobby.Join(ctx, app.JoinRequest{RoomID: room, PlayerID: userID, Name: name, Unit: unit})
}

// wsPresenter turns controller output into websocket messages. Countdown
// updates are dropped when the client falls behind; everything else waits
// for the writer.
type wsPresenter struct {
	send       chan outboundMessage[any]
	writerDone chan struct{}
}

type questionPayload struct {
	Index   int                      `json:"index"`
	Total   int                      `json:"total"`
	ID      string                   `json:"id"`
	Prompt  string                   `json:"prompt"`
	Options map[domain.Choice]string `json:"options"`
}

type answerResult struct {
	QuestionID    string        `json:"questionId"`
	Choice        domain.Choice `json:"choice"`
	Correct       bool          `json:"correct"`
	CorrectOption domain.Choice `json:"correctOption"`
	TimeMs        int64         `json:"timeMs"`
}

type explanationPayload struct {
	QuestionID    string        `json:"questionId"`
	CorrectOption domain.Choice `json:"correctOption"`
	Explanation   string        `json:"explanation"`
}

func (p *wsPresenter) emit(typ string, payload any) {
	select {
	case p.send <- outboundMessage[any]{Type: typ, Payload: payload}:
	case <-p.writerDone:
	}
}

func (p *wsPresenter) StateChanged(_, to match.State) {
	p.emit("state", map[string]string{"state": to.String()})
}

func (p *wsPresenter) ShowQuestion(index, total int, q domain.Question) {
	p.emit("question", questionPayload{Index: index, Total: total, ID: q.ID, Prompt: q.Prompt, Options: q.Options})
}

func (p *wsPresenter) ShowRemaining(remaining time.Duration) {
	select {
	case p.send <- outboundMessage[any]{Type: "remaining", Payload: map[string]int64{"ms": remaining.Milliseconds()}}:
	default:
	}
}

func (p *wsPresenter) PlayWarning(second int) {
	p.emit("warning", map[string]int{"second": second})
}

func (p *wsPresenter) ShowAnswer(q domain.Question, rec domain.AnswerRecord) {
	p.emit("answer", answerResult{
		QuestionID:    q.ID,
		Choice:        rec.Choice,
		Correct:       rec.Correct,
		CorrectOption: q.CorrectOption,
		TimeMs:        rec.TimeMs,
	})
}

func (p *wsPresenter) ShowExplanation(q domain.Question) {
	p.emit("explanation", explanationPayload{QuestionID: q.ID, CorrectOption: q.CorrectOption, Explanation: q.Explanation})
}

func (p *wsPresenter) ShowScoreboard(standings []domain.Standing) {
	p.emit("scoreboard", standings)
}

func (p *wsPresenter) ShowRanking(standings []domain.Standing) {
	p.emit("ranking", standings)
}

func (p *wsPresenter) ShowError(err error) {
	p.emit("error", errorPayload{Message: err.Error()})
}
