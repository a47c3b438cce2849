package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"trivia-match/internal/domain"
	"trivia-match/internal/match"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// QuestionBank serves question banks by id.
type QuestionBank interface {
	GetBank(ctx context.Context, bankID string) (domain.Bank, error)
}

// Timing holds the match rhythm.
type Timing struct {
	TimePerQuestion  time.Duration
	ExplanationDelay time.Duration
	TickInterval     time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		TimePerQuestion:  15 * time.Second,
		ExplanationDelay: 3 * time.Second,
		TickInterval:     100 * time.Millisecond,
	}
}

// ControllerDeps wires a Controller.
type ControllerDeps struct {
	Registry  *Registry
	Ledger    *Ledger
	Bank      QuestionBank
	BankID    string
	Clock     clockwork.Clock
	Rand      *rand.Rand
	Presenter Presenter
	Timing    Timing
}

type startRequest struct{ count int }

type selectRequest struct {
	choice domain.Choice
	at     time.Time
	index  int
}

type loadResult struct {
	questions  []domain.Question
	startIndex int
	window     time.Duration
	err        error
}

// Controller runs one client's side of a match: it follows the room
// document, drives the question loop and records the local player's answers.
// Everything but Start and Select runs on the goroutine that called Run.
type Controller struct {
	sess      *Session
	registry  *Registry
	ledger    *Ledger
	bank      QuestionBank
	bankID    string
	clock     clockwork.Clock
	rnd       *rand.Rand
	presenter Presenter
	timing    Timing
	logger    zerolog.Logger

	machine  *match.Machine
	inputs   chan any
	failures chan error
	done     chan struct{}
	pending  sync.WaitGroup
	// shown is the index of the question last handed to the presenter.
	shown atomic.Int64

	room      domain.Room
	questions []domain.Question
	ticker    clockwork.Ticker
	hold      clockwork.Timer
	finished  bool
}

func NewController(sess *Session, deps ControllerDeps) *Controller {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if deps.Presenter == nil {
		deps.Presenter = NopPresenter{}
	}
	def := DefaultTiming()
	if deps.Timing == (Timing{}) {
		deps.Timing = def
	}
	if deps.Timing.TimePerQuestion <= 0 {
		deps.Timing.TimePerQuestion = def.TimePerQuestion
	}
	if deps.Timing.ExplanationDelay < 0 {
		deps.Timing.ExplanationDelay = 0
	}
	if deps.Timing.TickInterval <= 0 {
		deps.Timing.TickInterval = def.TickInterval
	}

	cfg := match.DefaultConfig()
	cfg.TimePerQuestion = deps.Timing.TimePerQuestion
	cfg.ExplanationDelay = deps.Timing.ExplanationDelay
	cfg.Host = sess.Host
	cfg.Spectator = sess.Spectator

	return &Controller{
		sess:      sess,
		registry:  deps.Registry,
		ledger:    deps.Ledger,
		bank:      deps.Bank,
		bankID:    deps.BankID,
		clock:     deps.Clock,
		rnd:       deps.Rand,
		presenter: deps.Presenter,
		timing:    deps.Timing,
		logger:    log.With().Str("room_id", sess.RoomID).Str("player_id", sess.PlayerID).Logger(),
		machine:   match.New(cfg),
		inputs:    make(chan any, 16),
		failures:  make(chan error, 32),
		done:      make(chan struct{}),
	}
}

// State is only safe to call once Run has returned.
func (c *Controller) State() match.State { return c.machine.State() }

// Start asks the controller to begin the match with count questions. Only
// the host's request has an effect; duplicates are ignored.
func (c *Controller) Start(count int) {
	c.post(startRequest{count: count})
}

// Select submits the local player's choice for the active question. The
// response time is measured from this call.
func (c *Controller) Select(choice domain.Choice) {
	c.post(selectRequest{choice: choice, at: c.clock.Now(), index: int(c.shown.Load())})
}

func (c *Controller) post(in any) {
	select {
	case c.inputs <- in:
	case <-c.done:
	}
}

// Run follows the room until the local player has seen the final ranking,
// the room disappears or ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.stopTimers()

	room, err := c.registry.Load(ctx, c.sess.RoomID)
	if err != nil {
		return err
	}
	c.room = room

	rooms := make(chan domain.Room, 1)
	gone := make(chan struct{}, 1)
	unsubscribe, err := c.registry.SubscribeRoom(ctx, c.sess.RoomID, func(room domain.Room, exists bool) {
		if !exists {
			select {
			case gone <- struct{}{}:
			default:
			}
			return
		}
		// latest wins: drop a version the loop has not picked up yet
		select {
		case <-rooms:
		default:
		}
		rooms <- room
	})
	if err != nil {
		return err
	}
	defer unsubscribe()

	c.onRoom(ctx, room)
	for !c.finished {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-gone:
			c.presenter.ShowError(fmt.Errorf("%w: %s", domain.ErrRoomNotFound, c.sess.RoomID))
			return domain.ErrRoomNotFound
		case room := <-rooms:
			c.onRoom(ctx, room)
		case in := <-c.inputs:
			c.onInput(ctx, in)
		case err := <-c.failures:
			c.presenter.ShowError(err)
		case <-c.tickC():
			c.dispatch(ctx, match.Tick{At: c.clock.Now()})
		case <-c.holdC():
			c.hold = nil
			c.dispatch(ctx, match.ExplanationElapsed{At: c.clock.Now()})
		}
	}
	return nil
}

func (c *Controller) onRoom(ctx context.Context, room domain.Room) {
	c.room = room
	c.presenter.ShowScoreboard(Rank(room.PlayerList()))
	if c.machine.State() != match.Idle {
		return
	}
	switch room.Status {
	case domain.StatusInProgress:
		c.dispatch(ctx, match.Begin{})
	case domain.StatusFinished:
		c.dispatch(ctx, match.MatchOver{})
	}
}

func (c *Controller) onInput(ctx context.Context, in any) {
	switch in := in.(type) {
	case startRequest:
		if !c.sess.Host {
			c.logger.Debug().Msg("start ignored, not the host")
			return
		}
		if c.machine.State() != match.Idle || c.room.Status != domain.StatusLobby {
			c.logger.Debug().Str("status", string(c.room.Status)).Msg("duplicate start ignored")
			return
		}
		c.dispatchLoad(ctx, func(ctx context.Context) loadResult { return c.prepare(ctx, in.count) })
	case selectRequest:
		if c.machine.State() != match.QuestionActive {
			c.logger.Debug().Msg("answer after lock ignored")
			return
		}
		if in.index != c.machine.Index() {
			c.logger.Debug().Int("question", in.index).Int("active", c.machine.Index()).Msg("answer for an earlier question ignored")
			return
		}
		c.dispatch(ctx, match.Select{Choice: in.choice, At: in.at})
	case loadResult:
		if in.err != nil {
			c.dispatch(ctx, match.LoadFailed{Err: in.err})
			return
		}
		c.questions = in.questions
		c.dispatch(ctx, match.Loaded{
			Total:      len(in.questions),
			StartIndex: in.startIndex,
			Window:     in.window,
			At:         c.clock.Now(),
		})
	}
}

// dispatchLoad begins loading through the machine with a custom loader.
func (c *Controller) dispatchLoad(ctx context.Context, load func(context.Context) loadResult) {
	c.runCommands(ctx, c.machine.Handle(match.Begin{}), load)
}

func (c *Controller) dispatch(ctx context.Context, ev match.Event) {
	c.runCommands(ctx, c.machine.Handle(ev), nil)
}

func (c *Controller) runCommands(ctx context.Context, cmds []match.Command, load func(context.Context) loadResult) {
	for _, cmd := range cmds {
		switch cmd := cmd.(type) {
		case match.EnterState:
			c.logger.Debug().Stringer("from", cmd.From).Stringer("to", cmd.To).Msg("state changed")
			c.presenter.StateChanged(cmd.From, cmd.To)
		case match.LoadQuestions:
			if load == nil {
				room := c.room
				load = func(ctx context.Context) loadResult { return c.follow(ctx, room) }
			}
			go func() {
				res := load(ctx)
				c.post(res)
			}()
		case match.ShowQuestion:
			c.shown.Store(int64(cmd.Index))
			c.presenter.ShowQuestion(cmd.Index, cmd.Total, c.questions[cmd.Index])
		case match.PublishProgress:
			index := cmd.Index
			c.async(ctx, func(ctx context.Context) error {
				return c.registry.AdvanceQuestion(ctx, c.sess.RoomID, index)
			})
		case match.StartCountdown:
			c.stopTimers()
			c.ticker = c.clock.NewTicker(c.timing.TickInterval)
		case match.StopCountdown:
			if c.ticker != nil {
				c.ticker.Stop()
				c.ticker = nil
			}
		case match.ShowRemaining:
			c.presenter.ShowRemaining(cmd.Remaining)
		case match.PlayWarning:
			c.presenter.PlayWarning(cmd.Second)
		case match.RecordAnswer:
			c.record(ctx, cmd)
		case match.ShowExplanation:
			c.presenter.ShowExplanation(c.questions[cmd.Index])
		case match.HoldExplanation:
			c.hold = c.clock.NewTimer(cmd.Delay)
		case match.FinishMatch:
			c.pending.Wait()
			if err := c.registry.FinishMatch(ctx, c.sess.RoomID); err != nil {
				c.logger.Warn().Err(err).Msg("finish match")
				c.presenter.ShowError(err)
			}
		case match.ShowRanking:
			c.pending.Wait()
			c.presenter.ShowRanking(c.ranking(ctx))
			c.finished = true
		case match.ReportError:
			c.logger.Warn().Err(cmd.Err).Msg("match loop error")
			c.presenter.ShowError(cmd.Err)
		}
	}
}

// record shows the outcome at once and writes it in the background, so a
// slow store never holds up the countdown of the next question.
func (c *Controller) record(ctx context.Context, cmd match.RecordAnswer) {
	q := c.questions[cmd.Index]
	rec := domain.AnswerRecord{
		Choice:  cmd.Choice,
		Correct: cmd.Choice != domain.ChoiceNone && cmd.Choice == q.CorrectOption,
		TimeMs:  cmd.Elapsed.Round(time.Millisecond).Milliseconds(),
	}
	c.presenter.ShowAnswer(q, rec)
	c.async(ctx, func(ctx context.Context) error {
		_, err := c.ledger.RegisterAnswer(ctx, c.sess.RoomID, c.sess.PlayerID, q.ID, cmd.Choice, q.CorrectOption, cmd.Elapsed)
		return err
	})
}

func (c *Controller) async(ctx context.Context, fn func(context.Context) error) {
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		err := fn(ctx)
		if err == nil || errors.Is(err, domain.ErrStateConflict) || errors.Is(err, context.Canceled) {
			return
		}
		c.logger.Warn().Err(err).Msg("background write failed")
		select {
		case c.failures <- err:
		default:
		}
	}()
}

// prepare picks the host's questions and opens the match.
func (c *Controller) prepare(ctx context.Context, count int) loadResult {
	bankID := c.bankID
	bank, err := c.bank.GetBank(ctx, bankID)
	if err != nil {
		return loadResult{err: err}
	}
	if len(bank.Questions) == 0 {
		return loadResult{err: fmt.Errorf("%w: bank %s is empty", domain.ErrQuestionBankNotFound, bankID)}
	}
	if count <= 0 {
		count = len(bank.Questions)
	}
	picked := match.Shuffle(c.rnd, bank.Questions, count)
	ids := make([]string, len(picked))
	for i, q := range picked {
		ids[i] = q.ID
	}
	settings := domain.Settings{
		QuestionCount:     len(picked),
		TimePerQuestionMs: int(c.timing.TimePerQuestion / time.Millisecond),
		BankID:            bankID,
	}
	room, err := c.registry.BeginMatch(ctx, c.sess.RoomID, settings, ids)
	if errors.Is(err, domain.ErrStateConflict) {
		// someone else started it first; follow their question list
		room, err = c.registry.Load(ctx, c.sess.RoomID)
		if err != nil {
			return loadResult{err: err}
		}
		return c.follow(ctx, room)
	}
	if err != nil {
		return loadResult{err: err}
	}
	c.logger.Info().Int("questions", len(picked)).Msg("match started")
	return loadResult{questions: picked, startIndex: room.QuestionIndex, window: c.timing.TimePerQuestion}
}

// follow resolves the room's question ids against the bank.
func (c *Controller) follow(ctx context.Context, room domain.Room) loadResult {
	if len(room.QuestionIDs) == 0 {
		return loadResult{err: fmt.Errorf("%w: room %s has no questions", domain.ErrValidation, room.ID)}
	}
	bankID := room.Settings.BankID
	if bankID == "" {
		bankID = c.bankID
	}
	bank, err := c.bank.GetBank(ctx, bankID)
	if err != nil {
		return loadResult{err: err}
	}
	index := bank.Index()
	questions := make([]domain.Question, 0, len(room.QuestionIDs))
	for _, id := range room.QuestionIDs {
		q, ok := index[id]
		if !ok {
			return loadResult{err: fmt.Errorf("%w: question %s not in bank %s", domain.ErrQuestionBankNotFound, id, bankID)}
		}
		questions = append(questions, q)
	}
	start := room.QuestionIndex
	if start < 0 {
		start = 0
	}
	return loadResult{
		questions:  questions,
		startIndex: start,
		window:     time.Duration(room.Settings.TimePerQuestionMs) * time.Millisecond,
	}
}

func (c *Controller) ranking(ctx context.Context) []domain.Standing {
	players, err := c.registry.Players(ctx, c.sess.RoomID)
	if err != nil {
		c.logger.Warn().Err(err).Msg("reload players for ranking")
		players = c.room.PlayerList()
	}
	return Rank(players)
}

func (c *Controller) tickC() <-chan time.Time {
	if c.ticker == nil {
		return nil
	}
	return c.ticker.Chan()
}

func (c *Controller) holdC() <-chan time.Time {
	if c.hold == nil {
		return nil
	}
	return c.hold.Chan()
}

func (c *Controller) stopTimers() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	if c.hold != nil {
		c.hold.Stop()
		c.hold = nil
	}
}
