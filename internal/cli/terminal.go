package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"trivia-match/internal/app"
	"trivia-match/internal/domain"
	"trivia-match/internal/match"

	"github.com/rs/zerolog/log"
)

// lockedWriter serialises prompts from the input loop with presenter output.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// terminalPresenter renders a match as plain text.
type terminalPresenter struct {
	out        io.Writer
	lastSecond int
	lastBoard  string
}

func newTerminalPresenter(out io.Writer) *terminalPresenter {
	return &terminalPresenter{out: out}
}

func (p *terminalPresenter) StateChanged(from, to match.State) {
	log.Debug().Str("from", from.String()).Str("to", to.String()).Msg("state changed")
}

func (p *terminalPresenter) ShowQuestion(index, total int, q domain.Question) {
	p.lastSecond = 0
	fmt.Fprintf(p.out, "\nQuestion %d/%d\n%s\n", index+1, total, q.Prompt)
	for _, c := range domain.Choices {
		fmt.Fprintf(p.out, "  %s) %s\n", c, q.Options[c])
	}
}

func (p *terminalPresenter) ShowRemaining(d time.Duration) {
	sec := int((d + time.Second - 1) / time.Second)
	if sec == p.lastSecond {
		return
	}
	p.lastSecond = sec
	if sec > 5 && sec%5 == 0 {
		fmt.Fprintf(p.out, "  %ds left\n", sec)
	}
}

func (p *terminalPresenter) PlayWarning(second int) {
	fmt.Fprintf(p.out, "\a  %d...\n", second)
}

func (p *terminalPresenter) ShowAnswer(q domain.Question, rec domain.AnswerRecord) {
	switch {
	case rec.Choice == domain.ChoiceNone:
		fmt.Fprintf(p.out, "Time's up. The answer was %s.\n", q.CorrectOption)
	case rec.Correct:
		fmt.Fprintf(p.out, "Correct! +%d in %.1fs\n", domain.PointsPerCorrect, float64(rec.TimeMs)/1000)
	default:
		fmt.Fprintf(p.out, "Wrong. The answer was %s.\n", q.CorrectOption)
	}
}

func (p *terminalPresenter) ShowExplanation(q domain.Question) {
	if q.Explanation != "" {
		fmt.Fprintf(p.out, "%s\n", q.Explanation)
	}
}

// ShowScoreboard prints only when the board changed since the last call.
func (p *terminalPresenter) ShowScoreboard(standings []domain.Standing) {
	var b strings.Builder
	for _, s := range standings {
		fmt.Fprintf(&b, "  %d. %s (%s) %d\n", s.Position, s.Name, s.Unit, s.Score)
	}
	board := b.String()
	if board == p.lastBoard {
		return
	}
	p.lastBoard = board
	fmt.Fprintf(p.out, "Scoreboard:\n%s", board)
}

func (p *terminalPresenter) ShowRanking(standings []domain.Standing) {
	fmt.Fprintf(p.out, "\nFinal ranking\n")
	tw := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tUNIT\tSCORE\tTIME")
	for _, s := range standings {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%.1fs\n", s.Position, s.Name, s.Unit, s.Score, float64(s.TotalResponseTimeMs)/1000)
	}
	tw.Flush()
}

func (p *terminalPresenter) ShowError(err error) {
	fmt.Fprintf(p.out, "error: %v\n", err)
}

// readLines streams r line by line until it ends or ctx is done.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

type playOptions struct {
	sess  *app.Session
	lobby *app.Lobby
	count int
}

// playMatch runs the controller and feeds it the terminal input: an empty
// line or "start" starts the match for the host, a letter answers and
// "leave" quits the room.
func playMatch(ctx context.Context, ctrl *app.Controller, opts playOptions, lines <-chan string, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	for {
		select {
		case err := <-done:
			return err
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			line = strings.TrimSpace(line)
			switch {
			case strings.EqualFold(line, "leave"):
				cancel()
				<-done
				return opts.lobby.Leave(context.WithoutCancel(ctx), opts.sess)
			case opts.sess.Host && (line == "" || strings.EqualFold(line, "start")):
				ctrl.Start(opts.count)
			case line == "":
			case opts.sess.Spectator:
				fmt.Fprintln(out, "spectating, answers are not recorded")
			default:
				choice, err := domain.ParseChoice(line)
				if err != nil {
					fmt.Fprintln(out, "choose A, B, C or D")
					continue
				}
				ctrl.Select(choice)
			}
		}
	}
}
