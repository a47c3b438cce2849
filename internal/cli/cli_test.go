package cli

import (
	"bytes"
	"strings"
	"testing"

	"trivia-match/internal/domain"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func TestBindEnvFillsUnsetFlags(t *testing.T) {
	t.Setenv("TRIVIA_BASE_URL", "https://play.example.org/")
	t.Setenv("TRIVIA_COUNT", "7")

	v := viper.New()
	v.SetEnvPrefix("TRIVIA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs := pflag.NewFlagSet("host", pflag.ContinueOnError)
	baseURL := fs.String("base-url", "", "")
	count := fs.Int("count", 0, "")
	name := fs.String("name", "", "")
	if err := fs.Parse([]string{"--count", "3"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	bindEnv(v, fs)
	if *baseURL != "https://play.example.org/" {
		t.Fatalf("expected base-url from env, got %q", *baseURL)
	}
	if *count != 3 {
		t.Fatalf("expected explicit flag to win, got %d", *count)
	}
	if *name != "" {
		t.Fatalf("expected name untouched, got %q", *name)
	}
}

func TestTerminalPresenterPrintsScoreboardOnChange(t *testing.T) {
	var buf bytes.Buffer
	p := newTerminalPresenter(&buf)
	board := []domain.Standing{{Position: 1, Name: "Ana", Unit: "ICU", Score: 10}}

	p.ShowScoreboard(board)
	p.ShowScoreboard(board)
	if n := strings.Count(buf.String(), "Scoreboard:"); n != 1 {
		t.Fatalf("expected one scoreboard, got %d:\n%s", n, buf.String())
	}
	board[0].Score = 20
	p.ShowScoreboard(board)
	if n := strings.Count(buf.String(), "Scoreboard:"); n != 2 {
		t.Fatalf("expected a second scoreboard after a change, got %d", n)
	}
}

func TestSampleBankIsValid(t *testing.T) {
	bank := sampleBank()
	if err := bank.Validate(); err != nil {
		t.Fatalf("sample bank: %v", err)
	}
	if len(bank.Questions) < 5 {
		t.Fatalf("expected a usable sample bank, got %d questions", len(bank.Questions))
	}
}
