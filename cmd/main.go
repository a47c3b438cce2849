package main

import (
	"os"

	"trivia-match/internal/cli"

	"github.com/rs/zerolog/log"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Error().Err(err).Msg("trivia-match failed")
		os.Exit(1)
	}
}
