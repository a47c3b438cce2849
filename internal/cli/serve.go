package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"trivia-match/internal/infra/memory"
	transport "trivia-match/internal/transport/http"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewServeCmd builds the subcommand that runs the websocket gateway.
func NewServeCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve browser clients over websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), port)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "port to listen on (env: TRIVIA_PORT)")
	return cmd
}

func runServer(ctx context.Context, portFlag string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}
	baseURL := cfg.Server.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:" + finalPort + "/"
	}

	svc, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	wsHandler := transport.NewWSHandler(transport.Deps{
		Registry:      svc.registry,
		Ledger:        svc.ledger,
		Bank:          svc.bank,
		BankID:        svc.bankID,
		Clock:         svc.clock,
		Devices:       memory.NewLocalStates(),
		Timing:        svc.timing,
		QuestionCount: svc.count,
		BaseURL:       baseURL,
	})
	results := transport.NewResultsHandler(svc.registry, svc.clock)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("GET /rooms/{roomId}/results.csv", results.ServeCSV)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting trivia gateway")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
