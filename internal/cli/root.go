package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"trivia-match/internal/config"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	configPath string
	logLevel   string
)

// Execute runs the CLI.
func Execute() error {
	// a missing .env is fine
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TRIVIA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "trivia-match",
		Short:         "Live multi-player trivia matches over a shared store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			bindEnv(v, cmd.Flags())
			setupLogging(logLevel)
			return nil
		},
	}

	fs := cmd.PersistentFlags()
	fs.StringVar(&configPath, "config", "config/config.yaml", "path to YAML config (env: TRIVIA_CONFIG)")
	fs.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (env: TRIVIA_LOG_LEVEL)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewHostCmd())
	cmd.AddCommand(NewPlayCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.CompletionOptions.HiddenDefaultCmd = true
	return cmd
}

// bindEnv fills every flag the user did not set from its TRIVIA_* variable.
func bindEnv(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	applyLogLevel(level)
}

func applyLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// loadConfig reads the config file; the log level falls back to the file's
// when no flag or env var set one.
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadOptional(configPath)
	if err != nil {
		return cfg, err
	}
	if logLevel == "" && cfg.Log.Level != "" {
		applyLogLevel(cfg.Log.Level)
	}
	return cfg, nil
}
