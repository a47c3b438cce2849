package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"trivia-match/internal/app"
	"trivia-match/internal/config"
	"trivia-match/internal/domain"
	"trivia-match/internal/infra/file"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewHostCmd creates a room and runs the match from this terminal.
func NewHostCmd() *cobra.Command {
	var (
		count      int
		spectate   bool
		exportPath string
		statePath  string
		baseURL    string
	)
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Create a room and host the match",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if baseURL == "" {
				baseURL = cfg.Server.BaseURL
			}
			if baseURL == "" {
				baseURL = "http://localhost:8080/"
			}
			return runHost(cmd.Context(), cfg, hostOptions{
				count:      count,
				spectate:   spectate,
				exportPath: exportPath,
				statePath:  resolveStatePath(statePath, cfg),
				baseURL:    baseURL,
			}, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	fs := cmd.Flags()
	fs.IntVar(&count, "count", 0, "number of questions (default from config)")
	fs.BoolVar(&spectate, "spectate", false, "run the match without playing (env: TRIVIA_SPECTATE)")
	fs.StringVar(&exportPath, "export", "", "write the results CSV to this file or directory when the match ends")
	fs.StringVar(&statePath, "state", "", "device state file (env: TRIVIA_STATE)")
	fs.StringVar(&baseURL, "base-url", "", "base URL used for join links (env: TRIVIA_BASE_URL)")
	return cmd
}

// NewPlayCmd joins a room, or resumes the remembered one.
func NewPlayCmd() *cobra.Command {
	var (
		room      string
		name      string
		unit      string
		statePath string
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Join a room and answer questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runPlay(cmd.Context(), cfg, playerOptions{
				room:      room,
				name:      name,
				unit:      unit,
				statePath: resolveStatePath(statePath, cfg),
			}, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&room, "room", "", "room code or join link (env: TRIVIA_ROOM)")
	fs.StringVar(&name, "name", "", "display name (env: TRIVIA_NAME)")
	fs.StringVar(&unit, "unit", "", "unit or team (env: TRIVIA_UNIT)")
	fs.StringVar(&statePath, "state", "", "device state file (env: TRIVIA_STATE)")
	return cmd
}

func resolveStatePath(flag string, cfg config.Config) string {
	if flag != "" {
		return flag
	}
	if cfg.Client.StatePath != "" {
		return cfg.Client.StatePath
	}
	return file.DefaultStatePath()
}

type hostOptions struct {
	count      int
	spectate   bool
	exportPath string
	statePath  string
	baseURL    string
}

func runHost(ctx context.Context, cfg config.Config, opts hostOptions, in io.Reader, stdout io.Writer) error {
	svc, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()
	if opts.count <= 0 {
		opts.count = svc.count
	}
	out := &lockedWriter{w: stdout}

	local := file.NewLocalState(opts.statePath)
	hostID, err := local.DeviceID(ctx)
	if err != nil {
		return err
	}
	lobby := app.NewLobby(svc.registry, local)

	sess, ok := app.NewReconnector(svc.registry, local).Restore(ctx, hostID)
	if ok && sess.Host {
		room, err := svc.registry.Load(ctx, sess.RoomID)
		if err != nil || room.Status == domain.StatusFinished {
			ok = false
		}
	}
	if ok && sess.Host {
		fmt.Fprintf(out, "Resuming room %s\n", sess.RoomID)
	} else {
		sess, _, err = lobby.Host(ctx, app.HostRequest{
			HostID: hostID,
			Settings: domain.Settings{
				QuestionCount:     opts.count,
				TimePerQuestionMs: int(svc.timing.TimePerQuestion.Milliseconds()),
				BankID:            svc.bankID,
			},
			Spectate: opts.spectate,
		})
		if err != nil {
			return err
		}
	}

	link, err := app.JoinLink(opts.baseURL, sess.RoomID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Room code: %s\nJoin link: %s\nPress Enter to start.\n", sess.RoomID, link)

	ctrl := app.NewController(sess, svc.controllerDeps(newTerminalPresenter(out)))
	err = playMatch(ctx, ctrl, playOptions{sess: sess, lobby: lobby, count: opts.count}, readLines(ctx, in), out)
	if err != nil || opts.exportPath == "" {
		return err
	}
	return exportResults(ctx, svc, sess.RoomID, opts.exportPath)
}

type playerOptions struct {
	room      string
	name      string
	unit      string
	statePath string
}

func runPlay(ctx context.Context, cfg config.Config, opts playerOptions, in io.Reader, stdout io.Writer) error {
	svc, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()
	out := &lockedWriter{w: stdout}

	local := file.NewLocalState(opts.statePath)
	playerID, err := local.DeviceID(ctx)
	if err != nil {
		return err
	}
	lobby := app.NewLobby(svc.registry, local)

	var code string
	if opts.room != "" {
		if code, err = app.RoomCode(opts.room); err != nil {
			return err
		}
	}
	sess, ok := app.NewReconnector(svc.registry, local).Restore(ctx, playerID)
	if ok && (code == "" || code == sess.RoomID) {
		fmt.Fprintf(out, "Resuming room %s\n", sess.RoomID)
	} else {
		sess, err = lobby.Join(ctx, app.JoinRequest{
			RoomID:   code,
			PlayerID: playerID,
			Name:     opts.name,
			Unit:     opts.unit,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Joined room %s, waiting for the host.\n", sess.RoomID)
	}

	ctrl := app.NewController(sess, svc.controllerDeps(newTerminalPresenter(out)))
	return playMatch(ctx, ctrl, playOptions{sess: sess, lobby: lobby, count: svc.count}, readLines(ctx, in), out)
}

func exportResults(ctx context.Context, svc *services, roomID, path string) error {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, app.ExportFileName(roomID, svc.clock.Now()))
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := app.NewExporter(svc.registry, svc.clock).Export(ctx, f, roomID); err != nil {
		f.Close()
		return err
	}
	log.Info().Str("room_id", roomID).Str("path", path).Msg("results exported")
	return f.Close()
}
