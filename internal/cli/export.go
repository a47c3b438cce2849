package cli

import (
	"trivia-match/internal/app"

	"github.com/spf13/cobra"
)

// NewExportCmd writes the results of a room as CSV.
func NewExportCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export ROOM",
		Short: "Export room results as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			roomID, err := app.RoomCode(args[0])
			if err != nil {
				return err
			}
			svc, err := buildServices(ctx, cfg)
			if err != nil {
				return err
			}
			defer svc.Close()
			if outPath == "" {
				return app.NewExporter(svc.registry, svc.clock).Export(ctx, cmd.OutOrStdout(), roomID)
			}
			return exportResults(ctx, svc, roomID, outPath)
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "file or directory to write; stdout when empty")
	return cmd
}
