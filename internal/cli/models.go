package cli

import (
	"fmt"
	"path/filepath"

	"github.com/sekachev/whisper-api/internal/platform"
	"github.com/sekachev/whisper-api/internal/whisper"
	"github.com/spf13/cobra"
)

func newModelsCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List known Whisper models and their local availability",
		RunE: func(cmd *cobra.Command, _ []string) error {
			modelDir, err := platform.ResolveModelDir(app.modelDir)
			if err != nil {
				return err
			}

			current := app.model
			if current == "" {
				current = whisper.DefaultModel
			}

			for _, name := range whisper.ModelNames() {
				model, _ := whisper.LookupModel(name)

				marker := " "
				if name == current {
					marker = "*"
				}

				status := "not downloaded"
				if resolved, err := whisper.ResolveModel(name, modelDir); err == nil && !resolved.NeedsDownload {
					status = "downloaded"
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s %-10s %-15s %s\n", marker, name, status, filepath.Join(modelDir, model.FileName))
			}

			return nil
		},
	}

	bindModelFlags(cmd, app)

	return cmd
}
