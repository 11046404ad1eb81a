package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FairForge/fraudgov-loadtest/internal/reporting"
)

// NewReportCommand creates the report command, which combines run summaries
// into a single HTML page.
func NewReportCommand(root *RootOptions) *cobra.Command {
	var reportsDir string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the combined HTML report from run summaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.Config()
			if err != nil {
				return err
			}
			logger, err := root.Logger()
			if err != nil {
				return err
			}

			dir := cfg.Reports.OutputDir
			if reportsDir != "" {
				dir = reportsDir
			}

			summaries, err := reporting.LoadSummaries(dir)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				return fmt.Errorf("no run summaries found in %s", dir)
			}

			path, err := reporting.WriteHTMLReport(summaries, dir)
			if err != nil {
				return err
			}
			logger.Info("report written",
				zap.Int("runs", len(summaries)), zap.String("path", path))
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&reportsDir, "reports-dir", "", "directory holding run summaries")
	return cmd
}
