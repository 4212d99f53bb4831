package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newEstimateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate [assignment-id]",
		Short: "Estimate time and difficulty from similar past work",
		Long: `Estimate one assignment from your history, or with --backfill write
estimates into every incomplete assignment that is missing them.`,
		Args: cobra.MaximumNArgs(1),
	}
	backfill := cmd.Flags().Bool("backfill", false, "fill in missing estimates for all incomplete assignments")

	cmd.RunE = withApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app) error {
		out := cmd.OutOrStdout()

		if *backfill {
			if len(args) > 0 {
				return fmt.Errorf("--backfill takes no assignment id")
			}
			res, err := a.estimates.Backfill(ctx, a.userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s Updated %d assignment(s), %d skipped\n",
				successStyle.Render("✓"), res.Updated, res.Skipped)
			return nil
		}

		if len(args) == 0 {
			return fmt.Errorf("an assignment id is required (or use --backfill)")
		}
		assignmentID, err := parseID(args[0], "assignment id")
		if err != nil {
			return err
		}

		est, err := a.estimates.Estimate(ctx, a.userID, assignmentID)
		if err != nil {
			return err
		}

		fmt.Fprintln(out, titleStyle.Render("Estimate"))
		fmt.Fprintln(out, field("Minutes", strconv.Itoa(est.EstimatedMinutes)))
		fmt.Fprintln(out, field("Difficulty", fmt.Sprintf("%d/10", est.Difficulty)))
		source := "type defaults"
		if est.FromHistory {
			source = fmt.Sprintf("%d similar assignment(s)", est.HistorySize)
		}
		fmt.Fprintln(out, field("Based on", mutedStyle.Render(source)))
		return nil
	})
	return cmd
}
