package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"studyplan-backend/internal/analytics"
	"studyplan-backend/internal/models"
)

func newAssignmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assignment",
		Short: "Manage assignments",
	}
	cmd.AddCommand(newAssignmentAddCmd())
	return cmd
}

func newAssignmentAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Add an assignment to a class",
		Args:  cobra.ExactArgs(1),
	}
	classFlag := cmd.Flags().StringP("class", "c", "", "class id (required)")
	kind := cmd.Flags().StringP("type", "t", analytics.AssignmentHomework, "assignment type")
	due := cmd.Flags().StringP("due", "d", "", "due time")
	minutes := cmd.Flags().Int("minutes", 0, "estimated minutes")
	difficulty := cmd.Flags().Int("difficulty", 0, "difficulty 1-10")
	grade := cmd.Flags().Float64("grade", -1, "grade 0-100, marks the assignment graded")
	completed := cmd.Flags().Bool("completed", false, "mark as completed now")
	cmd.MarkFlagRequired("class")

	cmd.RunE = withApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app) error {
		title := strings.TrimSpace(args[0])
		if title == "" {
			return fmt.Errorf("assignment title is required")
		}
		classID, err := parseID(*classFlag, "class id")
		if err != nil {
			return err
		}
		if _, err := a.store.GetClass(ctx, a.userID, classID); err != nil {
			return fmt.Errorf("class %s: %w", classID, err)
		}
		if !analytics.KnownAssignmentType(*kind) {
			return fmt.Errorf("unknown assignment type %q", *kind)
		}

		asg := &models.Assignment{
			UserID:         a.userID,
			ClassID:        classID,
			Title:          title,
			AssignmentType: *kind,
		}
		if *due != "" {
			at, err := parseWhen(*due)
			if err != nil {
				return err
			}
			asg.DueAt = &at
		}
		if cmd.Flags().Changed("minutes") {
			if *minutes <= 0 {
				return fmt.Errorf("minutes must be positive")
			}
			asg.EstimatedMinutes = minutes
		}
		if cmd.Flags().Changed("difficulty") {
			if *difficulty < 1 || *difficulty > 10 {
				return fmt.Errorf("difficulty must be between 1 and 10")
			}
			asg.Difficulty = difficulty
		}
		if cmd.Flags().Changed("grade") {
			if *grade < 0 || *grade > 100 {
				return fmt.Errorf("grade must be between 0 and 100")
			}
			asg.IsGraded = true
			asg.Grade = grade
		}
		if *completed {
			now := time.Now().UTC()
			asg.IsCompleted = true
			asg.FinishedAt = &now
		}

		if err := a.store.CreateAssignment(ctx, asg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Added assignment %s\n", successStyle.Render("✓"), asg.Title)
		fmt.Fprintln(cmd.OutOrStdout(), field("ID", asg.ID.String()))
		return nil
	})
	return cmd
}
