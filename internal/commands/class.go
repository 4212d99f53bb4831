package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"studyplan-backend/internal/analytics"
	"studyplan-backend/internal/models"
)

var importanceLevels = map[string]bool{"high": true, "medium": true, "low": true}

func newClassCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "class",
		Short: "Manage classes",
	}
	cmd.AddCommand(newClassAddCmd(), newClassListCmd())
	return cmd
}

func newClassAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Add a class",
		Args:  cobra.ExactArgs(1),
	}
	classType := cmd.Flags().StringP("type", "t", analytics.ClassOther, "class type (math, science, language, art, ...)")
	code := cmd.Flags().String("code", "", "course code")
	importance := cmd.Flags().StringP("importance", "i", "", "high, medium or low")

	cmd.RunE = withApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app) error {
		name := strings.TrimSpace(args[0])
		if name == "" {
			return fmt.Errorf("class name is required")
		}
		if !analytics.KnownClassType(*classType) {
			return fmt.Errorf("unknown class type %q", *classType)
		}

		class := &models.Class{
			UserID:    a.userID,
			Name:      name,
			ClassType: *classType,
			Code:      *code,
		}
		if *importance != "" {
			if !importanceLevels[*importance] {
				return fmt.Errorf("importance must be high, medium or low")
			}
			class.Importance = importance
		}

		if err := a.store.CreateClass(ctx, class); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Added class %s\n", successStyle.Render("✓"), class.Name)
		fmt.Fprintln(cmd.OutOrStdout(), field("ID", class.ID.String()))
		return nil
	})
	return cmd
}

func newClassListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List classes",
		Args:    cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app) error {
			classes, err := a.store.ListClasses(ctx, a.userID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(classes) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("No classes yet. Use 'studyctl class add \"Name\"' to create one."))
				return nil
			}

			fmt.Fprintf(out, "%-36s  %-24s  %-14s  %s\n", "ID", "NAME", "TYPE", "IMPORTANCE")
			fmt.Fprintln(out, strings.Repeat("-", 90))
			for _, c := range classes {
				name := c.Name
				if len(name) > 24 {
					name = name[:21] + "..."
				}
				importance := "-"
				if c.Importance != nil {
					importance = *c.Importance
				}
				fmt.Fprintf(out, "%-36s  %-24s  %-14s  %s\n", c.ID, name, c.ClassType, importance)
			}
			return nil
		}),
	}
}
