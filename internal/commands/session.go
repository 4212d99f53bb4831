package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"studyplan-backend/internal/models"
)

func printSession(out io.Writer, s *models.StudySession) {
	fmt.Fprintln(out, field("Session", s.ID.String()))
	fmt.Fprintln(out, field("State", stateBadge(s.State().String())))
	if s.Title != "" {
		fmt.Fprintln(out, field("Title", s.Title))
	}
	fmt.Fprintln(out, field("Type", s.SessionType))
	switch s.State() {
	case models.SessionScheduled:
		fmt.Fprintln(out, field("Planned", formatTime(s.StartedAt)))
	default:
		fmt.Fprintln(out, field("Started", formatTime(s.StartedAt)))
	}
	if s.PlannedMinutes != nil {
		fmt.Fprintln(out, field("Planned for", fmt.Sprintf("%d min", *s.PlannedMinutes)))
	}
	if s.DurationMinutes != nil {
		fmt.Fprintln(out, field("Duration", fmt.Sprintf("%d min", *s.DurationMinutes)))
	}
}

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start [class-id]",
		Short: "Start a study session now, or schedule one with --at",
		Args:  cobra.ExactArgs(1),
	}
	assignment := cmd.Flags().StringP("assignment", "a", "", "assignment id")
	sessionType := cmd.Flags().StringP("type", "t", "", "session type (default study)")
	title := cmd.Flags().String("title", "", "session title (default the class name)")
	planned := cmd.Flags().IntP("planned", "p", 0, "planned minutes")
	at := cmd.Flags().String("at", "", "schedule for this time instead of starting now")

	cmd.RunE = withApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app) error {
		classID, err := parseID(args[0], "class id")
		if err != nil {
			return err
		}

		req := models.StartSessionRequest{
			ClassID:     classID,
			SessionType: *sessionType,
			Title:       *title,
			StartNow:    *at == "",
		}
		if req.Title == "" {
			class, err := a.store.GetClass(ctx, a.userID, classID)
			if err != nil {
				return fmt.Errorf("class %s: %w", classID, err)
			}
			req.Title = class.Name
		}
		if *assignment != "" {
			id, err := parseID(*assignment, "assignment id")
			if err != nil {
				return err
			}
			req.AssignmentID = &id
		}
		if cmd.Flags().Changed("planned") {
			req.PlannedMinutes = planned
		}
		if *at != "" {
			when, err := parseWhen(*at)
			if err != nil {
				return err
			}
			req.ScheduledAt = &when
		}

		session, err := a.sessions.Start(ctx, a.userID, req)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if req.StartNow {
			fmt.Fprintln(out, titleStyle.Render("▶ Session started"))
		} else {
			fmt.Fprintln(out, titleStyle.Render("◷ Session scheduled"))
		}
		printSession(out, session)

		if collision, err := a.sessions.DetectCollision(ctx, a.userID); err == nil && collision != nil {
			fmt.Fprintln(out, warningStyle.Render(fmt.Sprintf("! Scheduled session %s is also due", collision.DueScheduledSessionID)))
		}
		return nil
	})
	return cmd
}

func newActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate [session-id]",
		Short: "Start a scheduled session",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app) error {
			sessionID, err := parseID(args[0], "session id")
			if err != nil {
				return err
			}
			session, err := a.sessions.Activate(ctx, a.userID, sessionID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render("▶ Session started"))
			printSession(cmd.OutOrStdout(), session)
			return nil
		}),
	}
}

func newEndCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "end [session-id]",
		Short: "End a session (defaults to the active one)",
		Args:  cobra.MaximumNArgs(1),
	}
	at := cmd.Flags().String("at", "", "end time (default now)")

	cmd.RunE = withApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app) error {
		var endAt *time.Time
		if *at != "" {
			when, err := parseWhen(*at)
			if err != nil {
				return err
			}
			endAt = &when
		}

		var sessionID uuid.UUID
		if len(args) == 1 {
			id, err := parseID(args[0], "session id")
			if err != nil {
				return err
			}
			sessionID = id
		} else {
			active, err := a.sessions.GetActive(ctx, a.userID)
			if err != nil {
				return err
			}
			if active == nil {
				return fmt.Errorf("no active session")
			}
			sessionID = active.ID
		}

		session, err := a.sessions.End(ctx, a.userID, sessionID, endAt)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render("■ Session ended"))
		printSession(cmd.OutOrStdout(), session)
		return nil
	})
	return cmd
}

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [session-id]",
		Short: "Cancel a scheduled or active session",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app) error {
			sessionID, err := parseID(args[0], "session id")
			if err != nil {
				return err
			}
			session, err := a.sessions.Cancel(ctx, a.userID, sessionID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("✕ Session cancelled"))
			printSession(cmd.OutOrStdout(), session)
			return nil
		}),
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active session, the next due session and any collision",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, cmd *cobra.Command, args []string, a *app) error {
			out := cmd.OutOrStdout()

			active, err := a.sessions.GetActive(ctx, a.userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, titleStyle.Render("Active"))
			if active == nil {
				fmt.Fprintln(out, mutedStyle.Render("  none"))
			} else {
				printSession(out, active)
				elapsed := time.Since(active.StartedAt).Round(time.Minute)
				fmt.Fprintln(out, field("Elapsed", elapsed.String()))
			}

			due, err := a.sessions.GetDueScheduled(ctx, a.userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, titleStyle.Render("Due"))
			if due == nil {
				fmt.Fprintln(out, mutedStyle.Render("  none"))
			} else {
				printSession(out, due)
			}

			collision, err := a.sessions.DetectCollision(ctx, a.userID)
			if err != nil {
				return err
			}
			if collision != nil {
				fmt.Fprintln(out, warningStyle.Render("! Collision: a scheduled session came due while another is active"))
			}
			return nil
		}),
	}
}
