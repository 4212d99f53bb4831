package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"studyplan-backend/internal/config"
	"studyplan-backend/internal/database"
	"studyplan-backend/internal/repository"
	"studyplan-backend/internal/services"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// localUserID owns every record when STUDYCTL_USER is unset.
var localUserID = uuid.MustParse("7b0c4c1e-5f0e-4d8e-9a51-2d3c1f9e8a10")

// app is what every command runs against.
type app struct {
	cfg       *config.LocalConfig
	store     *repository.LocalStore
	sessions  *services.SessionService
	estimates *services.EstimateService
	userID    uuid.UUID
}

func openApp(userFlag string) (*app, error) {
	cfg := config.LoadLocal()
	if err := cfg.Analytics.Validate(); err != nil {
		return nil, err
	}

	userID := localUserID
	raw := userFlag
	if raw == "" {
		raw = cfg.UserID
	}
	if raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q", raw)
		}
		userID = id
	}

	db, err := database.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	store, err := repository.NewLocalStore(db)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		store:     store,
		sessions:  services.NewSessionService(store, nil, nil),
		estimates: services.NewEstimateService(store, nil),
		userID:    userID,
	}, nil
}

// withApp opens the local store around fn.
func withApp(fn func(ctx context.Context, cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		userFlag, _ := cmd.Flags().GetString("user")
		a, err := openApp(userFlag)
		if err != nil {
			return err
		}
		defer a.store.Close()
		return describeError(fn(cmd.Context(), cmd, args, a))
	}
}

// describeError turns service errors into one readable line.
func describeError(err error) error {
	if err == nil {
		return nil
	}
	var validation *services.ValidationError
	if errors.As(err, &validation) {
		keys := make([]string, 0, len(validation.Fields))
		for k := range validation.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+validation.Fields[k])
		}
		return fmt.Errorf("invalid input (%s)", strings.Join(parts, "; "))
	}
	return err
}

func parseID(raw, label string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q", label, raw)
	}
	return id, nil
}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"}

// parseWhen reads an absolute time. Values without a zone are local time.
func parseWhen(raw string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q (use RFC3339 or \"2006-01-02 15:04\")", raw)
}

func formatTime(t time.Time) string {
	return t.Local().Format("Mon Jan 2 15:04")
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "studyctl",
		Short: "Plan and track study sessions offline",
		Long: `studyctl keeps classes, assignments and study sessions in a local SQLite
database and applies the same session rules and estimates as the server.`,
		SilenceUsage: true,
		Version:      fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
	}
	root.PersistentFlags().String("user", "", "user id to act as (default $STUDYCTL_USER or the local user)")

	root.AddCommand(newClassCmd())
	root.AddCommand(newAssignmentCmd())
	root.AddCommand(newStartCmd())
	root.AddCommand(newActivateCmd())
	root.AddCommand(newEndCmd())
	root.AddCommand(newCancelCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newEstimateCmd())
	root.AddCommand(newTokenCmd())
	return root
}

// SetVersion sets the version information
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the root command
func Execute() error {
	return newRootCmd().Execute()
}
