package commands

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"studyplan-backend/internal/config"
	"studyplan-backend/internal/middleware"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for the API, signed with $JWT_SECRET",
		Args:  cobra.NoArgs,
	}
	ttl := cmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadLocal()
		if cfg.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is not set")
		}
		if *ttl <= 0 {
			return fmt.Errorf("--ttl must be positive")
		}

		userID := localUserID
		raw, _ := cmd.Flags().GetString("user")
		if raw == "" {
			raw = cfg.UserID
		}
		if raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return fmt.Errorf("invalid user id %q", raw)
			}
			userID = id
		}

		token, err := middleware.NewJWTAuth(cfg.JWTSecret).GenerateAccessToken(userID, *ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	}
	return cmd
}
