package cli

import (
	"fmt"

	"assessment-session-service/internal/config"
	"assessment-session-service/internal/infra/postgres"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
)

// NewArchiveCmd closes an assessment to new attempts.
func NewArchiveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <assessment-id>",
		Short: "Stop an assessment from accepting new attempts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			pool, err := pgxpool.Connect(cmd.Context(), cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := postgres.NewCatalog(pool).ArchiveAssessment(cmd.Context(), args[0]); err != nil {
				return err
			}
			cfg.NewLogger().WithField("assessment", args[0]).Info("assessment archived")
			return nil
		},
	}
}
