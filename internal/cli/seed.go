package cli

import (
	"context"
	"fmt"
	"time"

	"assessment-session-service/internal/config"
	"assessment-session-service/internal/infra/postgres"
	redisinfra "assessment-session-service/internal/infra/redis"
	"assessment-session-service/internal/seed"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewSeedCmd loads assessments and items from a YAML file into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load assessments and items from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if file == "" {
				file = cfg.Catalog.SeedFile
			}
			if file == "" {
				return fmt.Errorf("no seed file given")
			}
			return runSeed(cmd.Context(), cfg, file, cfg.NewLogger())
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "seed file (defaults to catalog.seedFile)")
	return cmd
}

func runSeed(ctx context.Context, cfg config.Config, file string, log logrus.FieldLogger) error {
	catalog, err := seed.Load(file)
	if err != nil {
		return err
	}
	if err := runMigrations(ctx, cfg, log); err != nil {
		return err
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := postgres.NewCatalog(pool)
	frozen := make(map[string]bool)
	changed := make(map[string]bool)
	for _, a := range catalog.Assessments {
		applied, err := store.UpsertAssessment(ctx, a)
		if err != nil {
			return err
		}
		if !applied {
			frozen[a.ID] = true
			log.WithField("assessment", a.ID).Warn("assessment has attempts, left unchanged")
		}
	}
	for _, it := range catalog.Items {
		if frozen[it.AssessmentID] {
			continue
		}
		applied, err := store.UpsertItem(ctx, it)
		if err != nil {
			return err
		}
		if applied {
			changed[it.AssessmentID] = true
		}
	}
	if err := invalidateItems(ctx, cfg, store, changed, log); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"file":        file,
		"assessments": len(catalog.Assessments) - len(frozen),
		"frozen":      len(frozen),
		"items":       len(catalog.Items),
	}).Info("catalog seeded")
	return nil
}

// invalidateItems drops cached item lists of reseeded assessments so running instances
// reload them.
func invalidateItems(ctx context.Context, cfg config.Config, store *postgres.Catalog, assessmentIDs map[string]bool, log logrus.FieldLogger) error {
	if cfg.Redis.Addr == "" || len(assessmentIDs) == 0 {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	cache := redisinfra.NewItemCache(client, store, config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute))
	for id := range assessmentIDs {
		if err := cache.Invalidate(ctx, id); err != nil {
			return fmt.Errorf("invalidate items of %s: %w", id, err)
		}
		log.WithField("assessment", id).Debug("cached items invalidated")
	}
	return nil
}
