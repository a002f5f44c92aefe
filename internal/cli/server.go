package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"assessment-session-service/internal/app"
	"assessment-session-service/internal/config"
	"assessment-session-service/internal/infra/memory"
	"assessment-session-service/internal/infra/postgres"
	redisinfra "assessment-session-service/internal/infra/redis"
	"assessment-session-service/internal/seed"
	transport "assessment-session-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// stores groups the persistence collaborators picked from config.
type stores struct {
	catalog   app.AssessmentCatalog
	items     app.ItemBank
	attempts  app.AttemptStore
	responses app.ResponseStore
	sessions  app.SessionRegistry
	close     func()
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := cfg.NewLogger()

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	st, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	service := app.NewAttemptService(st.catalog, st.items, st.attempts, st.responses, st.sessions, engineOptions(cfg, log))
	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(service, log, cfg.Server.CORSOrigins),
		ReadTimeout: 15 * time.Second,
		// no write timeout: websocket connections stay open for the whole attempt
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("port", finalPort).Info("starting assessment service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func buildStores(ctx context.Context, cfg config.Config, log *logrus.Logger) (stores, error) {
	st := stores{close: func() {}}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var loader interface {
		app.AssessmentCatalog
		app.ItemBank
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return st, err
		}
		loader = postgres.NewCatalog(pool)
		st.attempts = postgres.NewAttemptStore(pool)
		st.responses = postgres.NewResponseStore(pool)
		st.close = pool.Close
	} else {
		catalog, err := memoryCatalog(cfg, log)
		if err != nil {
			return st, err
		}
		loader = catalog
		st.attempts = memory.NewAttemptStore()
		st.responses = memory.NewResponseStore()
	}
	st.catalog = loader

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	if redisClient != nil {
		host, _ := os.Hostname()
		st.items = redisinfra.NewItemCache(redisClient, loader, catalogTTL)
		st.sessions = redisinfra.NewSessionRegistry(redisClient, config.TTLDuration(cfg.Redis.TTL, 2*time.Hour), host)
		closeStores := st.close
		st.close = func() {
			_ = redisClient.Close()
			closeStores()
		}
	} else {
		st.items = memory.NewItemCache(loader, catalogTTL)
		st.sessions = memory.NewSessionRegistry()
	}
	return st, nil
}

// memoryCatalog serves the seed file from memory when no database is configured.
func memoryCatalog(cfg config.Config, log logrus.FieldLogger) (*memory.Catalog, error) {
	if cfg.Catalog.SeedFile == "" {
		log.Warn("no postgres url and no seed file: catalog is empty")
		return memory.NewCatalog(nil, nil), nil
	}
	catalog, err := seed.Load(cfg.Catalog.SeedFile)
	if err != nil {
		return nil, err
	}
	log.WithField("assessments", len(catalog.Assessments)).Info("serving catalog from seed file")
	return memory.NewCatalog(catalog.Assessments, catalog.Items), nil
}

func engineOptions(cfg config.Config, log logrus.FieldLogger) app.Options {
	defaults := app.DefaultFinalizePolicy()
	return app.Options{
		TickInterval: config.TTLDuration(cfg.Engine.TickInterval, time.Second),
		Finalize: app.FinalizePolicy{
			InitialInterval: config.TTLDuration(cfg.Engine.FinalizeInitialInterval, defaults.InitialInterval),
			MaxInterval:     config.TTLDuration(cfg.Engine.FinalizeMaxInterval, defaults.MaxInterval),
			MaxElapsed:      config.TTLDuration(cfg.Engine.FinalizeMaxElapsed, defaults.MaxElapsed),
		},
		RestartGrace: config.TTLDuration(cfg.Engine.RestartGrace, app.DefaultRestartGrace),
		Log:          log,
	}
}
