// Package server wires configuration, storage and the sync engine into
// the gRPC and HTTP listeners and runs them until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/donets/jtrack/internal/clock"
	"github.com/donets/jtrack/internal/logging"
	"github.com/donets/jtrack/internal/server/config"
	"github.com/donets/jtrack/internal/server/events"
	"github.com/donets/jtrack/internal/server/httpapi"
	"github.com/donets/jtrack/internal/server/repositories/memberships"
	"github.com/donets/jtrack/internal/server/repositories/repomanager"
	"github.com/donets/jtrack/internal/server/services"
	"github.com/donets/jtrack/internal/server/storage"
	"github.com/donets/jtrack/internal/server/store"
	"github.com/gin-gonic/gin"

	gs "github.com/donets/jtrack/internal/server/grpc"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	store     store.Store
	publisher events.Publisher
	sync      *services.SyncService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}
	return newApp(ctx, cfg, logger)
}

func newApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	if err := seedGrants(ctx, st, cfg.Grants); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("seed grants: %w", err)
	}

	publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger.With("module", "events"))
	opts := []services.Option{
		services.WithLogger(logger.With("module", "sync")),
		services.WithPublisher(publisher),
	}
	if cfg.StorageEnabled() {
		presigner, err := storage.NewS3Presigner(ctx, cfg.S3)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("object storage init error: %w", err)
		}
		opts = append(opts, services.WithPresigner(presigner))
	}

	return &App{
		config:    cfg,
		logger:    logger,
		store:     st,
		publisher: publisher,
		sync:      services.NewSyncService(st, clock.Real(), opts...),
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Storage == config.StorageMemory {
		return store.NewMemoryStore(), nil
	}

	db, err := repomanager.OpenPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store.NewPostgresStore(db, rm), nil
}

func seedGrants(ctx context.Context, st store.Store, grants []config.Grant) error {
	if len(grants) == 0 {
		return nil
	}
	return st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, g := range grants {
			m := memberships.Membership{UserID: g.UserID, LocationID: g.LocationID, Role: g.Role, Active: true}
			if err := tx.Memberships().Grant(ctx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

// Migrate applies the Postgres schema and exits.
func Migrate(ctx context.Context, cfg *config.Config) error {
	if cfg.Storage != config.StoragePostgres {
		return errors.New("migrate requires postgres storage")
	}
	db, err := repomanager.OpenPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	return repomanager.NewPostgresRepositoryManager().RunMigrations(ctx, db)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.GRPCAddress, app.logger, app.sync, clock.Real(), app.config.JWTSecret)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	gin.SetMode(gin.ReleaseMode)
	s := httpapi.NewServer(httpapi.Config{
		Address:      app.config.HTTPAddress,
		JWTSecret:    app.config.JWTSecret,
		AllowOrigins: app.config.AllowOrigins,
	}, app.sync, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is canceled or a termination signal arrives, then
// releases the store and the event publisher.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.Storage)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup
	if app.config.GRPCAddress != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}
	if app.config.HTTPAddress != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startHTTPServer(ctx, cancelFunc)
		}()
	}
	wg.Wait()

	app.logger.Info(context.Background(), "Stopped")
	return errors.Join(app.publisher.Close(), app.store.Close())
}
