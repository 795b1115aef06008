package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/donets/jtrack/internal/client/client"
	"github.com/donets/jtrack/internal/client/config"
	"github.com/donets/jtrack/internal/client/services"
	"github.com/donets/jtrack/internal/clock"
	"github.com/donets/jtrack/internal/filex"
	"github.com/donets/jtrack/internal/logging"
)

// App is one opened agent: the local replica plus a lazily used server
// connection.
type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	rpc    *client.GRPCClient
	muts   services.MutationService
	syncer *services.Syncer
	in     *bufio.Reader
	out    io.Writer
}

func NewApp(ctx context.Context, cfg *config.Config, in *bufio.Reader, out, errOut io.Writer) (*App, error) {
	logger, err := logging.New(errOut, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	path, err := filex.EnsureParent(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	db, err := client.InitDatabase(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open replica: %w", err)
	}

	rpc, err := client.NewGRPCClient(cfg.ServerAddress, cfg.Token)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	clk := clock.Real()
	session := cfg.Session()
	return &App{
		config: cfg,
		logger: logger,
		db:     db,
		rpc:    rpc,
		muts:   services.NewMutationService(db, clk, session),
		syncer: services.NewSyncer(db, rpc, clk, session,
			services.WithLogger(logger),
			services.WithPageSize(cfg.PageSize),
			services.WithIntervals(cfg.SyncInterval, cfg.OnlineCheckInterval)),
		in:  in,
		out: out,
	}, nil
}

func (a *App) Close() error {
	return errors.Join(a.rpc.Close(), a.db.Close())
}

// ensureToken prompts for the access token when none is configured.
func (a *App) ensureToken() error {
	if a.config.Token != "" {
		return nil
	}
	tok, err := GetToken(a.out)
	if err != nil {
		return err
	}
	if tok == "" {
		return errors.New("an access token is required to reach the server")
	}
	a.config.Token = tok
	a.rpc.SetAccessToken(tok)
	return nil
}
