package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/donets/jtrack/internal/client/client"
	"github.com/donets/jtrack/internal/client/migrations"
	"github.com/donets/jtrack/internal/clock"
	"github.com/donets/jtrack/internal/common"
	"github.com/donets/jtrack/internal/domain"
	"github.com/donets/jtrack/internal/protocol"
	"github.com/donets/jtrack/internal/server/repositories/memberships"
	serversvc "github.com/donets/jtrack/internal/server/services"
	"github.com/donets/jtrack/internal/server/store"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

const loc = "loc-1"

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(context.Background(), db))
	return db
}

type fakePresigner struct{}

func (fakePresigner) PresignPut(_ context.Context, key, _ string) (string, error) {
	return "https://s3.test/put/" + key, nil
}

func (fakePresigner) PresignGet(_ context.Context, key string) (string, error) {
	return "https://s3.test/get/" + key, nil
}

// inProcess drives the real reconciliation engine without a network.
type inProcess struct {
	svc  *serversvc.SyncService
	user string

	mu       sync.Mutex
	offline  bool
	clientID string
	pushes   int
	pulls    int
	// onPush runs while a push is in flight.
	onPush func()
}

var _ client.Client = (*inProcess)(nil)

func (c *inProcess) setOffline(v bool) {
	c.mu.Lock()
	c.offline = v
	c.mu.Unlock()
}

func (c *inProcess) down() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.offline {
		return fmt.Errorf("%w: connection refused", client.ErrUnavailable)
	}
	return nil
}

func (c *inProcess) SetClientID(id string) {
	c.mu.Lock()
	c.clientID = id
	c.mu.Unlock()
}

func (c *inProcess) Close() error { return nil }

func (c *inProcess) Ping(context.Context) error { return c.down() }

func (c *inProcess) Pull(ctx context.Context, req *protocol.PullRequest) (*protocol.PullResponse, error) {
	if err := c.down(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.pulls++
	c.mu.Unlock()
	resp, err := c.svc.Pull(ctx, serversvc.Principal{UserID: c.user}, req)
	return resp, asClientError(err)
}

func (c *inProcess) Push(ctx context.Context, req *protocol.PushRequest) (*protocol.PushResponse, error) {
	if err := c.down(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.pushes++
	hook := c.onPush
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	resp, err := c.svc.Push(ctx, serversvc.Principal{UserID: c.user}, req)
	return resp, asClientError(err)
}

func (c *inProcess) pushCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pushes
}

// asClientError maps engine errors the way the gRPC client does.
func asClientError(err error) error {
	if errors.Is(err, common.ErrForbidden) {
		return client.ErrForbidden
	}
	return err
}

func (c *inProcess) AttachmentURL(ctx context.Context, locationID, attachmentID string) (string, error) {
	if err := c.down(); err != nil {
		return "", err
	}
	return c.svc.AttachmentDownloadURL(ctx, serversvc.Principal{UserID: c.user}, locationID, attachmentID)
}

type env struct {
	st  *store.MemoryStore
	clk *clock.Fake
	svc *serversvc.SyncService
}

func newEnv(t *testing.T, opts ...serversvc.Option) *env {
	t.Helper()
	st := store.NewMemoryStore()
	for _, m := range []memberships.Membership{
		{UserID: "u-mgr", LocationID: loc, Role: domain.RoleManager, Active: true},
		{UserID: "u-tech", LocationID: loc, Role: domain.RoleTechnician, Active: true},
	} {
		st.Grant(m)
	}
	clk := clock.NewFake(time.UnixMilli(1_700_000_000_000))
	return &env{st: st, clk: clk, svc: serversvc.NewSyncService(st, clk, opts...)}
}

type device struct {
	db     *sql.DB
	rpc    *inProcess
	muts   MutationService
	syncer *Syncer
}

func (e *env) device(t *testing.T, user string, role domain.Role, opts ...SyncerOption) *device {
	t.Helper()
	db := setupDB(t)
	session := Session{UserID: user, LocationID: loc, Role: role}
	rpc := &inProcess{svc: e.svc, user: user}
	return &device{
		db:     db,
		rpc:    rpc,
		muts:   NewMutationService(db, e.clk, session),
		syncer: NewSyncer(db, rpc, e.clk, session, opts...),
	}
}

func (d *device) sync(t *testing.T) *SyncReport {
	t.Helper()
	r, err := d.syncer.SyncNow(context.Background())
	require.NoError(t, err)
	return r
}

type transfers struct {
	mu      sync.Mutex
	uploads map[string]string
	types   map[string]string
	gets    []string
}

func newTransfers() *transfers {
	return &transfers{uploads: map[string]string{}, types: map[string]string{}}
}

func (tr *transfers) upload(_ context.Context, url, contentType string, body []byte) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.uploads[url] = string(body)
	tr.types[url] = contentType
	return nil
}

func (tr *transfers) download(_ context.Context, url string, w io.Writer) (int64, error) {
	tr.mu.Lock()
	tr.gets = append(tr.gets, url)
	tr.mu.Unlock()
	n, err := io.Copy(w, strings.NewReader("body of "+url))
	return n, err
}
