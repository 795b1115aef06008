package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/donets/jtrack/internal/client/client"
	"github.com/donets/jtrack/internal/client/repositories/conflicts"
	"github.com/donets/jtrack/internal/client/repositories/outbox"
	"github.com/donets/jtrack/internal/clock"
	"github.com/donets/jtrack/internal/logging"
	"github.com/donets/jtrack/internal/netx"
	"github.com/donets/jtrack/internal/protocol"
)

const (
	DefaultPageSize            = 500
	DefaultSyncInterval        = time.Minute
	DefaultOnlineCheckInterval = 15 * time.Second
)

// SyncReport summarises one flush.
type SyncReport struct {
	Pushed    int
	Applied   int
	Rejected  int
	Conflicts int
	Pulled    int
	Uploaded  int
}

// UploadFunc stores an attachment body at a presigned URL.
type UploadFunc func(ctx context.Context, url, contentType string, body []byte) error

// DownloadFunc copies an attachment body from a presigned URL into w.
type DownloadFunc func(ctx context.Context, url string, w io.Writer) (int64, error)

type SyncerOption func(*Syncer)

func WithLogger(l logging.Logger) SyncerOption {
	return func(s *Syncer) { s.logger = l }
}

func WithTransfer(up UploadFunc, down DownloadFunc) SyncerOption {
	return func(s *Syncer) {
		if up != nil {
			s.upload = up
		}
		if down != nil {
			s.download = down
		}
	}
}

func WithPageSize(n int) SyncerOption {
	return func(s *Syncer) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

func WithIntervals(syncEvery, onlineEvery time.Duration) SyncerOption {
	return func(s *Syncer) {
		if syncEvery > 0 {
			s.syncEvery = syncEvery
		}
		if onlineEvery > 0 {
			s.onlineEvery = onlineEvery
		}
	}
}

// WithReportHandler is called after every background flush.
func WithReportHandler(fn func(*SyncReport, error)) SyncerOption {
	return func(s *Syncer) { s.onReport = fn }
}

// Syncer pushes the outbox of one location and pulls server changes back.
// Flushes never overlap; triggers that arrive during a flush collapse
// into a single follow-up flush.
type Syncer struct {
	db       *sql.DB
	client   client.Client
	clock    clock.Clock
	session  Session
	logger   logging.Logger
	upload   UploadFunc
	download DownloadFunc

	pageSize    int
	syncEvery   time.Duration
	onlineEvery time.Duration
	onReport    func(*SyncReport, error)

	trigger  chan struct{}
	mu       sync.Mutex
	inFlight atomic.Bool
	online   atomic.Bool
	// paused stops timed and reconnect flushes after a failure that a
	// retry cannot fix. Any successful flush clears it.
	paused atomic.Bool
}

func NewSyncer(db *sql.DB, c client.Client, clk clock.Clock, session Session, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		db:          db,
		client:      c,
		clock:       clk,
		session:     session,
		logger:      logging.Nop(),
		upload:      netx.UploadToPresignedURL,
		download:    netx.DownloadFromPresignedURL,
		pageSize:    DefaultPageSize,
		syncEvery:   DefaultSyncInterval,
		onlineEvery: DefaultOnlineCheckInterval,
		trigger:     make(chan struct{}, 1),
	}
	s.online.Store(true)
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("location", session.LocationID)
	return s
}

// Trigger asks the Run loop for a flush without waiting for it.
func (s *Syncer) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Syncer) InFlight() bool { return s.inFlight.Load() }

func (s *Syncer) Online() bool { return s.online.Load() }

func (s *Syncer) Paused() bool { return s.paused.Load() }

// SyncNow flushes immediately, waiting for a running flush to finish first.
func (s *Syncer) SyncNow(ctx context.Context) (*SyncReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight.Store(true)
	defer s.inFlight.Store(false)

	report, err := s.flush(ctx)
	switch {
	case errors.Is(err, client.ErrUnavailable):
		s.online.Store(false)
	case needsUser(err):
		s.pause(ctx, err)
	case err == nil:
		s.resume(ctx)
	}
	return report, err
}

// needsUser reports whether err rejects the whole call for a reason that
// retrying the same outbox cannot change.
func needsUser(err error) bool {
	var ve *protocol.ValidationError
	return errors.Is(err, client.ErrForbidden) ||
		errors.Is(err, client.ErrUnauthorized) ||
		errors.As(err, &ve)
}

func (s *Syncer) pause(ctx context.Context, cause error) {
	s.paused.Store(true)
	r := client.NewRepositories(s.db)
	if err := r.Metadata.Set(ctx, pausedKey(s.session.LocationID), []byte(cause.Error())); err != nil {
		s.logger.Error(ctx, "store pause reason", "error", err)
	}
}

func (s *Syncer) resume(ctx context.Context) {
	s.paused.Store(false)
	r := client.NewRepositories(s.db)
	if err := r.Metadata.Delete(ctx, pausedKey(s.session.LocationID)); err != nil {
		s.logger.Error(ctx, "clear pause reason", "error", err)
	}
}

// PauseReason returns why background sync of the location stopped, or ""
// when it runs.
func (s *Syncer) PauseReason(ctx context.Context) (string, error) {
	v, err := client.NewRepositories(s.db).Metadata.Get(ctx, pausedKey(s.session.LocationID))
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// Run flushes on every tick while the server is reachable, whenever
// connectivity comes back, and on Trigger. It returns when ctx is done.
func (s *Syncer) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.syncEvery)
	defer ticker.Stop()
	probe := s.clock.NewTicker(s.onlineEvery)
	defer probe.Stop()

	s.Trigger()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if s.online.Load() && !s.paused.Load() {
				s.Trigger()
			}
		case <-probe.C:
			s.checkOnline(ctx)
		case <-s.trigger:
			report, err := s.SyncNow(ctx)
			s.logResult(ctx, report, err)
			if s.onReport != nil {
				s.onReport(report, err)
			}
		}
	}
}

func (s *Syncer) checkOnline(ctx context.Context) {
	err := s.client.Ping(ctx)
	up := err == nil
	if was := s.online.Swap(up); was == up {
		return
	}
	if up {
		s.logger.Info(ctx, "server reachable again")
		if !s.paused.Load() {
			s.Trigger()
		}
		return
	}
	s.logger.Warn(ctx, "server unreachable", "error", err)
}

func (s *Syncer) logResult(ctx context.Context, r *SyncReport, err error) {
	switch {
	case errors.Is(err, client.ErrUnavailable):
		s.logger.Warn(ctx, "sync postponed", "error", err)
	case needsUser(err):
		s.logger.Error(ctx, "sync paused until the next manual sync", "error", err)
	case err != nil:
		s.logger.Error(ctx, "sync failed", "error", err)
	default:
		s.logger.Info(ctx, "sync done",
			"pushed", r.Pushed,
			"applied", r.Applied,
			"rejected", r.Rejected,
			"conflicts", r.Conflicts,
			"pulled", r.Pulled,
			"uploaded", r.Uploaded)
	}
}

type snapshot struct {
	clientID   string
	checkpoint *int64
	entries    []outbox.Entry
	// ours holds the entities an earlier batch of this flush wrote, so a
	// later batch does not report them as overwritten.
	ours map[outbox.Key]bool
}

func (s *Syncer) flush(ctx context.Context) (*SyncReport, error) {
	report := &SyncReport{}
	loc := s.session.LocationID

	snap := snapshot{ours: map[outbox.Key]bool{}}
	err := client.WithTx(ctx, s.db, func(ctx context.Context, r *client.Repositories) error {
		var err error
		if snap.clientID, err = clientID(ctx, r.Metadata); err != nil {
			return err
		}
		if snap.checkpoint, err = r.Metadata.GetInt64(ctx, checkpointKey(loc)); err != nil {
			return err
		}
		snap.entries, err = r.Outbox.List(ctx, loc)
		return err
	})
	if err != nil {
		return report, fmt.Errorf("read outbox: %w", err)
	}
	if c, ok := s.client.(interface{ SetClientID(string) }); ok {
		c.SetClientID(snap.clientID)
	}

	for rest := snap.entries; len(rest) > 0; {
		changes, maxSeq, err := collapse(rest)
		if err != nil {
			return report, fmt.Errorf("read outbox: %w", err)
		}
		uploads, err := s.push(ctx, &snap, &changes, maxSeq, report)
		if err != nil {
			return report, err
		}
		s.uploadAll(ctx, uploads, report)
		rest = remaining(rest, maxSeq)
	}

	if err := s.pull(ctx, snap.checkpoint, report); err != nil {
		return report, err
	}
	return report, nil
}

// push sends one collapsed batch and settles its outcome locally.
func (s *Syncer) push(ctx context.Context, snap *snapshot, changes *protocol.Changes, maxSeq int64, report *SyncReport) ([]protocol.UploadTask, error) {
	loc := s.session.LocationID
	resp := &protocol.PushResponse{}
	resp.Normalize()

	report.Pushed += changes.Len()
	if !changes.Empty() {
		var err error
		resp, err = s.client.Push(ctx, &protocol.PushRequest{
			LocationID:   loc,
			LastPulledAt: snap.checkpoint,
			Changes:      *changes,
			ClientID:     snap.clientID,
		})
		if err != nil {
			return nil, fmt.Errorf("push: %w", err)
		}
	}

	var overwritten []protocol.EntityRef
	for _, ref := range resp.Conflicts {
		if !snap.ours[outbox.Key{Family: ref.Family, ID: ref.ID}] {
			overwritten = append(overwritten, ref)
		}
	}
	report.Applied += len(resp.Applied)
	report.Rejected += len(resp.Rejected)
	report.Conflicts += len(overwritten)

	now := clock.UnixMilli(s.clock)
	err := client.WithTx(ctx, s.db, func(ctx context.Context, r *client.Repositories) error {
		if err := r.Outbox.DeleteUpTo(ctx, loc, maxSeq); err != nil {
			return err
		}
		pending, err := r.Outbox.Pending(ctx, loc)
		if err != nil {
			return err
		}
		for _, rej := range resp.Rejected {
			// Newer local entries still queued for the entity win over the
			// server copy until they are pushed themselves.
			if !pending[outbox.Key{Family: rej.Family, ID: rej.ID}] {
				if err := revert(ctx, r, rej.EntityRef, rej.Current); err != nil {
					return err
				}
			}
			if err := r.Metadata.Delete(ctx, uploadKey(rej.ID)); err != nil {
				return err
			}
			var current []byte
			if !isNull(rej.Current) {
				current = rej.Current
			}
			err := r.Conflicts.Record(ctx, &conflicts.Conflict{
				LocationID: loc,
				Family:     rej.Family,
				EntityID:   rej.ID,
				Kind:       string(rej.Kind),
				Reason:     rej.Reason,
				Current:    current,
				RecordedAt: now,
			})
			if err != nil {
				return err
			}
		}
		for _, ref := range overwritten {
			err := r.Conflicts.Record(ctx, &conflicts.Conflict{
				LocationID: loc,
				Family:     ref.Family,
				EntityID:   ref.ID,
				Kind:       conflicts.KindOverwritten,
				Reason:     "server copy changed since last pull and was overwritten",
				RecordedAt: now,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("apply push result: %w", err)
	}
	for _, ref := range resp.Applied {
		snap.ours[outbox.Key{Family: ref.Family, ID: ref.ID}] = true
	}
	return resp.Uploads, nil
}

// uploadAll sends attachment bodies for the upload tasks of a push. A
// failed upload is logged and its file reference kept.
func (s *Syncer) uploadAll(ctx context.Context, tasks []protocol.UploadTask, report *SyncReport) {
	r := client.NewRepositories(s.db)
	for _, t := range tasks {
		log := s.logger.With("attachment", t.AttachmentID)

		path, err := r.Metadata.Get(ctx, uploadKey(t.AttachmentID))
		if err != nil {
			log.Error(ctx, "read upload reference", "error", err)
			continue
		}
		if path == nil {
			log.Warn(ctx, "no local file for upload task")
			continue
		}
		contentType := ""
		if a, err := r.Attachments.Get(ctx, t.AttachmentID); err == nil {
			contentType = a.ContentType
		}

		body, err := os.ReadFile(string(path))
		if err != nil {
			log.Error(ctx, "read attachment file", "path", string(path), "error", err)
			continue
		}
		// TODO: ask AttachmentURL for a fresh PUT URL on the next flush instead of leaving the reference behind.
		if err := s.upload(ctx, t.URL, contentType, body); err != nil {
			log.Error(ctx, "upload attachment", "error", err)
			continue
		}
		if err := r.Metadata.Delete(ctx, uploadKey(t.AttachmentID)); err != nil {
			log.Error(ctx, "clear upload reference", "error", err)
		}
		report.Uploaded++
	}
}

// pull walks every page since the checkpoint and stores the snapshot
// timestamp only once the walk is complete.
func (s *Syncer) pull(ctx context.Context, since *int64, report *SyncReport) error {
	loc := s.session.LocationID
	limit := s.pageSize
	var cursor *protocol.PullCursor

	for {
		resp, err := s.client.Pull(ctx, &protocol.PullRequest{
			LocationID:   loc,
			LastPulledAt: since,
			Cursor:       cursor,
			Limit:        &limit,
		})
		if err != nil {
			return fmt.Errorf("pull: %w", err)
		}
		if resp.HasMore && resp.Cursor == nil {
			return errors.New("pull: server reported more pages without a cursor")
		}

		err = client.WithTx(ctx, s.db, func(ctx context.Context, r *client.Repositories) error {
			pending, err := r.Outbox.Pending(ctx, loc)
			if err != nil {
				return err
			}
			n, err := mergeChanges(ctx, r, &resp.Changes, pending)
			report.Pulled += n
			if err != nil {
				return err
			}
			if resp.HasMore {
				return nil
			}
			return r.Metadata.SetInt64(ctx, checkpointKey(loc), resp.Timestamp)
		})
		if err != nil {
			return fmt.Errorf("merge pull: %w", err)
		}
		s.logger.Debug(ctx, "pulled page", "changes", resp.Changes.Len(), "more", resp.HasMore)
		if !resp.HasMore {
			return nil
		}
		cursor = resp.Cursor
	}
}

// FetchAttachment downloads an attachment body into w.
func (s *Syncer) FetchAttachment(ctx context.Context, attachmentID string, w io.Writer) (int64, error) {
	url, err := s.client.AttachmentURL(ctx, s.session.LocationID, attachmentID)
	if err != nil {
		return 0, err
	}
	return s.download(ctx, url, w)
}

// Checkpoint returns the stored pull checkpoint, nil before the first
// complete pull.
func (s *Syncer) Checkpoint(ctx context.Context) (*int64, error) {
	return client.NewRepositories(s.db).Metadata.GetInt64(ctx, checkpointKey(s.session.LocationID))
}
