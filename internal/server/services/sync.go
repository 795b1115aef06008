// Package services contains server-side business logic. SyncService is the
// reconciliation engine: it applies pushes transactionally and computes
// the change sets returned to pullers.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/donets/jtrack/internal/clock"
	"github.com/donets/jtrack/internal/common"
	"github.com/donets/jtrack/internal/domain"
	"github.com/donets/jtrack/internal/logging"
	"github.com/donets/jtrack/internal/protocol"
	"github.com/donets/jtrack/internal/server/events"
	"github.com/donets/jtrack/internal/server/storage"
	"github.com/donets/jtrack/internal/server/store"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID string
}

type SyncService struct {
	store     store.Store
	clock     clock.Clock
	presigner storage.Presigner
	publisher events.Publisher
	logger    logging.Logger
}

type Option func(*SyncService)

// WithPresigner enables storage keys with presigned upload and download
// URLs for attachments.
func WithPresigner(p storage.Presigner) Option {
	return func(s *SyncService) { s.presigner = p }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *SyncService) { s.publisher = p }
}

func WithLogger(l logging.Logger) Option {
	return func(s *SyncService) { s.logger = l }
}

func NewSyncService(st store.Store, clk clock.Clock, opts ...Option) *SyncService {
	s := &SyncService{store: st, clock: clk, logger: logging.Nop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Role returns the caller's role at a location or common.ErrForbidden
// when there is no active membership.
func (s *SyncService) Role(ctx context.Context, p Principal, locationID string) (domain.Role, error) {
	var role domain.Role
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		role, err = roleOf(ctx, tx, p, locationID)
		return err
	})
	if err != nil {
		return "", storeError(err)
	}
	return role, nil
}

// AttachmentDownloadURL returns a presigned GET for an attachment body.
// Attachments of other locations are reported as not found.
func (s *SyncService) AttachmentDownloadURL(ctx context.Context, p Principal, locationID, attachmentID string) (string, error) {
	if s.presigner == nil {
		return "", common.ErrStorageDisabled
	}

	var key string
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := roleOf(ctx, tx, p, locationID); err != nil {
			return err
		}
		a, err := tx.Attachments().Get(ctx, attachmentID)
		if err != nil {
			return err
		}
		if a.LocationID != locationID || a.Deleted() || a.StorageKey == "" {
			return common.ErrorNotFound
		}
		key = a.StorageKey
		return nil
	})
	if err != nil {
		return "", storeError(err)
	}

	url, err := s.presigner.PresignGet(ctx, key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return url, nil
}

func roleOf(ctx context.Context, tx store.Tx, p Principal, locationID string) (domain.Role, error) {
	role, err := tx.Memberships().Role(ctx, p.UserID, locationID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrForbidden
		}
		return "", err
	}
	return role, nil
}

// storeError keeps caller-facing sentinels and turns every other failure
// into a retryable ErrStoreUnavailable.
func storeError(err error) error {
	var ve *protocol.ValidationError
	switch {
	case errors.Is(err, common.ErrForbidden),
		errors.Is(err, common.ErrorNotFound),
		errors.Is(err, common.ErrStoreUnavailable),
		errors.As(err, &ve):
		return err
	}
	return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
}
