// Package services contains the agent's application services: the
// offline mutation queue that records local edits and the syncer that
// pushes them and pulls server changes back into the replica.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/donets/jtrack/internal/client/repositories/metadata"
	"github.com/donets/jtrack/internal/domain"
	"github.com/google/uuid"
)

// Session identifies who is editing and where. Role drives the local
// status transition checks; the server re-checks everything.
type Session struct {
	UserID     string
	LocationID string
	Role       domain.Role
}

func (s Session) Validate() error {
	if s.UserID == "" {
		return errors.New("session: user id is required")
	}
	if s.LocationID == "" {
		return errors.New("session: location id is required")
	}
	if !s.Role.Valid() {
		return fmt.Errorf("session: unknown role %q", s.Role)
	}
	return nil
}

const (
	clientIDKey      = "client_id"
	checkpointPrefix = "checkpoint:"
	uploadPrefix     = "upload:"
	pausedPrefix     = "paused:"
)

func checkpointKey(locationID string) string { return checkpointPrefix + locationID }

func uploadKey(attachmentID string) string { return uploadPrefix + attachmentID }

func pausedKey(locationID string) string { return pausedPrefix + locationID }

// clientID returns the device id, creating it on first use.
func clientID(ctx context.Context, repo metadata.Repository) (string, error) {
	raw, err := repo.Get(ctx, clientIDKey)
	if err != nil {
		return "", err
	}
	if len(raw) > 0 {
		return string(raw), nil
	}
	id := uuid.NewString()
	if err := repo.Set(ctx, clientIDKey, []byte(id)); err != nil {
		return "", err
	}
	return id, nil
}
