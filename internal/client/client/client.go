package client

import (
	"context"

	"github.com/donets/jtrack/internal/protocol"
)

type Client interface {
	Close() error
	Ping(ctx context.Context) error
	Pull(ctx context.Context, req *protocol.PullRequest) (*protocol.PullResponse, error)
	Push(ctx context.Context, req *protocol.PushRequest) (*protocol.PushResponse, error)
	AttachmentURL(ctx context.Context, locationID, attachmentID string) (string, error)
}
