package grpc

import (
	"context"
	"encoding/json"

	"github.com/donets/jtrack/internal/clock"
	"github.com/donets/jtrack/internal/protocol"
	"github.com/donets/jtrack/internal/server/services"
	"github.com/donets/jtrack/internal/syncrpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) Ping(ctx context.Context, _ *syncrpc.Empty) (*protocol.PingResponse, error) {
	return &protocol.PingResponse{Status: "OK", Time: clock.UnixMilli(s.clock)}, nil
}

func (s *GRPCServer) Pull(ctx context.Context, in *json.RawMessage) (*protocol.PullResponse, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	req, err := protocol.DecodePullRequest(*in)
	if err != nil {
		return nil, toStatus(err)
	}

	resp, err := s.sync.Pull(ctx, p, req)
	if err != nil {
		s.logError(ctx, "pull failed", req.LocationID, err)
		return nil, toStatus(err)
	}
	return resp, nil
}

func (s *GRPCServer) Push(ctx context.Context, in *json.RawMessage) (*protocol.PushResponse, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	req, err := protocol.DecodePushRequest(*in)
	if err != nil {
		return nil, toStatus(err)
	}

	resp, err := s.sync.Push(ctx, p, req)
	if err != nil {
		s.logError(ctx, "push failed", req.LocationID, err)
		return nil, toStatus(err)
	}
	return resp, nil
}

func (s *GRPCServer) AttachmentURL(ctx context.Context, in *json.RawMessage) (*protocol.AttachmentURLResponse, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	req, err := protocol.DecodeAttachmentURLRequest(*in)
	if err != nil {
		return nil, toStatus(err)
	}

	url, err := s.sync.AttachmentDownloadURL(ctx, p, req.LocationID, req.AttachmentID)
	if err != nil {
		s.logError(ctx, "attachment url failed", req.LocationID, err)
		return nil, toStatus(err)
	}
	return &protocol.AttachmentURLResponse{URL: url}, nil
}

func principal(ctx context.Context) (services.Principal, error) {
	id, ok := userIDFromContext(ctx)
	if !ok {
		return services.Principal{}, status.Error(codes.Unauthenticated, "missing token")
	}
	return services.Principal{UserID: id}, nil
}

func (s *GRPCServer) logError(ctx context.Context, msg, locationID string, err error) {
	if status.Code(toStatus(err)) == codes.Internal {
		s.logger.Error(ctx, msg, "location", locationID, "error", err)
		return
	}
	s.logger.Warn(ctx, msg, "location", locationID, "error", err)
}
