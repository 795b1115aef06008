package grpc

import (
	"context"
	"net"

	"github.com/donets/jtrack/internal/clock"
	"github.com/donets/jtrack/internal/logging"
	"github.com/donets/jtrack/internal/protocol"
	"github.com/donets/jtrack/internal/server/services"
	"github.com/donets/jtrack/internal/syncrpc"
	"google.golang.org/grpc"
)

// SyncAPI is the engine surface the transport needs.
type SyncAPI interface {
	Pull(ctx context.Context, p services.Principal, req *protocol.PullRequest) (*protocol.PullResponse, error)
	Push(ctx context.Context, p services.Principal, req *protocol.PushRequest) (*protocol.PushResponse, error)
	AttachmentDownloadURL(ctx context.Context, p services.Principal, locationID, attachmentID string) (string, error)
}

type GRPCServer struct {
	address   string
	sync      SyncAPI
	clock     clock.Clock
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, sync SyncAPI, clk clock.Clock, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		sync:      sync,
		clock:     clk,
		jwtSecret: []byte(secretKey),
	}
}

// Run serves until ctx is canceled, then stops gracefully.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))

	syncrpc.RegisterSyncServiceServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
