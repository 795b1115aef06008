package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/donets/jtrack/internal/common"
	"github.com/donets/jtrack/internal/protocol"
	"github.com/donets/jtrack/internal/syncrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      syncrpc.SyncServiceClient

	mu          sync.RWMutex
	accessToken string
	clientID    string
}

func withHeaders(ctx context.Context, token, clientID string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	if clientID != "" {
		md.Set(common.ClientIDHeaderName, clientID)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	s.mu.RLock()
	token, clientID := s.accessToken, s.clientID
	s.mu.RUnlock()

	return invoker(withHeaders(ctx, token, clientID), method, req, reply, cc, opts...)
}

func NewGRPCClient(endpointURL, accessToken string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, accessToken: accessToken}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	conn, err := grpc.NewClient(s.endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = syncrpc.NewSyncServiceClient(conn)
	return nil
}

// SetAccessToken replaces the bearer token used by later calls.
func (s *GRPCClient) SetAccessToken(token string) {
	s.mu.Lock()
	s.accessToken = token
	s.mu.Unlock()
}

// SetClientID tags later calls with the device id for server logs.
func (s *GRPCClient) SetClientID(id string) {
	s.mu.Lock()
	s.clientID = id
	s.mu.Unlock()
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx)
	if err != nil {
		return mapError(err)
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) Pull(ctx context.Context, req *protocol.PullRequest) (*protocol.PullResponse, error) {
	resp, err := s.client.Pull(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}
	resp.Changes.Normalize()
	return resp, nil
}

func (s *GRPCClient) Push(ctx context.Context, req *protocol.PushRequest) (*protocol.PushResponse, error) {
	resp, err := s.client.Push(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}
	resp.Normalize()
	return resp, nil
}

func (s *GRPCClient) AttachmentURL(ctx context.Context, locationID, attachmentID string) (string, error) {
	resp, err := s.client.AttachmentURL(ctx, &protocol.AttachmentURLRequest{LocationID: locationID, AttachmentID: attachmentID})
	if err != nil {
		return "", mapError(err)
	}
	return resp.URL, nil
}

// mapError turns a gRPC status into the sentinel the sync loop acts on.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.PermissionDenied:
		return ErrForbidden
	case codes.NotFound:
		return common.ErrorNotFound
	case codes.FailedPrecondition:
		return common.ErrStorageDisabled
	case codes.InvalidArgument:
		return validationError(st)
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

func validationError(st *status.Status) error {
	ve := &protocol.ValidationError{}
	for _, d := range st.Details() {
		s, ok := d.(*structpb.Struct)
		if !ok {
			continue
		}
		for path, v := range s.AsMap() {
			ve.Add(path, fmt.Sprint(v))
		}
	}
	if len(ve.Fields) == 0 {
		ve.Add("", st.Message())
	}
	return ve
}
