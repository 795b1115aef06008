package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/donets/jtrack/internal/clock"
	"github.com/donets/jtrack/internal/common"
	"github.com/donets/jtrack/internal/logging"
	"github.com/donets/jtrack/internal/server/auth"
	"github.com/donets/jtrack/internal/syncrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func newTestServer(secret string, api SyncAPI) *GRPCServer {
	return NewGRPCServer("127.0.0.1:0", logging.Nop(), api, clock.NewFake(time.UnixMilli(1000)), secret)
}

func withToken(token string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{
		common.AccessTokenHeaderName: token,
	}))
}

func TestInterceptor_PingAllowsWithoutToken(t *testing.T) {
	s := newTestServer("secret", nil)

	called := false
	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		called = true
		return "ok", nil
	}

	resp, err := s.accessTokenInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: syncrpc.PingFullMethod}, h)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "ok", resp)
}

func TestInterceptor_Rejections(t *testing.T) {
	s := newTestServer("secret", nil)
	expired, err := auth.GenerateToken("u-1", []byte("secret"), -time.Second)
	require.NoError(t, err)

	tests := []struct {
		name    string
		ctx     context.Context
		message string
	}{
		{name: "missing token", ctx: context.Background(), message: "missing token"},
		{name: "garbage token", ctx: withToken("not-a-valid-jwt"), message: "invalid token"},
		{name: "expired token", ctx: withToken(expired), message: "token expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := func(ctx context.Context, req interface{}) (interface{}, error) {
				t.Fatal("handler must not run")
				return nil, nil
			}
			_, err := s.accessTokenInterceptor(tt.ctx, nil, &grpc.UnaryServerInfo{FullMethod: syncrpc.PushFullMethod}, h)
			require.Error(t, err)
			assert.Equal(t, codes.Unauthenticated, status.Code(err))
			assert.Equal(t, tt.message, status.Convert(err).Message())
		})
	}
}

func TestInterceptor_ValidTokenPutsUserInContext(t *testing.T) {
	s := newTestServer("secret", nil)
	tok, err := auth.GenerateToken("u-42", []byte("secret"), time.Minute)
	require.NoError(t, err)

	var got string
	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		got, _ = userIDFromContext(ctx)
		return nil, nil
	}
	_, err = s.accessTokenInterceptor(withToken(tok), nil, &grpc.UnaryServerInfo{FullMethod: syncrpc.PullFullMethod}, h)
	require.NoError(t, err)
	assert.Equal(t, "u-42", got)
}
