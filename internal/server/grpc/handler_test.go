package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/donets/jtrack/internal/common"
	"github.com/donets/jtrack/internal/protocol"
	"github.com/donets/jtrack/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type fakeSync struct {
	mu        sync.Mutex
	principal services.Principal
	pullReq   *protocol.PullRequest
	pushReq   *protocol.PushRequest
	err       error
}

func (f *fakeSync) Pull(_ context.Context, p services.Principal, req *protocol.PullRequest) (*protocol.PullResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.principal, f.pullReq = p, req
	if f.err != nil {
		return nil, f.err
	}
	return &protocol.PullResponse{Changes: protocol.NewChanges(), Timestamp: 77}, nil
}

func (f *fakeSync) Push(_ context.Context, p services.Principal, req *protocol.PushRequest) (*protocol.PushResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.principal, f.pushReq = p, req
	if f.err != nil {
		return nil, f.err
	}
	resp := &protocol.PushResponse{OK: true, NewTimestamp: 78}
	resp.Normalize()
	return resp, nil
}

func (f *fakeSync) AttachmentDownloadURL(_ context.Context, p services.Principal, locationID, attachmentID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.principal = p
	if f.err != nil {
		return "", f.err
	}
	return "https://get/" + locationID + "/" + attachmentID, nil
}

func (f *fakeSync) caller() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.principal.UserID
}

func raw(s string) *json.RawMessage {
	m := json.RawMessage(s)
	return &m
}

func authed(userID string) context.Context {
	return context.WithValue(context.Background(), userIDKey, userID)
}

func TestPull_DecodesAndCallsEngine(t *testing.T) {
	api := &fakeSync{}
	s := newTestServer("secret", api)

	resp, err := s.Pull(authed("u-1"), raw(`{"locationId":"loc-1","lastPulledAt":5,"limit":10}`))
	require.NoError(t, err)
	assert.Equal(t, int64(77), resp.Timestamp)
	assert.Equal(t, "u-1", api.principal.UserID)
	assert.Equal(t, int64(5), *api.pullReq.LastPulledAt)
	assert.Equal(t, 10, *api.pullReq.Limit)
}

func TestPush_InvalidPayloadNeverReachesEngine(t *testing.T) {
	api := &fakeSync{}
	s := newTestServer("secret", api)

	_, err := s.Push(authed("u-1"), raw(`{"locationId":"loc-1","lastPulledAt":1.5,"changes":{},"clientId":"c-1"}`))
	require.Error(t, err)
	assert.Nil(t, api.pushReq)

	st := status.Convert(err)
	assert.Equal(t, codes.InvalidArgument, st.Code())
	require.Len(t, st.Details(), 1)
	detail, ok := st.Details()[0].(*structpb.Struct)
	require.True(t, ok)
	assert.Equal(t, "must be an integer", detail.AsMap()["lastPulledAt"])
}

func TestAttachmentURL(t *testing.T) {
	api := &fakeSync{}
	s := newTestServer("secret", api)

	resp, err := s.AttachmentURL(authed("u-1"), raw(`{"locationId":"loc-1","attachmentId":"att-1"}`))
	require.NoError(t, err)
	assert.Equal(t, "https://get/loc-1/att-1", resp.URL)
}

func TestHandlers_RequirePrincipal(t *testing.T) {
	s := newTestServer("secret", &fakeSync{})
	_, err := s.Pull(context.Background(), raw(`{"locationId":"loc-1"}`))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{err: fmt.Errorf("wrap: %w", common.ErrForbidden), code: codes.PermissionDenied},
		{err: common.ErrTokenExpired, code: codes.Unauthenticated},
		{err: common.ErrorNotFound, code: codes.NotFound},
		{err: common.ErrStorageDisabled, code: codes.FailedPrecondition},
		{err: fmt.Errorf("%w: disk full", common.ErrStoreUnavailable), code: codes.Unavailable},
		{err: protocol.NewValidationError("locationId", "is required"), code: codes.InvalidArgument},
		{err: errors.New("boom"), code: codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.Equal(t, tt.code, status.Code(toStatus(tt.err)))
		})
	}
}

func TestPush_EngineErrorsAreMapped(t *testing.T) {
	api := &fakeSync{err: common.ErrForbidden}
	s := newTestServer("secret", api)

	_, err := s.Push(authed("u-1"), raw(`{"locationId":"loc-1","lastPulledAt":null,"changes":{},"clientId":"c-1"}`))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
	require.NotNil(t, api.pushReq)
	assert.Equal(t, "c-1", api.pushReq.ClientID)
}
