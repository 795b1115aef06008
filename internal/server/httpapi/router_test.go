package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/donets/jtrack/internal/common"
	"github.com/donets/jtrack/internal/domain"
	"github.com/donets/jtrack/internal/logging"
	"github.com/donets/jtrack/internal/protocol"
	"github.com/donets/jtrack/internal/server/auth"
	"github.com/donets/jtrack/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "http-secret"

func init() { gin.SetMode(gin.TestMode) }

type fakeSync struct {
	principal services.Principal
	pushReq   *protocol.PushRequest
	err       error
	roles     map[string]domain.Role
}

func (f *fakeSync) Pull(_ context.Context, p services.Principal, req *protocol.PullRequest) (*protocol.PullResponse, error) {
	f.principal = p
	if f.err != nil {
		return nil, f.err
	}
	return &protocol.PullResponse{Changes: protocol.NewChanges(), Timestamp: 10}, nil
}

func (f *fakeSync) Push(_ context.Context, p services.Principal, req *protocol.PushRequest) (*protocol.PushResponse, error) {
	f.principal, f.pushReq = p, req
	if f.err != nil {
		return nil, f.err
	}
	resp := &protocol.PushResponse{OK: true, NewTimestamp: 11}
	resp.Normalize()
	return resp, nil
}

func (f *fakeSync) AttachmentDownloadURL(_ context.Context, p services.Principal, locationID, attachmentID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://get/" + locationID + "/" + attachmentID, nil
}

func (f *fakeSync) Role(_ context.Context, p services.Principal, locationID string) (domain.Role, error) {
	r, ok := f.roles[p.UserID+"@"+locationID]
	if !ok {
		return "", common.ErrForbidden
	}
	return r, nil
}

func newRouter(api SyncAPI) *gin.Engine {
	return NewRouter(Config{JWTSecret: secret, AllowOrigins: []string{"http://localhost:3000"}}, api, logging.Nop())
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := auth.GenerateToken(userID, []byte(secret), time.Minute)
	require.NoError(t, err)
	return tok
}

func do(t *testing.T, r http.Handler, method, path, body, tok string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	w := do(t, newRouter(&fakeSync{}), http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAuth(t *testing.T) {
	r := newRouter(&fakeSync{})
	expired, err := auth.GenerateToken("u-1", []byte(secret), -time.Second)
	require.NoError(t, err)

	tests := []struct {
		name string
		tok  string
		want string
	}{
		{name: "missing", tok: "", want: "missing bearer token"},
		{name: "garbage", tok: "abc", want: "invalid token"},
		{name: "expired", tok: expired, want: "token expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/api/v1/sync/pull", `{"locationId":"loc-1"}`, tt.tok)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tt.want, decode(t, w)["error"])
		})
	}
}

func TestPushAndPull(t *testing.T) {
	api := &fakeSync{}
	r := newRouter(api)
	tok := token(t, "u-1")

	w := do(t, r, http.MethodPost, "/api/v1/sync/push",
		`{"locationId":"loc-1","lastPulledAt":null,"clientId":"c-1","changes":{"tickets":{"deleted":["t-1"]}}}`, tok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, float64(11), body["newTimestamp"])
	assert.Equal(t, []any{}, body["rejected"])
	assert.Equal(t, "u-1", api.principal.UserID)
	assert.Equal(t, []string{"t-1"}, api.pushReq.Changes.Tickets.Deleted)
	assert.NotNil(t, api.pushReq.Changes.PaymentRecords.Created)

	w = do(t, r, http.MethodPost, "/api/v1/sync/pull", `{"locationId":"loc-1","lastPulledAt":3}`, tok)
	require.Equal(t, http.StatusOK, w.Code)
	changes := decode(t, w)["changes"].(map[string]any)
	for _, f := range domain.Families {
		assert.Contains(t, changes, string(f))
	}
}

func TestPush_ValidationError(t *testing.T) {
	api := &fakeSync{}
	w := do(t, newRouter(api), http.MethodPost, "/api/v1/sync/push",
		`{"locationId":"loc-1","lastPulledAt":2.5,"clientId":"c-1","changes":{}}`, token(t, "u-1"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "validation failed", body["error"])
	assert.Equal(t, map[string]any{"lastPulledAt": "must be an integer"}, body["fields"])
	assert.Nil(t, api.pushReq)
}

func TestEngineErrors(t *testing.T) {
	tests := []struct {
		err       error
		code      int
		retryable bool
	}{
		{err: common.ErrForbidden, code: http.StatusForbidden},
		{err: fmt.Errorf("%w: db down", common.ErrStoreUnavailable), code: http.StatusServiceUnavailable, retryable: true},
		{err: fmt.Errorf("boom"), code: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			w := do(t, newRouter(&fakeSync{err: tt.err}), http.MethodPost, "/api/v1/sync/pull", `{"locationId":"loc-1"}`, token(t, "u-1"))
			assert.Equal(t, tt.code, w.Code)
			if tt.retryable {
				assert.Equal(t, true, decode(t, w)["retryable"])
			}
		})
	}
}

func TestAttachmentURL_RequiresMembership(t *testing.T) {
	api := &fakeSync{roles: map[string]domain.Role{"u-1@loc-1": domain.RoleTechnician}}
	r := newRouter(api)

	w := do(t, r, http.MethodGet, "/api/v1/locations/loc-1/attachments/att-1/url", "", token(t, "u-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://get/loc-1/att-1", decode(t, w)["url"])

	w = do(t, r, http.MethodGet, "/api/v1/locations/loc-2/attachments/att-1/url", "", token(t, "u-1"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	api.err = common.ErrStorageDisabled
	w = do(t, r, http.MethodGet, "/api/v1/locations/loc-1/attachments/att-1/url", "", token(t, "u-1"))
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestStatusTransitions(t *testing.T) {
	r := newRouter(&fakeSync{})
	tok := token(t, "u-1")

	w := do(t, r, http.MethodGet, "/api/v1/status-transitions?current=InProgress&role=Technician", "", tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"current":"InProgress","role":"Technician","allowed":["Done","Canceled"]}`, w.Body.String())

	w = do(t, r, http.MethodGet, "/api/v1/status-transitions?current=Done&role=Manager&next=Invoiced", "", tok)
	require.Equal(t, http.StatusOK, w.Code)
	result := decode(t, w)["result"].(map[string]any)
	assert.Equal(t, false, result["valid"])
	assert.Contains(t, result["reason"], "system payment workflow")

	w = do(t, r, http.MethodGet, "/api/v1/status-transitions?current=Done&role=Manager&next=Invoiced&system=true", "", tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"valid": true}, decode(t, w)["result"])

	w = do(t, r, http.MethodGet, "/api/v1/status-transitions?current=Bogus", "", tok)
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := decode(t, w)["fields"].(map[string]any)
	assert.Contains(t, fields["current"], "must be one of")
	assert.Equal(t, "is required", fields["role"])
}

func TestCORS(t *testing.T) {
	r := newRouter(&fakeSync{})
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sync/pull", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
