package server_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/protocol"
	"github.com/Tyrowin/roomchat/internal/server"
	"github.com/Tyrowin/roomchat/internal/testhelpers"
)

func TestHealthEndpoint(t *testing.T) {
	ts := testhelpers.StartServer(t)

	for _, path := range []string{"/", "/health"} {
		resp, err := http.Get(ts.URL() + path)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		require.NoError(t, err)

		testhelpers.AssertStatusCode(t, resp, http.StatusOK)
		assert.Equal(t, "Chat server is running!", string(body))
	}
}

func TestHealthEndpointRejectsOtherMethods(t *testing.T) {
	ts := testhelpers.StartServer(t)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		req, err := http.NewRequest(method, ts.URL()+"/health", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		testhelpers.AssertStatusCode(t, resp, http.StatusMethodNotAllowed)
	}
}

func TestRegisterEndpoint(t *testing.T) {
	ts := testhelpers.StartServer(t)

	var resp protocol.RegisterResponse
	httpResp := testhelpers.DoJSON(t, http.MethodPost, ts.URL()+"/api/register", protocol.RegisterRequest{Name: " alice "}, &resp)

	testhelpers.AssertStatusCode(t, httpResp, http.StatusOK)
	assert.Len(t, resp.SessionID, 32)
	assert.Equal(t, server.Version, resp.ServerVersion)

	info, ok := ts.Hub.Sessions().Get(resp.SessionID)
	require.True(t, ok)
	assert.Equal(t, "alice", info.Name)
}

func TestRegisterEndpointRejectsInvalidNames(t *testing.T) {
	ts := testhelpers.StartServer(t)

	tests := []struct {
		name string
		want string
	}{
		{"ab", "name should be between 3 and 16 characters long, found 2"},
		{"this-name-is-too-long", "name should be between 3 and 16 characters long, found 21"},
		{"bad name", "name is not valid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp protocol.ErrorResponse
			httpResp := testhelpers.DoJSON(t, http.MethodPost, ts.URL()+"/api/register", protocol.RegisterRequest{Name: tt.name}, &resp)
			testhelpers.AssertStatusCode(t, httpResp, http.StatusOK)
			assert.Equal(t, tt.want, resp.Error)
		})
	}
	assert.Zero(t, ts.Hub.Sessions().Len())
}

func TestRegisterEndpointRejectsBadJSON(t *testing.T) {
	ts := testhelpers.StartServer(t)

	resp, err := http.Post(ts.URL()+"/api/register", "application/json", strings.NewReader("{name"))
	require.NoError(t, err)
	_ = resp.Body.Close()
	testhelpers.AssertStatusCode(t, resp, http.StatusBadRequest)

	oversized := bytes.Repeat([]byte("a"), 8*1024)
	resp, err = http.Post(ts.URL()+"/api/register", "application/json",
		bytes.NewReader(append(append([]byte(`{"name":"`), oversized...), []byte(`"}`)...)))
	require.NoError(t, err)
	_ = resp.Body.Close()
	testhelpers.AssertStatusCode(t, resp, http.StatusBadRequest)
}

func TestUnregisterEndpoint(t *testing.T) {
	ts := testhelpers.StartServer(t)
	reg := testhelpers.Register(t, ts.URL(), "alice")

	var ok map[string]any
	resp := testhelpers.DoJSON(t, http.MethodDelete, ts.URL()+"/api/register", protocol.UnregisterRequest{SessionID: reg.SessionID}, &ok)
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	assert.Empty(t, ok)
	assert.Zero(t, ts.Hub.Sessions().Len())

	var failure protocol.ErrorResponse
	testhelpers.DoJSON(t, http.MethodDelete, ts.URL()+"/api/register", protocol.UnregisterRequest{SessionID: reg.SessionID}, &failure)
	assert.Equal(t, "invalid session id", failure.Error)
}

func TestVersionEndpoint(t *testing.T) {
	ts := testhelpers.StartServer(t)

	var resp protocol.VersionResponse
	httpResp := testhelpers.DoJSON(t, http.MethodGet, ts.URL()+"/api/version", nil, &resp)
	testhelpers.AssertStatusCode(t, httpResp, http.StatusOK)
	assert.Equal(t, server.Version, resp.Version)
}

func TestWebSocketUnknownSession(t *testing.T) {
	ts := testhelpers.StartServer(t)

	conn, resp, err := testhelpers.ConnectWebSocket(testhelpers.WebSocketURL(ts.URL(), "does-not-exist"))
	require.Error(t, err)
	assert.Nil(t, conn)
	require.NotNil(t, resp)
	testhelpers.AssertStatusCode(t, resp, http.StatusNotFound)
}

func TestWebSocketSecondStreamRejected(t *testing.T) {
	ts := testhelpers.StartServer(t)
	reg, _ := testhelpers.Join(t, ts, "alice")

	conn, resp, err := testhelpers.ConnectWebSocket(testhelpers.WebSocketURL(ts.URL(), reg.SessionID))
	require.Error(t, err)
	assert.Nil(t, conn)
	require.NotNil(t, resp)
	testhelpers.AssertStatusCode(t, resp, http.StatusConflict)
}

func TestWebSocketWithoutUpgrade(t *testing.T) {
	ts := testhelpers.StartServer(t)
	reg := testhelpers.Register(t, ts.URL(), "alice")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws/"+reg.SessionID, nil)
	server.SetupRoutes(ts.Hub).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	info, ok := ts.Hub.Sessions().Get(reg.SessionID)
	require.True(t, ok)
	assert.False(t, info.Bound)
}

func TestWebSocketOriginValidation(t *testing.T) {
	ts := testhelpers.StartServer(t)
	reg := testhelpers.Register(t, ts.URL(), "alice")

	header := http.Header{}
	header.Set("Origin", "http://evil.example.com")
	dialer := testhelpers.Dialer()
	conn, resp, err := dialer.Dial(testhelpers.WebSocketURL(ts.URL(), reg.SessionID), header)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.Error(t, err)
	assert.Nil(t, conn)
	require.NotNil(t, resp)
	testhelpers.AssertStatusCode(t, resp, http.StatusForbidden)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := testhelpers.StartServer(t)
	testhelpers.Register(t, ts.URL(), "alice")

	resp, err := http.Get(ts.URL() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)

	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	assert.Contains(t, string(body), "roomchat_sessions_active")
}
