// Package testhelpers provides common utilities for testing the chat server
// and client against a real in-process server.
//
// It starts hubs behind httptest servers, registers sessions over the HTTP
// API, and reads and writes protocol frames on websocket connections.
package testhelpers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/roomchat/internal/protocol"
	"github.com/Tyrowin/roomchat/internal/server"
)

// TestServer bundles a running hub with the HTTP server in front of it.
type TestServer struct {
	Hub    *server.Hub
	Server *httptest.Server
}

// URL returns the base HTTP URL of the server.
func (ts *TestServer) URL() string {
	return ts.Server.URL
}

// StartServer runs a hub and router behind an httptest server. Both are
// stopped when the test ends.
func StartServer(t *testing.T) *TestServer {
	t.Helper()
	return StartServerWithConfig(t, *server.NewConfig())
}

// StartServerWithConfig is StartServer with a custom configuration.
func StartServerWithConfig(t *testing.T, cfg server.Config) *TestServer {
	t.Helper()

	hub := server.NewHub(cfg, zerolog.Nop())
	go hub.Run()

	ts := httptest.NewServer(server.SetupRoutes(hub))
	t.Cleanup(func() {
		ts.Close()
		_ = hub.Shutdown(2 * time.Second)
	})
	return &TestServer{Hub: hub, Server: ts}
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// DoJSON sends body as JSON with the given method and decodes the response
// into out.
func DoJSON(t *testing.T, method, url string, body, out any) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to encode body: %v", err)
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
	return resp
}

// Register creates a session through POST /api/register and fails the test
// on any error.
func Register(t *testing.T, baseURL, name string) protocol.RegisterResponse {
	t.Helper()

	var raw map[string]string
	DoJSON(t, http.MethodPost, baseURL+"/api/register", protocol.RegisterRequest{Name: name}, &raw)
	if reason, failed := raw["error"]; failed {
		t.Fatalf("Register %q failed: %s", name, reason)
	}
	return protocol.RegisterResponse{SessionID: raw["sessionId"], ServerVersion: raw["serverVersion"]}
}

// WebSocketURL converts the HTTP base URL into the stream URL of a session.
func WebSocketURL(baseURL, sessionID string) string {
	return "ws" + strings.TrimPrefix(baseURL, "http") + "/ws/" + sessionID
}

// Dialer returns the websocket dialer used by the helpers.
func Dialer() *websocket.Dialer {
	return &websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
}

// ConnectWebSocket creates a WebSocket connection to the specified URL.
// The HTTP response is returned so callers can inspect rejected upgrades.
func ConnectWebSocket(url string) (*websocket.Conn, *http.Response, error) {
	dialer := Dialer()
	conn, resp, err := dialer.Dial(url, nil)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// Join registers name and opens its stream.
func Join(t *testing.T, ts *TestServer, name string) (protocol.RegisterResponse, *websocket.Conn) {
	t.Helper()

	reg := Register(t, ts.URL(), name)
	conn, _, err := ConnectWebSocket(WebSocketURL(ts.URL(), reg.SessionID))
	if err != nil {
		t.Fatalf("Failed to connect %s: %v", name, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	WaitFor(t, func() bool {
		info, ok := ts.Hub.Sessions().Get(reg.SessionID)
		return ok && info.Bound
	})
	return reg, conn
}

// SendCommand writes a command envelope as a text frame.
func SendCommand(t *testing.T, conn *websocket.Conn, cmd protocol.ClientCommand) {
	t.Helper()

	raw, err := cmd.Encode()
	if err != nil {
		t.Fatalf("Failed to encode command: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("Failed to send command: %v", err)
	}
}

// ReadMessage reads one server frame, waiting at most timeout.
func ReadMessage(conn *websocket.Conn, timeout time.Duration) (protocol.ServerMessage, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return protocol.ServerMessage{}, err
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return protocol.ServerMessage{}, err
	}
	return protocol.DecodeMessage(raw)
}

// MustRead reads one server frame and fails the test if none arrives.
func MustRead(t *testing.T, conn *websocket.Conn) protocol.ServerMessage {
	t.Helper()

	msg, err := ReadMessage(conn, 2*time.Second)
	if err != nil {
		t.Fatalf("Failed to read server message: %v", err)
	}
	return msg
}

// ExpectNoMessage fails the test if a frame arrives within timeout. A read
// that times out leaves the connection unusable, so call it last.
func ExpectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	msg, err := ReadMessage(conn, timeout)
	if err == nil {
		t.Fatalf("Expected no message, got %+v", msg)
	}
}

// WaitFor polls cond until it holds or two seconds pass.
func WaitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
