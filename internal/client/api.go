//go:generate go run go.uber.org/mock/mockgen -source=api.go -destination=../mocks/mock_api.go -package=mocks

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// ServerAPI is the request/response surface of a chat server.
type ServerAPI interface {
	Register(ctx context.Context, baseURL, name string) (protocol.RegisterResponse, error)
	Unregister(ctx context.Context, baseURL, sessionID string) error
	Version(ctx context.Context, baseURL string) (string, error)
}

// ServerError carries a failure reason reported by the server.
type ServerError struct {
	Reason string
}

func (e *ServerError) Error() string {
	return e.Reason
}

// HTTPAPI talks to the server's /api endpoints.
type HTTPAPI struct {
	client *http.Client
}

// NewHTTPAPI returns an API client whose requests give up after timeout.
func NewHTTPAPI(timeout time.Duration) *HTTPAPI {
	return &HTTPAPI{client: &http.Client{Timeout: timeout}}
}

func (a *HTTPAPI) Register(ctx context.Context, baseURL, name string) (protocol.RegisterResponse, error) {
	var resp struct {
		protocol.RegisterResponse
		protocol.ErrorResponse
	}
	if err := a.do(ctx, http.MethodPost, baseURL+"/api/register", protocol.RegisterRequest{Name: name}, &resp); err != nil {
		return protocol.RegisterResponse{}, err
	}
	if resp.Error != "" {
		return protocol.RegisterResponse{}, &ServerError{Reason: resp.Error}
	}
	return resp.RegisterResponse, nil
}

func (a *HTTPAPI) Unregister(ctx context.Context, baseURL, sessionID string) error {
	var resp protocol.ErrorResponse
	if err := a.do(ctx, http.MethodDelete, baseURL+"/api/register", protocol.UnregisterRequest{SessionID: sessionID}, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return &ServerError{Reason: resp.Error}
	}
	return nil
}

func (a *HTTPAPI) Version(ctx context.Context, baseURL string) (string, error) {
	var resp protocol.VersionResponse
	if err := a.do(ctx, http.MethodGet, baseURL+"/api/version", nil, &resp); err != nil {
		return "", err
	}
	return resp.Version, nil
}

func (a *HTTPAPI) do(ctx context.Context, method, url string, body, out any) error {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, &payload)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// BaseURL turns what the user typed after /c into an HTTP base URL. A bare
// host:port gets the http scheme.
func BaseURL(server string) string {
	server = strings.TrimRight(strings.TrimSpace(server), "/")
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	return server
}

// StreamURL is the websocket URL of a session's stream.
func StreamURL(baseURL, sessionID string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		baseURL = "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		baseURL = "ws://" + strings.TrimPrefix(baseURL, "http://")
	}
	return baseURL + "/ws/" + sessionID
}
