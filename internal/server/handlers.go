// Package server exposes HTTP handlers for registration, version lookup,
// health checks, and WebSocket upgrades.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// maxBodySize caps the JSON bodies accepted by the register endpoints.
const maxBodySize = 4 * 1024

// writeJSON sends a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeFailure reports a validation failure. Failures keep status 200 and
// carry the reason in the body.
func writeFailure(w http.ResponseWriter, reason string) {
	writeJSON(w, http.StatusOK, protocol.ErrorResponse{Error: reason})
}

// RegisterHandler creates a session for the display name in the body.
func RegisterHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req protocol.RegisterRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, protocol.ErrorResponse{Error: "invalid JSON body"})
			return
		}

		resp, err := hub.Register(req.Name)
		if err != nil {
			writeFailure(w, reason(err))
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// UnregisterHandler destroys the session named in the body.
func UnregisterHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req protocol.UnregisterRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, protocol.ErrorResponse{Error: "invalid JSON body"})
			return
		}

		if err := hub.Unregister(req.SessionID); err != nil {
			writeFailure(w, reason(err))
			return
		}
		writeJSON(w, http.StatusOK, struct{}{})
	}
}

// VersionHandler reports the server version.
func VersionHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, protocol.VersionResponse{Version: Version})
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Chat server is running!")
}

// WebSocketHandler upgrades GET /ws/{sessionID} to the session's persistent
// stream. Unknown sessions get 404 and already connected ones 409, both
// before the upgrade.
func WebSocketHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")
		session, ok := hub.sessions.Get(sessionID)
		if !ok {
			http.Error(w, ErrSessionNotFound.Error(), http.StatusNotFound)
			return
		}
		if session.Bound {
			http.Error(w, ErrStreamBound.Error(), http.StatusConflict)
			return
		}

		conn, err := hub.upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Warn().Err(err).Str("session", sessionID).Msg("websocket upgrade failed")
			return
		}

		if _, err := hub.Attach(sessionID, conn, r.RemoteAddr); err != nil {
			hub.log.Warn().Err(err).Str("session", sessionID).Msg("binding stream")
			code := websocket.CloseTryAgainLater
			if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrStreamBound) {
				code = websocket.ClosePolicyViolation
			}
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, err.Error()))
			_ = conn.Close()
		}
	}
}
