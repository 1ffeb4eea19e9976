// Package server coordinates session registration, stream binding, and
// connection cleanup for the chat system via the Hub type.
package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/roomchat/internal/metrics"
	"github.com/Tyrowin/roomchat/internal/protocol"
)

// ErrHubClosed is returned when a stream is attached after shutdown began.
var ErrHubClosed = errors.New("hub is shutting down")

// Hub owns the registries and the live connections. Registration and
// explicit unregistration are synchronous calls; streams are attached
// through the register channel and detached through unregister, both
// served by Run.
type Hub struct {
	cfg         Config
	log         zerolog.Logger
	sessions    *Sessions
	rooms       *Rooms
	broadcaster *Broadcaster
	router      *ProtocolRouter
	origins     *originPolicy
	upgrader    websocket.Upgrader

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a hub with empty registries. Call Run before attaching streams.
func NewHub(cfg Config, log zerolog.Logger) *Hub {
	cfg = sanitizeConfig(cfg)
	ctx, cancel := context.WithCancel(context.Background())

	sessions := NewSessions()
	rooms := NewRooms(sessions)
	broadcaster := NewBroadcaster(sessions, rooms, log)

	h := &Hub{
		cfg:         cfg,
		log:         log,
		sessions:    sessions,
		rooms:       rooms,
		broadcaster: broadcaster,
		router:      NewProtocolRouter(sessions, rooms, broadcaster, log),
		origins:     newOriginPolicy(cfg.AllowedOrigins, log),
		clients:     make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.origins.checkOrigin,
	}
	return h
}

// Sessions exposes the connection registry.
func (h *Hub) Sessions() *Sessions { return h.sessions }

// Rooms exposes the chat registry.
func (h *Hub) Rooms() *Rooms { return h.rooms }

// Register validates the display name and creates a session in the lobby.
func (h *Hub) Register(name string) (protocol.RegisterResponse, error) {
	name = protocol.NormalizeName(name)
	if err := protocol.ValidateName(name); err != nil {
		return protocol.RegisterResponse{}, err
	}

	session := h.sessions.Add(name)
	h.log.Info().Str("session", session.ID).Str("name", name).Msg("session registered")
	return protocol.RegisterResponse{SessionID: session.ID, ServerVersion: Version}, nil
}

// Unregister leaves the session's room, removes the session, and closes its
// stream if one is bound. A second call for the same id returns
// ErrSessionNotFound and has no effect.
func (h *Hub) Unregister(sessionID string) error {
	res, outbox, err := h.rooms.Evict(sessionID)
	if err != nil {
		return err
	}
	h.router.announceLeave(res)
	if outbox != nil {
		outbox.Close()
	}
	h.log.Info().Str("session", sessionID).Dur("age", time.Since(res.RegisteredAt)).Msg("session unregistered")
	return nil
}

// Attach binds a newly upgraded connection to its session and hands it to
// Run, which starts the pumps.
func (h *Hub) Attach(sessionID string, conn *websocket.Conn, addr string) (*Client, error) {
	outbox := NewOutbox(h.cfg.SendBufferSize)
	if err := h.sessions.Bind(sessionID, outbox); err != nil {
		return nil, err
	}

	client := NewClient(conn, h, sessionID, addr, outbox)
	select {
	case h.register <- client:
		return client, nil
	case <-h.ctx.Done():
		_ = h.Unregister(sessionID)
		return nil, ErrHubClosed
	}
}

// Run starts the hub's main event loop. It should be called in a separate
// goroutine and returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn().Msg("received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mutex.Unlock()
			metrics.StreamsActive.Inc()
			client.log.Info().Int("streams", clientCount).Msg("stream bound")

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.detach(client)
		}
	}
}

// detach runs the disconnect cleanup for a stream whose read pump ended.
// It is the same path as an explicit unregister and tolerates losing the
// race against one.
func (h *Hub) detach(client *Client) {
	h.mutex.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	clientCount := len(h.clients)
	h.mutex.Unlock()
	if !ok {
		return
	}
	metrics.StreamsActive.Dec()

	pending := client.outbox.Len()
	if err := h.Unregister(client.SessionID()); err != nil && !errors.Is(err, ErrSessionNotFound) {
		client.log.Error().Err(err).Msg("cleanup after disconnect")
	}
	client.outbox.Close()
	client.log.Info().Int("streams", clientCount).Int("unsent", pending).Msg("stream closed")
}

// shutdownClients gracefully closes all active client connections
func (h *Hub) shutdownClients() {
	h.log.Info().Msg("shutting down all client connections")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		client.outbox.Close()
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				client.log.Warn().Err(err).Msg("closing client connection")
			}
		}
	}

	h.log.Info().Int("count", len(clients)).Msg("closed client connections")
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info().Msg("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info().Msg("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn().Msg("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
