package server

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/Tyrowin/roomchat/internal/metrics"
	"github.com/Tyrowin/roomchat/internal/protocol"
)

// Broadcaster pushes encoded server messages onto session outboxes.
//
// Delivery is snapshot-then-send: room membership is copied under the room
// read lock, then outboxes are resolved under the session read lock. A
// member leaving between the two steps may get one stray notice.
type Broadcaster struct {
	sessions *Sessions
	rooms    *Rooms
	log      zerolog.Logger
}

// NewBroadcaster creates a broadcaster over the two registries.
func NewBroadcaster(sessions *Sessions, rooms *Rooms, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{sessions: sessions, rooms: rooms, log: log}
}

// Send delivers msg to every recipient that is still registered and has a
// bound stream, and returns how many frames were queued. A recipient whose
// outbox is full loses the frame and has its outbox closed, which ends its
// stream; the others are unaffected.
func (b *Broadcaster) Send(msg protocol.ServerMessage, recipients []string) int {
	if len(recipients) == 0 {
		return 0
	}

	frame, err := msg.Encode()
	if err != nil {
		b.log.Error().Err(err).Str("type", string(msg.Type)).Msg("encoding server message")
		return 0
	}

	queued := 0
	var slow []*Outbox

	b.sessions.mu.RLock()
	for _, id := range recipients {
		session, ok := b.sessions.lookupLocked(id)
		if !ok || session.outbox == nil {
			metrics.Deliveries.WithLabelValues("skipped").Inc()
			continue
		}

		switch err := session.outbox.Push(frame); {
		case err == nil:
			queued++
			metrics.Deliveries.WithLabelValues("queued").Inc()
		case errors.Is(err, ErrOutboxFull):
			metrics.Deliveries.WithLabelValues("dropped").Inc()
			b.log.Warn().Str("session", id).Msg("outbox full; dropping frame and closing stream")
			slow = append(slow, session.outbox)
		default:
			metrics.Deliveries.WithLabelValues("skipped").Inc()
		}
	}
	b.sessions.mu.RUnlock()

	for _, outbox := range slow {
		outbox.Close()
	}
	return queued
}

// ToSession delivers msg to a single session.
func (b *Broadcaster) ToSession(sessionID string, msg protocol.ServerMessage) bool {
	return b.Send(msg, []string{sessionID}) == 1
}

// ToRoom delivers msg to every current member of the room.
func (b *Broadcaster) ToRoom(roomID string, msg protocol.ServerMessage) int {
	members, ok := b.rooms.MemberIDs(roomID)
	if !ok {
		return 0
	}
	return b.Send(msg, members)
}
