package client

import (
	"sync"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// Location is where the user currently is: not connected, connected but
// outside any chat, or inside a chat.
type Location int

const (
	Home Location = iota
	Lobby
	Chat
)

func (l Location) String() string {
	switch l {
	case Lobby:
		return "lobby"
	case Chat:
		return "chat"
	default:
		return "home"
	}
}

// Snapshot is a copy of the state taken in one critical section.
type Snapshot struct {
	Location      Location
	Server        string
	Name          string
	SessionID     string
	ServerVersion string
	RoomID        string
	RoomTitle     string
	IsAdmin       bool
}

// State is the blob shared by the input, writer, and reader loops.
type State struct {
	mu     sync.Mutex
	snap   Snapshot
	stream Sender
}

// NewState returns a state at Home.
func NewState() *State {
	return &State{}
}

// Snapshot copies the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Stream returns the live stream, or nil outside a server.
func (s *State) Stream() Sender {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

func (s *State) connect(server, name string, resp protocol.RegisterResponse, stream Sender) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap = Snapshot{
		Location:      Lobby,
		Server:        server,
		Name:          name,
		SessionID:     resp.SessionID,
		ServerVersion: resp.ServerVersion,
	}
	s.stream = stream
}

// disconnect returns to Home and hands back what is needed to tear the
// session down.
func (s *State) disconnect() (Snapshot, Sender) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, stream := s.snap, s.stream
	s.snap = Snapshot{}
	s.stream = nil
	return prev, stream
}

// dropStream is disconnect for a stream that ended on its own. It does
// nothing if stream is no longer the current one.
func (s *State) dropStream(stream Sender) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil || s.stream != stream {
		return Snapshot{}, false
	}
	prev := s.snap
	s.snap = Snapshot{}
	s.stream = nil
	return prev, true
}

func (s *State) enterChat(roomID, title string, admin bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap.Location == Home {
		return
	}
	s.snap.Location = Chat
	s.snap.RoomID = roomID
	s.snap.RoomTitle = title
	s.snap.IsAdmin = admin
}

// leaveChat moves back to the lobby and returns the title of the chat left.
func (s *State) leaveChat() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	title := s.snap.RoomTitle
	if s.snap.Location == Chat {
		s.snap.Location = Lobby
	}
	s.snap.RoomID = ""
	s.snap.RoomTitle = ""
	s.snap.IsAdmin = false
	return title
}

// closeChat is leaveChat for a room the server closed. It reports whether
// the user was still in that room.
func (s *State) closeChat(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap.Location != Chat || s.snap.RoomID != roomID {
		return false
	}
	s.snap.Location = Lobby
	s.snap.RoomID = ""
	s.snap.RoomTitle = ""
	s.snap.IsAdmin = false
	return true
}

func (s *State) setAdmin(admin bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.IsAdmin = admin
}
