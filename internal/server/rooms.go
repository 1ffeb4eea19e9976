package server

import (
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/Tyrowin/roomchat/internal/metrics"
	"github.com/Tyrowin/roomchat/internal/protocol"
)

// Room is an open chat. A room is present in the registry exactly while it
// is open; it is deleted when its owner leaves. The owner is a member for
// the room's entire lifetime.
type Room struct {
	ID        string
	Title     string
	OwnerID   string
	CreatedAt time.Time
	members   map[string]struct{}
	invites   map[string]struct{}
}

// RoomInfo is a copy of a room that stays valid after the lock is released.
type RoomInfo struct {
	ID        string
	Title     string
	OwnerID   string
	CreatedAt time.Time
	Members   []string
	Invites   []string
}

func (r *Room) info() RoomInfo {
	members := lo.Keys(r.members)
	invites := lo.Keys(r.invites)
	sort.Strings(members)
	sort.Strings(invites)
	return RoomInfo{ID: r.ID, Title: r.Title, OwnerID: r.OwnerID, CreatedAt: r.CreatedAt, Members: members, Invites: invites}
}

// JoinResult describes a successful join. Notify holds the members present
// before the joiner was added.
type JoinResult struct {
	Room   RoomInfo
	Name   string
	Notify []string
}

// LeaveResult describes the effect of a leave. Left is false when the
// session was not in a room. Remaining lists the members that must be told;
// when Disbanded is set they have already been moved back to the lobby and
// RoomOpenedAt holds the room's creation time. RegisteredAt is only set by
// Evict.
type LeaveResult struct {
	Left         bool
	RoomID       string
	Title        string
	SessionID    string
	Name         string
	Remaining    []string
	Disbanded    bool
	RoomOpenedAt time.Time
	RegisteredAt time.Time
}

// MemberList is the answer to a list-members request.
type MemberList struct {
	Title   string
	Names   []string
	Invites []string
}

// Rooms is the chat registry: open rooms keyed by id, with a title index
// kept in creation order.
//
// Operations that change membership hold r.mu and then the session
// registry's lock, always in that order.
type Rooms struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	byTitle  map[string][]string
	sessions *Sessions
}

// NewRooms creates an empty registry bound to the session registry whose
// currentRoom fields it maintains.
func NewRooms(sessions *Sessions) *Rooms {
	return &Rooms{
		rooms:    make(map[string]*Room),
		byTitle:  make(map[string][]string),
		sessions: sessions,
	}
}

func (r *Rooms) lock() {
	r.mu.Lock()
	r.sessions.mu.Lock()
}

func (r *Rooms) unlock() {
	r.sessions.mu.Unlock()
	r.mu.Unlock()
}

func (r *Rooms) rlock() {
	r.mu.RLock()
	r.sessions.mu.RLock()
}

func (r *Rooms) runlock() {
	r.sessions.mu.RUnlock()
	r.mu.RUnlock()
}

// Create opens a room owned by sessionID and moves the owner into it.
func (r *Rooms) Create(sessionID, title string) (RoomInfo, error) {
	if err := protocol.ValidateTitle(title); err != nil {
		return RoomInfo{}, err
	}

	r.lock()
	defer r.unlock()

	owner, ok := r.sessions.lookupLocked(sessionID)
	if !ok {
		return RoomInfo{}, ErrSessionNotFound
	}
	if owner.Room != "" {
		return RoomInfo{}, ErrAlreadyInChat
	}

	id := newUniqueToken(func(token string) bool {
		_, taken := r.rooms[token]
		return taken
	})
	room := &Room{
		ID:        id,
		Title:     title,
		OwnerID:   sessionID,
		CreatedAt: time.Now(),
		members:   map[string]struct{}{sessionID: {}},
		invites:   make(map[string]struct{}),
	}
	r.rooms[id] = room
	r.byTitle[title] = append(r.byTitle[title], id)
	owner.Room = id
	metrics.RoomsActive.Inc()
	return room.info(), nil
}

// CreateInvite issues a single-use invite token for the owner's room.
func (r *Rooms) CreateInvite(sessionID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions.mu.RLock()
	defer r.sessions.mu.RUnlock()

	session, ok := r.sessions.lookupLocked(sessionID)
	if !ok {
		return "", ErrSessionNotFound
	}
	room, ok := r.rooms[session.Room]
	if !ok {
		return "", ErrNotInChat
	}
	if room.OwnerID != sessionID {
		return "", ErrNotAdmin
	}

	token := newUniqueToken(func(token string) bool {
		_, taken := room.invites[token]
		return taken
	})
	room.invites[token] = struct{}{}
	metrics.InvitesIssued.Inc()
	return token, nil
}

// Join redeems an invite for the room with the given title. The token is
// consumed in the same critical section that inserts the member, so of two
// concurrent joins with one token exactly one succeeds.
//
// Titles are not unique. Rooms sharing a title are searched in creation
// order for the one holding the token.
func (r *Rooms) Join(sessionID, title, invite string) (JoinResult, error) {
	r.lock()
	defer r.unlock()

	session, ok := r.sessions.lookupLocked(sessionID)
	if !ok {
		return JoinResult{}, ErrSessionNotFound
	}
	if session.Room != "" {
		return JoinResult{}, ErrAlreadyInChat
	}

	candidates := r.byTitle[title]
	if len(candidates) == 0 {
		return JoinResult{}, fmt.Errorf("%w: %s", ErrChatNotFound, title)
	}

	var room *Room
	for _, id := range candidates {
		if candidate := r.rooms[id]; candidate != nil {
			if _, ok := candidate.invites[invite]; ok {
				room = candidate
				break
			}
		}
	}
	if room == nil {
		return JoinResult{}, ErrInvalidInvite
	}

	delete(room.invites, invite)
	notify := lo.Keys(room.members)
	room.members[sessionID] = struct{}{}
	session.Room = room.ID

	return JoinResult{Room: room.info(), Name: session.Name, Notify: notify}, nil
}

// Leave removes the session from its room. It is a no-op for sessions in
// the lobby. When the owner leaves the room is disbanded.
func (r *Rooms) Leave(sessionID string) (LeaveResult, error) {
	r.lock()
	defer r.unlock()

	session, ok := r.sessions.lookupLocked(sessionID)
	if !ok {
		return LeaveResult{}, ErrSessionNotFound
	}
	return r.leaveLocked(session), nil
}

// Evict runs the leave procedure and removes the session from the session
// registry in one critical section. It returns the session's outbox, if a
// stream was bound, so the caller can close it once the locks are released.
func (r *Rooms) Evict(sessionID string) (LeaveResult, *Outbox, error) {
	r.lock()
	defer r.unlock()

	session, ok := r.sessions.lookupLocked(sessionID)
	if !ok {
		return LeaveResult{}, nil, ErrSessionNotFound
	}
	res := r.leaveLocked(session)
	res.RegisteredAt = session.RegisteredAt
	r.sessions.removeLocked(sessionID)
	return res, session.outbox, nil
}

// leaveLocked requires both locks held for writing.
func (r *Rooms) leaveLocked(session *Session) LeaveResult {
	if session.Room == "" {
		return LeaveResult{}
	}
	room, ok := r.rooms[session.Room]
	session.Room = ""
	if !ok {
		return LeaveResult{}
	}

	delete(room.members, session.ID)
	res := LeaveResult{
		Left:      true,
		RoomID:    room.ID,
		Title:     room.Title,
		SessionID: session.ID,
		Name:      session.Name,
		Remaining: lo.Keys(room.members),
	}

	if room.OwnerID == session.ID {
		for _, id := range res.Remaining {
			if member, ok := r.sessions.lookupLocked(id); ok {
				member.Room = ""
			}
		}
		r.deleteLocked(room)
		res.Disbanded = true
		res.RoomOpenedAt = room.CreatedAt
	}
	return res
}

func (r *Rooms) deleteLocked(room *Room) {
	delete(r.rooms, room.ID)
	ids := slices.DeleteFunc(r.byTitle[room.Title], func(id string) bool { return id == room.ID })
	if len(ids) == 0 {
		delete(r.byTitle, room.Title)
	} else {
		r.byTitle[room.Title] = ids
	}
	metrics.RoomsActive.Dec()
	metrics.RoomsDisbanded.Inc()
}

// Members lists the display names in the session's room and its open invites.
func (r *Rooms) Members(sessionID string) (MemberList, error) {
	r.rlock()
	defer r.runlock()

	session, ok := r.sessions.lookupLocked(sessionID)
	if !ok {
		return MemberList{}, ErrSessionNotFound
	}
	room, ok := r.rooms[session.Room]
	if !ok {
		return MemberList{}, ErrNotInChat
	}

	names := make([]string, 0, len(room.members))
	for id := range room.members {
		if member, ok := r.sessions.lookupLocked(id); ok {
			names = append(names, member.Name)
		}
	}
	sort.Strings(names)
	invites := lo.Keys(room.invites)
	sort.Strings(invites)
	return MemberList{Title: room.Title, Names: names, Invites: invites}, nil
}

// MemberIDs returns a snapshot of a room's member ids.
func (r *Rooms) MemberIDs(roomID string) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil, false
	}
	return lo.Keys(room.members), true
}

// Get returns a snapshot of the room.
func (r *Rooms) Get(roomID string) (RoomInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return RoomInfo{}, false
	}
	return room.info(), true
}

// Len returns the number of open rooms.
func (r *Rooms) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
