package server

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

func newRegistries() (*Sessions, *Rooms) {
	sessions := NewSessions()
	return sessions, NewRooms(sessions)
}

// requireConsistent checks that session.Room == r exactly when the session
// is a member of r, and that every room contains its owner.
func requireConsistent(t *testing.T, sessions *Sessions, rooms *Rooms) {
	t.Helper()

	rooms.rlock()
	defer rooms.runlock()

	for id, session := range sessions.sessions {
		if session.Room == "" {
			continue
		}
		room, ok := rooms.rooms[session.Room]
		require.Truef(t, ok, "session %s points at missing room %s", id, session.Room)
		require.Containsf(t, room.members, id, "session %s not a member of its room", id)
	}
	for roomID, room := range rooms.rooms {
		require.Contains(t, room.members, room.OwnerID, "owner missing from room %s", roomID)
		for member := range room.members {
			session, ok := sessions.sessions[member]
			require.Truef(t, ok, "room %s lists unknown member %s", roomID, member)
			require.Equal(t, roomID, session.Room)
		}
		require.Contains(t, rooms.byTitle[room.Title], roomID)
	}
}

func TestRoomsCreate(t *testing.T) {
	req := require.New(t)
	sessions, rooms := newRegistries()
	alice := sessions.Add("alice")

	room, err := rooms.Create(alice.ID, "general")
	req.NoError(err)
	req.Len(room.ID, 32)
	req.Equal("general", room.Title)
	req.Equal(alice.ID, room.OwnerID)
	req.Equal([]string{alice.ID}, room.Members)

	info, _ := sessions.Get(alice.ID)
	req.Equal(room.ID, info.Room)
	requireConsistent(t, sessions, rooms)

	_, err = rooms.Create(alice.ID, "second")
	req.ErrorIs(err, ErrAlreadyInChat)

	_, err = rooms.Create(alice.ID, "no")
	req.ErrorIs(err, protocol.ErrInvalidTitle)

	_, err = rooms.Create("ghost", "general")
	req.ErrorIs(err, ErrSessionNotFound)
	req.Equal(1, rooms.Len())
}

func TestRoomsCreateInvite(t *testing.T) {
	req := require.New(t)
	sessions, rooms := newRegistries()
	alice := sessions.Add("alice")
	bob := sessions.Add("bob")

	_, err := rooms.CreateInvite(alice.ID)
	req.ErrorIs(err, ErrNotInChat)

	room, err := rooms.Create(alice.ID, "general")
	req.NoError(err)

	token, err := rooms.CreateInvite(alice.ID)
	req.NoError(err)
	req.Len(token, 32)
	req.NotEqual(room.ID, token)

	_, err = rooms.Join(bob.ID, "general", token)
	req.NoError(err)

	_, err = rooms.CreateInvite(bob.ID)
	req.ErrorIs(err, ErrNotAdmin)

	snapshot, _ := rooms.Get(room.ID)
	req.Empty(snapshot.Invites)
}

func TestRoomsJoinConsumesInviteOnce(t *testing.T) {
	req := require.New(t)
	sessions, rooms := newRegistries()
	alice := sessions.Add("alice")
	bob := sessions.Add("bob")
	carol := sessions.Add("carol")

	room, err := rooms.Create(alice.ID, "general")
	req.NoError(err)
	token, err := rooms.CreateInvite(alice.ID)
	req.NoError(err)

	res, err := rooms.Join(bob.ID, "general", token)
	req.NoError(err)
	req.Equal(room.ID, res.Room.ID)
	req.Equal("bob", res.Name)
	req.Equal([]string{alice.ID}, res.Notify)
	req.ElementsMatch([]string{alice.ID, bob.ID}, res.Room.Members)

	_, err = rooms.Join(carol.ID, "general", token)
	req.ErrorIs(err, ErrInvalidInvite)

	info, _ := sessions.Get(carol.ID)
	req.Empty(info.Room)
	requireConsistent(t, sessions, rooms)
}

func TestRoomsJoinFailures(t *testing.T) {
	req := require.New(t)
	sessions, rooms := newRegistries()
	alice := sessions.Add("alice")
	bob := sessions.Add("bob")

	_, err := rooms.Join(bob.ID, "general", "whatever")
	req.ErrorIs(err, ErrChatNotFound)
	req.Contains(err.Error(), "general")

	_, err = rooms.Create(alice.ID, "general")
	req.NoError(err)

	_, err = rooms.Join(bob.ID, "general", "forged")
	req.ErrorIs(err, ErrInvalidInvite)

	token, err := rooms.CreateInvite(alice.ID)
	req.NoError(err)
	_, err = rooms.Join(alice.ID, "general", token)
	req.ErrorIs(err, ErrAlreadyInChat)

	_, err = rooms.Join("ghost", "general", token)
	req.ErrorIs(err, ErrSessionNotFound)

	// The token survives failed attempts.
	_, err = rooms.Join(bob.ID, "general", token)
	req.NoError(err)
}

func TestRoomsConcurrentJoinWithOneInvite(t *testing.T) {
	sessions, rooms := newRegistries()
	owner := sessions.Add("owner")
	_, err := rooms.Create(owner.ID, "general")
	require.NoError(t, err)
	token, err := rooms.CreateInvite(owner.ID)
	require.NoError(t, err)

	const contenders = 32
	ids := make([]string, contenders)
	for i := range ids {
		ids[i] = sessions.Add("guest").ID
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		rejected int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := rooms.Join(id, "general", token)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if assert.ErrorIs(t, err, ErrInvalidInvite) {
				rejected++
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, contenders-1, rejected)
	requireConsistent(t, sessions, rooms)
}

func TestRoomsDuplicateTitlesResolveByInvite(t *testing.T) {
	req := require.New(t)
	sessions, rooms := newRegistries()
	first := sessions.Add("first")
	second := sessions.Add("second")
	guest := sessions.Add("guest")

	_, err := rooms.Create(first.ID, "general")
	req.NoError(err)
	room2, err := rooms.Create(second.ID, "general")
	req.NoError(err)

	token, err := rooms.CreateInvite(second.ID)
	req.NoError(err)

	res, err := rooms.Join(guest.ID, "general", token)
	req.NoError(err)
	req.Equal(room2.ID, res.Room.ID)
	requireConsistent(t, sessions, rooms)
}

func TestRoomsLeaveMember(t *testing.T) {
	req := require.New(t)
	sessions, rooms := newRegistries()
	alice := sessions.Add("alice")
	bob := sessions.Add("bob")

	room, err := rooms.Create(alice.ID, "general")
	req.NoError(err)
	token, _ := rooms.CreateInvite(alice.ID)
	_, err = rooms.Join(bob.ID, "general", token)
	req.NoError(err)

	res, err := rooms.Leave(bob.ID)
	req.NoError(err)
	req.True(res.Left)
	req.False(res.Disbanded)
	req.Equal("bob", res.Name)
	req.Equal([]string{alice.ID}, res.Remaining)

	snapshot, ok := rooms.Get(room.ID)
	req.True(ok)
	req.Equal([]string{alice.ID}, snapshot.Members)
	requireConsistent(t, sessions, rooms)

	res, err = rooms.Leave(bob.ID)
	req.NoError(err)
	req.False(res.Left)
}

func TestRoomsOwnerLeaveDisbands(t *testing.T) {
	req := require.New(t)
	sessions, rooms := newRegistries()
	owner := sessions.Add("owner")
	m1 := sessions.Add("m1m")
	m2 := sessions.Add("m2m")

	room, err := rooms.Create(owner.ID, "general")
	req.NoError(err)
	for _, member := range []SessionInfo{m1, m2} {
		token, err := rooms.CreateInvite(owner.ID)
		req.NoError(err)
		_, err = rooms.Join(member.ID, "general", token)
		req.NoError(err)
	}
	_, err = rooms.CreateInvite(owner.ID)
	req.NoError(err)

	res, err := rooms.Leave(owner.ID)
	req.NoError(err)
	req.True(res.Disbanded)
	req.Equal(room.ID, res.RoomID)
	req.ElementsMatch([]string{m1.ID, m2.ID}, res.Remaining)
	req.False(room.CreatedAt.IsZero())
	req.Equal(room.CreatedAt, res.RoomOpenedAt)

	_, ok := rooms.Get(room.ID)
	req.False(ok)
	req.Zero(rooms.Len())
	req.Empty(rooms.byTitle)
	for _, id := range []string{owner.ID, m1.ID, m2.ID} {
		info, _ := sessions.Get(id)
		req.Empty(info.Room)
	}
	requireConsistent(t, sessions, rooms)

	_, err = rooms.Join(m1.ID, "general", "anything")
	req.ErrorIs(err, ErrChatNotFound)
}

func TestRoomsEvict(t *testing.T) {
	req := require.New(t)
	sessions, rooms := newRegistries()
	alice := sessions.Add("alice")
	bob := sessions.Add("bob")
	outbox := NewOutbox(4)
	req.NoError(sessions.Bind(bob.ID, outbox))

	_, err := rooms.Create(alice.ID, "general")
	req.NoError(err)
	token, _ := rooms.CreateInvite(alice.ID)
	_, err = rooms.Join(bob.ID, "general", token)
	req.NoError(err)

	res, got, err := rooms.Evict(bob.ID)
	req.NoError(err)
	req.True(res.Left)
	req.Same(outbox, got)
	req.Equal(bob.RegisteredAt, res.RegisteredAt)
	req.False(res.RegisteredAt.IsZero())
	_, ok := sessions.Get(bob.ID)
	req.False(ok)
	requireConsistent(t, sessions, rooms)

	_, _, err = rooms.Evict(bob.ID)
	req.ErrorIs(err, ErrSessionNotFound)
}

func TestRoomsMembers(t *testing.T) {
	req := require.New(t)
	sessions, rooms := newRegistries()
	alice := sessions.Add("alice")
	bob := sessions.Add("bob")

	_, err := rooms.Members(alice.ID)
	req.ErrorIs(err, ErrNotInChat)

	_, err = rooms.Create(alice.ID, "general")
	req.NoError(err)
	token, _ := rooms.CreateInvite(alice.ID)
	_, err = rooms.Join(bob.ID, "general", token)
	req.NoError(err)
	pending, _ := rooms.CreateInvite(alice.ID)

	list, err := rooms.Members(bob.ID)
	req.NoError(err)
	req.Equal("general", list.Title)
	req.Equal([]string{"alice", "bob"}, list.Names)
	req.Equal([]string{pending}, list.Invites)
}

func TestRoomsInvariantUnderConcurrentChurn(t *testing.T) {
	sessions, rooms := newRegistries()

	const owners = 8
	var wg sync.WaitGroup
	for i := 0; i < owners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			owner := sessions.Add("owner")
			guests := []string{sessions.Add("guest").ID, sessions.Add("guest").ID}

			for round := 0; round < 20; round++ {
				if _, err := rooms.Create(owner.ID, "lobby"); err != nil {
					t.Errorf("create: %v", err)
					return
				}
				for _, guest := range guests {
					token, err := rooms.CreateInvite(owner.ID)
					if err != nil {
						t.Errorf("invite: %v", err)
						return
					}
					_, _ = rooms.Join(guest, "lobby", token)
				}
				_, _ = rooms.Leave(guests[round%2])
				_, _ = rooms.Leave(owner.ID)
			}
			_, _, _ = rooms.Evict(guests[0])
		}()
	}
	wg.Wait()

	requireConsistent(t, sessions, rooms)
	assert.Zero(t, rooms.Len())
}
