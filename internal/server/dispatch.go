package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tyrowin/roomchat/internal/metrics"
	"github.com/Tyrowin/roomchat/internal/protocol"
)

// ProtocolRouter decodes inbound frames and applies them to the registries.
// Validation failures are answered with a system message to the sender;
// malformed frames are logged and dropped. Neither ends the connection.
type ProtocolRouter struct {
	sessions *Sessions
	rooms    *Rooms
	out      *Broadcaster
	log      zerolog.Logger
}

// NewProtocolRouter wires a router to the registries and broadcaster.
func NewProtocolRouter(sessions *Sessions, rooms *Rooms, out *Broadcaster, log zerolog.Logger) *ProtocolRouter {
	return &ProtocolRouter{sessions: sessions, rooms: rooms, out: out, log: log}
}

// Dispatch handles one raw frame received on sessionID's stream.
func (p *ProtocolRouter) Dispatch(sessionID string, raw []byte) {
	if protocol.IsHeartbeat(raw) {
		return
	}

	cmd, err := protocol.DecodeCommand(raw)
	if err != nil {
		metrics.CommandsTotal.WithLabelValues("invalid", "malformed").Inc()
		p.log.Debug().Err(err).Str("session", sessionID).Msg("dropping undecodable frame")
		return
	}

	err = p.Handle(sessionID, cmd)
	switch {
	case err == nil:
		metrics.CommandsTotal.WithLabelValues(string(cmd.Type), "ok").Inc()
	case errors.Is(err, ErrSessionNotFound):
		metrics.CommandsTotal.WithLabelValues(string(cmd.Type), "rejected").Inc()
		p.log.Warn().Str("session", sessionID).Str("command", string(cmd.Type)).Msg("command from unknown session")
	case cmd.Type == protocol.CmdMessage && errors.Is(err, ErrNotInChat):
		metrics.CommandsTotal.WithLabelValues(string(cmd.Type), "rejected").Inc()
		p.log.Debug().Str("session", sessionID).Msg("message outside a chat ignored")
	default:
		metrics.CommandsTotal.WithLabelValues(string(cmd.Type), "rejected").Inc()
		p.log.Debug().Err(err).Str("session", sessionID).Str("command", string(cmd.Type)).Msg("command rejected")
		p.out.ToSession(sessionID, protocol.SystemMessage("%s", reason(err)))
	}
}

// Handle applies a decoded command. The returned error is the user-facing
// failure, if any.
func (p *ProtocolRouter) Handle(sessionID string, cmd protocol.ClientCommand) error {
	switch cmd.Type {
	case protocol.CmdMessage:
		return p.sendMessage(sessionID, cmd.Text)
	case protocol.CmdChatCreate:
		return p.createRoom(sessionID, cmd.Title)
	case protocol.CmdChatJoin:
		return p.joinRoom(sessionID, cmd.Title, cmd.Invite)
	case protocol.CmdChatLeave:
		return p.leaveRoom(sessionID)
	case protocol.CmdChatCreateInvite:
		return p.createInvite(sessionID)
	case protocol.CmdChatListMembers:
		return p.listMembers(sessionID)
	case protocol.CmdChatKick, protocol.CmdFileUpload, protocol.CmdSetAdmin:
		return fmt.Errorf("'%s' is %w", cmd.Type, ErrNotSupported)
	default:
		return fmt.Errorf("%w: %q", protocol.ErrUnknownCommand, cmd.Type)
	}
}

func (p *ProtocolRouter) sendMessage(sessionID, text string) error {
	sender, ok := p.sessions.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	if sender.Room == "" {
		return ErrNotInChat
	}
	p.out.ToRoom(sender.Room, protocol.ChatMessage(sender.ID, sender.Name, text))
	return nil
}

func (p *ProtocolRouter) createRoom(sessionID, title string) error {
	room, err := p.rooms.Create(sessionID, title)
	if err != nil {
		return err
	}
	p.log.Info().Str("session", sessionID).Str("room", room.ID).Str("title", room.Title).Msg("chat created")
	p.out.ToSession(sessionID, protocol.RoomCreated(room.ID, room.Title))
	return nil
}

func (p *ProtocolRouter) createInvite(sessionID string) error {
	token, err := p.rooms.CreateInvite(sessionID)
	if err != nil {
		return err
	}
	p.out.ToSession(sessionID, protocol.SystemMessage("Created invite: %s", token))
	return nil
}

func (p *ProtocolRouter) joinRoom(sessionID, title, invite string) error {
	res, err := p.rooms.Join(sessionID, title, invite)
	if err != nil {
		return err
	}
	p.log.Info().Str("session", sessionID).Str("room", res.Room.ID).Msg("chat joined")
	p.out.Send(protocol.SystemMessage("%s joined chat", res.Name), res.Notify)
	p.out.ToSession(sessionID, protocol.RoomJoined(res.Room.ID, res.Room.Title))
	return nil
}

func (p *ProtocolRouter) leaveRoom(sessionID string) error {
	res, err := p.rooms.Leave(sessionID)
	if err != nil {
		return err
	}
	p.announceLeave(res)
	return nil
}

func (p *ProtocolRouter) listMembers(sessionID string) error {
	list, err := p.rooms.Members(sessionID)
	if err != nil {
		return err
	}
	p.out.ToSession(sessionID, protocol.SystemMessage("%s", formatMembers(list)))
	return nil
}

// announceLeave tells the remaining members about a departure and, when
// the owner left, that the room is gone.
func (p *ProtocolRouter) announceLeave(res LeaveResult) {
	if !res.Left {
		return
	}
	p.out.Send(protocol.SystemMessage("%s left chat", res.Name), res.Remaining)
	if !res.Disbanded {
		p.log.Info().Str("session", res.SessionID).Str("room", res.RoomID).Msg("chat left")
		return
	}
	p.log.Info().
		Str("session", res.SessionID).
		Str("room", res.RoomID).
		Int("members", len(res.Remaining)).
		Dur("lifetime", time.Since(res.RoomOpenedAt)).
		Msg("chat disbanded")
	p.out.Send(protocol.SystemMessage("%s disbanded chat", res.Name), res.Remaining)
	p.out.Send(protocol.RoomClosed(res.RoomID, res.Title), res.Remaining)
}

func formatMembers(list MemberList) string {
	var b strings.Builder
	fmt.Fprintf(&b, "members of %s:\n", list.Title)
	for _, name := range list.Names {
		fmt.Fprintf(&b, "    %s\n", name)
	}
	b.WriteString("open invites:\n")
	for _, invite := range list.Invites {
		fmt.Fprintf(&b, "    %s\n", invite)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func reason(err error) string {
	if errors.Is(err, protocol.ErrInvalidName) || errors.Is(err, protocol.ErrInvalidTitle) {
		return protocol.Reason(err)
	}
	return err.Error()
}
