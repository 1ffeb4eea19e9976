package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Heartbeat is the bare keepalive text exchanged outside the envelope format.
const Heartbeat = "ping"

var (
	// ErrMalformedCommand is returned when a frame is not a valid JSON envelope.
	ErrMalformedCommand = errors.New("malformed command")
	// ErrUnknownCommand is returned when the envelope type is not part of the vocabulary.
	ErrUnknownCommand = errors.New("unknown command")
)

// CommandType tags a client to server envelope.
type CommandType string

const (
	CmdMessage          CommandType = "message"
	CmdChatCreate       CommandType = "chat_create"
	CmdChatJoin         CommandType = "chat_join"
	CmdChatLeave        CommandType = "chat_leave"
	CmdChatCreateInvite CommandType = "chat_create_invite"
	CmdChatListMembers  CommandType = "chat_list_members"
	CmdChatKick         CommandType = "chat_kick"
	CmdFileUpload       CommandType = "file_upload"
	CmdSetAdmin         CommandType = "set_admin"
)

// ClientCommand is the JSON envelope a client sends over its stream.
// Only the fields relevant to Type are populated.
type ClientCommand struct {
	Type   CommandType `json:"type"`
	Text   string      `json:"text,omitempty"`
	Title  string      `json:"title,omitempty"`
	Invite string      `json:"invite,omitempty"`
	Name   string      `json:"name,omitempty"`
	Path   string      `json:"path,omitempty"`
}

func SendMessage(text string) ClientCommand {
	return ClientCommand{Type: CmdMessage, Text: text}
}

func ChatCreate(title string) ClientCommand {
	return ClientCommand{Type: CmdChatCreate, Title: title}
}

func ChatJoin(title, invite string) ClientCommand {
	return ClientCommand{Type: CmdChatJoin, Title: title, Invite: invite}
}

func ChatLeave() ClientCommand {
	return ClientCommand{Type: CmdChatLeave}
}

func ChatCreateInvite() ClientCommand {
	return ClientCommand{Type: CmdChatCreateInvite}
}

func ChatListMembers() ClientCommand {
	return ClientCommand{Type: CmdChatListMembers}
}

func ChatKick(name string) ClientCommand {
	return ClientCommand{Type: CmdChatKick, Name: name}
}

func FileUpload(path string) ClientCommand {
	return ClientCommand{Type: CmdFileUpload, Path: path}
}

func SetAdmin(name string) ClientCommand {
	return ClientCommand{Type: CmdSetAdmin, Name: name}
}

// IsHeartbeat reports whether a raw frame is the keepalive literal.
func IsHeartbeat(raw []byte) bool {
	return strings.TrimSpace(string(raw)) == Heartbeat
}

// DecodeCommand parses a raw frame into a ClientCommand and checks that the
// fields required by its type are present.
func DecodeCommand(raw []byte) (ClientCommand, error) {
	var cmd ClientCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return ClientCommand{}, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}

	switch cmd.Type {
	case CmdMessage, CmdChatLeave, CmdChatCreateInvite, CmdChatListMembers:
		return cmd, nil
	case CmdChatCreate:
		if cmd.Title == "" {
			return ClientCommand{}, fmt.Errorf("%w: %s requires a title", ErrMalformedCommand, cmd.Type)
		}
	case CmdChatJoin:
		if cmd.Title == "" || cmd.Invite == "" {
			return ClientCommand{}, fmt.Errorf("%w: %s requires a title and an invite", ErrMalformedCommand, cmd.Type)
		}
	case CmdChatKick, CmdSetAdmin:
		if cmd.Name == "" {
			return ClientCommand{}, fmt.Errorf("%w: %s requires a name", ErrMalformedCommand, cmd.Type)
		}
	case CmdFileUpload:
		if cmd.Path == "" {
			return ClientCommand{}, fmt.Errorf("%w: %s requires a path", ErrMalformedCommand, cmd.Type)
		}
	case "":
		return ClientCommand{}, fmt.Errorf("%w: missing type", ErrMalformedCommand)
	default:
		return ClientCommand{}, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
	return cmd, nil
}

// Encode marshals the command into a text frame payload.
func (c ClientCommand) Encode() ([]byte, error) {
	return json.Marshal(c)
}
