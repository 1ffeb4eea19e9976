package protocol

import (
	"encoding/json"
	"fmt"
)

// MessageType tags a server to client envelope.
type MessageType string

const (
	MsgChat   MessageType = "message"
	MsgSystem MessageType = "system_message"
	MsgEvent  MessageType = "system_event"
)

// EventKind identifies a state change pushed inside a system_event envelope.
type EventKind string

const (
	EventChatCreate EventKind = "chat_create"
	EventChatAccept EventKind = "chat_accept"
	EventSetAdmin   EventKind = "set_admin"
	EventChatClose  EventKind = "chat_close"
)

// SystemEvent carries room lifecycle changes addressed to a single session.
type SystemEvent struct {
	Kind   EventKind `json:"kind"`
	RoomID string    `json:"roomId,omitempty"`
	Title  string    `json:"title,omitempty"`
	Admin  *bool     `json:"admin,omitempty"`
}

// ServerMessage is the JSON envelope the server pushes to a session.
type ServerMessage struct {
	Type       MessageType  `json:"type"`
	SenderID   string       `json:"senderId,omitempty"`
	SenderName string       `json:"senderName,omitempty"`
	Text       string       `json:"text,omitempty"`
	Event      *SystemEvent `json:"event,omitempty"`
}

// ChatMessage is a room message tagged with its sender.
func ChatMessage(senderID, senderName, text string) ServerMessage {
	return ServerMessage{Type: MsgChat, SenderID: senderID, SenderName: senderName, Text: text}
}

// SystemMessage is an informational line such as a join notice.
func SystemMessage(format string, args ...any) ServerMessage {
	return ServerMessage{Type: MsgSystem, Text: fmt.Sprintf(format, args...)}
}

func RoomCreated(roomID, title string) ServerMessage {
	return ServerMessage{Type: MsgEvent, Event: &SystemEvent{Kind: EventChatCreate, RoomID: roomID, Title: title}}
}

func RoomJoined(roomID, title string) ServerMessage {
	return ServerMessage{Type: MsgEvent, Event: &SystemEvent{Kind: EventChatAccept, RoomID: roomID, Title: title}}
}

func RoomClosed(roomID, title string) ServerMessage {
	return ServerMessage{Type: MsgEvent, Event: &SystemEvent{Kind: EventChatClose, RoomID: roomID, Title: title}}
}

// AdminStatusChanged is part of the vocabulary; the server does not transfer
// ownership yet, so nothing emits it.
func AdminStatusChanged(admin bool) ServerMessage {
	return ServerMessage{Type: MsgEvent, Event: &SystemEvent{Kind: EventSetAdmin, Admin: &admin}}
}

// Encode marshals the message into a text frame payload.
func (m ServerMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage parses a server frame.
func DecodeMessage(raw []byte) (ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ServerMessage{}, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	if msg.Type == MsgEvent && msg.Event == nil {
		return ServerMessage{}, fmt.Errorf("%w: system_event without event", ErrMalformedCommand)
	}
	return msg, nil
}
