package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	handshakeWait  = 10 * time.Second
	sendQueueDepth = 16
)

// ErrStreamClosed is returned by Send once the stream has ended.
var ErrStreamClosed = errors.New("connection to server closed")

// Sender is the outbound side of a session stream.
type Sender interface {
	Send(cmd protocol.ClientCommand) error
	Close()
}

// StreamHandler receives what arrives on a stream. HandleClose is called
// exactly once, after the last HandleMessage. Frames that fail to decode are
// reported to HandleInvalid and the stream stays open.
type StreamHandler interface {
	HandleMessage(msg protocol.ServerMessage)
	HandleInvalid(err error)
	HandleClose(stream Sender, err error)
}

// DialFunc opens a session stream.
type DialFunc func(ctx context.Context, url string, heartbeat time.Duration, h StreamHandler) (Sender, error)

// Stream is a websocket session stream with a writer loop that also sends
// the heartbeat literal, and a reader loop feeding a StreamHandler.
type Stream struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	heartbeat time.Duration
	handler   StreamHandler
}

// DialStream connects to url and starts the stream loops.
func DialStream(ctx context.Context, url string, heartbeat time.Duration, h StreamHandler) (Sender, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeWait}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("opening stream: %s", resp.Status)
		}
		return nil, fmt.Errorf("opening stream: %w", err)
	}

	s := &Stream{
		conn:      conn,
		send:      make(chan []byte, sendQueueDepth),
		done:      make(chan struct{}),
		heartbeat: heartbeat,
		handler:   h,
	}
	go s.writeLoop()
	go s.readLoop()
	return s, nil
}

// Send queues a command. It blocks only while the queue is full.
func (s *Stream) Send(cmd protocol.ClientCommand) error {
	raw, err := cmd.Encode()
	if err != nil {
		return err
	}
	select {
	case <-s.done:
		return ErrStreamClosed
	default:
	}
	select {
	case s.send <- raw:
		return nil
	case <-s.done:
		return ErrStreamClosed
	}
}

// Close ends the stream with a normal closure. It is safe to call more
// than once.
func (s *Stream) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Stream) writeLoop() {
	ticker := time.NewTicker(s.heartbeat)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		case frame := <-s.send:
			if err := s.write(frame); err != nil {
				s.Close()
				return
			}
		case <-ticker.C:
			if err := s.write([]byte(protocol.Heartbeat)); err != nil {
				s.Close()
				return
			}
		}
	}
}

func (s *Stream) write(frame []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *Stream) readLoop() {
	var err error
	defer func() {
		s.Close()
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			err = nil
		}
		s.handler.HandleClose(s, err)
	}()

	for {
		var raw []byte
		_, raw, err = s.conn.ReadMessage()
		if err != nil {
			return
		}
		msg, decodeErr := protocol.DecodeMessage(raw)
		if decodeErr != nil {
			s.handler.HandleInvalid(fmt.Errorf("decoding server frame: %w", decodeErr))
			continue
		}
		s.handler.HandleMessage(msg)
	}
}
