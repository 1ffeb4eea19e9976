package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// Client drives one terminal session.
type Client struct {
	cfg   Config
	api   ServerAPI
	dial  DialFunc
	state *State
	out   *Printer
}

// New builds a client. A nil dial uses DialStream.
func New(cfg Config, api ServerAPI, dial DialFunc, out *Printer) *Client {
	if dial == nil {
		dial = DialStream
	}
	return &Client{cfg: cfg, api: api, dial: dial, state: NewState(), out: out}
}

// State exposes the shared state blob.
func (c *Client) State() *State {
	return c.state
}

// Run reads lines from in until the user quits, in is exhausted, or ctx is
// cancelled. A live session is unregistered before Run returns.
func (c *Client) Run(ctx context.Context, in io.Reader) error {
	defer c.Shutdown(context.WithoutCancel(ctx))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if c.HandleLine(ctx, line) {
				return nil
			}
		}
	}
}

// Shutdown unregisters from the server if connected.
func (c *Client) Shutdown(ctx context.Context) {
	if c.state.Snapshot().Location != Home {
		c.disconnect(ctx)
	}
}

// HandleLine applies one line of input. It reports whether the user asked
// to exit.
func (c *Client) HandleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	cmd, err := ParseCommand(line)
	if err != nil {
		c.out.Error(err.Error())
		return false
	}
	if cmd.Kind == CmdHelp {
		c.out.Line(helpText)
		return false
	}
	if cmd.Kind == CmdInfo {
		c.info()
		return false
	}

	switch c.state.Snapshot().Location {
	case Home:
		return c.handleHome(ctx, cmd)
	case Lobby:
		c.handleLobby(ctx, cmd)
	case Chat:
		c.handleChat(cmd)
	}
	return false
}

func (c *Client) handleHome(ctx context.Context, cmd Command) bool {
	switch cmd.Kind {
	case CmdQuit:
		return true
	case CmdConnect:
		c.connect(ctx, cmd.Args[0], cmd.Args[1])
	default:
		c.notAvailable(cmd)
	}
	return false
}

func (c *Client) handleLobby(ctx context.Context, cmd Command) {
	switch cmd.Kind {
	case CmdQuit:
		c.disconnect(ctx)
	case CmdCreateChat:
		c.send(protocol.ChatCreate(cmd.Args[0]))
	case CmdJoin:
		c.send(protocol.ChatJoin(cmd.Args[0], cmd.Args[1]))
	default:
		c.notAvailable(cmd)
	}
}

func (c *Client) handleChat(cmd Command) {
	switch cmd.Kind {
	case CmdQuit:
		if c.send(protocol.ChatLeave()) {
			c.out.Notice(fmt.Sprintf("Disconnected from chat %s", c.state.leaveChat()))
		}
	case CmdSendMessage:
		c.send(protocol.SendMessage(cmd.Text))
	case CmdCreateInvite:
		c.send(protocol.ChatCreateInvite())
	case CmdListMembers:
		c.send(protocol.ChatListMembers())
	case CmdKick:
		c.send(protocol.ChatKick(cmd.Args[0]))
	case CmdUpload:
		c.send(protocol.FileUpload(cmd.Args[0]))
	case CmdAdmin:
		c.send(protocol.SetAdmin(cmd.Args[0]))
	default:
		c.notAvailable(cmd)
	}
}

func (c *Client) notAvailable(cmd Command) {
	c.out.Error(fmt.Sprintf("'%s' is not available in this context", cmd.Ident()))
}

func (c *Client) send(cmd protocol.ClientCommand) bool {
	stream := c.state.Stream()
	if stream == nil {
		c.out.Error(ErrStreamClosed.Error())
		return false
	}
	if err := stream.Send(cmd); err != nil {
		c.out.Error(fmt.Sprintf("Unable to send %s: %v", cmd.Type, err))
		return false
	}
	return true
}

func (c *Client) connect(ctx context.Context, server, name string) {
	base := BaseURL(server)

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout())
	resp, err := c.api.Register(reqCtx, base, name)
	cancel()
	if err != nil {
		c.out.Error(fmt.Sprintf("Unable to connect to server %s as %s: %v", server, name, err))
		return
	}
	if resp.ServerVersion == "" {
		reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout())
		if version, err := c.api.Version(reqCtx, base); err == nil {
			resp.ServerVersion = version
		}
		cancel()
	}

	stream, err := c.dial(ctx, StreamURL(base, resp.SessionID), c.cfg.Heartbeat(), c)
	if err != nil {
		c.out.Error(fmt.Sprintf("Unable to connect to server %s as %s: %v", server, name, err))
		reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout())
		_ = c.api.Unregister(reqCtx, base, resp.SessionID)
		cancel()
		return
	}

	c.state.connect(base, name, resp, stream)
	c.out.Notice(fmt.Sprintf("Connected to server %s as %s", server, name))
}

func (c *Client) disconnect(ctx context.Context) {
	prev, stream := c.state.disconnect()
	if stream != nil {
		stream.Close()
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout())
	defer cancel()
	err := c.api.Unregister(reqCtx, prev.Server, prev.SessionID)

	var rejected *ServerError
	switch {
	case err == nil, errors.As(err, &rejected):
		c.out.Notice(fmt.Sprintf("Disconnected from server %s", prev.Server))
	default:
		c.out.Error(fmt.Sprintf("Unable to disconnect from server %s: %v", prev.Server, err))
	}
}

func (c *Client) info() {
	snap := c.state.Snapshot()
	rows := [][]string{
		{"client-version", Version},
		{"location", snap.Location.String()},
	}
	if snap.Location != Home {
		rows = append(rows,
			[]string{"server", snap.Server},
			[]string{"server-version", snap.ServerVersion},
			[]string{"name", snap.Name},
		)
	}
	if snap.Location == Chat {
		rows = append(rows,
			[]string{"chat", snap.RoomTitle},
			[]string{"is-admin", strconv.FormatBool(snap.IsAdmin)},
		)
	}
	c.out.Table(rows)

	switch snap.Location {
	case Home:
		c.out.Line("Connect to a server with '/c <url> <name>'")
	case Lobby:
		c.out.Line("Join a chat with '/j <title> <invite>'\nor create a new one with '/p <title>'")
	}
}

// HandleMessage applies a server message. It runs on the stream's reader
// loop.
func (c *Client) HandleMessage(msg protocol.ServerMessage) {
	switch msg.Type {
	case protocol.MsgChat:
		c.out.Chat(msg.SenderName, msg.Text)
	case protocol.MsgSystem:
		c.out.Notice(msg.Text)
	case protocol.MsgEvent:
		c.handleEvent(msg.Event)
	}
}

func (c *Client) handleEvent(ev *protocol.SystemEvent) {
	if ev == nil {
		return
	}
	switch ev.Kind {
	case protocol.EventChatCreate:
		c.state.enterChat(ev.RoomID, ev.Title, true)
		c.out.Notice(fmt.Sprintf("Created chat %s", ev.Title))
	case protocol.EventChatAccept:
		c.state.enterChat(ev.RoomID, ev.Title, false)
		c.out.Notice(fmt.Sprintf("Joined chat %s", ev.Title))
	case protocol.EventSetAdmin:
		admin := ev.Admin != nil && *ev.Admin
		c.state.setAdmin(admin)
		if admin {
			c.out.Notice("You are now admin of this chat")
		} else {
			c.out.Notice("You are no longer admin of this chat")
		}
	case protocol.EventChatClose:
		if c.state.closeChat(ev.RoomID) {
			c.out.Notice(fmt.Sprintf("Chat %s was closed", ev.Title))
		}
	}
}

// HandleInvalid reports a server frame that could not be decoded.
func (c *Client) HandleInvalid(err error) {
	c.out.Error(fmt.Sprintf("Ignoring unreadable server message: %v", err))
}

// HandleClose resets to Home when the current stream ends without the
// user asking for it.
func (c *Client) HandleClose(stream Sender, err error) {
	prev, ok := c.state.dropStream(stream)
	if !ok {
		return
	}
	if err != nil {
		c.out.Error(fmt.Sprintf("Lost connection to server %s: %v", prev.Server, err))
		return
	}
	c.out.Notice(fmt.Sprintf("Server %s closed the connection", prev.Server))
}
