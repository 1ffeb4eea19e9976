package client_test

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/client"
	"github.com/Tyrowin/roomchat/internal/testhelpers"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type terminal struct {
	out    *syncBuffer
	client *client.Client
}

func newTerminal() *terminal {
	out := &syncBuffer{}
	cfg := client.DefaultConfig()
	api := client.NewHTTPAPI(cfg.RequestTimeout())
	return &terminal{out: out, client: client.New(cfg, api, nil, client.NewPrinter(out, false))}
}

func (term *terminal) input(line string) {
	term.client.HandleLine(context.Background(), line)
}

func (term *terminal) waitFor(t *testing.T, text string) {
	t.Helper()
	testhelpers.WaitFor(t, func() bool { return strings.Contains(term.out.String(), text) })
}

var invitePattern = regexp.MustCompile(`Created invite: ([0-9a-f]{32})`)

func TestTerminalChatAgainstServer(t *testing.T) {
	ts := testhelpers.StartServer(t)
	host := strings.TrimPrefix(ts.URL(), "http://")

	alice, bob := newTerminal(), newTerminal()
	t.Cleanup(func() {
		alice.client.Shutdown(context.Background())
		bob.client.Shutdown(context.Background())
	})

	alice.input("/c " + host + " alice")
	alice.waitFor(t, "Connected to server "+host+" as alice")
	bob.input("/c " + ts.URL() + " bob")
	bob.waitFor(t, "Connected to server "+ts.URL()+" as bob")
	testhelpers.WaitFor(t, func() bool { return ts.Hub.Sessions().Len() == 2 })

	alice.input("/p general")
	alice.waitFor(t, "Created chat general")
	testhelpers.WaitFor(t, func() bool { return alice.client.State().Snapshot().Location == client.Chat })

	alice.input("/n")
	alice.waitFor(t, "Created invite: ")
	match := invitePattern.FindStringSubmatch(alice.out.String())
	require.Len(t, match, 2)

	bob.input("/j general " + match[1])
	bob.waitFor(t, "Joined chat general")
	alice.waitFor(t, "bob joined chat")
	testhelpers.WaitFor(t, func() bool { return bob.client.State().Snapshot().Location == client.Chat })

	alice.input("hi")
	bob.waitFor(t, "[alice]: hi")
	alice.waitFor(t, "[alice]: hi")

	bob.input("/k alice")
	bob.waitFor(t, "'chat_kick' is not supported by this server")

	alice.input("/q")
	alice.waitFor(t, "Disconnected from chat general")
	bob.waitFor(t, "alice disbanded chat")
	bob.waitFor(t, "Chat general was closed")
	testhelpers.WaitFor(t, func() bool { return bob.client.State().Snapshot().Location == client.Lobby })

	bob.input("/q")
	bob.waitFor(t, "Disconnected from server")
	require.Equal(t, client.Home, bob.client.State().Snapshot().Location)
	testhelpers.WaitFor(t, func() bool { return ts.Hub.Sessions().Len() == 1 })
}

func TestTerminalRejectedName(t *testing.T) {
	ts := testhelpers.StartServer(t)

	term := newTerminal()
	term.input("/c " + ts.URL() + " no")

	require.Contains(t, term.out.String(), "name should be between 3 and 16 characters long, found 2")
	require.Equal(t, client.Home, term.client.State().Snapshot().Location)
	require.Zero(t, ts.Hub.Sessions().Len())
}

func TestTerminalNoticesServerShutdown(t *testing.T) {
	ts := testhelpers.StartServer(t)

	term := newTerminal()
	term.input("/c " + ts.URL() + " alice")
	term.waitFor(t, "Connected to server")

	require.NoError(t, ts.Hub.Shutdown(2*time.Second))

	testhelpers.WaitFor(t, func() bool { return term.client.State().Snapshot().Location == client.Home })
}
