package server

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOutbox(t *testing.T) {
	req := require.New(t)
	outbox := NewOutbox(2)

	req.NoError(outbox.Push([]byte("a")))
	req.NoError(outbox.Push([]byte("b")))
	req.ErrorIs(outbox.Push([]byte("c")), ErrOutboxFull)
	req.Equal(2, outbox.Len())

	outbox.Close()
	outbox.Close()
	req.True(outbox.Closed())
	req.ErrorIs(outbox.Push([]byte("d")), ErrOutboxClosed)

	var drained []string
	for frame := range outbox.C() {
		drained = append(drained, string(frame))
	}
	req.Equal([]string{"a", "b"}, drained)
}
