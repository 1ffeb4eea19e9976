// Package client implements the terminal chat client.
//
// Three loops share one State: the input loop reading terminal lines, the
// stream writer sending commands and heartbeats, and the stream reader
// applying server messages. Each touches the state in short critical
// sections and never holds the lock across network I/O, so a decision
// taken on a value read from the state may be stale by the time the
// server sees it.
package client
