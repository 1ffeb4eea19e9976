// Package server implements the chat server: the session and room
// registries, the protocol router and broadcaster, the per-connection
// websocket pumps, and the HTTP surface that registers sessions and
// upgrades their streams.
//
// Lock order is fixed: the room registry lock is always taken before the
// session registry lock. Nothing sends on the network while holding either.
package server
