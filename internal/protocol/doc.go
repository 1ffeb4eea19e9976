// Package protocol defines the wire vocabulary shared by the chat server and
// the terminal client: websocket command and event envelopes, the HTTP
// request and response bodies, and the display name and room title policy.
package protocol
