package server

import (
	"strings"

	"github.com/google/uuid"
)

// newToken returns a random 128-bit identifier in 32 hex characters. Session,
// room and invite ids all come from here.
func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// newUniqueToken draws tokens until taken reports a fresh one.
func newUniqueToken(taken func(string) bool) string {
	for {
		token := newToken()
		if !taken(token) {
			return token
		}
	}
}
