// Package ids defines the opaque handles shared across the matchmaking,
// registry, session, and dispatch packages so none of them need to import
// each other just to name "whoever owns this player".
package ids

import "github.com/google/uuid"

// SessionID is the opaque handle spec.md §3 calls owner_session: a process-
// local identifier for one connected lobby server. It outlives the
// transport-level peer address (a reconnect gets a new SessionID even if
// the peer address is reused).
type SessionID uuid.UUID

// NewSessionID mints a fresh session handle, the way the teacher's
// matchmaker.generateRoomID mints room ids: crypto-random bytes, no
// coordination required across goroutines.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

func (s SessionID) String() string {
	return uuid.UUID(s).String()
}

// Zero reports whether this is the unset session handle.
func (s SessionID) Zero() bool {
	return s == SessionID{}
}
