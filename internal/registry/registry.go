// Package registry holds the three process-wide indices spec.md §3
// describes: arenas (name -> pool), senders (player_id -> owning session),
// and peers (session -> outgoing queue handle). Each index is internally
// synchronized and every operation is point-atomic; no composite operation
// spans more than one map atomically (spec.md §5, §9).
//
// This plays the role the teacher's Matchmaker (internal/matchmaker) plays
// for its rooms map: a small mutex-guarded map with Get/Put/Remove/Stats,
// generalized here to three maps instead of one.
package registry

import (
	"sync"

	"github.com/EaseCation/rank-matcher/internal/ids"
	"github.com/EaseCation/rank-matcher/internal/matchmaking"
)

// ArenaEntry pairs an arena with the seat target it was created with, per
// spec.md §3's arenas index shape (arena_name -> (seats_per_match, Arena)).
type ArenaEntry struct {
	SeatsPerMatch int64
	Arena         *matchmaking.Arena
}

// Outgoing is the per-session outbound frame queue. It is implemented by
// the session package; registry only needs to enqueue onto it, mirroring
// the teacher's ClientConnection.Send indirection via the PlayerConnection
// interface in internal/game/player.go.
type Outgoing interface {
	Enqueue(frame []byte) error
}

// Registry is the process-wide collection of indices. One instance lives
// for the process lifetime (spec.md §3: "All indices are process-wide;
// lifetime = process lifetime").
type Registry struct {
	arenasMu sync.RWMutex
	arenas   map[string]*ArenaEntry

	sendersMu sync.RWMutex
	senders   map[string]ids.SessionID // player_id -> owner_session

	peersMu sync.RWMutex
	peers   map[ids.SessionID]Outgoing
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		arenas:  make(map[string]*ArenaEntry),
		senders: make(map[string]ids.SessionID),
		peers:   make(map[ids.SessionID]Outgoing),
	}
}

// --- arenas index ---

// CreateArena creates the arena if absent and returns it; if an arena by
// this name already exists, it is returned unchanged (spec.md §4.6:
// AddArena is idempotent). seats is only honored on first creation.
func (r *Registry) CreateArena(name string, seats int64) (*matchmaking.Arena, error) {
	r.arenasMu.Lock()
	defer r.arenasMu.Unlock()
	if e, ok := r.arenas[name]; ok {
		return e.Arena, nil
	}
	a, err := matchmaking.NewArena(name, seats)
	if err != nil {
		return nil, err
	}
	r.arenas[name] = &ArenaEntry{SeatsPerMatch: seats, Arena: a}
	return a, nil
}

// Arena looks up an arena by name.
func (r *Registry) Arena(name string) (*matchmaking.Arena, bool) {
	r.arenasMu.RLock()
	defer r.arenasMu.RUnlock()
	e, ok := r.arenas[name]
	if !ok {
		return nil, false
	}
	return e.Arena, true
}

// RemoveArena deletes an arena and everything in it (spec.md §4.6:
// RemoveArena discards the players within). The caller is responsible for
// also clearing any senders entries pointing at the removed players; the
// session's RemoveArena handler does this before calling here.
func (r *Registry) RemoveArena(name string) {
	r.arenasMu.Lock()
	defer r.arenasMu.Unlock()
	delete(r.arenas, name)
}

// Arenas returns a snapshot slice of all arenas, for the tick loop and
// feedback timer to range over. Iteration order across arenas is
// unspecified (spec.md §4.5, §4.8).
func (r *Registry) Arenas() []*matchmaking.Arena {
	r.arenasMu.RLock()
	defer r.arenasMu.RUnlock()
	out := make([]*matchmaking.Arena, 0, len(r.arenas))
	for _, e := range r.arenas {
		out = append(out, e.Arena)
	}
	return out
}

// --- senders index ---

// SetSender records player_id -> owner_session (called on AddPlayer).
func (r *Registry) SetSender(playerID string, session ids.SessionID) {
	r.sendersMu.Lock()
	defer r.sendersMu.Unlock()
	r.senders[playerID] = session
}

// RemoveSender deletes a senders entry (called on RemovePlayer, session
// cleanup, and post-match).
func (r *Registry) RemoveSender(playerID string) {
	r.sendersMu.Lock()
	defer r.sendersMu.Unlock()
	delete(r.senders, playerID)
}

// Sender looks up the owning session for a player id.
func (r *Registry) Sender(playerID string) (ids.SessionID, bool) {
	r.sendersMu.RLock()
	defer r.sendersMu.RUnlock()
	s, ok := r.senders[playerID]
	return s, ok
}

// SendersOwnedBy returns every player id currently attributed to session.
// Used for session-close cleanup (spec.md §4.6) — a full scan, acceptable
// because cleanup is a rare, per-connection event, not a hot path.
func (r *Registry) SendersOwnedBy(session ids.SessionID) []string {
	r.sendersMu.RLock()
	defer r.sendersMu.RUnlock()
	var out []string
	for pid, s := range r.senders {
		if s == session {
			out = append(out, pid)
		}
	}
	return out
}

// --- peers index ---

// AddPeer registers a session's outgoing queue handle.
func (r *Registry) AddPeer(session ids.SessionID, out Outgoing) {
	r.peersMu.Lock()
	defer r.peersMu.Unlock()
	r.peers[session] = out
}

// RemovePeer removes a session from the peers index.
func (r *Registry) RemovePeer(session ids.SessionID) {
	r.peersMu.Lock()
	defer r.peersMu.Unlock()
	delete(r.peers, session)
}

// Peer looks up a session's outgoing queue handle.
func (r *Registry) Peer(session ids.SessionID) (Outgoing, bool) {
	r.peersMu.RLock()
	defer r.peersMu.RUnlock()
	o, ok := r.peers[session]
	return o, ok
}
