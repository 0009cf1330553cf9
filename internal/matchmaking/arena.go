// Package matchmaking implements the per-arena rank-window pool: the
// sliding-window selector (rank_match), the per-player coverage report
// (player_states), and window expansion (rank_update) from spec.md §4.1–§4.3.
//
// The locking shape mirrors the teacher's Room: a sync.RWMutex guards the
// players map, write operations (Upsert/Remove/RemoveMany/RankUpdate) take
// the write lock, and read operations snapshot the map under a read lock
// before doing any unlocked work — exactly the "minimize lock time" comment
// in room.go's updatePhysics.
package matchmaking

import (
	"errors"
	"math"
	"sync"

	"github.com/EaseCation/rank-matcher/internal/ids"
)

// ErrZeroSeats is returned by NewArena when seatsPerMatch is not positive;
// spec.md §3 forbids an arena with seats_per_match = 0 from ever existing.
var ErrZeroSeats = errors.New("matchmaking: seats_per_match must be > 0")

// PlayerEntry is one participant's rank window (spec.md §3).
type PlayerEntry struct {
	RankMin int64
	RankMax int64
	Length  int64
	Speed   int64
	Owner   ids.SessionID
}

// Candidate is one (player_id, length) pair, the selector's output shape.
type Candidate struct {
	PlayerID string
	Length   int64
}

// Arena is one named matchmaking pool.
type Arena struct {
	mu            sync.RWMutex
	name          string
	seatsPerMatch int64
	players       map[string]PlayerEntry
	order         []string // insertion order, for deterministic "pool order" iteration
}

// NewArena creates an arena. seatsPerMatch must be strictly positive.
func NewArena(name string, seatsPerMatch int64) (*Arena, error) {
	if seatsPerMatch <= 0 {
		return nil, ErrZeroSeats
	}
	return &Arena{
		name:          name,
		seatsPerMatch: seatsPerMatch,
		players:       make(map[string]PlayerEntry),
	}, nil
}

func (a *Arena) Name() string          { return a.name }
func (a *Arena) SeatsPerMatch() int64  { return a.seatsPerMatch }

// Upsert inserts or atomically replaces a player entry (spec.md §3: "each
// player_id is unique within one arena; re-inserting replaces the prior
// entry atomically"). A fresh insert is appended to pool order; replacing
// an existing entry keeps its original position.
func (a *Arena) Upsert(playerID string, entry PlayerEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.players[playerID]; !exists {
		a.order = append(a.order, playerID)
	}
	a.players[playerID] = entry
}

// Remove deletes a player entry, reporting whether it was present.
func (a *Arena) Remove(playerID string) (PlayerEntry, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.players[playerID]
	if ok {
		delete(a.players, playerID)
		a.removeFromOrder(playerID)
	}
	return e, ok
}

// RemoveMany deletes every listed player id, used after a match and after
// session cleanup (spec.md §4.5 step 6, §4.6 disconnect cleanup).
func (a *Arena) RemoveMany(playerIDs []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range playerIDs {
		if _, ok := a.players[id]; ok {
			delete(a.players, id)
			a.removeFromOrder(id)
		}
	}
}

// removeFromOrder drops playerID from the order slice. Caller must hold the
// write lock. O(n), acceptable: removal is no hotter than the mutation it
// accompanies.
func (a *Arena) removeFromOrder(playerID string) {
	for i, id := range a.order {
		if id == playerID {
			a.order = append(a.order[:i], a.order[i+1:]...)
			return
		}
	}
}

// PlayerCount reports the number of players currently registered.
func (a *Arena) PlayerCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.players)
}

// snapshot copies the players map and its pool order under a read lock so
// the sweep algorithms below never run while a concurrent mutation could
// tear them (spec.md §9 "Snapshot for sweep").
func (a *Arena) snapshot() (map[string]PlayerEntry, []string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	cp := make(map[string]PlayerEntry, len(a.players))
	for k, v := range a.players {
		cp[k] = v
	}
	order := append([]string(nil), a.order...)
	return cp, order
}

// bounds returns the minimum rank_min and maximum rank_max across a
// snapshot, and whether the snapshot was non-empty.
func bounds(players map[string]PlayerEntry) (lo, hi int64, ok bool) {
	lo = math.MaxInt64
	hi = math.MinInt64
	for _, p := range players {
		if p.RankMin < lo {
			lo = p.RankMin
		}
		if p.RankMax > hi {
			hi = p.RankMax
		}
		ok = true
	}
	return lo, hi, ok
}

// RankMatch implements spec.md §4.1: the sweep-line selector. It returns
// the players whose window covers the rank point with maximum total
// weight, breaking ties toward the smallest such point. The result is
// ordered by pool (insertion) order, since the subset solver's own
// tie-break (spec.md §4.4, §8 S2) is defined in terms of candidate index
// order.
func (a *Arena) RankMatch() []Candidate {
	players, order := a.snapshot()
	if len(players) == 0 {
		return nil
	}
	lo, hi, _ := bounds(players)

	cnt := make([]int64, hi-lo+2)
	for _, p := range players {
		cnt[p.RankMin-lo] += p.Length
		cnt[p.RankMax-lo+1] -= p.Length
	}

	maxCnt := cnt[0]
	maxIdx := 0
	for i := 1; i < len(cnt); i++ {
		cnt[i] += cnt[i-1]
		if cnt[i] > maxCnt {
			maxCnt = cnt[i]
			maxIdx = i
		}
	}
	target := lo + int64(maxIdx)

	var out []Candidate
	for _, id := range order {
		p := players[id]
		if p.RankMin <= target && target <= p.RankMax {
			out = append(out, Candidate{PlayerID: id, Length: p.Length})
		}
	}
	return out
}

// PlayerStates implements spec.md §4.2: per-player maximum coverage
// observed at any rank point the player's window touches. Every player
// present in the arena appears in the result, defaulting to 0.
func (a *Arena) PlayerStates() map[string]int64 {
	players, _ := a.snapshot()
	result := make(map[string]int64, len(players))
	for id := range players {
		result[id] = 0
	}
	if len(players) == 0 {
		return result
	}
	lo, hi, _ := bounds(players)

	width := hi - lo + 2
	cnt := make([]int64, width)
	enters := make(map[int64][]string)
	leaves := make(map[int64][]string)
	for id, p := range players {
		cnt[p.RankMin-lo] += p.Length
		cnt[p.RankMax-lo+1] -= p.Length
		enters[p.RankMin-lo] = append(enters[p.RankMin-lo], id)
		leaves[p.RankMax-lo+1] = append(leaves[p.RankMax-lo+1], id)
	}

	var running int64
	active := make(map[string]struct{})
	for i := int64(0); i < int64(width); i++ {
		running += cnt[i]
		cnt[i] = running

		for _, id := range enters[i] {
			active[id] = struct{}{}
		}
		for id := range active {
			if cnt[i] > result[id] {
				result[id] = cnt[i]
			}
		}
		for _, id := range leaves[i] {
			delete(active, id)
		}
	}
	return result
}

func saturatingSub(x, speed int64) int64 {
	if speed >= x {
		return 0
	}
	return x - speed
}

func saturatingAdd(x, speed int64) int64 {
	if speed > math.MaxInt64-x {
		return math.MaxInt64
	}
	return x + speed
}

// RankUpdate implements spec.md §4.3: widen every player's window by its
// speed, saturating at 0 and math.MaxInt64 rather than wrapping.
func (a *Arena) RankUpdate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, p := range a.players {
		p.RankMin = saturatingSub(p.RankMin, p.Speed)
		p.RankMax = saturatingAdd(p.RankMax, p.Speed)
		a.players[id] = p
	}
}
