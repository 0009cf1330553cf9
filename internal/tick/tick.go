// Package tick drives the matching loop: once per second it visits every
// arena, runs the selector, solves an exact-sum subset when oversubscribed,
// spawns a detached match dispatch, and widens every remaining window.
//
// This lives in its own package (rather than inside matchmaking) because it
// depends on both matchmaking and registry, and registry already depends on
// matchmaking -- folding the loop into matchmaking would create a cycle.
// The ticker-driven select loop is lifted from the teacher's Room.gameLoop
// in internal/game/room.go.
package tick

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/EaseCation/rank-matcher/internal/matchmaking"
	"github.com/EaseCation/rank-matcher/internal/registry"
)

const interval = time.Second

// Dispatcher is the subset of *dispatch.Dispatcher the loop needs; kept as
// an interface here so tick does not import dispatch (dispatch imports
// registry and matchmaking but has no need of tick, so this avoids adding
// an edge back the other way too).
type Dispatcher interface {
	Dispatch(arena string, winners []matchmaking.Candidate)
}

// Loop is the process-wide tick driver (spec.md §4.5).
type Loop struct {
	reg        *registry.Registry
	dispatcher Dispatcher
	log        zerolog.Logger
}

func New(reg *registry.Registry, dispatcher Dispatcher, log zerolog.Logger) *Loop {
	return &Loop{reg: reg, dispatcher: dispatcher, log: log}
}

// Run blocks, ticking once per second until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.tickOnce()
		}
	}
}

// tickOnce runs one pass over every arena. Iteration order across arenas is
// unspecified (spec.md §4.5); each arena is processed independently.
func (l *Loop) tickOnce() {
	for _, arena := range l.reg.Arenas() {
		l.tickArena(arena)
	}
}

func (l *Loop) tickArena(arena *matchmaking.Arena) {
	candidates := arena.RankMatch()
	target := arena.SeatsPerMatch()

	var total int64
	for _, c := range candidates {
		total += c.Length
	}

	var winners []matchmaking.Candidate
	switch {
	case total < target:
		// no match this tick
	case total == target:
		winners = candidates
	default:
		idxs, ok := matchmaking.SolveExactSum(candidates, target)
		if !ok {
			l.log.Info().Str("arena", arena.Name()).Int64("seats_over_target", total-target).Msg("no exact-sum subset this tick")
			break
		}
		winners = make([]matchmaking.Candidate, len(idxs))
		for i, idx := range idxs {
			winners[i] = candidates[idx]
		}
	}

	if len(winners) > 0 {
		ids := make([]string, len(winners))
		for i, w := range winners {
			ids[i] = w.PlayerID
		}
		arena.RemoveMany(ids)
		for _, id := range ids {
			l.reg.RemoveSender(id)
		}
		go l.dispatcher.Dispatch(arena.Name(), winners)
	}

	arena.RankUpdate()
}
