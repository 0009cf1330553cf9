package tick

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EaseCation/rank-matcher/internal/ids"
	"github.com/EaseCation/rank-matcher/internal/matchmaking"
	"github.com/EaseCation/rank-matcher/internal/registry"
)

type recordingDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
}

type dispatchCall struct {
	arena   string
	winners []matchmaking.Candidate
}

func (d *recordingDispatcher) Dispatch(arena string, winners []matchmaking.Candidate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatchCall{arena: arena, winners: winners})
}

func (d *recordingDispatcher) snapshot() []dispatchCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatchCall(nil), d.calls...)
}

func TestTickArenaExactMatchDispatchesAndRemovesWinners(t *testing.T) {
	reg := registry.New()
	arena, err := reg.CreateArena("ranked", 2)
	require.NoError(t, err)

	arena.Upsert("p1", matchmaking.PlayerEntry{RankMin: 100, RankMax: 100, Length: 1})
	arena.Upsert("p2", matchmaking.PlayerEntry{RankMin: 100, RankMax: 100, Length: 1})
	reg.SetSender("p1", ids.NewSessionID())
	reg.SetSender("p2", ids.NewSessionID())

	d := &recordingDispatcher{}
	l := New(reg, d, zerolog.Nop())
	l.tickArena(arena)

	// Dispatch runs on a detached goroutine; wait for it to be recorded.
	require.Eventually(t, func() bool { return len(d.snapshot()) == 1 }, time.Second, time.Millisecond)
	calls := d.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "ranked", calls[0].arena)
	assert.Len(t, calls[0].winners, 2)

	assert.Equal(t, 0, arena.PlayerCount())
	_, found := reg.Sender("p1")
	assert.False(t, found)
}

func TestTickArenaUndersubscribedDoesNotDispatch(t *testing.T) {
	reg := registry.New()
	arena, err := reg.CreateArena("ranked", 5)
	require.NoError(t, err)
	arena.Upsert("p1", matchmaking.PlayerEntry{RankMin: 100, RankMax: 100, Length: 1})

	d := &recordingDispatcher{}
	l := New(reg, d, zerolog.Nop())
	l.tickArena(arena)

	assert.Empty(t, d.snapshot())
	assert.Equal(t, 1, arena.PlayerCount())
}

func TestTickArenaOversubscribedRunsSolverAndDispatchesSubset(t *testing.T) {
	reg := registry.New()
	arena, err := reg.CreateArena("ranked", 4)
	require.NoError(t, err)

	// All four overlap at rank 100, combined length 3+2+2+1 = 8 > target 4.
	arena.Upsert("p1", matchmaking.PlayerEntry{RankMin: 100, RankMax: 100, Length: 3})
	arena.Upsert("p2", matchmaking.PlayerEntry{RankMin: 100, RankMax: 100, Length: 2})
	arena.Upsert("p3", matchmaking.PlayerEntry{RankMin: 100, RankMax: 100, Length: 2})
	arena.Upsert("p4", matchmaking.PlayerEntry{RankMin: 100, RankMax: 100, Length: 1})
	for _, pid := range []string{"p1", "p2", "p3", "p4"} {
		reg.SetSender(pid, ids.NewSessionID())
	}

	d := &recordingDispatcher{}
	l := New(reg, d, zerolog.Nop())
	l.tickArena(arena)

	// Dispatch runs on a detached goroutine; wait for it to be recorded.
	require.Eventually(t, func() bool { return len(d.snapshot()) == 1 }, time.Second, time.Millisecond)
	calls := d.snapshot()
	require.Len(t, calls, 1)
	winnerIDs := map[string]bool{}
	for _, w := range calls[0].winners {
		winnerIDs[w.PlayerID] = true
	}
	assert.True(t, winnerIDs["p1"] && winnerIDs["p4"])
	assert.False(t, winnerIDs["p2"] || winnerIDs["p3"])

	assert.Equal(t, 2, arena.PlayerCount())
}

func TestTickArenaInfeasibleSolverSkipsButStillWidens(t *testing.T) {
	reg := registry.New()
	arena, err := reg.CreateArena("ranked", 3)
	require.NoError(t, err)
	arena.Upsert("p1", matchmaking.PlayerEntry{RankMin: 100, RankMax: 100, Length: 2, Speed: 5})
	arena.Upsert("p2", matchmaking.PlayerEntry{RankMin: 100, RankMax: 100, Length: 2, Speed: 5})

	d := &recordingDispatcher{}
	l := New(reg, d, zerolog.Nop())
	l.tickArena(arena)

	assert.Empty(t, d.snapshot())
	assert.Equal(t, 2, arena.PlayerCount())

	e, _ := arena.Remove("p1")
	assert.Equal(t, int64(95), e.RankMin)
	assert.Equal(t, int64(105), e.RankMax)
}
