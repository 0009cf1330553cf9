package matchmaking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumLengths(candidates []Candidate, idxs []int) int64 {
	var total int64
	for _, i := range idxs {
		total += candidates[i].Length
	}
	return total
}

// S2 — oversubscribed, solver picks exact sum, preferring fewer parties,
// tie-broken toward {p1,p4} over {p2,p3}.
func TestSolveExactSumPrefersFewerPartiesTieBreak(t *testing.T) {
	candidates := []Candidate{
		{PlayerID: "p1", Length: 3},
		{PlayerID: "p2", Length: 2},
		{PlayerID: "p3", Length: 2},
		{PlayerID: "p4", Length: 1},
	}
	idxs, ok := SolveExactSum(candidates, 4)
	require.True(t, ok)
	require.Len(t, idxs, 2)
	got := map[string]bool{}
	for _, i := range idxs {
		got[candidates[i].PlayerID] = true
	}
	assert.True(t, got["p1"] && got["p4"])
	assert.Equal(t, int64(4), sumLengths(candidates, idxs))
}

// S3 — oversubscribed, infeasible: two length-2 candidates can never sum
// to an odd target.
func TestSolveExactSumInfeasible(t *testing.T) {
	candidates := []Candidate{
		{PlayerID: "p1", Length: 2},
		{PlayerID: "p2", Length: 2},
	}
	idxs, ok := SolveExactSum(candidates, 3)
	assert.False(t, ok)
	assert.Nil(t, idxs)
}

func TestSolveExactSumSingleCandidateExactMatch(t *testing.T) {
	candidates := []Candidate{{PlayerID: "p1", Length: 4}}
	idxs, ok := SolveExactSum(candidates, 4)
	require.True(t, ok)
	assert.Equal(t, []int{0}, idxs)
}

func TestSolveExactSumMinimizesPartyCount(t *testing.T) {
	// Target 6 can be reached by {6} (1 party) or {1,2,3} (3 parties); the
	// minimum is the single length-6 entry.
	candidates := []Candidate{
		{PlayerID: "a", Length: 1},
		{PlayerID: "b", Length: 2},
		{PlayerID: "c", Length: 3},
		{PlayerID: "d", Length: 6},
	}
	idxs, ok := SolveExactSum(candidates, 6)
	require.True(t, ok)
	require.Len(t, idxs, 1)
	assert.Equal(t, "d", candidates[idxs[0]].PlayerID)
}

func TestSolveExactSumAllSeatsSummedEqualsTarget(t *testing.T) {
	candidates := []Candidate{
		{PlayerID: "p1", Length: 5},
		{PlayerID: "p2", Length: 3},
		{PlayerID: "p3", Length: 2},
	}
	idxs, ok := SolveExactSum(candidates, 10)
	require.True(t, ok)
	assert.Equal(t, int64(10), sumLengths(candidates, idxs))
}
