package matchmaking

import "math"

const infeasible = math.MaxInt32

// SolveExactSum implements spec.md §4.4: given candidates with positive
// seat counts and a positive target, finds a subset whose seats sum
// exactly to target, minimizing the number of candidates selected (prefer
// fewer, larger parties). Returns the chosen indices in ascending order
// and true, or (nil, false) if no such subset exists.
//
// This is the textbook 0/1-knapsack-by-count DP spec.md describes:
// dp[i][j] = minimum parties chosen from candidates[0:i] summing to
// exactly j, with a parallel table recording whether candidate i-1 was
// used to reach (i, j).
func SolveExactSum(candidates []Candidate, target int64) ([]int, bool) {
	n := len(candidates)
	t := int(target)
	if t < 0 {
		return nil, false
	}
	if t == 0 {
		return nil, true
	}

	dp := make([][]int32, n+1)
	used := make([][]bool, n+1)
	for i := range dp {
		dp[i] = make([]int32, t+1)
		used[i] = make([]bool, t+1)
		for j := range dp[i] {
			dp[i][j] = infeasible
		}
		dp[i][0] = 0
	}

	for i := 1; i <= n; i++ {
		seats := int(candidates[i-1].Length)
		for j := 0; j <= t; j++ {
			dp[i][j] = dp[i-1][j]
			// On a tie in party count, prefer including this candidate —
			// reproduces spec.md §8 S2's tie-break, which picks {p1,p4}
			// over {p2,p3} (both 2 parties summing to 4).
			if seats <= j && dp[i-1][j-seats] != infeasible && dp[i-1][j-seats]+1 <= dp[i][j] {
				dp[i][j] = dp[i-1][j-seats] + 1
				used[i][j] = true
			}
		}
	}

	if dp[n][t] == infeasible {
		return nil, false
	}

	var chosen []int
	j := t
	for i := n; i > 0; i-- {
		if used[i][j] {
			chosen = append(chosen, i-1)
			j -= int(candidates[i-1].Length)
		}
	}
	// chosen was built back-to-front; present in ascending index order so
	// tie-break among equal-size minima is deterministic (spec.md S2).
	for l, r := 0, len(chosen)-1; l < r; l, r = l+1, r-1 {
		chosen[l], chosen[r] = chosen[r], chosen[l]
	}
	return chosen, true
}
