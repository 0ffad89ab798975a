package game

import "sort"

// placementPoints is fixed: 1st=5, 2nd=3, 3rd=2, 4th=1, 5th=0.
// Placements past the table score nothing.
var placementPoints = [5]int{5, 3, 2, 1, 0}

func placementPointsFor(placement int) int {
	if placement < 1 || placement > len(placementPoints) {
		return 0
	}
	return placementPoints[placement-1]
}

// Standing is one row of a ranked result: a player, their points and
// their Olympic placement.
type Standing struct {
	PlayerID  string `json:"playerId"`
	Points    int    `json:"points"`
	Placement int    `json:"placement"`
}

// rankStandings sorts descending by points with player id as the stable
// secondary key, then assigns Olympic standard competition placements:
// equal totals share one placement, and the next strictly lower total
// gets (count of strictly greater totals) + 1.
func rankStandings(points map[string]int) []Standing {
	out := make([]Standing, 0, len(points))
	for pid, pts := range points {
		out = append(out, Standing{PlayerID: pid, Points: pts})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	for i := range out {
		if i > 0 && out[i].Points == out[i-1].Points {
			out[i].Placement = out[i-1].Placement
		} else {
			out[i].Placement = i + 1
		}
	}
	return out
}

// applyVerdictLocked converts the verdict into per-round deltas, exactly
// once per round. Round placements come from the all-judges Borda totals
// so the fully revealed aggregator state and the scored result always
// agree. st.mu held.
func (m *Manager) applyVerdictLocked(st *state, r *Round) {
	if r.Scored || r.Verdict == nil {
		return
	}

	standings := rankStandings(bordaTotals(r.Verdict.PerJudge, st.session.Judges, len(st.session.Judges)))
	placementOf := make(map[string]int, len(standings))
	for _, s := range standings {
		placementOf[s.PlayerID] = s.Placement
	}

	// top answers are those authored by placement-1 players; any voter
	// outside placement 1 who picked one is a judge whisperer
	topAnswers := make(map[string]bool)
	for pid, a := range st.answers[r.ID] {
		if placementOf[pid] == 1 {
			topAnswers[a.ID] = true
		}
	}
	var whisperers []string
	for voterID, v := range st.votes[r.ID] {
		if placementOf[voterID] == 1 {
			continue
		}
		if topAnswers[v.VotedAnswerID] {
			whisperers = append(whisperers, voterID)
		}
	}
	sort.Strings(whisperers)

	scores := make(map[string]int)
	for _, s := range standings {
		// a player who left mid-round forfeits the delta
		if st.players[s.PlayerID] == nil {
			continue
		}
		pts := placementPointsFor(s.Placement)
		if s.PlayerID == r.BestGuesserID {
			pts++
		}
		if s.PlayerID == r.Verdict.BonusWinnerID {
			pts++
		}
		scores[s.PlayerID] = pts
	}
	for _, w := range whisperers {
		if _, ok := scores[w]; ok {
			scores[w]++
		}
	}

	r.Scores = scores
	r.Verdict.Whisperers = whisperers
	r.Scored = true
	recomputeTotals(st)
}

// recomputeTotals rebuilds every cumulative total as the sum of persisted
// per-round deltas. Totals are never incremented in place, so retries and
// partial failures cannot drift them. st.mu held.
func recomputeTotals(st *state) {
	for _, p := range st.players {
		p.Total = 0
	}
	for _, r := range st.rounds {
		if !r.Scored {
			continue
		}
		for pid, pts := range r.Scores {
			if p := st.players[pid]; p != nil {
				p.Total += pts
			}
		}
	}
}

// visibleTotals sums per-round deltas over completed rounds only. The
// current round's delta exists as soon as the verdict is scored, but it
// stays out of anything client-facing until the staged reveal finishes.
// st.mu held.
func visibleTotals(st *state) map[string]int {
	totals := make(map[string]int, len(st.players))
	for pid := range st.players {
		totals[pid] = 0
	}
	for _, r := range st.rounds {
		if r.Status != RoundComplete || !r.Scored {
			continue
		}
		for pid, pts := range r.Scores {
			if _, ok := totals[pid]; ok {
				totals[pid] += pts
			}
		}
	}
	return totals
}

// cumulativeStandings ranks the current roster by cumulative total with
// the same Olympic tie rule as round results. st.mu held.
func cumulativeStandings(st *state) []Standing {
	recomputeTotals(st)
	points := make(map[string]int, len(st.players))
	for pid, p := range st.players {
		points[pid] = p.Total
	}
	return rankStandings(points)
}
