package game

// Borda count: in a ranking of P players, position k (1-indexed) earns
// P-k+1 points from that judge.

// bordaTotals sums Borda points across the first `revealed` judges in
// session order. Recomputing from scratch over the growing prefix keeps
// the staged reveal deterministic: the same verdict always yields the
// same intermediate standings, whenever the host happens to click.
func bordaTotals(perJudge map[string][]string, judgeOrder []string, revealed int) map[string]int {
	totals := make(map[string]int)
	if revealed > len(judgeOrder) {
		revealed = len(judgeOrder)
	}
	for _, judge := range judgeOrder[:revealed] {
		ranking := perJudge[judge]
		p := len(ranking)
		for k, pid := range ranking {
			totals[pid] += p - k
		}
	}
	return totals
}

// RevealStandings is the live standings over the revealed judge prefix,
// placed with the same Olympic tie rule as everything else.
func RevealStandings(v *Verdict, judgeOrder []string, revealed int) []Standing {
	if v == nil || revealed <= 0 {
		return nil
	}
	return rankStandings(bordaTotals(v.PerJudge, judgeOrder, revealed))
}
