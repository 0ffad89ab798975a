package game

import "sort"

// Snapshot is the full-replacement state pushed to clients after every
// change. Consumers swap it in wholesale; there is no merging protocol.
// Seq is monotonic per session: deliveries may arrive out of order, so a
// consumer only applies a frame whose Seq is higher than its current one.
type Snapshot struct {
	Seq         uint64     `json:"seq"`
	Session     *Session   `json:"session"`
	Players     []*Player  `json:"players"`
	CanStart    bool       `json:"canStart"`
	Round       *RoundView `json:"round,omitempty"`
	Leaderboard []Standing `json:"leaderboard,omitempty"`
}

// RoundView is the client-facing round. Answer authorship stays hidden
// until the reveal, and guesses/votes stay hidden while guessing is
// still open, so a peeking client learns nothing early.
type RoundView struct {
	ID             string          `json:"id"`
	Number         int             `json:"number"`
	Prompt         string          `json:"prompt"`
	BonusCategory  string          `json:"bonusCategory"`
	Status         RoundStatus     `json:"status"`
	AnswersDueAt   string          `json:"answersDueAt,omitempty"`
	GuessingDueAt  string          `json:"guessingDueAt,omitempty"`
	RevealStep     RevealStep      `json:"revealStep,omitempty"`
	RevealedJudges int             `json:"revealedJudges"`
	Deliberating   bool            `json:"deliberating"`
	Answers        []AnswerView    `json:"answers"`
	AnsweredBy     map[string]bool `json:"answeredBy"`
	GuessedBy      map[string]bool `json:"guessedBy,omitempty"`
	Guesses        []*Guess        `json:"guesses,omitempty"`
	Votes          []*Vote         `json:"votes,omitempty"`
	BestGuesserID  string          `json:"bestGuesserId,omitempty"`
	Verdict        *VerdictView    `json:"verdict,omitempty"`
	Standings      []Standing      `json:"standings,omitempty"`
	Scores         map[string]int  `json:"scores,omitempty"`
}

type AnswerView struct {
	ID        string `json:"id"`
	Text      string `json:"text,omitempty"`
	AuthorID  string `json:"authorId,omitempty"`
	Submitted bool   `json:"submitted"`
}

// VerdictView stages the verdict: commentary from the banter step on,
// per-judge rankings only up to the revealed prefix, the overall result
// once every judge is out.
type VerdictView struct {
	Commentary    string              `json:"commentary,omitempty"`
	PerJudge      map[string][]string `json:"perJudge,omitempty"`
	Overall       []string            `json:"overall,omitempty"`
	BonusWinnerID string              `json:"bonusWinnerId,omitempty"`
	Whisperers    []string            `json:"whisperers,omitempty"`
}

// buildSnapshot clones everything it exposes; the caller publishes the
// result outside the session lock. st.mu held.
func buildSnapshot(st *state) *Snapshot {
	snap := &Snapshot{
		Seq:      st.seq,
		Session:  cloneSession(st.session),
		CanStart: st.session.Status == SessionLobby && len(st.players) >= MinPlayers,
	}
	// visible totals cover completed rounds only, so a scored-but-still-
	// revealing round cannot leak its outcome through the leaderboard
	totals := visibleTotals(st)
	for _, pid := range st.order {
		p := clonePlayer(st.players[pid])
		p.Total = totals[p.ID]
		snap.Players = append(snap.Players, p)
	}
	if st.session.Status == SessionActive || st.session.Status == SessionComplete {
		snap.Leaderboard = rankStandings(totals)
	}
	if r := st.currentRound(); r != nil {
		snap.Round = buildRoundView(st, r)
	}
	return snap
}

func buildRoundView(st *state, r *Round) *RoundView {
	rv := &RoundView{
		ID:             r.ID,
		Number:         r.Number,
		Prompt:         r.Prompt,
		BonusCategory:  r.BonusCategory,
		Status:         r.Status,
		RevealStep:     r.RevealStep,
		RevealedJudges: r.RevealedJudges,
		Deliberating:   r.Status == RoundRevealing && r.Verdict == nil,
		AnsweredBy:     make(map[string]bool),
	}
	if !r.AnswersDueAt.IsZero() {
		rv.AnswersDueAt = r.AnswersDueAt.Format(timeFormat)
	}
	if !r.GuessingDueAt.IsZero() {
		rv.GuessingDueAt = r.GuessingDueAt.Format(timeFormat)
	}

	revealed := r.Status == RoundRevealing || r.Status == RoundComplete
	for pid, a := range st.answers[r.ID] {
		rv.AnsweredBy[pid] = a.Submitted
		av := AnswerView{ID: a.ID, Submitted: a.Submitted}
		if r.Status != RoundAnswering {
			av.Text = a.Text
		}
		if revealed {
			av.AuthorID = pid
		}
		rv.Answers = append(rv.Answers, av)
	}
	// sorted by answer id: stable for clients and unlinked to join order
	sort.Slice(rv.Answers, func(i, j int) bool { return rv.Answers[i].ID < rv.Answers[j].ID })

	if r.Status == RoundGuessing {
		rv.GuessedBy = make(map[string]bool)
		for pid := range st.guesses[r.ID] {
			rv.GuessedBy[pid] = true
		}
	}

	if revealed {
		rv.BestGuesserID = r.BestGuesserID
		for _, pid := range st.participants[r.ID] {
			for _, g := range st.guesses[r.ID][pid] {
				gc := *g
				rv.Guesses = append(rv.Guesses, &gc)
			}
			if v := st.votes[r.ID][pid]; v != nil {
				vc := *v
				rv.Votes = append(rv.Votes, &vc)
			}
		}
	}

	if r.Verdict != nil && revealed {
		rv.Verdict = stageVerdict(st, r)
		if r.RevealStep == RevealRankings || r.Status == RoundComplete {
			rv.Standings = RevealStandings(r.Verdict, st.session.Judges, r.RevealedJudges)
		}
	}
	if r.Status == RoundComplete && r.Scored {
		rv.Scores = make(map[string]int, len(r.Scores))
		for pid, pts := range r.Scores {
			rv.Scores[pid] = pts
		}
	}
	return rv
}

func stageVerdict(st *state, r *Round) *VerdictView {
	v := &VerdictView{}
	if r.RevealStep == RevealBanter || r.RevealStep == RevealRankings {
		v.Commentary = r.Verdict.Commentary
	}
	if r.RevealStep == RevealRankings {
		v.PerJudge = make(map[string][]string, r.RevealedJudges)
		for _, judge := range st.session.Judges[:min(r.RevealedJudges, len(st.session.Judges))] {
			v.PerJudge[judge] = append([]string(nil), r.Verdict.PerJudge[judge]...)
		}
		if r.RevealedJudges >= len(st.session.Judges) {
			v.Overall = append([]string(nil), r.Verdict.Overall...)
			v.BonusWinnerID = r.Verdict.BonusWinnerID
			v.Whisperers = append([]string(nil), r.Verdict.Whisperers...)
		}
	}
	return v
}

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// GetSnapshot serves the pull path: the same full snapshot the push side
// broadcasts, for late joiners and reconnecting clients.
func (m *Manager) GetSnapshot(code string) (*Snapshot, error) {
	st, err := m.stateByCode(code)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return buildSnapshot(st), nil
}
