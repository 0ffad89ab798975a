package game

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	judgeAttempts = 3
	judgeTimeout  = 30 * time.Second
	judgeBackoff  = 2 * time.Second
)

// startRoundLocked creates round n: a fresh prompt, the bonus category
// for the slot, a 60s answering window and one empty answer per player.
// st.mu held.
func (m *Manager) startRoundLocked(st *state, n int) *Round {
	prompt := m.pool.Pick(st.session.Category, st.usedPrompts)
	st.usedPrompts[prompt.ID] = true

	now := m.clock.Now().UTC()
	r := &Round{
		ID:            uuid.NewString(),
		SessionID:     st.session.ID,
		Number:        n,
		Prompt:        prompt.Text,
		BonusCategory: bonusCategoryFor(n),
		Status:        RoundAnswering,
		AnswersDueAt:  now.Add(AnsweringWindow),
	}
	st.rounds = append(st.rounds, r)
	st.session.CurrentRound = n

	roster := append([]string(nil), st.order...)
	st.participants[r.ID] = roster
	st.answers[r.ID] = make(map[string]*Answer, len(roster))
	st.guesses[r.ID] = make(map[string][]*Guess)
	st.votes[r.ID] = make(map[string]*Vote)
	for _, pid := range roster {
		st.answers[r.ID][pid] = &Answer{ID: uuid.NewString(), RoundID: r.ID, PlayerID: pid}
	}

	m.sched.schedule(timerKey{roundID: r.ID, phase: RoundAnswering}, AnsweringWindow, func() {
		m.handleAnsweringDeadline(st.session.Code, r.ID)
	})

	log.Info().Str("code", st.session.Code).Int("round", n).Str("bonus", r.BonusCategory).Msg("round started")
	return r
}

// SubmitAnswer upserts the caller's answer for the current round. Safe to
// retry: the same player always lands on the same answer row, latest text
// and timestamp win.
func (m *Manager) SubmitAnswer(code, token, text string) error {
	st, err := m.stateByCode(code)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	p, err := st.playerByToken(token)
	if err != nil {
		return err
	}
	r := st.currentRound()
	if r == nil || r.Status != RoundAnswering {
		return ErrInvalidTransition
	}
	a := st.answers[r.ID][p.ID]
	if a == nil {
		return ErrRoundNotFound
	}
	a.Text = text
	a.Submitted = true
	a.SubmittedAt = m.clock.Now().UTC()
	st.touch(m.clock.Now())
	m.publish(st)
	return nil
}

// AdvanceToGuessing is host-only and requires every present player to
// have answered, or the answering deadline to have passed.
func (m *Manager) AdvanceToGuessing(code, token string) error {
	st, err := m.stateByCode(code)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if _, err := st.requireHost(token); err != nil {
		return err
	}
	r := st.currentRound()
	if r == nil {
		return ErrRoundNotFound
	}
	if !m.clock.Now().After(r.AnswersDueAt) && !st.allPresentAnswered(r) {
		return ErrAnswersPending
	}
	return m.advanceToGuessingLocked(st, r)
}

// allPresentAnswered reports whether every player still in the roster has
// submitted. Departed players never block the host. st.mu held.
func (st *state) allPresentAnswered(r *Round) bool {
	for pid, a := range st.answers[r.ID] {
		if st.players[pid] == nil {
			continue
		}
		if !a.Submitted {
			return false
		}
	}
	return true
}

// advanceToGuessingLocked fills sentinel answers for anyone who never
// submitted, then moves answering -> guessing under CAS and opens the 45s
// guessing window. st.mu held.
func (m *Manager) advanceToGuessingLocked(st *state, r *Round) error {
	if err := st.casRoundStatus(r, RoundAnswering, RoundGuessing); err != nil {
		return err
	}
	now := m.clock.Now().UTC()
	for _, a := range st.answers[r.ID] {
		if !a.Submitted {
			a.Text = ""
			a.Submitted = true
			a.SubmittedAt = now
		}
	}
	r.GuessingDueAt = now.Add(GuessingWindow)

	m.sched.cancel(timerKey{roundID: r.ID, phase: RoundAnswering})
	m.sched.schedule(timerKey{roundID: r.ID, phase: RoundGuessing}, GuessingWindow, func() {
		m.handleGuessingDeadline(st.session.Code, r.ID)
	})

	st.touch(m.clock.Now())
	m.publish(st)
	return nil
}

func (m *Manager) handleAnsweringDeadline(code, roundID string) {
	st, err := m.stateByCode(code)
	if err != nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	r := st.roundByID(roundID)
	if r == nil || r.Status != RoundAnswering {
		return
	}
	log.Info().Str("code", code).Int("round", r.Number).Msg("answering deadline, auto-advancing")
	_ = m.advanceToGuessingLocked(st, r)
}

func (m *Manager) handleGuessingDeadline(code, roundID string) {
	st, err := m.stateByCode(code)
	if err != nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	r := st.roundByID(roundID)
	if r == nil || r.Status != RoundGuessing {
		return
	}
	log.Info().Str("code", code).Int("round", r.Number).Msg("guessing deadline, auto-advancing")
	m.advanceToRevealLocked(st, r)
}

// SubmitGuessesAndVote records the caller's authorship guesses and their
// single favorite vote. guesses maps answer id -> guessed player id and
// must assign a distinct other player to each of the other players'
// answers; the vote must pick exactly one of the round's answers. The
// whole submission is an idempotent upsert keyed by (roundID, playerID).
func (m *Manager) SubmitGuessesAndVote(code, token string, guesses map[string]string, votedAnswerID string) error {
	st, err := m.stateByCode(code)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	p, err := st.playerByToken(token)
	if err != nil {
		return err
	}
	r := st.currentRound()
	if r == nil || r.Status != RoundGuessing {
		return ErrInvalidTransition
	}
	if err := st.validateGuesses(r, p.ID, guesses); err != nil {
		return err
	}
	if votedAnswerID == "" || answerAuthor(st, r, votedAnswerID) == "" {
		return ErrInvalidVote
	}

	now := m.clock.Now().UTC()
	gs := make([]*Guess, 0, len(guesses))
	for answerID, guessedID := range guesses {
		gs = append(gs, &Guess{
			ID:              uuid.NewString(),
			RoundID:         r.ID,
			GuesserID:       p.ID,
			AnswerID:        answerID,
			GuessedPlayerID: guessedID,
		})
	}
	st.guesses[r.ID][p.ID] = gs
	st.votes[r.ID][p.ID] = &Vote{
		ID:            uuid.NewString(),
		RoundID:       r.ID,
		VoterID:       p.ID,
		VotedAnswerID: votedAnswerID,
		SubmittedAt:   now,
	}
	st.touch(m.clock.Now())
	m.publish(st)
	return nil
}

// validateGuesses enforces the submission shape server-side: one guess
// per other answer, each naming a distinct player other than the
// guesser. st.mu held.
func (st *state) validateGuesses(r *Round, guesserID string, guesses map[string]string) error {
	others := make(map[string]bool) // answer ids the guesser must cover
	for pid, a := range st.answers[r.ID] {
		if pid != guesserID {
			others[a.ID] = true
		}
	}
	if len(guesses) != len(others) {
		return ErrInvalidGuesses
	}
	seen := make(map[string]bool, len(guesses))
	for answerID, guessedID := range guesses {
		if !others[answerID] {
			return ErrInvalidGuesses
		}
		if guessedID == guesserID || seen[guessedID] {
			return ErrInvalidGuesses
		}
		if _, ok := st.answers[r.ID][guessedID]; !ok {
			return ErrInvalidGuesses
		}
		seen[guessedID] = true
	}
	return nil
}

// answerAuthor resolves an answer id back to its author so vote
// targets can be checked against the round's answer set. st.mu held.
func answerAuthor(st *state, r *Round, answerID string) string {
	for pid, a := range st.answers[r.ID] {
		if a.ID == answerID {
			return pid
		}
	}
	return ""
}

// AdvanceToReveal is host-only: closes guessing, computes guess results
// and kicks off judging in the background.
func (m *Manager) AdvanceToReveal(code, token string) error {
	st, err := m.stateByCode(code)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if _, err := st.requireHost(token); err != nil {
		return err
	}
	r := st.currentRound()
	if r == nil {
		return ErrRoundNotFound
	}
	if r.Status != RoundGuessing {
		return ErrInvalidTransition
	}
	m.advanceToRevealLocked(st, r)
	return nil
}

func (m *Manager) advanceToRevealLocked(st *state, r *Round) {
	if st.casRoundStatus(r, RoundGuessing, RoundRevealing) != nil {
		return
	}
	r.RevealStep = RevealAuthors
	m.sched.cancel(timerKey{roundID: r.ID, phase: RoundGuessing})
	st.computeGuessResults(r)
	st.touch(m.clock.Now())
	m.publish(st)

	go m.judgeRound(st.session.Code, r.ID)
}

// computeGuessResults marks each guess correct or not and picks the best
// guesser: most correct guesses, ties broken by earliest vote time, then
// by join order. st.mu held.
func (st *state) computeGuessResults(r *Round) {
	authorOf := make(map[string]string) // answer id -> author
	for pid, a := range st.answers[r.ID] {
		authorOf[a.ID] = pid
	}

	correct := make(map[string]int)
	for guesserID, gs := range st.guesses[r.ID] {
		for _, g := range gs {
			g.IsCorrect = authorOf[g.AnswerID] == g.GuessedPlayerID
			if g.IsCorrect {
				correct[guesserID]++
			}
		}
	}

	// nobody earns best guesser without at least one correct guess
	best := ""
	bestCount := 0
	var bestVote time.Time
	for _, pid := range st.participants[r.ID] {
		if correct[pid] == 0 {
			continue
		}
		voteAt := time.Time{}
		if v := st.votes[r.ID][pid]; v != nil {
			voteAt = v.SubmittedAt
		}
		switch {
		case correct[pid] > bestCount:
		case correct[pid] == bestCount && earlierVote(voteAt, bestVote):
		default:
			continue
		}
		best, bestCount, bestVote = pid, correct[pid], voteAt
	}
	r.BestGuesserID = best
}

// earlierVote treats a missing vote time as later than any real one.
func earlierVote(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	if b.IsZero() {
		return true
	}
	return a.Before(b)
}

// judgeRound calls the oracle with a per-attempt timeout and bounded
// retries. Failure leaves the round deliberating; the host can retry
// explicitly.
func (m *Manager) judgeRound(code, roundID string) {
	st, err := m.stateByCode(code)
	if err != nil {
		return
	}
	if m.oracle == nil {
		return
	}

	st.mu.Lock()
	r := st.roundByID(roundID)
	if r == nil || r.Verdict != nil {
		st.mu.Unlock()
		return
	}
	req := JudgeRequest{
		Prompt:        r.Prompt,
		BonusCategory: r.BonusCategory,
		Judges:        append([]string(nil), st.session.Judges...),
	}
	participants := append([]string(nil), st.participants[r.ID]...)
	for _, pid := range participants {
		a := st.answers[r.ID][pid]
		name := ""
		if p := st.players[pid]; p != nil {
			name = p.Name
		}
		req.Answers = append(req.Answers, JudgeAnswer{PlayerID: pid, PlayerName: name, Text: a.Text})
	}
	st.mu.Unlock()

	for attempt := 1; attempt <= judgeAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), judgeTimeout)
		v, err := m.oracle.Judge(ctx, req)
		cancel()
		if err == nil {
			err = validateVerdict(v, req.Judges, participants)
		}
		if err != nil {
			log.Warn().Err(err).Str("code", code).Int("attempt", attempt).Msg("judging failed")
			if attempt < judgeAttempts {
				<-m.clock.After(time.Duration(attempt) * judgeBackoff)
			}
			continue
		}

		st.mu.Lock()
		r := st.roundByID(roundID)
		if r == nil || r.Verdict != nil {
			st.mu.Unlock()
			return
		}
		r.Verdict = v
		m.applyVerdictLocked(st, r)
		st.touch(m.clock.Now())
		m.publish(st)
		num := r.Number
		st.mu.Unlock()
		log.Info().Str("code", code).Int("round", num).Msg("verdict received and scored")
		return
	}
	log.Error().Str("code", code).Msg("judging exhausted retries, round stays deliberating")
}

// validateVerdict rejects malformed oracle output: every ranking must be
// a full permutation of the round's participants and every session judge
// must be represented.
func validateVerdict(v *Verdict, judges, participants []string) error {
	if v == nil {
		return fmt.Errorf("empty verdict")
	}
	if !isPermutation(v.Overall, participants) {
		return fmt.Errorf("overall ranking is not a permutation of players")
	}
	for _, j := range judges {
		if !isPermutation(v.PerJudge[j], participants) {
			return fmt.Errorf("ranking for %q is not a permutation of players", j)
		}
	}
	found := false
	for _, pid := range participants {
		if pid == v.BonusWinnerID {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("bonus winner %q is not a player", v.BonusWinnerID)
	}
	return nil
}

func isPermutation(ranking, participants []string) bool {
	if len(ranking) != len(participants) {
		return false
	}
	want := make(map[string]bool, len(participants))
	for _, pid := range participants {
		want[pid] = true
	}
	for _, pid := range ranking {
		if !want[pid] {
			return false
		}
		delete(want, pid)
	}
	return len(want) == 0
}

// RetryJudging is the host's manual re-kick after the oracle gave up.
func (m *Manager) RetryJudging(code, token string) error {
	st, err := m.stateByCode(code)
	if err != nil {
		return err
	}

	st.mu.Lock()
	if _, err := st.requireHost(token); err != nil {
		st.mu.Unlock()
		return err
	}
	r := st.currentRound()
	if r == nil || r.Status != RoundRevealing {
		st.mu.Unlock()
		return ErrInvalidTransition
	}
	if r.Verdict != nil {
		st.mu.Unlock()
		return ErrAlreadyJudged
	}
	roundID := r.ID
	st.mu.Unlock()

	go m.judgeRound(code, roundID)
	return nil
}

// AdvanceRevealStep is host-only and strictly sequential:
// authors -> banter -> rankings. Banter needs the verdict; until it lands
// the round shows as deliberating.
func (m *Manager) AdvanceRevealStep(code, token string) error {
	st, err := m.stateByCode(code)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if _, err := st.requireHost(token); err != nil {
		return err
	}
	r := st.currentRound()
	if r == nil || r.Status != RoundRevealing {
		return ErrInvalidTransition
	}
	next, ok := revealTransitions[r.RevealStep]
	if !ok {
		return ErrInvalidTransition
	}
	if r.Verdict == nil {
		return ErrStillDeliberating
	}
	r.RevealStep = next
	st.touch(m.clock.Now())
	m.publish(st)
	return nil
}

// RevealNextJudge is host-only: on the rankings step, reveal one more
// judge's ranking. Standings over the revealed prefix are recomputed from
// scratch in the snapshot, so replaying the same verdict always produces
// the same intermediate states.
func (m *Manager) RevealNextJudge(code, token string) error {
	st, err := m.stateByCode(code)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if _, err := st.requireHost(token); err != nil {
		return err
	}
	r := st.currentRound()
	if r == nil || r.Status != RoundRevealing || r.RevealStep != RevealRankings {
		return ErrInvalidTransition
	}
	if r.Verdict == nil {
		return ErrStillDeliberating
	}
	if r.RevealedJudges >= len(st.session.Judges) {
		return ErrInvalidTransition
	}
	r.RevealedJudges++
	st.touch(m.clock.Now())
	m.publish(st)
	return nil
}

// AdvanceToLeaderboard is host-only and completes the round once every
// judge has been revealed. On the final round the leaderboard is skipped
// and the session goes straight to the finale.
func (m *Manager) AdvanceToLeaderboard(code, token string) error {
	st, err := m.stateByCode(code)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if _, err := st.requireHost(token); err != nil {
		return err
	}
	r := st.currentRound()
	if r == nil || r.Status != RoundRevealing || r.RevealStep != RevealRankings {
		return ErrInvalidTransition
	}
	if r.Verdict == nil || !r.Scored {
		return ErrStillDeliberating
	}
	if r.RevealedJudges < len(st.session.Judges) {
		return ErrInvalidTransition
	}
	if err := st.casRoundStatus(r, RoundRevealing, RoundComplete); err != nil {
		return err
	}

	if r.Number >= RoundCount {
		st.session.Status = SessionComplete
		st.session.FinaleStep = FinaleChampion
		go m.generateRecap(st.session.Code)
	}
	st.touch(m.clock.Now())
	m.publish(st)
	return nil
}

// StartNextRound is host-only, from the leaderboard between rounds.
func (m *Manager) StartNextRound(code, token string) error {
	st, err := m.stateByCode(code)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if _, err := st.requireHost(token); err != nil {
		return err
	}
	if st.session.Status != SessionActive {
		return ErrInvalidTransition
	}
	r := st.currentRound()
	if r == nil || r.Status != RoundComplete || r.Number >= RoundCount {
		return ErrInvalidTransition
	}
	m.startRoundLocked(st, r.Number+1)
	st.touch(m.clock.Now())
	m.publish(st)
	return nil
}

// generateRecap asks the recap generator for the session narrative.
// Best-effort: failures are logged and the session keeps an empty recap.
func (m *Manager) generateRecap(code string) {
	if m.recap == nil {
		return
	}
	st, err := m.stateByCode(code)
	if err != nil {
		return
	}

	st.mu.Lock()
	req := RecapRequest{Category: st.session.Category}
	for _, s := range cumulativeStandings(st) {
		name := ""
		if p := st.players[s.PlayerID]; p != nil {
			name = p.Name
		}
		req.Results = append(req.Results, RecapResult{Name: name, Total: s.Points, Placement: s.Placement})
	}
	st.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), judgeTimeout)
	defer cancel()
	text, err := m.recap.Recap(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("code", code).Msg("recap generation failed")
		return
	}

	st.mu.Lock()
	st.session.Recap = text
	m.publish(st)
	st.mu.Unlock()
}
