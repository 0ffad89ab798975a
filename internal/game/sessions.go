package game

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CreateSession allocates a join code, assigns three distinct judge
// personas and opens the lobby. The creator is not a player; the first
// joiner becomes host.
func (m *Manager) CreateSession(category string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	code := ""
	for i := 0; i < codeMaxRetries; i++ {
		c := m.newCode()
		if m.sessions[c] == nil {
			code = c
			break
		}
	}
	if code == "" {
		return nil, ErrCodeSpaceExhausted
	}

	now := m.clock.Now().UTC()
	s := &Session{
		ID:        uuid.NewString(),
		Code:      code,
		Status:    SessionLobby,
		Category:  category,
		Judges:    pickJudges(JudgeCount),
		CreatedAt: now,
	}
	m.sessions[code] = newState(s, now)

	log.Info().Str("code", code).Str("category", category).Msg("session created")
	return cloneSession(s), nil
}

// JoinSession adds a player to a lobby. The first joiner is flagged host
// and recorded on the session.
func (m *Manager) JoinSession(code string, info PlayerInfo) (*Player, string, error) {
	st, err := m.stateByCode(code)
	if err != nil {
		return nil, "", err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.session.Status != SessionLobby {
		return nil, "", ErrSessionStarted
	}
	if len(st.players) >= MaxPlayers {
		return nil, "", ErrSessionFull
	}

	p := &Player{
		ID:        uuid.NewString(),
		SessionID: st.session.ID,
		Name:      info.Name,
		Avatar:    info.Avatar,
		ProfileID: info.ProfileID,
		EntryBrag: info.EntryBrag,
		JoinedAt:  m.clock.Now().UTC(),
	}
	if len(st.players) == 0 {
		p.IsHost = true
		st.session.HostPlayerID = p.ID
	}
	token := uuid.NewString()
	st.players[p.ID] = p
	st.tokens[token] = p
	st.order = append(st.order, p.ID)
	st.touch(m.clock.Now())

	log.Info().Str("code", code).Str("player_id", p.ID).Bool("host", p.IsHost).Msg("player joined")
	m.publish(st)
	return clonePlayer(p), token, nil
}

// LeaveSession removes a player. A departing host hands the role to the
// remaining player with the earliest join; the last player out cancels
// the session. Leaving mid-round forfeits that player's remaining-round
// scoring but the round carries on for everyone else.
func (m *Manager) LeaveSession(code, token string) error {
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

	delete(st.players, p.ID)
	delete(st.tokens, token)
	for i, id := range st.order {
		if id == p.ID {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}

	if len(st.players) == 0 {
		m.cancelLocked(st)
		log.Info().Str("code", code).Msg("last player left, session cancelled")
		return nil
	}

	if p.ID == st.session.HostPlayerID {
		// join order is earliest-JoinedAt order, so the next host is the
		// head of the remaining roster
		next := st.players[st.order[0]]
		next.IsHost = true
		st.session.HostPlayerID = next.ID
		log.Info().Str("code", code).Str("player_id", next.ID).Msg("host migrated")
	}

	st.touch(m.clock.Now())
	m.publish(st)
	return nil
}

// StartSession is host-only: lobby -> intro once at least three players
// are in.
func (m *Manager) StartSession(code, token string) error {
	st, err := m.stateByCode(code)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if _, err := st.requireHost(token); err != nil {
		return err
	}
	if st.session.Status != SessionLobby {
		return ErrInvalidTransition
	}
	if len(st.players) < MinPlayers {
		return ErrNotEnoughPlayers
	}

	st.session.Status = SessionIntro
	st.session.IntroStep = IntroWelcome
	st.touch(m.clock.Now())
	m.publish(st)
	return nil
}

// AdvanceIntro is host-only and strictly sequential: welcome -> judges,
// then judges -> active with round 1 underway.
func (m *Manager) AdvanceIntro(code, token string) error {
	st, err := m.stateByCode(code)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if _, err := st.requireHost(token); err != nil {
		return err
	}
	if st.session.Status != SessionIntro {
		return ErrInvalidTransition
	}

	switch st.session.IntroStep {
	case IntroWelcome:
		st.session.IntroStep = IntroJudges
	case IntroJudges:
		st.session.Status = SessionActive
		m.startRoundLocked(st, 1)
	default:
		return ErrInvalidTransition
	}
	st.touch(m.clock.Now())
	m.publish(st)
	return nil
}

// AdvanceFinale is host-only: champion -> highlights on a completed
// session.
func (m *Manager) AdvanceFinale(code, token string) error {
	st, err := m.stateByCode(code)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if _, err := st.requireHost(token); err != nil {
		return err
	}
	if st.session.Status != SessionComplete || st.session.FinaleStep != FinaleChampion {
		return ErrInvalidTransition
	}
	st.session.FinaleStep = FinaleHighlights
	st.touch(m.clock.Now())
	m.publish(st)
	return nil
}

// EndSession is host-only and terminal. No rollback.
func (m *Manager) EndSession(code, token string) error {
	st, err := m.stateByCode(code)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if _, err := st.requireHost(token); err != nil {
		return err
	}
	if st.session.Status == SessionComplete || st.session.Status == SessionCancelled {
		return ErrInvalidTransition
	}
	m.cancelLocked(st)
	log.Info().Str("code", code).Msg("session ended by host")
	return nil
}

// cancelLocked marks the session cancelled and drops its timers. st.mu held.
func (m *Manager) cancelLocked(st *state) {
	st.session.Status = SessionCancelled
	for _, r := range st.rounds {
		m.sched.cancelRound(r.ID)
	}
	st.touch(m.clock.Now())
	m.publish(st)
}

// RunJanitor sweeps idle and finished sessions. Idle live sessions past
// the TTL are cancelled; terminal sessions past the TTL are dropped from
// the registry.
func (m *Manager) RunJanitor(ctx context.Context, every time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.clock.After(every):
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	cutoff := m.clock.Now().Add(-m.sessionTTL)

	m.mu.Lock()
	states := make(map[string]*state, len(m.sessions))
	for code, st := range m.sessions {
		states[code] = st
	}
	m.mu.Unlock()

	var remove []string
	for code, st := range states {
		st.mu.Lock()
		idle := st.lastActivity.Before(cutoff)
		terminal := st.session.Status == SessionComplete || st.session.Status == SessionCancelled
		if idle && !terminal {
			m.cancelLocked(st)
			log.Info().Str("code", code).Msg("idle session cancelled")
		} else if idle && terminal {
			remove = append(remove, code)
		}
		st.mu.Unlock()
	}

	if len(remove) > 0 {
		m.mu.Lock()
		for _, code := range remove {
			delete(m.sessions, code)
		}
		m.mu.Unlock()
	}
}

func cloneSession(s *Session) *Session {
	c := *s
	c.Judges = append([]string(nil), s.Judges...)
	return &c
}

func clonePlayer(p *Player) *Player {
	c := *p
	return &c
}
