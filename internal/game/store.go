package game

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Oracle supplies the round verdict. Implementations live outside this
// package; the engine only needs the one call and treats failures as
// transient.
type Oracle interface {
	Judge(ctx context.Context, req JudgeRequest) (*Verdict, error)
}

type JudgeRequest struct {
	Prompt        string
	BonusCategory string
	Judges        []string
	Answers       []JudgeAnswer
}

type JudgeAnswer struct {
	PlayerID   string
	PlayerName string
	Text       string
}

// RecapGenerator produces the narrative session recap. Purely
// presentational; errors are logged and dropped.
type RecapGenerator interface {
	Recap(ctx context.Context, req RecapRequest) (string, error)
}

type RecapRequest struct {
	Category string
	Results  []RecapResult
}

type RecapResult struct {
	Name      string
	Total     int
	Placement int
}

// Notifier receives a full session snapshot after every state change.
// Consumers replace their local copy wholesale, they never merge.
type Notifier interface {
	Publish(code string, snapshot *Snapshot)
}

// Manager owns every live session. All mutation goes through it.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*state // keyed by join code

	clock  clockwork.Clock
	sched  *scheduler
	pool   *PromptPool
	oracle Oracle
	recap  RecapGenerator
	notify Notifier

	sessionTTL time.Duration
	newCode    func() string
}

type Options struct {
	Clock      clockwork.Clock
	Prompts    *PromptPool
	Oracle     Oracle
	Recap      RecapGenerator
	Notifier   Notifier
	SessionTTL time.Duration
}

func NewManager(opts Options) *Manager {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	pool := opts.Prompts
	if pool == nil {
		pool = NewPromptPool()
	}
	ttl := opts.SessionTTL
	if ttl == 0 {
		ttl = time.Hour
	}
	return &Manager{
		sessions:   make(map[string]*state),
		clock:      clock,
		sched:      newScheduler(clock),
		pool:       pool,
		oracle:     opts.Oracle,
		recap:      opts.Recap,
		notify:     opts.Notifier,
		sessionTTL: ttl,
		newCode:    func() string { return randomCode(codeLength) },
	}
}

// state is the per-session record set plus its lock. Per-player writes
// inside are idempotent upserts keyed by (roundID, playerID); status
// moves are compare-and-set under the lock so racing host actions and
// timers cannot double-fire.
type state struct {
	mu sync.Mutex

	session *Session
	players map[string]*Player // by id
	tokens  map[string]*Player // auth token -> player
	order   []string           // player ids in join order

	rounds       []*Round
	participants map[string][]string          // roundID -> roster at round start, join order
	answers      map[string]map[string]*Answer // roundID -> playerID
	guesses      map[string]map[string][]*Guess
	votes        map[string]map[string]*Vote

	usedPrompts  map[string]bool
	lastActivity time.Time

	// seq stamps every outgoing snapshot. Delivery is asynchronous, so
	// frames can reach a consumer out of order; the sequence lets them
	// drop anything older than what they already applied.
	seq uint64
}

func newState(s *Session, now time.Time) *state {
	return &state{
		session:      s,
		players:      make(map[string]*Player),
		tokens:       make(map[string]*Player),
		participants: make(map[string][]string),
		answers:      make(map[string]map[string]*Answer),
		guesses:      make(map[string]map[string][]*Guess),
		votes:        make(map[string]map[string]*Vote),
		usedPrompts:  make(map[string]bool),
		lastActivity: now,
	}
}

func (m *Manager) stateByCode(code string) (*state, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := m.sessions[code]
	if st == nil {
		return nil, ErrSessionNotFound
	}
	return st, nil
}

// playerByToken must be called with st.mu held.
func (st *state) playerByToken(token string) (*Player, error) {
	p := st.tokens[token]
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	return p, nil
}

// requireHost enforces host authority server-side against
// session.HostPlayerID, never trusting the client. st.mu held.
func (st *state) requireHost(token string) (*Player, error) {
	p, err := st.playerByToken(token)
	if err != nil {
		return nil, err
	}
	if p.ID != st.session.HostPlayerID {
		return nil, ErrNotHost
	}
	return p, nil
}

// currentRound returns the latest round, or nil before the first one.
// st.mu held.
func (st *state) currentRound() *Round {
	if len(st.rounds) == 0 {
		return nil
	}
	return st.rounds[len(st.rounds)-1]
}

func (st *state) roundByID(roundID string) *Round {
	for _, r := range st.rounds {
		if r.ID == roundID {
			return r
		}
	}
	return nil
}

// casRoundStatus is the compare-and-set for round transitions: it only
// moves forward along the allowed table and fails when the round has
// already left the expected status. st.mu held.
func (st *state) casRoundStatus(r *Round, from, to RoundStatus) error {
	if r.Status != from || roundTransitions[from] != to {
		return ErrInvalidTransition
	}
	r.Status = to
	return nil
}

func (st *state) touch(now time.Time) {
	st.lastActivity = now
}

// publish pushes a full snapshot to the notifier. The sequence is bumped
// and the snapshot built under st.mu, so stamps follow mutation order;
// delivery happens off the lock and may reorder, which consumers resolve
// by dropping lower sequences.
func (m *Manager) publish(st *state) {
	if m.notify == nil {
		return
	}
	st.seq++
	snap := buildSnapshot(st)
	code := st.session.Code
	go m.notify.Publish(code, snap)
}
