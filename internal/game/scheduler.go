package game

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// timerKey identifies one server-side deadline: phase advancement must
// fire even with zero connected clients, so every window gets a one-shot
// timer keyed by (roundID, phase).
type timerKey struct {
	roundID string
	phase   RoundStatus
}

type timerEntry struct {
	timer clockwork.Timer
	done  chan struct{}
}

type scheduler struct {
	clock  clockwork.Clock
	mu     sync.Mutex
	timers map[timerKey]*timerEntry
}

func newScheduler(clock clockwork.Clock) *scheduler {
	return &scheduler{clock: clock, timers: make(map[timerKey]*timerEntry)}
}

// schedule arms a one-shot timer for key, replacing any existing one.
// fire runs on its own goroutine when the deadline passes; a cancelled
// or replaced timer never fires.
func (s *scheduler) schedule(key timerKey, d time.Duration, fire func()) {
	e := &timerEntry{timer: s.clock.NewTimer(d), done: make(chan struct{})}

	s.mu.Lock()
	if old, ok := s.timers[key]; ok {
		stopAndDrain(old)
	}
	s.timers[key] = e
	s.mu.Unlock()

	log.Debug().Str("round_id", key.roundID).Str("phase", string(key.phase)).Dur("in", d).Msg("deadline scheduled")

	go func() {
		select {
		case <-e.timer.Chan():
			s.mu.Lock()
			if cur, ok := s.timers[key]; !ok || cur != e {
				s.mu.Unlock()
				return
			}
			delete(s.timers, key)
			s.mu.Unlock()
			fire()
		case <-e.done:
		}
	}()
}

func (s *scheduler) cancel(key timerKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.timers[key]; ok {
		stopAndDrain(e)
		delete(s.timers, key)
	}
}

func (s *scheduler) cancelRound(roundID string) {
	s.cancel(timerKey{roundID: roundID, phase: RoundAnswering})
	s.cancel(timerKey{roundID: roundID, phase: RoundGuessing})
}

// stopAndDrain follows the time.Timer.Stop documentation: stop, then
// drain the channel if the timer had already fired, and release the
// waiting goroutine.
func stopAndDrain(e *timerEntry) {
	if !e.timer.Stop() {
		select {
		case <-e.timer.Chan():
		default:
		}
	}
	close(e.done)
}
