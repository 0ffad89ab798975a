package game

import "errors"

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrRoundNotFound      = errors.New("round not found")
	ErrUnknownPlayer      = errors.New("unknown player")
	ErrNotHost            = errors.New("not host")
	ErrSessionStarted     = errors.New("session already started")
	ErrSessionFull        = errors.New("session full")
	ErrNotEnoughPlayers   = errors.New("not enough players")
	ErrCodeSpaceExhausted = errors.New("could not allocate a join code")
	ErrInvalidTransition  = errors.New("invalid transition for current state")
	ErrAnswersPending     = errors.New("answers still pending")
	ErrInvalidGuesses     = errors.New("guesses must cover each other answer with a distinct player")
	ErrInvalidVote        = errors.New("vote must select exactly one answer")
	ErrStillDeliberating  = errors.New("judges are still deliberating")
	ErrAlreadyJudged      = errors.New("round already has a verdict")
)
