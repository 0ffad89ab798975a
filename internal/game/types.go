package game

import (
	"time"
)

type SessionStatus string

const (
	SessionLobby     SessionStatus = "lobby"
	SessionIntro     SessionStatus = "intro"
	SessionActive    SessionStatus = "active"
	SessionComplete  SessionStatus = "complete"
	SessionCancelled SessionStatus = "cancelled"
)

type RoundStatus string

const (
	RoundAnswering RoundStatus = "answering"
	RoundGuessing  RoundStatus = "guessing"
	RoundRevealing RoundStatus = "revealing"
	RoundComplete  RoundStatus = "complete"
)

type IntroStep string

const (
	IntroWelcome IntroStep = "welcome"
	IntroJudges  IntroStep = "judges"
)

type RevealStep string

const (
	RevealAuthors  RevealStep = "authors"
	RevealBanter   RevealStep = "banter"
	RevealRankings RevealStep = "rankings"
)

type FinaleStep string

const (
	FinaleChampion   FinaleStep = "champion"
	FinaleHighlights FinaleStep = "highlights"
)

const (
	MinPlayers      = 3
	MaxPlayers      = 5
	RoundCount      = 5
	JudgeCount      = 3
	AnsweringWindow = 60 * time.Second
	GuessingWindow  = 45 * time.Second
)

// roundTransitions is the only allowed forward step per status. Round
// statuses never move backwards.
var roundTransitions = map[RoundStatus]RoundStatus{
	RoundAnswering: RoundGuessing,
	RoundGuessing:  RoundRevealing,
	RoundRevealing: RoundComplete,
}

var revealTransitions = map[RevealStep]RevealStep{
	RevealAuthors: RevealBanter,
	RevealBanter:  RevealRankings,
}

type Session struct {
	ID           string        `json:"id"`
	Code         string        `json:"code"`
	Status       SessionStatus `json:"status"`
	Category     string        `json:"category"`
	Judges       []string      `json:"judges"`
	HostPlayerID string        `json:"hostPlayerId"`
	CurrentRound int           `json:"currentRound"`
	IntroStep    IntroStep     `json:"introStep,omitempty"`
	FinaleStep   FinaleStep    `json:"finaleStep,omitempty"`
	Recap        string        `json:"recap,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

type Player struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar,omitempty"`
	ProfileID string    `json:"profileId,omitempty"`
	EntryBrag string    `json:"entryBrag,omitempty"`
	IsHost    bool      `json:"isHost"`
	Total     int       `json:"total"`
	JoinedAt  time.Time `json:"joinedAt"`
}

type Round struct {
	ID             string      `json:"id"`
	SessionID      string      `json:"sessionId"`
	Number         int         `json:"number"`
	Prompt         string      `json:"prompt"`
	BonusCategory  string      `json:"bonusCategory"`
	Status         RoundStatus `json:"status"`
	AnswersDueAt   time.Time   `json:"answersDueAt"`
	GuessingDueAt  time.Time   `json:"guessingDueAt,omitempty"`
	RevealStep     RevealStep  `json:"revealStep,omitempty"`
	RevealedJudges int         `json:"revealedJudges"`
	BestGuesserID  string      `json:"bestGuesserId,omitempty"`
	Verdict        *Verdict    `json:"verdict,omitempty"`

	// Scored guards the one-time application of the verdict; Scores holds
	// the per-round deltas cumulative totals are recomputed from.
	Scored bool           `json:"scored"`
	Scores map[string]int `json:"scores,omitempty"`
}

// Answer is created empty for every player when the round starts and
// upserted by its author. Submitted distinguishes the initial empty row
// from a deliberate (or deadline-sentinel) submission.
type Answer struct {
	ID          string    `json:"id"`
	RoundID     string    `json:"roundId"`
	PlayerID    string    `json:"playerId"`
	Text        string    `json:"text"`
	Submitted   bool      `json:"submitted"`
	SubmittedAt time.Time `json:"submittedAt,omitempty"`
}

type Guess struct {
	ID              string `json:"id"`
	RoundID         string `json:"roundId"`
	GuesserID       string `json:"guesserId"`
	AnswerID        string `json:"answerId"`
	GuessedPlayerID string `json:"guessedPlayerId"`
	IsCorrect       bool   `json:"isCorrect"`
}

type Vote struct {
	ID            string    `json:"id"`
	RoundID       string    `json:"roundId"`
	VoterID       string    `json:"voterId"`
	VotedAnswerID string    `json:"votedAnswerId"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// Verdict is produced once per round by the judge oracle. Whisperers is
// the only field written after the fact, during the one-time scoring
// application.
type Verdict struct {
	Overall       []string            `json:"overall"`
	PerJudge      map[string][]string `json:"perJudge"`
	BonusWinnerID string              `json:"bonusWinnerId"`
	Whisperers    []string            `json:"whisperers,omitempty"`
	Commentary    string              `json:"commentary"`
}

type Prompt struct {
	ID       string
	Text     string
	Category string
	Active   bool
}

// PlayerInfo is what a joiner supplies: a linked profile or a guest
// name+avatar, plus an optional entry brag.
type PlayerInfo struct {
	Name      string `json:"name"`
	Avatar    string `json:"avatar"`
	ProfileID string `json:"profileId"`
	EntryBrag string `json:"entryBrag"`
}
