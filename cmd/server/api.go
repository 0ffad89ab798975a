package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quipcourt/quipcourt/internal/game"
	"github.com/quipcourt/quipcourt/internal/ws"
)

// playerToken identifies the caller on every player/host action. Host
// authority is still checked server-side against the session record; the
// token only says who is asking.
const playerTokenHeader = "X-Player-Token"

func registerRoutes(r *gin.Engine, mgr *game.Manager, hub *ws.Hub) {
	api := r.Group("/api")

	api.POST("/sessions", func(c *gin.Context) {
		var req struct {
			Category string `json:"category"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
			return
		}
		s, err := mgr.CreateSession(req.Category)
		if err != nil {
			apiError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessionCode": s.Code, "session": s})
	})

	api.GET("/sessions/:code", func(c *gin.Context) {
		snap, err := mgr.GetSnapshot(c.Param("code"))
		if err != nil {
			apiError(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	})

	api.POST("/sessions/:code/join", func(c *gin.Context) {
		var info game.PlayerInfo
		if err := c.BindJSON(&info); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
			return
		}
		p, token, err := mgr.JoinSession(c.Param("code"), info)
		if err != nil {
			apiError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"player": p, "playerToken": token})
	})

	api.POST("/sessions/:code/leave", playerAction(mgr.LeaveSession))
	api.POST("/sessions/:code/start", playerAction(mgr.StartSession))
	api.POST("/sessions/:code/intro/advance", playerAction(mgr.AdvanceIntro))
	api.POST("/sessions/:code/finale/advance", playerAction(mgr.AdvanceFinale))
	api.POST("/sessions/:code/end", playerAction(mgr.EndSession))

	api.POST("/sessions/:code/answer", func(c *gin.Context) {
		var req struct {
			Text string `json:"text"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
			return
		}
		if err := mgr.SubmitAnswer(c.Param("code"), c.GetHeader(playerTokenHeader), req.Text); err != nil {
			apiError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	api.POST("/sessions/:code/guess", func(c *gin.Context) {
		var req struct {
			Guesses       map[string]string `json:"guesses"`
			VotedAnswerID string            `json:"votedAnswerId"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
			return
		}
		if err := mgr.SubmitGuessesAndVote(c.Param("code"), c.GetHeader(playerTokenHeader), req.Guesses, req.VotedAnswerID); err != nil {
			apiError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	api.POST("/sessions/:code/round/guessing", playerAction(mgr.AdvanceToGuessing))
	api.POST("/sessions/:code/round/reveal", playerAction(mgr.AdvanceToReveal))
	api.POST("/sessions/:code/round/reveal/advance", playerAction(mgr.AdvanceRevealStep))
	api.POST("/sessions/:code/round/reveal/judge", playerAction(mgr.RevealNextJudge))
	api.POST("/sessions/:code/round/reveal/retry", playerAction(mgr.RetryJudging))
	api.POST("/sessions/:code/round/leaderboard", playerAction(mgr.AdvanceToLeaderboard))
	api.POST("/sessions/:code/round/next", playerAction(mgr.StartNextRound))

	r.GET("/ws/:code", func(c *gin.Context) {
		code := c.Param("code")
		snap, err := mgr.GetSnapshot(code)
		if err != nil {
			apiError(c, err)
			return
		}
		hub.Serve(c.Writer, c.Request, code, snap)
	})
}

func playerAction(fn func(code, token string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := fn(c.Param("code"), c.GetHeader(playerTokenHeader)); err != nil {
			apiError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func apiError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, game.ErrSessionNotFound), errors.Is(err, game.ErrRoundNotFound):
		status = http.StatusNotFound
	case errors.Is(err, game.ErrNotHost), errors.Is(err, game.ErrUnknownPlayer):
		status = http.StatusForbidden
	case errors.Is(err, game.ErrSessionStarted),
		errors.Is(err, game.ErrSessionFull),
		errors.Is(err, game.ErrNotEnoughPlayers),
		errors.Is(err, game.ErrAnswersPending),
		errors.Is(err, game.ErrInvalidGuesses),
		errors.Is(err, game.ErrInvalidVote),
		errors.Is(err, game.ErrStillDeliberating),
		errors.Is(err, game.ErrAlreadyJudged):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, game.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, game.ErrCodeSpaceExhausted):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
