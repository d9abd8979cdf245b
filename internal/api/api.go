// Package api exposes the battle coordinator over HTTP. Handlers stay thin:
// bind, call the service, map the error taxonomy to a status code.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AmanSingh336699/ai-interview-battle/internal/battle"
	"github.com/AmanSingh336699/ai-interview-battle/internal/broadcast"
	"github.com/AmanSingh336699/ai-interview-battle/internal/errors"
)

type Config struct {
	Engine   *gin.Engine
	Battle   *battle.Service
	Presence *broadcast.Presence
}

type API struct {
	battle   *battle.Service
	presence *broadcast.Presence
}

func New(c Config) *API {
	a := &API{
		battle:   c.Battle,
		presence: c.Presence,
	}

	g := c.Engine.Group("/api/battles")
	g.POST("", a.createBattle)
	g.POST("/:code/join", a.joinBattle)
	g.POST("/:code/answers", a.submitAnswer)
	g.GET("/:code/question", a.currentQuestion)
	g.GET("/:code/answered", a.hasAnswered)
	g.GET("/:code/summary", a.summary)
	g.GET("/:code/lobby", a.lobby)
	g.POST("/:code/typing", a.typing)
	g.POST("/:code/presence", a.heartbeat)
	g.GET("/:code/presence", a.members)

	return a
}

func abortError(c *gin.Context, err error) {
	e := errors.Convert(err)
	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{"error": e.Message})
}

type createBattleRequest struct {
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	Avatar     string `json:"avatar"`
	Topic      string `json:"topic"`
	Difficulty string `json:"difficulty"`
	MaxPlayers int    `json:"maxPlayers"`
}

func (a *API) createBattle(c *gin.Context) {
	var req createBattleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("malformed request body"), errors.WithCause(err)))
		return
	}

	code, err := a.battle.CreateBattle(c.Request.Context(), battle.CreateBattleRequest{
		UserID:     req.UserID,
		Name:       req.Name,
		Avatar:     req.Avatar,
		Topic:      req.Topic,
		Difficulty: req.Difficulty,
		MaxPlayers: req.MaxPlayers,
	})
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"battleCode": code})
}

type joinBattleRequest struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

func (a *API) joinBattle(c *gin.Context) {
	var req joinBattleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("malformed request body"), errors.WithCause(err)))
		return
	}

	err := a.battle.JoinBattle(c.Request.Context(), battle.JoinBattleRequest{
		Code:   c.Param("code"),
		UserID: req.UserID,
		Name:   req.Name,
		Avatar: req.Avatar,
	})
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "joined successfully"})
}

type submitAnswerRequest struct {
	UserID string `json:"userId"`
	Answer string `json:"answer"`
}

func (a *API) submitAnswer(c *gin.Context) {
	var req submitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("malformed request body"), errors.WithCause(err)))
		return
	}

	err := a.battle.SubmitAnswer(c.Request.Context(), battle.SubmitAnswerRequest{
		Code:   c.Param("code"),
		UserID: req.UserID,
		Text:   req.Answer,
	})
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "answer submitted"})
}

func (a *API) currentQuestion(c *gin.Context) {
	q, err := a.battle.GetCurrentQuestion(c.Request.Context(), c.Param("code"))
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, q)
}

func (a *API) hasAnswered(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		abortError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("missing userId")))
		return
	}

	answered, err := a.battle.HasAnswered(c.Request.Context(), c.Param("code"), userID)
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"hasAnswered": answered})
}

func (a *API) summary(c *gin.Context) {
	s, err := a.battle.GetRankedSummary(c.Request.Context(), c.Param("code"))
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, s)
}

func (a *API) lobby(c *gin.Context) {
	l, err := a.battle.GetLobby(c.Request.Context(), c.Param("code"))
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, l)
}

type typingRequest struct {
	UserID string `json:"userId"`
	Typing bool   `json:"typing"`
}

func (a *API) typing(c *gin.Context) {
	var req typingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("malformed request body"), errors.WithCause(err)))
		return
	}

	a.battle.Typing(c.Request.Context(), c.Param("code"), req.UserID, req.Typing)

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type heartbeatRequest struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

func (a *API) heartbeat(c *gin.Context) {
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("malformed request body"), errors.WithCause(err)))
		return
	}

	if err := a.presence.Heartbeat(c.Request.Context(), c.Param("code"), req.UserID, req.Name); err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (a *API) members(c *gin.Context) {
	members, err := a.presence.Members(c.Request.Context(), c.Param("code"))
	if err != nil {
		abortError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}
