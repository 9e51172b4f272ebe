package controller

import (
	"errors"
	"net/http"

	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/service"
	"github.com/phaniteluguti/Edutech-mvp-sub000/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	Attempts *service.AttemptService
	Results  *service.ResultsService
}

func NewAttemptController(attempts *service.AttemptService, results *service.ResultsService) *AttemptController {
	return &AttemptController{Attempts: attempts, Results: results}
}

// attemptError translates lifecycle errors into transport failures.
// Every one of these is caller-correctable; nothing is retried here.
func attemptError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrAttemptNotFound),
		errors.Is(err, util.ErrMockTestNotFound):
		util.Error(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, util.ErrTestNotPublished):
		util.Error(ctx, http.StatusForbidden, err.Error())
	case errors.Is(err, util.ErrTestAlreadySubmitted),
		errors.Is(err, util.ErrAttemptSubmitted),
		errors.Is(err, util.ErrSyncConflict),
		errors.Is(err, util.ErrResultsNotReady):
		util.Conflict(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

// @Summary Start or resume an attempt
// @Description Creates the caller's attempt for a mock test, or returns the existing in-progress one unchanged.
// @Tags attempts
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "mock test id"
// @Success 201 {object} util.Response
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /mock-tests/{id}/attempts/start [post]
func (c *AttemptController) Start(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, err := c.Attempts.Start(user.UserID, ctx.Param("id"))
	if err != nil {
		attemptError(ctx, err)
		return
	}

	util.Created(ctx, gin.H{
		"attempt":          attempt,
		"remainingSeconds": c.Attempts.RemainingSeconds(attempt),
	})
}

// @Summary Get attempt status
// @Description Returns the attempt and its live remaining seconds, computed from the server clock.
// @Tags attempts
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "attempt id"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /attempts/{id} [get]
func (c *AttemptController) Status(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, err := c.Attempts.Get(ctx.Param("id"), user.UserID)
	if err != nil {
		attemptError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"attempt":          attempt,
		"remainingSeconds": c.Attempts.RemainingSeconds(attempt),
	})
}

type SaveAnswerReq struct {
	QuestionID  string `json:"questionId" binding:"required"`
	Answer      string `json:"answer"`
	SyncVersion *int   `json:"syncVersion"`
}

// @Summary Save one answer
// @Description Writes a single answer under optimistic concurrency. A stale syncVersion is rejected with 409; refetch the attempt and retry.
// @Tags attempts
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "attempt id"
// @Param body body SaveAnswerReq true "answer payload"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /attempts/{id}/answers [put]
func (c *AttemptController) SaveAnswer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req SaveAnswerReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	version, err := c.Attempts.SaveAnswer(ctx.Param("id"), user.UserID, req.QuestionID, req.Answer, req.SyncVersion)
	if err != nil {
		attemptError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"syncVersion": version})
}

// @Summary Submit an attempt
// @Description Finalizes the attempt: scores the saved responses and locks them. Submitting twice is an error.
// @Tags attempts
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "attempt id"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /attempts/{id}/submit [post]
func (c *AttemptController) Submit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, err := c.Attempts.Submit(ctx.Param("id"), user.UserID)
	if err != nil {
		attemptError(ctx, err)
		return
	}

	util.Success(ctx, attempt)
}

// @Summary Get attempt results
// @Description Per-question and per-topic analysis of a submitted attempt. Rejected while the attempt is still in progress.
// @Tags attempts
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "attempt id"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /attempts/{id}/results [get]
func (c *AttemptController) GetResults(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	results, err := c.Results.Results(ctx.Param("id"), user.UserID)
	if err != nil {
		attemptError(ctx, err)
		return
	}

	util.Success(ctx, results)
}
