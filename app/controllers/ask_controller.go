package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/seatrade/rag-backend/app/bootstrap"
	apperrors "github.com/seatrade/rag-backend/internal/errors"
	"github.com/seatrade/rag-backend/internal/services"
)

// AskController 问答端点
type AskController struct {
	BaseController
	askService *services.AskService
}

func (c *AskController) Prepare() {
	if c.askService == nil {
		if app := bootstrap.GetApp(); app != nil {
			c.askService = app.Ask
		}
	}
}

// POST /api/ask
func (c *AskController) Post() {
	if c.askService == nil {
		c.JSONFailure(http.StatusServiceUnavailable, "ask service not initialized")
		return
	}

	var req services.AskRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONFailure(http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := c.askService.Ask(c.Ctx.Request.Context(), req)
	if err != nil {
		appErr := apperrors.GetAppError(err)
		c.JSONFailure(appErr.HTTPCode, appErr.Message)
		return
	}

	c.JSON(http.StatusOK, resp)
}
