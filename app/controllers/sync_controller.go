package controllers

import (
	"net/http"

	"github.com/seatrade/rag-backend/app/bootstrap"
	apperrors "github.com/seatrade/rag-backend/internal/errors"
	"github.com/seatrade/rag-backend/internal/services"
)

// SyncController 摄取端点
type SyncController struct {
	BaseController
	syncService *services.SyncService
}

func (c *SyncController) Prepare() {
	if c.syncService == nil {
		if app := bootstrap.GetApp(); app != nil {
			c.syncService = app.Sync
		}
	}
}

// POST /api/sync
func (c *SyncController) Post() {
	if c.syncService == nil {
		c.JSONFailure(http.StatusServiceUnavailable, "sync service not initialized")
		return
	}

	result, err := c.syncService.Run(c.Ctx.Request.Context())
	if err != nil {
		appErr := apperrors.GetAppError(err)
		c.JSONFailure(appErr.HTTPCode, appErr.Message)
		return
	}

	c.JSON(http.StatusOK, result)
}
