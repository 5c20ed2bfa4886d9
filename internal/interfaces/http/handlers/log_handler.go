package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"keygate.backend/internal/domain/entities"
	"keygate.backend/internal/interfaces/http/response"
)

type LogService interface {
	ListLogs(ctx context.Context, actor entities.Actor, filter entities.ActivityLogFilter) ([]*entities.ActivityLog, int64, error)
}

// LogHandler serves the activity log
type LogHandler struct {
	logUsecase LogService
}

func NewLogHandler(logUsecase LogService) *LogHandler {
	return &LogHandler{logUsecase: logUsecase}
}

// ListLogs GET /api/v1/logs
func (h *LogHandler) ListLogs(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	userID, ok := optionalUUIDQuery(c, "userId")
	if !ok {
		return
	}

	page := pagination(c)
	logs, total, err := h.logUsecase.ListLogs(c.Request.Context(), actor, entities.ActivityLogFilter{
		Category: entities.LogCategory(c.Query("category")),
		Level:    entities.LogLevel(c.Query("level")),
		UserID:   userID,
		Limit:    page.Limit,
		Offset:   page.Offset(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.List(c, http.StatusOK, logs, total, page)
}
