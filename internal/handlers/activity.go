package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/requestdata"
	"github.com/meridianvc/dealflow-backend/internal/services"
)

type ActivityHandler struct {
	log      *logger.Logger
	activity services.ActivityService
}

func NewActivityHandler(log *logger.Logger, activity services.ActivityService) *ActivityHandler {
	return &ActivityHandler{
		log:      log.With("handler", "ActivityHandler"),
		activity: activity,
	}
}

// GET /api/activity
func (h *ActivityHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			RespondError(c, http.StatusBadRequest, "invalid_limit", err)
			return
		}
		limit = n
	}
	events, err := h.activity.List(c.Request.Context(), rd.FundID, limit)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, events)
}
