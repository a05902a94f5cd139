package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/requestdata"
	"github.com/meridianvc/dealflow-backend/internal/services"
	"github.com/meridianvc/dealflow-backend/internal/types"
)

type AlignmentHandler struct {
	log       *logger.Logger
	alignment services.AlignmentService
	startups  services.StartupService
}

func NewAlignmentHandler(log *logger.Logger, alignment services.AlignmentService, startups services.StartupService) *AlignmentHandler {
	return &AlignmentHandler{
		log:       log.With("handler", "AlignmentHandler"),
		alignment: alignment,
		startups:  startups,
	}
}

// POST /api/startups/:id/alignment
func (h *AlignmentHandler) Score(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	startupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	// Fund membership check before the expensive call.
	if _, err := h.startups.Get(c.Request.Context(), rd.FundID, startupID); err != nil {
		respondLookupError(c, err)
		return
	}
	result, err := h.alignment.Score(c.Request.Context(), startupID, rd.FundID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "score_failed", err)
		return
	}
	RespondOK(c, result)
}

// GET /api/startups/:id/alignment
func (h *AlignmentHandler) Get(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	startupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	startup, err := h.startups.Get(c.Request.Context(), rd.FundID, startupID)
	if err != nil {
		respondLookupError(c, err)
		return
	}
	if len(startup.AlignmentResult) == 0 {
		RespondError(c, http.StatusNotFound, "not_scored", errors.New("startup has not been scored yet"))
		return
	}
	var result types.AlignmentResult
	if err := json.Unmarshal(startup.AlignmentResult, &result); err != nil {
		RespondError(c, http.StatusInternalServerError, "corrupt_result", err)
		return
	}
	RespondOK(c, result)
}
