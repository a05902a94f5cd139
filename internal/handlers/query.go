package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/repos"
	"github.com/meridianvc/dealflow-backend/internal/requestdata"
	"github.com/meridianvc/dealflow-backend/internal/services"
)

type QueryHandler struct {
	log     *logger.Logger
	rag     services.RAGService
	queries repos.QueryLogRepo
}

func NewQueryHandler(log *logger.Logger, rag services.RAGService, queries repos.QueryLogRepo) *QueryHandler {
	return &QueryHandler{
		log:     log.With("handler", "QueryHandler"),
		rag:     rag,
		queries: queries,
	}
}

type queryRequest struct {
	Question  string     `json:"question" binding:"required"`
	StartupID *uuid.UUID `json:"startup_id"`
}

// POST /api/query
func (h *QueryHandler) Query(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	fundID := rd.FundID
	answer, err := h.rag.Answer(c.Request.Context(), req.Question, services.QueryScope{
		StartupID: req.StartupID,
		FundID:    &fundID,
	})
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "query_failed", err)
		return
	}
	RespondOK(c, answer)
}

// GET /api/queries
func (h *QueryHandler) Recent(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	logs, err := h.queries.ListByFundID(c.Request.Context(), nil, rd.FundID, 0)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, logs)
}
