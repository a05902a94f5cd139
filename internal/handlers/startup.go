package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/requestdata"
	"github.com/meridianvc/dealflow-backend/internal/services"
)

type StartupHandler struct {
	log      *logger.Logger
	startups services.StartupService
}

func NewStartupHandler(log *logger.Logger, startups services.StartupService) *StartupHandler {
	return &StartupHandler{
		log:      log.With("handler", "StartupHandler"),
		startups: startups,
	}
}

// POST /api/startups
func (h *StartupHandler) Create(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var in services.CreateStartupInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	startup, err := h.startups.Create(c.Request.Context(), rd.FundID, in)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "create_failed", err)
		return
	}
	RespondCreated(c, startup)
}

// GET /api/startups
func (h *StartupHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	startups, err := h.startups.List(c.Request.Context(), rd.FundID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, startups)
}

// GET /api/startups/:id
func (h *StartupHandler) Get(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	startup, err := h.startups.Get(c.Request.Context(), rd.FundID, id)
	if err != nil {
		respondLookupError(c, err)
		return
	}
	RespondOK(c, startup)
}

// respondLookupError maps fund-boundary and not-found failures onto 404 so
// the API never confirms another tenant's record exists.
func respondLookupError(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, services.ErrWrongFund) {
		RespondError(c, http.StatusNotFound, "not_found", errors.New("not found"))
		return
	}
	RespondError(c, http.StatusInternalServerError, "lookup_failed", err)
}
