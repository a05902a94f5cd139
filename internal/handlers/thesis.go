package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/requestdata"
	"github.com/meridianvc/dealflow-backend/internal/services"
)

type ThesisHandler struct {
	log    *logger.Logger
	theses services.ThesisService
}

func NewThesisHandler(log *logger.Logger, theses services.ThesisService) *ThesisHandler {
	return &ThesisHandler{
		log:    log.With("handler", "ThesisHandler"),
		theses: theses,
	}
}

// POST /api/theses
func (h *ThesisHandler) Create(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var in services.CreateThesisInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	thesis, err := h.theses.Create(c.Request.Context(), rd.FundID, in)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "create_failed", err)
		return
	}
	RespondCreated(c, thesis)
}

// POST /api/theses/:id/activate
func (h *ThesisHandler) Activate(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	if err := h.theses.Activate(c.Request.Context(), rd.FundID, id); err != nil {
		respondLookupError(c, err)
		return
	}
	RespondOK(c, gin.H{"activated": id})
}

// GET /api/theses/active
func (h *ThesisHandler) Active(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	thesis, err := h.theses.Active(c.Request.Context(), rd.FundID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "lookup_failed", err)
		return
	}
	if thesis == nil {
		RespondError(c, http.StatusNotFound, "no_active_thesis", errors.New("fund has no active thesis"))
		return
	}
	RespondOK(c, thesis)
}
