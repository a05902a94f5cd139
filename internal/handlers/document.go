package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/meridianvc/dealflow-backend/internal/ingestion"
	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/requestdata"
	"github.com/meridianvc/dealflow-backend/internal/services"
)

type DocumentHandler struct {
	log  *logger.Logger
	docs services.DocumentService
}

func NewDocumentHandler(log *logger.Logger, docs services.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		log:  log.With("handler", "DocumentHandler"),
		docs: docs,
	}
}

// POST /api/startups/:id/documents
func (h *DocumentHandler) Register(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	startupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	var in services.RegisterDocumentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	doc, err := h.docs.Register(c.Request.Context(), rd.FundID, startupID, in)
	if err != nil {
		if errors.Is(err, services.ErrWrongFund) {
			respondLookupError(c, err)
			return
		}
		RespondError(c, http.StatusBadRequest, "register_failed", err)
		return
	}
	RespondCreated(c, doc)
}

// GET /api/startups/:id/documents
func (h *DocumentHandler) ListByStartup(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	startupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	docs, err := h.docs.ListByStartup(c.Request.Context(), rd.FundID, startupID)
	if err != nil {
		respondLookupError(c, err)
		return
	}
	RespondOK(c, docs)
}

// GET /api/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	doc, err := h.docs.Get(c.Request.Context(), rd.FundID, id)
	if err != nil {
		respondLookupError(c, err)
		return
	}
	RespondOK(c, doc)
}

// POST /api/documents/:id/ingest
func (h *DocumentHandler) Ingest(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	doc, err := h.docs.Ingest(c.Request.Context(), rd.FundID, id)
	if err != nil {
		switch {
		case errors.Is(err, ingestion.ErrIngestInProgress), errors.Is(err, ingestion.ErrAlreadyIngested):
			RespondError(c, http.StatusConflict, "not_ingestable", err)
		default:
			respondLookupError(c, err)
		}
		return
	}
	RespondAccepted(c, gin.H{"document_id": doc.ID, "status": doc.Status})
}
