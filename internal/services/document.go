package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/meridianvc/dealflow-backend/internal/ingestion"
	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/repos"
	"github.com/meridianvc/dealflow-backend/internal/tasks"
	"github.com/meridianvc/dealflow-backend/internal/types"
)

// RegisterDocumentInput describes an uploaded file. The bytes themselves live
// behind StorageURI; this service only records the pointer.
type RegisterDocumentInput struct {
	Name       string `json:"name" binding:"required"`
	Type       string `json:"type"`
	StorageURI string `json:"storage_uri"`
	MimeType   string `json:"mime_type"`
}

type DocumentService interface {
	Register(ctx context.Context, fundID, startupID uuid.UUID, in RegisterDocumentInput) (*types.Document, error)
	Get(ctx context.Context, fundID, id uuid.UUID) (*types.Document, error)
	ListByStartup(ctx context.Context, fundID, startupID uuid.UUID) ([]*types.Document, error)

	// Ingest validates the document can run, then hands it to the pipeline in
	// the background. Pipeline failures land in document metadata and the
	// activity feed, not in this call.
	Ingest(ctx context.Context, fundID, id uuid.UUID) (*types.Document, error)
}

type documentService struct {
	docs     repos.DocumentRepo
	startups repos.StartupRepo
	pipeline *ingestion.Pipeline
	runner   *tasks.Runner
	log      *logger.Logger
}

func NewDocumentService(
	log *logger.Logger,
	docs repos.DocumentRepo,
	startups repos.StartupRepo,
	pipeline *ingestion.Pipeline,
	runner *tasks.Runner,
) DocumentService {
	return &documentService{
		docs:     docs,
		startups: startups,
		pipeline: pipeline,
		runner:   runner,
		log:      log.With("service", "DocumentService"),
	}
}

var validDocumentTypes = map[string]bool{
	types.DocumentTypePitchDeck:  true,
	types.DocumentTypeFinancials: true,
	types.DocumentTypeLegal:      true,
	types.DocumentTypeTech:       true,
	types.DocumentTypeMarket:     true,
	types.DocumentTypeOther:      true,
}

func (s *documentService) Register(ctx context.Context, fundID, startupID uuid.UUID, in RegisterDocumentInput) (*types.Document, error) {
	startup, err := s.startups.GetByID(ctx, nil, startupID)
	if err != nil {
		return nil, fmt.Errorf("load startup %s: %w", startupID, err)
	}
	if startup.FundID != fundID {
		return nil, ErrWrongFund
	}
	docType := in.Type
	if docType == "" {
		docType = types.DocumentTypeOther
	}
	if !validDocumentTypes[docType] {
		return nil, fmt.Errorf("unknown document type %q", docType)
	}

	doc := &types.Document{
		StartupID:  startupID,
		FundID:     startup.FundID,
		Name:       in.Name,
		Type:       docType,
		StorageURI: in.StorageURI,
		MimeType:   in.MimeType,
		Status:     types.DocumentStatusPending,
	}
	created, err := s.docs.Create(ctx, nil, doc)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	s.log.Info("Document registered", "document_id", created.ID, "startup_id", startupID, "type", docType)
	return created, nil
}

func (s *documentService) Get(ctx context.Context, fundID, id uuid.UUID) (*types.Document, error) {
	doc, err := s.docs.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if doc.FundID != fundID {
		return nil, ErrWrongFund
	}
	return doc, nil
}

func (s *documentService) ListByStartup(ctx context.Context, fundID, startupID uuid.UUID) ([]*types.Document, error) {
	startup, err := s.startups.GetByID(ctx, nil, startupID)
	if err != nil {
		return nil, err
	}
	if startup.FundID != fundID {
		return nil, ErrWrongFund
	}
	return s.docs.ListByStartupID(ctx, nil, startupID)
}

func (s *documentService) Ingest(ctx context.Context, fundID, id uuid.UUID) (*types.Document, error) {
	doc, err := s.Get(ctx, fundID, id)
	if err != nil {
		return nil, err
	}
	switch doc.Status {
	case types.DocumentStatusProcessing:
		return nil, ingestion.ErrIngestInProgress
	case types.DocumentStatusCompleted:
		return nil, ingestion.ErrAlreadyIngested
	}

	docID := doc.ID
	s.runner.Submit("document-ingest", func(taskCtx context.Context) error {
		return s.pipeline.Ingest(taskCtx, docID)
	})
	return doc, nil
}
