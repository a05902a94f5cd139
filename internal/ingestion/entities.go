package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/meridianvc/dealflow-backend/internal/clients/openai"
	"github.com/meridianvc/dealflow-backend/internal/logger"
)

// entitySampleLimit bounds how much document text is sent to the model.
// Longer inputs are reduced to a head+tail sample.
const entitySampleLimit = 8000

// ExtractedPerson is one person mentioned in a document.
type ExtractedPerson struct {
	Name       string  `json:"name"`
	Role       string  `json:"role,omitempty"`
	Confidence float64 `json:"confidence"`
}

// ExtractedOrganization is one company or institution mentioned in a document.
type ExtractedOrganization struct {
	Name         string  `json:"name"`
	Relationship string  `json:"relationship,omitempty"`
	Confidence   float64 `json:"confidence"`
}

// ExtractedMetric is one quantitative claim, e.g. "MRR: $15,000".
type ExtractedMetric struct {
	Name       string  `json:"name"`
	Value      string  `json:"value"`
	Unit       string  `json:"unit,omitempty"`
	Context    string  `json:"context,omitempty"`
	Confidence float64 `json:"confidence"`
}

// ExtractedEntities is the fixed-category structured record produced for each
// ingested document. Every field is always non-nil so downstream consumers
// never branch on presence.
type ExtractedEntities struct {
	People        []ExtractedPerson       `json:"people"`
	Organizations []ExtractedOrganization `json:"organizations"`
	Metrics       []ExtractedMetric       `json:"metrics"`
	KeyPoints     []string                `json:"key_points"`
	Products      []string                `json:"products"`
	Technologies  []string                `json:"technologies"`
}

// EmptyEntities returns a well-typed record with every category empty.
func EmptyEntities() *ExtractedEntities {
	return &ExtractedEntities{
		People:        []ExtractedPerson{},
		Organizations: []ExtractedOrganization{},
		Metrics:       []ExtractedMetric{},
		KeyPoints:     []string{},
		Products:      []string{},
		Technologies:  []string{},
	}
}

// Counts summarizes the record for document metadata.
func (e *ExtractedEntities) Counts() map[string]int {
	return map[string]int{
		"people":        len(e.People),
		"organizations": len(e.Organizations),
		"metrics":       len(e.Metrics),
		"key_points":    len(e.KeyPoints),
		"products":      len(e.Products),
		"technologies":  len(e.Technologies),
	}
}

type EntityExtractor interface {
	// Extract pulls people, organizations, metrics, key points, products and
	// technologies out of document text. It never fails: any model or parse
	// error yields an empty-but-typed record.
	Extract(ctx context.Context, text string) *ExtractedEntities
}

type entityExtractor struct {
	ai  openai.Client
	log *logger.Logger
}

func NewEntityExtractor(log *logger.Logger, ai openai.Client) EntityExtractor {
	return &entityExtractor{
		ai:  ai,
		log: log.With("service", "EntityExtractor"),
	}
}

const entitySystemPrompt = `You are an analyst extracting structured facts from venture deal documents (pitch decks, financials, legal, technical and market material).
Return ONLY a JSON object with this exact shape:
{
  "people": [{"name": "", "role": "", "confidence": 0.0}],
  "organizations": [{"name": "", "relationship": "", "confidence": 0.0}],
  "metrics": [{"name": "", "value": "", "unit": "", "context": "", "confidence": 0.0}],
  "key_points": [""],
  "products": [""],
  "technologies": [""]
}
Rules:
- confidence is between 0 and 1.
- relationship is one of: subject, competitor, customer, partner, investor, other.
- metrics capture quantitative claims verbatim (value as written, unit separated when obvious).
- key_points holds at most 5 short strings.
- Omit nothing you are sure of; invent nothing.`

func (s *entityExtractor) Extract(ctx context.Context, text string) *ExtractedEntities {
	text = strings.TrimSpace(text)
	if text == "" || s.ai == nil {
		return EmptyEntities()
	}

	sample := sampleText(text, entitySampleLimit)
	user := fmt.Sprintf("Extract entities from the following document text:\n\n%s", sample)

	raw, err := s.ai.Complete(ctx, entitySystemPrompt, user, openai.CompletionOptions{
		Temperature: 0.0,
		MaxTokens:   1500,
		JSONMode:    true,
	})
	if err != nil {
		s.log.Warn("Entity extraction call failed; returning empty record", "error", err)
		return EmptyEntities()
	}

	out := EmptyEntities()
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		s.log.Warn("Entity extraction returned malformed JSON; returning empty record", "error", err)
		return EmptyEntities()
	}
	normalizeEntities(out)
	return out
}

// sampleText keeps inputs under limit runes by joining the head and tail
// halves of the text, which is where deal documents concentrate their facts.
func sampleText(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	half := limit / 2
	return string(runes[:half]) + "\n...\n" + string(runes[len(runes)-half:])
}

func normalizeEntities(e *ExtractedEntities) {
	if e.People == nil {
		e.People = []ExtractedPerson{}
	}
	if e.Organizations == nil {
		e.Organizations = []ExtractedOrganization{}
	}
	if e.Metrics == nil {
		e.Metrics = []ExtractedMetric{}
	}
	if e.KeyPoints == nil {
		e.KeyPoints = []string{}
	}
	if len(e.KeyPoints) > 5 {
		e.KeyPoints = e.KeyPoints[:5]
	}
	if e.Products == nil {
		e.Products = []string{}
	}
	if e.Technologies == nil {
		e.Technologies = []string{}
	}
}
