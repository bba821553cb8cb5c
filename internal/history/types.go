// Package history keeps a local log of exported assessments so earlier
// results can be listed and retrieved. The assessment engine never reads or
// writes it.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/lai-prep-bridge/internal/domain"
	"github.com/lai-prep-bridge/internal/report"
)

// ErrNotFound is returned by Get and Delete when no record has the requested ID.
var ErrNotFound = errors.New("history record not found")

// Record is one stored assessment.
type Record struct {
	ID                string          `json:"id"`
	PatientID         string          `json:"patient_id,omitempty"`
	Population        string          `json:"population"`
	RiskLevel         string          `json:"risk_level"`
	Method            string          `json:"method"`
	AdjustedSuccess   float64         `json:"adjusted_success"`
	WithInterventions float64         `json:"with_interventions"`
	TopIntervention   string          `json:"top_intervention,omitempty"`
	Payload           json.RawMessage `json:"payload"`
	CreatedAt         time.Time       `json:"created_at"`
}

// NewRecord builds a record from an assessment and its export document. The
// document is stored verbatim as the payload.
func NewRecord(profile domain.PatientProfile, a *domain.Assessment, doc *report.Document) (*Record, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	rec := &Record{
		PatientID:         profile.PatientID,
		Population:        profile.Population,
		RiskLevel:         a.RiskLabel,
		Method:            string(a.AttritionFactors.Method),
		AdjustedSuccess:   a.AdjustedSuccessRate,
		WithInterventions: a.SuccessWithInterventions,
		Payload:           payload,
	}
	if top, ok := a.TopRecommendation(); ok {
		rec.TopIntervention = top.Intervention
	}
	return rec, nil
}

// ListOptions filters and pages List results. A zero Limit uses DefaultListLimit.
type ListOptions struct {
	Limit      int
	Offset     int
	PatientID  string
	Population string
}

// DefaultListLimit is the page size used when ListOptions.Limit is zero.
const DefaultListLimit = 50

// Store defines the interface for assessment history storage.
type Store interface {
	// Save stores rec, assigning its ID and CreatedAt.
	Save(ctx context.Context, rec *Record) error

	// Get returns the record with the given ID or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns records newest first.
	List(ctx context.Context, opts ListOptions) ([]*Record, error)

	// Count returns the total number of records.
	Count(ctx context.Context) (int64, error)

	// Delete removes a record by ID or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// ExportJSON writes every record to writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// Close closes the store and releases resources.
	Close() error
}

// Export is the JSON export format.
type Export struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Records    []*Record `json:"records"`
}
