package board

import (
	"time"

	"github.com/google/uuid"
)

// Pipeline is the console-local sales-funnel stage of a lead, independent
// of the server-tracked feasibility/deposit flags.
type Pipeline string

const (
	PipelineNew         Pipeline = "new"
	PipelineQualified   Pipeline = "qualified"
	PipelineQuote       Pipeline = "quote"
	PipelineNegotiation Pipeline = "negotiation"
	PipelineWon         Pipeline = "won"
	PipelineLost        Pipeline = "lost"
)

func (p Pipeline) Valid() bool {
	switch p {
	case PipelineNew, PipelineQualified, PipelineQuote, PipelineNegotiation, PipelineWon, PipelineLost:
		return true
	}
	return false
}

var pipelineLabels = map[Pipeline]string{
	PipelineNew:         "New",
	PipelineQualified:   "Qualified",
	PipelineQuote:       "Quote sent",
	PipelineNegotiation: "Negotiation",
	PipelineWon:         "Won",
	PipelineLost:        "Lost",
}

func (p Pipeline) Label() string {
	if label, ok := pipelineLabels[p]; ok {
		return label
	}
	return string(p)
}

// Note is one annotation entry. The list is append-only; there is no edit
// or delete.
type Note struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// AdminMeta is the console-side annotation attached to a lead by key. It is
// never written back to the lead store.
type AdminMeta struct {
	Pipeline Pipeline `json:"pipeline"`
	Notes    []Note   `json:"notes,omitempty"` // newest first
}

// DefaultMeta is the state a lead gets on first read.
func DefaultMeta() AdminMeta {
	return AdminMeta{Pipeline: PipelineNew}
}

// AddNote prepends a free-text note.
func (m *AdminMeta) AddNote(body string, now time.Time) Note {
	note := Note{
		ID:        uuid.New().String(),
		Body:      body,
		CreatedAt: now,
	}
	m.Notes = append([]Note{note}, m.Notes...)
	return note
}

// SetPipeline moves the lead to a new stage and appends a synthetic history
// note, so the note list doubles as an audit trail of stage changes.
func (m *AdminMeta) SetPipeline(stage Pipeline, now time.Time) {
	m.Pipeline = stage
	m.AddNote("Pipeline -> "+stage.Label(), now)
}
