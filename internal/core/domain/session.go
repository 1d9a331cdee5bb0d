package domain

import "time"

type State string

const (
	StateIdle         State = "idle"
	StateFileSelected State = "file_selected"
	StateSubmitting   State = "submitting"
	StateSucceeded    State = "succeeded"
	StateFailed       State = "failed"
)

// Phase is the tagged variant holding the session state. Each concrete
// phase carries only the fields valid for it, so result and error message
// can never coexist and a preview never outlives its image.
type Phase interface {
	State() State
	isPhase()
}

// Selection pairs the selected image with the preview derived from it.
type Selection struct {
	Image   SelectedImage
	Preview PreviewHandle
}

type Idle struct{}

type FileSelected struct {
	Selection
}

type Submitting struct {
	Selection
	Generation uint64
	StartedAt  time.Time
}

type Succeeded struct {
	Selection
	Result PredictionResult
}

type Failed struct {
	Selection
	Message string
	Kind    FailureKind
}

func (Idle) State() State         { return StateIdle }
func (FileSelected) State() State { return StateFileSelected }
func (Submitting) State() State   { return StateSubmitting }
func (Succeeded) State() State    { return StateSucceeded }
func (Failed) State() State       { return StateFailed }

func (Idle) isPhase()         {}
func (FileSelected) isPhase() {}
func (Submitting) isPhase()   {}
func (Succeeded) isPhase()    {}
func (Failed) isPhase()       {}

// SelectionOf returns the selection held by a phase, if any.
func SelectionOf(p Phase) (Selection, bool) {
	switch v := p.(type) {
	case FileSelected:
		return v.Selection, true
	case Submitting:
		return v.Selection, true
	case Succeeded:
		return v.Selection, true
	case Failed:
		return v.Selection, true
	default:
		return Selection{}, false
	}
}

// Snapshot is the read-only projection handed to presentation layers.
type Snapshot struct {
	SessionID      string            `json:"session_id"`
	Revision       uint64            `json:"revision"`
	State          State             `json:"state"`
	Filename       string            `json:"filename,omitempty"`
	ContentType    string            `json:"content_type,omitempty"`
	HasPreview     bool              `json:"has_preview"`
	PreviewHandle  string            `json:"preview_handle,omitempty"`
	Result         *PredictionResult `json:"result,omitempty"`
	HighConfidence bool              `json:"high_confidence"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	CanSubmit      bool              `json:"can_submit"`
	CanReset       bool              `json:"can_reset"`
}

// NewSnapshot projects a phase. threshold decides HighConfidence.
func NewSnapshot(sessionID string, revision uint64, phase Phase, threshold float64) Snapshot {
	if phase == nil {
		phase = Idle{}
	}
	snap := Snapshot{
		SessionID: sessionID,
		Revision:  revision,
		State:     phase.State(),
		CanSubmit: phase.State() == StateFileSelected,
		CanReset:  phase.State() != StateIdle,
	}
	if sel, ok := SelectionOf(phase); ok {
		snap.Filename = sel.Image.Filename
		snap.ContentType = sel.Image.ContentType
		snap.HasPreview = !sel.Preview.IsZero()
		snap.PreviewHandle = sel.Preview.URI
	}
	switch v := phase.(type) {
	case Succeeded:
		result := v.Result
		snap.Result = &result
		snap.HighConfidence = result.IsHighConfidence(threshold)
	case Failed:
		snap.ErrorMessage = v.Message
	}
	return snap
}

// Outcome describes one settled attempt for event publication.
type Outcome struct {
	SessionID   string      `json:"session_id"`
	Attempt     uint64      `json:"attempt"`
	State       State       `json:"state"`
	Filename    string      `json:"filename"`
	TumorClass  string      `json:"tumor_class,omitempty"`
	Confidence  float64     `json:"confidence,omitempty"`
	FailureKind FailureKind `json:"failure_kind,omitempty"`
	DurationMS  float64     `json:"duration_ms"`
	FinishedAt  time.Time   `json:"finished_at"`
}
