// Package cases holds the case aggregate: the investigation record that the
// upload service and the job processor mutate.
package cases

import (
	"fmt"
	"slices"

	"casefile/pkg/graph"
)

// Status is the processing state of a case.
type Status string

const (
	StatusCreated    Status = "created"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// validTransitions is the full transition relation. Uploads re-enter queued
// from any settled state; the job processor alone moves queued work through
// processing into completed or error.
var validTransitions = map[Status][]Status{
	StatusCreated:    {StatusQueued},
	StatusQueued:     {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusError},
	StatusCompleted:  {StatusQueued},
	StatusError:      {StatusQueued, StatusProcessing},
}

// TransitionError reports a status change the state machine does not allow.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid case status transition %s -> %s", e.From, e.To)
}

// CanTransition reports whether the state machine allows moving from one
// status to another.
func CanTransition(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// Case is the aggregate root. It is persisted and replaced as one document;
// concurrent writers to the same case race with last-write-wins semantics.
type Case struct {
	ID          string            `json:"id"`
	Description string            `json:"description"`
	Files       []string          `json:"files"`
	Status      Status            `json:"status"`
	Graph       graph.Graph       `json:"graph"`
	Summaries   map[string]string `json:"summaries"`
	Transcripts map[string]string `json:"transcripts"`
}

func New(id, description string) Case {
	return Case{
		ID:          id,
		Description: description,
		Files:       []string{},
		Status:      StatusCreated,
		Graph:       graph.New(),
		Summaries:   map[string]string{},
		Transcripts: map[string]string{},
	}
}

// SetStatus applies a status transition, rejecting moves the state machine
// does not allow.
func (c *Case) SetStatus(to Status) error {
	if !CanTransition(c.Status, to) {
		return &TransitionError{From: c.Status, To: to}
	}
	c.Status = to
	return nil
}

// AppendFile records a successfully processed file. Re-appending a filename
// already present keeps the list unchanged, so job redelivery is safe.
func (c *Case) AppendFile(filename string) {
	if slices.Contains(c.Files, filename) {
		return
	}
	c.Files = append(c.Files, filename)
}

// UploadContainer is the blob container holding a case's raw audio uploads.
func (c *Case) UploadContainer() string {
	return c.ID
}

// IngestionContainer is the blob container holding a case's transcript
// artifacts; the external indexer indexes this container.
func (c *Case) IngestionContainer() string {
	return c.ID + "-ingestion"
}
