// Package events publishes assignment lifecycle events to downstream
// consumers (notification workers, reporting). Publication happens after the
// owning transaction commits and never fails the operation that produced it.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	AssignmentCreated  = "assignment.created"
	AssignmentDrafted  = "assignment.drafted"
	AssignmentStarted  = "assignment.started"
	AssignmentFinished = "assignment.finished"
	AssignmentArchived = "assignment.archived"
	// AssignmentStatusChanged is an administrative overwrite that bypassed the
	// lifecycle.
	AssignmentStatusChanged = "assignment.status_changed"
)

type Event struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	AssignmentID int64     `json:"assignment_id"`
	DoctorID     string    `json:"doctor_id"`
	PatientID    string    `json:"patient_id"`
	Status       string    `json:"status"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType string, assignmentID int64, doctorID, patientID, status string) Event {
	return Event{
		ID:           uuid.New().String(),
		Type:         eventType,
		AssignmentID: assignmentID,
		DoctorID:     doctorID,
		PatientID:    patientID,
		Status:       status,
		OccurredAt:   time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// LogPublisher writes events to the log. Used when no broker is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "events").Logger()}
}

func (p *LogPublisher) Publish(_ context.Context, evt Event) error {
	p.logger.Info().
		Str("event_id", evt.ID).
		Str("event_type", evt.Type).
		Int64("assignment_id", evt.AssignmentID).
		Str("status", evt.Status).
		Msg("event")
	return nil
}
