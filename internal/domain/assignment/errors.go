package assignment

import (
	"fmt"
	"strings"

	"github.com/medq/medq/internal/domain/questionnaire"
	"github.com/medq/medq/internal/platform/apperr"
)

var (
	ErrAssignmentNotFound = apperr.New(apperr.ErrNotFound, "assignment not found")
	ErrAnswerNotFound     = apperr.New(apperr.ErrNotFound, "answer not found")
	ErrDoctorNotFound     = apperr.New(apperr.ErrNotFound, "doctor not found")
	ErrPatientNotFound    = apperr.New(apperr.ErrNotFound, "patient not found")

	ErrAssignmentAlreadyCompleted = apperr.New(apperr.ErrInvalidState, "assignment already completed")
	ErrAlreadyFinished            = apperr.New(apperr.ErrInvalidState, "assignment already finished")
	ErrInvalidTransition          = apperr.New(apperr.ErrInvalidState, "invalid status transition")
	ErrIncompleteAssignment       = apperr.New(apperr.ErrInvalidState, "assignment is incomplete")

	ErrEmptyAnswer   = apperr.New(apperr.ErrInvalidInput, "answer needs an option or open text")
	ErrInvalidStatus = apperr.New(apperr.ErrInvalidInput, "invalid status")
)

// IncompleteAssignmentError lists every question still lacking an answer.
type IncompleteAssignmentError struct {
	Missing []questionnaire.QuestionKey
}

func (e *IncompleteAssignmentError) Error() string {
	parts := make([]string, len(e.Missing))
	for i, k := range e.Missing {
		parts[i] = k.String()
	}
	return fmt.Sprintf("%s: %d unanswered (%s)", ErrIncompleteAssignment, len(e.Missing), strings.Join(parts, ", "))
}

func (e *IncompleteAssignmentError) Unwrap() error { return ErrIncompleteAssignment }
