package assignment

import (
	"strings"
	"time"

	"github.com/medq/medq/internal/domain/questionnaire"
)

type Status string

const (
	StatusUnset      Status = ""
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in-progress"
	StatusFinished   Status = "finished"
	StatusArchived   Status = "archived"
)

// Valid reports whether s is a status that can be stored explicitly.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusInProgress, StatusFinished, StatusArchived:
		return true
	}
	return false
}

// Assignment maps to the assignment table: one questionnaire given by a
// doctor to a patient. Doctors and patients are identified by e-mail.
type Assignment struct {
	ID              int64     `db:"id" json:"id"`
	DoctorID        string    `db:"id_doctor" json:"id_doctor"`
	PatientID       string    `db:"id_patient" json:"id_patient"`
	QuestionnaireID int64     `db:"id_questionnaire" json:"id_questionnaire"`
	Date            time.Time `db:"date" json:"date"`
	Status          Status    `db:"status" json:"status"`
}

// Answer maps to the answer table. At most one answer exists per
// (assignment, module, question).
type Answer struct {
	AssignmentID int64     `db:"assignment_id" json:"assignment_id"`
	ModuleID     int64     `db:"module_id" json:"module_id"`
	QuestionID   int64     `db:"question_id" json:"question_id"`
	OptionID     *int64    `db:"option_id" json:"option_id,omitempty"`
	OpenAnswer   *string   `db:"open_answer" json:"open_answer,omitempty"`
	Date         time.Time `db:"date" json:"date"`
	// OptionScore is the score of the selected option, filled on read.
	OptionScore *int `json:"option_score,omitempty"`
}

func (a *Answer) Key() questionnaire.QuestionKey {
	return questionnaire.QuestionKey{ModuleID: a.ModuleID, QuestionID: a.QuestionID}
}

// Answered reports whether the answer holds a selected option or non-blank
// free text. Empty records do not count toward completion.
func (a *Answer) Answered() bool {
	return a.OptionID != nil || (a.OpenAnswer != nil && strings.TrimSpace(*a.OpenAnswer) != "")
}

type AssignmentInput struct {
	DoctorID        string
	PatientID       string
	QuestionnaireID int64
}

type AnswerInput struct {
	AssignmentID int64
	ModuleID     int64
	QuestionID   int64
	OptionID     *int64
	OpenAnswer   *string
}

// ListFilter narrows ListAssignments. Empty fields do not filter.
type ListFilter struct {
	DoctorID  string
	PatientID string
	Status    *Status
}
