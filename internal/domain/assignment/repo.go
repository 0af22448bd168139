package assignment

import (
	"context"

	"github.com/medq/medq/internal/domain/questionnaire"
)

type AssignmentRepository interface {
	Create(ctx context.Context, a *Assignment) error
	GetByID(ctx context.Context, id int64) (*Assignment, error)
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*Assignment, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Assignment, int, error)
	ListDoctorPatients(ctx context.Context, doctorID string) ([]string, error)
}

type AnswerRepository interface {
	Get(ctx context.Context, assignmentID int64, key questionnaire.QuestionKey) (*Answer, error)
	// Upsert inserts the answer or overwrites the existing one for the same key.
	Upsert(ctx context.Context, a *Answer) error
	ListByAssignment(ctx context.Context, assignmentID int64) ([]*Answer, error)
	ModuleScore(ctx context.Context, assignmentID, moduleID int64) (int, error)
}

// Catalog is the read side of the questionnaire catalog the lifecycle needs.
type Catalog interface {
	ListQuestionnaireModules(ctx context.Context, questionnaireID int64) ([]*questionnaire.Module, error)
	GetModuleQuestions(ctx context.Context, moduleID int64) ([]*questionnaire.Question, error)
	GetQuestion(ctx context.Context, key questionnaire.QuestionKey) (*questionnaire.Question, error)
}
