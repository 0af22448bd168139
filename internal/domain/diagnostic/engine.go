package diagnostic

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/medq/medq/internal/domain/assignment"
	"github.com/medq/medq/internal/domain/questionnaire"
)

// AssignmentReader is the slice of the assignment service the engine reads.
type AssignmentReader interface {
	GetAssignment(ctx context.Context, id int64) (*assignment.Assignment, error)
	ModuleScore(ctx context.Context, assignmentID, moduleID int64) (int, error)
	GetAnswer(ctx context.Context, assignmentID int64, key questionnaire.QuestionKey) (*assignment.Answer, error)
}

// CatalogReader is the read side of the questionnaire graph.
type CatalogReader interface {
	ListQuestionnaireModules(ctx context.Context, questionnaireID int64) ([]*questionnaire.Module, error)
	GetModuleQuestions(ctx context.Context, moduleID int64) ([]*questionnaire.Question, error)
	ListModuleOutputs(ctx context.Context, moduleID int64) ([]*questionnaire.Output, error)
	ListQuestionOutputs(ctx context.Context, key questionnaire.QuestionKey) ([]*questionnaire.Output, error)
}

// Engine builds diagnostic reports. Reports are recomputed from the stored
// answers on every call.
type Engine struct {
	assignments AssignmentReader
	catalog     CatalogReader
	logger      zerolog.Logger
}

func NewEngine(assignments AssignmentReader, catalog CatalogReader, logger zerolog.Logger) *Engine {
	return &Engine{
		assignments: assignments,
		catalog:     catalog,
		logger:      logger.With().Str("component", "diagnostic").Logger(),
	}
}

// AssignmentAnalytics walks every module of the assignment's questionnaire,
// scores it, and collects the module outputs and question observations
// that fire.
func (e *Engine) AssignmentAnalytics(ctx context.Context, assignmentID int64) (Report, error) {
	a, err := e.assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	modules, err := e.catalog.ListQuestionnaireModules(ctx, a.QuestionnaireID)
	if err != nil {
		return nil, err
	}

	report := make(Report, 0, len(modules))
	for _, m := range modules {
		entry, err := e.moduleReport(ctx, a.ID, m)
		if err != nil {
			return nil, fmt.Errorf("module %d: %w", m.ID, err)
		}
		report = append(report, entry)
	}

	e.logger.Debug().
		Int64("assignment_id", a.ID).
		Int("modules", len(report)).
		Msg("analytics computed")
	return report, nil
}

func (e *Engine) moduleReport(ctx context.Context, assignmentID int64, m *questionnaire.Module) (ModuleReport, error) {
	entry := ModuleReport{
		Module:       m.Title,
		Diagnostic:   ModuleDiagnostic{Diagnostic: []string{}},
		Observations: []string{},
	}

	score, err := e.assignments.ModuleScore(ctx, assignmentID, m.ID)
	if err != nil {
		return entry, err
	}
	entry.Diagnostic.Punctuation = score

	outputs, err := e.catalog.ListModuleOutputs(ctx, m.ID)
	if err != nil {
		return entry, err
	}
	if entry.Diagnostic.Diagnostic, err = triggered(entry.Diagnostic.Diagnostic, outputs, score); err != nil {
		return entry, err
	}

	questions, err := e.catalog.GetModuleQuestions(ctx, m.ID)
	if err != nil {
		return entry, err
	}
	for _, q := range questions {
		if entry.Observations, err = e.observe(ctx, assignmentID, q, entry.Observations); err != nil {
			return entry, err
		}
	}
	return entry, nil
}

// observe evaluates the outputs attached to q against the score of the
// selected option. Unanswered and free-text questions add nothing.
func (e *Engine) observe(ctx context.Context, assignmentID int64, q *questionnaire.Question, dst []string) ([]string, error) {
	outputs, err := e.catalog.ListQuestionOutputs(ctx, q.Key())
	if err != nil || len(outputs) == 0 {
		return dst, err
	}
	ans, err := e.assignments.GetAnswer(ctx, assignmentID, q.Key())
	if errors.Is(err, assignment.ErrAnswerNotFound) {
		return dst, nil
	}
	if err != nil {
		return dst, err
	}
	if ans.OptionID == nil || ans.OptionScore == nil {
		return dst, nil
	}
	return triggered(dst, outputs, *ans.OptionScore)
}

func triggered(dst []string, outputs []*questionnaire.Output, value int) ([]string, error) {
	for _, o := range outputs {
		ok, err := o.Matches(value)
		if err != nil {
			return dst, fmt.Errorf("output %d: %w", o.ID, err)
		}
		if ok {
			dst = append(dst, o.Text)
		}
	}
	return dst, nil
}
