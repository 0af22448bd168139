package questionnaire

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/medq/medq/internal/platform/apperr"
	"github.com/medq/medq/internal/platform/db"
)

// Service manages the questionnaire catalog: questionnaires, modules, their
// questions and options, and the conditional outputs attached to them.
type Service struct {
	questionnaires QuestionnaireRepository
	modules        ModuleRepository
	outputs        OutputRepository
	tx             db.Transactor
	logger         zerolog.Logger
}

func NewService(
	questionnaires QuestionnaireRepository,
	modules ModuleRepository,
	outputs OutputRepository,
	tx db.Transactor,
	logger zerolog.Logger,
) *Service {
	return &Service{
		questionnaires: questionnaires,
		modules:        modules,
		outputs:        outputs,
		tx:             tx,
		logger:         logger.With().Str("component", "questionnaire").Logger(),
	}
}

// -- Questionnaire --

// CreateQuestionnaire stores q and links the given modules in order. Unknown
// module ids are skipped; q.Modules lists the ones actually linked.
func (s *Service) CreateQuestionnaire(ctx context.Context, q *Questionnaire, moduleIDs []int64) error {
	if strings.TrimSpace(q.Title) == "" {
		return apperr.Invalid("title is required")
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.questionnaires.Create(ctx, q); err != nil {
			return err
		}
		q.Modules = nil
		seen := make(map[int64]bool, len(moduleIDs))
		for _, id := range moduleIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			m, err := s.modules.GetByID(ctx, id)
			if errors.Is(err, ErrModuleNotFound) {
				s.logger.Warn().Int64("questionnaire_id", q.ID).Int64("module_id", id).Msg("skipping unknown module")
				continue
			}
			if err != nil {
				return err
			}
			if err := s.questionnaires.LinkModule(ctx, q.ID, m.ID, len(q.Modules)); err != nil {
				return err
			}
			q.Modules = append(q.Modules, m)
		}
		return nil
	})
}

func (s *Service) GetQuestionnaire(ctx context.Context, id int64) (*Questionnaire, error) {
	q, err := s.questionnaires.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.Modules, err = s.questionnaires.ListModules(ctx, id); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *Service) ListQuestionnaires(ctx context.Context, limit, offset int) ([]*Questionnaire, int, error) {
	return s.questionnaires.List(ctx, limit, offset)
}

// ListQuestionnaireModules returns the modules of a questionnaire in order.
func (s *Service) ListQuestionnaireModules(ctx context.Context, questionnaireID int64) ([]*Module, error) {
	if _, err := s.questionnaires.GetByID(ctx, questionnaireID); err != nil {
		return nil, err
	}
	return s.questionnaires.ListModules(ctx, questionnaireID)
}

// -- Module --

func (s *Service) CreateModule(ctx context.Context, m *Module) error {
	if strings.TrimSpace(m.Title) == "" {
		return apperr.Invalid("title is required")
	}
	return s.modules.Create(ctx, m)
}

func (s *Service) GetModule(ctx context.Context, id int64) (*Module, error) {
	return s.modules.GetByID(ctx, id)
}

func (s *Service) ListModules(ctx context.Context, limit, offset int) ([]*Module, int, error) {
	return s.modules.List(ctx, limit, offset)
}

// -- Question --

func (s *Service) AddQuestion(ctx context.Context, q *Question) error {
	if strings.TrimSpace(q.Content) == "" {
		return apperr.Invalid("content is required")
	}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.modules.GetByID(ctx, q.ModuleID); err != nil {
			return err
		}
		if err := s.ensureEditable(ctx, q.ModuleID); err != nil {
			return err
		}
		return s.modules.AddQuestion(ctx, q)
	})
	if err != nil {
		return err
	}
	q.Options = []*OptionAnswer{}
	q.Kind = q.DetectKind()
	return nil
}

// ensureEditable rejects changes to a module once a questionnaire holding it
// has been assigned.
func (s *Service) ensureEditable(ctx context.Context, moduleID int64) error {
	assigned, err := s.modules.Assigned(ctx, moduleID)
	if err != nil {
		return err
	}
	if assigned {
		s.logger.Warn().Int64("module_id", moduleID).Msg("edit of assigned module rejected")
		return ErrModuleLocked
	}
	return nil
}

func (s *Service) GetQuestion(ctx context.Context, key QuestionKey) (*Question, error) {
	q, err := s.modules.GetQuestion(ctx, key)
	if err != nil {
		return nil, err
	}
	q.Kind = q.DetectKind()
	return q, nil
}

// GetModuleQuestions returns the questions of a module with their options.
func (s *Service) GetModuleQuestions(ctx context.Context, moduleID int64) ([]*Question, error) {
	if _, err := s.modules.GetByID(ctx, moduleID); err != nil {
		return nil, err
	}
	questions, err := s.modules.ListQuestions(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	for _, q := range questions {
		q.Kind = q.DetectKind()
	}
	return questions, nil
}

func (s *Service) AddOption(ctx context.Context, o *OptionAnswer) error {
	if strings.TrimSpace(o.Content) == "" {
		return apperr.Invalid("content is required")
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.modules.GetQuestion(ctx, o.Question()); err != nil {
			return err
		}
		if err := s.ensureEditable(ctx, o.ModuleID); err != nil {
			return err
		}
		return s.modules.AddOption(ctx, o)
	})
}

func (s *Service) GetOption(ctx context.Context, id int64) (*OptionAnswer, error) {
	return s.modules.GetOption(ctx, id)
}

// -- Output --

func (s *Service) CreateOutput(ctx context.Context, o *Output) error {
	if strings.TrimSpace(o.Text) == "" {
		return apperr.Invalid("text is required")
	}
	if !o.ConditionType.Valid() {
		return apperr.Invalid("invalid condition_type: %q", o.ConditionType)
	}
	return s.outputs.Create(ctx, o)
}

func (s *Service) GetOutput(ctx context.Context, id int64) (*Output, error) {
	return s.outputs.GetByID(ctx, id)
}

func (s *Service) AttachModuleOutput(ctx context.Context, moduleID, outputID int64) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.modules.GetByID(ctx, moduleID); err != nil {
			return err
		}
		if _, err := s.outputs.GetByID(ctx, outputID); err != nil {
			return err
		}
		if err := s.ensureEditable(ctx, moduleID); err != nil {
			return err
		}
		return s.outputs.AttachToModule(ctx, moduleID, outputID)
	})
}

func (s *Service) AttachQuestionOutput(ctx context.Context, key QuestionKey, outputID int64) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.modules.GetQuestion(ctx, key); err != nil {
			return err
		}
		if _, err := s.outputs.GetByID(ctx, outputID); err != nil {
			return err
		}
		if err := s.ensureEditable(ctx, key.ModuleID); err != nil {
			return err
		}
		return s.outputs.AttachToQuestion(ctx, key, outputID)
	})
}

func (s *Service) ListModuleOutputs(ctx context.Context, moduleID int64) ([]*Output, error) {
	return s.outputs.ListByModule(ctx, moduleID)
}

func (s *Service) ListQuestionOutputs(ctx context.Context, key QuestionKey) ([]*Output, error) {
	return s.outputs.ListByQuestion(ctx, key)
}
