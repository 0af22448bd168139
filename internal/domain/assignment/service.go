package assignment

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/medq/medq/internal/domain/questionnaire"
	"github.com/medq/medq/internal/platform/apperr"
	"github.com/medq/medq/internal/platform/db"
	"github.com/medq/medq/internal/platform/events"
)

const publishTimeout = 5 * time.Second

// Service owns the assignment lifecycle and the answer store. Every status
// write happens with the assignment row locked, so answer writes and
// finish calls on one assignment are serialised.
type Service struct {
	assignments AssignmentRepository
	answers     AnswerRepository
	catalog     Catalog
	tx          db.Transactor
	publisher   events.Publisher
	logger      zerolog.Logger
}

func NewService(
	assignments AssignmentRepository,
	answers AnswerRepository,
	catalog Catalog,
	tx db.Transactor,
	publisher events.Publisher,
	logger zerolog.Logger,
) *Service {
	return &Service{
		assignments: assignments,
		answers:     answers,
		catalog:     catalog,
		tx:          tx,
		publisher:   publisher,
		logger:      logger.With().Str("component", "assignment").Logger(),
	}
}

// -- Assignment --

func (s *Service) CreateAssignment(ctx context.Context, in AssignmentInput) (*Assignment, error) {
	if strings.TrimSpace(in.DoctorID) == "" {
		return nil, apperr.Invalid("id_doctor is required")
	}
	if strings.TrimSpace(in.PatientID) == "" {
		return nil, apperr.Invalid("id_patient is required")
	}
	if in.QuestionnaireID <= 0 {
		return nil, apperr.Invalid("id_questionnaire is required")
	}

	a := &Assignment{
		DoctorID:        in.DoctorID,
		PatientID:       in.PatientID,
		QuestionnaireID: in.QuestionnaireID,
		Status:          StatusUnset,
	}
	if err := s.assignments.Create(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info().
		Int64("assignment_id", a.ID).
		Str("doctor", a.DoctorID).
		Int64("questionnaire_id", a.QuestionnaireID).
		Msg("assignment created")
	s.publish(ctx, events.AssignmentCreated, a)
	return a, nil
}

func (s *Service) GetAssignment(ctx context.Context, id int64) (*Assignment, error) {
	return s.assignments.GetByID(ctx, id)
}

func (s *Service) ListAssignments(ctx context.Context, f ListFilter, limit, offset int) ([]*Assignment, int, error) {
	if f.Status != nil && *f.Status != StatusUnset && !f.Status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	return s.assignments.List(ctx, f, limit, offset)
}

// ListDoctorPatients returns the distinct patients a doctor has assigned
// questionnaires to.
func (s *Service) ListDoctorPatients(ctx context.Context, doctorID string) ([]string, error) {
	return s.assignments.ListDoctorPatients(ctx, doctorID)
}

// UpdateStatus overwrites the status without consulting the lifecycle table.
// It is an administrative escape hatch.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status Status) (*Assignment, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	var a *Assignment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if a, err = s.assignments.GetForUpdate(ctx, id); err != nil {
			return err
		}
		if err := s.assignments.UpdateStatus(ctx, id, status); err != nil {
			return err
		}
		s.logTransition(a, status, "status overwritten")
		a.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.AssignmentStatusChanged, a)
	return a, nil
}

func (s *Service) StartAssignment(ctx context.Context, id int64) (*Assignment, error) {
	return s.apply(ctx, id, EventStart)
}

func (s *Service) ArchiveAssignment(ctx context.Context, id int64) (*Assignment, error) {
	return s.apply(ctx, id, EventArchive)
}

// FinishAssignment moves the assignment to finished once every question of
// every module of its questionnaire has an answer.
func (s *Service) FinishAssignment(ctx context.Context, id int64) (*Assignment, error) {
	var a *Assignment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if a, err = s.assignments.GetForUpdate(ctx, id); err != nil {
			return err
		}
		to, err := Transition(a.Status, EventFinish)
		if err != nil {
			return err
		}
		missing, err := s.unanswered(ctx, a)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return &IncompleteAssignmentError{Missing: missing}
		}
		if err := s.assignments.UpdateStatus(ctx, a.ID, to); err != nil {
			return err
		}
		s.logTransition(a, to, "assignment finished")
		a.Status = to
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.AssignmentFinished, a)
	return a, nil
}

func (s *Service) apply(ctx context.Context, id int64, ev Event) (*Assignment, error) {
	var a *Assignment
	changed := false
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if a, err = s.assignments.GetForUpdate(ctx, id); err != nil {
			return err
		}
		to, err := Transition(a.Status, ev)
		if err != nil {
			return err
		}
		if to == a.Status {
			return nil
		}
		if err := s.assignments.UpdateStatus(ctx, a.ID, to); err != nil {
			return err
		}
		s.logTransition(a, to, string(ev))
		a.Status = to
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.publish(ctx, statusEvent(a.Status), a)
	}
	return a, nil
}

// statusEvent names the event emitted when an assignment enters status.
func statusEvent(status Status) string {
	switch status {
	case StatusDraft:
		return events.AssignmentDrafted
	case StatusInProgress:
		return events.AssignmentStarted
	case StatusFinished:
		return events.AssignmentFinished
	case StatusArchived:
		return events.AssignmentArchived
	}
	return events.AssignmentStatusChanged
}

// unanswered walks the questionnaire and returns the questions without an
// answered record, in module then question order.
func (s *Service) unanswered(ctx context.Context, a *Assignment) ([]questionnaire.QuestionKey, error) {
	modules, err := s.catalog.ListQuestionnaireModules(ctx, a.QuestionnaireID)
	if err != nil {
		return nil, err
	}
	answers, err := s.answers.ListByAssignment(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	answered := make(map[questionnaire.QuestionKey]bool, len(answers))
	for _, ans := range answers {
		if ans.Answered() {
			answered[ans.Key()] = true
		}
	}

	var missing []questionnaire.QuestionKey
	for _, m := range modules {
		questions, err := s.catalog.GetModuleQuestions(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		for _, q := range questions {
			if !answered[q.Key()] {
				missing = append(missing, q.Key())
			}
		}
	}
	return missing, nil
}

// -- Answers --

func (s *Service) GetAnswer(ctx context.Context, assignmentID int64, key questionnaire.QuestionKey) (*Answer, error) {
	if _, err := s.assignments.GetByID(ctx, assignmentID); err != nil {
		return nil, err
	}
	return s.answers.Get(ctx, assignmentID, key)
}

func (s *Service) ListAnswers(ctx context.Context, assignmentID int64) ([]*Answer, error) {
	if _, err := s.assignments.GetByID(ctx, assignmentID); err != nil {
		return nil, err
	}
	return s.answers.ListByAssignment(ctx, assignmentID)
}

// SaveAnswer records the answer to one question, replacing any previous
// answer to it. The first answer moves an unset assignment to draft;
// finished and archived assignments reject answers.
func (s *Service) SaveAnswer(ctx context.Context, in AnswerInput) (*Answer, error) {
	if in.OpenAnswer != nil && strings.TrimSpace(*in.OpenAnswer) == "" {
		in.OpenAnswer = nil
	}
	if in.OptionID == nil && in.OpenAnswer == nil {
		return nil, ErrEmptyAnswer
	}

	ans := &Answer{
		AssignmentID: in.AssignmentID,
		ModuleID:     in.ModuleID,
		QuestionID:   in.QuestionID,
		OptionID:     in.OptionID,
		OpenAnswer:   in.OpenAnswer,
	}
	var drafted *Assignment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, err := s.assignments.GetForUpdate(ctx, in.AssignmentID)
		if err != nil {
			return err
		}
		to, err := Transition(a.Status, EventAnswer)
		if err != nil {
			return err
		}
		score, err := s.checkQuestion(ctx, a, ans)
		if err != nil {
			return err
		}
		if to != a.Status {
			if err := s.assignments.UpdateStatus(ctx, a.ID, to); err != nil {
				return err
			}
			s.logTransition(a, to, "first answer")
			a.Status = to
			drafted = a
		}
		ans.OptionScore = score
		return s.answers.Upsert(ctx, ans)
	})
	if err != nil {
		return nil, err
	}
	if drafted != nil {
		s.publish(ctx, events.AssignmentDrafted, drafted)
	}
	return ans, nil
}

// checkQuestion verifies the question belongs to the assignment's
// questionnaire and the option to the question. It returns the option score.
func (s *Service) checkQuestion(ctx context.Context, a *Assignment, ans *Answer) (*int, error) {
	modules, err := s.catalog.ListQuestionnaireModules(ctx, a.QuestionnaireID)
	if err != nil {
		return nil, err
	}
	inQuestionnaire := false
	for _, m := range modules {
		if m.ID == ans.ModuleID {
			inQuestionnaire = true
			break
		}
	}
	if !inQuestionnaire {
		return nil, questionnaire.ErrQuestionNotFound
	}

	q, err := s.catalog.GetQuestion(ctx, ans.Key())
	if err != nil {
		return nil, err
	}
	if ans.OptionID == nil {
		return nil, nil
	}
	for _, o := range q.Options {
		if o.ID == *ans.OptionID {
			score := o.Score
			return &score, nil
		}
	}
	return nil, questionnaire.ErrOptionNotFound
}

// ModuleScore sums the selected option scores of one module.
func (s *Service) ModuleScore(ctx context.Context, assignmentID, moduleID int64) (int, error) {
	if _, err := s.assignments.GetByID(ctx, assignmentID); err != nil {
		return 0, err
	}
	return s.answers.ModuleScore(ctx, assignmentID, moduleID)
}

func (s *Service) logTransition(a *Assignment, to Status, reason string) {
	s.logger.Info().
		Int64("assignment_id", a.ID).
		Str("from", string(a.Status)).
		Str("to", string(to)).
		Str("reason", reason).
		Msg("assignment status changed")
}

// publish runs after commit. A broker failure is logged and swallowed: the
// state change already happened.
func (s *Service) publish(ctx context.Context, eventType string, a *Assignment) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	evt := events.New(eventType, a.ID, a.DoctorID, a.PatientID, string(a.Status))
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn().Err(err).
			Str("event_type", eventType).
			Int64("assignment_id", a.ID).
			Msg("event publish failed")
	}
}
