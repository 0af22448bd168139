package questionnaire

import "context"

type QuestionnaireRepository interface {
	Create(ctx context.Context, q *Questionnaire) error
	GetByID(ctx context.Context, id int64) (*Questionnaire, error)
	List(ctx context.Context, limit, offset int) ([]*Questionnaire, int, error)
	LinkModule(ctx context.Context, questionnaireID, moduleID int64, position int) error
	ListModules(ctx context.Context, questionnaireID int64) ([]*Module, error)
}

type ModuleRepository interface {
	Create(ctx context.Context, m *Module) error
	GetByID(ctx context.Context, id int64) (*Module, error)
	List(ctx context.Context, limit, offset int) ([]*Module, int, error)
	AddQuestion(ctx context.Context, q *Question) error
	// GetQuestion and ListQuestions return questions with their options.
	GetQuestion(ctx context.Context, key QuestionKey) (*Question, error)
	ListQuestions(ctx context.Context, moduleID int64) ([]*Question, error)
	AddOption(ctx context.Context, o *OptionAnswer) error
	GetOption(ctx context.Context, id int64) (*OptionAnswer, error)
	// Assigned reports whether any assignment references a questionnaire
	// containing the module.
	Assigned(ctx context.Context, moduleID int64) (bool, error)
}

type OutputRepository interface {
	Create(ctx context.Context, o *Output) error
	GetByID(ctx context.Context, id int64) (*Output, error)
	AttachToModule(ctx context.Context, moduleID, outputID int64) error
	AttachToQuestion(ctx context.Context, key QuestionKey, outputID int64) error
	ListByModule(ctx context.Context, moduleID int64) ([]*Output, error)
	ListByQuestion(ctx context.Context, key QuestionKey) ([]*Output, error)
}
