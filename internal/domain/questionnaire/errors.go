package questionnaire

import "github.com/medq/medq/internal/platform/apperr"

var (
	ErrQuestionnaireNotFound = apperr.New(apperr.ErrNotFound, "questionnaire not found")
	ErrModuleNotFound        = apperr.New(apperr.ErrNotFound, "module not found")
	ErrQuestionNotFound      = apperr.New(apperr.ErrNotFound, "question not found")
	ErrOptionNotFound        = apperr.New(apperr.ErrNotFound, "option not found")
	ErrOutputNotFound        = apperr.New(apperr.ErrNotFound, "output not found")

	// ErrModuleLocked rejects edits to a module whose questionnaire has
	// already been assigned; answers and reports depend on its content.
	ErrModuleLocked = apperr.New(apperr.ErrInvalidState, "module belongs to an assigned questionnaire")
)
