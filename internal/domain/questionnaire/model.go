package questionnaire

import (
	"fmt"
	"time"
)

// Questionnaire maps to the questionnaire table. Modules are linked through
// questionnaire_module_link and ordered by position.
type Questionnaire struct {
	ID          int64     `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedBy   *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	Modules     []*Module `json:"modules,omitempty"`
}

// Module maps to the module table.
type Module struct {
	ID          int64   `db:"id" json:"id"`
	Title       string  `db:"title" json:"title"`
	Description *string `db:"description" json:"description,omitempty"`
	CreatedBy   *string `db:"created_by" json:"created_by,omitempty"`
}

// QuestionKey identifies a question. Questions are module scoped, so the id
// alone is not enough.
type QuestionKey struct {
	ModuleID   int64 `json:"module_id"`
	QuestionID int64 `json:"question_id"`
}

func (k QuestionKey) String() string {
	return fmt.Sprintf("module %d question %d", k.ModuleID, k.QuestionID)
}

type QuestionKind string

const (
	KindYesNo    QuestionKind = "yes-no"
	KindMultiple QuestionKind = "multiple"
	KindText     QuestionKind = "text"
)

// Question maps to the question table, with its options attached on read.
type Question struct {
	ID       int64           `db:"id" json:"id"`
	ModuleID int64           `db:"module_id" json:"module_id"`
	Content  string          `db:"content" json:"content"`
	Position int             `db:"position" json:"position"`
	Kind     QuestionKind    `json:"kind,omitempty"`
	Options  []*OptionAnswer `json:"options"`
}

func (q *Question) Key() QuestionKey {
	return QuestionKey{ModuleID: q.ModuleID, QuestionID: q.ID}
}

// DetectKind derives the answer widget from the option count: two options
// are a yes/no question, more are multiple choice, anything else is free text.
func (q *Question) DetectKind() QuestionKind {
	switch n := len(q.Options); {
	case n == 2:
		return KindYesNo
	case n > 2:
		return KindMultiple
	default:
		return KindText
	}
}

// OptionAnswer maps to the option_answer table.
type OptionAnswer struct {
	ID         int64  `db:"id" json:"id"`
	QuestionID int64  `db:"question_id" json:"question_id"`
	ModuleID   int64  `db:"module_id" json:"module_id"`
	Content    string `db:"content" json:"content"`
	Score      int    `db:"score" json:"score"`
}

func (o *OptionAnswer) Question() QuestionKey {
	return QuestionKey{ModuleID: o.ModuleID, QuestionID: o.QuestionID}
}

// Output is a text fragment shown when a score satisfies its condition. It is
// attached to modules and questions through link tables.
type Output struct {
	ID             int64         `db:"id" json:"id"`
	Text           string        `db:"text" json:"text"`
	ConditionType  ConditionType `db:"condition_type" json:"condition_type"`
	ConditionValue int           `db:"condition_value" json:"condition_value"`
}

// Matches evaluates the output's condition against actual.
func (o *Output) Matches(actual int) (bool, error) {
	return Evaluate(o.ConditionType, o.ConditionValue, actual)
}
