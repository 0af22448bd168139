package questionnaire

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medq/medq/internal/platform/db"
)

// =========== Questionnaire Repository ===========

type questionnaireRepoPG struct{ pool *pgxpool.Pool }

func NewQuestionnaireRepoPG(pool *pgxpool.Pool) QuestionnaireRepository {
	return &questionnaireRepoPG{pool: pool}
}

func (r *questionnaireRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const questionnaireCols = `id, title, description, created_by, created_at`

func (r *questionnaireRepoPG) scan(row pgx.Row) (*Questionnaire, error) {
	var q Questionnaire
	if err := row.Scan(&q.ID, &q.Title, &q.Description, &q.CreatedBy, &q.CreatedAt); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrQuestionnaireNotFound
		}
		return nil, err
	}
	return &q, nil
}

func (r *questionnaireRepoPG) Create(ctx context.Context, q *Questionnaire) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO questionnaire (title, description, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		q.Title, q.Description, q.CreatedBy).Scan(&q.ID, &q.CreatedAt)
}

func (r *questionnaireRepoPG) GetByID(ctx context.Context, id int64) (*Questionnaire, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+questionnaireCols+` FROM questionnaire WHERE id = $1`, id))
}

func (r *questionnaireRepoPG) List(ctx context.Context, limit, offset int) ([]*Questionnaire, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM questionnaire`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+questionnaireCols+` FROM questionnaire ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Questionnaire
	for rows.Next() {
		q, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, q)
	}
	return items, total, rows.Err()
}

func (r *questionnaireRepoPG) LinkModule(ctx context.Context, questionnaireID, moduleID int64, position int) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO questionnaire_module_link (questionnaire_id, module_id, position)
		VALUES ($1, $2, $3)
		ON CONFLICT (questionnaire_id, module_id) DO UPDATE SET position = EXCLUDED.position`,
		questionnaireID, moduleID, position)
	if name, ok := db.ForeignKeyViolation(err); ok {
		if name == "questionnaire_module_link_module_id_fkey" {
			return ErrModuleNotFound
		}
		return ErrQuestionnaireNotFound
	}
	return err
}

func (r *questionnaireRepoPG) ListModules(ctx context.Context, questionnaireID int64) ([]*Module, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT m.id, m.title, m.description, m.created_by
		FROM questionnaire_module_link l
		JOIN module m ON m.id = l.module_id
		WHERE l.questionnaire_id = $1
		ORDER BY l.position, m.id`, questionnaireID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Module
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.CreatedBy); err != nil {
			return nil, err
		}
		items = append(items, &m)
	}
	return items, rows.Err()
}

// =========== Module Repository ===========

type moduleRepoPG struct{ pool *pgxpool.Pool }

func NewModuleRepoPG(pool *pgxpool.Pool) ModuleRepository {
	return &moduleRepoPG{pool: pool}
}

func (r *moduleRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const moduleCols = `id, title, description, created_by`

func (r *moduleRepoPG) scan(row pgx.Row) (*Module, error) {
	var m Module
	if err := row.Scan(&m.ID, &m.Title, &m.Description, &m.CreatedBy); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrModuleNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *moduleRepoPG) Create(ctx context.Context, m *Module) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO module (title, description, created_by)
		VALUES ($1, $2, $3)
		RETURNING id`,
		m.Title, m.Description, m.CreatedBy).Scan(&m.ID)
}

func (r *moduleRepoPG) GetByID(ctx context.Context, id int64) (*Module, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+moduleCols+` FROM module WHERE id = $1`, id))
}

func (r *moduleRepoPG) List(ctx context.Context, limit, offset int) ([]*Module, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM module`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+moduleCols+` FROM module ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Module
	for rows.Next() {
		m, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

// Assigned first locks every questionnaire holding the module, which blocks
// assignment inserts against them (their foreign key check needs a key share
// lock) until the surrounding transaction ends.
func (r *moduleRepoPG) Assigned(ctx context.Context, moduleID int64) (bool, error) {
	if _, err := r.conn(ctx).Exec(ctx, `
		SELECT 1 FROM questionnaire q
		JOIN questionnaire_module_link l ON l.questionnaire_id = q.id
		WHERE l.module_id = $1
		FOR UPDATE OF q`, moduleID); err != nil {
		return false, err
	}
	var assigned bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM assignment a
			JOIN questionnaire_module_link l ON l.questionnaire_id = a.id_questionnaire
			WHERE l.module_id = $1)`, moduleID).Scan(&assigned)
	return assigned, err
}

func (r *moduleRepoPG) AddQuestion(ctx context.Context, q *Question) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO question (module_id, content, position)
		VALUES ($1, $2, $3)
		RETURNING id`,
		q.ModuleID, q.Content, q.Position).Scan(&q.ID)
	if _, ok := db.ForeignKeyViolation(err); ok {
		return ErrModuleNotFound
	}
	return err
}

func (r *moduleRepoPG) GetQuestion(ctx context.Context, key QuestionKey) (*Question, error) {
	var q Question
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, module_id, content, position FROM question
		WHERE id = $1 AND module_id = $2`, key.QuestionID, key.ModuleID).
		Scan(&q.ID, &q.ModuleID, &q.Content, &q.Position)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}
	opts, err := r.listOptions(ctx, `WHERE question_id = $1 AND module_id = $2`, key.QuestionID, key.ModuleID)
	if err != nil {
		return nil, err
	}
	q.Options = opts
	return &q, nil
}

func (r *moduleRepoPG) ListQuestions(ctx context.Context, moduleID int64) ([]*Question, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, module_id, content, position FROM question
		WHERE module_id = $1 ORDER BY position, id`, moduleID)
	if err != nil {
		return nil, err
	}
	var questions []*Question
	byID := make(map[int64]*Question)
	for rows.Next() {
		q := &Question{Options: []*OptionAnswer{}}
		if err := rows.Scan(&q.ID, &q.ModuleID, &q.Content, &q.Position); err != nil {
			rows.Close()
			return nil, err
		}
		questions = append(questions, q)
		byID[q.ID] = q
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	opts, err := r.listOptions(ctx, `WHERE module_id = $1`, moduleID)
	if err != nil {
		return nil, err
	}
	for _, o := range opts {
		if q, ok := byID[o.QuestionID]; ok {
			q.Options = append(q.Options, o)
		}
	}
	return questions, nil
}

func (r *moduleRepoPG) listOptions(ctx context.Context, where string, args ...interface{}) ([]*OptionAnswer, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, question_id, module_id, content, score FROM option_answer `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	opts := []*OptionAnswer{}
	for rows.Next() {
		var o OptionAnswer
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.ModuleID, &o.Content, &o.Score); err != nil {
			return nil, err
		}
		opts = append(opts, &o)
	}
	return opts, rows.Err()
}

func (r *moduleRepoPG) AddOption(ctx context.Context, o *OptionAnswer) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO option_answer (question_id, module_id, content, score)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		o.QuestionID, o.ModuleID, o.Content, o.Score).Scan(&o.ID)
	if _, ok := db.ForeignKeyViolation(err); ok {
		return ErrQuestionNotFound
	}
	return err
}

func (r *moduleRepoPG) GetOption(ctx context.Context, id int64) (*OptionAnswer, error) {
	var o OptionAnswer
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, question_id, module_id, content, score FROM option_answer WHERE id = $1`, id).
		Scan(&o.ID, &o.QuestionID, &o.ModuleID, &o.Content, &o.Score)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrOptionNotFound
		}
		return nil, err
	}
	return &o, nil
}

// =========== Output Repository ===========

type outputRepoPG struct{ pool *pgxpool.Pool }

func NewOutputRepoPG(pool *pgxpool.Pool) OutputRepository {
	return &outputRepoPG{pool: pool}
}

func (r *outputRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *outputRepoPG) Create(ctx context.Context, o *Output) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO output (text, condition_type, condition_value)
		VALUES ($1, $2, $3)
		RETURNING id`,
		o.Text, string(o.ConditionType), o.ConditionValue).Scan(&o.ID)
}

func (r *outputRepoPG) GetByID(ctx context.Context, id int64) (*Output, error) {
	var o Output
	err := r.conn(ctx).QueryRow(ctx, `SELECT id, text, condition_type, condition_value FROM output WHERE id = $1`, id).
		Scan(&o.ID, &o.Text, &o.ConditionType, &o.ConditionValue)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrOutputNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *outputRepoPG) AttachToModule(ctx context.Context, moduleID, outputID int64) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO module_output_link (module_id, output_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, moduleID, outputID)
	if name, ok := db.ForeignKeyViolation(err); ok {
		if name == "module_output_link_output_id_fkey" {
			return ErrOutputNotFound
		}
		return ErrModuleNotFound
	}
	return err
}

func (r *outputRepoPG) AttachToQuestion(ctx context.Context, key QuestionKey, outputID int64) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO question_output_link (question_id, module_id, output_id) VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`, key.QuestionID, key.ModuleID, outputID)
	if name, ok := db.ForeignKeyViolation(err); ok {
		if name == "question_output_link_output_id_fkey" {
			return ErrOutputNotFound
		}
		return ErrQuestionNotFound
	}
	return err
}

func (r *outputRepoPG) ListByModule(ctx context.Context, moduleID int64) ([]*Output, error) {
	return r.list(ctx, `
		SELECT o.id, o.text, o.condition_type, o.condition_value
		FROM module_output_link l JOIN output o ON o.id = l.output_id
		WHERE l.module_id = $1 ORDER BY o.id`, moduleID)
}

func (r *outputRepoPG) ListByQuestion(ctx context.Context, key QuestionKey) ([]*Output, error) {
	return r.list(ctx, `
		SELECT o.id, o.text, o.condition_type, o.condition_value
		FROM question_output_link l JOIN output o ON o.id = l.output_id
		WHERE l.question_id = $1 AND l.module_id = $2 ORDER BY o.id`, key.QuestionID, key.ModuleID)
}

func (r *outputRepoPG) list(ctx context.Context, sql string, args ...interface{}) ([]*Output, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list outputs: %w", err)
	}
	defer rows.Close()
	var items []*Output
	for rows.Next() {
		var o Output
		if err := rows.Scan(&o.ID, &o.Text, &o.ConditionType, &o.ConditionValue); err != nil {
			return nil, err
		}
		items = append(items, &o)
	}
	return items, rows.Err()
}
