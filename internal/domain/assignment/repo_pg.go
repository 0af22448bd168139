package assignment

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medq/medq/internal/domain/questionnaire"
	"github.com/medq/medq/internal/platform/db"
)

// =========== Assignment Repository ===========

type assignmentRepoPG struct{ pool *pgxpool.Pool }

func NewAssignmentRepoPG(pool *pgxpool.Pool) AssignmentRepository {
	return &assignmentRepoPG{pool: pool}
}

func (r *assignmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const assignmentCols = `id, id_doctor, id_patient, id_questionnaire, date, status`

func (r *assignmentRepoPG) scan(row pgx.Row) (*Assignment, error) {
	var a Assignment
	var status *string
	if err := row.Scan(&a.ID, &a.DoctorID, &a.PatientID, &a.QuestionnaireID, &a.Date, &status); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}
	if status != nil {
		a.Status = Status(*status)
	}
	return &a, nil
}

// nullableStatus stores the unset status as NULL.
func nullableStatus(s Status) *string {
	if s == StatusUnset {
		return nil
	}
	v := string(s)
	return &v
}

func (r *assignmentRepoPG) Create(ctx context.Context, a *Assignment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO assignment (id_doctor, id_patient, id_questionnaire, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, date`,
		a.DoctorID, a.PatientID, a.QuestionnaireID, nullableStatus(a.Status)).Scan(&a.ID, &a.Date)
	if name, ok := db.ForeignKeyViolation(err); ok {
		switch name {
		case "assignment_doctor_fkey":
			return ErrDoctorNotFound
		case "assignment_patient_fkey":
			return ErrPatientNotFound
		default:
			return questionnaire.ErrQuestionnaireNotFound
		}
	}
	return err
}

func (r *assignmentRepoPG) GetByID(ctx context.Context, id int64) (*Assignment, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+assignmentCols+` FROM assignment WHERE id = $1`, id))
}

func (r *assignmentRepoPG) GetForUpdate(ctx context.Context, id int64) (*Assignment, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+assignmentCols+` FROM assignment WHERE id = $1 FOR UPDATE`, id))
}

func (r *assignmentRepoPG) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE assignment SET status = $2 WHERE id = $1`, id, nullableStatus(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}

func (r *assignmentRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Assignment, int, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.DoctorID != "" {
		args = append(args, f.DoctorID)
		where = append(where, fmt.Sprintf("id_doctor = $%d", len(args)))
	}
	if f.PatientID != "" {
		args = append(args, f.PatientID)
		where = append(where, fmt.Sprintf("id_patient = $%d", len(args)))
	}
	if f.Status != nil {
		if *f.Status == StatusUnset {
			where = append(where, "status IS NULL")
		} else {
			args = append(args, string(*f.Status))
			where = append(where, fmt.Sprintf("status = $%d", len(args)))
		}
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM assignment`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+assignmentCols+` FROM assignment`+clause+
			fmt.Sprintf(` ORDER BY date DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Assignment
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *assignmentRepoPG) ListDoctorPatients(ctx context.Context, doctorID string) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT id_patient FROM assignment WHERE id_doctor = $1 ORDER BY id_patient`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	patients := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

// =========== Answer Repository ===========

type answerRepoPG struct{ pool *pgxpool.Pool }

func NewAnswerRepoPG(pool *pgxpool.Pool) AnswerRepository {
	return &answerRepoPG{pool: pool}
}

func (r *answerRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const answerSelect = `
	SELECT a.assignment_id, a.module_id, a.question_id, a.option_id, a.open_answer, a.date, o.score
	FROM answer a
	LEFT JOIN option_answer o ON o.id = a.option_id`

func (r *answerRepoPG) scan(row pgx.Row) (*Answer, error) {
	var a Answer
	if err := row.Scan(&a.AssignmentID, &a.ModuleID, &a.QuestionID, &a.OptionID, &a.OpenAnswer, &a.Date, &a.OptionScore); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrAnswerNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *answerRepoPG) Get(ctx context.Context, assignmentID int64, key questionnaire.QuestionKey) (*Answer, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, answerSelect+`
		WHERE a.assignment_id = $1 AND a.module_id = $2 AND a.question_id = $3`,
		assignmentID, key.ModuleID, key.QuestionID))
}

func (r *answerRepoPG) Upsert(ctx context.Context, a *Answer) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO answer (assignment_id, question_id, module_id, option_id, open_answer)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (assignment_id, question_id, module_id)
		DO UPDATE SET option_id = EXCLUDED.option_id, open_answer = EXCLUDED.open_answer, date = NOW()
		RETURNING date`,
		a.AssignmentID, a.QuestionID, a.ModuleID, a.OptionID, a.OpenAnswer).Scan(&a.Date)
	if name, ok := db.ForeignKeyViolation(err); ok {
		switch name {
		case "answer_assignment_id_fkey":
			return ErrAssignmentNotFound
		case "answer_option_id_fkey":
			return questionnaire.ErrOptionNotFound
		default:
			return questionnaire.ErrQuestionNotFound
		}
	}
	return err
}

func (r *answerRepoPG) ListByAssignment(ctx context.Context, assignmentID int64) ([]*Answer, error) {
	rows, err := r.conn(ctx).Query(ctx, answerSelect+`
		WHERE a.assignment_id = $1 ORDER BY a.module_id, a.question_id`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	answers := []*Answer{}
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// ModuleScore sums the scores of the selected options. Free-text answers
// have no option and add nothing.
func (r *answerRepoPG) ModuleScore(ctx context.Context, assignmentID, moduleID int64) (int, error) {
	var score int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(o.score), 0)
		FROM answer a
		JOIN option_answer o ON o.id = a.option_id
		WHERE a.assignment_id = $1 AND a.module_id = $2`,
		assignmentID, moduleID).Scan(&score)
	if err != nil {
		return 0, fmt.Errorf("module score: %w", err)
	}
	return score, nil
}
