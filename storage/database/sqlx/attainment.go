package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/outcomes/core/attainment"
)

// upsertChunkSize keeps a single INSERT under the postgres bind parameters limit.
const upsertChunkSize = 1000

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type (
	attainmentRepository struct {
		db *sqlx.DB
	}

	courseRow struct {
		ID               string  `db:"id"`
		Code             string  `db:"code"`
		Name             string  `db:"name"`
		ProgramID        string  `db:"program_id"`
		BatchID          string  `db:"batch_id"`
		AcademicYear     string  `db:"academic_year"`
		Status           string  `db:"status"`
		TargetPercentage float64 `db:"target_percentage"`
		Level1           float64 `db:"level1_threshold"`
		Level2           float64 `db:"level2_threshold"`
		Level3           float64 `db:"level3_threshold"`
	}

	outcomeRow struct {
		ID          string `db:"id"`
		ParentID    string `db:"parent_id"`
		Code        string `db:"code"`
		Description string `db:"description"`
	}

	markRow struct {
		QuestionID    string       `db:"question_id"`
		StudentID     string       `db:"student_id"`
		AcademicYear  string       `db:"academic_year"`
		ObtainedMarks null.Float64 `db:"obtained_marks"`
		MaxMarks      float64      `db:"max_marks"`
	}

	questionCORow struct {
		QuestionID string `db:"question_id"`
		COID       string `db:"co_id"`
	}

	coPORow struct {
		CourseID string `db:"course_id"`
		COID     string `db:"co_id"`
		POID     string `db:"po_id"`
		Level    int    `db:"level"`
	}

	attainmentRow struct {
		ID           string    `db:"id"`
		COID         string    `db:"co_id"`
		StudentID    string    `db:"student_id"`
		AcademicYear string    `db:"academic_year"`
		Percentage   float64   `db:"percentage"`
		MetTarget    bool      `db:"met_target"`
		UpdatedAt    time.Time `db:"updated_at"`
	}
)

var _ attainment.Repository = (*attainmentRepository)(nil) // interface compliance check

var courseColumns = []string{
	"id", "code", "name", "program_id", "batch_id", "academic_year", "status",
	"target_percentage", "level1_threshold", "level2_threshold", "level3_threshold",
}

func NewAttainmentRepository(db *sqlx.DB) *attainmentRepository {
	return &attainmentRepository{db: db}
}

func (r courseRow) toCourse() attainment.Course {
	return attainment.Course{
		ID:           r.ID,
		Code:         r.Code,
		Name:         r.Name,
		ProgramID:    r.ProgramID,
		BatchID:      r.BatchID,
		AcademicYear: r.AcademicYear,
		Settings: attainment.CourseSettings{
			TargetPercentage: r.TargetPercentage,
			Thresholds:       attainment.Thresholds{Level1: r.Level1, Level2: r.Level2, Level3: r.Level3},
			Status:           attainment.CourseStatus(r.Status),
		},
	}
}

func (r attainmentRow) toAttainment() attainment.StudentCOAttainment {
	return attainment.StudentCOAttainment{
		ID:           r.ID,
		COID:         r.COID,
		StudentID:    r.StudentID,
		AcademicYear: r.AcademicYear,
		Percentage:   r.Percentage,
		MetTarget:    r.MetTarget,
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func (repo *attainmentRepository) selectContext(ctx context.Context, dest interface{}, b sq.SelectBuilder) error {
	q, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return repo.db.SelectContext(ctx, dest, q, args...)
}

func (repo *attainmentRepository) getContext(ctx context.Context, dest interface{}, b sq.SelectBuilder) error {
	q, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return repo.db.GetContext(ctx, dest, q, args...)
}

func (repo *attainmentRepository) FetchCourse(ctx context.Context, courseID string) (attainment.Course, error) {
	var row courseRow
	err := repo.getContext(ctx, &row, psql.Select(courseColumns...).From("courses").Where(sq.Eq{"id": courseID}))
	if errors.Is(err, sql.ErrNoRows) {
		return attainment.Course{}, attainment.ErrCourseNotFound
	} else if err != nil {
		return attainment.Course{}, errors.Wrap(err, "selecting course")
	}
	return row.toCourse(), nil
}

func (repo *attainmentRepository) FetchCourseSettings(ctx context.Context, courseID string) (attainment.CourseSettings, error) {
	course, err := repo.FetchCourse(ctx, courseID)
	return course.Settings, err
}

func (repo *attainmentRepository) FetchCourseOutcomes(ctx context.Context, courseID string) ([]attainment.CourseOutcome, error) {
	var rows []outcomeRow
	b := psql.Select("id", "course_id AS parent_id", "code", "description").
		From("course_outcomes").
		Where(sq.Eq{"course_id": courseID}).
		OrderBy("code", "id")
	if err := repo.selectContext(ctx, &rows, b); err != nil {
		return nil, errors.Wrap(err, "selecting course outcomes")
	}

	cos := make([]attainment.CourseOutcome, 0, len(rows))
	for _, r := range rows {
		cos = append(cos, attainment.CourseOutcome{ID: r.ID, CourseID: r.ParentID, Code: r.Code, Description: r.Description})
	}
	return cos, nil
}

func (repo *attainmentRepository) FetchProgramOutcomes(ctx context.Context, programID string) ([]attainment.ProgramOutcome, error) {
	var rows []outcomeRow
	b := psql.Select("id", "program_id AS parent_id", "code", "description").
		From("program_outcomes").
		Where(sq.Eq{"program_id": programID}).
		OrderBy("code", "id")
	if err := repo.selectContext(ctx, &rows, b); err != nil {
		return nil, errors.Wrap(err, "selecting program outcomes")
	}

	pos := make([]attainment.ProgramOutcome, 0, len(rows))
	for _, r := range rows {
		pos = append(pos, attainment.ProgramOutcome{ID: r.ID, ProgramID: r.ParentID, Code: r.Code, Description: r.Description})
	}
	return pos, nil
}

func (repo *attainmentRepository) FetchBatchCourses(ctx context.Context, batchID string, filter attainment.CourseFilter) ([]attainment.Course, error) {
	var exists bool
	if err := repo.getContext(ctx, &exists, psql.Select().Column(sq.Expr("EXISTS (SELECT 1 FROM batches WHERE id = ?)", batchID))); err != nil {
		return nil, errors.Wrap(err, "checking batch")
	}
	if !exists {
		return nil, attainment.ErrBatchNotFound
	}

	where := sq.Eq{"batch_id": batchID}
	if filter.AcademicYear != "" {
		where["academic_year"] = filter.AcademicYear
	}
	if filter.CourseStatus != "" {
		where["status"] = string(filter.CourseStatus)
	}

	var rows []courseRow
	if err := repo.selectContext(ctx, &rows, psql.Select(courseColumns...).From("courses").Where(where).OrderBy("code", "id")); err != nil {
		return nil, errors.Wrap(err, "selecting batch courses")
	}

	courses := make([]attainment.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.toCourse())
	}
	return courses, nil
}

func (repo *attainmentRepository) FetchMarks(ctx context.Context, courseID, academicYear string) ([]attainment.StudentMark, error) {
	where := sq.Eq{"q.course_id": courseID}
	if academicYear != "" {
		where["m.academic_year"] = academicYear
	}
	b := psql.Select("m.question_id", "m.student_id", "m.academic_year", "m.obtained_marks", "m.max_marks").
		From("student_marks m").
		Join("questions q ON q.id = m.question_id").
		Where(where)

	var rows []markRow
	if err := repo.selectContext(ctx, &rows, b); err != nil {
		return nil, errors.Wrap(err, "selecting marks")
	}

	marks := make([]attainment.StudentMark, 0, len(rows))
	for _, r := range rows {
		marks = append(marks, attainment.StudentMark{
			QuestionID:    r.QuestionID,
			StudentID:     r.StudentID,
			AcademicYear:  r.AcademicYear,
			ObtainedMarks: r.ObtainedMarks.Ptr(),
			MaxMarks:      r.MaxMarks,
		})
	}
	return marks, nil
}

func (repo *attainmentRepository) FetchEnrolledStudents(ctx context.Context, courseID string) ([]string, error) {
	students := make([]string, 0)
	b := psql.Select("student_id").From("enrollments").Where(sq.Eq{"course_id": courseID}).OrderBy("student_id")
	if err := repo.selectContext(ctx, &students, b); err != nil {
		return nil, errors.Wrap(err, "selecting enrollments")
	}
	return students, nil
}

func (repo *attainmentRepository) FetchQuestionCOMappings(ctx context.Context, courseID string) ([]attainment.QuestionCOMapping, error) {
	var rows []questionCORow
	b := psql.Select("qc.question_id", "qc.co_id").
		From("question_co_mappings qc").
		Join("questions q ON q.id = qc.question_id").
		Where(sq.Eq{"q.course_id": courseID})
	if err := repo.selectContext(ctx, &rows, b); err != nil {
		return nil, errors.Wrap(err, "selecting question-CO mappings")
	}

	mappings := make([]attainment.QuestionCOMapping, 0, len(rows))
	for _, r := range rows {
		mappings = append(mappings, attainment.QuestionCOMapping{QuestionID: r.QuestionID, COID: r.COID})
	}
	return mappings, nil
}

func (repo *attainmentRepository) FetchCOPOMappings(ctx context.Context, courseID string) ([]attainment.COPOMapping, error) {
	var rows []coPORow
	b := psql.Select("course_id", "co_id", "po_id", "level").From("co_po_mappings").Where(sq.Eq{"course_id": courseID})
	if err := repo.selectContext(ctx, &rows, b); err != nil {
		return nil, errors.Wrap(err, "selecting CO-PO mappings")
	}

	mappings := make([]attainment.COPOMapping, 0, len(rows))
	for _, r := range rows {
		mappings = append(mappings, attainment.COPOMapping{CourseID: r.CourseID, COID: r.COID, POID: r.POID, Level: r.Level})
	}
	return mappings, nil
}

// UpsertCOAttainments writes the rows in one transaction; existing rows keep their id.
func (repo *attainmentRepository) UpsertCOAttainments(ctx context.Context, _, _ string, rows []attainment.StudentCOAttainment) (err error) {
	if len(rows) == 0 {
		return nil
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for start := 0; start < len(rows); start += upsertChunkSize {
		end := start + upsertChunkSize
		if end > len(rows) {
			end = len(rows)
		}

		q, args, qErr := upsertAttainmentsQuery(rows[start:end]).ToSql()
		if qErr != nil {
			return errors.Wrap(qErr, "building upsert")
		}
		if _, err = tx.ExecContext(ctx, q, args...); err != nil {
			return errors.Wrap(err, "upserting CO attainments")
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing CO attainments")
	}
	return nil
}

func upsertAttainmentsQuery(rows []attainment.StudentCOAttainment) sq.InsertBuilder {
	b := psql.Insert("course_outcome_attainments").
		Columns("id", "co_id", "student_id", "academic_year", "percentage", "met_target", "updated_at").
		Suffix("ON CONFLICT (co_id, student_id, academic_year) DO UPDATE SET " +
			"percentage = EXCLUDED.percentage, met_target = EXCLUDED.met_target, updated_at = EXCLUDED.updated_at")
	for _, r := range rows {
		b = b.Values(r.ID, r.COID, r.StudentID, r.AcademicYear, r.Percentage, r.MetTarget, r.UpdatedAt)
	}
	return b
}

func (repo *attainmentRepository) QueryCOAttainments(ctx context.Context, courseID, academicYear string) ([]attainment.StudentCOAttainment, error) {
	b := psql.Select("a.id", "a.co_id", "a.student_id", "a.academic_year", "a.percentage", "a.met_target", "a.updated_at").
		From("course_outcome_attainments a").
		Join("course_outcomes co ON co.id = a.co_id").
		Where(sq.Eq{"co.course_id": courseID, "a.academic_year": academicYear}).
		OrderBy("co.code", "a.co_id", "a.student_id")

	var rows []attainmentRow
	if err := repo.selectContext(ctx, &rows, b); err != nil {
		return nil, errors.Wrap(err, "selecting CO attainments")
	}

	res := make([]attainment.StudentCOAttainment, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.toAttainment())
	}
	return res, nil
}
