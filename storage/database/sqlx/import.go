package sqlxrepos

import (
	"context"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/outcomes/core/attainment"
)

type importTable struct {
	name     string
	columns  []string
	conflict string
	values   [][]interface{}
}

// Import upserts a dataset in a single transaction. Marks follow latest-write-wins on their natural key.
func (repo *attainmentRepository) Import(ctx context.Context, ds attainment.Dataset) (err error) {
	ds = ds.Normalized()
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, t := range importTables(ds) {
		for start := 0; start < len(t.values); start += upsertChunkSize {
			end := start + upsertChunkSize
			if end > len(t.values) {
				end = len(t.values)
			}

			q, args, qErr := t.query(t.values[start:end]).ToSql()
			if qErr != nil {
				return errors.Wrapf(qErr, "building %s import", t.name)
			}
			if _, err = tx.ExecContext(ctx, q, args...); err != nil {
				return errors.Wrapf(err, "importing %s", t.name)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing import")
	}
	return nil
}

func (t importTable) query(values [][]interface{}) sq.InsertBuilder {
	b := psql.Insert(t.name).Columns(t.columns...).Suffix(t.conflict)
	for _, v := range values {
		b = b.Values(v...)
	}
	return b
}

// importTables lists the dataset rows per table, parents first.
func importTables(ds attainment.Dataset) []importTable {
	programs := make(map[string]struct{})
	for _, b := range ds.Batches {
		programs[b.ProgramID] = struct{}{}
	}
	for _, c := range ds.Courses {
		programs[c.ProgramID] = struct{}{}
	}
	for _, po := range ds.ProgramOutcomes {
		programs[po.ProgramID] = struct{}{}
	}
	programIDs := make([]string, 0, len(programs))
	for id := range programs {
		programIDs = append(programIDs, id)
	}
	sort.Strings(programIDs)

	tables := []importTable{
		{name: "programs", columns: []string{"id", "code"}, conflict: "ON CONFLICT (id) DO NOTHING"},
		{name: "batches", columns: []string{"id", "program_id", "name"},
			conflict: "ON CONFLICT (id) DO UPDATE SET program_id = EXCLUDED.program_id, name = EXCLUDED.name"},
		{name: "courses", columns: courseColumns,
			conflict: "ON CONFLICT (id) DO UPDATE SET code = EXCLUDED.code, name = EXCLUDED.name, " +
				"program_id = EXCLUDED.program_id, batch_id = EXCLUDED.batch_id, academic_year = EXCLUDED.academic_year, " +
				"status = EXCLUDED.status, target_percentage = EXCLUDED.target_percentage, " +
				"level1_threshold = EXCLUDED.level1_threshold, level2_threshold = EXCLUDED.level2_threshold, " +
				"level3_threshold = EXCLUDED.level3_threshold"},
		{name: "course_outcomes", columns: []string{"id", "course_id", "code", "description"},
			conflict: "ON CONFLICT (id) DO UPDATE SET course_id = EXCLUDED.course_id, code = EXCLUDED.code, description = EXCLUDED.description"},
		{name: "program_outcomes", columns: []string{"id", "program_id", "code", "description"},
			conflict: "ON CONFLICT (id) DO UPDATE SET program_id = EXCLUDED.program_id, code = EXCLUDED.code, description = EXCLUDED.description"},
		{name: "questions", columns: []string{"id", "course_id", "assessment_id", "max_marks"},
			conflict: "ON CONFLICT (id) DO UPDATE SET course_id = EXCLUDED.course_id, assessment_id = EXCLUDED.assessment_id, max_marks = EXCLUDED.max_marks"},
		{name: "question_co_mappings", columns: []string{"question_id", "co_id"}, conflict: "ON CONFLICT DO NOTHING"},
		{name: "co_po_mappings", columns: []string{"course_id", "co_id", "po_id", "level"},
			conflict: "ON CONFLICT (course_id, co_id, po_id) DO UPDATE SET level = EXCLUDED.level"},
		{name: "enrollments", columns: []string{"course_id", "student_id"}, conflict: "ON CONFLICT DO NOTHING"},
		// max_marks is immutable once set for a key
		{name: "student_marks", columns: []string{"question_id", "student_id", "academic_year", "obtained_marks", "max_marks"},
			conflict: "ON CONFLICT (question_id, student_id, academic_year) DO UPDATE SET obtained_marks = EXCLUDED.obtained_marks"},
	}

	for _, id := range programIDs {
		tables[0].values = append(tables[0].values, []interface{}{id, id})
	}
	for _, b := range ds.Batches {
		tables[1].values = append(tables[1].values, []interface{}{b.ID, b.ProgramID, b.Name})
	}
	for _, c := range ds.Courses {
		s := c.Settings
		tables[2].values = append(tables[2].values, []interface{}{
			c.ID, c.Code, c.Name, c.ProgramID, c.BatchID, c.AcademicYear, string(s.Status),
			s.TargetPercentage, s.Thresholds.Level1, s.Thresholds.Level2, s.Thresholds.Level3,
		})
	}
	for _, co := range ds.CourseOutcomes {
		tables[3].values = append(tables[3].values, []interface{}{co.ID, co.CourseID, co.Code, co.Description})
	}
	for _, po := range ds.ProgramOutcomes {
		tables[4].values = append(tables[4].values, []interface{}{po.ID, po.ProgramID, po.Code, po.Description})
	}
	for _, q := range ds.Questions {
		tables[5].values = append(tables[5].values, []interface{}{q.ID, q.CourseID, q.AssessmentID, q.MaxMarks})
	}
	for _, m := range dedupe(ds.QuestionCOMappings, func(m attainment.QuestionCOMapping) string { return m.QuestionID + "|" + m.COID }) {
		tables[6].values = append(tables[6].values, []interface{}{m.QuestionID, m.COID})
	}
	for _, m := range dedupe(ds.COPOMappings, func(m attainment.COPOMapping) string { return m.CourseID + "|" + m.COID + "|" + m.POID }) {
		tables[7].values = append(tables[7].values, []interface{}{m.CourseID, m.COID, m.POID, m.Level})
	}
	for _, e := range dedupe(ds.Enrollments, func(e attainment.Enrollment) string { return e.CourseID + "|" + e.StudentID }) {
		tables[8].values = append(tables[8].values, []interface{}{e.CourseID, e.StudentID})
	}
	for _, m := range dedupe(ds.Marks, func(m attainment.StudentMark) string { return m.QuestionID + "|" + m.StudentID + "|" + m.AcademicYear }) {
		tables[9].values = append(tables[9].values, []interface{}{
			m.QuestionID, m.StudentID, m.AcademicYear, null.Float64FromPtr(m.ObtainedMarks), m.MaxMarks,
		})
	}
	return tables
}

// dedupe keeps the last item of every key, in first-seen order.
// A single INSERT ... ON CONFLICT cannot touch the same row twice.
func dedupe[T any](items []T, key func(T) string) []T {
	index := make(map[string]int, len(items))
	res := make([]T, 0, len(items))
	for _, it := range items {
		k := key(it)
		if i, ok := index[k]; ok {
			res[i] = it
			continue
		}
		index[k] = len(res)
		res = append(res, it)
	}
	return res
}
