package sqlxrepos

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/outcomes/core/attainment"
)

func Test_upsertAttainmentsQuery(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	rows := []attainment.StudentCOAttainment{
		{ID: "a1", COID: "co1", StudentID: "s1", AcademicYear: "2023-24", Percentage: 60, MetTarget: true, UpdatedAt: now},
		{ID: "a2", COID: "co1", StudentID: "s2", AcademicYear: "2023-24", Percentage: 20, UpdatedAt: now},
	}

	q, args, err := upsertAttainmentsQuery(rows).ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(q, "INSERT INTO course_outcome_attainments (id,co_id,student_id,academic_year,percentage,met_target,updated_at) VALUES"))
	assert.Contains(t, q, "($1,$2,$3,$4,$5,$6,$7),($8,$9,$10,$11,$12,$13,$14)")
	assert.Contains(t, q, "ON CONFLICT (co_id, student_id, academic_year) DO UPDATE SET")
	assert.NotContains(t, q, "id = EXCLUDED.id")
	assert.Equal(t, []interface{}{
		"a1", "co1", "s1", "2023-24", 60.0, true, now,
		"a2", "co1", "s2", "2023-24", 20.0, false, now,
	}, args)
}

func Test_importTables(t *testing.T) {
	ds := attainment.Dataset{
		Batches: []attainment.Batch{{ID: "b1", ProgramID: "p1", Name: "2020"}},
		Courses: []attainment.Course{{ID: "c1", Code: "CS101", ProgramID: "p1", BatchID: "b1",
			Settings: attainment.CourseSettings{TargetPercentage: 60, Thresholds: attainment.Thresholds{Level1: 40, Level2: 60, Level3: 80}, Status: attainment.CourseCompleted}}},
		ProgramOutcomes: []attainment.ProgramOutcome{{ID: "po1", ProgramID: "p2", Code: "PO1"}},
		Marks: []attainment.StudentMark{
			{QuestionID: "q1", StudentID: "s1", AcademicYear: "2023-24", ObtainedMarks: attainment.Float64(4), MaxMarks: 10},
			{QuestionID: "q1", StudentID: "s2", AcademicYear: "2023-24", MaxMarks: 10},
			{QuestionID: "q1", StudentID: "s1", AcademicYear: "2023-24", ObtainedMarks: attainment.Float64(7), MaxMarks: 10},
		},
	}

	tables := importTables(ds)
	byName := make(map[string]importTable, len(tables))
	for _, tbl := range tables {
		byName[tbl.name] = tbl
	}

	assert.Equal(t, "programs", tables[0].name)
	assert.Equal(t, [][]interface{}{{"p1", "p1"}, {"p2", "p2"}}, byName["programs"].values)

	courses := byName["courses"].values
	require.Len(t, courses, 1)
	assert.Equal(t, []interface{}{"c1", "CS101", "", "p1", "b1", "", "COMPLETED", 60.0, 40.0, 60.0, 80.0}, courses[0])

	marks := byName["student_marks"].values
	require.Len(t, marks, 2)
	assert.Equal(t, null.Float64From(7), marks[0][3])
	assert.False(t, marks[1][3].(null.Float64).Valid)

	q, _, err := byName["student_marks"].query(marks).ToSql()
	require.NoError(t, err)
	assert.Contains(t, q, "DO UPDATE SET obtained_marks = EXCLUDED.obtained_marks")
	assert.NotContains(t, q, "max_marks = EXCLUDED")
}

func Test_dedupe(t *testing.T) {
	got := dedupe([]string{"a1", "b1", "a2", "c1", "b2"}, func(s string) string { return s[:1] })
	assert.Equal(t, []string{"a2", "b2", "c1"}, got)
}
