package boltdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/outcomes/core/attainment"
	"github.com/trezcool/outcomes/tests"
)

func setup(t *testing.T) *attainmentRepository {
	db, err := Open(filepath.Join(t.TempDir(), "data", "outcomes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewAttainmentRepository(db)
	require.NoError(t, repo.Import(context.Background(), testutil.Dataset()))
	return repo
}

func TestAttainmentRepository_fetch(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	course, err := repo.FetchCourse(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "CS101", course.Code)
	assert.Equal(t, attainment.CourseCompleted, course.Settings.Status)

	_, err = repo.FetchCourse(ctx, "c9")
	assert.Equal(t, attainment.ErrCourseNotFound, err)

	cos, err := repo.FetchCourseOutcomes(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, cos, 4)
	assert.Equal(t, "CO1", cos[0].Code)

	pos, err := repo.FetchProgramOutcomes(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, pos, 2)

	marks, err := repo.FetchMarks(ctx, "c1", testutil.Year)
	require.NoError(t, err)
	assert.Len(t, marks, 30)

	marks, err = repo.FetchMarks(ctx, "c1", "2019-20")
	require.NoError(t, err)
	assert.Empty(t, marks)

	students, err := repo.FetchEnrolledStudents(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, students, 10)
	assert.Equal(t, "s01", students[0])

	qcos, err := repo.FetchQuestionCOMappings(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, qcos, 3)

	copos, err := repo.FetchCOPOMappings(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, copos, 6)
}

func TestAttainmentRepository_FetchBatchCourses(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		batchID string
		filter  attainment.CourseFilter
		want    []string
		wantErr error
	}{
		{name: "all", batchID: "b1", want: []string{"CS101", "CS102", "CS103"}},
		{name: "completed", batchID: "b1", filter: attainment.CourseFilter{CourseStatus: attainment.CourseCompleted}, want: []string{"CS101", "CS103"}},
		{name: "other year", batchID: "b1", filter: attainment.CourseFilter{AcademicYear: "2019-20"}, want: []string{}},
		{name: "unknown batch", batchID: "b9", wantErr: attainment.ErrBatchNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			courses, err := repo.FetchBatchCourses(ctx, tt.batchID, tt.filter)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			codes := make([]string, 0, len(courses))
			for _, c := range courses {
				codes = append(codes, c.Code)
			}
			assert.Equal(t, tt.want, codes)
		})
	}
}

func TestAttainmentRepository_UpsertCOAttainments(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	rows := []attainment.StudentCOAttainment{
		{ID: "a1", COID: "co2", StudentID: "s01", AcademicYear: testutil.Year, Percentage: 40, UpdatedAt: now},
		{ID: "a2", COID: "co1", StudentID: "s02", AcademicYear: testutil.Year, Percentage: 60, MetTarget: true, UpdatedAt: now},
		{ID: "a3", COID: "co1", StudentID: "s01", AcademicYear: testutil.Year, Percentage: 60, MetTarget: true, UpdatedAt: now},
	}
	require.NoError(t, repo.UpsertCOAttainments(ctx, "c1", testutil.Year, rows))

	// same keys, new ids and values
	rows[0].ID, rows[0].Percentage, rows[0].MetTarget = "b1", 90, true
	require.NoError(t, repo.UpsertCOAttainments(ctx, "c1", testutil.Year, rows[:1]))

	got, err := repo.QueryCOAttainments(ctx, "c1", testutil.Year)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a3", "a2", "a1"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, 90.0, got[2].Percentage)
	assert.True(t, got[2].MetTarget)

	got, err = repo.QueryCOAttainments(ctx, "c1", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAttainmentRepository_service(t *testing.T) {
	repo := setup(t)
	svc := attainment.NewService(repo, new(testutil.Logger), new(testutil.Mailer), attainment.DefaultPolicy())
	ctx := context.Background()

	report, err := svc.RecomputeCourseCOAttainment(ctx, "c1", testutil.Year)
	require.NoError(t, err)
	assert.True(t, report.Persisted)
	assert.Equal(t, 2, report.COAttainments[0].AttainmentLevel)

	rows, err := svc.QueryCOAttainments(ctx, "c1", testutil.Year)
	require.NoError(t, err)
	assert.Len(t, rows, 40)

	batch, err := svc.ComputeBatchPOAttainment(ctx, "b1", attainment.CourseFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c3"}, batch.CoursesConsidered)
	require.Len(t, batch.POAttainments, 2)
	assert.Equal(t, 57.0, batch.POAttainments[0].ActualAttainment)
}

func TestAttainmentRepository_Import_keepsMaxMarks(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	ds := attainment.Dataset{
		Questions: []attainment.Question{{ID: "q1", CourseID: "c1", MaxMarks: 10}},
		Marks: []attainment.StudentMark{
			{QuestionID: "q1", StudentID: "s01", AcademicYear: testutil.Year, ObtainedMarks: attainment.Float64(9), MaxMarks: 50},
		},
	}
	require.NoError(t, repo.Import(ctx, ds))

	marks, err := repo.FetchMarks(ctx, "c1", testutil.Year)
	require.NoError(t, err)
	for _, m := range marks {
		if m.QuestionID == "q1" && m.StudentID == "s01" {
			assert.Equal(t, 9.0, *m.ObtainedMarks)
			assert.Equal(t, 10.0, m.MaxMarks)
		}
	}

	err = repo.Import(ctx, attainment.Dataset{Marks: []attainment.StudentMark{{QuestionID: "q9", StudentID: "s01", MaxMarks: 1}}})
	assert.Error(t, err)
}
