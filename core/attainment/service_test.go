package attainment_test

import (
	"context"
	"net/mail"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/outcomes/core"
	"github.com/trezcool/outcomes/core/attainment"
	"github.com/trezcool/outcomes/storage/database/dummy"
	"github.com/trezcool/outcomes/tests"
)

func setup(t *testing.T) (*attainment.Service, *dummydb.DB, *testutil.Logger, *testutil.Mailer) {
	db := testutil.OpenDB(t)
	logger := new(testutil.Logger)
	mailer := new(testutil.Mailer)
	svc := attainment.NewService(dummydb.NewAttainmentRepository(db), logger, mailer, attainment.DefaultPolicy())
	return svc, db, logger, mailer
}

func TestService_ComputeCourseCOAttainment(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx := context.Background()

	report, err := svc.ComputeCourseCOAttainment(ctx, "c1", testutil.Year)
	require.NoError(t, err)

	assert.Equal(t, "CS101", report.CourseCode)
	assert.Equal(t, 10, report.TotalStudents)
	assert.False(t, report.NoData)
	assert.Empty(t, report.Warnings)
	require.Len(t, report.COAttainments, 4)
	assert.Len(t, report.StudentScores, 40)

	co1 := report.COAttainments[0]
	assert.Equal(t, "CO1", co1.COCode)
	assert.Equal(t, 2, co1.MappedQuestions)
	assert.Equal(t, 8, co1.StudentsAttained)
	assert.Equal(t, 80.0, co1.PercentageMeetingTarget)
	assert.Equal(t, 52.0, co1.AttainedPercentage)
	assert.Equal(t, 2, co1.AttainmentLevel)

	co2 := report.COAttainments[1]
	assert.Equal(t, 1, co2.MappedQuestions)
	assert.Equal(t, 10, co2.TotalStudents)
	assert.Equal(t, 0.0, co2.AttainedPercentage)
	assert.Equal(t, 0, co2.AttainmentLevel)

	co4 := report.COAttainments[3]
	assert.Equal(t, 0, co4.MappedQuestions)
	assert.Equal(t, 0.0, co4.PercentageMeetingTarget)
	assert.Equal(t, 13.0, report.OverallAttainment)

	s1 := report.StudentScores[0]
	assert.Equal(t, "s01", s1.StudentID)
	assert.Equal(t, 60.0, s1.Percentage)
	assert.True(t, s1.MetTarget)
}

func TestService_ComputeCourseCOAttainment_errors(t *testing.T) {
	svc, db, logger, _ := setup(t)
	ctx := context.Background()

	_, err := svc.ComputeCourseCOAttainment(ctx, "nope", "")
	assert.True(t, errors.Is(err, attainment.ErrCourseNotFound))

	_, err = svc.ComputeCourseCOAttainment(ctx, "c1", "last year")
	assert.True(t, core.IsValidation(err))

	report, err := svc.ComputeCourseCOAttainment(ctx, "c1", "2019-20")
	require.NoError(t, err)
	assert.True(t, report.NoData)
	assert.Equal(t, 10, report.TotalStudents)

	db.Update(func(ds *attainment.Dataset) {
		ds.Courses[0].Settings.Thresholds = attainment.Thresholds{Level1: 85, Level2: 75, Level3: 60}
	})
	report, err = svc.ComputeCourseCOAttainment(ctx, "c1", testutil.Year)
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "not ascending")
	assert.Equal(t, 3, report.COAttainments[0].AttainmentLevel) // 80 >= level3 (60)
	assert.Len(t, logger.Messages("warn"), 1)
}

func TestService_RecomputeCourseCOAttainment(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx := context.Background()

	first, err := svc.RecomputeCourseCOAttainment(ctx, "c1", testutil.Year)
	require.NoError(t, err)
	assert.True(t, first.Persisted)
	assert.Empty(t, first.PersistError)

	rows, err := svc.QueryCOAttainments(ctx, "c1", testutil.Year)
	require.NoError(t, err)
	require.Len(t, rows, 40)

	second, err := svc.RecomputeCourseCOAttainment(ctx, "c1", testutil.Year)
	require.NoError(t, err)
	assert.Equal(t, first.StudentScores, second.StudentScores)

	again, err := svc.QueryCOAttainments(ctx, "c1", testutil.Year)
	require.NoError(t, err)
	require.Len(t, again, 40)
	for i := range rows {
		assert.Equal(t, rows[i].ID, again[i].ID)
		assert.Equal(t, rows[i].Key(), again[i].Key())
		assert.Equal(t, rows[i].Percentage, again[i].Percentage)
		assert.Equal(t, rows[i].MetTarget, again[i].MetTarget)
	}

	other, err := svc.QueryCOAttainments(ctx, "c1", "")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestService_RecomputeCourseCOAttainment_noData(t *testing.T) {
	svc, _, logger, _ := setup(t)
	ctx := context.Background()

	_, err := svc.RecomputeCourseCOAttainment(ctx, "c1", testutil.Year)
	require.NoError(t, err)

	report, err := svc.RecomputeCourseCOAttainment(ctx, "c1", "2019-2020")
	require.NoError(t, err)
	assert.True(t, report.NoData)
	assert.Equal(t, "2019-20", report.AcademicYear)
	assert.False(t, report.Persisted)
	assert.Empty(t, report.PersistError)
	assert.Contains(t, report.PersistSkipped, "no marks")
	assert.Len(t, logger.Messages("info"), 1)

	rows, err := svc.QueryCOAttainments(ctx, "c1", "2023-2024")
	require.NoError(t, err)
	assert.Len(t, rows, 40)
}

func TestService_RecomputeCourseCOAttainment_concurrent(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.RecomputeCourseCOAttainment(ctx, "c1", testutil.Year)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	rows, err := svc.QueryCOAttainments(ctx, "c1", testutil.Year)
	require.NoError(t, err)
	assert.Len(t, rows, 40)
}

func TestService_RecomputeCourseCOAttainment_persistenceFailure(t *testing.T) {
	svc, db, logger, _ := setup(t)
	ctx := context.Background()

	db.FailWrites(errors.New("disk full"))
	report, err := svc.RecomputeCourseCOAttainment(ctx, "c1", testutil.Year)
	require.NoError(t, err)
	assert.False(t, report.Persisted)
	assert.Contains(t, report.PersistError, "disk full")
	assert.Len(t, report.COAttainments, 4)
	assert.Len(t, logger.Messages("error"), 1)

	rows, err := svc.QueryCOAttainments(ctx, "c1", testutil.Year)
	require.NoError(t, err)
	assert.Empty(t, rows)

	err = svc.PersistCOAttainment(ctx, "c1", report.Attainments(), testutil.Year)
	assert.True(t, attainment.IsPersistence(err))
}

func TestService_PersistCOAttainment(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		rows      []attainment.StudentCOAttainment
		wantErr   bool
		wantCount int
	}{
		{
			name:      "nothing to persist",
			wantCount: 0,
		},
		{
			name: "unknown CO",
			rows: []attainment.StudentCOAttainment{
				{COID: "co9", StudentID: "s01", Percentage: 50},
			},
			wantErr: true,
		},
		{
			name: "invalid percentage",
			rows: []attainment.StudentCOAttainment{
				{COID: "co1", StudentID: "s01", Percentage: 150},
			},
			wantErr: true,
		},
		{
			name: "duplicates: last wins",
			rows: []attainment.StudentCOAttainment{
				{COID: "co1", StudentID: "s01", Percentage: 50},
				{COID: "co1", StudentID: "s02", Percentage: 70, MetTarget: true},
				{COID: "co1", StudentID: "s01", Percentage: 65, MetTarget: true, AcademicYear: "1999-00"},
			},
			wantCount: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.PersistCOAttainment(ctx, "c1", tt.rows, testutil.Year)
			if tt.wantErr {
				assert.True(t, core.IsValidation(err))
				return
			}
			require.NoError(t, err)

			rows, err := svc.QueryCOAttainments(ctx, "c1", testutil.Year)
			require.NoError(t, err)
			assert.Len(t, rows, tt.wantCount)
		})
	}

	rows, err := svc.QueryCOAttainments(ctx, "c1", testutil.Year)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "s01", rows[0].StudentID)
	assert.Equal(t, 65.0, rows[0].Percentage)
	assert.Equal(t, testutil.Year, rows[0].AcademicYear)
	assert.NotEmpty(t, rows[0].ID)
}

func TestService_ComputePOAttainment(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx := context.Background()

	report, err := svc.ComputePOAttainment(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, report.NotEligible)
	assert.Equal(t, 4, report.TotalCOs)
	require.Len(t, report.POAttainments, 2)

	po1, po2 := report.POAttainments[0], report.POAttainments[1]
	assert.Equal(t, 38.0, po1.ActualAttainment)
	assert.Equal(t, attainment.StatusNotAttained, po1.Status)
	assert.Equal(t, 100.0, po2.ActualAttainment)
	assert.Equal(t, attainment.StatusLevel3, po2.Status)
	assert.Equal(t, 50.0, report.NBAComplianceScore)
	assert.False(t, report.IsCompliant)

	report, err = svc.ComputePOAttainment(ctx, "c2")
	require.NoError(t, err)
	assert.True(t, report.NotEligible)
	assert.NotEmpty(t, report.Reason)
	assert.Empty(t, report.POAttainments)

	_, err = svc.ComputePOAttainment(ctx, "nope")
	assert.True(t, errors.Is(err, attainment.ErrCourseNotFound))
}

func TestService_ComputeBatchPOAttainment(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx := context.Background()

	tests := []struct {
		name           string
		batchID        string
		filter         attainment.CourseFilter
		wantErr        func(error) bool
		wantConsidered []string
		wantSkipped    int
		wantActuals    []float64
	}{
		{
			name:           "completed courses by default",
			batchID:        "b1",
			wantConsidered: []string{"c1", "c3"},
			wantSkipped:    1,
			wantActuals:    []float64{57, 50},
		},
		{
			name:           "academic year filter",
			batchID:        "b1",
			filter:         attainment.CourseFilter{AcademicYear: "2019-20"},
			wantConsidered: []string{},
			wantSkipped:    0,
			wantActuals:    []float64{},
		},
		{
			name:           "active courses are never eligible",
			batchID:        "b1",
			filter:         attainment.CourseFilter{CourseStatus: attainment.CourseActive},
			wantConsidered: []string{},
			wantSkipped:    3,
			wantActuals:    []float64{},
		},
		{
			name:    "unknown batch",
			batchID: "nope",
			wantErr: func(err error) bool { return errors.Is(err, attainment.ErrBatchNotFound) },
		},
		{
			name:    "invalid status",
			batchID: "b1",
			filter:  attainment.CourseFilter{CourseStatus: "DONE"},
			wantErr: core.IsValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ComputeBatchPOAttainment(ctx, tt.batchID, tt.filter)
			if tt.wantErr != nil {
				assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, tt.wantConsidered, got.CoursesConsidered)
			assert.Len(t, got.SkippedCourses, tt.wantSkipped)
			actuals := make([]float64, 0)
			for _, po := range got.POAttainments {
				actuals = append(actuals, po.ActualAttainment)
			}
			assert.Equal(t, tt.wantActuals, actuals)
			assert.Equal(t, len(tt.wantConsidered) == 0, got.NoData)
		})
	}
}

func TestService_MailBatchReport(t *testing.T) {
	svc, _, _, mailer := setup(t)
	ctx := context.Background()

	_, err := svc.MailBatchReport(ctx, "b1", attainment.CourseFilter{}, nil)
	assert.True(t, core.IsValidation(err))

	to := []mail.Address{{Name: "Dean", Address: "dean@example.com"}}
	report, err := svc.MailBatchReport(ctx, "b1", attainment.CourseFilter{}, to)
	require.NoError(t, err)
	assert.Equal(t, "b1", report.BatchID)

	require.Len(t, mailer.Sent, 1)
	msg := mailer.Sent[0]
	assert.Equal(t, to, msg.To)
	assert.Equal(t, "batch_compliance", msg.TemplateName)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "application/json", msg.Attachments[0].ContentType)
	assert.Equal(t, "batch-b1-po-attainment.json", msg.Attachments[0].Filename)
}

func TestService_GenerateRecommendations(t *testing.T) {
	svc, _, _, _ := setup(t)
	assert.Equal(t,
		attainment.GenerateRecommendations(nil, attainment.DefaultPolicy()),
		svc.GenerateRecommendations(nil),
	)
}
