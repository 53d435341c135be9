package attainment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCourseCOReport(t *testing.T) {
	course := completedCourse()
	mappings := []QuestionCOMapping{
		{QuestionID: "q1", COID: "co1"},
		{QuestionID: "q2", COID: "co1"},
		{QuestionID: "q2", COID: "co1"}, // duplicate
		{QuestionID: "q2", COID: "co2"},
	}

	t.Run("students are taken from the marks when nobody is enrolled", func(t *testing.T) {
		marks := []StudentMark{
			mark("q1", "s2", Float64(10), 10),
			mark("q1", "s1", Float64(5), 10),
			mark("q2", "s1", nil, 10),
		}
		got := BuildCourseCOReport(CourseInputs{Course: course, AcademicYear: "2023-24", Outcomes: outcomes("co1", "co2"), Mappings: mappings, Marks: marks})

		assert.Equal(t, 2, got.TotalStudents)
		require.Len(t, got.COAttainments, 2)
		assert.Equal(t, 2, got.COAttainments[0].MappedQuestions)
		assert.Equal(t, 75.0, got.COAttainments[0].AttainedPercentage) // (50 + 100) / 2
		assert.Equal(t, 50.0, got.COAttainments[0].PercentageMeetingTarget)
		assert.Equal(t, 0.0, got.COAttainments[1].AttainedPercentage)
		require.Len(t, got.StudentScores, 4)
		assert.Equal(t, "s1", got.StudentScores[0].StudentID)
		assert.Equal(t, 1, got.StudentScores[0].AttemptedQuestions)
	})

	t.Run("enrolled students without marks count", func(t *testing.T) {
		marks := []StudentMark{mark("q1", "s1", Float64(10), 10)}
		got := BuildCourseCOReport(CourseInputs{Course: course, AcademicYear: "2023-24", Outcomes: outcomes("co1"), Mappings: mappings, Marks: marks, Enrolled: []string{"s1", "s2", " s3 ", ""}})

		assert.Equal(t, 3, got.TotalStudents)
		assert.Equal(t, 1, got.COAttainments[0].StudentsAttained)
		assert.Equal(t, 33.33, got.COAttainments[0].PercentageMeetingTarget)
	})

	t.Run("without academic year the latest year wins", func(t *testing.T) {
		old := mark("q1", "s1", Float64(1), 10)
		old.AcademicYear = "2022-23"
		marks := []StudentMark{mark("q1", "s1", Float64(9), 10), old}
		got := BuildCourseCOReport(CourseInputs{Course: course, Outcomes: outcomes("co1"), Mappings: mappings, Marks: marks})

		assert.Equal(t, 90.0, got.StudentScores[0].Percentage)
		assert.Equal(t, "", got.Attainments()[0].AcademicYear)
	})

	t.Run("academic years match across formats", func(t *testing.T) {
		other := mark("q1", "s2", Float64(4), 10)
		other.AcademicYear = "2023"
		marks := []StudentMark{mark("q1", "s1", Float64(9), 10), other}
		got := BuildCourseCOReport(CourseInputs{Course: course, AcademicYear: "2023-2024", Outcomes: outcomes("co1"), Mappings: mappings, Marks: marks})

		assert.False(t, got.NoData)
		assert.Equal(t, 2, got.TotalStudents)
		assert.Equal(t, 65.0, got.COAttainments[0].AttainedPercentage)
	})

	t.Run("without academic year the same year in another format is not older", func(t *testing.T) {
		older := mark("q1", "s1", Float64(1), 10)
		older.AcademicYear = "2022-2023"
		newer := mark("q1", "s1", Float64(9), 10)
		newer.AcademicYear = "2023"
		got := BuildCourseCOReport(CourseInputs{Course: course, Outcomes: outcomes("co1"), Mappings: mappings, Marks: []StudentMark{newer, older}})

		assert.Equal(t, 90.0, got.StudentScores[0].Percentage)
	})

	t.Run("CO without mapped questions attains nothing at a zero target", func(t *testing.T) {
		c := course
		c.Settings.TargetPercentage = 0
		marks := []StudentMark{mark("q1", "s1", Float64(9), 10), mark("q1", "s2", Float64(3), 10)}
		got := BuildCourseCOReport(CourseInputs{Course: c, AcademicYear: "2023-24", Outcomes: outcomes("co1", "co3"), Mappings: mappings, Marks: marks})

		require.Len(t, got.COAttainments, 2)
		co3 := got.COAttainments[1]
		assert.True(t, co3.NoQuestions)
		assert.Equal(t, 0, co3.StudentsAttained)
		assert.Equal(t, 0.0, co3.PercentageMeetingTarget)
		assert.Equal(t, 0, co3.AttainmentLevel)
		for _, sc := range got.StudentScores {
			if sc.COID == "co3" {
				assert.False(t, sc.MetTarget)
			}
		}
		assert.Equal(t, 3, got.COAttainments[0].AttainmentLevel)
	})

	t.Run("data quality warnings", func(t *testing.T) {
		c := course
		c.Settings.Thresholds = Thresholds{80, 70, 60}
		marks := []StudentMark{mark("q1", "s1", Float64(12), 10), mark("q2", "s1", Float64(1), 0)}
		got := BuildCourseCOReport(CourseInputs{Course: c, AcademicYear: "2023-24", Outcomes: outcomes("co1"), Mappings: mappings, Marks: marks})

		assert.Len(t, got.Warnings, 3)
		assert.Equal(t, 100.0, got.StudentScores[0].Percentage)
	})

	t.Run("no data", func(t *testing.T) {
		got := BuildCourseCOReport(CourseInputs{Course: course, AcademicYear: "2023-24", Outcomes: outcomes("co1")})

		assert.True(t, got.NoData)
		assert.Equal(t, ErrNoData, got.Err())
		assert.Equal(t, 0, got.TotalStudents)
		require.Len(t, got.COAttainments, 1)
		assert.True(t, got.COAttainments[0].NoData)
		assert.Equal(t, 0.0, got.OverallAttainment)
		assert.NotNil(t, got.StudentScores)
		assert.Empty(t, got.Attainments())
	})
}
