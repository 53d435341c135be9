package attainment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedCourse() Course {
	return Course{
		ID:        "c1",
		Code:      "CS101",
		ProgramID: "p1",
		BatchID:   "b1",
		Settings:  CourseSettings{TargetPercentage: 60, Thresholds: Thresholds{60, 75, 85}, Status: CourseCompleted},
	}
}

func outcomes(ids ...string) []CourseOutcome {
	res := make([]CourseOutcome, 0, len(ids))
	for _, id := range ids {
		res = append(res, CourseOutcome{ID: id, CourseID: "c1", Code: "CODE-" + id})
	}
	return res
}

func programOutcomes(ids ...string) []ProgramOutcome {
	res := make([]ProgramOutcome, 0, len(ids))
	for _, id := range ids {
		res = append(res, ProgramOutcome{ID: id, ProgramID: "p1", Code: "CODE-" + id, Description: "desc " + id})
	}
	return res
}

func TestRollupPO(t *testing.T) {
	policy := DefaultPolicy()

	t.Run("coverage penalizes a lightly mapped PO", func(t *testing.T) {
		mappings := []COPOMapping{
			{CourseID: "c1", COID: "co1", POID: "po1", Level: 3},
			{CourseID: "c1", COID: "co2", POID: "po1", Level: 1},
		}
		got := RollupPO(completedCourse(), outcomes("co1", "co2", "co3", "co4"), programOutcomes("po1"), mappings, policy)

		require.Len(t, got.POAttainments, 1)
		po := got.POAttainments[0]
		assert.Equal(t, "po1", po.POID)
		assert.Equal(t, "CODE-po1", po.POCode)
		assert.Equal(t, "desc po1", po.PODescription)
		assert.Equal(t, 60.0, po.TargetAttainment)
		assert.Equal(t, 4, po.COCount)
		assert.Equal(t, 2, po.MappedCOs)
		assert.Equal(t, 2.0, po.AvgMappingLevel)
		assert.Equal(t, 75.0, po.BaseAttainment)
		assert.Equal(t, 50.0, po.COCoverageFactor)
		assert.Equal(t, 38.0, po.ActualAttainment)
		assert.Equal(t, StatusNotAttained, po.Status)
		assert.False(t, got.NotEligible)
		assert.NoError(t, got.Err())
	})

	t.Run("active course is not eligible", func(t *testing.T) {
		course := completedCourse()
		course.Settings.Status = CourseActive
		got := RollupPO(course, outcomes("co1"), programOutcomes("po1"), []COPOMapping{{COID: "co1", POID: "po1", Level: 3}}, policy)

		assert.True(t, got.NotEligible)
		assert.NotEmpty(t, got.Reason)
		assert.Contains(t, got.Reason, "ACTIVE")
		assert.NotNil(t, got.POAttainments)
		assert.Empty(t, got.POAttainments)
		assert.Len(t, got.Recommendations, 1)
		assert.Equal(t, ErrIneligibleCourse, got.Err())
	})

	t.Run("PO without mapped COs", func(t *testing.T) {
		mappings := []COPOMapping{{COID: "co1", POID: "po1", Level: 3}}
		got := RollupPO(completedCourse(), outcomes("co1", "co2"), programOutcomes("po1", "po2"), mappings, policy)

		require.Len(t, got.POAttainments, 2)
		po2 := got.POAttainments[1]
		assert.Equal(t, 0, po2.MappedCOs)
		assert.Equal(t, 0.0, po2.AvgMappingLevel)
		assert.Equal(t, 0.0, po2.BaseAttainment)
		assert.Equal(t, 0.0, po2.ActualAttainment)
		assert.Equal(t, StatusNotAttained, po2.Status)
	})

	t.Run("course without COs", func(t *testing.T) {
		got := RollupPO(completedCourse(), nil, programOutcomes("po1", "po2"), nil, policy)

		require.Len(t, got.POAttainments, 2)
		for _, po := range got.POAttainments {
			assert.Equal(t, 0.0, po.COCoverageFactor)
			assert.Equal(t, 0.0, po.ActualAttainment)
			assert.Equal(t, StatusNotAttained, po.Status)
		}
		assert.True(t, got.NoData)
	})

	t.Run("fully mapped strong PO reaches level 3", func(t *testing.T) {
		mappings := []COPOMapping{
			{COID: "co1", POID: "po1", Level: 3},
			{COID: "co2", POID: "po1", Level: 3},
			{COID: "co3", POID: "po1", Level: 3},
		}
		got := RollupPO(completedCourse(), outcomes("co1", "co2", "co3"), programOutcomes("po1"), mappings, policy)

		po := got.POAttainments[0]
		assert.Equal(t, 100.0, po.ActualAttainment)
		assert.Equal(t, 100.0, po.COCoverageFactor)
		assert.Equal(t, StatusLevel3, po.Status)
		assert.Equal(t, 100.0, got.NBAComplianceScore)
		assert.True(t, got.IsCompliant)
	})

	t.Run("mapping level is averaged before the step function", func(t *testing.T) {
		// levels 2, 2, 1 average 1.67: reported as 1.7 but the base is 50
		mappings := []COPOMapping{
			{COID: "co1", POID: "po1", Level: 2},
			{COID: "co2", POID: "po1", Level: 2},
			{COID: "co3", POID: "po1", Level: 1},
		}
		got := RollupPO(completedCourse(), outcomes("co1", "co2", "co3"), programOutcomes("po1"), mappings, policy)

		po := got.POAttainments[0]
		assert.Equal(t, 1.7, po.AvgMappingLevel)
		assert.Equal(t, 50.0, po.BaseAttainment)
		assert.Equal(t, 50.0, po.ActualAttainment)
	})

	t.Run("duplicate, foreign and invalid mappings", func(t *testing.T) {
		mappings := []COPOMapping{
			{COID: "co1", POID: "po1", Level: 1},
			{COID: "co1", POID: "po1", Level: 3}, // replaces the previous one
			{COID: "co9", POID: "po1", Level: 3}, // not a course CO
			{CourseID: "c2", COID: "co2", POID: "po1", Level: 3},
			{COID: "co2", POID: "po1", Level: 7},
		}
		got := RollupPO(completedCourse(), outcomes("co1", "co2"), programOutcomes("po1"), mappings, policy)

		po := got.POAttainments[0]
		assert.Equal(t, 1, po.MappedCOs)
		assert.Equal(t, 3.0, po.AvgMappingLevel)
		assert.Equal(t, 50.0, po.COCoverageFactor)
		assert.Equal(t, 50.0, po.ActualAttainment)
		assert.Len(t, got.Warnings, 2)
	})
}

func TestBaseAttainment(t *testing.T) {
	tests := []struct {
		avg  float64
		want float64
	}{
		{0, 0}, {0.99, 0}, {1, 50}, {1.99, 50}, {2, 75}, {2.5, 75}, {3, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BaseAttainment(tt.avg), "avg %v", tt.avg)
	}
}

func TestPolicy_Status(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		actual float64
		want   string
	}{
		{0, StatusNotAttained}, {59, StatusNotAttained}, {60, StatusLevel1}, {64, StatusLevel1},
		{65, StatusLevel2}, {79, StatusLevel2}, {80, StatusLevel3}, {100, StatusLevel3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Status(tt.actual), "actual %v", tt.actual)
	}
}
