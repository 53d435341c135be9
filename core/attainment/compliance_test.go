package attainment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func poAttainment(id string, actual, coverage, avgLevel float64) POAttainment {
	p := DefaultPolicy()
	return POAttainment{
		POID:             id,
		POCode:           id,
		TargetAttainment: p.POTarget,
		ActualAttainment: actual,
		COCoverageFactor: coverage,
		AvgMappingLevel:  avgLevel,
		Status:           p.Status(actual),
	}
}

func TestAnalyzeCompliance(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		name          string
		pos           []POAttainment
		wantScore     float64
		wantOverall   float64
		wantCompliant bool
	}{
		{
			name:      "no POs",
			wantScore: 0,
		},
		{
			name: "two of three on target",
			pos: []POAttainment{
				poAttainment("po1", 100, 100, 3),
				poAttainment("po2", 75, 100, 2),
				poAttainment("po3", 50, 100, 1),
			},
			wantScore:     66.67,
			wantOverall:   75,
			wantCompliant: true,
		},
		{
			name: "exactly on the compliance threshold",
			pos: []POAttainment{
				poAttainment("po1", 60, 100, 2),
				poAttainment("po2", 61, 100, 2),
				poAttainment("po3", 80, 100, 3),
				poAttainment("po4", 59, 100, 2),
				poAttainment("po5", 0, 0, 0),
			},
			wantScore:     60,
			wantOverall:   52,
			wantCompliant: true,
		},
		{
			name: "one of three on target",
			pos: []POAttainment{
				poAttainment("po1", 38, 50, 2),
				poAttainment("po2", 65, 100, 2),
				poAttainment("po3", 10, 25, 1),
			},
			wantScore:     33.33,
			wantOverall:   37.67,
			wantCompliant: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnalyzeCompliance(tt.pos, policy)
			assert.Equal(t, len(tt.pos), got.TotalPOs)
			assert.Equal(t, tt.wantScore, got.NBAComplianceScore)
			assert.Equal(t, tt.wantOverall, got.OverallAttainment)
			assert.Equal(t, tt.wantCompliant, got.IsCompliant)
			assert.Equal(t, 60.0, got.TargetAttainment)
			assert.NotEmpty(t, got.Recommendations)
		})
	}
}

func TestGenerateRecommendations(t *testing.T) {
	policy := DefaultPolicy()

	t.Run("no POs", func(t *testing.T) {
		got := GenerateRecommendations(nil, policy)
		assert.Equal(t, []string{"No program outcome data available to analyze."}, got)
	})

	t.Run("all on track", func(t *testing.T) {
		got := GenerateRecommendations([]POAttainment{
			poAttainment("po1", 100, 100, 3),
			poAttainment("po2", 75, 100, 2),
		}, policy)
		require.Len(t, got, 1)
		assert.Contains(t, got[0], "on track")
	})

	t.Run("every rule fires in order", func(t *testing.T) {
		got := GenerateRecommendations([]POAttainment{
			poAttainment("po1", 38, 50, 2),
			poAttainment("po2", 62, 75, 1),
			poAttainment("po3", 0, 0, 0),
		}, policy)
		require.Len(t, got, 4)
		assert.Contains(t, got[0], "2 program outcome(s) not attained")
		assert.Contains(t, got[1], "1 program outcome(s) at Level 1")
		assert.Contains(t, got[2], "CO coverage is 41.7%")
		assert.Contains(t, got[3], "mapping level is 1")
	})

	t.Run("coverage on the advice threshold does not fire", func(t *testing.T) {
		got := GenerateRecommendations([]POAttainment{
			poAttainment("po1", 80, 80, 3),
			poAttainment("po2", 80, 80, 2),
		}, policy)
		require.Len(t, got, 1)
		assert.Contains(t, got[0], "on track")
	})

	t.Run("pure", func(t *testing.T) {
		pos := []POAttainment{poAttainment("po1", 38, 50, 2)}
		before := pos[0]
		first := GenerateRecommendations(pos, policy)
		assert.Equal(t, first, GenerateRecommendations(pos, policy))
		assert.Equal(t, before, pos[0])
	})
}
