package attainment

import (
	"fmt"

	"github.com/trezcool/outcomes/core"
)

// Compliance is the compliance view of a PO attainment set.
type Compliance struct {
	OverallAttainment  float64  `json:"overall_attainment"`
	NBAComplianceScore float64  `json:"nba_compliance_score"`
	TotalPOs           int      `json:"total_pos"`
	CompliantPOs       int      `json:"compliant_pos"`
	IsCompliant        bool     `json:"is_compliant"`
	TargetAttainment   float64  `json:"target_attainment"`
	Recommendations    []string `json:"recommendations"`
}

// AnalyzeCompliance computes the compliance score of the POs and the recommendations.
// Without POs the score is 0 and the set is not compliant.
func AnalyzeCompliance(pos []POAttainment, policy Policy) Compliance {
	res := Compliance{
		TotalPOs:         len(pos),
		TargetAttainment: policy.POTarget,
		Recommendations:  GenerateRecommendations(pos, policy),
	}
	if len(pos) == 0 {
		return res
	}

	actuals := make([]float64, 0, len(pos))
	for _, po := range pos {
		actuals = append(actuals, po.ActualAttainment)
		if po.ActualAttainment >= po.TargetAttainment {
			res.CompliantPOs++
		}
	}
	res.OverallAttainment = core.Round(core.Mean(actuals...), 2)
	res.NBAComplianceScore = core.Round(float64(res.CompliantPOs)/float64(res.TotalPOs)*100, 2)
	res.IsCompliant = res.NBAComplianceScore >= policy.ComplianceThreshold
	return res
}

// GenerateRecommendations derives human readable advice from PO attainments.
// Every applicable rule adds one sentence, in a fixed order; it never alters the figures.
func GenerateRecommendations(pos []POAttainment, policy Policy) []string {
	if len(pos) == 0 {
		return []string{"No program outcome data available to analyze."}
	}

	var notAttained, level1 int
	coverages := make([]float64, 0, len(pos))
	levels := make([]float64, 0, len(pos))
	for _, po := range pos {
		switch po.Status {
		case StatusNotAttained:
			notAttained++
		case StatusLevel1:
			level1++
		}
		coverages = append(coverages, po.COCoverageFactor)
		levels = append(levels, po.AvgMappingLevel)
	}

	recs := make([]string, 0, 4)
	if notAttained > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d program outcome(s) not attained: review teaching strategies and assessment methods for the mapped course outcomes.",
			notAttained,
		))
	}
	if level1 > 0 {
		recs = append(recs, fmt.Sprintf(
			"%d program outcome(s) at Level 1: strengthen CO-PO correlations to move them to higher levels.",
			level1,
		))
	}
	if cov := core.Mean(coverages...); cov < policy.CoverageAdvice {
		recs = append(recs, fmt.Sprintf(
			"Average CO coverage is %s%%: map more course outcomes to program outcomes.",
			formatFloat(cov),
		))
	}
	if lvl := core.Mean(levels...); lvl < policy.MappingLevelAdvice {
		recs = append(recs, fmt.Sprintf(
			"Average mapping level is %s: use stronger (level 2 or 3) correlations between course and program outcomes.",
			formatFloat(lvl),
		))
	}
	if len(recs) == 0 {
		recs = append(recs, "All program outcomes are on track: maintain current teaching and assessment practices.")
	}
	return recs
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%g", core.Round(f, 1))
}
