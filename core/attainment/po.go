package attainment

import (
	"fmt"
	"math"

	"github.com/trezcool/outcomes/core"
)

// POAttainment is the attainment of one PO, for a course or a batch.
type POAttainment struct {
	POID             string  `json:"po_id"`
	POCode           string  `json:"po_code"`
	PODescription    string  `json:"po_description"`
	TargetAttainment float64 `json:"target_attainment"`
	ActualAttainment float64 `json:"actual_attainment"`
	COCount          int     `json:"co_count"`
	MappedCOs        int     `json:"mapped_cos"`
	AvgMappingLevel  float64 `json:"avg_mapping_level"`
	Status           string  `json:"status"`
	// COCoverageFactor is a whole percent.
	COCoverageFactor float64 `json:"co_coverage_factor"`
	BaseAttainment   float64 `json:"base_attainment"`
}

// PORollupReport is the PO attainment of a course.
type PORollupReport struct {
	CourseID      string         `json:"course_id"`
	CourseCode    string         `json:"course_code"`
	CourseStatus  CourseStatus   `json:"course_status"`
	TotalCOs      int            `json:"total_cos"`
	NotEligible   bool           `json:"not_eligible"`
	Reason        string         `json:"reason,omitempty"`
	POAttainments []POAttainment `json:"po_attainments"`
	Compliance
	NoData   bool     `json:"no_data"`
	Warnings []string `json:"warnings"`
}

// Err returns ErrIneligibleCourse for a not eligible report.
func (r PORollupReport) Err() error {
	if r.NotEligible {
		return ErrIneligibleCourse
	}
	return nil
}

// RollupPO computes the attainment of every PO of the program from the course's CO-PO mappings.
//
// Mappings are restricted to the course's COs and to the given POs, and counted once per (PO, CO),
// the last one winning. Mappings with a level outside 1..3 are skipped with a warning.
func RollupPO(course Course, cos []CourseOutcome, pos []ProgramOutcome, mappings []COPOMapping, policy Policy) PORollupReport {
	report := PORollupReport{
		CourseID:      course.ID,
		CourseCode:    course.Code,
		CourseStatus:  course.Settings.Status,
		TotalCOs:      len(cos),
		POAttainments: make([]POAttainment, 0, len(pos)),
		Warnings:      make([]string, 0),
	}
	if course.Settings.Status != CourseCompleted {
		report.NotEligible = true
		report.Reason = fmt.Sprintf(
			"PO attainment is only calculated for COMPLETED courses; course %s is %s.",
			course.Code, statusLabel(course.Settings.Status),
		)
		report.Recommendations = []string{"Complete the course and record its assessment marks to calculate PO attainment."}
		return report
	}

	byPO, warnings := groupCOPOMappings(course.ID, cos, pos, mappings)
	report.Warnings = append(report.Warnings, warnings...)

	for _, po := range pos {
		report.POAttainments = append(report.POAttainments, rollupOne(po, len(cos), byPO[po.ID], policy))
	}

	report.Compliance = AnalyzeCompliance(report.POAttainments, policy)
	report.NoData = len(pos) == 0 || len(mappings) == 0
	return report
}

func rollupOne(po ProgramOutcome, totalCOs int, levels map[string]int, policy Policy) POAttainment {
	res := POAttainment{
		POID:             po.ID,
		POCode:           po.Code,
		PODescription:    po.Description,
		TargetAttainment: policy.POTarget,
		COCount:          totalCOs,
		MappedCOs:        len(levels),
	}

	var avg float64
	if res.MappedCOs > 0 {
		var sum int
		for _, lvl := range levels {
			sum += lvl
		}
		avg = float64(sum) / float64(res.MappedCOs)
	}
	res.AvgMappingLevel = core.Round(avg, 1)
	res.BaseAttainment = BaseAttainment(avg)

	var coverage float64
	if totalCOs > 0 {
		coverage = float64(res.MappedCOs) / float64(totalCOs)
	}
	res.COCoverageFactor = math.Round(coverage * 100)
	res.ActualAttainment = math.Round(res.BaseAttainment * coverage)
	res.Status = policy.Status(res.ActualAttainment)
	return res
}

// BaseAttainment is the step function of the mean mapping level: 100, 75, 50 or 0.
func BaseAttainment(avgMappingLevel float64) float64 {
	switch {
	case avgMappingLevel >= 3:
		return 100
	case avgMappingLevel >= 2:
		return 75
	case avgMappingLevel >= 1:
		return 50
	default:
		return 0
	}
}

// groupCOPOMappings returns PO id -> CO id -> level.
func groupCOPOMappings(courseID string, cos []CourseOutcome, pos []ProgramOutcome, mappings []COPOMapping) (map[string]map[string]int, []string) {
	coSet := make(map[string]struct{}, len(cos))
	for _, co := range cos {
		coSet[co.ID] = struct{}{}
	}
	poSet := make(map[string]struct{}, len(pos))
	for _, po := range pos {
		poSet[po.ID] = struct{}{}
	}

	var badLevel, foreign int
	byPO := make(map[string]map[string]int, len(pos))
	for _, m := range mappings {
		if m.CourseID != "" && m.CourseID != courseID {
			foreign++
			continue
		}
		if _, ok := coSet[m.COID]; !ok {
			foreign++
			continue
		}
		if _, ok := poSet[m.POID]; !ok {
			foreign++
			continue
		}
		if m.Level < 1 || m.Level > 3 {
			badLevel++
			continue
		}
		levels, ok := byPO[m.POID]
		if !ok {
			levels = make(map[string]int)
			byPO[m.POID] = levels
		}
		levels[m.COID] = m.Level
	}

	var warnings []string
	if badLevel > 0 {
		warnings = append(warnings, fmt.Sprintf("%d CO-PO mapping(s) ignored: level must be 1, 2 or 3", badLevel))
	}
	if foreign > 0 {
		warnings = append(warnings, fmt.Sprintf("%d CO-PO mapping(s) ignored: unknown CO or PO for this course", foreign))
	}
	return byPO, warnings
}

func statusLabel(s CourseStatus) string {
	if s == "" {
		return "without status"
	}
	return string(s)
}
