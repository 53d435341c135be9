package attainment

import (
	"math"

	"github.com/trezcool/outcomes/core"
)

// SkippedCourse is a batch course left out of the batch rollup.
type SkippedCourse struct {
	CourseID   string `json:"course_id"`
	CourseCode string `json:"course_code"`
	Reason     string `json:"reason"`
}

// BatchComplianceReport is the PO attainment and compliance of a batch.
type BatchComplianceReport struct {
	BatchID       string         `json:"batch_id"`
	AcademicYear  string         `json:"academic_year,omitempty"`
	POAttainments []POAttainment `json:"po_attainments"`
	Compliance
	CoursesConsidered []string        `json:"courses_considered"`
	SkippedCourses    []SkippedCourse `json:"skipped_courses"`
	NoData            bool            `json:"no_data"`
	Warnings          []string        `json:"warnings"`
}

// RollupBatch combines course PO rollups into the batch PO attainment.
//
// Each eligible course counts equally: a PO's actual attainment is the unweighted mean over the
// courses reporting it, rounded to a whole percent, and its status is bucketed again. Not eligible
// reports are skipped. POs keep the order of their first appearance.
func RollupBatch(batchID string, reports []PORollupReport, policy Policy) BatchComplianceReport {
	res := BatchComplianceReport{
		BatchID:           batchID,
		POAttainments:     make([]POAttainment, 0),
		CoursesConsidered: make([]string, 0, len(reports)),
		SkippedCourses:    make([]SkippedCourse, 0),
		Warnings:          make([]string, 0),
	}

	type acc struct {
		po                         POAttainment
		actual, base, cov, avgLvls []float64
	}
	accs := make(map[string]*acc)
	order := make([]string, 0)

	for _, r := range reports {
		if r.NotEligible {
			res.SkippedCourses = append(res.SkippedCourses, SkippedCourse{CourseID: r.CourseID, CourseCode: r.CourseCode, Reason: r.Reason})
			continue
		}
		res.CoursesConsidered = append(res.CoursesConsidered, r.CourseID)
		res.Warnings = append(res.Warnings, r.Warnings...)

		for _, po := range r.POAttainments {
			a, ok := accs[po.POID]
			if !ok {
				a = &acc{po: POAttainment{
					POID:             po.POID,
					POCode:           po.POCode,
					PODescription:    po.PODescription,
					TargetAttainment: policy.POTarget,
				}}
				accs[po.POID] = a
				order = append(order, po.POID)
			}
			a.po.COCount += po.COCount
			a.po.MappedCOs += po.MappedCOs
			a.actual = append(a.actual, po.ActualAttainment)
			a.base = append(a.base, po.BaseAttainment)
			a.cov = append(a.cov, po.COCoverageFactor)
			a.avgLvls = append(a.avgLvls, po.AvgMappingLevel)
		}
	}

	for _, poID := range order {
		a := accs[poID]
		po := a.po
		po.ActualAttainment = math.Round(core.Mean(a.actual...))
		po.BaseAttainment = core.Round(core.Mean(a.base...), 2)
		po.COCoverageFactor = math.Round(core.Mean(a.cov...))
		po.AvgMappingLevel = core.Round(core.Mean(a.avgLvls...), 1)
		po.Status = policy.Status(po.ActualAttainment)
		res.POAttainments = append(res.POAttainments, po)
	}

	res.Compliance = AnalyzeCompliance(res.POAttainments, policy)
	res.NoData = len(res.CoursesConsidered) == 0
	return res
}
