package attainment

import "github.com/trezcool/outcomes/core"

// ClassCOAttainment is the class level attainment of one CO.
//
// AttainedPercentage is the mean student percentage; PercentageMeetingTarget is the share of students
// who met the target. Only the latter drives AttainmentLevel.
type ClassCOAttainment struct {
	COID                    string     `json:"co_id"`
	COCode                  string     `json:"co_code"`
	CODescription           string     `json:"co_description"`
	TargetPercentage        float64    `json:"target_percentage"`
	AttainedPercentage      float64    `json:"attained_percentage"`
	PercentageMeetingTarget float64    `json:"percentage_meeting_target"`
	StudentsAttained        int        `json:"students_attained"`
	TotalStudents           int        `json:"total_students"`
	AttainmentLevel         int        `json:"attainment_level"`
	Thresholds              Thresholds `json:"thresholds"`
	MappedQuestions         int        `json:"mapped_questions"`
	NoQuestions             bool       `json:"no_questions"`
	NoData                  bool       `json:"no_data"`
}

// EvaluateClassCO aggregates the students' scores on a CO into the class attainment.
// Every score counts toward the denominator, including students who attempted nothing.
// A CO without mapped questions attains nothing, whatever the target and thresholds.
func EvaluateClassCO(co CourseOutcome, settings CourseSettings, mappedQuestions int, scores []StudentCOScore) ClassCOAttainment {
	res := ClassCOAttainment{
		COID:             co.ID,
		COCode:           co.Code,
		CODescription:    co.Description,
		TargetPercentage: settings.TargetPercentage,
		Thresholds:       settings.Thresholds,
		MappedQuestions:  mappedQuestions,
		TotalStudents:    len(scores),
	}
	if res.TotalStudents == 0 {
		res.NoData = true
		return res
	}
	if mappedQuestions == 0 {
		res.NoQuestions = true
		return res
	}

	pcts := make([]float64, 0, len(scores))
	for _, s := range scores {
		pcts = append(pcts, s.Percentage)
		if s.MetTarget {
			res.StudentsAttained++
		}
	}

	res.AttainedPercentage = core.Round(core.Mean(pcts...), 2)
	res.PercentageMeetingTarget = core.Round(float64(res.StudentsAttained)/float64(res.TotalStudents)*100, 2)
	res.AttainmentLevel = ClassifyLevel(res.PercentageMeetingTarget, settings.Thresholds)
	return res
}

// ClassifyLevel maps the class pass rate to an attainment level using the thresholds as given.
func ClassifyLevel(percentageMeetingTarget float64, t Thresholds) int {
	switch {
	case percentageMeetingTarget >= t.Level3:
		return 3
	case percentageMeetingTarget >= t.Level2:
		return 2
	case percentageMeetingTarget >= t.Level1:
		return 1
	default:
		return 0
	}
}
