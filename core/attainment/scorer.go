package attainment

import (
	"math"

	"github.com/trezcool/outcomes/core"
)

// StudentCOScore is one student's score on one CO.
type StudentCOScore struct {
	StudentID          string  `json:"student_id"`
	COID               string  `json:"co_id"`
	Percentage         float64 `json:"percentage"`
	MetTarget          bool    `json:"met_target"`
	TotalObtainedMarks float64 `json:"total_obtained_marks"`
	TotalMaxMarks      float64 `json:"total_max_marks"`
	AttemptedQuestions int     `json:"attempted_questions"`
	TotalQuestions     int     `json:"total_questions"`
}

// ScoreStudentCO computes a student's percentage on a CO from the marks of the questions mapped to it.
//
// Only attempted questions count, on both sides of the ratio. Marks of other students and marks with
// a non-positive max are ignored; obtained marks are clamped into [0, max]. When a question appears
// more than once the last mark wins. The percentage is rounded to 2 decimals and MetTarget compares
// that rounded value, equality counting as met. A CO without mapped questions is never met.
func ScoreStudentCO(studentID, coID string, marks []StudentMark, totalQuestions int, targetPercentage float64) StudentCOScore {
	score := StudentCOScore{
		StudentID:      studentID,
		COID:           coID,
		TotalQuestions: totalQuestions,
	}

	latest := make(map[string]StudentMark, len(marks))
	order := make([]string, 0, len(marks))
	for _, m := range marks {
		if m.StudentID != studentID {
			continue
		}
		if _, seen := latest[m.QuestionID]; !seen {
			order = append(order, m.QuestionID)
		}
		latest[m.QuestionID] = m
	}

	for _, qID := range order {
		m := latest[qID]
		if m.ObtainedMarks == nil || !validMax(m.MaxMarks) {
			continue
		}
		score.TotalObtainedMarks += clampMark(*m.ObtainedMarks, m.MaxMarks)
		score.TotalMaxMarks += m.MaxMarks
		score.AttemptedQuestions++
	}

	if score.TotalMaxMarks > 0 {
		pct := score.TotalObtainedMarks / score.TotalMaxMarks * 100
		score.Percentage = core.Round(math.Min(math.Max(pct, 0), 100), 2)
	}
	score.MetTarget = totalQuestions > 0 && score.Percentage >= targetPercentage
	return score
}

func validMax(max float64) bool {
	return max > 0 && !math.IsInf(max, 1)
}

func clampMark(obtained, max float64) float64 {
	if math.IsNaN(obtained) || obtained < 0 {
		return 0
	}
	if obtained > max {
		return max
	}
	return obtained
}
