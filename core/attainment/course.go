package attainment

import (
	"fmt"
	"sort"

	"github.com/trezcool/outcomes/core"
)

// CourseAttainmentReport is the CO attainment of a course for an academic year, with per student detail.
type CourseAttainmentReport struct {
	CourseID          string              `json:"course_id"`
	CourseCode        string              `json:"course_code"`
	CourseName        string              `json:"course_name"`
	AcademicYear      string              `json:"academic_year"`
	TargetPercentage  float64             `json:"target_percentage"`
	Thresholds        Thresholds          `json:"thresholds"`
	TotalStudents     int                 `json:"total_students"`
	COAttainments     []ClassCOAttainment `json:"co_attainments"`
	StudentScores     []StudentCOScore    `json:"student_scores"`
	OverallAttainment float64             `json:"overall_attainment"`
	NoData            bool                `json:"no_data"`
	Warnings          []string            `json:"warnings"`

	// set once the report went through persistence
	Persisted      bool   `json:"persisted"`
	PersistError   string `json:"persist_error,omitempty"`
	PersistSkipped string `json:"persist_skipped,omitempty"`
}

// CourseInputs is everything needed to compute a course's CO attainment.
type CourseInputs struct {
	Course       Course
	AcademicYear string
	Outcomes     []CourseOutcome
	Mappings     []QuestionCOMapping
	Marks        []StudentMark
	Enrolled     []string
}

// BuildCourseCOReport runs the student scorer and the class evaluator over every CO of the course.
//
// The class is the enrolled students; when nobody is enrolled it falls back to the students found in
// the marks. Without an academic year the latest year's mark wins per (question, student).
func BuildCourseCOReport(in CourseInputs) CourseAttainmentReport {
	settings := in.Course.Settings
	report := CourseAttainmentReport{
		CourseID:         in.Course.ID,
		CourseCode:       in.Course.Code,
		CourseName:       in.Course.Name,
		AcademicYear:     core.NormalizeAcademicYear(in.AcademicYear),
		TargetPercentage: settings.TargetPercentage,
		Thresholds:       settings.Thresholds,
		COAttainments:    make([]ClassCOAttainment, 0, len(in.Outcomes)),
		StudentScores:    make([]StudentCOScore, 0),
		Warnings:         make([]string, 0),
	}
	if !settings.Thresholds.Ascending() {
		report.Warnings = append(report.Warnings, ThresholdWarning{CourseID: in.Course.ID, Thresholds: settings.Thresholds}.Error())
	}

	marks, warnings := selectMarks(in.Marks, in.AcademicYear)
	report.Warnings = append(report.Warnings, warnings...)

	students := classStudents(in.Enrolled, marks)
	report.TotalStudents = len(students)

	// student -> question -> mark
	byStudent := make(map[string]map[string]StudentMark, len(students))
	for _, m := range marks {
		qm, ok := byStudent[m.StudentID]
		if !ok {
			qm = make(map[string]StudentMark)
			byStudent[m.StudentID] = qm
		}
		qm[m.QuestionID] = m
	}

	questionsByCO := mapQuestionsByCO(in.Mappings)
	attained := make([]float64, 0, len(in.Outcomes))
	for _, co := range in.Outcomes {
		qIDs := questionsByCO[co.ID]

		scores := make([]StudentCOScore, 0, len(students))
		for _, sID := range students {
			sMarks := make([]StudentMark, 0, len(qIDs))
			for _, qID := range qIDs {
				if m, ok := byStudent[sID][qID]; ok {
					sMarks = append(sMarks, m)
				}
			}
			scores = append(scores, ScoreStudentCO(sID, co.ID, sMarks, len(qIDs), settings.TargetPercentage))
		}

		class := EvaluateClassCO(co, settings, len(qIDs), scores)
		report.COAttainments = append(report.COAttainments, class)
		report.StudentScores = append(report.StudentScores, scores...)
		if !class.NoData {
			attained = append(attained, class.AttainedPercentage)
		}
	}

	report.OverallAttainment = core.Round(core.Mean(attained...), 2)
	report.NoData = report.TotalStudents == 0 || len(marks) == 0 || len(in.Outcomes) == 0
	return report
}

// Err returns ErrNoData for a report without data.
func (r CourseAttainmentReport) Err() error {
	if r.NoData {
		return ErrNoData
	}
	return nil
}

// Attainments returns the persistable per student rows of the report.
func (r CourseAttainmentReport) Attainments() []StudentCOAttainment {
	rows := make([]StudentCOAttainment, 0, len(r.StudentScores))
	for _, s := range r.StudentScores {
		rows = append(rows, StudentCOAttainment{
			COID:         s.COID,
			StudentID:    s.StudentID,
			AcademicYear: r.AcademicYear,
			Percentage:   s.Percentage,
			MetTarget:    s.MetTarget,
		})
	}
	return rows
}

// selectMarks keeps the marks of the academic year (all years when empty, latest year winning)
// and reports data-quality issues the scorer will have to work around.
func selectMarks(marks []StudentMark, year string) ([]StudentMark, []string) {
	type key struct{ question, student string }

	var badMax, clamped int
	selected := make(map[key]StudentMark, len(marks))
	order := make([]key, 0, len(marks))
	year = core.NormalizeAcademicYear(year)
	for _, m := range marks {
		m.AcademicYear = core.NormalizeAcademicYear(m.AcademicYear)
		if year != "" && m.AcademicYear != year {
			continue
		}
		k := key{m.QuestionID, m.StudentID}
		prev, seen := selected[k]
		if !seen {
			order = append(order, k)
		} else if year == "" && prev.AcademicYear > m.AcademicYear {
			continue
		}
		selected[k] = m
	}

	res := make([]StudentMark, 0, len(order))
	for _, k := range order {
		m := selected[k]
		if !validMax(m.MaxMarks) {
			badMax++
		} else if m.ObtainedMarks != nil && clampMark(*m.ObtainedMarks, m.MaxMarks) != *m.ObtainedMarks {
			clamped++
		}
		res = append(res, m)
	}

	var warnings []string
	if badMax > 0 {
		warnings = append(warnings, fmt.Sprintf("%d mark(s) ignored: max marks must be positive", badMax))
	}
	if clamped > 0 {
		warnings = append(warnings, fmt.Sprintf("%d mark(s) clamped into [0, max marks]", clamped))
	}
	return res, warnings
}

func classStudents(enrolled []string, marks []StudentMark) []string {
	set := make(map[string]struct{}, len(enrolled))
	if len(enrolled) > 0 {
		for _, sID := range enrolled {
			if sID = core.CleanString(sID); sID != "" {
				set[sID] = struct{}{}
			}
		}
	} else {
		for _, m := range marks {
			set[m.StudentID] = struct{}{}
		}
	}

	students := make([]string, 0, len(set))
	for sID := range set {
		students = append(students, sID)
	}
	sort.Strings(students)
	return students
}

func mapQuestionsByCO(mappings []QuestionCOMapping) map[string][]string {
	seen := make(map[QuestionCOMapping]struct{}, len(mappings))
	byCO := make(map[string][]string)
	for _, m := range mappings {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		byCO[m.COID] = append(byCO[m.COID], m.QuestionID)
	}
	return byCO
}
