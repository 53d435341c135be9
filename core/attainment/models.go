package attainment

import (
	"fmt"
	"time"

	"github.com/trezcool/outcomes/core"
)

// CourseStatus is the lifecycle state of a course offering.
type CourseStatus string

const (
	CourseFuture    CourseStatus = "FUTURE"
	CourseActive    CourseStatus = "ACTIVE"
	CourseCompleted CourseStatus = "COMPLETED"
)

func (s CourseStatus) Valid() bool {
	switch s {
	case CourseFuture, CourseActive, CourseCompleted:
		return true
	}
	return false
}

// PO statuses
const (
	StatusLevel3      = "Level 3"
	StatusLevel2      = "Level 2"
	StatusLevel1      = "Level 1"
	StatusNotAttained = "Not Attained"
)

type (
	Question struct {
		ID           string  `json:"id"`
		CourseID     string  `json:"course_id"`
		AssessmentID string  `json:"assessment_id"`
		MaxMarks     float64 `json:"max_marks"`
	}

	// StudentMark is one student's mark for one question in an academic year.
	// ObtainedMarks is nil when the question was not attempted.
	StudentMark struct {
		QuestionID    string   `json:"question_id" validate:"required"`
		StudentID     string   `json:"student_id" validate:"required"`
		AcademicYear  string   `json:"academic_year" validate:"academic_year"`
		ObtainedMarks *float64 `json:"obtained_marks" validate:"omitempty,gte=0,ltefield=MaxMarks"`
		MaxMarks      float64  `json:"max_marks" validate:"gt=0"`
	}

	CourseOutcome struct {
		ID          string `json:"id"`
		CourseID    string `json:"course_id"`
		Code        string `json:"code"`
		Description string `json:"description"`
	}

	ProgramOutcome struct {
		ID          string `json:"id"`
		ProgramID   string `json:"program_id"`
		Code        string `json:"code"`
		Description string `json:"description"`
	}

	QuestionCOMapping struct {
		QuestionID string `json:"question_id"`
		COID       string `json:"co_id"`
	}

	COPOMapping struct {
		CourseID string `json:"course_id"`
		COID     string `json:"co_id" validate:"required"`
		POID     string `json:"po_id" validate:"required"`
		Level    int    `json:"level" validate:"min=1,max=3"`
	}

	// Thresholds are the class pass-rate percentages required for attainment levels 1, 2 and 3.
	Thresholds struct {
		Level1 float64 `json:"level1" validate:"percent"`
		Level2 float64 `json:"level2" validate:"percent"`
		Level3 float64 `json:"level3" validate:"percent"`
	}

	CourseSettings struct {
		TargetPercentage float64      `json:"target_percentage" validate:"percent"`
		Thresholds       Thresholds   `json:"thresholds"`
		Status           CourseStatus `json:"status"`
	}

	Course struct {
		ID           string         `json:"id"`
		Code         string         `json:"code"`
		Name         string         `json:"name"`
		ProgramID    string         `json:"program_id"`
		BatchID      string         `json:"batch_id"`
		AcademicYear string         `json:"academic_year"`
		Settings     CourseSettings `json:"settings"`
	}

	// StudentCOAttainment is the persisted per student CO attainment.
	// It is keyed by (COID, StudentID, AcademicYear).
	StudentCOAttainment struct {
		ID           string    `json:"id,omitempty"`
		COID         string    `json:"co_id" validate:"required"`
		StudentID    string    `json:"student_id" validate:"required"`
		AcademicYear string    `json:"academic_year" validate:"academic_year"`
		Percentage   float64   `json:"percentage" validate:"percent"`
		MetTarget    bool      `json:"met_target"`
		UpdatedAt    time.Time `json:"updated_at,omitempty"`
	}

	// CourseFilter narrows the courses of a batch considered by a batch rollup.
	CourseFilter struct {
		AcademicYear string       `json:"academic_year" query:"academic_year" validate:"academic_year"`
		CourseStatus CourseStatus `json:"course_status" query:"course_status"`
	}
)

// Key is the natural key of the attainment row.
func (a StudentCOAttainment) Key() string {
	return a.COID + "|" + a.StudentID + "|" + a.AcademicYear
}

// Ascending reports whether level1 <= level2 <= level3.
func (t Thresholds) Ascending() bool {
	return t.Level1 <= t.Level2 && t.Level2 <= t.Level3
}

func (t Thresholds) String() string {
	return fmt.Sprintf("(%g, %g, %g)", t.Level1, t.Level2, t.Level3)
}

// NewStudentMark validates and builds a StudentMark. A nil `obtained` means not attempted.
func NewStudentMark(questionID, studentID, academicYear string, obtained *float64, maxMarks float64) (StudentMark, error) {
	m := StudentMark{
		QuestionID:    core.CleanString(questionID),
		StudentID:     core.CleanString(studentID),
		AcademicYear:  core.NormalizeAcademicYear(academicYear),
		ObtainedMarks: obtained,
		MaxMarks:      maxMarks,
	}
	if err := core.Validate.Struct(m); err != nil {
		return StudentMark{}, err
	}
	return m, nil
}

// NewThresholds validates and builds level Thresholds.
// Non-ascending values are accepted; see Ascending.
func NewThresholds(level1, level2, level3 float64) (Thresholds, error) {
	t := Thresholds{Level1: level1, Level2: level2, Level3: level3}
	if err := core.Validate.Struct(t); err != nil {
		return Thresholds{}, err
	}
	return t, nil
}

// NewCOPOMapping validates and builds a COPOMapping.
func NewCOPOMapping(courseID, coID, poID string, level int) (COPOMapping, error) {
	m := COPOMapping{
		CourseID: core.CleanString(courseID),
		COID:     core.CleanString(coID),
		POID:     core.CleanString(poID),
		Level:    level,
	}
	if err := core.Validate.Struct(m); err != nil {
		return COPOMapping{}, err
	}
	return m, nil
}

// Float64 returns a pointer to f; handy for building marks.
func Float64(f float64) *float64 { return &f }

type (
	Batch struct {
		ID        string `json:"id"`
		ProgramID string `json:"program_id"`
		Name      string `json:"name"`
	}

	Enrollment struct {
		CourseID  string `json:"course_id"`
		StudentID string `json:"student_id"`
	}

	// Dataset is a denormalized snapshot of the engine inputs, used to seed embedded stores.
	Dataset struct {
		Batches            []Batch             `json:"batches"`
		Courses            []Course            `json:"courses"`
		CourseOutcomes     []CourseOutcome     `json:"course_outcomes"`
		ProgramOutcomes    []ProgramOutcome    `json:"program_outcomes"`
		Questions          []Question          `json:"questions"`
		QuestionCOMappings []QuestionCOMapping `json:"question_co_mappings"`
		COPOMappings       []COPOMapping       `json:"co_po_mappings"`
		Marks              []StudentMark       `json:"marks"`
		Enrollments        []Enrollment        `json:"enrollments"`
	}
)

// Normalized returns a copy of the dataset with the academic years of its courses and marks
// rewritten by core.NormalizeAcademicYear.
func (d Dataset) Normalized() Dataset {
	d.Courses = append([]Course(nil), d.Courses...)
	for i := range d.Courses {
		d.Courses[i].AcademicYear = core.NormalizeAcademicYear(d.Courses[i].AcademicYear)
	}
	d.Marks = append([]StudentMark(nil), d.Marks...)
	for i := range d.Marks {
		d.Marks[i].AcademicYear = core.NormalizeAcademicYear(d.Marks[i].AcademicYear)
	}
	return d
}

// QuestionCourses returns question id -> course id.
func (d Dataset) QuestionCourses() map[string]string {
	res := make(map[string]string, len(d.Questions))
	for _, q := range d.Questions {
		res[q.ID] = q.CourseID
	}
	return res
}
