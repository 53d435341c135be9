package attainment

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrCourseNotFound   = errors.New("course not found")
	ErrBatchNotFound    = errors.New("batch not found")
	ErrNoData           = errors.New("no attainment data for the requested scope")
	ErrIneligibleCourse = errors.New("PO attainment is only defined for COMPLETED courses")
)

// PersistenceError reports a failed attainment upsert; nothing of the batch was written.
type PersistenceError struct {
	CourseID     string
	AcademicYear string
	Rows         int
	Err          error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting %d CO attainment rows of course %q (%s): %v", e.Rows, e.CourseID, yearLabel(e.AcademicYear), e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistence reports whether err is, or wraps, a *PersistenceError.
func IsPersistence(err error) bool {
	var pErr *PersistenceError
	return errors.As(err, &pErr)
}

// ThresholdWarning flags course thresholds that are not ascending.
// The engine keeps computing with the raw values.
type ThresholdWarning struct {
	CourseID   string
	Thresholds Thresholds
}

func (w ThresholdWarning) Error() string {
	return fmt.Sprintf("course %q thresholds %s are not ascending (level1 <= level2 <= level3)", w.CourseID, w.Thresholds)
}

func yearLabel(year string) string {
	if year == "" {
		return "all years"
	}
	return year
}
