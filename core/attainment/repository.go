package attainment

import "context"

type (
	MarksRepository interface {
		// FetchMarks returns the marks of the course questions; all years when academicYear is "".
		FetchMarks(ctx context.Context, courseID, academicYear string) ([]StudentMark, error)
		FetchEnrolledStudents(ctx context.Context, courseID string) ([]string, error)
	}

	MappingRepository interface {
		FetchQuestionCOMappings(ctx context.Context, courseID string) ([]QuestionCOMapping, error)
		FetchCOPOMappings(ctx context.Context, courseID string) ([]COPOMapping, error)
	}

	CourseRepository interface {
		// FetchCourse returns ErrCourseNotFound for unknown courses.
		FetchCourse(ctx context.Context, courseID string) (Course, error)
		FetchCourseSettings(ctx context.Context, courseID string) (CourseSettings, error)
		// FetchCourseOutcomes returns the course COs ordered by code.
		FetchCourseOutcomes(ctx context.Context, courseID string) ([]CourseOutcome, error)
		// FetchProgramOutcomes returns the program POs ordered by code.
		FetchProgramOutcomes(ctx context.Context, programID string) ([]ProgramOutcome, error)
		// FetchBatchCourses applies the non-empty filter fields and orders courses by code.
		// It returns ErrBatchNotFound for unknown batches.
		FetchBatchCourses(ctx context.Context, batchID string, filter CourseFilter) ([]Course, error)
	}

	AttainmentRepository interface {
		// UpsertCOAttainments writes all rows in a single transaction, keyed by (co, student, academic year).
		// Either every row is written or none is.
		UpsertCOAttainments(ctx context.Context, courseID, academicYear string, rows []StudentCOAttainment) error
		// QueryCOAttainments returns the persisted rows of the course COs, ordered by CO then student.
		QueryCOAttainments(ctx context.Context, courseID, academicYear string) ([]StudentCOAttainment, error)
	}

	// Repository is the data access needed by the Service.
	Repository interface {
		MarksRepository
		MappingRepository
		CourseRepository
		AttainmentRepository
	}
)
