package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/outcomes/core/attainment"
)

type attainmentRepository struct {
	db *DB
}

var _ attainment.Repository = (*attainmentRepository)(nil) // interface compliance check

func NewAttainmentRepository(db *DB) *attainmentRepository {
	return &attainmentRepository{db: db}
}

func (repo *attainmentRepository) course(id string) (attainment.Course, bool) {
	for _, c := range repo.db.data.Courses {
		if c.ID == id {
			return c, true
		}
	}
	return attainment.Course{}, false
}

func (repo *attainmentRepository) FetchCourse(_ context.Context, courseID string) (attainment.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.course(courseID); ok {
		return c, nil
	}
	return attainment.Course{}, attainment.ErrCourseNotFound
}

func (repo *attainmentRepository) FetchCourseSettings(_ context.Context, courseID string) (attainment.CourseSettings, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.course(courseID); ok {
		return c.Settings, nil
	}
	return attainment.CourseSettings{}, attainment.ErrCourseNotFound
}

func (repo *attainmentRepository) FetchCourseOutcomes(_ context.Context, courseID string) ([]attainment.CourseOutcome, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	cos := make([]attainment.CourseOutcome, 0)
	for _, co := range repo.db.data.CourseOutcomes {
		if co.CourseID == courseID {
			cos = append(cos, co)
		}
	}
	sort.SliceStable(cos, func(i, j int) bool { return cos[i].Code < cos[j].Code })
	return cos, nil
}

func (repo *attainmentRepository) FetchProgramOutcomes(_ context.Context, programID string) ([]attainment.ProgramOutcome, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	pos := make([]attainment.ProgramOutcome, 0)
	for _, po := range repo.db.data.ProgramOutcomes {
		if po.ProgramID == programID {
			pos = append(pos, po)
		}
	}
	sort.SliceStable(pos, func(i, j int) bool { return pos[i].Code < pos[j].Code })
	return pos, nil
}

func (repo *attainmentRepository) FetchBatchCourses(_ context.Context, batchID string, filter attainment.CourseFilter) ([]attainment.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var found bool
	for _, b := range repo.db.data.Batches {
		if b.ID == batchID {
			found = true
			break
		}
	}
	if !found {
		return nil, attainment.ErrBatchNotFound
	}

	courses := make([]attainment.Course, 0)
	for _, c := range repo.db.data.Courses {
		if c.BatchID != batchID {
			continue
		}
		if filter.AcademicYear != "" && c.AcademicYear != filter.AcademicYear {
			continue
		}
		if filter.CourseStatus != "" && c.Settings.Status != filter.CourseStatus {
			continue
		}
		courses = append(courses, c)
	}
	sort.SliceStable(courses, func(i, j int) bool { return courses[i].Code < courses[j].Code })
	return courses, nil
}

func (repo *attainmentRepository) FetchMarks(_ context.Context, courseID, academicYear string) ([]attainment.StudentMark, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	qCourses := repo.db.data.QuestionCourses()
	marks := make([]attainment.StudentMark, 0)
	for _, m := range repo.db.data.Marks {
		if qCourses[m.QuestionID] != courseID {
			continue
		}
		if academicYear != "" && m.AcademicYear != academicYear {
			continue
		}
		marks = append(marks, m)
	}
	return marks, nil
}

func (repo *attainmentRepository) FetchEnrolledStudents(_ context.Context, courseID string) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := make([]string, 0)
	for _, e := range repo.db.data.Enrollments {
		if e.CourseID == courseID {
			students = append(students, e.StudentID)
		}
	}
	sort.Strings(students)
	return students, nil
}

func (repo *attainmentRepository) FetchQuestionCOMappings(_ context.Context, courseID string) ([]attainment.QuestionCOMapping, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	qCourses := repo.db.data.QuestionCourses()
	mappings := make([]attainment.QuestionCOMapping, 0)
	for _, m := range repo.db.data.QuestionCOMappings {
		if qCourses[m.QuestionID] == courseID {
			mappings = append(mappings, m)
		}
	}
	return mappings, nil
}

func (repo *attainmentRepository) FetchCOPOMappings(_ context.Context, courseID string) ([]attainment.COPOMapping, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	mappings := make([]attainment.COPOMapping, 0)
	for _, m := range repo.db.data.COPOMappings {
		if m.CourseID == courseID {
			mappings = append(mappings, m)
		}
	}
	return mappings, nil
}

func (repo *attainmentRepository) UpsertCOAttainments(_ context.Context, _, _ string, rows []attainment.StudentCOAttainment) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.db.writeErr != nil {
		return repo.db.writeErr
	}
	for _, row := range rows {
		if prev, ok := repo.db.attainments[row.Key()]; ok {
			row.ID = prev.ID
		}
		repo.db.attainments[row.Key()] = row
	}
	return nil
}

func (repo *attainmentRepository) QueryCOAttainments(_ context.Context, courseID, academicYear string) ([]attainment.StudentCOAttainment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	coSet := make(map[string]string)
	for _, co := range repo.db.data.CourseOutcomes {
		if co.CourseID == courseID {
			coSet[co.ID] = co.Code
		}
	}

	rows := make([]attainment.StudentCOAttainment, 0)
	for _, row := range repo.db.attainments {
		if _, ok := coSet[row.COID]; ok && row.AcademicYear == academicYear {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if ci, cj := coSet[rows[i].COID], coSet[rows[j].COID]; ci != cj {
			return ci < cj
		}
		return rows[i].StudentID < rows[j].StudentID
	})
	return rows, nil
}

// Import appends the dataset to the engine inputs.
func (repo *attainmentRepository) Import(_ context.Context, ds attainment.Dataset) error {
	ds = ds.Normalized()
	repo.db.Update(func(d *attainment.Dataset) {
		d.Batches = append(d.Batches, ds.Batches...)
		d.Courses = append(d.Courses, ds.Courses...)
		d.CourseOutcomes = append(d.CourseOutcomes, ds.CourseOutcomes...)
		d.ProgramOutcomes = append(d.ProgramOutcomes, ds.ProgramOutcomes...)
		d.Questions = append(d.Questions, ds.Questions...)
		d.QuestionCOMappings = append(d.QuestionCOMappings, ds.QuestionCOMappings...)
		d.COPOMappings = append(d.COPOMappings, ds.COPOMappings...)
		d.Marks = append(d.Marks, ds.Marks...)
		d.Enrollments = append(d.Enrollments, ds.Enrollments...)
	})
	return nil
}
