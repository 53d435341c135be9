package boltdb

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/trezcool/outcomes/core/attainment"
)

type attainmentRepository struct {
	db *bbolt.DB
}

var _ attainment.Repository = (*attainmentRepository)(nil) // interface compliance check

func NewAttainmentRepository(db *DB) *attainmentRepository {
	return &attainmentRepository{db: db.db}
}

func (repo *attainmentRepository) FetchCourse(_ context.Context, courseID string) (course attainment.Course, err error) {
	err = repo.db.View(func(tx *bbolt.Tx) error {
		found, err := get(tx, bktCourses, key(courseID), &course)
		if err == nil && !found {
			err = attainment.ErrCourseNotFound
		}
		return err
	})
	return course, err
}

func (repo *attainmentRepository) FetchCourseSettings(ctx context.Context, courseID string) (attainment.CourseSettings, error) {
	course, err := repo.FetchCourse(ctx, courseID)
	return course.Settings, err
}

func (repo *attainmentRepository) FetchCourseOutcomes(_ context.Context, courseID string) (cos []attainment.CourseOutcome, err error) {
	err = repo.db.View(func(tx *bbolt.Tx) error {
		cos, err = scan[attainment.CourseOutcome](tx, bktCourseOutcomes, prefix(courseID))
		return err
	})
	sort.SliceStable(cos, func(i, j int) bool { return cos[i].Code < cos[j].Code })
	return cos, err
}

func (repo *attainmentRepository) FetchProgramOutcomes(_ context.Context, programID string) (pos []attainment.ProgramOutcome, err error) {
	err = repo.db.View(func(tx *bbolt.Tx) error {
		pos, err = scan[attainment.ProgramOutcome](tx, bktProgramOutcomes, prefix(programID))
		return err
	})
	sort.SliceStable(pos, func(i, j int) bool { return pos[i].Code < pos[j].Code })
	return pos, err
}

func (repo *attainmentRepository) FetchBatchCourses(_ context.Context, batchID string, filter attainment.CourseFilter) ([]attainment.Course, error) {
	courses := make([]attainment.Course, 0)
	err := repo.db.View(func(tx *bbolt.Tx) error {
		var batch attainment.Batch
		found, err := get(tx, bktBatches, key(batchID), &batch)
		if err != nil {
			return err
		} else if !found {
			return attainment.ErrBatchNotFound
		}

		ids, err := scan[string](tx, bktBatchCourses, prefix(batchID))
		if err != nil {
			return err
		}
		for _, id := range ids {
			var c attainment.Course
			if found, err := get(tx, bktCourses, key(id), &c); err != nil {
				return err
			} else if !found {
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
		return nil
	})
	sort.SliceStable(courses, func(i, j int) bool { return courses[i].Code < courses[j].Code })
	return courses, err
}

func (repo *attainmentRepository) FetchMarks(_ context.Context, courseID, academicYear string) (marks []attainment.StudentMark, err error) {
	p := prefix(courseID)
	if academicYear != "" {
		p = prefix(courseID, academicYear)
	}
	err = repo.db.View(func(tx *bbolt.Tx) error {
		marks, err = scan[attainment.StudentMark](tx, bktMarks, p)
		return err
	})
	return marks, err
}

func (repo *attainmentRepository) FetchEnrolledStudents(_ context.Context, courseID string) (students []string, err error) {
	err = repo.db.View(func(tx *bbolt.Tx) error {
		students, err = scan[string](tx, bktEnrollments, prefix(courseID))
		return err
	})
	return students, err
}

func (repo *attainmentRepository) FetchQuestionCOMappings(_ context.Context, courseID string) (mappings []attainment.QuestionCOMapping, err error) {
	err = repo.db.View(func(tx *bbolt.Tx) error {
		mappings, err = scan[attainment.QuestionCOMapping](tx, bktQuestionCO, prefix(courseID))
		return err
	})
	return mappings, err
}

func (repo *attainmentRepository) FetchCOPOMappings(_ context.Context, courseID string) (mappings []attainment.COPOMapping, err error) {
	err = repo.db.View(func(tx *bbolt.Tx) error {
		mappings, err = scan[attainment.COPOMapping](tx, bktCOPO, prefix(courseID))
		return err
	})
	return mappings, err
}

// UpsertCOAttainments writes all rows in a single bolt transaction; existing rows keep their id.
func (repo *attainmentRepository) UpsertCOAttainments(_ context.Context, courseID, academicYear string, rows []attainment.StudentCOAttainment) error {
	return repo.db.Update(func(tx *bbolt.Tx) error {
		for _, row := range rows {
			k := key(courseID, academicYear, row.COID, row.StudentID)
			var prev attainment.StudentCOAttainment
			if found, err := get(tx, bktAttainments, k, &prev); err != nil {
				return err
			} else if found {
				row.ID = prev.ID
			}
			if err := put(tx, bktAttainments, k, row); err != nil {
				return errors.Wrap(err, "upserting CO attainment")
			}
		}
		return nil
	})
}

func (repo *attainmentRepository) QueryCOAttainments(_ context.Context, courseID, academicYear string) ([]attainment.StudentCOAttainment, error) {
	var (
		rows []attainment.StudentCOAttainment
		cos  []attainment.CourseOutcome
	)
	err := repo.db.View(func(tx *bbolt.Tx) (err error) {
		if cos, err = scan[attainment.CourseOutcome](tx, bktCourseOutcomes, prefix(courseID)); err != nil {
			return err
		}
		rows, err = scan[attainment.StudentCOAttainment](tx, bktAttainments, prefix(courseID, academicYear))
		return err
	})
	if err != nil {
		return nil, err
	}

	codes := make(map[string]string, len(cos))
	for _, co := range cos {
		codes[co.ID] = co.Code
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if ci, cj := codes[rows[i].COID], codes[rows[j].COID]; ci != cj {
			return ci < cj
		}
		return rows[i].StudentID < rows[j].StudentID
	})
	return rows, nil
}

// Import upserts a dataset in a single transaction.
func (repo *attainmentRepository) Import(_ context.Context, ds attainment.Dataset) error {
	ds = ds.Normalized()
	qCourses := ds.QuestionCourses()
	return repo.db.Update(func(tx *bbolt.Tx) error {
		for _, b := range ds.Batches {
			if err := put(tx, bktBatches, key(b.ID), b); err != nil {
				return err
			}
		}
		for _, c := range ds.Courses {
			if err := put(tx, bktCourses, key(c.ID), c); err != nil {
				return err
			}
			if err := put(tx, bktBatchCourses, key(c.BatchID, c.ID), c.ID); err != nil {
				return err
			}
		}
		for _, co := range ds.CourseOutcomes {
			if err := put(tx, bktCourseOutcomes, key(co.CourseID, co.ID), co); err != nil {
				return err
			}
		}
		for _, po := range ds.ProgramOutcomes {
			if err := put(tx, bktProgramOutcomes, key(po.ProgramID, po.ID), po); err != nil {
				return err
			}
		}
		for _, q := range ds.Questions {
			if err := put(tx, bktQuestions, key(q.ID), q); err != nil {
				return err
			}
		}
		for _, m := range ds.QuestionCOMappings {
			courseID, ok := qCourses[m.QuestionID]
			if !ok {
				return errors.Errorf("question-CO mapping: unknown question %q", m.QuestionID)
			}
			if err := put(tx, bktQuestionCO, key(courseID, m.QuestionID, m.COID), m); err != nil {
				return err
			}
		}
		for _, m := range ds.COPOMappings {
			if err := put(tx, bktCOPO, key(m.CourseID, m.COID, m.POID), m); err != nil {
				return err
			}
		}
		for _, e := range ds.Enrollments {
			if err := put(tx, bktEnrollments, key(e.CourseID, e.StudentID), e.StudentID); err != nil {
				return err
			}
		}
		for _, m := range ds.Marks {
			courseID, ok := qCourses[m.QuestionID]
			if !ok {
				return errors.Errorf("mark: unknown question %q", m.QuestionID)
			}
			k := key(courseID, m.AcademicYear, m.QuestionID, m.StudentID)
			var prev attainment.StudentMark
			if found, err := get(tx, bktMarks, k, &prev); err != nil {
				return err
			} else if found {
				m.MaxMarks = prev.MaxMarks
			}
			if err := put(tx, bktMarks, k, m); err != nil {
				return err
			}
		}
		return nil
	})
}
