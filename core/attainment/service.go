package attainment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/trezcool/outcomes/core"
)

const (
	defaultBatchConcurrency = 4
	batchReportTemplate     = "batch_compliance"
)

type Service struct {
	repo        Repository
	logger      core.Logger
	mailSvc     core.EmailService
	policy      Policy
	concurrency int
	now         func() time.Time

	recomputes singleflight.Group
	persists   keyedMutex
}

func NewService(repo Repository, logger core.Logger, mailSvc core.EmailService, policy Policy) *Service {
	return &Service{
		repo:        repo,
		logger:      logger,
		mailSvc:     mailSvc,
		policy:      policy,
		concurrency: defaultBatchConcurrency,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// NewServiceFromConfig builds a Service with the configured policy, or the default one when invalid.
func NewServiceFromConfig(conf *core.Config, repo Repository, logger core.Logger, mailSvc core.EmailService) *Service {
	policy, err := PolicyFromConfig(conf.Attainment)
	if err != nil {
		logger.Warn("attainment: invalid policy config, using defaults", err)
	}
	svc := NewService(repo, logger, mailSvc, policy)
	if conf.Attainment.BatchConcurrency > 0 {
		svc.concurrency = conf.Attainment.BatchConcurrency
	}
	return svc
}

func (svc *Service) Policy() Policy { return svc.policy }

// ComputeCourseCOAttainment computes the CO attainment of a course; nothing is persisted.
func (svc *Service) ComputeCourseCOAttainment(ctx context.Context, courseID, academicYear string) (CourseAttainmentReport, error) {
	courseID = core.CleanString(courseID)
	academicYear = core.NormalizeAcademicYear(academicYear)
	if err := validateAcademicYear(academicYear); err != nil {
		return CourseAttainmentReport{}, err
	}

	course, err := svc.fetchCourse(ctx, courseID)
	if err != nil {
		return CourseAttainmentReport{}, err
	}

	in := CourseInputs{Course: course, AcademicYear: academicYear}
	if in.Outcomes, err = svc.repo.FetchCourseOutcomes(ctx, courseID); err != nil {
		return CourseAttainmentReport{}, errors.Wrap(err, "fetching course outcomes")
	}
	if in.Mappings, err = svc.repo.FetchQuestionCOMappings(ctx, courseID); err != nil {
		return CourseAttainmentReport{}, errors.Wrap(err, "fetching question-CO mappings")
	}
	if in.Marks, err = svc.repo.FetchMarks(ctx, courseID, academicYear); err != nil {
		return CourseAttainmentReport{}, errors.Wrap(err, "fetching marks")
	}
	if in.Enrolled, err = svc.repo.FetchEnrolledStudents(ctx, courseID); err != nil {
		return CourseAttainmentReport{}, errors.Wrap(err, "fetching enrolled students")
	}

	report := BuildCourseCOReport(in)
	svc.warn(report.Warnings, map[string]interface{}{"course_id": courseID, "academic_year": academicYear})
	return report, nil
}

// PersistCOAttainment upserts the student attainments of a course in one transaction.
// Writers of the same course and academic year are serialized. Rows take the given academic year.
func (svc *Service) PersistCOAttainment(ctx context.Context, courseID string, attainments []StudentCOAttainment, academicYear string) error {
	courseID = core.CleanString(courseID)
	academicYear = core.NormalizeAcademicYear(academicYear)
	if err := validateAcademicYear(academicYear); err != nil {
		return err
	}
	if _, err := svc.fetchCourse(ctx, courseID); err != nil {
		return err
	}

	cos, err := svc.repo.FetchCourseOutcomes(ctx, courseID)
	if err != nil {
		return errors.Wrap(err, "fetching course outcomes")
	}
	rows, err := svc.prepareRows(cos, attainments, academicYear)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	unlock := svc.persists.Lock(courseID + "|" + academicYear)
	defer unlock()

	if err := svc.repo.UpsertCOAttainments(ctx, courseID, academicYear, rows); err != nil {
		return &PersistenceError{CourseID: courseID, AcademicYear: academicYear, Rows: len(rows), Err: err}
	}
	return nil
}

// prepareRows validates, stamps and dedupes (last wins) the rows to persist.
func (svc *Service) prepareRows(cos []CourseOutcome, attainments []StudentCOAttainment, academicYear string) ([]StudentCOAttainment, error) {
	coSet := make(map[string]struct{}, len(cos))
	for _, co := range cos {
		coSet[co.ID] = struct{}{}
	}

	now := svc.now()
	index := make(map[string]int, len(attainments))
	rows := make([]StudentCOAttainment, 0, len(attainments))
	for i, a := range attainments {
		a.COID = core.CleanString(a.COID)
		a.StudentID = core.CleanString(a.StudentID)
		a.AcademicYear = academicYear
		a.Percentage = core.Round(a.Percentage, 2)
		a.UpdatedAt = now
		if a.ID == "" {
			a.ID = uuid.New().String()
		}

		field := fmt.Sprintf("attainments[%d]", i)
		if err := core.Validate.Struct(a); err != nil {
			return nil, core.NewValidationError(
				errors.Wrap(err, "invalid CO attainment"),
				core.FieldError{Field: field, Error: err.Error()},
			)
		}
		if _, ok := coSet[a.COID]; !ok {
			return nil, core.NewValidationError(
				errors.Errorf("CO %q does not belong to the course", a.COID),
				core.FieldError{Field: field + ".co_id", Error: "unknown course outcome"},
			)
		}

		if j, ok := index[a.Key()]; ok {
			a.ID = rows[j].ID
			rows[j] = a
			continue
		}
		index[a.Key()] = len(rows)
		rows = append(rows, a)
	}
	return rows, nil
}

// RecomputeCourseCOAttainment computes and persists the CO attainment of a course.
//
// Concurrent calls for the same course and academic year share one run. A persistence failure does not
// fail the call: the report comes back with Persisted false and the error in PersistError. A report
// without data is not persisted and PersistSkipped says why; rows persisted earlier are left as is.
func (svc *Service) RecomputeCourseCOAttainment(ctx context.Context, courseID, academicYear string) (CourseAttainmentReport, error) {
	courseID = core.CleanString(courseID)
	academicYear = core.NormalizeAcademicYear(academicYear)

	v, err, _ := svc.recomputes.Do(courseID+"|"+academicYear, func() (interface{}, error) {
		report, err := svc.ComputeCourseCOAttainment(ctx, courseID, academicYear)
		if err != nil {
			return CourseAttainmentReport{}, err
		}
		if report.NoData {
			report.PersistSkipped = persistSkippedNoData
			svc.logger.Info(fmt.Sprintf("attainment.Recompute(%s): %s", courseID, report.PersistSkipped))
			return report, nil
		}

		if err := svc.PersistCOAttainment(ctx, courseID, report.Attainments(), academicYear); err != nil {
			if !IsPersistence(err) {
				return CourseAttainmentReport{}, err
			}
			svc.logger.Error(fmt.Sprintf("attainment.Recompute(%s): %v", courseID, err), err)
			report.PersistError = err.Error()
			return report, nil
		}
		report.Persisted = true
		return report, nil
	})
	if err != nil {
		return CourseAttainmentReport{}, err
	}
	return v.(CourseAttainmentReport), nil
}

// QueryCOAttainments returns the persisted student attainments of a course.
func (svc *Service) QueryCOAttainments(ctx context.Context, courseID, academicYear string) ([]StudentCOAttainment, error) {
	courseID = core.CleanString(courseID)
	academicYear = core.NormalizeAcademicYear(academicYear)
	if err := validateAcademicYear(academicYear); err != nil {
		return nil, err
	}
	if _, err := svc.fetchCourse(ctx, courseID); err != nil {
		return nil, err
	}
	rows, err := svc.repo.QueryCOAttainments(ctx, courseID, academicYear)
	return rows, errors.Wrap(err, "querying CO attainments")
}

// ComputePOAttainment computes the PO attainment of a course.
// A course that is not COMPLETED yields a not eligible report, not an error.
func (svc *Service) ComputePOAttainment(ctx context.Context, courseID string) (PORollupReport, error) {
	course, err := svc.fetchCourse(ctx, core.CleanString(courseID))
	if err != nil {
		return PORollupReport{}, err
	}
	return svc.rollupCourse(ctx, course)
}

func (svc *Service) rollupCourse(ctx context.Context, course Course) (PORollupReport, error) {
	if course.Settings.Status != CourseCompleted {
		return RollupPO(course, nil, nil, nil, svc.policy), nil
	}

	cos, err := svc.repo.FetchCourseOutcomes(ctx, course.ID)
	if err != nil {
		return PORollupReport{}, errors.Wrap(err, "fetching course outcomes")
	}
	pos, err := svc.repo.FetchProgramOutcomes(ctx, course.ProgramID)
	if err != nil {
		return PORollupReport{}, errors.Wrap(err, "fetching program outcomes")
	}
	mappings, err := svc.repo.FetchCOPOMappings(ctx, course.ID)
	if err != nil {
		return PORollupReport{}, errors.Wrap(err, "fetching CO-PO mappings")
	}

	report := RollupPO(course, cos, pos, mappings, svc.policy)
	svc.warn(report.Warnings, map[string]interface{}{"course_id": course.ID})
	return report, nil
}

// ComputeBatchPOAttainment rolls up the PO attainment of the batch courses matching the filter.
// The status filter defaults to COMPLETED; other courses are reported as skipped.
func (svc *Service) ComputeBatchPOAttainment(ctx context.Context, batchID string, filter CourseFilter) (BatchComplianceReport, error) {
	batchID = core.CleanString(batchID)
	filter.AcademicYear = core.NormalizeAcademicYear(filter.AcademicYear)
	filter.CourseStatus = CourseStatus(core.CleanString(string(filter.CourseStatus)))
	if filter.CourseStatus == "" {
		filter.CourseStatus = CourseCompleted
	}
	if err := validateAcademicYear(filter.AcademicYear); err != nil {
		return BatchComplianceReport{}, err
	}
	if !filter.CourseStatus.Valid() {
		return BatchComplianceReport{}, core.NewValidationError(
			errors.Errorf("invalid course status %q", filter.CourseStatus),
			core.FieldError{Field: "course_status", Error: "course_status must be one of FUTURE, ACTIVE, COMPLETED"},
		)
	}

	courses, err := svc.repo.FetchBatchCourses(ctx, batchID, CourseFilter{AcademicYear: filter.AcademicYear})
	if err != nil {
		return BatchComplianceReport{}, errors.Wrap(err, "fetching batch courses")
	}

	var (
		skipped  []SkippedCourse
		selected []Course
	)
	for _, c := range courses {
		if c.Settings.Status != filter.CourseStatus {
			skipped = append(skipped, SkippedCourse{
				CourseID:   c.ID,
				CourseCode: c.Code,
				Reason:     fmt.Sprintf("course status %s does not match the %s filter", statusLabel(c.Settings.Status), filter.CourseStatus),
			})
			continue
		}
		selected = append(selected, c)
	}

	reports := make([]PORollupReport, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(svc.concurrency)
	for i, c := range selected {
		i, c := i, c
		g.Go(func() error {
			r, err := svc.rollupCourse(gctx, c)
			if err != nil {
				return errors.Wrapf(err, "course %s", c.Code)
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchComplianceReport{}, err
	}

	res := RollupBatch(batchID, reports, svc.policy)
	res.AcademicYear = filter.AcademicYear
	res.SkippedCourses = append(skipped, res.SkippedCourses...)
	if res.SkippedCourses == nil {
		res.SkippedCourses = make([]SkippedCourse, 0)
	}
	return res, nil
}

// GenerateRecommendations applies the service policy to GenerateRecommendations.
func (svc *Service) GenerateRecommendations(pos []POAttainment) []string {
	return GenerateRecommendations(pos, svc.policy)
}

// MailBatchReport computes the batch report and mails it, with a JSON copy attached.
func (svc *Service) MailBatchReport(ctx context.Context, batchID string, filter CourseFilter, to []mail.Address) (BatchComplianceReport, error) {
	if len(to) == 0 {
		return BatchComplianceReport{}, core.NewValidationError(
			errors.New("no report recipients"),
			core.FieldError{Field: "to", Error: "this field is required"},
		)
	}

	report, err := svc.ComputeBatchPOAttainment(ctx, batchID, filter)
	if err != nil {
		return BatchComplianceReport{}, err
	}

	msg := &core.EmailMessage{
		To:           to,
		Subject:      fmt.Sprintf("PO attainment report: batch %s", report.BatchID),
		TemplateName: batchReportTemplate,
		TemplateData: report,
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return BatchComplianceReport{}, errors.Wrap(err, "encoding batch report")
	}
	if err := msg.Attach(bytes.NewReader(data), fmt.Sprintf("batch-%s-po-attainment.json", report.BatchID), "application/json"); err != nil {
		return BatchComplianceReport{}, errors.Wrap(err, "attaching batch report")
	}

	svc.mailSvc.SendMessages(msg)
	return report, nil
}

// fetchCourse returns the course with its settings.
func (svc *Service) fetchCourse(ctx context.Context, courseID string) (Course, error) {
	course, err := svc.repo.FetchCourse(ctx, courseID)
	if err != nil {
		return Course{}, errors.Wrapf(err, "fetching course %q", courseID)
	}
	if course.Settings, err = svc.repo.FetchCourseSettings(ctx, courseID); err != nil {
		return Course{}, errors.Wrapf(err, "fetching course %q settings", courseID)
	}
	return course, nil
}

func (svc *Service) warn(warnings []string, data map[string]interface{}) {
	for _, w := range warnings {
		svc.logger.Warn("attainment: "+w, data)
	}
}

func validateAcademicYear(year string) error {
	if err := core.Validate.Var(year, academicYearTag); err != nil {
		return core.NewValidationError(
			errors.Wrapf(err, "invalid academic year %q", year),
			core.FieldError{Field: "academic_year", Error: "academic_year must look like 2023-24 or 2023-2024"},
		)
	}
	return nil
}

const (
	academicYearTag = "academic_year"

	persistSkippedNoData = "no marks for the academic year, earlier persisted rows were kept"
)
