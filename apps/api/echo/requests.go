package echoapi

import (
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/outcomes/core"
	"github.com/trezcool/outcomes/core/attainment"
)

type PersistCOAttainmentRequest struct {
	AcademicYear string                           `json:"academic_year" validate:"academic_year"`
	Attainments  []attainment.StudentCOAttainment `json:"attainments" validate:"required,min=1,dive"`
}

func (r *PersistCOAttainmentRequest) Validate(validate *validator.Validate) error {
	r.AcademicYear = core.CleanString(r.AcademicYear)
	for i := range r.Attainments {
		if r.Attainments[i].AcademicYear == "" {
			r.Attainments[i].AcademicYear = r.AcademicYear
		}
	}
	return validate.Struct(r)
}

type MailBatchReportRequest struct {
	AcademicYear string   `json:"academic_year" validate:"academic_year"`
	CourseStatus string   `json:"course_status" validate:"omitempty,oneof=FUTURE ACTIVE COMPLETED"`
	To           []string `json:"to" validate:"required,min=1,dive,required"`
}

func (r *MailBatchReportRequest) Validate(validate *validator.Validate) error {
	r.AcademicYear = core.CleanString(r.AcademicYear)
	r.CourseStatus = core.CleanString(r.CourseStatus)
	return validate.Struct(r)
}

// Recipients parses the `to` addresses.
func (r *MailBatchReportRequest) Recipients() ([]mail.Address, error) {
	addrs := make([]mail.Address, 0, len(r.To))
	for _, s := range r.To {
		addr, err := mail.ParseAddress(s)
		if err != nil {
			return nil, core.NewValidationError(
				errors.Wrapf(err, "parsing recipient %q", s),
				core.FieldError{Field: "to", Error: "invalid email address: " + s},
			)
		}
		addrs = append(addrs, *addr)
	}
	return addrs, nil
}

func (r *MailBatchReportRequest) Filter() attainment.CourseFilter {
	return attainment.CourseFilter{AcademicYear: r.AcademicYear, CourseStatus: attainment.CourseStatus(r.CourseStatus)}
}

type RecommendationsRequest struct {
	POAttainments []attainment.POAttainment `json:"po_attainments"`
}

type RecommendationsResponse struct {
	Recommendations []string `json:"recommendations"`
}
