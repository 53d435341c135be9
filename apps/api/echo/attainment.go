package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/outcomes/core/attainment"
)

const (
	yearParam   = "academic_year"
	statusParam = "course_status"
)

type attainmentApi struct {
	svc      *attainment.Service
	validate *validator.Validate
}

func registerAttainmentAPI(g *echo.Group, svc *attainment.Service, validate *validator.Validate) {
	api := attainmentApi{
		svc:      svc,
		validate: validate,
	}

	cg := g.Group("/courses/:id")
	cg.GET("/co-attainment", api.courseCOAttainment)
	cg.PUT("/co-attainment", api.persistCOAttainment)
	cg.POST("/co-attainment/recompute", api.recomputeCOAttainment)
	cg.GET("/co-attainment/persisted", api.persistedCOAttainment)
	cg.GET("/po-attainment", api.coursePOAttainment)

	bg := g.Group("/batches/:id")
	bg.GET("/po-attainment", api.batchPOAttainment)
	bg.POST("/po-attainment/mail", api.mailBatchPOAttainment)

	g.POST("/recommendations", api.recommendations)
}

// Handlers

func (api *attainmentApi) courseCOAttainment(ctx echo.Context) error {
	report, err := api.svc.ComputeCourseCOAttainment(ctx.Request().Context(), ctx.Param("id"), ctx.QueryParam(yearParam))
	if err != nil {
		return errors.Wrap(err, "computing CO attainment")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *attainmentApi) recomputeCOAttainment(ctx echo.Context) error {
	report, err := api.svc.RecomputeCourseCOAttainment(ctx.Request().Context(), ctx.Param("id"), ctx.QueryParam(yearParam))
	if err != nil {
		return errors.Wrap(err, "recomputing CO attainment")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *attainmentApi) persistCOAttainment(ctx echo.Context) error {
	var data PersistCOAttainmentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PersistCOAttainmentRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	id := ctx.Param("id")
	if err := api.svc.PersistCOAttainment(ctx.Request().Context(), id, data.Attainments, data.AcademicYear); err != nil {
		return errors.Wrap(err, "persisting CO attainment")
	}

	rows, err := api.svc.QueryCOAttainments(ctx.Request().Context(), id, data.AcademicYear)
	if err != nil {
		return errors.Wrap(err, "querying CO attainments")
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *attainmentApi) persistedCOAttainment(ctx echo.Context) error {
	rows, err := api.svc.QueryCOAttainments(ctx.Request().Context(), ctx.Param("id"), ctx.QueryParam(yearParam))
	if err != nil {
		return errors.Wrap(err, "querying CO attainments")
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *attainmentApi) coursePOAttainment(ctx echo.Context) error {
	report, err := api.svc.ComputePOAttainment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "computing PO attainment")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *attainmentApi) batchPOAttainment(ctx echo.Context) error {
	filter := attainment.CourseFilter{
		AcademicYear: ctx.QueryParam(yearParam),
		CourseStatus: attainment.CourseStatus(ctx.QueryParam(statusParam)),
	}
	report, err := api.svc.ComputeBatchPOAttainment(ctx.Request().Context(), ctx.Param("id"), filter)
	if err != nil {
		return errors.Wrap(err, "computing batch PO attainment")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *attainmentApi) mailBatchPOAttainment(ctx echo.Context) error {
	var data MailBatchReportRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MailBatchReportRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	to, err := data.Recipients()
	if err != nil {
		return err
	}

	report, err := api.svc.MailBatchReport(ctx.Request().Context(), ctx.Param("id"), data.Filter(), to)
	if err != nil {
		return errors.Wrap(err, "mailing batch PO attainment")
	}
	return ctx.JSON(http.StatusAccepted, report)
}

func (api *attainmentApi) recommendations(ctx echo.Context) error {
	var data RecommendationsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RecommendationsRequest")
	}
	return ctx.JSON(http.StatusOK, RecommendationsResponse{
		Recommendations: api.svc.GenerateRecommendations(data.POAttainments),
	})
}
