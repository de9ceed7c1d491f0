package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ugel-puno/certificados-api/internal/models"
	appErrors "github.com/ugel-puno/certificados-api/pkg/errors"
	"github.com/ugel-puno/certificados-api/pkg/response"
)

type academicReader interface {
	ListSchoolYears(ctx context.Context) ([]models.SchoolYear, error)
	ListGrades(ctx context.Context) ([]models.Grade, error)
	ListAreas(ctx context.Context) ([]models.CurricularArea, error)
	GetTemplate(ctx context.Context, year, gradeNumber int) ([]models.TemplateArea, error)
	GetInstitution(ctx context.Context) (*models.Institution, error)
}

// AcademicHandler exposes the read-only curriculum reference data.
type AcademicHandler struct {
	repo academicReader
}

// NewAcademicHandler constructs the handler.
func NewAcademicHandler(repo academicReader) *AcademicHandler {
	return &AcademicHandler{repo: repo}
}

// SchoolYears godoc
// @Summary List school years
// @Tags Academic
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /academico/anios [get]
func (h *AcademicHandler) SchoolYears(c *gin.Context) {
	years, err := h.repo.ListSchoolYears(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, years, nil)
}

// Grades godoc
// @Summary List grades
// @Tags Academic
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /academico/grados [get]
func (h *AcademicHandler) Grades(c *gin.Context) {
	grades, err := h.repo.ListGrades(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, nil)
}

// Areas godoc
// @Summary List curricular areas
// @Tags Academic
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /academico/areas [get]
func (h *AcademicHandler) Areas(c *gin.Context) {
	areas, err := h.repo.ListAreas(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, areas, nil)
}

// Template godoc
// @Summary Get the curriculum template for a year and grade
// @Tags Academic
// @Produce json
// @Param year query int true "Academic year"
// @Param grade query int true "Grade number"
// @Success 200 {object} response.Envelope
// @Router /academico/plantilla [get]
func (h *AcademicHandler) Template(c *gin.Context) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year is required"))
		return
	}
	grade, err := strconv.Atoi(c.Query("grade"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "grade is required"))
		return
	}
	template, err := h.repo.GetTemplate(c.Request.Context(), year, grade)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, template, nil)
}

// Institution godoc
// @Summary Get the issuing institution
// @Tags Academic
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /academico/institucion [get]
func (h *AcademicHandler) Institution(c *gin.Context) {
	institution, err := h.repo.GetInstitution(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, institution, nil)
}
