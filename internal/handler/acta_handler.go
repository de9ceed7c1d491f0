package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ugel-puno/certificados-api/internal/dto"
	"github.com/ugel-puno/certificados-api/internal/models"
	"github.com/ugel-puno/certificados-api/internal/service"
	appErrors "github.com/ugel-puno/certificados-api/pkg/errors"
	"github.com/ugel-puno/certificados-api/pkg/response"
)

type actaService interface {
	Register(ctx context.Context, req dto.CreateActaRequest, upload service.ActaUpload, actor *models.JWTClaims) (*models.Acta, error)
	Get(ctx context.Context, id string) (*models.ActaDetail, error)
	List(ctx context.Context, filter dto.ActaFilter) ([]models.ActaDetail, *models.Pagination, error)
	Update(ctx context.Context, id string, req dto.UpdateActaRequest, actor *models.JWTClaims) (*models.ActaDetail, error)
	ChangeState(ctx context.Context, id string, req dto.ChangeActaStateRequest, actor *models.JWTClaims) (*models.ActaDetail, error)
	ExportRoster(ctx context.Context, id string, force bool, actor *models.JWTClaims) (string, error)
	GetScanDownloadURL(ctx context.Context, id string, actor *models.JWTClaims) (string, error)
	DownloadScan(ctx context.Context, id, token string) (*service.ActaScanDownload, error)
}

type ocrService interface {
	Ingest(ctx context.Context, actaID string, req dto.IngestOCRRequest, actor *models.JWTClaims) (*dto.IngestResultResponse, error)
	Validate(ctx context.Context, actaID string, req dto.ValidateActaRequest, actor *models.JWTClaims) (*dto.ValidationResultResponse, error)
	Compare(ctx context.Context, actaID string) (*dto.ActaComparisonResponse, error)
}

// ActaHandler manages the physical acta registry endpoints.
type ActaHandler struct {
	actas actaService
	ocr   ocrService
}

// NewActaHandler constructs the handler.
func NewActaHandler(actas actaService, ocr ocrService) *ActaHandler {
	return &ActaHandler{actas: actas, ocr: ocr}
}

// Register godoc
// @Summary Register a physical acta with its scan
// @Tags Actas
// @Accept multipart/form-data
// @Produce json
// @Param numero formData string true "Acta number"
// @Param tipo formData string true "Acta type"
// @Param schoolYearId formData string true "School year"
// @Param gradeId formData string true "Grade"
// @Param seccion formData string false "Section"
// @Param turno formData string false "Shift"
// @Param observaciones formData string false "Observations"
// @Param file formData file true "Scan document"
// @Success 201 {object} response.Envelope
// @Router /actas [post]
func (h *ActaHandler) Register(c *gin.Context) {
	var req dto.CreateActaRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid acta payload"))
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "scan file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open scan"))
		return
	}
	defer src.Close()

	reader, ok := src.(io.ReadSeeker)
	if !ok {
		buf, readErr := io.ReadAll(src)
		if readErr != nil {
			response.Error(c, appErrors.Wrap(readErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer scan"))
			return
		}
		reader = bytes.NewReader(buf)
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	upload := service.ActaUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Content:  reader,
	}
	acta, err := h.actas.Register(c.Request.Context(), req, upload, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, acta)
}

// List godoc
// @Summary List actas
// @Tags Actas
// @Produce json
// @Param estado query string false "State filter"
// @Param schoolYearId query string false "School year filter"
// @Param gradeId query string false "Grade filter"
// @Param processed query bool false "OCR processed filter"
// @Param requestId query string false "Search request filter"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /actas [get]
func (h *ActaHandler) List(c *gin.Context) {
	filter := dto.ActaFilter{
		Estado:       strings.TrimSpace(c.Query("estado")),
		SchoolYearID: strings.TrimSpace(c.Query("schoolYearId")),
		GradeID:      strings.TrimSpace(c.Query("gradeId")),
		RequestID:    strings.TrimSpace(c.Query("requestId")),
	}
	if processed := c.Query("processed"); processed != "" {
		if value, err := strconv.ParseBool(processed); err == nil {
			filter.Processed = &value
		}
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	actas, pagination, err := h.actas.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, actas, pagination)
}

// Get godoc
// @Summary Get one acta
// @Tags Actas
// @Produce json
// @Param id path string true "Acta ID"
// @Success 200 {object} response.Envelope
// @Router /actas/{id} [get]
func (h *ActaHandler) Get(c *gin.Context) {
	acta, err := h.actas.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, acta, nil)
}

// Update godoc
// @Summary Update acta metadata
// @Tags Actas
// @Accept json
// @Produce json
// @Param id path string true "Acta ID"
// @Param payload body dto.UpdateActaRequest true "Fields to update"
// @Success 200 {object} response.Envelope
// @Router /actas/{id} [put]
func (h *ActaHandler) Update(c *gin.Context) {
	var req dto.UpdateActaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid acta payload"))
		return
	}
	acta, err := h.actas.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, acta, nil)
}

// ChangeState godoc
// @Summary Move an acta through the search workflow
// @Tags Actas
// @Accept json
// @Produce json
// @Param id path string true "Acta ID"
// @Param payload body dto.ChangeActaStateRequest true "Target state"
// @Success 200 {object} response.Envelope
// @Router /actas/{id}/estado [patch]
func (h *ActaHandler) ChangeState(c *gin.Context) {
	var req dto.ChangeActaStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid state payload"))
		return
	}
	acta, err := h.actas.ChangeState(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, acta, nil)
}

// IngestOCR godoc
// @Summary Ingest the extracted roster of an acta
// @Tags Actas
// @Accept json
// @Produce json
// @Param id path string true "Acta ID"
// @Param payload body dto.IngestOCRRequest true "Extracted roster"
// @Success 200 {object} response.Envelope
// @Router /actas/{id}/ocr [post]
func (h *ActaHandler) IngestOCR(c *gin.Context) {
	var req dto.IngestOCRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid roster payload"))
		return
	}
	result, err := h.ocr.Ingest(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Validate godoc
// @Summary Confirm extracted data with optional corrections
// @Tags Actas
// @Accept json
// @Produce json
// @Param id path string true "Acta ID"
// @Param payload body dto.ValidateActaRequest true "Corrections"
// @Success 200 {object} response.Envelope
// @Router /actas/{id}/validar [post]
func (h *ActaHandler) Validate(c *gin.Context) {
	var req dto.ValidateActaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid validation payload"))
		return
	}
	result, err := h.ocr.Validate(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Compare godoc
// @Summary Compare consolidated certificates against the stored roster
// @Tags Actas
// @Produce json
// @Param id path string true "Acta ID"
// @Success 200 {object} response.Envelope
// @Router /actas/{id}/comparar [get]
func (h *ActaHandler) Compare(c *gin.Context) {
	result, err := h.ocr.Compare(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ExportRoster godoc
// @Summary Export the validated roster as an xlsx workbook
// @Tags Actas
// @Produce json
// @Param id path string true "Acta ID"
// @Param force query bool false "Regenerate the workbook"
// @Success 200 {object} response.Envelope
// @Router /actas/{id}/nomina [post]
func (h *ActaHandler) ExportRoster(c *gin.Context) {
	force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))
	url, err := h.actas.ExportRoster(c.Request.Context(), c.Param("id"), force, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"url": url}, nil)
}

// ScanURL godoc
// @Summary Get a signed URL for the acta scan
// @Tags Actas
// @Produce json
// @Param id path string true "Acta ID"
// @Success 200 {object} response.Envelope
// @Router /actas/{id}/scan-url [get]
func (h *ActaHandler) ScanURL(c *gin.Context) {
	url, err := h.actas.GetScanDownloadURL(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"url": url}, nil)
}

// DownloadScan godoc
// @Summary Download the acta scan via signed token
// @Tags Actas
// @Produce octet-stream
// @Param id path string true "Acta ID"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /actas/{id}/scan [get]
func (h *ActaHandler) DownloadScan(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.actas.DownloadScan(c.Request.Context(), c.Param("id"), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.MimeType, result.File, nil)
}
