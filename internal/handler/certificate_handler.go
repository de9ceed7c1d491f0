package handler

import (
	"context"
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

type certificateService interface {
	Get(ctx context.Context, id string) (*models.Certificate, error)
	List(ctx context.Context, filter dto.CertificateFilter) ([]models.CertificateSummary, *models.Pagination, error)
	ExportCSV(ctx context.Context, filter dto.CertificateFilter) ([]byte, error)
	Annul(ctx context.Context, id string, req dto.AnnulCertificateRequest, actor *models.JWTClaims) (*models.Certificate, error)
	Rectify(ctx context.Context, id string, req dto.RectifyCertificateRequest, actor *models.JWTClaims) (*models.Certificate, error)
}

type documentService interface {
	Generate(ctx context.Context, certID string, force bool, actor *models.JWTClaims) (*dto.CertificateDocumentResponse, error)
}

type signatureService interface {
	Sign(ctx context.Context, certID string, req dto.SignCertificateRequest, actor *models.JWTClaims) (*dto.SignatureStatusResponse, error)
	UploadSigned(ctx context.Context, certID string, upload service.SignedScanUpload, actor *models.JWTClaims) (*dto.SignatureStatusResponse, error)
	Status(ctx context.Context, certID string) (*dto.SignatureStatusResponse, error)
}

// CertificateHandler manages the certificate ledger endpoints.
type CertificateHandler struct {
	certs      certificateService
	documents  documentService
	signatures signatureService
}

// NewCertificateHandler constructs the handler.
func NewCertificateHandler(certs certificateService, documents documentService, signatures signatureService) *CertificateHandler {
	return &CertificateHandler{certs: certs, documents: documents, signatures: signatures}
}

func certificateFilterFromQuery(c *gin.Context) dto.CertificateFilter {
	filter := dto.CertificateFilter{
		StudentID:        strings.TrimSpace(c.Query("studentId")),
		ActaID:           strings.TrimSpace(c.Query("actaId")),
		Estado:           strings.ToUpper(strings.TrimSpace(c.Query("estado"))),
		VerificationCode: strings.TrimSpace(c.Query("codigo")),
		Numero:           strings.TrimSpace(c.Query("numero")),
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	return filter
}

// List godoc
// @Summary List certificates
// @Tags Certificates
// @Produce json
// @Param studentId query string false "Student filter"
// @Param actaId query string false "Acta filter"
// @Param estado query string false "State filter"
// @Param codigo query string false "Verification code filter"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /certificados [get]
func (h *CertificateHandler) List(c *gin.Context) {
	certs, pagination, err := h.certs.List(c.Request.Context(), certificateFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certs, pagination)
}

// Get godoc
// @Summary Get one certificate
// @Tags Certificates
// @Produce json
// @Param id path string true "Certificate ID"
// @Success 200 {object} response.Envelope
// @Router /certificados/{id} [get]
func (h *CertificateHandler) Get(c *gin.Context) {
	cert, err := h.certs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cert, nil)
}

// ExportCSV godoc
// @Summary Export certificates as CSV
// @Tags Certificates
// @Produce text/csv
// @Param estado query string false "State filter"
// @Success 200 {file} binary
// @Router /certificados/export [get]
func (h *CertificateHandler) ExportCSV(c *gin.Context) {
	data, err := h.certs.ExportCSV(c.Request.Context(), certificateFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="certificados.csv"`)
	c.Data(http.StatusOK, "text/csv", data)
}

// Annul godoc
// @Summary Annul a certificate
// @Tags Certificates
// @Accept json
// @Produce json
// @Param id path string true "Certificate ID"
// @Param payload body dto.AnnulCertificateRequest true "Annulment reason"
// @Success 200 {object} response.Envelope
// @Router /certificados/{id}/anular [post]
func (h *CertificateHandler) Annul(c *gin.Context) {
	var req dto.AnnulCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid annulment payload"))
		return
	}
	cert, err := h.certs.Annul(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cert, nil)
}

// Rectify godoc
// @Summary Issue a corrected replacement certificate
// @Tags Certificates
// @Accept json
// @Produce json
// @Param id path string true "Certificate ID"
// @Param payload body dto.RectifyCertificateRequest true "Rectification reason"
// @Success 201 {object} response.Envelope
// @Router /certificados/{id}/rectificar [post]
func (h *CertificateHandler) Rectify(c *gin.Context) {
	var req dto.RectifyCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid rectification payload"))
		return
	}
	replacement, err := h.certs.Rectify(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, replacement)
}

// GenerateDocuments godoc
// @Summary Generate the certificate PDF and QR artifacts
// @Tags Certificates
// @Accept json
// @Produce json
// @Param id path string true "Certificate ID"
// @Param payload body dto.GenerateDocumentRequest false "Generation options"
// @Success 200 {object} response.Envelope
// @Router /certificados/{id}/documentos [post]
func (h *CertificateHandler) GenerateDocuments(c *gin.Context) {
	var req dto.GenerateDocumentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid generation payload"))
			return
		}
	}
	result, err := h.documents.Generate(c.Request.Context(), c.Param("id"), req.Force, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Sign godoc
// @Summary Drive the signature workflow for a certificate
// @Tags Certificates
// @Accept json
// @Produce json
// @Param id path string true "Certificate ID"
// @Param payload body dto.SignCertificateRequest true "Signature mode"
// @Success 200 {object} response.Envelope
// @Router /certificados/{id}/firmar [post]
func (h *CertificateHandler) Sign(c *gin.Context) {
	var req dto.SignCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid signature payload"))
		return
	}
	result, err := h.signatures.Sign(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// UploadSignedScan godoc
// @Summary Archive the scanned manuscript-signed certificate
// @Tags Certificates
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Certificate ID"
// @Param file formData file true "Signed scan (PDF)"
// @Success 200 {object} response.Envelope
// @Router /certificados/{id}/firma-escaneada [post]
func (h *CertificateHandler) UploadSignedScan(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "signed scan file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "signed scan file is unreadable"))
		return
	}
	defer src.Close() //nolint:errcheck
	data, err := io.ReadAll(src)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "signed scan file is unreadable"))
		return
	}

	result, err := h.signatures.UploadSigned(c.Request.Context(), c.Param("id"), service.SignedScanUpload{
		Filename: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Data:     data,
	}, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// SignatureStatus godoc
// @Summary Report the signature workflow state
// @Tags Certificates
// @Produce json
// @Param id path string true "Certificate ID"
// @Success 200 {object} response.Envelope
// @Router /certificados/{id}/firma [get]
func (h *CertificateHandler) SignatureStatus(c *gin.Context) {
	result, err := h.signatures.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
