package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/ugel-puno/certificados-api/internal/dto"
	"github.com/ugel-puno/certificados-api/internal/middleware"
	"github.com/ugel-puno/certificados-api/internal/models"
	"github.com/ugel-puno/certificados-api/internal/service"
	appErrors "github.com/ugel-puno/certificados-api/pkg/errors"
)

type certificateServiceMock struct {
	cert      *models.Certificate
	summaries []models.CertificateSummary
	csv       []byte
	err       error
}

func (m *certificateServiceMock) Get(ctx context.Context, id string) (*models.Certificate, error) {
	return m.cert, m.err
}

func (m *certificateServiceMock) List(ctx context.Context, filter dto.CertificateFilter) ([]models.CertificateSummary, *models.Pagination, error) {
	return m.summaries, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(m.summaries)}, m.err
}

func (m *certificateServiceMock) ExportCSV(ctx context.Context, filter dto.CertificateFilter) ([]byte, error) {
	return m.csv, m.err
}

func (m *certificateServiceMock) Annul(ctx context.Context, id string, req dto.AnnulCertificateRequest, actor *models.JWTClaims) (*models.Certificate, error) {
	return m.cert, m.err
}

func (m *certificateServiceMock) Rectify(ctx context.Context, id string, req dto.RectifyCertificateRequest, actor *models.JWTClaims) (*models.Certificate, error) {
	return m.cert, m.err
}

type documentServiceMock struct {
	result *dto.CertificateDocumentResponse
	err    error
	force  bool
}

func (m *documentServiceMock) Generate(ctx context.Context, certID string, force bool, actor *models.JWTClaims) (*dto.CertificateDocumentResponse, error) {
	m.force = force
	return m.result, m.err
}

type signatureServiceMock struct {
	result *dto.SignatureStatusResponse
	err    error
	upload service.SignedScanUpload
}

func (m *signatureServiceMock) Sign(ctx context.Context, certID string, req dto.SignCertificateRequest, actor *models.JWTClaims) (*dto.SignatureStatusResponse, error) {
	return m.result, m.err
}

func (m *signatureServiceMock) UploadSigned(ctx context.Context, certID string, upload service.SignedScanUpload, actor *models.JWTClaims) (*dto.SignatureStatusResponse, error) {
	m.upload = upload
	return m.result, m.err
}

func (m *signatureServiceMock) Status(ctx context.Context, certID string) (*dto.SignatureStatusResponse, error) {
	return m.result, m.err
}

func adminContext(c *gin.Context) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
}

func TestCertificateHandlerAnnul(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &certificateServiceMock{cert: &models.Certificate{ID: "cert-1", Estado: models.CertificateStateAnulado}}
	handler := NewCertificateHandler(mockSvc, &documentServiceMock{}, &signatureServiceMock{})

	payload, _ := json.Marshal(dto.AnnulCertificateRequest{Motivo: "nota errada en acta"})
	c, w := newGinContext(http.MethodPost, "/certificados/cert-1/anular", payload)
	c.Params = gin.Params{{Key: "id", Value: "cert-1"}}
	adminContext(c)

	handler.Annul(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCertificateHandlerAnnulRejectsAnnulled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &certificateServiceMock{err: appErrors.Clone(appErrors.ErrAnnulled, "certificate already annulled")}
	handler := NewCertificateHandler(mockSvc, &documentServiceMock{}, &signatureServiceMock{})

	payload, _ := json.Marshal(dto.AnnulCertificateRequest{Motivo: "nota errada en acta"})
	c, w := newGinContext(http.MethodPost, "/certificados/cert-1/anular", payload)
	c.Params = gin.Params{{Key: "id", Value: "cert-1"}}
	adminContext(c)

	handler.Annul(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestCertificateHandlerRectifyReturnsCreated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &certificateServiceMock{cert: &models.Certificate{ID: "cert-2", Version: 2, IsRectification: true}}
	handler := NewCertificateHandler(mockSvc, &documentServiceMock{}, &signatureServiceMock{})

	payload, _ := json.Marshal(dto.RectifyCertificateRequest{Motivo: "apellido mal escrito"})
	c, w := newGinContext(http.MethodPost, "/certificados/cert-1/rectificar", payload)
	c.Params = gin.Params{{Key: "id", Value: "cert-1"}}
	adminContext(c)

	handler.Rectify(c)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestCertificateHandlerGenerateDocumentsForwardsForce(t *testing.T) {
	gin.SetMode(gin.TestMode)
	docs := &documentServiceMock{result: &dto.CertificateDocumentResponse{CertificateID: "cert-1", Regenerated: true}}
	handler := NewCertificateHandler(&certificateServiceMock{}, docs, &signatureServiceMock{})

	payload, _ := json.Marshal(dto.GenerateDocumentRequest{Force: true})
	c, w := newGinContext(http.MethodPost, "/certificados/cert-1/documentos", payload)
	c.Params = gin.Params{{Key: "id", Value: "cert-1"}}
	adminContext(c)

	handler.GenerateDocuments(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, docs.force)
}

func TestCertificateHandlerSign(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sigs := &signatureServiceMock{result: &dto.SignatureStatusResponse{
		CertificateID:   "cert-1",
		Estado:          models.CertificateStateEmitido,
		SignatureStatus: models.SignatureStatusManuscriptSigned,
	}}
	handler := NewCertificateHandler(&certificateServiceMock{}, &documentServiceMock{}, sigs)

	payload, _ := json.Marshal(dto.SignCertificateRequest{Modo: "MANUSCRITA"})
	c, w := newGinContext(http.MethodPost, "/certificados/cert-1/firmar", payload)
	c.Params = gin.Params{{Key: "id", Value: "cert-1"}}
	adminContext(c)

	handler.Sign(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCertificateHandlerUploadSignedScan(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sigs := &signatureServiceMock{result: &dto.SignatureStatusResponse{
		CertificateID:   "cert-1",
		Estado:          models.CertificateStateEmitido,
		SignatureStatus: models.SignatureStatusManuscriptSigned,
	}}
	handler := NewCertificateHandler(&certificateServiceMock{}, &documentServiceMock{}, sigs)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "firmado.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 signed copy"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/certificados/cert-1/firma-escaneada", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "cert-1"}}
	adminContext(c)

	handler.UploadSignedScan(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "firmado.pdf", sigs.upload.Filename)
	require.NotEmpty(t, sigs.upload.Data)
}

func TestCertificateHandlerExportCSV(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &certificateServiceMock{csv: []byte("Código,Estudiante\nABC1234,QUISPE JUAN\n")}
	handler := NewCertificateHandler(mockSvc, &documentServiceMock{}, &signatureServiceMock{})

	c, w := newGinContext(http.MethodGet, "/certificados/export", nil)
	adminContext(c)

	handler.ExportCSV(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Disposition"), "certificados.csv")
	require.Contains(t, w.Body.String(), "ABC1234")
}
