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
	"github.com/ugel-puno/certificados-api/internal/models"
	"github.com/ugel-puno/certificados-api/internal/service"
	appErrors "github.com/ugel-puno/certificados-api/pkg/errors"
)

type actaServiceMock struct {
	acta        *models.Acta
	detail      *models.ActaDetail
	rosterURL   string
	err         error
	gotUpload   service.ActaUpload
	gotState    dto.ChangeActaStateRequest
	stateCalled bool
}

func (m *actaServiceMock) Register(ctx context.Context, req dto.CreateActaRequest, upload service.ActaUpload, actor *models.JWTClaims) (*models.Acta, error) {
	m.gotUpload = upload
	return m.acta, m.err
}

func (m *actaServiceMock) Get(ctx context.Context, id string) (*models.ActaDetail, error) {
	return m.detail, m.err
}

func (m *actaServiceMock) List(ctx context.Context, filter dto.ActaFilter) ([]models.ActaDetail, *models.Pagination, error) {
	return nil, &models.Pagination{Page: 1, PageSize: 20}, m.err
}

func (m *actaServiceMock) Update(ctx context.Context, id string, req dto.UpdateActaRequest, actor *models.JWTClaims) (*models.ActaDetail, error) {
	return m.detail, m.err
}

func (m *actaServiceMock) ChangeState(ctx context.Context, id string, req dto.ChangeActaStateRequest, actor *models.JWTClaims) (*models.ActaDetail, error) {
	m.stateCalled = true
	m.gotState = req
	return m.detail, m.err
}

func (m *actaServiceMock) ExportRoster(ctx context.Context, id string, force bool, actor *models.JWTClaims) (string, error) {
	return m.rosterURL, m.err
}

func (m *actaServiceMock) GetScanDownloadURL(ctx context.Context, id string, actor *models.JWTClaims) (string, error) {
	return "/api/v1/actas/" + id + "/scan?token=tok", m.err
}

func (m *actaServiceMock) DownloadScan(ctx context.Context, id, token string) (*service.ActaScanDownload, error) {
	return nil, appErrors.ErrForbidden
}

type ocrServiceMock struct {
	ingest  *dto.IngestResultResponse
	valid   *dto.ValidationResultResponse
	compare *dto.ActaComparisonResponse
	err     error
}

func (m *ocrServiceMock) Ingest(ctx context.Context, actaID string, req dto.IngestOCRRequest, actor *models.JWTClaims) (*dto.IngestResultResponse, error) {
	return m.ingest, m.err
}

func (m *ocrServiceMock) Validate(ctx context.Context, actaID string, req dto.ValidateActaRequest, actor *models.JWTClaims) (*dto.ValidationResultResponse, error) {
	return m.valid, m.err
}

func (m *ocrServiceMock) Compare(ctx context.Context, actaID string) (*dto.ActaComparisonResponse, error) {
	return m.compare, m.err
}

func multipartActaRequest(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("numero", "0123"))
	require.NoError(t, writer.WriteField("tipo", "CONSOLIDADO"))
	require.NoError(t, writer.WriteField("schoolYearId", "year-1"))
	require.NoError(t, writer.WriteField("gradeId", "grade-1"))
	part, err := writer.CreateFormFile("file", "acta0123.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 scan"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/actas", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.Request = req
	adminContext(c)
	return c, w
}

func TestActaHandlerRegister(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &actaServiceMock{acta: &models.Acta{ID: "acta-1", Numero: "0123", Estado: models.ActaStateDisponible}}
	handler := NewActaHandler(mockSvc, &ocrServiceMock{})

	c, w := multipartActaRequest(t)
	handler.Register(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "acta0123.pdf", mockSvc.gotUpload.Filename)
	require.NotZero(t, mockSvc.gotUpload.Size)
}

func TestActaHandlerRegisterRequiresFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewActaHandler(&actaServiceMock{}, &ocrServiceMock{})

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("numero", "0123"))
	require.NoError(t, writer.WriteField("tipo", "CONSOLIDADO"))
	require.NoError(t, writer.WriteField("schoolYearId", "year-1"))
	require.NoError(t, writer.WriteField("gradeId", "grade-1"))
	require.NoError(t, writer.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/actas", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.Request = req
	adminContext(c)

	handler.Register(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestActaHandlerChangeState(t *testing.T) {
	gin.SetMode(gin.TestMode)
	requestID := "req-7"
	mockSvc := &actaServiceMock{detail: &models.ActaDetail{Acta: models.Acta{ID: "acta-1", Estado: models.ActaStateAsignadaBusqueda}}}
	handler := NewActaHandler(mockSvc, &ocrServiceMock{})

	payload, _ := json.Marshal(dto.ChangeActaStateRequest{Estado: models.ActaStateAsignadaBusqueda, RequestID: &requestID})
	c, w := newGinContext(http.MethodPatch, "/actas/acta-1/estado", payload)
	c.Params = gin.Params{{Key: "id", Value: "acta-1"}}
	adminContext(c)

	handler.ChangeState(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, mockSvc.stateCalled)
	require.Equal(t, models.ActaStateAsignadaBusqueda, mockSvc.gotState.Estado)
}

func TestActaHandlerChangeStateConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &actaServiceMock{err: appErrors.Clone(appErrors.ErrInvalidTransition, "cannot move acta from ENCONTRADA to DISPONIBLE")}
	handler := NewActaHandler(mockSvc, &ocrServiceMock{})

	payload, _ := json.Marshal(dto.ChangeActaStateRequest{Estado: models.ActaStateDisponible})
	c, w := newGinContext(http.MethodPatch, "/actas/acta-1/estado", payload)
	c.Params = gin.Params{{Key: "id", Value: "acta-1"}}
	adminContext(c)

	handler.ChangeState(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestActaHandlerIngestOCR(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ocr := &ocrServiceMock{ingest: &dto.IngestResultResponse{Procesados: 2}}
	handler := NewActaHandler(&actaServiceMock{}, ocr)

	payload, _ := json.Marshal(dto.IngestOCRRequest{Payload: models.OCRPayload{
		Estudiantes: []models.OCRStudent{{Numero: 1, ApellidoPaterno: "QUISPE", Nombres: "JUAN"}},
	}})
	c, w := newGinContext(http.MethodPost, "/actas/acta-1/ocr", payload)
	c.Params = gin.Params{{Key: "id", Value: "acta-1"}}
	adminContext(c)

	handler.IngestOCR(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestActaHandlerExportRoster(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &actaServiceMock{rosterURL: "/files/nomina_0123.xlsx"}
	handler := NewActaHandler(mockSvc, &ocrServiceMock{})

	c, w := newGinContext(http.MethodPost, "/actas/acta-1/nomina", nil)
	c.Params = gin.Params{{Key: "id", Value: "acta-1"}}
	adminContext(c)

	handler.ExportRoster(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "nomina_0123.xlsx")
}
