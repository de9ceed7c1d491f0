package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/ugel-puno/certificados-api/internal/dto"
	"github.com/ugel-puno/certificados-api/internal/models"
	"github.com/ugel-puno/certificados-api/internal/service"
	appErrors "github.com/ugel-puno/certificados-api/pkg/errors"
	"github.com/ugel-puno/certificados-api/pkg/response"
)

type verificationServiceMock struct {
	byCode   *dto.VerificationResponse
	byHash   *dto.VerificationResponse
	stats    *models.VerificationStats
	err      error
	lastCode string
	lastHash string
}

func (m *verificationServiceMock) VerifyByCode(ctx context.Context, code string, info service.VerificationRequestInfo) (*dto.VerificationResponse, error) {
	m.lastCode = code
	return m.byCode, m.err
}

func (m *verificationServiceMock) VerifyByHash(ctx context.Context, hash string, info service.VerificationRequestInfo) (*dto.VerificationResponse, error) {
	m.lastHash = hash
	return m.byHash, m.err
}

func (m *verificationServiceMock) Stats(ctx context.Context) (*models.VerificationStats, error) {
	return m.stats, m.err
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestVerificationHandlerVerifyByCode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &verificationServiceMock{
		byCode: &dto.VerificationResponse{Valid: true, Codigo: "ABC1234", Estado: models.CertificateStateEmitido},
	}
	handler := NewVerificationHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/verificar/abc1234", nil)
	c.Params = gin.Params{{Key: "codigo", Value: "abc1234"}}

	handler.VerifyByCode(c)
	require.Equal(t, http.StatusOK, w.Code)
	// Codes are normalised to uppercase before lookup.
	require.Equal(t, "ABC1234", mockSvc.lastCode)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Nil(t, envelope.Error)
}

func TestVerificationHandlerVerifyByCodeNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &verificationServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "certificate not found")}
	handler := NewVerificationHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/verificar/ZZZ0000", nil)
	c.Params = gin.Params{{Key: "codigo", Value: "ZZZ0000"}}

	handler.VerifyByCode(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestVerificationHandlerVerifyByHashRequiresHash(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewVerificationHandler(&verificationServiceMock{})

	c, w := newGinContext(http.MethodGet, "/verificar", nil)

	handler.VerifyByHash(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerificationHandlerStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &verificationServiceMock{
		stats: &models.VerificationStats{TotalVerifications: 42, VerificationsToday: 5, EmittedCertificates: 10},
	}
	handler := NewVerificationHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/verificar/stats", nil)

	handler.Stats(c)
	require.Equal(t, http.StatusOK, w.Code)
}
