package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ugel-puno/certificados-api/internal/dto"
	"github.com/ugel-puno/certificados-api/internal/models"
	"github.com/ugel-puno/certificados-api/internal/service"
	appErrors "github.com/ugel-puno/certificados-api/pkg/errors"
	"github.com/ugel-puno/certificados-api/pkg/response"
)

type verificationService interface {
	VerifyByCode(ctx context.Context, code string, info service.VerificationRequestInfo) (*dto.VerificationResponse, error)
	VerifyByHash(ctx context.Context, hash string, info service.VerificationRequestInfo) (*dto.VerificationResponse, error)
	Stats(ctx context.Context) (*models.VerificationStats, error)
}

// VerificationHandler serves the public verification endpoints. No
// authentication is required here.
type VerificationHandler struct {
	service verificationService
}

// NewVerificationHandler constructs the handler.
func NewVerificationHandler(svc verificationService) *VerificationHandler {
	return &VerificationHandler{service: svc}
}

func requestInfoFromContext(c *gin.Context) service.VerificationRequestInfo {
	return service.VerificationRequestInfo{
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}

// VerifyByCode godoc
// @Summary Verify a certificate by its code
// @Tags Verification
// @Produce json
// @Param codigo path string true "Verification code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /verificar/{codigo} [get]
func (h *VerificationHandler) VerifyByCode(c *gin.Context) {
	code := strings.ToUpper(strings.TrimSpace(c.Param("codigo")))
	if code == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "verification code is required"))
		return
	}
	result, err := h.service.VerifyByCode(c.Request.Context(), code, requestInfoFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// VerifyByHash godoc
// @Summary Verify a certificate by its document digest
// @Tags Verification
// @Produce json
// @Param hash query string true "SHA-256 digest of the PDF"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /verificar [get]
func (h *VerificationHandler) VerifyByHash(c *gin.Context) {
	hash := strings.ToLower(strings.TrimSpace(c.Query("hash")))
	if hash == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "hash is required"))
		return
	}
	result, err := h.service.VerifyByHash(c.Request.Context(), hash, requestInfoFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Stats godoc
// @Summary Public verification counters
// @Tags Verification
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /verificar/stats [get]
func (h *VerificationHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
