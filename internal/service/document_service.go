package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ugel-puno/certificados-api/internal/dto"
	"github.com/ugel-puno/certificados-api/internal/models"
	appErrors "github.com/ugel-puno/certificados-api/pkg/errors"
	"github.com/ugel-puno/certificados-api/pkg/storage"
)

type certificateDataProvider interface {
	Get(ctx context.Context, id string) (*models.Certificate, error)
	GetData(ctx context.Context, id string) (*models.CertificateData, error)
}

type documentStore interface {
	UpdateDocuments(ctx context.Context, id, pdfURL, pdfHash, qrURL string) error
}

type qrRenderer interface {
	VerificationURL(code string) string
	Render(code string) ([]byte, error)
}

type certificatePDFRenderer interface {
	Render(data models.CertificateData, qrPNG []byte) ([]byte, error)
}

type documentFileStorage interface {
	Save(filename string, data []byte) (string, error)
	URL(filename string) string
}

// DocumentService assembles the printable certificate: QR code, PDF and the
// SHA-256 digest used for hash-based verification.
type DocumentService struct {
	certs    certificateDataProvider
	store    documentStore
	qr       qrRenderer
	renderer certificatePDFRenderer
	files    documentFileStorage
	audit    auditLogger
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewDocumentService constructs the service.
func NewDocumentService(certs certificateDataProvider, store documentStore, qr qrRenderer, renderer certificatePDFRenderer, files documentFileStorage, audit auditLogger, metrics *MetricsService, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		certs:    certs,
		store:    store,
		qr:       qr,
		renderer: renderer,
		files:    files,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
	}
}

// Generate produces the QR and PDF artifacts for a certificate. Generation
// is idempotent: an existing document is returned untouched unless force is
// set. The digest always covers the final PDF bytes.
func (s *DocumentService) Generate(ctx context.Context, certID string, force bool, actor *models.JWTClaims) (*dto.CertificateDocumentResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	cert, err := s.certs.Get(ctx, certID)
	if err != nil {
		return nil, err
	}
	if cert.Estado == models.CertificateStateAnulado {
		return nil, appErrors.Clone(appErrors.ErrAnnulled, "cannot generate documents for an annulled certificate")
	}
	if cert.PDFURL != nil && cert.PDFHash != nil && !force {
		return &dto.CertificateDocumentResponse{
			CertificateID: cert.ID,
			PDFURL:        *cert.PDFURL,
			PDFHash:       *cert.PDFHash,
			QRURL:         derefString(cert.QRURL),
			Regenerated:   false,
		}, nil
	}

	data, err := s.certs.GetData(ctx, certID)
	if err != nil {
		return nil, err
	}

	qrPNG, err := s.qr.Render(cert.VerificationCode)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render qr code")
	}
	qrFilename := fmt.Sprintf("qr_%s.png", cert.VerificationCode)
	if _, err := s.files.Save(qrFilename, qrPNG); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist qr code")
	}
	qrURL := s.files.URL(qrFilename)

	renderStart := time.Now()
	pdfBytes, err := s.renderer.Render(*data, qrPNG)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate pdf")
	}
	s.metrics.ObserveDocumentRender(time.Since(renderStart))
	pdfHash := storage.HashBytes(pdfBytes)
	pdfFilename := fmt.Sprintf("certificado_%s.pdf", cert.VerificationCode)
	if _, err := s.files.Save(pdfFilename, pdfBytes); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist certificate pdf")
	}
	pdfURL := s.files.URL(pdfFilename)

	if err := s.store.UpdateDocuments(ctx, cert.ID, pdfURL, pdfHash, qrURL); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record documents")
	}

	s.emitAudit(ctx, actor, cert.ID, pdfHash)
	s.logger.Info("certificate documents generated",
		zap.String("certificate_id", cert.ID),
		zap.String("pdf_hash", pdfHash),
		zap.Bool("forced", force))
	return &dto.CertificateDocumentResponse{
		CertificateID: cert.ID,
		PDFURL:        pdfURL,
		PDFHash:       pdfHash,
		QRURL:         qrURL,
		Regenerated:   cert.PDFURL != nil,
	}, nil
}

func (s *DocumentService) emitAudit(ctx context.Context, actor *models.JWTClaims, certID, pdfHash string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionCertGenerate,
		Resource:   "certificate",
		ResourceID: &certID,
		NewValues:  []byte(fmt.Sprintf(`{"pdf_hash":%q}`, pdfHash)),
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to create document audit", zap.Error(err))
	}
}
