package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ugel-puno/certificados-api/internal/dto"
	"github.com/ugel-puno/certificados-api/internal/models"
	"github.com/ugel-puno/certificados-api/pkg/jobs"
	"github.com/ugel-puno/certificados-api/pkg/storage"

	appErrors "github.com/ugel-puno/certificados-api/pkg/errors"
)

type signatureStore interface {
	SetSignatureStatus(ctx context.Context, id string, status models.SignatureStatus) error
	UpdateDocuments(ctx context.Context, id, pdfURL, pdfHash, qrURL string) error
	Emit(ctx context.Context, id, emittedBy string) error
}

type certificateReader interface {
	Get(ctx context.Context, id string) (*models.Certificate, error)
}

type signedFileStorage interface {
	Save(filename string, data []byte) (string, error)
	URL(filename string) string
}

// SignedScanUpload carries the scanned copy of a manuscript-signed certificate.
type SignedScanUpload struct {
	Filename string
	MimeType string
	Data     []byte
}

type NotificationEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// SignatureService coordinates the signature workflow. Digital signing has
// no provider integration yet, so requesting it routes the certificate to
// the manuscript path with an explicit status.
type SignatureService struct {
	store         signatureStore
	certs         certificateReader
	files         signedFileStorage
	audit         auditLogger
	notifications NotificationEnqueuer
	metrics       *MetricsService
	logger        *zap.Logger
}

// NewSignatureService constructs the service.
func NewSignatureService(store signatureStore, certs certificateReader, files signedFileStorage, audit auditLogger, notifications NotificationEnqueuer, metrics *MetricsService, logger *zap.Logger) *SignatureService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SignatureService{
		store:         store,
		certs:         certs,
		files:         files,
		audit:         audit,
		notifications: notifications,
		metrics:       metrics,
		logger:        logger,
	}
}

// Sign drives the workflow for one certificate. DIGITAL emits the
// certificate right away as a placeholder until a PKI provider is
// integrated; MANUSCRITA routes it through print, physical signature and
// scanned upload with an explicit status.
func (s *SignatureService) Sign(ctx context.Context, certID string, req dto.SignCertificateRequest, actor *models.JWTClaims) (*dto.SignatureStatusResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleDirector {
		return nil, appErrors.ErrForbidden
	}
	cert, err := s.certs.Get(ctx, certID)
	if err != nil {
		return nil, err
	}
	if cert.Estado == models.CertificateStateAnulado {
		return nil, appErrors.Clone(appErrors.ErrAnnulled, "cannot sign an annulled certificate")
	}
	if cert.Estado != models.CertificateStateBorrador {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only BORRADOR certificates can be signed")
	}
	if cert.PDFURL == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "generate the certificate document before signing")
	}

	switch req.Modo {
	case "DIGITAL":
		return s.signDigitally(ctx, cert, actor)
	case "MANUSCRITA":
		return s.markManuscript(ctx, cert, actor)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown signature mode")
	}
}

// signDigitally emits the certificate recording the acting user. No PKI
// provider is integrated yet, so no cryptographic signature is produced.
func (s *SignatureService) signDigitally(ctx context.Context, cert *models.Certificate, actor *models.JWTClaims) (*dto.SignatureStatusResponse, error) {
	if cert.SignatureStatus != models.SignatureStatusNone {
		return nil, appErrors.Clone(appErrors.ErrConflict, "certificate is already in the manuscript workflow")
	}
	if err := s.store.Emit(ctx, cert.ID, actor.UserID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to emit certificate")
	}

	s.emitAudit(ctx, actor, cert.ID, `{"modo":"DIGITAL","estado":"EMITIDO"}`)
	s.notifyEmission(cert)
	s.metrics.RecordCertificateEvent("emitted")
	s.logger.Info("certificate emitted with placeholder digital signature",
		zap.String("certificate_id", cert.ID),
		zap.String("emitted_by", actor.UserID))
	return &dto.SignatureStatusResponse{
		CertificateID:   cert.ID,
		Estado:          models.CertificateStateEmitido,
		SignatureStatus: cert.SignatureStatus,
		PDFURL:          cert.PDFURL,
	}, nil
}

// markManuscript flags the certificate for printing and physical signature.
// Emission happens when the scanned signed copy is uploaded.
func (s *SignatureService) markManuscript(ctx context.Context, cert *models.Certificate, actor *models.JWTClaims) (*dto.SignatureStatusResponse, error) {
	if cert.SignatureStatus != models.SignatureStatusNone {
		return nil, appErrors.Clone(appErrors.ErrConflict, "signature workflow already started")
	}
	if err := s.store.SetSignatureStatus(ctx, cert.ID, models.SignatureStatusRequiresManuscript); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update signature status")
	}

	s.emitAudit(ctx, actor, cert.ID, fmt.Sprintf(`{"signature_status":%q}`, models.SignatureStatusRequiresManuscript))
	s.logger.Info("certificate marked for manuscript signature",
		zap.String("certificate_id", cert.ID))
	return &dto.SignatureStatusResponse{
		CertificateID:   cert.ID,
		Estado:          cert.Estado,
		SignatureStatus: models.SignatureStatusRequiresManuscript,
		PDFURL:          cert.PDFURL,
	}, nil
}

// UploadSigned archives the scanned signed copy, replacing the stored
// document, and emits the certificate.
func (s *SignatureService) UploadSigned(ctx context.Context, certID string, upload SignedScanUpload, actor *models.JWTClaims) (*dto.SignatureStatusResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleDirector {
		return nil, appErrors.ErrForbidden
	}
	if len(upload.Data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "signed scan file is required")
	}
	if upload.MimeType != "" && !strings.EqualFold(upload.MimeType, "application/pdf") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "signed scan must be a PDF")
	}
	cert, err := s.certs.Get(ctx, certID)
	if err != nil {
		return nil, err
	}
	if cert.Estado == models.CertificateStateAnulado {
		return nil, appErrors.Clone(appErrors.ErrAnnulled, "cannot sign an annulled certificate")
	}
	if cert.SignatureStatus != models.SignatureStatusRequiresManuscript {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "certificate is not awaiting a manuscript signature")
	}

	filename := fmt.Sprintf("certificado_%s_firmado.pdf", cert.VerificationCode)
	if _, err := s.files.Save(filename, upload.Data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist signed scan")
	}
	pdfURL := s.files.URL(filename)
	qrURL := ""
	if cert.QRURL != nil {
		qrURL = *cert.QRURL
	}
	if err := s.store.UpdateDocuments(ctx, cert.ID, pdfURL, storage.HashBytes(upload.Data), qrURL); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace certificate document")
	}
	if err := s.store.SetSignatureStatus(ctx, cert.ID, models.SignatureStatusManuscriptSigned); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update signature status")
	}
	if err := s.store.Emit(ctx, cert.ID, actor.UserID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to emit certificate")
	}

	s.emitAudit(ctx, actor, cert.ID, fmt.Sprintf(`{"signature_status":%q}`, models.SignatureStatusManuscriptSigned))
	s.notifyEmission(cert)
	s.metrics.RecordCertificateEvent("emitted")
	s.logger.Info("signed scan archived and certificate emitted",
		zap.String("certificate_id", cert.ID),
		zap.String("filename", filename))
	return &dto.SignatureStatusResponse{
		CertificateID:   cert.ID,
		Estado:          models.CertificateStateEmitido,
		SignatureStatus: models.SignatureStatusManuscriptSigned,
		PDFURL:          &pdfURL,
	}, nil
}

// Status reports the current signature workflow state.
func (s *SignatureService) Status(ctx context.Context, certID string) (*dto.SignatureStatusResponse, error) {
	cert, err := s.certs.Get(ctx, certID)
	if err != nil {
		return nil, err
	}
	return &dto.SignatureStatusResponse{
		CertificateID:   cert.ID,
		Estado:          cert.Estado,
		SignatureStatus: cert.SignatureStatus,
		PDFURL:          cert.PDFURL,
	}, nil
}

func (s *SignatureService) notifyEmission(cert *models.Certificate) {
	if s.notifications == nil {
		return
	}
	job := jobs.Job{
		ID:   cert.ID,
		Type: "certificate.emitted",
		Payload: map[string]string{
			"certificate_id":    cert.ID,
			"verification_code": cert.VerificationCode,
			"student_id":        cert.StudentID,
		},
	}
	if err := s.notifications.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue emission notification", zap.Error(err))
	}
}

func (s *SignatureService) emitAudit(ctx context.Context, actor *models.JWTClaims, certID, newValues string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionCertSign,
		Resource:   "certificate",
		ResourceID: &certID,
		NewValues:  []byte(newValues),
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to create signature audit", zap.Error(err))
	}
}
