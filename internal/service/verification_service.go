package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ugel-puno/certificados-api/internal/dto"
	"github.com/ugel-puno/certificados-api/internal/models"
	appErrors "github.com/ugel-puno/certificados-api/pkg/errors"
)

const statsCacheKey = "verification:stats"

type verificationCertStore interface {
	FindByCode(ctx context.Context, code string) (*models.Certificate, error)
	FindByPDFHash(ctx context.Context, hash string) (*models.Certificate, error)
	CountEmitted(ctx context.Context) (int, error)
}

type verificationStore interface {
	Create(ctx context.Context, v *models.Verification) error
	CountTotal(ctx context.Context) (int, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
}

type verificationDataProvider interface {
	GetData(ctx context.Context, id string) (*models.CertificateData, error)
}

// VerificationRequestInfo carries the caller identity for the audit trail.
type VerificationRequestInfo struct {
	IP        string
	UserAgent string
}

// VerificationServiceConfig holds cache parameters.
type VerificationServiceConfig struct {
	StatsTTL time.Duration
}

// VerificationService answers public certificate lookups. Every attempt is
// recorded, found or not.
type VerificationService struct {
	certs   verificationCertStore
	data    verificationDataProvider
	trail   verificationStore
	cache   *redis.Client
	metrics *MetricsService
	logger  *zap.Logger
	cfg     VerificationServiceConfig
}

// NewVerificationService constructs the service with defaults.
func NewVerificationService(certs verificationCertStore, data verificationDataProvider, trail verificationStore, cache *redis.Client, metrics *MetricsService, logger *zap.Logger, cfg VerificationServiceConfig) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StatsTTL <= 0 {
		cfg.StatsTTL = 5 * time.Minute
	}
	return &VerificationService{
		certs:   certs,
		data:    data,
		trail:   trail,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
	}
}

// VerifyByCode resolves a certificate by its verification code.
func (s *VerificationService) VerifyByCode(ctx context.Context, code string, info VerificationRequestInfo) (*dto.VerificationResponse, error) {
	cert, err := s.certs.FindByCode(ctx, code)
	return s.resolve(ctx, cert, err, code, models.VerificationByCode, info)
}

// VerifyByHash resolves a certificate by its document SHA-256 digest.
func (s *VerificationService) VerifyByHash(ctx context.Context, hash string, info VerificationRequestInfo) (*dto.VerificationResponse, error) {
	cert, err := s.certs.FindByPDFHash(ctx, hash)
	return s.resolve(ctx, cert, err, hash, models.VerificationByHash, info)
}

func (s *VerificationService) resolve(ctx context.Context, cert *models.Certificate, lookupErr error, queried string, mode models.VerificationMode, info VerificationRequestInfo) (*dto.VerificationResponse, error) {
	if lookupErr != nil {
		if errors.Is(lookupErr, sql.ErrNoRows) {
			s.record(ctx, nil, queried, mode, models.VerificationNotFound, info)
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(lookupErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up certificate")
	}

	s.record(ctx, &cert.ID, queried, mode, models.VerificationFound, info)

	if cert.Estado == models.CertificateStateAnulado {
		return &dto.VerificationResponse{
			Valid:           false,
			Annulled:        true,
			Codigo:          cert.VerificationCode,
			Estado:          cert.Estado,
			MotivoAnulacion: derefString(cert.AnnulmentReason),
		}, nil
	}

	data, err := s.data.GetData(ctx, cert.ID)
	if err != nil {
		return nil, err
	}
	emission := cert.EmissionDate
	return &dto.VerificationResponse{
		Valid:          cert.Estado == models.CertificateStateEmitido,
		Codigo:         cert.VerificationCode,
		Estado:         cert.Estado,
		Estudiante:     data.Student.FullName(),
		DNI:            data.Student.DNI,
		Grados:         data.Grados,
		Promedio:       data.Promedio,
		SituacionFinal: data.SituacionFinal,
		FechaEmision:   &emission,
	}, nil
}

// Stats returns the public aggregate counters, cached for a short window.
func (s *VerificationService) Stats(ctx context.Context) (*models.VerificationStats, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, statsCacheKey).Bytes(); err == nil {
			var cached models.VerificationStats
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	total, err := s.trail.CountTotal(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count verifications")
	}
	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	today, err := s.trail.CountSince(ctx, midnight)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count verifications")
	}
	emitted, err := s.certs.CountEmitted(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count certificates")
	}

	stats := &models.VerificationStats{
		TotalVerifications:  total,
		VerificationsToday:  today,
		EmittedCertificates: emitted,
	}
	if s.cache != nil {
		if raw, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, statsCacheKey, raw, s.cfg.StatsTTL).Err(); err != nil {
				s.logger.Warn("failed to cache verification stats", zap.Error(err))
			}
		}
	}
	return stats, nil
}

func (s *VerificationService) record(ctx context.Context, certID *string, queried string, mode models.VerificationMode, outcome models.VerificationOutcome, info VerificationRequestInfo) {
	v := &models.Verification{
		CertificateID: certID,
		QueriedValue:  queried,
		Mode:          mode,
		Outcome:       outcome,
		IPAddress:     info.IP,
		UserAgent:     info.UserAgent,
	}
	if err := s.trail.Create(ctx, v); err != nil {
		s.logger.Warn("failed to record verification attempt",
			zap.Error(err), zap.String("mode", string(mode)))
	}
	s.metrics.RecordVerification(string(mode), string(outcome))
}
