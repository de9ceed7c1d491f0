package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ugel-puno/certificados-api/internal/models"
)

// VerificationRepository handles the append-only public lookup trail.
type VerificationRepository struct {
	db *sqlx.DB
}

// NewVerificationRepository constructs the repository.
func NewVerificationRepository(db *sqlx.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Create appends one verification attempt. Every public lookup is recorded,
// found or not.
func (r *VerificationRepository) Create(ctx context.Context, v *models.Verification) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO verifications
	(id, certificate_id, queried_value, mode, outcome, ip_address, user_agent, created_at)
	VALUES (:id, :certificate_id, :queried_value, :mode, :outcome, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, v); err != nil {
		return fmt.Errorf("create verification: %w", err)
	}
	return nil
}

// CountTotal returns all recorded verification attempts.
func (r *VerificationRepository) CountTotal(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM verifications`
	var total int
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("count verifications: %w", err)
	}
	return total, nil
}

// CountSince returns verification attempts recorded at or after the cutoff.
func (r *VerificationRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM verifications WHERE created_at >= $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, since); err != nil {
		return 0, fmt.Errorf("count verifications since: %w", err)
	}
	return total, nil
}

// ListByCertificate returns the lookup history of one certificate.
func (r *VerificationRepository) ListByCertificate(ctx context.Context, certID string, limit int) ([]models.Verification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id, certificate_id, queried_value, mode, outcome, ip_address, user_agent, created_at
	FROM verifications WHERE certificate_id = $1 ORDER BY created_at DESC LIMIT %d`, limit)
	var records []models.Verification
	if err := r.db.SelectContext(ctx, &records, query, certID); err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	return records, nil
}
