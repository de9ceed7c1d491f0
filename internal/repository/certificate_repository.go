package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ugel-puno/certificados-api/internal/models"
)

const certificateColumns = `c.id, c.verification_code, c.numero, c.student_id, c.institution_id, c.acta_id, c.ocr_row_index,
       c.emission_date, c.emission_place, c.grades_completed, c.general_average, c.situacion_final, c.estado,
       c.signature_status, c.version, c.is_rectification, c.previous_certificate_id, c.annulment_reason,
       c.rectification_reason, c.annulled_by, c.annulled_at, c.emitted_by, c.pdf_url, c.pdf_hash, c.qr_url,
       c.obs_retiros, c.obs_traslados, c.obs_siagie, c.obs_pruebas_ubicacion, c.obs_convalidacion, c.obs_otros,
       c.created_at, c.updated_at`

const certificateInsert = `INSERT INTO certificates
	(id, verification_code, numero, student_id, institution_id, acta_id, ocr_row_index, emission_date, emission_place,
	 grades_completed, general_average, situacion_final, estado, signature_status, version, is_rectification,
	 previous_certificate_id, annulment_reason, rectification_reason, annulled_by, annulled_at, emitted_by,
	 pdf_url, pdf_hash, qr_url, obs_retiros, obs_traslados, obs_siagie, obs_pruebas_ubicacion, obs_convalidacion,
	 obs_otros, created_at, updated_at)
	VALUES (:id, :verification_code, :numero, :student_id, :institution_id, :acta_id, :ocr_row_index, :emission_date,
	 :emission_place, :grades_completed, :general_average, :situacion_final, :estado, :signature_status, :version,
	 :is_rectification, :previous_certificate_id, :annulment_reason, :rectification_reason, :annulled_by, :annulled_at,
	 :emitted_by, :pdf_url, :pdf_hash, :qr_url, :obs_retiros, :obs_traslados, :obs_siagie, :obs_pruebas_ubicacion,
	 :obs_convalidacion, :obs_otros, :created_at, :updated_at)`

// IsUniqueViolation reports whether the error is a Postgres unique
// constraint violation, used to retry verification code generation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// CertificateRepository handles certificate, detail and note persistence.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs the repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// CreateWithDetails inserts a certificate with all its detail and note rows
// in one transaction.
func (r *CertificateRepository) CreateWithDetails(ctx context.Context, cert *models.Certificate, details []models.DetailWithNotes) error {
	prepareCertificate(cert)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.NamedExecContext(ctx, certificateInsert, cert); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create certificate: %w", err)
	}
	if err := insertDetails(ctx, tx, cert.ID, details); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit certificate: %w", err)
	}
	return nil
}

func prepareCertificate(cert *models.Certificate) {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if cert.CreatedAt.IsZero() {
		cert.CreatedAt = now
	}
	cert.UpdatedAt = now
	if cert.Version == 0 {
		cert.Version = 1
	}
}

func insertDetails(ctx context.Context, tx *sqlx.Tx, certID string, details []models.DetailWithNotes) error {
	const detailInsert = `INSERT INTO certificate_details
	(id, certificate_id, school_year_id, grade_id, situacion_final, observaciones, orden)
	VALUES (:id, :certificate_id, :school_year_id, :grade_id, :situacion_final, :observaciones, :orden)`
	const noteInsert = `INSERT INTO certificate_notes
	(id, detail_id, area_id, nota, nota_literal, exonerado, orden)
	VALUES (:id, :detail_id, :area_id, :nota, :nota_literal, :exonerado, :orden)`

	for i := range details {
		detail := &details[i].Detail
		if detail.ID == "" {
			detail.ID = uuid.NewString()
		}
		detail.CertificateID = certID
		if _, err := tx.NamedExecContext(ctx, detailInsert, detail); err != nil {
			return fmt.Errorf("create certificate detail: %w", err)
		}
		for j := range details[i].Notes {
			note := &details[i].Notes[j]
			if note.ID == "" {
				note.ID = uuid.NewString()
			}
			note.DetailID = detail.ID
			if _, err := tx.NamedExecContext(ctx, noteInsert, note); err != nil {
				return fmt.Errorf("create certificate note: %w", err)
			}
		}
	}
	return nil
}

// GetByID retrieves one certificate.
func (r *CertificateRepository) GetByID(ctx context.Context, id string) (*models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates c WHERE c.id = $1`
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get certificate: %w", err)
	}
	return &cert, nil
}

// FindByCode retrieves a certificate by its public verification code.
func (r *CertificateRepository) FindByCode(ctx context.Context, code string) (*models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates c WHERE c.verification_code = $1 LIMIT 1`
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find certificate by code: %w", err)
	}
	return &cert, nil
}

// FindByPDFHash retrieves a certificate by its document digest.
func (r *CertificateRepository) FindByPDFHash(ctx context.Context, hash string) (*models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates c WHERE c.pdf_hash = $1 LIMIT 1`
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, hash); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find certificate by hash: %w", err)
	}
	return &cert, nil
}

// FindByActaRow retrieves the certificate consolidated from one acta roster row.
func (r *CertificateRepository) FindByActaRow(ctx context.Context, actaID string, rowIndex int) (*models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates c
	WHERE c.acta_id = $1 AND c.ocr_row_index = $2 AND c.estado <> 'ANULADO'
	ORDER BY c.version DESC LIMIT 1`
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, actaID, rowIndex); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find certificate by acta row: %w", err)
	}
	return &cert, nil
}

// List returns certificate summaries applying filters with total count.
func (r *CertificateRepository) List(ctx context.Context, filter models.CertificateFilter) ([]models.CertificateSummary, int, error) {
	base := strings.Builder{}
	base.WriteString(` FROM certificates c JOIN students s ON s.id = c.student_id`)
	args := make([]interface{}, 0, 6)
	conditions := make([]string, 0, 6)

	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("c.student_id = $%d", len(args)))
	}
	if filter.ActaID != "" {
		args = append(args, filter.ActaID)
		conditions = append(conditions, fmt.Sprintf("c.acta_id = $%d", len(args)))
	}
	if filter.Estado != nil {
		args = append(args, *filter.Estado)
		conditions = append(conditions, fmt.Sprintf("c.estado = $%d", len(args)))
	}
	if filter.VerificationCode != "" {
		args = append(args, filter.VerificationCode)
		conditions = append(conditions, fmt.Sprintf("c.verification_code = $%d", len(args)))
	}
	if filter.Numero != "" {
		args = append(args, filter.Numero)
		conditions = append(conditions, fmt.Sprintf("c.numero = $%d", len(args)))
	}
	if filter.EmittedFrom != nil {
		args = append(args, *filter.EmittedFrom)
		conditions = append(conditions, fmt.Sprintf("c.emission_date >= $%d", len(args)))
	}
	if filter.EmittedTo != nil {
		args = append(args, *filter.EmittedTo)
		conditions = append(conditions, fmt.Sprintf("c.emission_date <= $%d", len(args)))
	}
	if len(conditions) > 0 {
		base.WriteString(" WHERE ")
		base.WriteString(strings.Join(conditions, " AND "))
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT %s, s.dni AS student_dni, s.apellido_paterno AS student_ape_pat,
       s.apellido_materno AS student_ape_mat, s.nombres AS student_nombres%s
	ORDER BY c.created_at DESC LIMIT %d OFFSET %d`, certificateColumns, base.String(), pageSize, offset)
	var records []models.CertificateSummary
	if err := r.db.SelectContext(ctx, &records, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list certificates: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+base.String(), args...); err != nil {
		return nil, 0, fmt.Errorf("count certificates: %w", err)
	}
	return records, total, nil
}

// ListDetails returns detail rows joined with year and grade labels in order.
func (r *CertificateRepository) ListDetails(ctx context.Context, certID string) ([]models.CertificateDetailRow, error) {
	const query = `SELECT d.id, d.certificate_id, d.school_year_id, d.grade_id, d.situacion_final, d.observaciones, d.orden,
       sy.year AS year, g.name AS grade_name, g.number AS grade_number, g.level_name AS level_name
	FROM certificate_details d
	JOIN school_years sy ON sy.id = d.school_year_id
	JOIN grades g ON g.id = d.grade_id
	WHERE d.certificate_id = $1 ORDER BY d.orden`
	var rows []models.CertificateDetailRow
	if err := r.db.SelectContext(ctx, &rows, query, certID); err != nil {
		return nil, fmt.Errorf("list certificate details: %w", err)
	}
	return rows, nil
}

// ListNotes returns the notes of one detail joined with area labels in order.
func (r *CertificateRepository) ListNotes(ctx context.Context, detailID string) ([]models.CertificateNoteRow, error) {
	const query = `SELECT n.id, n.detail_id, n.area_id, n.nota, n.nota_literal, n.exonerado, n.orden,
       ca.code AS area_code, ca.name AS area_name
	FROM certificate_notes n
	JOIN curricular_areas ca ON ca.id = n.area_id
	WHERE n.detail_id = $1 ORDER BY n.orden`
	var rows []models.CertificateNoteRow
	if err := r.db.SelectContext(ctx, &rows, query, detailID); err != nil {
		return nil, fmt.Errorf("list certificate notes: %w", err)
	}
	return rows, nil
}

// UpdateAverage stores the recomputed general average.
func (r *CertificateRepository) UpdateAverage(ctx context.Context, id string, average float64) error {
	const query = `UPDATE certificates SET general_average = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, average, time.Now().UTC()); err != nil {
		return fmt.Errorf("update certificate average: %w", err)
	}
	return nil
}

// UpdateDocuments stores the generated document locations and digest.
func (r *CertificateRepository) UpdateDocuments(ctx context.Context, id, pdfURL, pdfHash, qrURL string) error {
	const query = `UPDATE certificates SET pdf_url = $2, pdf_hash = $3, qr_url = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, pdfURL, pdfHash, qrURL, time.Now().UTC()); err != nil {
		return fmt.Errorf("update certificate documents: %w", err)
	}
	return nil
}

// SetSignatureStatus updates the signature workflow state.
func (r *CertificateRepository) SetSignatureStatus(ctx context.Context, id string, status models.SignatureStatus) error {
	const query = `UPDATE certificates SET signature_status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("set signature status: %w", err)
	}
	return nil
}

// Emit transitions a draft certificate to EMITIDO.
func (r *CertificateRepository) Emit(ctx context.Context, id, emittedBy string) error {
	const query = `UPDATE certificates SET estado = $2, emitted_by = $3, updated_at = $4
	WHERE id = $1 AND estado = $5`
	res, err := r.db.ExecContext(ctx, query, id, models.CertificateStateEmitido, emittedBy,
		time.Now().UTC(), models.CertificateStateBorrador)
	if err != nil {
		return fmt.Errorf("emit certificate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check emit rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Annul marks a certificate ANULADO with the given reason.
func (r *CertificateRepository) Annul(ctx context.Context, id, reason, annulledBy string, at time.Time) error {
	const query = `UPDATE certificates SET estado = $2, annulment_reason = $3, annulled_by = $4, annulled_at = $5, updated_at = $5
	WHERE id = $1 AND estado <> $2`
	res, err := r.db.ExecContext(ctx, query, id, models.CertificateStateAnulado, reason, annulledBy, at)
	if err != nil {
		return fmt.Errorf("annul certificate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check annul rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Rectify creates the replacement certificate with a deep copy of the source
// detail and note rows, then annuls the source, all in one transaction.
func (r *CertificateRepository) Rectify(ctx context.Context, sourceID string, replacement *models.Certificate, annulmentReason, annulledBy string) error {
	prepareCertificate(replacement)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.NamedExecContext(ctx, certificateInsert, replacement); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create rectification: %w", err)
	}

	var details []models.CertificateDetail
	const detailQuery = `SELECT id, certificate_id, school_year_id, grade_id, situacion_final, observaciones, orden
	FROM certificate_details WHERE certificate_id = $1 ORDER BY orden`
	if err := tx.SelectContext(ctx, &details, detailQuery, sourceID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("load source details: %w", err)
	}

	const detailInsert = `INSERT INTO certificate_details
	(id, certificate_id, school_year_id, grade_id, situacion_final, observaciones, orden)
	VALUES (:id, :certificate_id, :school_year_id, :grade_id, :situacion_final, :observaciones, :orden)`
	const noteCopy = `INSERT INTO certificate_notes (id, detail_id, area_id, nota, nota_literal, exonerado, orden)
	SELECT gen_random_uuid(), $2, area_id, nota, nota_literal, exonerado, orden
	FROM certificate_notes WHERE detail_id = $1`

	for i := range details {
		sourceDetailID := details[i].ID
		details[i].ID = uuid.NewString()
		details[i].CertificateID = replacement.ID
		if _, err := tx.NamedExecContext(ctx, detailInsert, details[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("copy detail: %w", err)
		}
		if _, err := tx.ExecContext(ctx, noteCopy, sourceDetailID, details[i].ID); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("copy notes: %w", err)
		}
	}

	const annulQuery = `UPDATE certificates SET estado = $2, annulment_reason = $3, annulled_by = $4, annulled_at = $5, updated_at = $5
	WHERE id = $1`
	if _, err := tx.ExecContext(ctx, annulQuery, sourceID, models.CertificateStateAnulado,
		annulmentReason, annulledBy, time.Now().UTC()); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("annul source certificate: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rectification: %w", err)
	}
	return nil
}

// CountEmitted returns the number of certificates currently in EMITIDO state.
func (r *CertificateRepository) CountEmitted(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM certificates WHERE estado = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, models.CertificateStateEmitido); err != nil {
		return 0, fmt.Errorf("count emitted certificates: %w", err)
	}
	return total, nil
}
