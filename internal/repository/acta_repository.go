package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ugel-puno/certificados-api/internal/models"
)

const actaColumns = `a.id, a.numero, a.tipo, a.school_year_id, a.grade_id, a.seccion, a.turno, a.request_id,
       a.scan_filename, a.scan_url, a.scan_hash, a.estado, a.ocr_processed, a.ocr_payload, a.processed_at,
       a.roster_export_url, a.roster_exported_at, a.observaciones, a.uploaded_by, a.created_at, a.updated_at`

// ActaRepository handles acta persistence.
type ActaRepository struct {
	db *sqlx.DB
}

// NewActaRepository constructs the repository.
func NewActaRepository(db *sqlx.DB) *ActaRepository {
	return &ActaRepository{db: db}
}

// Create stores a newly registered acta.
func (r *ActaRepository) Create(ctx context.Context, acta *models.Acta) error {
	if acta.ID == "" {
		acta.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if acta.CreatedAt.IsZero() {
		acta.CreatedAt = now
	}
	acta.UpdatedAt = now
	const query = `INSERT INTO actas
	(id, numero, tipo, school_year_id, grade_id, seccion, turno, request_id, scan_filename, scan_url, scan_hash,
	 estado, ocr_processed, observaciones, uploaded_by, created_at, updated_at)
	VALUES (:id, :numero, :tipo, :school_year_id, :grade_id, :seccion, :turno, :request_id, :scan_filename, :scan_url, :scan_hash,
	 :estado, :ocr_processed, :observaciones, :uploaded_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, acta); err != nil {
		return fmt.Errorf("create acta: %w", err)
	}
	return nil
}

// GetByID retrieves one acta joined with its year and grade labels.
func (r *ActaRepository) GetByID(ctx context.Context, id string) (*models.ActaDetail, error) {
	query := `SELECT ` + actaColumns + `, sy.year AS year, g.name AS grade_name, g.number AS grade_number
	FROM actas a
	JOIN school_years sy ON sy.id = a.school_year_id
	JOIN grades g ON g.id = a.grade_id
	WHERE a.id = $1`
	var acta models.ActaDetail
	if err := r.db.GetContext(ctx, &acta, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get acta: %w", err)
	}
	return &acta, nil
}

// ExistsByHash reports whether a scan with the same content hash is already registered.
func (r *ActaRepository) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM actas WHERE scan_hash = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, hash); err != nil {
		return false, fmt.Errorf("check acta hash: %w", err)
	}
	return exists, nil
}

// ExistsByNumeroYear reports whether the acta number is already used for the year.
func (r *ActaRepository) ExistsByNumeroYear(ctx context.Context, numero, schoolYearID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM actas WHERE numero = $1 AND school_year_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, numero, schoolYearID); err != nil {
		return false, fmt.Errorf("check acta numero: %w", err)
	}
	return exists, nil
}

// RequestExists reports whether a search request is registered.
func (r *ActaRepository) RequestExists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM solicitudes WHERE id = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		return false, fmt.Errorf("check request: %w", err)
	}
	return exists, nil
}

// List returns actas applying filters with total count.
func (r *ActaRepository) List(ctx context.Context, filter models.ActaFilter) ([]models.ActaDetail, int, error) {
	base := strings.Builder{}
	base.WriteString(` FROM actas a
	JOIN school_years sy ON sy.id = a.school_year_id
	JOIN grades g ON g.id = a.grade_id`)
	args := make([]interface{}, 0, 5)
	conditions := make([]string, 0, 5)

	if filter.Estado != nil {
		args = append(args, *filter.Estado)
		conditions = append(conditions, fmt.Sprintf("a.estado = $%d", len(args)))
	}
	if filter.SchoolYearID != "" {
		args = append(args, filter.SchoolYearID)
		conditions = append(conditions, fmt.Sprintf("a.school_year_id = $%d", len(args)))
	}
	if filter.GradeID != "" {
		args = append(args, filter.GradeID)
		conditions = append(conditions, fmt.Sprintf("a.grade_id = $%d", len(args)))
	}
	if filter.Processed != nil {
		args = append(args, *filter.Processed)
		conditions = append(conditions, fmt.Sprintf("a.ocr_processed = $%d", len(args)))
	}
	if filter.RequestID != "" {
		args = append(args, filter.RequestID)
		conditions = append(conditions, fmt.Sprintf("a.request_id = $%d", len(args)))
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

	listQuery := fmt.Sprintf("SELECT %s, sy.year AS year, g.name AS grade_name, g.number AS grade_number%s ORDER BY a.created_at DESC LIMIT %d OFFSET %d",
		actaColumns, base.String(), pageSize, offset)
	var records []models.ActaDetail
	if err := r.db.SelectContext(ctx, &records, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list actas: %w", err)
	}

	countQuery := "SELECT COUNT(*)" + base.String()
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count actas: %w", err)
	}
	return records, total, nil
}

// UpdateState moves an acta to a new state, optionally binding the search request.
func (r *ActaRepository) UpdateState(ctx context.Context, id string, estado models.ActaState, requestID *string, observaciones string) error {
	const query = `UPDATE actas SET estado = $2, request_id = COALESCE($3, request_id),
	observaciones = CASE WHEN $4 <> '' THEN $4 ELSE observaciones END, updated_at = $5 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, estado, requestID, observaciones, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update acta state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check acta state rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Update modifies the mutable descriptive fields of an acta.
func (r *ActaRepository) Update(ctx context.Context, acta *models.Acta) error {
	acta.UpdatedAt = time.Now().UTC()
	const query = `UPDATE actas SET numero = :numero, tipo = :tipo, seccion = :seccion, turno = :turno,
	observaciones = :observaciones, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, acta); err != nil {
		return fmt.Errorf("update acta: %w", err)
	}
	return nil
}

// AppendObservation adds a textual entry to the acta's observation log.
func (r *ActaRepository) AppendObservation(ctx context.Context, id, note string) error {
	const query = `UPDATE actas SET observaciones = CASE WHEN observaciones = '' THEN $2
	ELSE observaciones || E'\n\n' || $2 END, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, note, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("append acta observation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check acta observation rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetOCRPayload persists the extracted payload and marks the acta processed.
func (r *ActaRepository) SetOCRPayload(ctx context.Context, id string, payload json.RawMessage, processedAt time.Time) error {
	const query = `UPDATE actas SET ocr_payload = $2, ocr_processed = TRUE, processed_at = $3, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, payload, processedAt); err != nil {
		return fmt.Errorf("set ocr payload: %w", err)
	}
	return nil
}

// SetRosterExport records the generated roster workbook location.
func (r *ActaRepository) SetRosterExport(ctx context.Context, id, url string, exportedAt time.Time) error {
	const query = `UPDATE actas SET roster_export_url = $2, roster_exported_at = $3, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, url, exportedAt); err != nil {
		return fmt.Errorf("set roster export: %w", err)
	}
	return nil
}
