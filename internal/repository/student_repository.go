package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ugel-puno/certificados-api/internal/models"
)

const studentColumns = `id, dni, apellido_paterno, apellido_materno, nombres, sexo, fecha_nacimiento,
       lugar_nacimiento, observaciones, created_at, updated_at`

// StudentRepository handles student persistence.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// Create stores a new student.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students
	(id, dni, apellido_paterno, apellido_materno, nombres, sexo, fecha_nacimiento, lugar_nacimiento, observaciones, created_at, updated_at)
	VALUES (:id, :dni, :apellido_paterno, :apellido_materno, :nombres, :sexo, :fecha_nacimiento, :lugar_nacimiento, :observaciones, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// GetByID retrieves one student.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return &student, nil
}

// FindByDNI retrieves a student by document number.
func (r *StudentRepository) FindByDNI(ctx context.Context, dni string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE dni = $1 LIMIT 1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, dni); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by dni: %w", err)
	}
	return &student, nil
}

// List returns students applying filters with total count.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := ` FROM students`
	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 2)

	if filter.DNI != "" {
		args = append(args, filter.DNI)
		conditions = append(conditions, fmt.Sprintf("dni = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(apellido_paterno) LIKE $%d OR LOWER(apellido_materno) LIKE $%d OR LOWER(nombres) LIKE $%d)",
			len(args), len(args), len(args)))
	}
	if len(conditions) > 0 {
		base += " WHERE " + strings.Join(conditions, " AND ")
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

	listQuery := fmt.Sprintf("SELECT %s%s ORDER BY apellido_paterno, apellido_materno, nombres LIMIT %d OFFSET %d",
		studentColumns, base, pageSize, offset)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// UpdateField applies a single identity correction. The column is resolved
// from a fixed whitelist so validation payloads can never inject SQL.
func (r *StudentRepository) UpdateField(ctx context.Context, id, field, value string) error {
	columns := map[string]string{
		"apellidoPaterno": "apellido_paterno",
		"apellidoMaterno": "apellido_materno",
		"nombres":         "nombres",
		"dni":             "dni",
	}
	column, ok := columns[field]
	if !ok {
		return fmt.Errorf("unknown student field %q", field)
	}
	query := fmt.Sprintf(`UPDATE students SET %s = $2, updated_at = $3 WHERE id = $1`, column)
	res, err := r.db.ExecContext(ctx, query, id, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update student field: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check student update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AppendObservation adds a line to the student's observation log.
func (r *StudentRepository) AppendObservation(ctx context.Context, id, note string) error {
	const query = `UPDATE students SET observaciones = CASE
	WHEN observaciones IS NULL OR observaciones = '' THEN $2
	ELSE observaciones || E'\n' || $2 END, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, note, time.Now().UTC()); err != nil {
		return fmt.Errorf("append student observation: %w", err)
	}
	return nil
}
