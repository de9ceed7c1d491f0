package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ugel-puno/certificados-api/internal/models"
)

// AcademicRepository serves the reference data: school years, grades,
// curricular areas, curriculum templates and the institution record.
type AcademicRepository struct {
	db *sqlx.DB
}

// NewAcademicRepository constructs the repository.
func NewAcademicRepository(db *sqlx.DB) *AcademicRepository {
	return &AcademicRepository{db: db}
}

// ListSchoolYears returns all school years ordered by year.
func (r *AcademicRepository) ListSchoolYears(ctx context.Context) ([]models.SchoolYear, error) {
	const query = `SELECT id, year, created_at FROM school_years ORDER BY year`
	var years []models.SchoolYear
	if err := r.db.SelectContext(ctx, &years, query); err != nil {
		return nil, fmt.Errorf("list school years: %w", err)
	}
	return years, nil
}

// GetSchoolYear returns one school year by id.
func (r *AcademicRepository) GetSchoolYear(ctx context.Context, id string) (*models.SchoolYear, error) {
	const query = `SELECT id, year, created_at FROM school_years WHERE id = $1`
	var year models.SchoolYear
	if err := r.db.GetContext(ctx, &year, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get school year: %w", err)
	}
	return &year, nil
}

// ListGrades returns all grade levels ordered by number.
func (r *AcademicRepository) ListGrades(ctx context.Context) ([]models.Grade, error) {
	const query = `SELECT id, name, number, level_name, created_at FROM grades ORDER BY number`
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}

// GetGrade returns one grade by id.
func (r *AcademicRepository) GetGrade(ctx context.Context, id string) (*models.Grade, error) {
	const query = `SELECT id, name, number, level_name, created_at FROM grades WHERE id = $1`
	var grade models.Grade
	if err := r.db.GetContext(ctx, &grade, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get grade: %w", err)
	}
	return &grade, nil
}

// ListAreas returns all curricular areas ordered by code.
func (r *AcademicRepository) ListAreas(ctx context.Context) ([]models.CurricularArea, error) {
	const query = `SELECT id, code, name, created_at FROM curricular_areas ORDER BY code`
	var areas []models.CurricularArea
	if err := r.db.SelectContext(ctx, &areas, query); err != nil {
		return nil, fmt.Errorf("list curricular areas: %w", err)
	}
	return areas, nil
}

// GetTemplate returns the ordered curriculum template for a year and grade.
// An empty result means no curriculum is configured for the combination.
func (r *AcademicRepository) GetTemplate(ctx context.Context, year, gradeNumber int) ([]models.TemplateArea, error) {
	const query = `SELECT t.area_id, ca.code, ca.name, t.orden
	FROM curriculum_templates t
	JOIN curricular_areas ca ON ca.id = t.area_id
	WHERE t.year_from <= $1 AND t.year_to >= $1 AND t.grade_number = $2
	ORDER BY t.orden`
	var areas []models.TemplateArea
	if err := r.db.SelectContext(ctx, &areas, query, year, gradeNumber); err != nil {
		return nil, fmt.Errorf("get curriculum template: %w", err)
	}
	return areas, nil
}

// GetInstitution returns the issuing institution configuration.
func (r *AcademicRepository) GetInstitution(ctx context.Context) (*models.Institution, error) {
	const query = `SELECT id, nombre, codigo_modular, direccion, ugel, region, logo_path FROM institutions LIMIT 1`
	var inst models.Institution
	if err := r.db.GetContext(ctx, &inst, query); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get institution: %w", err)
	}
	return &inst, nil
}
