package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/ugel-puno/certificados-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestActaRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewActaRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO actas")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	acta := &models.Acta{
		Numero:       "0123",
		Tipo:         models.ActaTypeConsolidado,
		SchoolYearID: "year-1",
		GradeID:      "grade-1",
		ScanFilename: "acta-0123.pdf",
		ScanURL:      "/storage/acta-0123.pdf",
		ScanHash:     "abc",
		Estado:       models.ActaStateDisponible,
		UploadedBy:   "user-1",
	}
	require.NoError(t, repo.Create(context.Background(), acta))
	require.NotEmpty(t, acta.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActaRepositoryExistsByHash(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewActaRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM actas WHERE scan_hash = $1)")).
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByHash(context.Background(), "abc")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActaRepositoryUpdateStateMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewActaRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE actas SET estado = $2")).
		WithArgs("acta-404", models.ActaStateAsignadaBusqueda, nil, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateState(context.Background(), "acta-404", models.ActaStateAsignadaBusqueda, nil, "")
	require.Error(t, err)
}

func TestActaRepositoryRequestExists(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewActaRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM solicitudes WHERE id = $1)")).
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := repo.RequestExists(context.Background(), "req-1")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActaRepositoryAppendObservation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewActaRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE actas SET observaciones = CASE WHEN observaciones = ''")).
		WithArgs("acta-1", "VALIDACIÓN MANUAL (APROBADA): ok", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AppendObservation(context.Background(), "acta-1", "VALIDACIÓN MANUAL (APROBADA): ok"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActaRepositorySetOCRPayload(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewActaRepository(db)
	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE actas SET ocr_payload = $2, ocr_processed = TRUE")).
		WithArgs("acta-1", []byte(`{"estudiantes":[]}`), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetOCRPayload(context.Background(), "acta-1", []byte(`{"estudiantes":[]}`), now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActaRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewActaRepository(db)
	estado := models.ActaStateEncontrada
	columns := []string{"id", "numero", "tipo", "school_year_id", "grade_id", "seccion", "turno", "request_id",
		"scan_filename", "scan_url", "scan_hash", "estado", "ocr_processed", "ocr_payload", "processed_at",
		"roster_export_url", "roster_exported_at", "observaciones", "uploaded_by", "created_at", "updated_at",
		"year", "grade_name", "grade_number"}
	rows := sqlmock.NewRows(columns).
		AddRow("acta-1", "0123", "CONSOLIDADO", "year-1", "grade-1", nil, nil, nil,
			"f.pdf", "/storage/f.pdf", "abc", "ENCONTRADA", false, nil, nil,
			nil, nil, "", "user-1", time.Now(), time.Now(), 1998, "Primer Grado", 1)
	mock.ExpectQuery("SELECT .+ FROM actas a").
		WithArgs(estado).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs(estado).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	records, total, err := repo.List(context.Background(), models.ActaFilter{Estado: &estado})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 1, total)
	require.Equal(t, 1998, records[0].Year)
	require.NoError(t, mock.ExpectationsWereMet())
}
