package repository

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/ugel-puno/certificados-api/internal/models"
)

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	require.True(t, IsUniqueViolation(fmt.Errorf("create certificate: %w", &pq.Error{Code: "23505"})))
	require.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	require.False(t, IsUniqueViolation(fmt.Errorf("boom")))
	require.False(t, IsUniqueViolation(nil))
}

func TestCertificateRepositoryCreateWithDetails(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCertificateRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO certificates")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO certificate_details")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO certificate_notes")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO certificate_notes")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	nota := 14.0
	cert := &models.Certificate{
		VerificationCode: "ABC1234",
		StudentID:        "student-1",
		Estado:           models.CertificateStateBorrador,
		SignatureStatus:  models.SignatureStatusNone,
	}
	details := []models.DetailWithNotes{{
		Detail: models.CertificateDetail{SchoolYearID: "year-1", GradeID: "grade-1", Orden: 1},
		Notes: []models.CertificateNote{
			{AreaID: "area-1", Nota: &nota, Orden: 1},
			{AreaID: "area-2", Exonerado: true, Orden: 2},
		},
	}}

	require.NoError(t, repo.CreateWithDetails(context.Background(), cert, details))
	require.NotEmpty(t, cert.ID)
	require.Equal(t, 1, cert.Version)
	require.Equal(t, cert.ID, details[0].Detail.CertificateID)
	require.Equal(t, details[0].Detail.ID, details[0].Notes[0].DetailID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryCreateRollsBackOnNoteError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCertificateRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO certificates")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO certificate_details")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO certificate_notes")).
		WillReturnError(fmt.Errorf("constraint"))
	mock.ExpectRollback()

	nota := 12.0
	cert := &models.Certificate{VerificationCode: "ABC1234", StudentID: "student-1"}
	details := []models.DetailWithNotes{{
		Detail: models.CertificateDetail{SchoolYearID: "year-1", GradeID: "grade-1", Orden: 1},
		Notes:  []models.CertificateNote{{AreaID: "area-1", Nota: &nota, Orden: 1}},
	}}

	require.Error(t, repo.CreateWithDetails(context.Background(), cert, details))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryEmitRequiresDraft(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCertificateRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE certificates SET estado = $2, emitted_by = $3")).
		WithArgs("cert-1", models.CertificateStateEmitido, "user-1", sqlmock.AnyArg(), models.CertificateStateBorrador).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.Error(t, repo.Emit(context.Background(), "cert-1", "user-1"))
}

func TestCertificateRepositoryRectify(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCertificateRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO certificates")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	detailRows := sqlmock.NewRows([]string{"id", "certificate_id", "school_year_id", "grade_id", "situacion_final", "observaciones", "orden"}).
		AddRow("det-1", "cert-old", "year-1", "grade-1", nil, nil, 1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, certificate_id, school_year_id, grade_id")).
		WithArgs("cert-old").
		WillReturnRows(detailRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO certificate_details")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO certificate_notes")).
		WithArgs("det-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE certificates SET estado = $2, annulment_reason = $3")).
		WithArgs("cert-old", models.CertificateStateAnulado, "Anulado por rectificación: nota errada", "user-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	replacement := &models.Certificate{
		VerificationCode: "XYZ9876",
		StudentID:        "student-1",
		Version:          2,
		IsRectification:  true,
	}
	err := repo.Rectify(context.Background(), "cert-old", replacement,
		"Anulado por rectificación: nota errada", "user-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
