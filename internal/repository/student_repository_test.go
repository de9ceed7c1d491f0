package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/ugel-puno/certificados-api/internal/models"
)

func TestStudentRepositoryFindByDNI(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	rows := sqlmock.NewRows([]string{"id", "dni", "apellido_paterno", "apellido_materno", "nombres", "sexo",
		"fecha_nacimiento", "lugar_nacimiento", "observaciones", "created_at", "updated_at"}).
		AddRow("student-1", "41234567", "QUISPE", "MAMANI", "JUAN", nil, nil, nil, "", time.Now(), time.Now())
	mock.ExpectQuery("SELECT .+ FROM students WHERE dni").
		WithArgs("41234567").
		WillReturnRows(rows)

	student, err := repo.FindByDNI(context.Background(), "41234567")
	require.NoError(t, err)
	require.Equal(t, "student-1", student.ID)

	mock.ExpectQuery("SELECT .+ FROM students WHERE dni").
		WithArgs("99999999").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.FindByDNI(context.Background(), "99999999")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestStudentRepositoryUpdateFieldWhitelist(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET dni = $2")).
		WithArgs("student-1", "41234567", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateField(context.Background(), "student-1", "dni", "41234567"))
	require.NoError(t, mock.ExpectationsWereMet())

	err := repo.UpdateField(context.Background(), "student-1", "estado; DROP TABLE students", "x")
	require.Error(t, err)
}

func TestStudentRepositoryAppendObservation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET observaciones = CASE")).
		WithArgs("student-1", "DNI corregido en validación", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AppendObservation(context.Background(), "student-1", "DNI corregido en validación"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{
		DNI:             "TEMP-1700000000-3",
		ApellidoPaterno: "QUISPE",
		Nombres:         "ROSA",
	}
	require.NoError(t, repo.Create(context.Background(), student))
	require.NotEmpty(t, student.ID)
}
