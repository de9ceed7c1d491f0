package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/ugel-puno/certificados-api/internal/models"
)

func TestVerificationRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewVerificationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO verifications")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	v := &models.Verification{
		QueriedValue: "ABC1234",
		Mode:         models.VerificationByCode,
		Outcome:      models.VerificationNotFound,
		IPAddress:    "10.0.0.1",
	}
	require.NoError(t, repo.Create(context.Background(), v))
	require.NotEmpty(t, v.ID)
	require.False(t, v.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationRepositoryCounts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewVerificationRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM verifications")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	total, err := repo.CountTotal(context.Background())
	require.NoError(t, err)
	require.Equal(t, 42, total)

	midnight := time.Now().Truncate(24 * time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM verifications WHERE created_at >= $1")).
		WithArgs(midnight).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	today, err := repo.CountSince(context.Background(), midnight)
	require.NoError(t, err)
	require.Equal(t, 7, today)
	require.NoError(t, mock.ExpectationsWereMet())
}
