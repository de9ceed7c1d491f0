package service

import (
	"context"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/ugel-puno/certificados-api/internal/dto"
	"github.com/ugel-puno/certificados-api/internal/models"
	appErrors "github.com/ugel-puno/certificados-api/pkg/errors"
)

type mockCertificateStore struct {
	createFn   func(ctx context.Context, cert *models.Certificate, details []models.DetailWithNotes) error
	getFn      func(ctx context.Context, id string) (*models.Certificate, error)
	rectifyFn  func(ctx context.Context, sourceID string, replacement *models.Certificate, annulmentReason, annulledBy string) error
	annulFn    func(ctx context.Context, id, reason, annulledBy string, at time.Time) error
	created    []*models.Certificate
	annulCalls int
}

func (m *mockCertificateStore) CreateWithDetails(ctx context.Context, cert *models.Certificate, details []models.DetailWithNotes) error {
	if m.createFn != nil {
		if err := m.createFn(ctx, cert, details); err != nil {
			return err
		}
	}
	if cert.ID == "" {
		cert.ID = "cert-" + cert.VerificationCode
	}
	m.created = append(m.created, cert)
	return nil
}

func (m *mockCertificateStore) GetByID(ctx context.Context, id string) (*models.Certificate, error) {
	return m.getFn(ctx, id)
}

func (m *mockCertificateStore) FindByCode(ctx context.Context, code string) (*models.Certificate, error) {
	return nil, nil
}

func (m *mockCertificateStore) FindByActaRow(ctx context.Context, actaID string, rowIndex int) (*models.Certificate, error) {
	return nil, nil
}

func (m *mockCertificateStore) List(ctx context.Context, filter models.CertificateFilter) ([]models.CertificateSummary, int, error) {
	return nil, 0, nil
}

func (m *mockCertificateStore) ListDetails(ctx context.Context, certID string) ([]models.CertificateDetailRow, error) {
	return nil, nil
}

func (m *mockCertificateStore) ListNotes(ctx context.Context, detailID string) ([]models.CertificateNoteRow, error) {
	return nil, nil
}

func (m *mockCertificateStore) UpdateAverage(ctx context.Context, id string, average float64) error {
	return nil
}

func (m *mockCertificateStore) Annul(ctx context.Context, id, reason, annulledBy string, at time.Time) error {
	m.annulCalls++
	if m.annulFn != nil {
		return m.annulFn(ctx, id, reason, annulledBy, at)
	}
	return nil
}

func (m *mockCertificateStore) Rectify(ctx context.Context, sourceID string, replacement *models.Certificate, annulmentReason, annulledBy string) error {
	if m.rectifyFn != nil {
		return m.rectifyFn(ctx, sourceID, replacement, annulmentReason, annulledBy)
	}
	return nil
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin}
}

func noteValue(v float64) *float64 { return &v }

func TestComputeAverage(t *testing.T) {
	notes := []models.CertificateNote{
		{Nota: noteValue(14)},
		{Nota: noteValue(15)},
		{Nota: noteValue(12)},
		{Exonerado: true, Nota: noteValue(20)},
		{Nota: nil},
	}
	avg, err := ComputeAverage(notes)
	require.NoError(t, err)
	require.InDelta(t, 13.67, avg, 0.001)
}

func TestComputeAverageEmptySetFails(t *testing.T) {
	_, err := ComputeAverage(nil)
	require.Error(t, err)

	_, err = ComputeAverage([]models.CertificateNote{{Exonerado: true, Nota: noteValue(18)}})
	require.Error(t, err)
}

func TestCreateDraftRetriesOnCodeCollision(t *testing.T) {
	attempts := 0
	store := &mockCertificateStore{
		createFn: func(ctx context.Context, cert *models.Certificate, details []models.DetailWithNotes) error {
			attempts++
			if attempts == 1 {
				return &pq.Error{Code: "23505"}
			}
			return nil
		},
	}
	svc := NewCertificateService(store, nil, nil, nil, nil, nil, nil, nil, nil, CertificateServiceConfig{})

	cert, err := svc.CreateDraft(context.Background(), DraftInput{
		StudentID:    "student-1",
		ActaID:       "acta-1",
		SchoolYearID: "year-1",
		GradeID:      "grade-1",
		Notes:        []models.CertificateNote{{AreaID: "a1", Nota: noteValue(14), Orden: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
	require.Equal(t, models.CertificateStateBorrador, cert.Estado)
	require.Equal(t, models.SignatureStatusNone, cert.SignatureStatus)
	require.Regexp(t, `^[A-Z]{3}[0-9]{4}$`, cert.VerificationCode)
	require.NotNil(t, cert.GeneralAverage)
	require.InDelta(t, 14.0, *cert.GeneralAverage, 0.001)
}

func TestCreateDraftKeepsNullAverageWithoutGradableNotes(t *testing.T) {
	svc := NewCertificateService(&mockCertificateStore{}, nil, nil, nil, nil, nil, nil, nil, nil, CertificateServiceConfig{})

	// Rows whose notes are all null or exonerated still consolidate; the
	// average stays unset until the notes are completed.
	cert, err := svc.CreateDraft(context.Background(), DraftInput{
		StudentID: "student-1",
		Notes:     []models.CertificateNote{{AreaID: "a1", Orden: 1}, {AreaID: "a2", Exonerado: true, Orden: 2}},
	})
	require.NoError(t, err)
	require.Nil(t, cert.GeneralAverage)
	require.Equal(t, models.CertificateStateBorrador, cert.Estado)
}

func TestAnnulRejectsAlreadyAnnulled(t *testing.T) {
	store := &mockCertificateStore{
		getFn: func(ctx context.Context, id string) (*models.Certificate, error) {
			return &models.Certificate{ID: id, Estado: models.CertificateStateAnulado}, nil
		},
	}
	svc := NewCertificateService(store, nil, nil, nil, nil, nil, nil, nil, nil, CertificateServiceConfig{})

	_, err := svc.Annul(context.Background(), "cert-1", dto.AnnulCertificateRequest{Motivo: "nota equivocada"}, adminClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrAnnulled.Code, appErrors.FromError(err).Code)
	require.Zero(t, store.annulCalls)
}

func TestAnnulRequiresPrivilegedRole(t *testing.T) {
	svc := NewCertificateService(&mockCertificateStore{}, nil, nil, nil, nil, nil, nil, nil, nil, CertificateServiceConfig{})

	_, err := svc.Annul(context.Background(), "cert-1", dto.AnnulCertificateRequest{Motivo: "nota equivocada"},
		&models.JWTClaims{UserID: "user-2", Role: models.RoleMesaPartes})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRectifyCreatesNextVersionAndAnnulsSource(t *testing.T) {
	source := &models.Certificate{
		ID:               "cert-old",
		VerificationCode: "AAA1111",
		StudentID:        "student-1",
		Estado:           models.CertificateStateEmitido,
		Version:          1,
		GeneralAverage:   noteValue(14.5),
	}
	var gotAnnulment string
	store := &mockCertificateStore{
		getFn: func(ctx context.Context, id string) (*models.Certificate, error) {
			return source, nil
		},
		rectifyFn: func(ctx context.Context, sourceID string, replacement *models.Certificate, annulmentReason, annulledBy string) error {
			gotAnnulment = annulmentReason
			replacement.ID = "cert-new"
			return nil
		},
	}
	svc := NewCertificateService(store, nil, nil, nil, nil, nil, nil, nil, nil, CertificateServiceConfig{})

	replacement, err := svc.Rectify(context.Background(), "cert-old",
		dto.RectifyCertificateRequest{Motivo: "apellido mal escrito"}, adminClaims())
	require.NoError(t, err)
	require.Equal(t, 2, replacement.Version)
	require.True(t, replacement.IsRectification)
	require.Equal(t, "cert-old", *replacement.PreviousCertificate)
	require.Equal(t, models.CertificateStateBorrador, replacement.Estado)
	require.NotEqual(t, source.VerificationCode, replacement.VerificationCode)
	require.Equal(t, "Anulado por rectificación: apellido mal escrito", gotAnnulment)
}

func TestRectifyRejectsAnnulledSource(t *testing.T) {
	store := &mockCertificateStore{
		getFn: func(ctx context.Context, id string) (*models.Certificate, error) {
			return &models.Certificate{ID: id, Estado: models.CertificateStateAnulado}, nil
		},
	}
	svc := NewCertificateService(store, nil, nil, nil, nil, nil, nil, nil, nil, CertificateServiceConfig{})

	_, err := svc.Rectify(context.Background(), "cert-old",
		dto.RectifyCertificateRequest{Motivo: "apellido mal escrito"}, adminClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrAnnulled.Code, appErrors.FromError(err).Code)
}

func TestGenerateVerificationCodeFormat(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 200; i++ {
		code := generateVerificationCode()
		require.Regexp(t, `^[A-Z]{3}[0-9]{4}$`, code)
		seen[code] = struct{}{}
	}
	// With 176 million combinations, 200 draws should rarely collide.
	require.Greater(t, len(seen), 190)
}
