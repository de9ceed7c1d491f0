package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ugel-puno/certificados-api/internal/dto"
	"github.com/ugel-puno/certificados-api/internal/models"
	appErrors "github.com/ugel-puno/certificados-api/pkg/errors"
	"github.com/ugel-puno/certificados-api/pkg/storage"
)

type mockActaStore struct {
	acta           *models.ActaDetail
	numeroExists   bool
	hashExists     bool
	requestMissing bool
	created        []*models.Acta
	stateChanges   []models.ActaState
}

func (m *mockActaStore) Create(ctx context.Context, acta *models.Acta) error {
	acta.ID = "acta-1"
	m.created = append(m.created, acta)
	return nil
}

func (m *mockActaStore) GetByID(ctx context.Context, id string) (*models.ActaDetail, error) {
	return m.acta, nil
}

func (m *mockActaStore) List(ctx context.Context, filter models.ActaFilter) ([]models.ActaDetail, int, error) {
	return nil, 0, nil
}

func (m *mockActaStore) Update(ctx context.Context, acta *models.Acta) error {
	return nil
}

func (m *mockActaStore) UpdateState(ctx context.Context, id string, estado models.ActaState, requestID *string, observaciones string) error {
	m.stateChanges = append(m.stateChanges, estado)
	m.acta.Estado = estado
	return nil
}

func (m *mockActaStore) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	return m.hashExists, nil
}

func (m *mockActaStore) ExistsByNumeroYear(ctx context.Context, numero, schoolYearID string) (bool, error) {
	return m.numeroExists, nil
}

func (m *mockActaStore) RequestExists(ctx context.Context, id string) (bool, error) {
	return !m.requestMissing, nil
}

func (m *mockActaStore) SetRosterExport(ctx context.Context, id, url string, exportedAt time.Time) error {
	return nil
}

type stubStorage struct {
	saved   []string
	deleted []string
}

func (s *stubStorage) SaveStreamWithHash(filename string, r io.Reader) (*storage.StoredFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	s.saved = append(s.saved, filename)
	sum := sha256.Sum256(data)
	return &storage.StoredFile{
		Filename:  filename,
		URL:       "/files/" + filename,
		Hash:      hex.EncodeToString(sum[:]),
		SizeBytes: int64(len(data)),
	}, nil
}

func (s *stubStorage) Save(filename string, data []byte) (string, error) {
	s.saved = append(s.saved, filename)
	return "/files/" + filename, nil
}

func (s *stubStorage) Open(filename string) (*os.File, error) {
	return nil, os.ErrNotExist
}

func (s *stubStorage) Delete(filename string) error {
	s.deleted = append(s.deleted, filename)
	return nil
}

func (s *stubStorage) URL(filename string) string {
	return "/files/" + filename
}

func validCreateRequest() dto.CreateActaRequest {
	return dto.CreateActaRequest{
		Numero:       "0123",
		Tipo:         "CONSOLIDADO",
		SchoolYearID: "year-1",
		GradeID:      "grade-1",
	}
}

func pdfUpload() ActaUpload {
	content := []byte("%PDF-1.4 test scan body")
	return ActaUpload{
		Filename: "acta0123.pdf",
		Size:     int64(len(content)),
		MimeType: "application/pdf",
		Content:  bytes.NewReader(content),
	}
}

func TestRegisterRejectsDuplicateNumero(t *testing.T) {
	store := &mockActaStore{numeroExists: true}
	files := &stubStorage{}
	svc := NewActaService(store, &mockTemplateReader{}, files, nil, nil, nil, nil, nil, nil, ActaServiceConfig{})

	_, err := svc.Register(context.Background(), validCreateRequest(), pdfUpload(), adminClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrDuplicate.Code, appErrors.FromError(err).Code)
	require.Empty(t, files.saved)
}

func TestRegisterRejectsDuplicateScanHash(t *testing.T) {
	store := &mockActaStore{hashExists: true}
	files := &stubStorage{}
	svc := NewActaService(store, &mockTemplateReader{}, files, nil, nil, nil, nil, nil, nil, ActaServiceConfig{})

	_, err := svc.Register(context.Background(), validCreateRequest(), pdfUpload(), adminClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrDuplicate.Code, appErrors.FromError(err).Code)
	// The orphaned scan is removed.
	require.Len(t, files.deleted, 1)
	require.Empty(t, store.created)
}

func TestRegisterStoresScanAndCreatesActa(t *testing.T) {
	store := &mockActaStore{}
	files := &stubStorage{}
	svc := NewActaService(store, &mockTemplateReader{}, files, nil, nil, nil, nil, nil, nil, ActaServiceConfig{})

	acta, err := svc.Register(context.Background(), validCreateRequest(), pdfUpload(), adminClaims())
	require.NoError(t, err)
	require.Equal(t, models.ActaStateDisponible, acta.Estado)
	require.Equal(t, "user-1", acta.UploadedBy)
	require.NotEmpty(t, acta.ScanHash)
	require.Len(t, files.saved, 1)
}

func TestRegisterRejectsUnknownSchoolYear(t *testing.T) {
	store := &mockActaStore{}
	files := &stubStorage{}
	svc := NewActaService(store, &mockTemplateReader{yearMissing: true}, files, nil, nil, nil, nil, nil, nil, ActaServiceConfig{})

	_, err := svc.Register(context.Background(), validCreateRequest(), pdfUpload(), adminClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	require.Empty(t, files.saved)
	require.Empty(t, store.created)
}

func TestRegisterRejectsUnknownGrade(t *testing.T) {
	store := &mockActaStore{}
	svc := NewActaService(store, &mockTemplateReader{gradeMissing: true}, &stubStorage{}, nil, nil, nil, nil, nil, nil, ActaServiceConfig{})

	_, err := svc.Register(context.Background(), validCreateRequest(), pdfUpload(), adminClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	require.Empty(t, store.created)
}

func TestRegisterRejectsOversizedScan(t *testing.T) {
	svc := NewActaService(&mockActaStore{}, &mockTemplateReader{}, &stubStorage{}, nil, nil, nil, nil, nil, nil,
		ActaServiceConfig{MaxScanSize: 8})

	upload := pdfUpload()
	upload.Size = 1024
	_, err := svc.Register(context.Background(), validCreateRequest(), upload, adminClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRegisterRejectsDisallowedMime(t *testing.T) {
	svc := NewActaService(&mockActaStore{}, &mockTemplateReader{}, &stubStorage{}, nil, nil, nil, nil, nil, nil, ActaServiceConfig{})

	upload := pdfUpload()
	upload.MimeType = "application/zip"
	_, err := svc.Register(context.Background(), validCreateRequest(), upload, adminClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestChangeStateEnforcesTransitionTable(t *testing.T) {
	cases := []struct {
		name string
		from models.ActaState
		to   models.ActaState
		ok   bool
	}{
		{"assign search", models.ActaStateDisponible, models.ActaStateAsignadaBusqueda, true},
		{"search found", models.ActaStateAsignadaBusqueda, models.ActaStateEncontrada, true},
		{"search exhausted", models.ActaStateAsignadaBusqueda, models.ActaStateNoEncontrada, true},
		{"retry after miss", models.ActaStateNoEncontrada, models.ActaStateAsignadaBusqueda, true},
		{"skip search", models.ActaStateDisponible, models.ActaStateEncontrada, false},
		{"found is terminal", models.ActaStateEncontrada, models.ActaStateDisponible, false},
		{"found cannot be lost", models.ActaStateEncontrada, models.ActaStateNoEncontrada, false},
	}
	requestID := "req-9"
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &mockActaStore{acta: &models.ActaDetail{Acta: models.Acta{ID: "acta-1", Estado: tc.from}}}
			svc := NewActaService(store, &mockTemplateReader{}, &stubStorage{}, nil, nil, nil, nil, nil, nil, ActaServiceConfig{})

			_, err := svc.ChangeState(context.Background(), "acta-1",
				dto.ChangeActaStateRequest{Estado: tc.to, RequestID: &requestID}, adminClaims())
			if tc.ok {
				require.NoError(t, err)
				require.Equal(t, []models.ActaState{tc.to}, store.stateChanges)
			} else {
				require.Error(t, err)
				require.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
				require.Empty(t, store.stateChanges)
			}
		})
	}
}

func TestChangeStateAssignRequiresRequestID(t *testing.T) {
	store := &mockActaStore{acta: &models.ActaDetail{Acta: models.Acta{ID: "acta-1", Estado: models.ActaStateDisponible}}}
	svc := NewActaService(store, &mockTemplateReader{}, &stubStorage{}, nil, nil, nil, nil, nil, nil, ActaServiceConfig{})

	_, err := svc.ChangeState(context.Background(), "acta-1",
		dto.ChangeActaStateRequest{Estado: models.ActaStateAsignadaBusqueda}, adminClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestChangeStateAssignRejectsUnknownRequest(t *testing.T) {
	store := &mockActaStore{
		acta:           &models.ActaDetail{Acta: models.Acta{ID: "acta-1", Estado: models.ActaStateDisponible}},
		requestMissing: true,
	}
	svc := NewActaService(store, &mockTemplateReader{}, &stubStorage{}, nil, nil, nil, nil, nil, nil, ActaServiceConfig{})

	requestID := "req-missing"
	_, err := svc.ChangeState(context.Background(), "acta-1",
		dto.ChangeActaStateRequest{Estado: models.ActaStateAsignadaBusqueda, RequestID: &requestID}, adminClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	require.Empty(t, store.stateChanges)
}

func TestUpdateRejectsDuplicateNumero(t *testing.T) {
	store := &mockActaStore{
		acta:         &models.ActaDetail{Acta: models.Acta{ID: "acta-1", Numero: "0123", SchoolYearID: "year-1", Estado: models.ActaStateDisponible}},
		numeroExists: true,
	}
	svc := NewActaService(store, &mockTemplateReader{}, &stubStorage{}, nil, nil, nil, nil, nil, nil, ActaServiceConfig{})

	numero := "0456"
	_, err := svc.Update(context.Background(), "acta-1", dto.UpdateActaRequest{Numero: &numero}, adminClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrDuplicate.Code, appErrors.FromError(err).Code)
}

func TestExportRosterRequiresProcessedActa(t *testing.T) {
	store := &mockActaStore{acta: &models.ActaDetail{Acta: models.Acta{ID: "acta-1", Estado: models.ActaStateEncontrada}}}
	svc := NewActaService(store, &mockTemplateReader{}, &stubStorage{}, nil, nil, nil, nil, nil, nil, ActaServiceConfig{})

	_, err := svc.ExportRoster(context.Background(), "acta-1", false, adminClaims())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestExportRosterReusesExistingWorkbook(t *testing.T) {
	existing := "/files/nomina_0123.xlsx"
	store := &mockActaStore{acta: &models.ActaDetail{Acta: models.Acta{
		ID:              "acta-1",
		Estado:          models.ActaStateEncontrada,
		OCRProcessed:    true,
		OCRPayload:      []byte(`{"estudiantes":[{"numero":1,"apellidoPaterno":"QUISPE","nombres":"JUAN"}]}`),
		RosterExportURL: &existing,
	}}}
	files := &stubStorage{}
	svc := NewActaService(store, &mockTemplateReader{}, files, nil, nil, nil, nil, nil, nil, ActaServiceConfig{})

	url, err := svc.ExportRoster(context.Background(), "acta-1", false, adminClaims())
	require.NoError(t, err)
	require.Equal(t, existing, url)
	require.Empty(t, files.saved)
}
