package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ugel-puno/certificados-api/internal/dto"
	"github.com/ugel-puno/certificados-api/internal/models"
	"github.com/ugel-puno/certificados-api/internal/repository"
	appErrors "github.com/ugel-puno/certificados-api/pkg/errors"
	"github.com/ugel-puno/certificados-api/pkg/export"
	"github.com/ugel-puno/certificados-api/pkg/jobs"
)

// codeGenerationAttempts bounds the retry loop on verification code collisions.
const codeGenerationAttempts = 5

type certificateStore interface {
	CreateWithDetails(ctx context.Context, cert *models.Certificate, details []models.DetailWithNotes) error
	GetByID(ctx context.Context, id string) (*models.Certificate, error)
	FindByCode(ctx context.Context, code string) (*models.Certificate, error)
	FindByActaRow(ctx context.Context, actaID string, rowIndex int) (*models.Certificate, error)
	List(ctx context.Context, filter models.CertificateFilter) ([]models.CertificateSummary, int, error)
	ListDetails(ctx context.Context, certID string) ([]models.CertificateDetailRow, error)
	ListNotes(ctx context.Context, detailID string) ([]models.CertificateNoteRow, error)
	UpdateAverage(ctx context.Context, id string, average float64) error
	Annul(ctx context.Context, id, reason, annulledBy string, at time.Time) error
	Rectify(ctx context.Context, sourceID string, replacement *models.Certificate, annulmentReason, annulledBy string) error
}

type studentReader interface {
	GetByID(ctx context.Context, id string) (*models.Student, error)
}

type institutionReader interface {
	GetInstitution(ctx context.Context) (*models.Institution, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// DraftInput describes one certificate to consolidate from an acta roster row.
type DraftInput struct {
	StudentID      string
	ActaID         string
	OCRRowIndex    int
	SchoolYearID   string
	GradeID        string
	GradeLabel     string
	SituacionFinal string
	Notes          []models.CertificateNote
}

// CertificateServiceConfig holds emission parameters.
type CertificateServiceConfig struct {
	EmissionPlace string
}

// CertificateService manages the certificate ledger.
type CertificateService struct {
	repo          certificateStore
	students      studentReader
	institution   institutionReader
	csv           csvRenderer
	audit         auditLogger
	notifications NotificationEnqueuer
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	cfg           CertificateServiceConfig
}

// NewCertificateService constructs the service with defaults.
func NewCertificateService(repo certificateStore, students studentReader, institution institutionReader, csv csvRenderer, audit auditLogger, notifications NotificationEnqueuer, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg CertificateServiceConfig) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.EmissionPlace == "" {
		cfg.EmissionPlace = "Puno"
	}
	return &CertificateService{
		repo:          repo,
		students:      students,
		institution:   institution,
		csv:           csv,
		audit:         audit,
		notifications: notifications,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
		cfg:           cfg,
	}
}

// ComputeAverage returns the mean of gradable notes rounded to two decimals.
// Exonerated and empty notes are excluded; an empty gradable set is an error.
func ComputeAverage(notes []models.CertificateNote) (float64, error) {
	sum := 0.0
	count := 0
	for _, note := range notes {
		if note.Exonerado || note.Nota == nil {
			continue
		}
		sum += *note.Nota
		count++
	}
	if count == 0 {
		return 0, fmt.Errorf("no gradable notes")
	}
	return math.Round(sum/float64(count)*100) / 100, nil
}

// CreateDraft consolidates one roster row into a BORRADOR certificate. The
// verification code is regenerated when the unique constraint rejects it.
func (s *CertificateService) CreateDraft(ctx context.Context, in DraftInput) (*models.Certificate, error) {
	if in.StudentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is required")
	}
	// Rows with no gradable notes still consolidate; the average stays null
	// until the notes are completed and recomputed.
	var average *float64
	if avg, err := ComputeAverage(in.Notes); err == nil {
		average = &avg
	}

	detail := models.DetailWithNotes{
		Detail: models.CertificateDetail{
			SchoolYearID:   in.SchoolYearID,
			GradeID:        in.GradeID,
			SituacionFinal: optional(in.SituacionFinal),
			Orden:          1,
		},
		Notes: in.Notes,
	}

	var cert *models.Certificate
	var err error
	for attempt := 0; attempt < codeGenerationAttempts; attempt++ {
		cert = &models.Certificate{
			VerificationCode: generateVerificationCode(),
			StudentID:        in.StudentID,
			ActaID:           optional(in.ActaID),
			OCRRowIndex:      &in.OCRRowIndex,
			EmissionDate:     time.Now().UTC(),
			EmissionPlace:    s.cfg.EmissionPlace,
			GradesCompleted:  in.GradeLabel,
			GeneralAverage:   average,
			SituacionFinal:   in.SituacionFinal,
			Estado:           models.CertificateStateBorrador,
			SignatureStatus:  models.SignatureStatusNone,
			Version:          1,
		}
		details := []models.DetailWithNotes{cloneDetail(detail)}
		err = s.repo.CreateWithDetails(ctx, cert, details)
		if err == nil {
			s.metrics.RecordCertificateEvent("drafted")
			return cert, nil
		}
		if !repository.IsUniqueViolation(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create certificate")
		}
		s.logger.Warn("verification code collision, retrying",
			zap.String("code", cert.VerificationCode), zap.Int("attempt", attempt+1))
	}
	return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "could not allocate a unique verification code")
}

// Get returns one certificate.
func (s *CertificateService) Get(ctx context.Context, id string) (*models.Certificate, error) {
	cert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	return cert, nil
}

// List returns certificate summaries with pagination metadata.
func (s *CertificateService) List(ctx context.Context, filter dto.CertificateFilter) ([]models.CertificateSummary, *models.Pagination, error) {
	repoFilter := models.CertificateFilter{
		StudentID:        filter.StudentID,
		ActaID:           filter.ActaID,
		VerificationCode: filter.VerificationCode,
		Numero:           filter.Numero,
		Page:             filter.Page,
		PageSize:         filter.PageSize,
	}
	if filter.Estado != "" {
		estado := models.CertificateState(strings.ToUpper(filter.Estado))
		repoFilter.Estado = &estado
	}
	records, total, err := s.repo.List(ctx, repoFilter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	page := repoFilter.Page
	if page < 1 {
		page = 1
	}
	pageSize := repoFilter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return records, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// ExportCSV renders the filtered certificate listing for office use.
func (s *CertificateService) ExportCSV(ctx context.Context, filter dto.CertificateFilter) ([]byte, error) {
	filter.PageSize = 100
	records, _, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	dataset := export.Dataset{
		Headers: []string{"Código", "Estudiante", "DNI", "Estado", "Promedio", "Emisión"},
	}
	for _, rec := range records {
		average := ""
		if rec.GeneralAverage != nil {
			average = fmt.Sprintf("%.2f", *rec.GeneralAverage)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Código":     rec.VerificationCode,
			"Estudiante": fmt.Sprintf("%s %s %s", rec.StudentApePat, rec.StudentApeMat, rec.StudentNombres),
			"DNI":        rec.StudentDNI,
			"Estado":     string(rec.Estado),
			"Promedio":   average,
			"Emisión":    rec.EmissionDate.Format("2006-01-02"),
		})
	}
	out, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return out, nil
}

// Annul voids a certificate with a mandatory reason.
func (s *CertificateService) Annul(ctx context.Context, id string, req dto.AnnulCertificateRequest, actor *models.JWTClaims) (*models.Certificate, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleDirector {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "annulment reason is required")
	}
	cert, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cert.Estado == models.CertificateStateAnulado {
		return nil, appErrors.Clone(appErrors.ErrAnnulled, "certificate is already annulled")
	}
	if err := s.repo.Annul(ctx, id, req.Motivo, actor.UserID, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAnnulled, "certificate is already annulled")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to annul certificate")
	}

	s.emitAudit(ctx, actor, models.AuditActionCertAnnul, id, fmt.Sprintf(`{"motivo":%q}`, req.Motivo))
	s.notify("certificate.annulled", cert, map[string]string{"motivo": req.Motivo})
	s.metrics.RecordCertificateEvent("annulled")
	s.logger.Info("certificate annulled", zap.String("certificate_id", id))
	return s.Get(ctx, id)
}

// Rectify issues a corrected replacement and annuls the source in one
// transaction. The replacement keeps the student history with version + 1
// and a fresh verification code.
func (s *CertificateService) Rectify(ctx context.Context, id string, req dto.RectifyCertificateRequest, actor *models.JWTClaims) (*models.Certificate, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleDirector {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "rectification reason is required")
	}
	source, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if source.Estado == models.CertificateStateAnulado {
		return nil, appErrors.Clone(appErrors.ErrAnnulled, "an annulled certificate cannot be rectified")
	}

	annulment := "Anulado por rectificación: " + req.Motivo
	var replacement *models.Certificate
	for attempt := 0; attempt < codeGenerationAttempts; attempt++ {
		replacement = &models.Certificate{
			VerificationCode:    generateVerificationCode(),
			Numero:              source.Numero,
			StudentID:           source.StudentID,
			InstitutionID:       source.InstitutionID,
			ActaID:              source.ActaID,
			OCRRowIndex:         source.OCRRowIndex,
			EmissionDate:        time.Now().UTC(),
			EmissionPlace:       source.EmissionPlace,
			GradesCompleted:     source.GradesCompleted,
			GeneralAverage:      source.GeneralAverage,
			SituacionFinal:      source.SituacionFinal,
			Estado:              models.CertificateStateBorrador,
			SignatureStatus:     models.SignatureStatusNone,
			Version:             source.Version + 1,
			IsRectification:     true,
			PreviousCertificate: &source.ID,
			RectificationReason: &req.Motivo,
			ObsRetiros:          source.ObsRetiros,
			ObsTraslados:        source.ObsTraslados,
			ObsSiagie:           source.ObsSiagie,
			ObsPruebasUbicacion: source.ObsPruebasUbicacion,
			ObsConvalidacion:    source.ObsConvalidacion,
			ObsOtros:            source.ObsOtros,
		}
		err = s.repo.Rectify(ctx, source.ID, replacement, annulment, actor.UserID)
		if err == nil {
			break
		}
		if !repository.IsUniqueViolation(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rectify certificate")
		}
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "could not allocate a unique verification code")
	}

	s.emitAudit(ctx, actor, models.AuditActionCertRectify, source.ID,
		fmt.Sprintf(`{"motivo":%q,"replacement":%q}`, req.Motivo, replacement.ID))
	s.notify("certificate.rectified", replacement, map[string]string{"source_id": source.ID})
	s.metrics.RecordCertificateEvent("rectified")
	s.logger.Info("certificate rectified",
		zap.String("source_id", source.ID),
		zap.String("replacement_id", replacement.ID),
		zap.Int("version", replacement.Version))
	return replacement, nil
}

// RecomputeAverage reloads the notes of a certificate and stores the average.
func (s *CertificateService) RecomputeAverage(ctx context.Context, id string) (float64, error) {
	cert, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	details, err := s.repo.ListDetails(ctx, cert.ID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load details")
	}
	var notes []models.CertificateNote
	for _, detail := range details {
		rows, err := s.repo.ListNotes(ctx, detail.ID)
		if err != nil {
			return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notes")
		}
		for _, row := range rows {
			notes = append(notes, row.CertificateNote)
		}
	}
	average, err := ComputeAverage(notes)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "certificate has no gradable notes")
	}
	if err := s.repo.UpdateAverage(ctx, cert.ID, average); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store average")
	}
	return average, nil
}

// GetData assembles the consolidated aggregate used by the PDF renderer and
// the public verification response.
func (s *CertificateService) GetData(ctx context.Context, id string) (*models.CertificateData, error) {
	cert, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	student, err := s.students.GetByID(ctx, cert.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	institution, err := s.institution.GetInstitution(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institution")
	}
	details, err := s.repo.ListDetails(ctx, cert.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load details")
	}

	grados := make([]models.GradeSection, 0, len(details))
	for _, detail := range details {
		rows, err := s.repo.ListNotes(ctx, detail.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notes")
		}
		section := models.GradeSection{
			Year:        detail.Year,
			Grade:       detail.GradeName,
			GradeNumber: detail.GradeNumber,
			Level:       detail.LevelName,
		}
		if detail.SituacionFinal != nil {
			section.SituacionFinal = *detail.SituacionFinal
		}
		var notes []models.CertificateNote
		for _, row := range rows {
			section.Notas = append(section.Notas, models.AreaNote{
				Area:        row.AreaName,
				Codigo:      row.AreaCode,
				Nota:        row.Nota,
				NotaLiteral: derefString(row.NotaLiteral),
				Exonerado:   row.Exonerado,
				Orden:       row.Orden,
			})
			notes = append(notes, row.CertificateNote)
		}
		if avg, err := ComputeAverage(notes); err == nil {
			section.Promedio = avg
		}
		grados = append(grados, section)
	}

	promedio := 0.0
	if cert.GeneralAverage != nil {
		promedio = *cert.GeneralAverage
	}
	return &models.CertificateData{
		CertificateID:    cert.ID,
		VerificationCode: cert.VerificationCode,
		Numero:           derefString(cert.Numero),
		Student:          *student,
		Institution:      *institution,
		Grados:           grados,
		Promedio:         promedio,
		SituacionFinal:   cert.SituacionFinal,
		EmissionDate:     cert.EmissionDate,
		EmissionPlace:    cert.EmissionPlace,
		Observaciones: models.Observaciones{
			Retiros:          derefString(cert.ObsRetiros),
			Traslados:        derefString(cert.ObsTraslados),
			Siagie:           derefString(cert.ObsSiagie),
			PruebasUbicacion: derefString(cert.ObsPruebasUbicacion),
			Convalidacion:    derefString(cert.ObsConvalidacion),
			Otros:            derefString(cert.ObsOtros),
		},
	}, nil
}

// generateVerificationCode returns three random uppercase letters followed by
// four digits, e.g. KQZ4821.
func generateVerificationCode() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	const digits = "0123456789"
	buf := make([]byte, 7)
	if _, err := rand.Read(buf); err != nil {
		// Extremely unlikely; fall back to a time-derived code.
		ts := time.Now().UnixNano()
		return fmt.Sprintf("%c%c%c%04d",
			letters[ts%26], letters[(ts/26)%26], letters[(ts/676)%26], ts%10000)
	}
	out := make([]byte, 7)
	for i := 0; i < 3; i++ {
		out[i] = letters[int(buf[i])%len(letters)]
	}
	for i := 3; i < 7; i++ {
		out[i] = digits[int(buf[i])%len(digits)]
	}
	return string(out)
}

func cloneDetail(in models.DetailWithNotes) models.DetailWithNotes {
	out := models.DetailWithNotes{Detail: in.Detail}
	out.Detail.ID = ""
	out.Notes = make([]models.CertificateNote, len(in.Notes))
	copy(out.Notes, in.Notes)
	for i := range out.Notes {
		out.Notes[i].ID = ""
		out.Notes[i].DetailID = ""
	}
	return out
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func (s *CertificateService) notify(event string, cert *models.Certificate, extra map[string]string) {
	if s.notifications == nil {
		return
	}
	payload := map[string]string{
		"certificate_id":    cert.ID,
		"verification_code": cert.VerificationCode,
		"student_id":        cert.StudentID,
	}
	for k, v := range extra {
		payload[k] = v
	}
	job := jobs.Job{ID: cert.ID, Type: event, Payload: payload}
	if err := s.notifications.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue certificate notification", zap.Error(err), zap.String("event", event))
	}
}

func (s *CertificateService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID, newValues string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "certificate",
		ResourceID: &resourceID,
	}
	if newValues != "" {
		log.NewValues = []byte(newValues)
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to create certificate audit", zap.Error(err))
	}
}
