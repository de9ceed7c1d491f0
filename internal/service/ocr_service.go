package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ugel-puno/certificados-api/internal/dto"
	"github.com/ugel-puno/certificados-api/internal/models"
	appErrors "github.com/ugel-puno/certificados-api/pkg/errors"
)

type ocrActaStore interface {
	GetByID(ctx context.Context, id string) (*models.ActaDetail, error)
	SetOCRPayload(ctx context.Context, id string, payload json.RawMessage, processedAt time.Time) error
	AppendObservation(ctx context.Context, id, note string) error
}

type ocrStudentStore interface {
	FindByDNI(ctx context.Context, dni string) (*models.Student, error)
	GetByID(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	UpdateField(ctx context.Context, id, field, value string) error
	AppendObservation(ctx context.Context, id, note string) error
}

type draftCreator interface {
	CreateDraft(ctx context.Context, in DraftInput) (*models.Certificate, error)
}

type certificateRowFinder interface {
	FindByActaRow(ctx context.Context, actaID string, rowIndex int) (*models.Certificate, error)
}

// OCRService reconciles extracted roster data against the curriculum and
// consolidates it into draft certificates.
type OCRService struct {
	actas     ocrActaStore
	students  ocrStudentStore
	drafts    draftCreator
	certs     certificateRowFinder
	templates templateReader
	audit     auditLogger
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewOCRService constructs the service with defaults.
func NewOCRService(actas ocrActaStore, students ocrStudentStore, drafts draftCreator, certs certificateRowFinder, templates templateReader, audit auditLogger, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *OCRService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &OCRService{
		actas:     actas,
		students:  students,
		drafts:    drafts,
		certs:     certs,
		templates: templates,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Ingest processes the extracted roster of one acta. Rows are consolidated
// sequentially and independently: a failing row is reported by student name
// while the rest of the roster proceeds. A missing curriculum template fails
// the whole ingestion before any row is touched.
func (s *OCRService) Ingest(ctx context.Context, actaID string, req dto.IngestOCRRequest, actor *models.JWTClaims) (*dto.IngestResultResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req.Payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid roster payload")
	}
	acta, err := s.loadActa(ctx, actaID)
	if err != nil {
		return nil, err
	}
	if acta.Estado != models.ActaStateEncontrada {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "acta must be ENCONTRADA before ingestion")
	}
	if acta.OCRProcessed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "acta roster was already ingested")
	}

	template, err := s.templates.GetTemplate(ctx, acta.Year, acta.GradeNumber)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum template")
	}
	if len(template) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("no curriculum template configured for year %d grade %d", acta.Year, acta.GradeNumber))
	}

	result := &dto.IngestResultResponse{}
	for idx, row := range req.Payload.Estudiantes {
		if err := s.consolidateRow(ctx, acta, template, idx, row); err != nil {
			result.Errores = append(result.Errores, dto.IngestStudentError{
				Estudiante: rowName(row),
				Error:      err.Error(),
			})
			s.metrics.RecordRosterRow("failed")
			s.logger.Warn("roster row failed",
				zap.String("acta_id", actaID),
				zap.Int("row", idx),
				zap.String("student", rowName(row)),
				zap.Error(err))
			continue
		}
		s.metrics.RecordRosterRow("processed")
		result.Procesados++
	}

	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to serialize roster payload")
	}
	if err := s.actas.SetOCRPayload(ctx, actaID, payload, time.Now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record roster payload")
	}

	s.emitAudit(ctx, actor, models.AuditActionActaIngestOCR, actaID,
		fmt.Sprintf(`{"procesados":%d,"errores":%d}`, result.Procesados, len(result.Errores)))
	s.logger.Info("roster ingested",
		zap.String("acta_id", actaID),
		zap.Int("processed", result.Procesados),
		zap.Int("failed", len(result.Errores)))
	return result, nil
}

func (s *OCRService) consolidateRow(ctx context.Context, acta *models.ActaDetail, template []models.TemplateArea, idx int, row models.OCRStudent) error {
	student, err := s.resolveStudent(ctx, idx, row)
	if err != nil {
		return err
	}
	notes := make([]models.CertificateNote, 0, len(template))
	for order, area := range template {
		note := models.CertificateNote{AreaID: area.AreaID, Orden: order + 1}
		// Extracted payloads key notes by area code or by area name.
		value, ok := row.Notas[area.Code]
		if !ok {
			value, ok = row.Notas[area.Name]
		}
		if ok {
			v := value
			note.Nota = &v
		}
		notes = append(notes, note)
	}
	_, err = s.drafts.CreateDraft(ctx, DraftInput{
		StudentID:      student.ID,
		ActaID:         acta.ID,
		OCRRowIndex:    idx,
		SchoolYearID:   acta.SchoolYearID,
		GradeID:        acta.GradeID,
		GradeLabel:     fmt.Sprintf("%s (%d)", acta.GradeName, acta.Year),
		SituacionFinal: row.SituacionFinal,
		Notes:          notes,
	})
	return err
}

// resolveStudent finds the student by DNI or creates a new record. Rows
// without a DNI get a synthetic TEMP number to be fixed during validation.
func (s *OCRService) resolveStudent(ctx context.Context, idx int, row models.OCRStudent) (*models.Student, error) {
	dni := row.DNI
	if dni == "" {
		dni = fmt.Sprintf("%s-%d-%d", models.TempDNIPrefix, time.Now().Unix(), idx)
	} else {
		student, err := s.students.FindByDNI(ctx, dni)
		if err == nil {
			return student, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}
	student := &models.Student{
		DNI:             dni,
		ApellidoPaterno: row.ApellidoPaterno,
		ApellidoMaterno: row.ApellidoMaterno,
		Nombres:         row.Nombres,
	}
	if row.Sexo != "" {
		student.Sexo = &row.Sexo
	}
	if row.FechaNacimiento != "" {
		if born, err := time.Parse("2006-01-02", row.FechaNacimiento); err == nil {
			student.FechaNacimiento = &born
		}
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, err
	}
	return student, nil
}

// Validate approves or rejects the extracted data, applying field-level
// corrections. Corrections pointing at unknown students are skipped with a
// warning. The verdict is appended to the acta's observation log.
func (s *OCRService) Validate(ctx context.Context, actaID string, req dto.ValidateActaRequest, actor *models.JWTClaims) (*dto.ValidationResultResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid validation payload")
	}
	acta, err := s.loadActa(ctx, actaID)
	if err != nil {
		return nil, err
	}
	if !acta.OCRProcessed {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "acta roster has not been ingested")
	}

	result := &dto.ValidationResultResponse{Validado: *req.Validado}
	for _, correction := range req.Correcciones {
		if err := s.students.UpdateField(ctx, correction.StudentID, correction.Field, correction.NewValue); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				result.Avisos = append(result.Avisos,
					fmt.Sprintf("estudiante %s no encontrado, corrección omitida", correction.StudentID))
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply correction")
		}
		note := fmt.Sprintf("Campo %s corregido de %q a %q en validación del acta %s",
			correction.Field, correction.OldValue, correction.NewValue, acta.Numero)
		if err := s.students.AppendObservation(ctx, correction.StudentID, note); err != nil {
			s.logger.Warn("failed to append correction note", zap.Error(err))
		}
		result.Aplicadas++
	}

	if err := s.actas.AppendObservation(ctx, actaID, validationVerdict(req, result.Aplicadas)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record validation verdict")
	}

	s.emitAudit(ctx, actor, models.AuditActionActaValidate, actaID,
		fmt.Sprintf(`{"validado":%t,"aplicadas":%d,"avisos":%d}`, result.Validado, result.Aplicadas, len(result.Avisos)))
	return result, nil
}

// validationVerdict renders the observation-log entry for one validation run.
func validationVerdict(req dto.ValidateActaRequest, applied int) string {
	verdict := "APROBADA"
	if !*req.Validado {
		verdict = "RECHAZADA"
	}
	label := "VALIDACIÓN MANUAL"
	detail := req.Observaciones
	if applied > 0 {
		label = "VALIDACIÓN CON CORRECCIONES"
		lines := make([]string, 0, len(req.Correcciones))
		for _, c := range req.Correcciones {
			lines = append(lines, fmt.Sprintf("- %s: %q a %q", c.Field, c.OldValue, c.NewValue))
		}
		detail = fmt.Sprintf("%s\n\nCORRECCIONES APLICADAS:\n%s", detail, strings.Join(lines, "\n"))
	}
	return fmt.Sprintf("[%s] %s (%s): %s",
		time.Now().UTC().Format("2006-01-02 15:04"), label, verdict, detail)
}

// Compare contrasts the consolidated certificates with the stored roster
// payload and reports discrepancies.
func (s *OCRService) Compare(ctx context.Context, actaID string) (*dto.ActaComparisonResponse, error) {
	acta, err := s.loadActa(ctx, actaID)
	if err != nil {
		return nil, err
	}
	if !acta.OCRProcessed || len(acta.OCRPayload) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "acta roster has not been ingested")
	}
	var payload models.OCRPayload
	if err := json.Unmarshal(acta.OCRPayload, &payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored roster payload is unreadable")
	}

	result := &dto.ActaComparisonResponse{ActaID: actaID}
	for idx, row := range payload.Estudiantes {
		cert, err := s.certs.FindByActaRow(ctx, actaID, idx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				result.Diferencias = append(result.Diferencias, dto.ComparisonDiscrepancy{
					Estudiante:   rowName(row),
					Campo:        "certificado",
					ValorActa:    "presente",
					ValorSistema: "ausente",
				})
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
		}
		result.Diferencias = append(result.Diferencias, compareRow(cert, row)...)
	}
	result.Coinciden = len(result.Diferencias) == 0
	return result, nil
}

func compareRow(cert *models.Certificate, row models.OCRStudent) []dto.ComparisonDiscrepancy {
	var diffs []dto.ComparisonDiscrepancy
	if row.SituacionFinal != "" && cert.SituacionFinal != row.SituacionFinal {
		diffs = append(diffs, dto.ComparisonDiscrepancy{
			CertificateID: cert.ID,
			Estudiante:    rowName(row),
			Campo:         "situacion_final",
			ValorActa:     row.SituacionFinal,
			ValorSistema:  cert.SituacionFinal,
		})
	}
	if cert.GeneralAverage != nil && len(row.Notas) > 0 {
		sum := 0.0
		for _, nota := range row.Notas {
			sum += nota
		}
		expected := sum / float64(len(row.Notas))
		if diff := expected - *cert.GeneralAverage; diff > 0.01 || diff < -0.01 {
			diffs = append(diffs, dto.ComparisonDiscrepancy{
				CertificateID: cert.ID,
				Estudiante:    rowName(row),
				Campo:         "promedio",
				ValorActa:     fmt.Sprintf("%.2f", expected),
				ValorSistema:  fmt.Sprintf("%.2f", *cert.GeneralAverage),
			})
		}
	}
	return diffs
}

func (s *OCRService) loadActa(ctx context.Context, id string) (*models.ActaDetail, error) {
	acta, err := s.actas.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "acta not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load acta")
	}
	return acta, nil
}

func rowName(row models.OCRStudent) string {
	name := row.ApellidoPaterno
	if row.ApellidoMaterno != "" {
		name += " " + row.ApellidoMaterno
	}
	return name + " " + row.Nombres
}

func (s *OCRService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID, newValues string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "acta",
		ResourceID: &resourceID,
	}
	if newValues != "" {
		log.NewValues = []byte(newValues)
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to create ocr audit", zap.Error(err))
	}
}
