package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ugel-puno/certificados-api/internal/dto"
	"github.com/ugel-puno/certificados-api/internal/models"
	appErrors "github.com/ugel-puno/certificados-api/pkg/errors"
	"github.com/ugel-puno/certificados-api/pkg/export"
	"github.com/ugel-puno/certificados-api/pkg/jobs"
	"github.com/ugel-puno/certificados-api/pkg/storage"
)

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type actaStore interface {
	Create(ctx context.Context, acta *models.Acta) error
	GetByID(ctx context.Context, id string) (*models.ActaDetail, error)
	List(ctx context.Context, filter models.ActaFilter) ([]models.ActaDetail, int, error)
	Update(ctx context.Context, acta *models.Acta) error
	UpdateState(ctx context.Context, id string, estado models.ActaState, requestID *string, observaciones string) error
	ExistsByHash(ctx context.Context, hash string) (bool, error)
	ExistsByNumeroYear(ctx context.Context, numero, schoolYearID string) (bool, error)
	RequestExists(ctx context.Context, id string) (bool, error)
	SetRosterExport(ctx context.Context, id, url string, exportedAt time.Time) error
}

type templateReader interface {
	GetTemplate(ctx context.Context, year, gradeNumber int) ([]models.TemplateArea, error)
}

type academicReader interface {
	templateReader
	GetSchoolYear(ctx context.Context, id string) (*models.SchoolYear, error)
	GetGrade(ctx context.Context, id string) (*models.Grade, error)
}

type actaFileStorage interface {
	SaveStreamWithHash(filename string, r io.Reader) (*storage.StoredFile, error)
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	URL(filename string) string
}

type scanURLSigner interface {
	Generate(id, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (id, relPath string, expiresAt time.Time, err error)
}

type rosterRenderer interface {
	Render(in export.RosterInput) ([]byte, error)
}

// ActaUpload carries the scan stream and its metadata.
type ActaUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// ActaScanDownload bundles the scan file for streaming.
type ActaScanDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
	ExpiresAt time.Time
}

// ActaServiceConfig holds upload limits and URL parameters.
type ActaServiceConfig struct {
	MaxScanSize  int64
	AllowedMIMEs []string
	APIPrefix    string
}

// ActaService manages the physical acta registry and its search workflow.
type ActaService struct {
	repo          actaStore
	academic      academicReader
	storage       actaFileStorage
	signer        scanURLSigner
	roster        rosterRenderer
	audit         auditLogger
	notifications NotificationEnqueuer
	validator     *validator.Validate
	logger        *zap.Logger
	cfg           ActaServiceConfig
	mimeSet       map[string]struct{}
}

// NewActaService constructs the service with defaults.
func NewActaService(repo actaStore, academic academicReader, store actaFileStorage, signer scanURLSigner, roster rosterRenderer, audit auditLogger, notifications NotificationEnqueuer, validate *validator.Validate, logger *zap.Logger, cfg ActaServiceConfig) *ActaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.MaxScanSize <= 0 {
		cfg.MaxScanSize = 20 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"application/pdf", "image/jpeg", "image/png", "image/tiff"}
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &ActaService{
		repo:          repo,
		academic:      academic,
		storage:       store,
		signer:        signer,
		roster:        roster,
		audit:         audit,
		notifications: notifications,
		validator:     validate,
		logger:        logger,
		cfg:           cfg,
		mimeSet:       mimeSet,
	}
}

// Register stores the scan and creates the acta in DISPONIBLE state. The scan
// content hash and the (numero, year) pair both deduplicate registrations.
func (s *ActaService) Register(ctx context.Context, req dto.CreateActaRequest, upload ActaUpload, actor *models.JWTClaims) (*models.Acta, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid acta payload")
	}
	if upload.Content == nil || upload.Size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "scan file is required")
	}
	if upload.Size > s.cfg.MaxScanSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("scan exceeds %d bytes limit", s.cfg.MaxScanSize))
	}
	mimeType, err := s.detectMime(upload)
	if err != nil {
		return nil, err
	}
	if _, allowed := s.mimeSet[strings.ToLower(mimeType)]; !allowed {
		return nil, appErrors.Clone(appErrors.ErrValidation, "scan mime type not allowed")
	}

	if _, err := s.academic.GetSchoolYear(ctx, req.SchoolYearID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "school year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check school year")
	}
	if _, err := s.academic.GetGrade(ctx, req.GradeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "grade not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check grade")
	}

	exists, err := s.repo.ExistsByNumeroYear(ctx, req.Numero, req.SchoolYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check acta number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicate, "acta number already registered for the school year")
	}

	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	filename := s.scanFilename(req.Numero, upload.Filename, mimeType)
	stored, err := s.storage.SaveStreamWithHash(filename, upload.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist scan")
	}

	duplicate, err := s.repo.ExistsByHash(ctx, stored.Hash)
	if err != nil {
		_ = s.storage.Delete(stored.Filename)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check scan hash")
	}
	if duplicate {
		_ = s.storage.Delete(stored.Filename)
		return nil, appErrors.Clone(appErrors.ErrDuplicate, "an acta with the same scan content already exists")
	}

	acta := &models.Acta{
		Numero:        req.Numero,
		Tipo:          models.ActaType(req.Tipo),
		SchoolYearID:  req.SchoolYearID,
		GradeID:       req.GradeID,
		Seccion:       req.Seccion,
		Turno:         req.Turno,
		ScanFilename:  stored.Filename,
		ScanURL:       stored.URL,
		ScanHash:      stored.Hash,
		Estado:        models.ActaStateDisponible,
		Observaciones: req.Observaciones,
		UploadedBy:    actor.UserID,
	}
	if err := s.repo.Create(ctx, acta); err != nil {
		_ = s.storage.Delete(stored.Filename)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create acta")
	}

	s.emitAudit(ctx, actor, models.AuditActionActaRegister, acta.ID,
		fmt.Sprintf(`{"numero":%q,"tipo":%q}`, acta.Numero, acta.Tipo))
	s.logger.Info("acta registered",
		zap.String("acta_id", acta.ID),
		zap.String("numero", acta.Numero),
		zap.String("tipo", string(acta.Tipo)))
	return acta, nil
}

// Get returns one acta with its labels.
func (s *ActaService) Get(ctx context.Context, id string) (*models.ActaDetail, error) {
	acta, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "acta not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load acta")
	}
	return acta, nil
}

// List returns actas with pagination metadata.
func (s *ActaService) List(ctx context.Context, filter dto.ActaFilter) ([]models.ActaDetail, *models.Pagination, error) {
	repoFilter := models.ActaFilter{
		SchoolYearID: filter.SchoolYearID,
		GradeID:      filter.GradeID,
		Processed:    filter.Processed,
		RequestID:    filter.RequestID,
		Page:         filter.Page,
		PageSize:     filter.PageSize,
	}
	if filter.Estado != "" {
		estado := models.ActaState(strings.ToUpper(filter.Estado))
		repoFilter.Estado = &estado
	}
	records, total, err := s.repo.List(ctx, repoFilter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list actas")
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

// Update modifies descriptive fields of an acta.
func (s *ActaService) Update(ctx context.Context, id string, req dto.UpdateActaRequest, actor *models.JWTClaims) (*models.ActaDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid acta payload")
	}
	acta, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Numero != nil && *req.Numero != "" && *req.Numero != acta.Numero {
		exists, err := s.repo.ExistsByNumeroYear(ctx, *req.Numero, acta.SchoolYearID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check acta number")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrDuplicate, "acta number already registered for the school year")
		}
		acta.Numero = *req.Numero
	}
	if req.Tipo != nil && *req.Tipo != "" {
		acta.Tipo = models.ActaType(*req.Tipo)
	}
	if req.Seccion != nil {
		acta.Seccion = req.Seccion
	}
	if req.Turno != nil {
		acta.Turno = req.Turno
	}
	if req.Observaciones != nil {
		acta.Observaciones = *req.Observaciones
	}
	if err := s.repo.Update(ctx, &acta.Acta); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update acta")
	}
	return acta, nil
}

// ChangeState moves the acta through the search workflow enforcing the
// transition table.
func (s *ActaService) ChangeState(ctx context.Context, id string, req dto.ChangeActaStateRequest, actor *models.JWTClaims) (*models.ActaDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid state payload")
	}
	acta, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(acta.Estado, req.Estado) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot move acta from %s to %s", acta.Estado, req.Estado))
	}
	if req.Estado == models.ActaStateAsignadaBusqueda {
		if req.RequestID == nil || *req.RequestID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "requestId is required to assign a search")
		}
		exists, err := s.repo.RequestExists(ctx, *req.RequestID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check request")
		}
		if !exists {
			return nil, appErrors.Clone(appErrors.ErrValidation, "request not found")
		}
	}
	if err := s.repo.UpdateState(ctx, id, req.Estado, req.RequestID, req.Observaciones); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "acta not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update acta state")
	}

	s.emitAudit(ctx, actor, models.AuditActionActaStateChange, id,
		fmt.Sprintf(`{"from":%q,"to":%q}`, acta.Estado, req.Estado))
	s.notifyStateChange(id, acta.Estado, req.Estado)
	s.logger.Info("acta state changed",
		zap.String("acta_id", id),
		zap.String("from", string(acta.Estado)),
		zap.String("to", string(req.Estado)))
	return s.Get(ctx, id)
}

// ExportRoster generates the xlsx roster for a validated acta. The workbook
// is generated once and reused afterwards unless force is set.
func (s *ActaService) ExportRoster(ctx context.Context, id string, force bool, actor *models.JWTClaims) (string, error) {
	if actor == nil {
		return "", appErrors.ErrUnauthorized
	}
	acta, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !acta.OCRProcessed || len(acta.OCRPayload) == 0 {
		return "", appErrors.Clone(appErrors.ErrPreconditionFailed, "acta has no processed roster to export")
	}
	if acta.RosterExportURL != nil && !force {
		return *acta.RosterExportURL, nil
	}

	var payload models.OCRPayload
	if err := json.Unmarshal(acta.OCRPayload, &payload); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored roster payload is unreadable")
	}
	areas, err := s.academic.GetTemplate(ctx, acta.Year, acta.GradeNumber)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum template")
	}

	workbook, err := s.roster.Render(export.RosterInput{Acta: *acta, Students: payload.Estudiantes, Areas: areas})
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster workbook")
	}
	filename := fmt.Sprintf("nomina_%s.xlsx", strings.ReplaceAll(acta.Numero, "/", "-"))
	if _, err := s.storage.Save(filename, workbook); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist roster workbook")
	}
	url := s.storage.URL(filename)
	if err := s.repo.SetRosterExport(ctx, id, url, time.Now().UTC()); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record roster export")
	}

	s.emitAudit(ctx, actor, models.AuditActionActaExport, id, "")
	return url, nil
}

// GetScanDownloadURL generates a signed URL for downloading the scan.
func (s *ActaService) GetScanDownloadURL(ctx context.Context, id string, actor *models.JWTClaims) (string, error) {
	if actor == nil {
		return "", appErrors.ErrUnauthorized
	}
	acta, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	token, _, err := s.signer.Generate(acta.ID, acta.ScanFilename)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate download token")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return fmt.Sprintf("%s/actas/%s/scan?token=%s", base, acta.ID, token), nil
}

// DownloadScan validates the token and opens the scan file.
func (s *ActaService) DownloadScan(ctx context.Context, id, token string) (*ActaScanDownload, error) {
	acta, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	actaID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	if actaID != acta.ID || relPath != acta.ScanFilename {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open scan file")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read scan metadata")
	}
	return &ActaScanDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		MimeType:  scanMime(relPath),
		SizeBytes: info.Size(),
		ExpiresAt: expiresAt,
	}, nil
}

func (s *ActaService) detectMime(upload ActaUpload) (string, error) {
	if upload.MimeType != "" {
		return upload.MimeType, nil
	}
	header := make([]byte, 512)
	n, err := upload.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect scan")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	if n == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "empty scan file")
	}
	return http.DetectContentType(header[:n]), nil
}

func (s *ActaService) scanFilename(numero, original, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" {
		switch strings.ToLower(mimeType) {
		case "application/pdf":
			ext = ".pdf"
		case "image/jpeg":
			ext = ".jpg"
		case "image/png":
			ext = ".png"
		case "image/tiff":
			ext = ".tiff"
		default:
			ext = ".bin"
		}
	}
	clean := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, numero)
	return fmt.Sprintf("acta_%s_%d%s", clean, time.Now().Unix(), ext)
}

func scanMime(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".tiff", ".tif":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}

func (s *ActaService) notifyStateChange(id string, from, to models.ActaState) {
	if s.notifications == nil {
		return
	}
	job := jobs.Job{
		ID:   id,
		Type: "acta.state_changed",
		Payload: map[string]string{
			"acta_id": id,
			"from":    string(from),
			"to":      string(to),
		},
	}
	if err := s.notifications.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue acta state notification", zap.Error(err))
	}
}

func (s *ActaService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID, newValues string) {
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
		s.logger.Warn("failed to create acta audit", zap.Error(err))
	}
}
