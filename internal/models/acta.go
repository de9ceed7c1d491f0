package models

import (
	"encoding/json"
	"time"
)

// ActaState represents the physical-search lifecycle of an acta.
type ActaState string

const (
	ActaStateDisponible       ActaState = "DISPONIBLE"
	ActaStateAsignadaBusqueda ActaState = "ASIGNADA_BUSQUEDA"
	ActaStateEncontrada       ActaState = "ENCONTRADA"
	ActaStateNoEncontrada     ActaState = "NO_ENCONTRADA"
)

// ActaTransitions is the allowed-transition table for the search state
// machine. ENCONTRADA is terminal for the search phase; OCR ingestion and
// validation continue independently of the acta state.
var ActaTransitions = map[ActaState][]ActaState{
	ActaStateDisponible:       {ActaStateAsignadaBusqueda},
	ActaStateAsignadaBusqueda: {ActaStateEncontrada, ActaStateNoEncontrada},
	ActaStateEncontrada:       {},
	ActaStateNoEncontrada:     {ActaStateAsignadaBusqueda},
}

// CanTransition reports whether moving from one acta state to another is allowed.
func CanTransition(from, to ActaState) bool {
	for _, allowed := range ActaTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ActaType classifies the kind of physical grade record.
type ActaType string

const (
	ActaTypeConsolidado  ActaType = "CONSOLIDADO"
	ActaTypeTraslado     ActaType = "TRASLADO"
	ActaTypeSubsanacion  ActaType = "SUBSANACION"
	ActaTypeRecuperacion ActaType = "RECUPERACION"
)

// Acta is a registered physical grade-record document.
type Acta struct {
	ID               string          `db:"id" json:"id"`
	Numero           string          `db:"numero" json:"numero"`
	Tipo             ActaType        `db:"tipo" json:"tipo"`
	SchoolYearID     string          `db:"school_year_id" json:"school_year_id"`
	GradeID          string          `db:"grade_id" json:"grade_id"`
	Seccion          *string         `db:"seccion" json:"seccion,omitempty"`
	Turno            *string         `db:"turno" json:"turno,omitempty"`
	RequestID        *string         `db:"request_id" json:"request_id,omitempty"`
	ScanFilename     string          `db:"scan_filename" json:"scan_filename"`
	ScanURL          string          `db:"scan_url" json:"scan_url"`
	ScanHash         string          `db:"scan_hash" json:"scan_hash"`
	Estado           ActaState       `db:"estado" json:"estado"`
	OCRProcessed     bool            `db:"ocr_processed" json:"ocr_processed"`
	OCRPayload       json.RawMessage `db:"ocr_payload" json:"ocr_payload,omitempty"`
	ProcessedAt      *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	RosterExportURL  *string         `db:"roster_export_url" json:"roster_export_url,omitempty"`
	RosterExportedAt *time.Time      `db:"roster_exported_at" json:"roster_exported_at,omitempty"`
	Observaciones    string          `db:"observaciones" json:"observaciones"`
	UploadedBy       string          `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// ActaDetail joins an acta with its school year and grade labels.
type ActaDetail struct {
	Acta
	Year        int    `db:"year" json:"year"`
	GradeName   string `db:"grade_name" json:"grade_name"`
	GradeNumber int    `db:"grade_number" json:"grade_number"`
}

// ActaFilter captures list filters for actas.
type ActaFilter struct {
	Estado       *ActaState
	SchoolYearID string
	GradeID      string
	Processed    *bool
	RequestID    string
	Page         int
	PageSize     int
}

// OCRStudent is one extracted roster row from the external OCR step.
type OCRStudent struct {
	Numero          int                `json:"numero"`
	DNI             string             `json:"dni,omitempty"`
	ApellidoPaterno string             `json:"apellido_paterno" validate:"required"`
	ApellidoMaterno string             `json:"apellido_materno"`
	Nombres         string             `json:"nombres" validate:"required"`
	Sexo            string             `json:"sexo,omitempty"`
	FechaNacimiento string             `json:"fecha_nacimiento,omitempty"`
	Notas           map[string]float64 `json:"notas"`
	SituacionFinal  string             `json:"situacion_final,omitempty"`
}

// OCRPayload is the full extracted dataset for one acta.
type OCRPayload struct {
	Estudiantes []OCRStudent `json:"estudiantes" validate:"required,min=1,dive"`
	Metadata    *OCRMetadata `json:"metadata,omitempty"`
}

// OCRMetadata carries provenance details reported by the OCR step.
type OCRMetadata struct {
	ProcessedAt string  `json:"processed_at,omitempty"`
	Algorithm   string  `json:"algorithm,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// StudentCorrection is one field-level fix applied during manual validation.
type StudentCorrection struct {
	StudentID string `json:"student_id" validate:"required"`
	Field     string `json:"field" validate:"required,oneof=apellidoPaterno apellidoMaterno nombres dni"`
	OldValue  string `json:"old_value"`
	NewValue  string `json:"new_value" validate:"required"`
}
