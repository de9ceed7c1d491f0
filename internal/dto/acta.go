package dto

import "github.com/ugel-puno/certificados-api/internal/models"

// CreateActaRequest contains metadata submitted alongside the scan upload.
type CreateActaRequest struct {
	Numero        string  `form:"numero" json:"numero" validate:"required"`
	Tipo          string  `form:"tipo" json:"tipo" validate:"required,oneof=CONSOLIDADO TRASLADO SUBSANACION RECUPERACION"`
	SchoolYearID  string  `form:"schoolYearId" json:"schoolYearId" validate:"required"`
	GradeID       string  `form:"gradeId" json:"gradeId" validate:"required"`
	Seccion       *string `form:"seccion" json:"seccion"`
	Turno         *string `form:"turno" json:"turno"`
	Observaciones string  `form:"observaciones" json:"observaciones"`
}

// UpdateActaRequest modifies the descriptive fields of a registered acta.
type UpdateActaRequest struct {
	Numero        *string `json:"numero"`
	Tipo          *string `json:"tipo" validate:"omitempty,oneof=CONSOLIDADO TRASLADO SUBSANACION RECUPERACION"`
	Seccion       *string `json:"seccion"`
	Turno         *string `json:"turno"`
	Observaciones *string `json:"observaciones"`
}

// ChangeActaStateRequest moves an acta through the physical search workflow.
type ChangeActaStateRequest struct {
	Estado        models.ActaState `json:"estado" validate:"required,oneof=DISPONIBLE ASIGNADA_BUSQUEDA ENCONTRADA NO_ENCONTRADA"`
	RequestID     *string          `json:"requestId"`
	Observaciones string           `json:"observaciones"`
}

// IngestOCRRequest submits the extracted roster of one acta.
type IngestOCRRequest struct {
	Payload models.OCRPayload `json:"payload" validate:"required"`
}

// ValidateActaRequest approves or rejects the extracted data, optionally
// with field-level corrections.
type ValidateActaRequest struct {
	Validado      *bool                      `json:"validado" validate:"required"`
	Observaciones string                     `json:"observaciones"`
	Correcciones  []models.StudentCorrection `json:"correcciones" validate:"omitempty,dive"`
}

// ActaFilter captures query parameters for acta listing.
type ActaFilter struct {
	Estado       string
	SchoolYearID string
	GradeID      string
	Processed    *bool
	RequestID    string
	Page         int
	PageSize     int
}

// IngestResultResponse reports per-student outcomes of one ingestion run.
type IngestResultResponse struct {
	Procesados int                  `json:"procesados"`
	Errores    []IngestStudentError `json:"errores"`
}

// IngestStudentError identifies a roster row that could not be consolidated.
type IngestStudentError struct {
	Estudiante string `json:"estudiante"`
	Error      string `json:"error"`
}

// ValidationResultResponse reports the verdict with applied and skipped
// corrections.
type ValidationResultResponse struct {
	Validado  bool     `json:"validado"`
	Aplicadas int      `json:"aplicadas"`
	Avisos    []string `json:"avisos,omitempty"`
}

// ActaComparisonResponse pairs stored certificate values with the OCR source.
type ActaComparisonResponse struct {
	ActaID      string                  `json:"acta_id"`
	Coinciden   bool                    `json:"coinciden"`
	Diferencias []ComparisonDiscrepancy `json:"diferencias"`
}

// ComparisonDiscrepancy is one mismatch between a certificate and its OCR row.
type ComparisonDiscrepancy struct {
	CertificateID string `json:"certificate_id"`
	Estudiante    string `json:"estudiante"`
	Campo         string `json:"campo"`
	ValorActa     string `json:"valor_acta"`
	ValorSistema  string `json:"valor_sistema"`
}
