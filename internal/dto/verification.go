package dto

import (
	"time"

	"github.com/ugel-puno/certificados-api/internal/models"
)

// VerificationResponse is the public answer for a certificate lookup.
type VerificationResponse struct {
	Valid           bool                    `json:"valid"`
	Annulled        bool                    `json:"annulled,omitempty"`
	Codigo          string                  `json:"codigo"`
	Estado          models.CertificateState `json:"estado,omitempty"`
	Estudiante      string                  `json:"estudiante,omitempty"`
	DNI             string                  `json:"dni,omitempty"`
	Grados          []models.GradeSection   `json:"grados,omitempty"`
	Promedio        float64                 `json:"promedio,omitempty"`
	SituacionFinal  string                  `json:"situacion_final,omitempty"`
	FechaEmision    *time.Time              `json:"fecha_emision,omitempty"`
	MotivoAnulacion string                  `json:"motivo_anulacion,omitempty"`
}
