package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ugel-puno/certificados-api/internal/models"
)

func sampleCertificateData() models.CertificateData {
	nota := 15.0
	return models.CertificateData{
		CertificateID:    "cert-1",
		VerificationCode: "ABC1234",
		Student: models.Student{
			DNI:             "41234567",
			ApellidoPaterno: "QUISPE",
			ApellidoMaterno: "MAMANI",
			Nombres:         "JUAN CARLOS",
		},
		Institution: models.Institution{
			Nombre: "I.E. GRAN UNIDAD SAN CARLOS",
			UGEL:   "Puno",
			Region: "Puno",
		},
		Grados: []models.GradeSection{
			{
				Year:        1998,
				Grade:       "Primer Grado",
				GradeNumber: 1,
				Level:       "Secundaria",
				Notas: []models.AreaNote{
					{Area: "Matemática", Nota: &nota, Orden: 1},
					{Area: "Comunicación", Nota: &nota, Orden: 2},
					{Area: "Educación Física", Exonerado: true, Orden: 3},
				},
				Promedio: 15.0,
			},
		},
		Promedio:       15.0,
		SituacionFinal: "APROBADO",
		EmissionDate:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		EmissionPlace:  "Puno",
	}
}

func TestCertificatePDFRender(t *testing.T) {
	data := sampleCertificateData()

	out, err := NewCertificatePDF().Render(data, nil)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.Greater(t, len(out), 1000)
}

func TestCertificatePDFRenderRequiresGrades(t *testing.T) {
	data := sampleCertificateData()
	data.Grados = nil

	_, err := NewCertificatePDF().Render(data, nil)
	assert.Error(t, err)
}

func TestCertificatePDFRenderDeterministicInput(t *testing.T) {
	data := sampleCertificateData()

	first, err := NewCertificatePDF().Render(data, nil)
	require.NoError(t, err)
	second, err := NewCertificatePDF().Render(data, nil)
	require.NoError(t, err)
	assert.Equal(t, len(first), len(second))
}
