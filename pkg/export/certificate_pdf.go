package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/ugel-puno/certificados-api/internal/models"
)

// CertificatePDF renders an official study certificate document.
type CertificatePDF struct{}

// NewCertificatePDF constructs the certificate renderer.
func NewCertificatePDF() *CertificatePDF {
	return &CertificatePDF{}
}

// Render builds the certificate PDF. The QR png is embedded in the header
// so the printed document remains verifiable.
func (e *CertificatePDF) Render(data models.CertificateData, qrPNG []byte) ([]byte, error) {
	if len(data.Grados) == 0 {
		return nil, fmt.Errorf("certificate requires at least one grade section")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 20)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	if len(qrPNG) > 0 {
		opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qrPNG))
		pdf.ImageOptions("qr", 168, 12, 28, 28, false, opts, 0, "")
	}

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 6, tr(data.Institution.Nombre), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("UGEL %s - %s", data.Institution.UGEL, data.Institution.Region)), "", 1, "C", false, 0, "")
	if data.Institution.CodigoModular != nil {
		pdf.CellFormat(0, 5, tr("Código Modular: "+*data.Institution.CodigoModular), "", 1, "C", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, tr("CERTIFICADO OFICIAL DE ESTUDIOS"), "", 1, "C", false, 0, "")
	if data.Numero != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 5, tr("N° "+data.Numero), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	intro := fmt.Sprintf(
		"El Director que suscribe certifica que %s, identificado(a) con DNI %s, cursó y aprobó los estudios que se detallan a continuación:",
		data.Student.FullName(), data.Student.DNI)
	pdf.MultiCell(0, 5, tr(intro), "", "J", false)
	pdf.Ln(4)

	for _, grado := range data.Grados {
		e.renderGradeSection(pdf, tr, grado)
	}

	e.renderObservaciones(pdf, tr, data.Observaciones)

	if pdf.GetY() > 230 {
		pdf.AddPage()
	}
	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("PROMEDIO GENERAL: %.2f", data.Promedio)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr("SITUACIÓN FINAL: "+data.SituacionFinal), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	emitted := fmt.Sprintf("%s, %s", data.EmissionPlace, data.EmissionDate.Format("02/01/2006"))
	pdf.CellFormat(0, 6, tr(emitted), "", 1, "R", false, 0, "")
	pdf.Ln(18)

	pdf.CellFormat(0, 5, "_______________________________", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(0, 5, tr("DIRECTOR(A)"), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 4, tr("Código de verificación: "+data.VerificationCode), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 4, tr("Verifique la autenticidad de este documento escaneando el código QR."), "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *CertificatePDF) renderGradeSection(pdf *gofpdf.Fpdf, tr func(string) string, grado models.GradeSection) {
	// Keep the section header together with at least a few rows.
	if pdf.GetY() > 230 {
		pdf.AddPage()
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(217, 225, 242)
	label := fmt.Sprintf("%s - %s (%d)", grado.Grade, grado.Level, grado.Year)
	pdf.CellFormat(180, 7, tr(label), "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(130, 6, tr("Área Curricular"), "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, tr("Nota"), "1", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, nota := range grado.Notas {
		if pdf.GetY() > 265 {
			pdf.AddPage()
		}
		pdf.CellFormat(130, 6, tr(nota.Area), "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, tr(formatNota(nota)), "1", 1, "C", false, 0, "")
	}

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(130, 6, tr("Promedio"), "1", 0, "R", false, 0, "")
	pdf.CellFormat(50, 6, fmt.Sprintf("%.2f", grado.Promedio), "1", 1, "C", false, 0, "")
	if grado.SituacionFinal != "" {
		pdf.SetFont("Arial", "", 8)
		pdf.CellFormat(180, 5, tr("Situación: "+grado.SituacionFinal), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func (e *CertificatePDF) renderObservaciones(pdf *gofpdf.Fpdf, tr func(string) string, obs models.Observaciones) {
	lines := []struct{ label, value string }{
		{"Retiros", obs.Retiros},
		{"Traslados", obs.Traslados},
		{"SIAGIE", obs.Siagie},
		{"Pruebas de ubicación", obs.PruebasUbicacion},
		{"Convalidación", obs.Convalidacion},
		{"Otros", obs.Otros},
	}
	any := false
	for _, l := range lines {
		if l.value != "" {
			any = true
			break
		}
	}
	if !any {
		return
	}
	if pdf.GetY() > 240 {
		pdf.AddPage()
	}
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, tr("OBSERVACIONES"), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, l := range lines {
		if l.value == "" {
			continue
		}
		pdf.MultiCell(0, 5, tr(fmt.Sprintf("%s: %s", l.label, l.value)), "", "L", false)
	}
	pdf.Ln(2)
}

func formatNota(n models.AreaNote) string {
	if n.Exonerado {
		return "EXONERADO"
	}
	if n.Nota != nil {
		return fmt.Sprintf("%.0f", *n.Nota)
	}
	if n.NotaLiteral != "" {
		return n.NotaLiteral
	}
	return "-"
}
