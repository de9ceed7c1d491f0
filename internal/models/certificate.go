package models

import "time"

// CertificateState represents the certificate lifecycle.
type CertificateState string

const (
	CertificateStateBorrador CertificateState = "BORRADOR"
	CertificateStateEmitido  CertificateState = "EMITIDO"
	CertificateStateAnulado  CertificateState = "ANULADO"
)

// SignatureStatus replaces the legacy free-text sentinel with an explicit
// enumerated signature workflow state.
type SignatureStatus string

const (
	SignatureStatusNone               SignatureStatus = "NINGUNA"
	SignatureStatusRequiresManuscript SignatureStatus = "REQUIERE_MANUSCRITA"
	SignatureStatusManuscriptSigned   SignatureStatus = "FIRMADA_MANUSCRITA"
)

// Certificate is an issued (or draft) study certificate reconstructed from actas.
type Certificate struct {
	ID                  string           `db:"id" json:"id"`
	VerificationCode    string           `db:"verification_code" json:"verification_code"`
	Numero              *string          `db:"numero" json:"numero,omitempty"`
	StudentID           string           `db:"student_id" json:"student_id"`
	InstitutionID       *string          `db:"institution_id" json:"institution_id,omitempty"`
	ActaID              *string          `db:"acta_id" json:"acta_id,omitempty"`
	OCRRowIndex         *int             `db:"ocr_row_index" json:"ocr_row_index,omitempty"`
	EmissionDate        time.Time        `db:"emission_date" json:"emission_date"`
	EmissionPlace       string           `db:"emission_place" json:"emission_place"`
	GradesCompleted     string           `db:"grades_completed" json:"grades_completed"`
	GeneralAverage      *float64         `db:"general_average" json:"general_average,omitempty"`
	SituacionFinal      string           `db:"situacion_final" json:"situacion_final"`
	Estado              CertificateState `db:"estado" json:"estado"`
	SignatureStatus     SignatureStatus  `db:"signature_status" json:"signature_status"`
	Version             int              `db:"version" json:"version"`
	IsRectification     bool             `db:"is_rectification" json:"is_rectification"`
	PreviousCertificate *string          `db:"previous_certificate_id" json:"previous_certificate_id,omitempty"`
	AnnulmentReason     *string          `db:"annulment_reason" json:"annulment_reason,omitempty"`
	RectificationReason *string          `db:"rectification_reason" json:"rectification_reason,omitempty"`
	AnnulledBy          *string          `db:"annulled_by" json:"annulled_by,omitempty"`
	AnnulledAt          *time.Time       `db:"annulled_at" json:"annulled_at,omitempty"`
	EmittedBy           *string          `db:"emitted_by" json:"emitted_by,omitempty"`
	PDFURL              *string          `db:"pdf_url" json:"pdf_url,omitempty"`
	PDFHash             *string          `db:"pdf_hash" json:"pdf_hash,omitempty"`
	QRURL               *string          `db:"qr_url" json:"qr_url,omitempty"`
	ObsRetiros          *string          `db:"obs_retiros" json:"obs_retiros,omitempty"`
	ObsTraslados        *string          `db:"obs_traslados" json:"obs_traslados,omitempty"`
	ObsSiagie           *string          `db:"obs_siagie" json:"obs_siagie,omitempty"`
	ObsPruebasUbicacion *string          `db:"obs_pruebas_ubicacion" json:"obs_pruebas_ubicacion,omitempty"`
	ObsConvalidacion    *string          `db:"obs_convalidacion" json:"obs_convalidacion,omitempty"`
	ObsOtros            *string          `db:"obs_otros" json:"obs_otros,omitempty"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updated_at"`
}

// CertificateDetail is one (certificate, school year, grade) row.
type CertificateDetail struct {
	ID             string  `db:"id" json:"id"`
	CertificateID  string  `db:"certificate_id" json:"certificate_id"`
	SchoolYearID   string  `db:"school_year_id" json:"school_year_id"`
	GradeID        string  `db:"grade_id" json:"grade_id"`
	SituacionFinal *string `db:"situacion_final" json:"situacion_final,omitempty"`
	Observaciones  *string `db:"observaciones" json:"observaciones,omitempty"`
	Orden          int     `db:"orden" json:"orden"`
}

// CertificateNote is one curricular-area note inside a detail row.
type CertificateNote struct {
	ID          string   `db:"id" json:"id"`
	DetailID    string   `db:"detail_id" json:"detail_id"`
	AreaID      string   `db:"area_id" json:"area_id"`
	Nota        *float64 `db:"nota" json:"nota"`
	NotaLiteral *string  `db:"nota_literal" json:"nota_literal,omitempty"`
	Exonerado   bool     `db:"exonerado" json:"exonerado"`
	Orden       int      `db:"orden" json:"orden"`
}

// CertificateFilter captures list filters for certificates.
type CertificateFilter struct {
	StudentID        string
	ActaID           string
	Estado           *CertificateState
	VerificationCode string
	Numero           string
	EmittedFrom      *time.Time
	EmittedTo        *time.Time
	Page             int
	PageSize         int
}

// CertificateSummary is the listing row with student identity joined in.
type CertificateSummary struct {
	Certificate
	StudentDNI     string `db:"student_dni" json:"student_dni"`
	StudentApePat  string `db:"student_ape_pat" json:"student_ape_pat"`
	StudentApeMat  string `db:"student_ape_mat" json:"student_ape_mat"`
	StudentNombres string `db:"student_nombres" json:"student_nombres"`
}

// DetailWithNotes bundles one detail row with its area notes for atomic writes.
type DetailWithNotes struct {
	Detail CertificateDetail
	Notes  []CertificateNote
}

// CertificateDetailRow is a detail joined with its year and grade labels.
type CertificateDetailRow struct {
	CertificateDetail
	Year        int    `db:"year" json:"year"`
	GradeName   string `db:"grade_name" json:"grade_name"`
	GradeNumber int    `db:"grade_number" json:"grade_number"`
	LevelName   string `db:"level_name" json:"level_name"`
}

// CertificateNoteRow is a note joined with its curricular area labels.
type CertificateNoteRow struct {
	CertificateNote
	AreaCode string `db:"area_code" json:"area_code"`
	AreaName string `db:"area_name" json:"area_name"`
}

// AreaNote is a consolidated note for rendering and verification output.
type AreaNote struct {
	Area        string   `json:"area"`
	Codigo      string   `json:"codigo,omitempty"`
	Nota        *float64 `json:"nota"`
	NotaLiteral string   `json:"nota_literal,omitempty"`
	Exonerado   bool     `json:"exonerado"`
	Orden       int      `json:"orden"`
}

// GradeSection groups the notes of one school year/grade in template order.
type GradeSection struct {
	Year           int        `json:"year"`
	Grade          string     `json:"grade"`
	GradeNumber    int        `json:"grade_number"`
	Level          string     `json:"level"`
	SituacionFinal string     `json:"situacion_final,omitempty"`
	Notas          []AreaNote `json:"notas"`
	Promedio       float64    `json:"promedio"`
}

// CertificateData is the fully consolidated aggregate used by the PDF
// assembler and the public verification response.
type CertificateData struct {
	CertificateID    string         `json:"certificate_id"`
	VerificationCode string         `json:"verification_code"`
	Numero           string         `json:"numero,omitempty"`
	Student          Student        `json:"student"`
	Institution      Institution    `json:"institution"`
	Grados           []GradeSection `json:"grados"`
	Promedio         float64        `json:"promedio"`
	SituacionFinal   string         `json:"situacion_final"`
	EmissionDate     time.Time      `json:"emission_date"`
	EmissionPlace    string         `json:"emission_place"`
	Observaciones    Observaciones  `json:"observaciones"`
}

// Observaciones are the six categorical free-text observation fields.
type Observaciones struct {
	Retiros          string `json:"retiros,omitempty"`
	Traslados        string `json:"traslados,omitempty"`
	Siagie           string `json:"siagie,omitempty"`
	PruebasUbicacion string `json:"pruebas_ubicacion,omitempty"`
	Convalidacion    string `json:"convalidacion,omitempty"`
	Otros            string `json:"otros,omitempty"`
}
