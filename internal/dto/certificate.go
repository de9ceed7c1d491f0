package dto

import "github.com/ugel-puno/certificados-api/internal/models"

// CertificateFilter captures query parameters for certificate listing.
type CertificateFilter struct {
	StudentID        string
	ActaID           string
	Estado           string
	VerificationCode string
	Numero           string
	Page             int
	PageSize         int
}

// AnnulCertificateRequest voids a certificate with a mandatory reason.
type AnnulCertificateRequest struct {
	Motivo string `json:"motivo" validate:"required,min=5"`
}

// RectifyCertificateRequest issues a corrected replacement certificate.
type RectifyCertificateRequest struct {
	Motivo string `json:"motivo" validate:"required,min=5"`
}

// GenerateDocumentRequest controls PDF regeneration.
type GenerateDocumentRequest struct {
	Force bool `json:"force"`
}

// SignCertificateRequest drives the signature workflow.
type SignCertificateRequest struct {
	Modo string `json:"modo" validate:"required,oneof=DIGITAL MANUSCRITA"`
}

// CertificateDocumentResponse returns the generated artifact locations.
type CertificateDocumentResponse struct {
	CertificateID string `json:"certificate_id"`
	PDFURL        string `json:"pdf_url"`
	PDFHash       string `json:"pdf_hash"`
	QRURL         string `json:"qr_url"`
	Regenerated   bool   `json:"regenerated"`
}

// SignatureStatusResponse reports the signature workflow state.
type SignatureStatusResponse struct {
	CertificateID   string                  `json:"certificate_id"`
	Estado          models.CertificateState `json:"estado"`
	SignatureStatus models.SignatureStatus  `json:"signature_status"`
	PDFURL          *string                 `json:"pdf_url,omitempty"`
}
