package models

import "time"

// VerificationOutcome records whether a public lookup resolved a certificate.
type VerificationOutcome string

const (
	VerificationFound    VerificationOutcome = "ENCONTRADO"
	VerificationNotFound VerificationOutcome = "NO_ENCONTRADO"
)

// VerificationMode distinguishes lookup by code from lookup by document hash.
type VerificationMode string

const (
	VerificationByCode VerificationMode = "CODIGO_VIRTUAL"
	VerificationByHash VerificationMode = "HASH_DOCUMENTO"
)

// Verification is one append-only public lookup attempt.
type Verification struct {
	ID            string              `db:"id" json:"id"`
	CertificateID *string             `db:"certificate_id" json:"certificate_id,omitempty"`
	QueriedValue  string              `db:"queried_value" json:"queried_value"`
	Mode          VerificationMode    `db:"mode" json:"mode"`
	Outcome       VerificationOutcome `db:"outcome" json:"outcome"`
	IPAddress     string              `db:"ip_address" json:"ip_address"`
	UserAgent     string              `db:"user_agent" json:"user_agent"`
	CreatedAt     time.Time           `db:"created_at" json:"created_at"`
}

// VerificationStats are the public aggregate counters.
type VerificationStats struct {
	TotalVerifications  int `json:"total_verifications"`
	VerificationsToday  int `json:"verifications_today"`
	EmittedCertificates int `json:"emitted_certificates"`
}
