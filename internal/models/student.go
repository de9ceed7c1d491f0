package models

import "time"

// TempDNIPrefix marks synthetic document numbers assigned when OCR extraction
// yields no national ID. They are replaced later through the correction flow.
const TempDNIPrefix = "TEMP"

// Student is a learner reconstructed from historical actas, deduplicated by DNI.
type Student struct {
	ID              string     `db:"id" json:"id"`
	DNI             string     `db:"dni" json:"dni"`
	ApellidoPaterno string     `db:"apellido_paterno" json:"apellido_paterno"`
	ApellidoMaterno string     `db:"apellido_materno" json:"apellido_materno"`
	Nombres         string     `db:"nombres" json:"nombres"`
	Sexo            *string    `db:"sexo" json:"sexo,omitempty"`
	FechaNacimiento *time.Time `db:"fecha_nacimiento" json:"fecha_nacimiento,omitempty"`
	LugarNacimiento *string    `db:"lugar_nacimiento" json:"lugar_nacimiento,omitempty"`
	Observaciones   string     `db:"observaciones" json:"observaciones"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName renders the student's display name in registry order.
func (s Student) FullName() string {
	name := s.ApellidoPaterno
	if s.ApellidoMaterno != "" {
		name += " " + s.ApellidoMaterno
	}
	return name + " " + s.Nombres
}

// StudentFilter captures list filters for students.
type StudentFilter struct {
	Search   string
	DNI      string
	Page     int
	PageSize int
}
