package models

import "time"

// SchoolYear is one historical academic year (the archive covers 1985-2012).
type SchoolYear struct {
	ID        string    `db:"id" json:"id"`
	Year      int       `db:"year" json:"year"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Grade is one grade level within an educational level.
type Grade struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Number    int       `db:"number" json:"number"`
	LevelName string    `db:"level_name" json:"level_name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CurricularArea is a subject taught under some curriculum.
type CurricularArea struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TemplateArea is one ordered entry of the curriculum template for a
// (year, grade) combination. Ingestion cannot proceed without a non-empty
// template.
type TemplateArea struct {
	AreaID string `db:"area_id" json:"area_id"`
	Code   string `db:"code" json:"code"`
	Name   string `db:"name" json:"name"`
	Orden  int    `db:"orden" json:"orden"`
}

// Institution holds the issuing institution configuration printed on
// certificates.
type Institution struct {
	ID            string  `db:"id" json:"id"`
	Nombre        string  `db:"nombre" json:"nombre"`
	CodigoModular *string `db:"codigo_modular" json:"codigo_modular,omitempty"`
	Direccion     *string `db:"direccion" json:"direccion,omitempty"`
	UGEL          string  `db:"ugel" json:"ugel"`
	Region        string  `db:"region" json:"region"`
	LogoPath      *string `db:"logo_path" json:"logo_path,omitempty"`
}
