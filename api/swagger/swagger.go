package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Certificados UGEL Puno API",
        "description": "Issuance and public verification of official study certificates from physical actas",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and session management"},
        {"name": "Actas", "description": "Physical acta registry, search workflow and OCR ingestion"},
        {"name": "Certificates", "description": "Certificate ledger, documents and signature workflow"},
        {"name": "Verification", "description": "Public certificate verification"},
        {"name": "Academic", "description": "Curriculum reference data"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/actas": {
            "get": {
                "tags": ["Actas"],
                "summary": "List actas",
                "parameters": [
                    {"name": "estado", "in": "query", "type": "string"},
                    {"name": "schoolYearId", "in": "query", "type": "string"},
                    {"name": "gradeId", "in": "query", "type": "string"},
                    {"name": "processed", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Actas"],
                "summary": "Register a physical acta with its scan",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "numero", "in": "formData", "required": true, "type": "string"},
                    {"name": "tipo", "in": "formData", "required": true, "type": "string"},
                    {"name": "schoolYearId", "in": "formData", "required": true, "type": "string"},
                    {"name": "gradeId", "in": "formData", "required": true, "type": "string"},
                    {"name": "seccion", "in": "formData", "type": "string"},
                    {"name": "turno", "in": "formData", "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate acta"}
                }
            }
        },
        "/actas/{id}": {
            "get": {
                "tags": ["Actas"],
                "summary": "Get acta",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Actas"],
                "summary": "Update acta metadata",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateActaRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/actas/{id}/estado": {
            "patch": {
                "tags": ["Actas"],
                "summary": "Move acta through the search workflow",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChangeActaStateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid transition"}
                }
            }
        },
        "/actas/{id}/ocr": {
            "post": {
                "tags": ["Actas"],
                "summary": "Ingest the extracted roster",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/IngestOCRRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Acta not found physically or template missing"}
                }
            }
        },
        "/actas/{id}/validar": {
            "post": {
                "tags": ["Actas"],
                "summary": "Confirm extracted data with corrections",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/actas/{id}/comparar": {
            "get": {
                "tags": ["Actas"],
                "summary": "Compare certificates against the stored roster",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/actas/{id}/nomina": {
            "post": {
                "tags": ["Actas"],
                "summary": "Export the validated roster as xlsx",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "force", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/actas/{id}/scan": {
            "get": {
                "tags": ["Actas"],
                "summary": "Download the acta scan via signed token",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        },
        "/certificados": {
            "get": {
                "tags": ["Certificates"],
                "summary": "List certificates",
                "parameters": [
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "actaId", "in": "query", "type": "string"},
                    {"name": "estado", "in": "query", "type": "string"},
                    {"name": "codigo", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/certificados/{id}": {
            "get": {
                "tags": ["Certificates"],
                "summary": "Get certificate",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/certificados/{id}/anular": {
            "post": {
                "tags": ["Certificates"],
                "summary": "Annul a certificate",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AnnulCertificateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already annulled"}
                }
            }
        },
        "/certificados/{id}/rectificar": {
            "post": {
                "tags": ["Certificates"],
                "summary": "Issue a corrected replacement certificate",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RectifyCertificateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/certificados/{id}/documentos": {
            "post": {
                "tags": ["Certificates"],
                "summary": "Generate PDF and QR artifacts",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/certificados/{id}/firmar": {
            "post": {
                "tags": ["Certificates"],
                "summary": "Drive the signature workflow",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SignCertificateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Document not generated or wrong status"}
                }
            }
        },
        "/certificados/{id}/firma-escaneada": {
            "post": {
                "tags": ["Certificates"],
                "summary": "Archive the scanned manuscript-signed certificate",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Not awaiting a manuscript signature"}
                }
            }
        },
        "/certificados/{id}/firma": {
            "get": {
                "tags": ["Certificates"],
                "summary": "Signature workflow state",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/certificados/export": {
            "get": {
                "tags": ["Certificates"],
                "summary": "Export certificates as CSV",
                "produces": ["text/csv"],
                "responses": {
                    "200": {"description": "CSV file"}
                }
            }
        },
        "/verificar/{codigo}": {
            "get": {
                "tags": ["Verification"],
                "summary": "Verify a certificate by its code",
                "parameters": [
                    {"name": "codigo", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown code"}
                }
            }
        },
        "/verificar": {
            "get": {
                "tags": ["Verification"],
                "summary": "Verify a certificate by its document digest",
                "parameters": [
                    {"name": "hash", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown digest"}
                }
            }
        },
        "/verificar/stats": {
            "get": {
                "tags": ["Verification"],
                "summary": "Public verification counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/academico/anios": {
            "get": {
                "tags": ["Academic"],
                "summary": "List school years",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/academico/grados": {
            "get": {
                "tags": ["Academic"],
                "summary": "List grades",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/academico/plantilla": {
            "get": {
                "tags": ["Academic"],
                "summary": "Curriculum template for a year and grade",
                "parameters": [
                    {"name": "year", "in": "query", "required": true, "type": "integer"},
                    {"name": "grade", "in": "query", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "UpdateActaRequest": {
            "type": "object",
            "properties": {
                "numero": {"type": "string"},
                "tipo": {"type": "string"},
                "seccion": {"type": "string"},
                "turno": {"type": "string"},
                "observaciones": {"type": "string"}
            }
        },
        "ChangeActaStateRequest": {
            "type": "object",
            "properties": {
                "estado": {"type": "string", "enum": ["DISPONIBLE", "ASIGNADA_BUSQUEDA", "ENCONTRADA", "NO_ENCONTRADA"]},
                "requestId": {"type": "string"},
                "observaciones": {"type": "string"}
            },
            "required": ["estado"]
        },
        "IngestOCRRequest": {
            "type": "object",
            "properties": {
                "payload": {"type": "object"}
            },
            "required": ["payload"]
        },
        "AnnulCertificateRequest": {
            "type": "object",
            "properties": {
                "motivo": {"type": "string"}
            },
            "required": ["motivo"]
        },
        "RectifyCertificateRequest": {
            "type": "object",
            "properties": {
                "motivo": {"type": "string"}
            },
            "required": ["motivo"]
        },
        "SignCertificateRequest": {
            "type": "object",
            "properties": {
                "modo": {"type": "string", "enum": ["DIGITAL", "MANUSCRITA"]}
            },
            "required": ["modo"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
