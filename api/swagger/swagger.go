package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "School Site API",
        "description": "Content and communication backend for the school website",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Admin authentication and first-run setup"},
        {"name": "Documents", "description": "Category-scoped document library"},
        {"name": "Calendar", "description": "Academic terms and calendar events"},
        {"name": "Newsletters", "description": "Parent newsletter drafting and dispatch"}
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
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A backing store is unreachable"}
                }
            }
        },
        "/api/v1/auth/setup": {
            "get": {
                "tags": ["Auth"],
                "summary": "Report whether first-run setup has completed",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Auth"],
                "summary": "Create the first super admin account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetupRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Setup already completed"}
                }
            }
        },
        "/api/v1/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate an admin",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/api/v1/documents": {
            "get": {
                "tags": ["Documents"],
                "summary": "List published documents",
                "parameters": [
                    {"name": "category", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "tag", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/documents": {
            "post": {
                "tags": ["Documents"],
                "summary": "Upload a document",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "required": true, "type": "file"},
                    {"name": "title", "in": "formData", "required": true, "type": "string"},
                    {"name": "category", "in": "formData", "required": true, "type": "string"},
                    {"name": "tags", "in": "formData", "type": "string"},
                    {"name": "is_published", "in": "formData", "type": "boolean"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Rejected file type or size"}
                }
            }
        },
        "/api/v1/documents/download/{token}": {
            "get": {
                "tags": ["Documents"],
                "summary": "Download a document via a signed token",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "401": {"description": "Expired or tampered token"}
                }
            }
        },
        "/api/v1/terms": {
            "get": {
                "tags": ["Calendar"],
                "summary": "List academic terms",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/terms/active": {
            "get": {
                "tags": ["Calendar"],
                "summary": "Get the active academic term",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No active term"}
                }
            }
        },
        "/api/v1/calendar": {
            "get": {
                "tags": ["Calendar"],
                "summary": "List published calendar events",
                "parameters": [
                    {"name": "term_id", "in": "query", "type": "string"},
                    {"name": "event_type", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/calendar/export": {
            "get": {
                "tags": ["Calendar"],
                "summary": "Export the calendar as a PDF",
                "produces": ["application/pdf"],
                "responses": {
                    "200": {"description": "PDF payload"}
                }
            }
        },
        "/api/v1/admin/newsletters": {
            "get": {
                "tags": ["Newsletters"],
                "summary": "List newsletters",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Newsletters"],
                "summary": "Create newsletter draft",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateNewsletterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/newsletters/{id}/send": {
            "post": {
                "tags": ["Newsletters"],
                "summary": "Dispatch a newsletter to its audience",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "202": {"description": "Dispatch enqueued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Newsletter was already sent"}
                }
            }
        }
    },
    "definitions": {
        "SetupRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "full_name": {"type": "string"}
            },
            "required": ["email", "password", "full_name"]
        },
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "CreateNewsletterRequest": {
            "type": "object",
            "properties": {
                "subject": {"type": "string"},
                "body_html": {"type": "string"},
                "priority": {"type": "string", "enum": ["LOW", "NORMAL", "HIGH"]},
                "target_audience": {"type": "string", "enum": ["ALL_PARENTS", "GRADE_LEVELS"]},
                "grade_levels": {"type": "array", "items": {"type": "string"}},
                "attachments": {"type": "array", "items": {"type": "string"}},
                "scheduled_for": {"type": "string", "format": "date-time"}
            },
            "required": ["subject", "body_html", "target_audience"]
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
