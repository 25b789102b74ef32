package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Electives API",
        "description": "Elective enrollment for upper secondary students",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Enrollment", "description": "Student enrollment form"},
        {"name": "Authentication", "description": "Staff login"},
        {"name": "Admin", "description": "Enrollment roster, exports and capacity"}
    ],
    "paths": {
        "/enrollment/form": {
            "get": {
                "tags": ["Enrollment"],
                "summary": "Enrollment form options",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Service unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollment/validate": {
            "post": {
                "tags": ["Enrollment"],
                "summary": "Dry-run a submission",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmissionRequest"}}
                ],
                "responses": {
                    "200": {"description": "Decision", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Malformed payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Service unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollment/submissions": {
            "post": {
                "tags": ["Enrollment"],
                "summary": "Submit an enrollment",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmissionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Admitted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Malformed payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already enrolled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Rejected by a rule", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "429": {"description": "Too many submissions", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Catalog integrity error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Service unavailable, try again", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate staff user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current staff user",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/enrollments": {
            "get": {
                "tags": ["Admin"],
                "summary": "List enrollments",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "year", "in": "query", "type": "integer"},
                    {"name": "classId", "in": "query", "type": "integer"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/enrollments/export": {
            "get": {
                "tags": ["Admin"],
                "summary": "Export enrollments as CSV or PDF",
                "produces": ["text/csv", "application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf", "xlsx"]},
                    {"name": "year", "in": "query", "type": "integer"},
                    {"name": "classId", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}},
                    "400": {"description": "Unknown format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/capacity": {
            "get": {
                "tags": ["Admin"],
                "summary": "Capacity usage",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/metrics": {
            "get": {
                "tags": ["Admin"],
                "summary": "Service metrics summary",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/cache/invalidate": {
            "post": {
                "tags": ["Admin"],
                "summary": "Flush lookup caches",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "Flushed"}
                }
            }
        }
    },
    "definitions": {
        "SubmissionRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "run": {"type": "string", "example": "11222333-K"},
                "email": {"type": "string"},
                "class": {"type": "string", "example": "3° Medio A"},
                "elective1": {"type": "string", "example": "Área A: Física"},
                "elective2": {"type": "string"},
                "elective3": {"type": "string"},
                "geElective": {"type": "string"}
            }
        },
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
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
