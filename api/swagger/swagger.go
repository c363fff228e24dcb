package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Campus Voice API",
        "description": "Anonymous grievance intake, escalation, and tracking",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Registration and login"},
        {"name": "Feedback", "description": "Anonymous grievance submission"},
        {"name": "Issues", "description": "Issue lifecycle and escalation"},
        {"name": "Evidence", "description": "Evidence uploads"},
        {"name": "Stats", "description": "Dashboard counters and exports"},
        {"name": "Cron", "description": "Scheduled maintenance triggers"}
    ],
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["Auth"],
                "summary": "Register a verified identity",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate and obtain an access token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current authenticated identity",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/feedback": {
            "post": {
                "tags": ["Feedback"],
                "summary": "Submit anonymous feedback",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitFeedbackRequest"}}
                ],
                "responses": {
                    "200": {"description": "Absorbed by an existing issue", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Rejected content", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Moderation unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/issues": {
            "get": {
                "tags": ["Issues"],
                "summary": "List issues visible to the caller",
                "parameters": [
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/issues/all": {
            "get": {
                "tags": ["Issues"],
                "summary": "List every issue (oversight)",
                "parameters": [
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/issues/{id}": {
            "get": {
                "tags": ["Issues"],
                "summary": "Issue detail with its update ledger",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/issues/{id}/updates": {
            "post": {
                "tags": ["Issues"],
                "summary": "Append a progress update",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddUpdateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid transition", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/issues/{id}/escalate": {
            "post": {
                "tags": ["Issues"],
                "summary": "Escalate to the next role in the chain",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/EscalateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "No further escalation or concurrent change", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/issues/{id}/resolve": {
            "post": {
                "tags": ["Issues"],
                "summary": "Mark an issue resolved",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already resolved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/evidence": {
            "post": {
                "tags": ["Evidence"],
                "summary": "Upload an evidence file",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/evidence/download": {
            "get": {
                "tags": ["Evidence"],
                "summary": "Download evidence by signed reference",
                "parameters": [
                    {"name": "ref", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Invalid or expired reference", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/stats/dashboard": {
            "get": {
                "tags": ["Stats"],
                "summary": "Aggregate issue counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/stats/export": {
            "get": {
                "tags": ["Stats"],
                "summary": "Export the issue list",
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/cron/check-escalation": {
            "post": {
                "tags": ["Cron"],
                "summary": "Run the SLA breach sweep now",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "RegisterRequest": {
            "type": "object",
            "required": ["email", "password", "full_name"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "full_name": {"type": "string"},
                "role": {"type": "string", "enum": ["Student", "Staff", "Warden", "HoD", "Admin", "Principal"]},
                "department": {"type": "string"}
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
        "SubmitFeedbackRequest": {
            "type": "object",
            "required": ["category", "text"],
            "properties": {
                "category": {"type": "string", "enum": ["Academics", "Hostel", "Infrastructure", "Food", "Transportation", "Other"]},
                "text": {"type": "string"},
                "evidence_urls": {"type": "array", "items": {"type": "string"}}
            }
        },
        "AddUpdateRequest": {
            "type": "object",
            "required": ["content_kind"],
            "properties": {
                "content_kind": {"type": "string", "enum": ["text", "audio"]},
                "content_text": {"type": "string"},
                "content_url": {"type": "string"}
            }
        },
        "EscalateRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"}
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
                "pagination": {"$ref": "#/definitions/Pagination"}
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
