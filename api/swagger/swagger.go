package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Weekly Planner API",
        "description": "Ranks conflict-minimizing weekly timetables from a catalog of course sections",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Planner", "description": "Schedule previews, queued runs and exports"},
        {"name": "Plan Runs", "description": "Saved, versioned planning results"},
        {"name": "Authentication", "description": "Operator token issuance"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate the planner operator",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/plans": {
            "post": {
                "tags": ["Planner"],
                "summary": "Preview ranked weekly schedules",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PlanRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Infeasible selection or no feasible schedule", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/plans/async": {
            "post": {
                "tags": ["Planner"],
                "summary": "Queue a planning run",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PlanRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/plans/proposals/{id}": {
            "get": {
                "tags": ["Planner"],
                "summary": "Fetch a proposal",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown or expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/plans/proposals/{id}/export": {
            "get": {
                "tags": ["Planner"],
                "summary": "Export one schedule of a proposal",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "rank", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{token}": {
            "get": {
                "tags": ["Planner"],
                "summary": "Download an exported timetable",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/plans/save": {
            "post": {
                "tags": ["Plan Runs"],
                "summary": "Persist a proposal as a plan run",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SavePlanRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Proposal not finished", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/plan-runs": {
            "get": {
                "tags": ["Plan Runs"],
                "summary": "List saved plan runs",
                "parameters": [
                    {"name": "label", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["DRAFT", "PUBLISHED", "ARCHIVED"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/plan-runs/{id}/entries": {
            "get": {
                "tags": ["Plan Runs"],
                "summary": "List the stored slots of a plan run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/plan-runs/{id}": {
            "delete": {
                "tags": ["Plan Runs"],
                "summary": "Delete a draft plan run",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Run is not a draft", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["username", "password"]
        },
        "Slot": {
            "type": "object",
            "properties": {
                "day": {"type": "integer", "minimum": 1, "maximum": 7},
                "period": {"type": "integer", "minimum": 0}
            }
        },
        "Section": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "suffix": {"type": "string"},
                "kind": {"type": "string", "enum": ["LECTURE", "LAB", "PROBLEM_SESSION"]},
                "ects": {"type": "number"},
                "instructors": {"type": "array", "items": {"type": "string"}},
                "slots": {"type": "array", "items": {"$ref": "#/definitions/Slot"}}
            },
            "required": ["code", "slots"]
        },
        "PlanRequest": {
            "type": "object",
            "properties": {
                "sections": {"type": "array", "items": {"$ref": "#/definitions/Section"}},
                "selection": {"type": "object", "additionalProperties": {"type": "string", "enum": ["MANDATORY", "OPTIONAL", "EXCLUDED"]}},
                "frequencies": {"type": "object", "additionalProperties": {"type": "string", "enum": ["ALWAYS", "OFTEN", "RARELY", "NEVER"]}},
                "instructorPenalties": {"type": "object", "additionalProperties": {"type": "number"}},
                "policy": {
                    "type": "object",
                    "properties": {
                        "maxPairOverlap": {"type": "integer"},
                        "maxConflictingPairs": {"type": "integer"},
                        "bufferPeriods": {"type": "integer"},
                        "periodMinutes": {"type": "integer"}
                    }
                },
                "weights": {
                    "type": "object",
                    "properties": {
                        "conflict": {"type": "number"},
                        "ects": {"type": "number"},
                        "frequency": {"type": "number"},
                        "instructor": {"type": "number"}
                    }
                },
                "ectsCeiling": {"type": "number"},
                "ectsTarget": {"type": "number"},
                "maxOptional": {"type": "integer"},
                "topK": {"type": "integer", "minimum": 1, "maximum": 20},
                "maxNodes": {"type": "integer"},
                "timeLimitMs": {"type": "integer"},
                "targetScore": {"type": "number"},
                "seeds": {"type": "array", "items": {"type": "integer"}},
                "disableAnnealing": {"type": "boolean"}
            }
        },
        "SavePlanRequest": {
            "type": "object",
            "properties": {
                "proposalId": {"type": "string"},
                "label": {"type": "string"},
                "publish": {"type": "boolean"}
            },
            "required": ["proposalId", "label"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_rows": {"type": "integer"}
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
