package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Supatable API",
        "description": "Read-only user directory with search, role filter and pagination",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Users", "description": "User directory queries"},
        {"name": "GraphQL", "description": "GraphQL endpoint serving the users query"},
        {"name": "Ops", "description": "Liveness, readiness and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Ops"],
                "summary": "Liveness probe",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Status"}}
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["Ops"],
                "summary": "Readiness probe",
                "description": "Reports whether the user store answers a ping",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "Ready", "schema": {"$ref": "#/definitions/Status"}},
                    "503": {"description": "User store unreachable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": ["Ops"],
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {
                    "200": {"description": "Prometheus exposition format"}
                }
            }
        },
        "/api/v1/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List users",
                "description": "Users newest first. Search matches email, full name or role case-insensitively. Out of range limits fall back to 50 and negative offsets to 0.",
                "produces": ["application/json"],
                "parameters": [
                    {"name": "search", "in": "query", "type": "string", "required": false},
                    {"name": "role", "in": "query", "type": "string", "required": false, "default": "All", "enum": ["All", "Admin", "Manager", "User"]},
                    {"name": "offset", "in": "query", "type": "integer", "required": false, "default": 0},
                    {"name": "limit", "in": "query", "type": "integer", "required": false, "default": 50, "minimum": 1, "maximum": 200}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/ResponseEnvelope"},
                                {"type": "object", "properties": {"data": {"type": "array", "items": {"$ref": "#/definitions/User"}}}}
                            ]
                        }
                    },
                    "502": {"description": "User store failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/graphql": {
            "post": {
                "tags": ["GraphQL"],
                "summary": "GraphQL endpoint",
                "description": "Accepts {query, operationName, variables}. Query.users(input: UsersInput!) returns {items, totalCount}. Errors carry extensions.code.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GraphQLRequest"}}
                ],
                "responses": {
                    "200": {"description": "GraphQL response with data and/or errors"}
                }
            }
        }
    },
    "definitions": {
        "User": {
            "type": "object",
            "properties": {
                "id": {"type": "string", "format": "uuid"},
                "email": {"type": "string"},
                "fullName": {"type": "string"},
                "role": {"type": "string"},
                "createdAt": {"type": "string", "format": "date-time"}
            }
        },
        "GraphQLRequest": {
            "type": "object",
            "properties": {
                "query": {"type": "string"},
                "operationName": {"type": "string"},
                "variables": {"type": "object"}
            }
        },
        "Status": {
            "type": "object",
            "properties": {
                "status": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "offset": {"type": "integer"},
                "limit": {"type": "integer"},
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
