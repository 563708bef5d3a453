// Package docs registers the OpenAPI document served by the Swagger UI of
// the HTTP transport. It mirrors the swag annotations on the handlers in
// internal/transport/http; keep the two in sync when routes change.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/v1/hazards": {
            "get": {
                "produces": ["application/json"],
                "tags": ["hazards"],
                "summary": "Current hazard alerts and disaster declarations",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/chat.HazardReport"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/http.errorResponse"}}
                }
            }
        },
        "/v1/sessions": {
            "post": {
                "description": "Starts a session with an empty history. An empty variant selects the hazard variant.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Open a chat session",
                "parameters": [
                    {"description": "Variant selection", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/http.openSessionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/chat.View"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.errorResponse"}}
                }
            }
        },
        "/v1/sessions/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Get a chat session",
                "parameters": [
                    {"type": "string", "description": "Session ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/chat.View"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.errorResponse"}}
                }
            }
        },
        "/v1/sessions/{id}/history": {
            "delete": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Clear the history of a session",
                "parameters": [
                    {"type": "string", "description": "Session ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/chat.View"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.errorResponse"}}
                }
            }
        },
        "/v1/sessions/{id}/messages": {
            "post": {
                "description": "With \"Accept: text/event-stream\" the reply is streamed as \"snapshot\" events, one per\nrevealed character, followed by a single \"done\" event. Otherwise the finished reply is returned.",
                "consumes": ["application/json"],
                "produces": ["application/json", "text/event-stream"],
                "tags": ["messages"],
                "summary": "Send a text message",
                "parameters": [
                    {"type": "string", "description": "Session ID", "name": "id", "in": "path", "required": true},
                    {"description": "Message", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.messageRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.replyResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.errorResponse"}}
                }
            }
        },
        "/v1/sessions/{id}/variant": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Switch the variant of a session",
                "parameters": [
                    {"type": "string", "description": "Session ID", "name": "id", "in": "path", "required": true},
                    {"description": "New variant", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.switchVariantRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/chat.View"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.errorResponse"}}
                }
            }
        },
        "/v1/sessions/{id}/voice": {
            "post": {
                "description": "The request body is the raw recording. It is transcribed and answered like a text message.",
                "consumes": ["audio/wav", "audio/ogg", "audio/mpeg", "audio/webm"],
                "produces": ["application/json", "text/event-stream"],
                "tags": ["messages"],
                "summary": "Send a voice message",
                "parameters": [
                    {"type": "string", "description": "Session ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "Reply language (default en)", "name": "language", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.replyResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.errorResponse"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/http.errorResponse"}}
                }
            }
        },
        "/v1/variants": {
            "get": {
                "produces": ["application/json"],
                "tags": ["variants"],
                "summary": "List chatbot variants",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/persona.Variant"}}}
                }
            }
        }
    },
    "definitions": {
        "chat.HazardReport": {
            "type": "object",
            "properties": {
                "digest": {"type": "string"},
                "region": {"type": "string"},
                "snapshot": {"$ref": "#/definitions/hazard.Snapshot"}
            }
        },
        "chat.View": {
            "type": "object",
            "properties": {
                "history": {"type": "array", "items": {"$ref": "#/definitions/message.Turn"}},
                "id": {"type": "string"},
                "intro": {"type": "string"},
                "theme": {"$ref": "#/definitions/persona.Theme"},
                "variant": {"type": "string"}
            }
        },
        "hazard.Alert": {
            "type": "object",
            "properties": {
                "effective": {"type": "string"},
                "event": {"type": "string"},
                "expires": {"type": "string"},
                "headline": {"type": "string"}
            }
        },
        "hazard.Disaster": {
            "type": "object",
            "properties": {
                "declarationDate": {"type": "string"},
                "designatedArea": {"type": "string"},
                "incidentType": {"type": "string"}
            }
        },
        "hazard.Snapshot": {
            "type": "object",
            "properties": {
                "alerts": {"type": "array", "items": {"$ref": "#/definitions/hazard.Alert"}},
                "disasters": {"type": "array", "items": {"$ref": "#/definitions/hazard.Disaster"}},
                "fetched_at": {"type": "string"}
            }
        },
        "http.errorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"}
            }
        },
        "http.messageRequest": {
            "type": "object",
            "properties": {
                "language": {"type": "string"},
                "text": {"type": "string"}
            }
        },
        "http.openSessionRequest": {
            "type": "object",
            "properties": {
                "variant": {"type": "string"}
            }
        },
        "http.replyResponse": {
            "type": "object",
            "properties": {
                "faults": {"type": "array", "items": {"$ref": "#/definitions/transport.Fault"}},
                "reply": {"type": "string"},
                "session": {"$ref": "#/definitions/chat.View"},
                "transcript": {"type": "string"}
            }
        },
        "http.switchVariantRequest": {
            "type": "object",
            "properties": {
                "variant": {"type": "string"}
            }
        },
        "message.Turn": {
            "type": "object",
            "properties": {
                "content": {"type": "string"},
                "role": {"type": "string"}
            }
        },
        "persona.Theme": {
            "type": "object",
            "properties": {
                "bg": {"type": "string"},
                "text": {"type": "string"}
            }
        },
        "persona.Variant": {
            "type": "object",
            "properties": {
                "hazard": {"type": "boolean"},
                "id": {"type": "string"},
                "intro": {"type": "string"},
                "theme": {"$ref": "#/definitions/persona.Theme"}
            }
        },
        "transport.Fault": {
            "type": "object",
            "properties": {
                "kind": {"type": "string"},
                "message": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "civicbot API",
	Description:      "Multilingual civic-assistance chatbot with live hazard alerts.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
