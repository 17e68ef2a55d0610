//go:build swagger

package httpapi

import (
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

type swaggerSpec struct{}

func (swaggerSpec) ReadDoc() string { return swaggerDoc }

func init() {
	swag.Register(swag.Name, swaggerSpec{})
}

// MountSwagger serves the OpenAPI document and UI under /swagger/.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

const swaggerDoc = `{
  "swagger": "2.0",
  "info": {
    "title": "musicd API",
    "description": "HTTP API for text-to-music generation.",
    "version": "1.0"
  },
  "basePath": "/",
  "schemes": ["http"],
  "paths": {
    "/generate": {
      "post": {
        "summary": "Generate audio from a text prompt",
        "consumes": ["application/json"],
        "produces": ["application/json"],
        "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateRequest"}}],
        "responses": {
          "200": {"description": "OK", "schema": {"$ref": "#/definitions/GenerateResponse"}},
          "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "415": {"description": "Unsupported media type", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "429": {"description": "Too busy", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "500": {"description": "Generation failed", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "503": {"description": "Inference backend unavailable", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "504": {"description": "Timed out", "schema": {"$ref": "#/definitions/ErrorResponse"}}
        }
      }
    },
    "/models": {
      "get": {
        "summary": "List model variants",
        "produces": ["application/json"],
        "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ModelsResponse"}}}
      }
    },
    "/status": {
      "get": {
        "summary": "Loaded handles and counters",
        "produces": ["application/json"],
        "responses": {"200": {"description": "OK"}}
      }
    },
    "/health": {
      "get": {
        "summary": "Liveness",
        "produces": ["application/json"],
        "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/HealthResponse"}}}
      }
    }
  },
  "definitions": {
    "GenerateRequest": {
      "type": "object",
      "required": ["prompt"],
      "properties": {
        "prompt": {"type": "string", "example": "A calming piano melody"},
        "model": {"type": "string", "example": "small"},
        "max_tokens": {"type": "integer", "example": 256}
      }
    },
    "GenerateResponse": {
      "type": "object",
      "properties": {
        "success": {"type": "boolean"},
        "audio_url": {"type": "string"},
        "filename": {"type": "string"},
        "duration": {"type": "number"},
        "generation_time": {"type": "number"},
        "model": {"type": "string"},
        "sample_rate": {"type": "integer"},
        "max_tokens": {"type": "integer"}
      }
    },
    "ErrorResponse": {
      "type": "object",
      "properties": {
        "success": {"type": "boolean"},
        "error": {"type": "string"},
        "code": {"type": "integer"}
      }
    },
    "HealthResponse": {
      "type": "object",
      "properties": {"status": {"type": "string", "example": "healthy"}}
    },
    "ModelsResponse": {
      "type": "object",
      "properties": {
        "models": {
          "type": "array",
          "items": {
            "type": "object",
            "properties": {
              "name": {"type": "string"},
              "model_id": {"type": "string"},
              "default_max_tokens": {"type": "integer"},
              "description": {"type": "string"}
            }
          }
        }
      }
    }
  }
}`
