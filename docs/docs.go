// Package docs holds the OpenAPI document served under /swagger.
// Regenerate with swag init; see cmd/eventsync/docs.go.
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
		"/healthz": {
			"get": {
				"tags": [
					"health"
				],
				"summary": "Health check",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					}
				}
			}
		},
		"/readyz": {
			"get": {
				"tags": [
					"health"
				],
				"summary": "Readiness check",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					},
					"503": {
						"description": "Service Unavailable",
						"schema": {
							"type": "object",
							"additionalProperties": {
								"type": "string"
							}
						}
					}
				}
			}
		},
		"/api/events": {
			"get": {
				"tags": [
					"events"
				],
				"summary": "List events",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "integer",
						"description": "limit",
						"name": "limit",
						"in": "query"
					},
					{
						"type": "integer",
						"description": "offset",
						"name": "offset",
						"in": "query"
					},
					{
						"type": "string",
						"description": "source adapter name",
						"name": "source",
						"in": "query"
					},
					{
						"type": "string",
						"description": "scraped|user",
						"name": "origin",
						"in": "query"
					},
					{
						"type": "string",
						"description": "title contains",
						"name": "q",
						"in": "query"
					},
					{
						"type": "string",
						"description": "start_time lower bound (RFC 3339 or YYYY-MM-DD)",
						"name": "from",
						"in": "query"
					},
					{
						"type": "string",
						"description": "start_time|end_time|updated_at|title",
						"name": "order_by",
						"in": "query"
					},
					{
						"type": "boolean",
						"description": "ascending",
						"name": "ascending",
						"in": "query"
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/handler.apiResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.apiResponse"
						}
					}
				}
			}
		},
		"/api/events/{external_id}": {
			"get": {
				"tags": [
					"events"
				],
				"summary": "Get event by external id",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "external id, e.g. meetup_301234567",
						"name": "external_id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/handler.apiResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.apiResponse"
						}
					}
				}
			}
		},
		"/api/pipeline/run": {
			"post": {
				"tags": [
					"pipeline"
				],
				"summary": "Trigger one pipeline cycle",
				"produces": [
					"application/json"
				],
				"description": "Starts a cycle in the background. Poll /api/pipeline/sources or follow /api/pipeline/stream for the outcome.",
				"responses": {
					"202": {
						"description": "Accepted",
						"schema": {
							"$ref": "#/definitions/handler.apiResponse"
						}
					},
					"409": {
						"description": "Conflict",
						"schema": {
							"$ref": "#/definitions/handler.apiResponse"
						}
					}
				}
			}
		},
		"/api/pipeline/sweep": {
			"post": {
				"tags": [
					"pipeline"
				],
				"summary": "Sweep expired events now",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/handler.apiResponse"
						}
					}
				}
			}
		},
		"/api/pipeline/sources": {
			"get": {
				"tags": [
					"pipeline"
				],
				"summary": "List adapter run states",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/handler.apiResponse"
						}
					}
				}
			}
		},
		"/api/pipeline/stream": {
			"get": {
				"tags": [
					"pipeline"
				],
				"summary": "Stream cycle reports",
				"description": "Upgrades to a websocket and pushes one JSON message per finished cycle.",
				"responses": {}
			}
		},
		"/api/settings": {
			"get": {
				"tags": [
					"settings"
				],
				"summary": "List feature switches",
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/handler.apiResponse"
						}
					}
				}
			}
		},
		"/api/settings/{key}": {
			"put": {
				"tags": [
					"settings"
				],
				"summary": "Toggle a feature switch",
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "switch key, e.g. feature.source.meetup",
						"name": "key",
						"in": "path",
						"required": true
					},
					{
						"description": "new value",
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.putSwitchRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/handler.apiResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.apiResponse"
						}
					}
				},
				"consumes": [
					"application/json"
				]
			}
		}
	},
	"definitions": {
		"handler.apiResponse": {
			"type": "object",
			"properties": {
				"code": {
					"type": "integer"
				},
				"data": {},
				"message": {
					"type": "string"
				},
				"meta": {
					"type": "object",
					"additionalProperties": true
				}
			}
		},
		"handler.putSwitchRequest": {
			"type": "object",
			"required": [
				"enabled"
			],
			"properties": {
				"enabled": {
					"type": "boolean"
				}
			}
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "Event Sync API",
	Description:      "Business event ingestion: pipeline controls, source states, feature switches and the event listing.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
