// Package swagger registers the OpenAPI description served at /swagger.
// Regenerate with: swag init -g cmd/start.go -o docs/swagger
package swagger

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
        "/integrity": {
            "get": {
                "description": "Checks the bucket folders, the database schema and the feed catalog.",
                "produces": ["application/json"],
                "tags": ["integrity"],
                "summary": "Run All Integrity Checks",
                "responses": {
                    "200": {"description": "Healthy", "schema": {"$ref": "#/definitions/integrity.Report"}},
                    "503": {"description": "Unhealthy", "schema": {"$ref": "#/definitions/integrity.Report"}}
                }
            }
        },
        "/integrity/catalog": {
            "get": {
                "produces": ["application/json"],
                "tags": ["integrity"],
                "summary": "Check Feed Catalog",
                "responses": {
                    "200": {"description": "Catalog Report", "schema": {"$ref": "#/definitions/checks.CatalogReport"}}
                }
            }
        },
        "/integrity/schema": {
            "get": {
                "description": "Checks that the reservations and jobs tables carry the expected columns.",
                "produces": ["application/json"],
                "tags": ["integrity"],
                "summary": "Check Database Schema",
                "responses": {
                    "200": {"description": "Schema Report", "schema": {"$ref": "#/definitions/checks.SchemaReport"}},
                    "500": {"description": "Internal Server Error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/integrity/structure": {
            "get": {
                "description": "Checks that the archive and csv folders exist in the storage bucket. Optionally creates missing folders.",
                "produces": ["application/json"],
                "tags": ["integrity"],
                "summary": "Check Structure",
                "parameters": [
                    {"type": "boolean", "description": "Fix missing folders", "name": "fix", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Structure Report", "schema": {"type": "object", "additionalProperties": true}},
                    "500": {"description": "Internal Server Error", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/runs": {
            "post": {
                "description": "Runs ingestion and reconciliation. Concurrent triggers share the run in flight.",
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Trigger Reconciliation Run",
                "responses": {
                    "200": {
                        "description": "Run Report",
                        "schema": {"$ref": "#/definitions/models.RunReport"}
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {"type": "object", "additionalProperties": {"type": "string"}}
                    }
                }
            }
        },
        "/runs/latest": {
            "get": {
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Latest Run Report",
                "responses": {
                    "200": {
                        "description": "Run Report",
                        "schema": {"$ref": "#/definitions/models.RunReport"}
                    },
                    "404": {
                        "description": "No run yet",
                        "schema": {"type": "object", "additionalProperties": {"type": "string"}}
                    }
                }
            }
        },
        "/properties/{property}/reservations": {
            "get": {
                "produces": ["application/json"],
                "tags": ["reservations"],
                "summary": "Active Reservations",
                "parameters": [
                    {"type": "string", "description": "Property ID", "name": "property", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {
                        "description": "Active records",
                        "schema": {"type": "array", "items": {"$ref": "#/definitions/reconcile.Record"}}
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {"type": "object", "additionalProperties": {"type": "string"}}
                    }
                }
            }
        },
        "/webhooks/jobs": {
            "post": {
                "description": "Records the status of a downstream service job. Scheduled and In Progress jobs protect their record from removal.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["webhooks"],
                "summary": "Job Status Webhook",
                "parameters": [
                    {"description": "Job status", "name": "event", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.JobEvent"}}
                ],
                "responses": {
                    "202": {
                        "description": "Stored job",
                        "schema": {"$ref": "#/definitions/models.Job"}
                    },
                    "400": {
                        "description": "Invalid payload",
                        "schema": {"type": "object", "additionalProperties": {"type": "string"}}
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {"type": "object", "additionalProperties": {"type": "string"}}
                    }
                }
            }
        }
    },
    "definitions": {
        "checks.CatalogReport": {
            "type": "object",
            "properties": {
                "csv": {"type": "integer"},
                "enabled": {"type": "integer"},
                "error": {"type": "string"},
                "feeds": {"type": "integer"},
                "ics": {"type": "integer"},
                "properties": {"type": "array", "items": {"type": "string"}},
                "valid": {"type": "boolean"}
            }
        },
        "checks.SchemaReport": {
            "type": "object",
            "properties": {
                "driver": {"type": "string"},
                "errors": {"type": "array", "items": {"type": "string"}},
                "matched": {"type": "boolean"},
                "tables": {"type": "object", "additionalProperties": {"$ref": "#/definitions/checks.TableReport"}}
            }
        },
        "checks.TableReport": {
            "type": "object",
            "properties": {
                "exists": {"type": "boolean"},
                "missing_columns": {"type": "array", "items": {"type": "string"}},
                "status": {"type": "string"}
            }
        },
        "integrity.Report": {
            "type": "object",
            "properties": {
                "catalog": {"$ref": "#/definitions/checks.CatalogReport"},
                "healthy": {"type": "boolean"},
                "schema": {"$ref": "#/definitions/checks.SchemaReport"},
                "schema_error": {"type": "string"},
                "structure": {"$ref": "#/definitions/integrity.StructureReport"}
            }
        },
        "integrity.StructureReport": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "missing": {"type": "array", "items": {"type": "string"}},
                "status": {"type": "string"}
            }
        },
        "models.Job": {
            "type": "object",
            "properties": {
                "job_id": {"type": "string"},
                "record_id": {"type": "string"},
                "status": {"type": "string", "enum": ["Scheduled", "In Progress", "Completed", "Cancelled"]},
                "updated_at": {"type": "string"}
            }
        },
        "models.JobEvent": {
            "type": "object",
            "properties": {
                "job_id": {"type": "string"},
                "record_id": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "models.PropertyReport": {
            "type": "object",
            "properties": {
                "active": {"type": "array", "items": {"$ref": "#/definitions/reconcile.Record"}},
                "failed": {"type": "integer"},
                "operations": {"type": "integer"},
                "property_id": {"type": "string"},
                "summary": {"$ref": "#/definitions/reconcile.Summary"},
                "written": {"type": "integer"}
            }
        },
        "models.RunReport": {
            "type": "object",
            "properties": {
                "dry_run": {"type": "boolean"},
                "duration": {"type": "string"},
                "failed_feeds": {"type": "array", "items": {"type": "string"}},
                "finished_at": {"type": "string"},
                "properties": {"type": "array", "items": {"$ref": "#/definitions/models.PropertyReport"}},
                "run_id": {"type": "string"},
                "started_at": {"type": "string"},
                "summary": {"$ref": "#/definitions/reconcile.Summary"}
            }
        },
        "reconcile.Flags": {
            "type": "object",
            "properties": {
                "long_stay": {"type": "boolean"},
                "overlaps_other": {"type": "boolean"},
                "owner_arriving": {"type": "boolean"},
                "same_day_turnover": {"type": "boolean"}
            }
        },
        "reconcile.Record": {
            "type": "object",
            "properties": {
                "checkin": {"type": "string"},
                "checkout": {"type": "string"},
                "composite_uid": {"type": "string"},
                "entry_type": {"type": "string", "enum": ["Reservation", "Block"]},
                "flags": {"$ref": "#/definitions/reconcile.Flags"},
                "last_seen": {"type": "string"},
                "missing_count": {"type": "integer"},
                "missing_since": {"type": "string"},
                "property_id": {"type": "string"},
                "record_id": {"type": "string"},
                "service_type": {"type": "string"},
                "source": {"type": "string"},
                "status": {"type": "string", "enum": ["New", "Modified", "Old", "Removed"]},
                "supersedes": {"type": "string"}
            }
        },
        "reconcile.Summary": {
            "type": "object",
            "properties": {
                "duplicates_ignored": {"type": "integer"},
                "errors": {"type": "integer"},
                "feeds_or_files_processed": {"type": "integer"},
                "identifier_changes_detected": {"type": "integer"},
                "missing_incremented": {"type": "integer"},
                "modified": {"type": "integer"},
                "new": {"type": "integer"},
                "protected": {"type": "integer"},
                "removed": {"type": "integer"},
                "unchanged": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Turnover Sync API",
	Description:      "Reservation reconciliation for property turnover scheduling.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
