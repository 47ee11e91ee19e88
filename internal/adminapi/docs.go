package adminapi

// swaggerDoc is the hand-maintained OpenAPI document for this admin
// surface's own debug endpoints (not the OPC UA services themselves,
// which are a binary protocol and have no REST description). Kept in
// sync with the @Summary/@Router annotations on the handlers in
// server.go.
const swaggerDoc = `{
  "swagger": "2.0",
  "info": {
    "title": "uacore admin API",
    "description": "Operator HTTP surface standing next to the OPC UA binary listener: health, metrics and read-only node debugging.",
    "version": "1.0"
  },
  "basePath": "/",
  "paths": {
    "/healthz": {
      "get": {
        "tags": ["ops"],
        "summary": "Liveness probe",
        "responses": {
          "200": { "description": "OK" }
        }
      }
    },
    "/debug/nodes/{namespace}": {
      "get": {
        "tags": ["debug"],
        "summary": "List nodes in a namespace",
        "parameters": [
          {
            "name": "namespace",
            "in": "path",
            "required": true,
            "type": "integer"
          }
        ],
        "responses": {
          "200": { "description": "OK" },
          "400": { "description": "invalid namespace" },
          "503": { "description": "nodestore not wired" }
        }
      }
    }
  }
}`
