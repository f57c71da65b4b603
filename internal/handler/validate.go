package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const maxJSONBody = 1 << 20

const measurementsSchema = `{
	"type": "object",
	"additionalProperties": {"type": "string", "maxLength": 16}
}`

const photosSchema = `{
	"type": "array",
	"maxItems": 5,
	"items": {
		"type": "object",
		"required": ["url"],
		"properties": {
			"url": {"type": "string", "minLength": 1},
			"name": {"type": "string"},
			"uploadedAt": {"type": "string", "format": "date-time"}
		}
	}
}`

const orderSchema = `{
	"type": "object",
	"required": ["garmentType"],
	"properties": {
		"garmentType": {"type": "string", "minLength": 1, "maxLength": 100},
		"fabric": {"type": "string", "maxLength": 200},
		"specialInstructions": {"type": "string", "maxLength": 2000},
		"urgency": {"enum": ["urgent", "normal", "relaxed"]},
		"measurements": ` + measurementsSchema + `,
		"inspirationPhotos": ` + photosSchema + `,
		"rememberMeasurements": {"type": "boolean"}
	}
}`

const manualOrderSchema = `{
	"type": "object",
	"required": ["garmentType", "customerName"],
	"properties": {
		"garmentType": {"type": "string", "minLength": 1, "maxLength": 100},
		"fabric": {"type": "string", "maxLength": 200},
		"specialInstructions": {"type": "string", "maxLength": 2000},
		"urgency": {"enum": ["urgent", "normal", "relaxed"]},
		"measurements": ` + measurementsSchema + `,
		"customerId": {"type": "string"},
		"customerName": {"type": "string", "minLength": 1, "maxLength": 200},
		"customerPhone": {"type": "string", "maxLength": 50},
		"customerEmail": {"type": "string", "maxLength": 200},
		"amount": {"type": ["number", "string"]},
		"dueDate": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"}
	}
}`

const statusSchema = `{
	"type": "object",
	"required": ["status"],
	"properties": {
		"status": {"enum": ["pending", "confirmed", "in_progress", "ready", "delivered", "cancelled"]},
		"progress": {"type": "integer", "minimum": 0, "maximum": 100}
	}
}`

const progressSchema = `{
	"type": "object",
	"required": ["progress"],
	"properties": {
		"progress": {"type": "integer", "minimum": 0, "maximum": 100}
	}
}`

const measurementUpdateSchema = `{
	"type": "object",
	"required": ["measurements"],
	"properties": {
		"garmentType": {"type": "string", "minLength": 1},
		"measurements": ` + measurementsSchema + `
	}
}`

var (
	orderLoader             = gojsonschema.NewStringLoader(orderSchema)
	manualOrderLoader       = gojsonschema.NewStringLoader(manualOrderSchema)
	statusLoader            = gojsonschema.NewStringLoader(statusSchema)
	progressLoader          = gojsonschema.NewStringLoader(progressSchema)
	measurementUpdateLoader = gojsonschema.NewStringLoader(measurementUpdateSchema)
)

var errInvalidJSON = errors.New("invalid json")

func validateJSONSchema(schemaLoader gojsonschema.JSONLoader, body []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidJSON, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("request does not conform to schema: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// decodeValid reads the body, checks it against schema and decodes it into dst.
func decodeValid(r *http.Request, schema gojsonschema.JSONLoader, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxJSONBody))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := validateJSONSchema(schema, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidJSON, err)
	}
	return nil
}
