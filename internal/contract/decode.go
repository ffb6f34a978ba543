// Package contract decodes detection payloads at the edge of the pipeline and
// encodes results for callers.
package contract

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/a3tai/mcp-form-pipeline/internal/fields"
	"github.com/a3tai/mcp-form-pipeline/internal/pipeline"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

const (
	documentSchema = "document.schema.json"
	fieldsSchema   = "fields.schema.json"
)

var compileSchemas = sync.OnceValues(func() (map[string]*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	names := []string{documentSchema, fieldsSchema}
	for _, name := range names {
		raw, err := schemaFiles.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", name, err)
		}
		if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("failed to load schema %s: %w", name, err)
		}
	}

	compiled := make(map[string]*jsonschema.Schema, len(names))
	for _, name := range names {
		schema, err := compiler.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
		}
		compiled[name] = schema
	}
	return compiled, nil
})

// DecodeDocument reads a detection payload. Both the object form
// {"documentId": ..., "detections": [...]} and a bare detection array are
// accepted. Structural problems are returned as *fields.ContractError.
func DecodeDocument(r io.Reader) (*pipeline.Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fields.NewContractError(fields.ContractErrorMissingPayload, -1, "", "payload is empty")
	}
	if raw[0] == '[' {
		raw = append(append([]byte(`{"detections":`), raw...), '}')
	}

	if err := validate(documentSchema, raw); err != nil {
		return nil, err
	}

	var doc pipeline.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fields.NewContractError(fields.ContractErrorSchema, -1, "", err.Error())
	}
	if doc.Detections == nil {
		doc.Detections = []fields.RawDetection{}
	}
	return &doc, nil
}

// DecodeFields reads already classified fields for standalone validation.
// Missing ids are numbered by position and missing display names derived
// from the field type.
func DecodeFields(r io.Reader) ([]fields.Field, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fields.NewContractError(fields.ContractErrorMissingPayload, -1, "", "payload is empty")
	}

	if err := validate(fieldsSchema, raw); err != nil {
		return nil, err
	}

	var out []fields.Field
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fields.NewContractError(fields.ContractErrorSchema, -1, "", err.Error())
	}
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = "field-" + strconv.Itoa(i+1)
		}
		if out[i].DisplayName == "" {
			out[i].DisplayName = fields.DisplayName(out[i].RawLabel, out[i].FieldType)
		}
		out[i].Order = i
	}
	return out, nil
}

func validate(schemaName string, raw []byte) error {
	schemas, err := compileSchemas()
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fields.NewContractError(fields.ContractErrorSchema, -1, "", "malformed JSON: "+err.Error())
	}

	if err := schemas[schemaName].Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return schemaError(ve)
		}
		return fields.NewContractError(fields.ContractErrorSchema, -1, "", err.Error())
	}
	return nil
}

// schemaError reports the first leaf cause, which names the offending value
func schemaError(ve *jsonschema.ValidationError) *fields.ContractError {
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}

	index, field := locate(leaf.InstanceLocation)
	return fields.NewContractError(fields.ContractErrorSchema, index, field, leaf.Message)
}

// locate splits a JSON pointer like /detections/3/geometry/row into the
// item index and the path below it
func locate(pointer string) (int, string) {
	parts := strings.Split(strings.TrimPrefix(pointer, "/"), "/")
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		return n, strings.Join(parts[i+1:], ".")
	}
	return -1, strings.Join(parts, ".")
}
