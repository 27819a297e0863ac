package config

import (
	"fmt"

	"github.com/invopop/jsonschema"
)

// ToolCatalogEntry is the registered shape of one tool, with its JSON
// Schema generated once at load time instead of per-call.
type ToolCatalogEntry struct {
	CapabilityTag     string
	DurationCeilingMs int64
	MemoryCeilingMB   float64
	RequiredParams    map[string]string
	Schema            *jsonschema.Schema
}

// BuildToolCatalog turns the YAML-facing RawToolCatalogEntry map into
// ToolCatalogEntry values carrying a generated JSON Schema for their
// parameters, used by the Tool-Call Validator's Protocol dimension.
func BuildToolCatalog(raw map[string]RawToolCatalogEntry) (map[string]ToolCatalogEntry, error) {
	out := make(map[string]ToolCatalogEntry, len(raw))
	for name, e := range raw {
		schema, err := schemaForParams(name, e.RequiredParams, e.OptionalParams)
		if err != nil {
			return nil, err
		}
		out[name] = ToolCatalogEntry{
			CapabilityTag:     e.CapabilityTag,
			DurationCeilingMs: e.DurationCeilingMs,
			MemoryCeilingMB:   e.MemoryCeilingMB,
			RequiredParams:    e.RequiredParams,
			Schema:            schema,
		}
	}
	return out, nil
}

func schemaForParams(toolName string, required, optional map[string]string) (*jsonschema.Schema, error) {
	props := jsonschema.NewProperties()
	var requiredNames []string
	for name, kind := range required {
		t, err := jsonSchemaType(toolName, name, kind)
		if err != nil {
			return nil, err
		}
		props.Set(name, &jsonschema.Schema{Type: t})
		requiredNames = append(requiredNames, name)
	}
	for name, kind := range optional {
		t, err := jsonSchemaType(toolName, name, kind)
		if err != nil {
			return nil, err
		}
		props.Set(name, &jsonschema.Schema{Type: t})
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   requiredNames,
	}, nil
}

func jsonSchemaType(toolName, paramName, kind string) (string, error) {
	switch kind {
	case "string", "number", "bool", "boolean", "object", "array":
		if kind == "bool" {
			return "boolean", nil
		}
		return kind, nil
	default:
		return "", fmt.Errorf("config: tool_catalog[%s].params[%s]: unknown kind %q", toolName, paramName, kind)
	}
}
