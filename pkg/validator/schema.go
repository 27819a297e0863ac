package validator

import "github.com/invopop/jsonschema"

// schemaMissingOrMistyped walks a tool catalog entry's generated JSON
// Schema (pkg/config.BuildToolCatalog) and reports required properties
// absent from params, or present but of the wrong JSON type.
func schemaMissingOrMistyped(schema *jsonschema.Schema, params map[string]any) (missing, wrongType []string) {
	if schema == nil {
		return nil, nil
	}
	required := make(map[string]bool, len(schema.Required))
	for _, r := range schema.Required {
		required[r] = true
	}

	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		name, prop := pair.Key, pair.Value
		val, ok := params[name]
		if !ok {
			if required[name] {
				missing = append(missing, name)
			}
			continue
		}
		if !matchesKind(val, normalizeJSONType(prop.Type)) {
			wrongType = append(wrongType, name)
		}
	}
	return missing, wrongType
}

func normalizeJSONType(t string) string {
	if t == "boolean" {
		return "bool"
	}
	return t
}
