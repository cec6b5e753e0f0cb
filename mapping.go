package main

import (
	"log"
	"strings"
)

// fieldMapping resolves the static source→destination field-name table for
// one table into write keys, matching destination names against the loaded
// schema case-insensitively. Names the schema no longer carries are dropped
// with a diagnostic; the destination schema may have evolved since the
// mapping tables were written.
func fieldMapping(tableName string, schema *TableSchema) map[string]string {
	base := fieldMappings[tableName]
	if len(base) == 0 {
		return nil
	}

	mapping := make(map[string]string, len(base))
	for sourceField, destName := range base {
		field := schema.FieldByName(destName)
		if field == nil {
			log.Printf("  field %q not found in %s, dropping mapping for %q", destName, tableName, sourceField)
			continue
		}
		mapping[sourceField] = fieldKey(field.ID)
	}
	return mapping
}

// transformRecord produces the plain-field payload for one source record.
// Relationship payloads and NocoDB metadata are excluded here; link fields
// are only ever written through relationship resolution. Unmapped source
// fields fall back to automatic name matching, except when the match is a
// link field or the value looks like a bare foreign-key integer with a
// relation-hinting name. An empty result means there is nothing to import.
func transformRecord(record map[string]any, mapping map[string]string, schema *TableSchema) map[string]any {
	cleaned := make(map[string]any)

	for sourceField, value := range record {
		if metadataKeys[sourceField] || hasM2MPrefix(sourceField) {
			continue
		}
		if obj, ok := value.(map[string]any); ok {
			if _, ok := obj["Id"]; ok {
				continue // single-object reference, handled by the resolver
			}
		}

		var field *FieldInfo
		if key, ok := mapping[sourceField]; ok {
			if id, ok := fieldIDFromKey(key); ok {
				field = schema.FieldByID(id)
			}
		} else {
			field = schema.FieldByName(sourceField)
			if field != nil && looksLikeForeignKey(sourceField, value) {
				continue
			}
		}
		if field == nil {
			continue // unmapped and no automatic match
		}
		if field.Type == linkRowType {
			continue
		}

		if v := transformValue(value, sourceField, field); v != nil {
			cleaned[fieldKey(field.ID)] = v
		}
	}

	return cleaned
}

// looksLikeForeignKey reports whether an unmapped field carries a bare
// integer under a name hinting at another table. NocoDB exports leak join
// ids that way; writing them as plain values would corrupt the destination.
func looksLikeForeignKey(name string, value any) bool {
	switch v := value.(type) {
	case float64:
		if v != float64(int(v)) {
			return false
		}
	case int, int64:
	case string:
		if v == "" {
			return false
		}
		for _, r := range v {
			if r < '0' || r > '9' {
				return false
			}
		}
	default:
		return false
	}

	lower := strings.ToLower(name)
	for _, word := range fkHintWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
