package main

// NocoDB export conventions: many-to-many join payloads arrive under keys
// carrying this prefix, and single-object references arrive as nested
// objects with their own "Id".
const (
	m2mPrefix    = "_nc_m2m_"
	objectPrefix = "object_"
)

// metadataKeys are NocoDB bookkeeping fields that never migrate as data.
var metadataKeys = map[string]bool{
	"Id":        true,
	"CreatedAt": true,
	"UpdatedAt": true,
}

// extractRelationships scans a raw source record and pulls out its
// relationship payloads. Many-to-many keys pass their join-row list through
// unchanged; a nested object carrying an "Id" is re-keyed as
// "object_<field>" with a single-element list holding that identifier.
// Plain attribute values are left for the field mapping path.
func extractRelationships(record map[string]any) map[string][]any {
	relationships := make(map[string][]any)

	for key, value := range record {
		if hasM2MPrefix(key) {
			if list, ok := value.([]any); ok {
				relationships[key] = list
			}
			continue
		}
		if obj, ok := value.(map[string]any); ok {
			if id, ok := obj["Id"]; ok {
				relationships[objectPrefix+key] = []any{id}
			}
		}
	}

	return relationships
}

func hasM2MPrefix(key string) bool {
	return len(key) >= len(m2mPrefix) && key[:len(m2mPrefix)] == m2mPrefix
}

// sourceRowID extracts the numeric NocoDB row id from a decoded JSON value.
// Exports decode ids as float64; join rows occasionally carry them as
// strings.
func sourceRowID(value any) (int, bool) {
	switch v := value.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case string:
		var id int
		for _, r := range v {
			if r < '0' || r > '9' {
				return 0, false
			}
			id = id*10 + int(r-'0')
		}
		if v == "" {
			return 0, false
		}
		return id, true
	default:
		return 0, false
	}
}

// recordSourceID returns the record's own NocoDB row id.
func recordSourceID(record map[string]any) (int, bool) {
	id, ok := record["Id"]
	if !ok {
		return 0, false
	}
	return sourceRowID(id)
}
