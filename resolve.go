package main

import "log"

// relationshipRoute describes how one extracted relationship key maps onto
// the destination: which link field receives the ids and which source table
// the payload's identifiers reference.
type relationshipRoute struct {
	FieldName   string // destination link field name
	SourceTable string // table the payload ids belong to
	IDField     string // join-row attribute carrying the source id
	DirectID    bool   // payload entries are bare ids, not join rows
}

// resolveRelationships converts extracted relationship payloads into
// destination link-field updates, translating source row ids through the
// identifier registry. Resolution is deliberately best-effort: a reference
// whose target was never imported is dropped so the record itself still
// migrates; droppedCount reports how many references were lost that way.
// Missing link fields (schema drift) skip the whole key.
func resolveRelationships(payloads map[string][]any, tableName string, schema *TableSchema, registry *idRegistry) (map[string][]int, int) {
	routes := relationshipRoutes[tableName]
	if len(routes) == 0 || len(payloads) == 0 {
		return nil, 0
	}

	updates := make(map[string][]int)
	dropped := 0

	for key, payload := range payloads {
		route, ok := routes[key]
		if !ok || len(payload) == 0 {
			continue
		}

		field := schema.FieldByName(route.FieldName)
		if field == nil {
			log.Printf("  link field %q missing from %s schema, skipping %s", route.FieldName, tableName, key)
			continue
		}

		var resolved []int
		for _, entry := range payload {
			sourceID, ok := routeSourceID(entry, route)
			if !ok {
				continue
			}
			destID, ok := registry.Lookup(route.SourceTable, sourceID)
			if !ok {
				dropped++
				continue
			}
			resolved = append(resolved, destID)
		}

		if len(resolved) > 0 {
			updates[fieldKey(field.ID)] = resolved
		}
	}

	if len(updates) == 0 {
		return nil, dropped
	}
	return updates, dropped
}

// routeSourceID pulls the referenced source row id out of one payload
// entry, either directly or via the join-row attribute the route names.
func routeSourceID(entry any, route relationshipRoute) (int, bool) {
	if route.DirectID {
		return sourceRowID(entry)
	}
	row, ok := entry.(map[string]any)
	if !ok {
		return 0, false
	}
	raw, ok := row[route.IDField]
	if !ok {
		return 0, false
	}
	return sourceRowID(raw)
}
