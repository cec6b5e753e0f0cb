package main

import "fmt"

// CamillaDataset description: expected destination tables, phase-ordered
// import list, per-table field-name mappings, and relationship routing.
// These literals are the dataset's contract with the destination database;
// everything else in the migrator is dataset-agnostic.

// expectedTables must all exist in the destination database before a
// migration can start.
var expectedTables = []string{
	"Location", "Role", "Source", "People", "Entity",
	"Infrastructure", "Licenses", "Ecosystem", "Transactions",
	"Actions-timeline", "Discursive-oil", "Related-events", "Memory",
}

// importStep pairs a source export file with its destination table.
type importStep struct {
	File  string
	Table string
}

// importOrder fixes the per-table dependency order. Relationship resolution
// reads only the identifier registry, so a table's link targets must have
// been imported in an earlier phase.
var importOrder = []importStep{
	// Phase 1: foundation tables (no dependencies)
	{"Location_data.json", "Location"},
	{"Role_data.json", "Role"},
	{"Source_data.json", "Source"},

	// Phase 2: core entities
	{"People_data.json", "People"},
	{"Entity_data.json", "Entity"},

	// Phase 3: infrastructure and licensing
	{"Infrastructure_data.json", "Infrastructure"},
	{"Licenses_data.json", "Licenses"},
	{"Ecosystem_data.json", "Ecosystem"},

	// Phase 4: transactional data
	{"Transactions_data.json", "Transactions"},
	{"Actions-timeline_data.json", "Actions-timeline"},

	// Phase 5: communication and events
	{"Discursive-oil_data.json", "Discursive-oil"},
	{"Related-events_data.json", "Related-events"},
	{"Memory_data.json", "Memory"},
}

// fieldMappings lists, per table, the source field names with a known
// destination field. Destination names are resolved against the loaded
// schema case-insensitively; unmapped source fields fall back to automatic
// name matching at import time.
var fieldMappings = map[string]map[string]string{
	"Location": {
		"location":            "Name",
		"notes":               "notes",
		"latitude (N)":        "latitude_n",
		"longitude (E)":       "longitude_e",
		"admin_level_country": "admin_level_country",
	},
	"People": {
		"first_name":          "Name",
		"last_name1":          "last_name1",
		"notes":               "notes",
		"discursive_oil_id":   "discursive_oil_id",
		"discursive_oil_id1":  "discursive_oil_id1",
		"attachment":          "attachment",
		"discursive_oil":      "discursive_oil",
		"discursive_oil_copy": "discursive_oil_copy",
	},
	"Entity": {
		"name":                        "Name",
		"operating_locations":         "operating_locations",
		"entity_national_affiliation": "entity_national_affiliation",
		"descriptive_name":            "descriptive_name",
		"entity_type (past)":          "entity_type_past",
		"established-date":            "established_date",
		"activity focus":              "activity_focus",
		"notes":                       "notes",
		"current status":              "current_status",
		"Attachment":                  "attachment",
	},
	"Role": {
		"role":          "Name",
		"title":         "title",
		"description":   "description",
		"department":    "department",
		"subdepartment": "subdepartment",
		"notes":         "notes",
		"start_date":    "start_date",
		"end_date":      "end_date",
	},
	"Source": {
		"title":             "Name",
		"unique-identifier": "unique_identifier",
		"NB":                "nb",
		"Source_date":       "source_date",
		"author":            "author",
		"type-source":       "type_source",
	},
	"Infrastructure": {
		"infrastructure_name": "Name",
		"infrastructure_type": "infrastructure_type",
		"notes":               "notes",
		"Attachment":          "attachment",
		"status":              "status",
	},
	"Licenses": {
		"start-date":          "start_date",
		"geographic_scope":    "geographic_scope",
		"Exploration License": "exploration_license",
	},
	"Ecosystem": {
		"title":                         "Name",
		"consequence_type":              "consequence_type",
		"consequence_positive_negative": "consequence_positive_negative",
		"consequence_communities":       "consequence_communities",
		"notes":                         "notes",
	},
	"Transactions": {
		"Title":              "Name",
		"Transaction type":   "transaction_type",
		"Date_recorded":      "date_recorded",
		"notes":              "notes",
		"regulated-activity": "regulated_activity",
	},
	"Actions-timeline": {
		"title":          "Name",
		"start-date":     "start_date",
		"end-date":       "end_date",
		"product":        "product",
		"type-of-action": "type_of_action",
	},
	"Discursive-oil": {
		"Title":              "Name",
		"communication_date": "communication_date",
		"related_feeling":    "related_feeling",
		"notes":              "notes",
		"obsidian_reference": "obsidian_reference",
		"type of source":     "type_of_source",
		"author":             "author",
		"recipient":          "recipient",
	},
	"Related-events": {
		"event_title":      "Name",
		"event_date_start": "event_date_start",
		"event_date_end":   "event_date_end",
		"event_type":       "event_type",
		"source_obsidian":  "source_obsidian",
		"notes":            "notes",
	},
	"Memory": {
		"memory_title":  "Name",
		"memory_type":   "memory_type",
		"date_recorded": "date_recorded",
		"description":   "description",
		"notes":         "notes",
	},
}

// relationshipRoutes lists, per table, which extracted relationship payload
// keys route to which destination link field, and which source table their
// identifiers reference. Join-row payloads name the attribute carrying the
// foreign id; object payloads carry the id directly.
var relationshipRoutes = map[string]map[string]relationshipRoute{
	"Infrastructure": {
		"_nc_m2m_infrastructure_locations": {
			FieldName:   "linked_location",
			SourceTable: "Location",
			IDField:     "location_id",
		},
		"_nc_m2m_entity_infrastructures": {
			FieldName:   "linked_entities",
			SourceTable: "Entity",
			IDField:     "entity_id",
		},
		"_nc_m2m_infrastructure_discursive_oils": {
			FieldName:   "linked_discursive_oil",
			SourceTable: "Discursive-oil",
			IDField:     "discursive_oil_id",
		},
		"_nc_m2m_ecosystem_conse_infrastructures": {
			FieldName:   "linked_ecosystem",
			SourceTable: "Ecosystem",
			IDField:     "ecosystem_id",
		},
		"_nc_m2m_related_events_infrastructures": {
			FieldName:   "linked_related_events",
			SourceTable: "Related-events",
			IDField:     "related_events_id",
		},
	},
	"Transactions": {
		"_nc_m2m_transactions_entities": {
			FieldName:   "linked_entities",
			SourceTable: "Entity",
			IDField:     "entity_id",
		},
		"_nc_m2m_transactions_people": {
			FieldName:   "linked_people",
			SourceTable: "People",
			IDField:     "people_id",
		},
		"_nc_m2m_transactions_primary_sources": {
			FieldName:   "linked_sources",
			SourceTable: "Source",
			IDField:     "primary_sources_id",
		},
		"_nc_m2m_transactions_discursive_oils": {
			FieldName:   "linked_discursive_oil",
			SourceTable: "Discursive-oil",
			IDField:     "discursive_oil_id",
		},
	},
	"Discursive-oil": {
		"object_author": {
			FieldName:   "linked_author",
			SourceTable: "People",
			DirectID:    true,
		},
		"object_recipient": {
			FieldName:   "linked_recipient",
			SourceTable: "People",
			DirectID:    true,
		},
		"_nc_m2m_discursive_oil_primary_sources": {
			FieldName:   "linked_sources",
			SourceTable: "Source",
			IDField:     "primary_sources_id",
		},
	},
	"People": {
		"_nc_m2m_people_roles": {
			FieldName:   "linked_roles",
			SourceTable: "Role",
			IDField:     "role_id",
		},
		"_nc_m2m_related_events_people": {
			FieldName:   "linked_related_events",
			SourceTable: "Related-events",
			IDField:     "related_events_id",
		},
		"_nc_m2m_actions-timelin_people": {
			FieldName:   "linked_actions_timeline",
			SourceTable: "Actions-timeline",
			IDField:     "actions_timeline_id",
		},
		"_nc_m2m_transactions_people": {
			FieldName:   "linked_transactions",
			SourceTable: "Transactions",
			IDField:     "transactions_id",
		},
	},
	"Role": {
		"_nc_m2m_people_roles": {
			FieldName:   "linked_people",
			SourceTable: "People",
			IDField:     "people_id",
		},
		"_nc_m2m_role_entities": {
			FieldName:   "linked_entities",
			SourceTable: "Entity",
			IDField:     "entity_id",
		},
		"_nc_m2m_role_locations": {
			FieldName:   "linked_locations",
			SourceTable: "Location",
			IDField:     "location_id",
		},
	},
	"Actions-timeline": {
		"_nc_m2m_actions-timelin_people": {
			FieldName:   "linked_people",
			SourceTable: "People",
			IDField:     "people_id",
		},
	},
	"Related-events": {
		"_nc_m2m_related_events_people": {
			FieldName:   "linked_people",
			SourceTable: "People",
			IDField:     "people_id",
		},
		"_nc_m2m_related_events_infrastructures": {
			FieldName:   "linked_infrastructures",
			SourceTable: "Infrastructure",
			IDField:     "infrastructure_id",
		},
	},
}

// fkHintWords flag automatic-mapping fallback fields whose bare integer
// value paired with a table-like name is almost certainly a NocoDB foreign
// key, which must only ever be set through relationship resolution.
var fkHintWords = []string{"people", "role", "entity", "source", "infrastructure", "location"}

// linkFieldSeed describes a link_row field the provisioner adds after all
// tables exist, since both endpoint tables are needed to create one.
type linkFieldSeed struct {
	Name        string
	TargetTable string
}

// provisionLinkFields lists the relationship fields per table for the
// one-time destination provisioning pass.
var provisionLinkFields = map[string][]linkFieldSeed{
	"Infrastructure": {
		{"linked_location", "Location"},
		{"linked_entities", "Entity"},
		{"linked_discursive_oil", "Discursive-oil"},
		{"linked_ecosystem", "Ecosystem"},
		{"linked_related_events", "Related-events"},
	},
	"Transactions": {
		{"linked_entities", "Entity"},
		{"linked_people", "People"},
		{"linked_sources", "Source"},
		{"linked_discursive_oil", "Discursive-oil"},
	},
	"Discursive-oil": {
		{"linked_author", "People"},
		{"linked_recipient", "People"},
		{"linked_sources", "Source"},
	},
	"People": {
		{"linked_roles", "Role"},
		{"linked_related_events", "Related-events"},
		{"linked_actions_timeline", "Actions-timeline"},
		{"linked_transactions", "Transactions"},
	},
	"Role": {
		{"linked_people", "People"},
		{"linked_entities", "Entity"},
		{"linked_locations", "Location"},
	},
	"Related-events": {
		{"linked_people", "People"},
		{"linked_infrastructures", "Infrastructure"},
	},
	"Actions-timeline": {
		{"linked_people", "People"},
	},
}

// validateDatasetConfig checks the literal tables for internal consistency.
// Field names referenced here are only resolvable once schemas are loaded,
// so name drift against the live database is logged at import time instead.
func validateDatasetConfig() error {
	known := make(map[string]bool, len(expectedTables))
	for _, name := range expectedTables {
		known[name] = true
	}

	seen := make(map[string]bool, len(importOrder))
	for _, step := range importOrder {
		if !known[step.Table] {
			return fmt.Errorf("import order references unknown table %q", step.Table)
		}
		if seen[step.Table] {
			return fmt.Errorf("import order lists table %q twice", step.Table)
		}
		seen[step.Table] = true
	}
	for _, name := range expectedTables {
		if !seen[name] {
			return fmt.Errorf("expected table %q missing from import order", name)
		}
	}

	for table, mapping := range fieldMappings {
		if !known[table] {
			return fmt.Errorf("field mappings reference unknown table %q", table)
		}
		for source, dest := range mapping {
			if source == "" || dest == "" {
				return fmt.Errorf("field mapping for %q has an empty entry", table)
			}
		}
	}

	for table, routes := range relationshipRoutes {
		if !known[table] {
			return fmt.Errorf("relationship routes reference unknown table %q", table)
		}
		for key, route := range routes {
			if !known[route.SourceTable] {
				return fmt.Errorf("route %s/%s references unknown source table %q", table, key, route.SourceTable)
			}
			if !route.DirectID && route.IDField == "" {
				return fmt.Errorf("route %s/%s needs an id field or the direct-id flag", table, key)
			}
		}
	}

	for table, seeds := range provisionLinkFields {
		if !known[table] {
			return fmt.Errorf("provision link fields reference unknown table %q", table)
		}
		for _, seed := range seeds {
			if !known[seed.TargetTable] {
				return fmt.Errorf("provision field %s.%s targets unknown table %q", table, seed.Name, seed.TargetTable)
			}
		}
	}

	return nil
}
