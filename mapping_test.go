package main

import (
	"reflect"
	"testing"
)

func locationSchema() *TableSchema {
	return newTableSchema(10, "Location", []FieldInfo{
		{ID: 100, Name: "Name", Type: "text", Primary: true},
		{ID: 101, Name: "notes", Type: "long_text"},
		{ID: 102, Name: "latitude_n", Type: "number"},
		{ID: 103, Name: "linked_roles", Type: linkRowType, LinkedTableID: 11},
	})
}

func TestFieldMapping(t *testing.T) {
	mapping := fieldMapping("Location", locationSchema())

	want := map[string]string{
		"location":     "field_100",
		"notes":        "field_101",
		"latitude (N)": "field_102",
	}
	// longitude_e and admin_level_country are in the static table but not in
	// this schema; they must be dropped, not fail.
	if !reflect.DeepEqual(mapping, want) {
		t.Errorf("fieldMapping(Location) = %v, want %v", mapping, want)
	}
}

func TestFieldMapping_UnknownTable(t *testing.T) {
	schema := newTableSchema(99, "Mystery", []FieldInfo{{ID: 1, Name: "Name", Type: "text"}})
	if mapping := fieldMapping("Mystery", schema); mapping != nil {
		t.Errorf("fieldMapping for unmapped table = %v, want nil", mapping)
	}
}

func TestTransformRecord_MappedFields(t *testing.T) {
	schema := locationSchema()
	mapping := fieldMapping("Location", schema)

	record := map[string]any{
		"Id":        float64(1),
		"CreatedAt": "2023-01-01T00:00:00Z",
		"UpdatedAt": "2023-01-02T00:00:00Z",
		"location":  "Lagos",
		"notes":     "port city",
	}

	got := transformRecord(record, mapping, schema)
	want := map[string]any{"field_100": "Lagos", "field_101": "port city"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("transformRecord = %v, want %v", got, want)
	}
}

func TestTransformRecord_SkipsRelationshipPayloads(t *testing.T) {
	schema := locationSchema()
	mapping := fieldMapping("Location", schema)

	record := map[string]any{
		"Id":       float64(1),
		"location": "Lagos",
		"_nc_m2m_role_locations": []any{map[string]any{"role_id": float64(3)}},
		"author":   map[string]any{"Id": float64(9)},
	}

	got := transformRecord(record, mapping, schema)
	want := map[string]any{"field_100": "Lagos"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("transformRecord = %v, want %v", got, want)
	}
}

func TestTransformRecord_NeverWritesLinkFields(t *testing.T) {
	schema := locationSchema()

	// Even a direct static mapping onto a link field must be refused.
	mapping := map[string]string{"roles": "field_103"}
	record := map[string]any{"roles": "3,4,5"}
	if got := transformRecord(record, mapping, schema); len(got) != 0 {
		t.Errorf("transformRecord wrote to a link field: %v", got)
	}

	// Automatic name matching must refuse them too.
	record = map[string]any{"linked_roles": "3"}
	if got := transformRecord(record, nil, schema); len(got) != 0 {
		t.Errorf("automatic mapping wrote to a link field: %v", got)
	}
}

func TestTransformRecord_AutomaticFallback(t *testing.T) {
	schema := locationSchema()

	// "notes" has no static mapping here but matches a schema field by name.
	record := map[string]any{"notes": "found automatically"}
	got := transformRecord(record, nil, schema)
	want := map[string]any{"field_101": "found automatically"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("transformRecord = %v, want %v", got, want)
	}
}

func TestTransformRecord_RejectsForeignKeyLookalikes(t *testing.T) {
	schema := newTableSchema(10, "Location", []FieldInfo{
		{ID: 100, Name: "Name", Type: "text", Primary: true},
		{ID: 104, Name: "people_id", Type: "number"},
	})

	// A bare integer under a relation-hinting name is a leaked NocoDB join
	// id; the automatic path must not write it.
	record := map[string]any{"people_id": float64(4)}
	if got := transformRecord(record, nil, schema); len(got) != 0 {
		t.Errorf("transformRecord wrote a foreign-key lookalike: %v", got)
	}
}

func TestTransformRecord_NothingToImport(t *testing.T) {
	schema := locationSchema()
	record := map[string]any{"Id": float64(1), "unmapped_column": "value"}
	if got := transformRecord(record, fieldMapping("Location", schema), schema); len(got) != 0 {
		t.Errorf("transformRecord = %v, want empty", got)
	}
}

func TestLooksLikeForeignKey(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"people_id", float64(4), true},
		{"entity_ref", "12", true},
		{"location_id", 7, true},
		{"people_id", "Ada", false},
		{"people_id", 4.5, false},
		{"amount", float64(4), false},
		{"notes", "12", false},
	}
	for _, tt := range tests {
		if got := looksLikeForeignKey(tt.name, tt.value); got != tt.want {
			t.Errorf("looksLikeForeignKey(%q, %v) = %t, want %t", tt.name, tt.value, got, tt.want)
		}
	}
}
