package main

import (
	"fmt"
	"strings"
)

// FieldInfo represents a single field of a Baserow table.
type FieldInfo struct {
	ID            int    // field identifier, unique within a table
	Name          string // display name, non-unique across tables
	Type          string // e.g. "text", "long_text", "date", "boolean", "number", "link_row"
	Primary       bool
	Required      bool
	LinkedTableID int // only set when Type is "link_row"
}

// TableSchema holds the full field layout of one Baserow table.
// Loaded once per table after discovery and cached for the run; the
// destination schema does not change during a migration.
type TableSchema struct {
	TableID      int
	TableName    string
	Fields       []FieldInfo
	PrimaryField *FieldInfo // at most one field carries the primary flag
}

// newTableSchema builds a TableSchema and caches its primary field.
func newTableSchema(tableID int, tableName string, fields []FieldInfo) *TableSchema {
	s := &TableSchema{
		TableID:   tableID,
		TableName: tableName,
		Fields:    fields,
	}
	for i := range s.Fields {
		if s.Fields[i].Primary {
			s.PrimaryField = &s.Fields[i]
			break
		}
	}
	return s
}

// FieldByName finds a field by name, case-insensitively.
func (s *TableSchema) FieldByName(name string) *FieldInfo {
	for i := range s.Fields {
		if strings.EqualFold(s.Fields[i].Name, name) {
			return &s.Fields[i]
		}
	}
	return nil
}

// FieldByID finds a field by its identifier.
func (s *TableSchema) FieldByID(id int) *FieldInfo {
	for i := range s.Fields {
		if s.Fields[i].ID == id {
			return &s.Fields[i]
		}
	}
	return nil
}

// fieldKey renders the write key Baserow expects for a field when rows are
// created or patched without user field names, e.g. "field_4412".
func fieldKey(fieldID int) string {
	return fmt.Sprintf("field_%d", fieldID)
}

// fieldIDFromKey parses a "field_<id>" write key back to its identifier.
func fieldIDFromKey(key string) (int, bool) {
	rest, ok := strings.CutPrefix(key, "field_")
	if !ok || rest == "" {
		return 0, false
	}
	id := 0
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, false
		}
		id = id*10 + int(r-'0')
	}
	return id, true
}

const linkRowType = "link_row"
