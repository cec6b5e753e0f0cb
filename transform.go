package main

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
)

var (
	yearOnlyRe  = regexp.MustCompile(`^\d{4}$`)
	canonDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// dateNameHints classify a field as date-typed by name when the destination
// field type is unavailable or disagrees with the static mapping table.
var dateNameHints = []string{"date", "established", "start", "end", "createdat", "updatedat"}

// normalizeDate converts the date shapes found in NocoDB exports to the
// canonical YYYY-MM-DD form Baserow accepts. Unrecognized input returns ""
// with a diagnostic; the caller omits the field rather than failing the record.
func normalizeDate(value any) string {
	if value == nil {
		return ""
	}
	s := strings.TrimSpace(fmt.Sprint(value))
	if s == "" {
		return ""
	}
	switch {
	case yearOnlyRe.MatchString(s):
		return s + "-01-01"
	case len(s) > 10 && s[10] == 'T' && canonDateRe.MatchString(s[:10]):
		return s[:10]
	case canonDateRe.MatchString(s):
		return s
	default:
		log.Printf("  skipping unrecognized date format %q", s)
		return ""
	}
}

// normalizeBoolean reports true for boolean true and the usual truthy string
// forms; everything else is false.
func normalizeBoolean(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case nil:
		return false
	default:
		switch strings.ToLower(strings.TrimSpace(fmt.Sprint(v))) {
		case "true", "1", "yes", "on":
			return true
		}
		return false
	}
}

// normalizeNumber parses a numeric value, reporting ok=false on failure or
// empty input.
func normalizeNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case nil:
		return 0, false
	default:
		s := strings.TrimSpace(fmt.Sprint(v))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
}

// isDateField reports whether a source field name hints at a date value.
func isDateField(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range dateNameHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// transformValue converts one plain source value for a destination field.
// A nil result means the field is omitted from the created record. The
// destination field type drives the conversion when known; date-shaped names
// are normalized even when the field type says otherwise, because NocoDB
// date exports vary per table.
func transformValue(value any, sourceName string, field *FieldInfo) any {
	if value == nil {
		return nil
	}
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return nil
	}

	fieldType := ""
	if field != nil {
		fieldType = field.Type
	}

	if fieldType == "date" || isDateField(sourceName) {
		if d := normalizeDate(value); d != "" {
			return d
		}
		return nil
	}

	switch fieldType {
	case "boolean":
		return normalizeBoolean(value)
	case "number":
		if f, ok := normalizeNumber(value); ok {
			return f
		}
		return nil
	}

	if b, ok := value.(bool); ok {
		return b
	}
	return fmt.Sprint(value)
}
