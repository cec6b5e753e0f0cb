package main

import "strings"

// tableNameVariants returns the naming-convention variants tried when
// matching an expected table name against what the destination reports.
// Exact match is tried first; Baserow installs created by hand often carry
// underscore or Title_Case versions of the hyphenated dataset names.
func tableNameVariants(name string) []string {
	variants := []string{name}

	underscored := strings.ReplaceAll(name, "-", "_")
	if underscored != name {
		variants = append(variants, underscored)
	}

	titled := titleUnderscored(underscored)
	if titled != name && titled != underscored {
		variants = append(variants, titled)
	}

	return variants
}

// titleUnderscored upper-cases the first letter of every underscore-separated
// word: "actions_timeline" → "Actions_Timeline".
func titleUnderscored(s string) string {
	parts := strings.Split(s, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "_")
}

// matchTableName finds the destination id for an expected table among the
// discovered tables, trying exact naming first, then the usual variants,
// then a case-insensitive pass.
func matchTableName(expected string, found map[string]int) (int, bool) {
	for _, variant := range tableNameVariants(expected) {
		if id, ok := found[variant]; ok {
			return id, true
		}
	}
	for name, id := range found {
		if strings.EqualFold(name, expected) || strings.EqualFold(name, strings.ReplaceAll(expected, "-", "_")) {
			return id, true
		}
	}
	return 0, false
}
