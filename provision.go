package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/goccy/go-json"
)

// structuralAPI is the slice of the Baserow client the provisioner needs.
type structuralAPI interface {
	CreateTable(ctx context.Context, databaseID int, name string) (tableMeta, error)
	CreateField(ctx context.Context, tableID int, config map[string]any) (fieldMeta, error)
}

// runProvision creates the destination tables and fields in dependency
// order from the schemas file, then adds link_row relationship fields in a
// second pass once both endpoint tables exist. One-time setup; a table
// creation failure aborts, a field failure is logged and skipped.
func runProvision(ctx context.Context, cfg *MigrationConfig, client structuralAPI) error {
	if err := validateDatasetConfig(); err != nil {
		return fmt.Errorf("dataset configuration: %w", err)
	}
	if cfg.Provision.SchemasFile == "" {
		return fmt.Errorf("provision.schemas_file is required")
	}

	seeds, err := loadSchemaSeeds(cfg.resolvePath(cfg.Provision.SchemasFile))
	if err != nil {
		return err
	}

	created := make(map[string]int, len(expectedTables))

	log.Printf("creating %d tables in database %d...", len(expectedTables), cfg.Baserow.DatabaseID)
	for i, name := range expectedTables {
		log.Printf("[%d/%d] creating %s...", i+1, len(expectedTables), name)

		table, err := client.CreateTable(ctx, cfg.Baserow.DatabaseID, name)
		if err != nil {
			return fmt.Errorf("create table %s: %w", name, err)
		}
		created[name] = table.ID

		fields := seeds[name]
		log.Printf("  adding %d fields", len(fields))
		for _, config := range fields {
			fieldName, _ := config["name"].(string)
			if _, err := client.CreateField(ctx, table.ID, config); err != nil {
				log.Printf("  field %q failed: %v", fieldName, err)
			}
		}
	}

	log.Printf("adding relationship fields...")
	for _, name := range expectedTables {
		seeds := provisionLinkFields[name]
		if len(seeds) == 0 {
			continue
		}
		tableID := created[name]
		log.Printf("  %s:", name)
		for _, seed := range seeds {
			targetID, ok := created[seed.TargetTable]
			if !ok {
				log.Printf("    target table %s missing for %s, skipping", seed.TargetTable, seed.Name)
				continue
			}
			config := map[string]any{
				"name":              seed.Name,
				"type":              linkRowType,
				"link_row_table_id": targetID,
			}
			if _, err := client.CreateField(ctx, tableID, config); err != nil {
				log.Printf("    field %q failed: %v", seed.Name, err)
				continue
			}
			log.Printf("    added %s -> %s", seed.Name, seed.TargetTable)
		}
	}

	log.Printf("provisioned %d tables", len(created))
	return nil
}

// loadSchemaSeeds reads the per-table field layouts used for provisioning:
// a JSON object keyed by table name, each with a "fields" list of Baserow
// field configurations.
func loadSchemaSeeds(path string) (map[string][]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schemas file: %w", err)
	}

	var raw map[string]struct {
		Fields []map[string]any `json:"fields"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse schemas file: %w", err)
	}

	seeds := make(map[string][]map[string]any, len(raw))
	for name, entry := range raw {
		seeds[name] = entry.Fields
	}
	return seeds, nil
}
