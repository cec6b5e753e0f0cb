package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
)

// destAPI is the slice of the Baserow client the orchestrator needs, kept
// narrow so table imports can be exercised against a stub.
type destAPI interface {
	ListTables(ctx context.Context, databaseID int) ([]tableMeta, error)
	ListFields(ctx context.Context, tableID int) ([]fieldMeta, error)
	CreateRow(ctx context.Context, tableID int, fields map[string]any) (int, error)
	UpdateRow(ctx context.Context, tableID, rowID int, fields map[string]any) error
	ClearTable(ctx context.Context, tableID int) (int, error)
}

// migrateOptions are the per-run switches from the command line.
type migrateOptions struct {
	DryRun       bool
	Clear        bool
	Table        string // restrict the run to one table
	RegistryPath string // optional SQLite snapshot of identifier mappings
}

// tableStats counts per-table outcomes. Reported at the end of the run,
// never used for control flow.
type tableStats struct {
	Success int
	Errors  int
	Total   int
}

type recordOutcome int

const (
	recordImported recordOutcome = iota
	recordSkipped                // nothing importable after transformation
	recordFailed
)

// recordResult is the explicit outcome of processing one source record.
type recordResult struct {
	outcome recordOutcome
	destID  int
	reason  string
	dropped int // relationship references dropped as unresolvable
}

// migrator owns all per-run state: the destination client, the identifier
// registry, the schema cache, and accumulated statistics. Constructed fresh
// per invocation; everything is mutated by the single orchestrating
// goroutine only.
type migrator struct {
	cfg      *MigrationConfig
	client   destAPI
	opts     migrateOptions
	registry *idRegistry
	store    *registryStore // nil unless --registry was given
	tableIDs map[string]int
	schemas  map[string]*TableSchema
	stats    map[string]*tableStats
	dropped  map[string]int
	pause    func(time.Duration) // injectable for tests
}

func newMigrator(cfg *MigrationConfig, client destAPI, opts migrateOptions) *migrator {
	return &migrator{
		cfg:      cfg,
		client:   client,
		opts:     opts,
		registry: newIDRegistry(),
		tableIDs: make(map[string]int),
		schemas:  make(map[string]*TableSchema),
		stats:    make(map[string]*tableStats),
		dropped:  make(map[string]int),
		pause:    time.Sleep,
	}
}

// run drives the whole migration: discovery, schema loading, then each
// table in the fixed dependency order. Discovery and schema failures are
// fatal; everything below that level is isolated per table or per record.
func (m *migrator) run(ctx context.Context) error {
	start := time.Now()

	if err := validateDatasetConfig(); err != nil {
		return fmt.Errorf("dataset configuration: %w", err)
	}

	if m.opts.RegistryPath != "" {
		store, err := openRegistryStore(m.opts.RegistryPath)
		if err != nil {
			return err
		}
		defer store.Close()
		m.store = store

		loaded, err := store.Preload(m.registry)
		if err != nil {
			return err
		}
		log.Printf("registry snapshot: preloaded %d identifier mappings from %s", loaded, m.opts.RegistryPath)
	}

	log.Printf("discovering tables in database %d...", m.cfg.Baserow.DatabaseID)
	if err := m.discoverTables(ctx); err != nil {
		return err
	}

	log.Printf("loading table schemas...")
	if err := m.initializeSchemas(ctx); err != nil {
		return err
	}

	order := importOrder
	if m.opts.Table != "" {
		order = nil
		for _, step := range importOrder {
			if step.Table == m.opts.Table {
				order = append(order, step)
			}
		}
		if len(order) == 0 {
			return fmt.Errorf("table %q is not part of the import order", m.opts.Table)
		}
	}

	for i, step := range order {
		log.Printf("--- phase %d/%d: %s ---", i+1, len(order), step.Table)
		if err := m.importTable(ctx, step); err != nil {
			return err
		}
		if i < len(order)-1 && m.cfg.tablePause() > 0 && !m.opts.DryRun {
			m.pause(m.cfg.tablePause())
		}
	}

	m.printSummary()
	log.Printf("migration completed in %s", time.Since(start).Round(time.Millisecond))
	return nil
}

// discoverTables matches every expected table against what the destination
// reports, tolerating underscore/hyphen/case naming variants. Any missing
// table is fatal; there is nothing sensible to import into.
func (m *migrator) discoverTables(ctx context.Context) error {
	tables, err := m.client.ListTables(ctx, m.cfg.Baserow.DatabaseID)
	if err != nil {
		return fmt.Errorf("discover tables: %w", err)
	}

	found := make(map[string]int, len(tables))
	for _, t := range tables {
		found[t.Name] = t.ID
		log.Printf("  found table %s (id %d)", t.Name, t.ID)
	}

	var missing []string
	for _, expected := range expectedTables {
		id, ok := matchTableName(expected, found)
		if !ok {
			missing = append(missing, expected)
			continue
		}
		m.tableIDs[expected] = id
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing expected tables: %v (run provision first)", missing)
	}

	log.Printf("  all %d expected tables present", len(expectedTables))
	return nil
}

// initializeSchemas loads one TableSchema per discovered table. Failures
// here are fatal and propagated.
func (m *migrator) initializeSchemas(ctx context.Context) error {
	for _, name := range expectedTables {
		tableID := m.tableIDs[name]
		fields, err := m.client.ListFields(ctx, tableID)
		if err != nil {
			return fmt.Errorf("load schema for %s: %w", name, err)
		}

		infos := make([]FieldInfo, len(fields))
		for i, f := range fields {
			infos[i] = FieldInfo{
				ID:            f.ID,
				Name:          f.Name,
				Type:          f.Type,
				Primary:       f.Primary,
				Required:      f.Required,
				LinkedTableID: f.LinkRowTableID,
			}
		}
		m.schemas[name] = newTableSchema(tableID, name, infos)
		log.Printf("  %s: %d fields", name, len(fields))
	}
	return nil
}

// importTable runs the two-phase per-record import for one table. A missing
// or malformed export file skips the table; record failures are counted and
// never abort the table.
func (m *migrator) importTable(ctx context.Context, step importStep) error {
	tableID := m.tableIDs[step.Table]
	schema := m.schemas[step.Table]

	path := filepath.Join(m.cfg.resolvePath(m.cfg.DataDir), step.File)
	records, err := loadExportFile(path)
	if err != nil {
		log.Printf("  skipping %s: %v", step.Table, err)
		return nil
	}
	log.Printf("  %d records to import", len(records))

	if m.opts.DryRun {
		m.stats[step.Table] = &tableStats{Total: len(records)}
		log.Printf("  dry run, no rows will be written")
		return nil
	}

	if m.opts.Clear {
		deleted, err := m.client.ClearTable(ctx, tableID)
		if err != nil {
			return fmt.Errorf("clear %s: %w", step.Table, err)
		}
		log.Printf("  cleared %d existing rows", deleted)
	}

	mapping := fieldMapping(step.Table, schema)
	if len(mapping) == 0 {
		log.Printf("  no static field mapping for %s, relying on automatic matching", step.Table)
	}

	stats := &tableStats{Total: len(records)}
	m.stats[step.Table] = stats

	for i, record := range records {
		result := m.processRecord(ctx, step.Table, tableID, schema, mapping, record)
		switch result.outcome {
		case recordImported:
			stats.Success++
			log.Printf("  record %d/%d: imported (id %d)", i+1, len(records), result.destID)
		case recordSkipped:
			stats.Errors++
			log.Printf("  record %d/%d: nothing to import", i+1, len(records))
		case recordFailed:
			stats.Errors++
			log.Printf("  record %d/%d: %s", i+1, len(records), result.reason)
		}
		m.dropped[step.Table] += result.dropped
	}

	log.Printf("  %s done: %d imported, %d errors, %d total", step.Table, stats.Success, stats.Errors, stats.Total)
	return nil
}

// processRecord performs extract → transform → create → register → resolve
// → patch for one source record. Relationship patching is a second call
// immediately after creation; its failure marks the record failed but the
// created row (and its registry entry) stands.
func (m *migrator) processRecord(ctx context.Context, tableName string, tableID int, schema *TableSchema, mapping map[string]string, record map[string]any) recordResult {
	payloads := extractRelationships(record)
	fields := transformRecord(record, mapping, schema)
	if len(fields) == 0 {
		return recordResult{outcome: recordSkipped}
	}

	destID, err := m.client.CreateRow(ctx, tableID, fields)
	if err != nil {
		return recordResult{outcome: recordFailed, reason: fmt.Sprintf("create failed: %v", err)}
	}

	if sourceID, ok := recordSourceID(record); ok {
		m.registry.Register(tableName, sourceID, destID)
		if m.store != nil {
			if err := m.store.Record(tableName, sourceID, destID); err != nil {
				log.Printf("  registry snapshot write failed: %v", err)
			}
		}
	}

	updates, dropped := resolveRelationships(payloads, tableName, schema, m.registry)
	if len(updates) > 0 {
		patch := make(map[string]any, len(updates))
		for key, ids := range updates {
			patch[key] = ids
		}
		if err := m.client.UpdateRow(ctx, tableID, destID, patch); err != nil {
			return recordResult{
				outcome: recordFailed,
				destID:  destID,
				reason:  fmt.Sprintf("created id %d but relationship patch failed: %v", destID, err),
				dropped: dropped,
			}
		}
	}

	return recordResult{outcome: recordImported, destID: destID, dropped: dropped}
}

// loadExportFile reads a NocoDB JSON export: either a bare record list or
// an object wrapping it under "list".
func loadExportFile(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var records []map[string]any
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}

	var wrapped struct {
		List []map[string]any `json:"list"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("unexpected JSON structure in %s: %w", filepath.Base(path), err)
	}
	if wrapped.List == nil {
		return nil, fmt.Errorf("unexpected JSON structure in %s: no record list", filepath.Base(path))
	}
	return wrapped.List, nil
}

// printSummary reports per-table and aggregate counts, identifier mappings
// captured, and how many relationship references could not be resolved.
func (m *migrator) printSummary() {
	log.Printf("=== migration summary ===")

	var totalSuccess, totalErrors, total int
	for _, step := range importOrder {
		stats, ok := m.stats[step.Table]
		if !ok {
			continue
		}
		totalSuccess += stats.Success
		totalErrors += stats.Errors
		total += stats.Total
		log.Printf("  %-20s %4d/%-4d imported, %d errors", step.Table, stats.Success, stats.Total, stats.Errors)
	}
	log.Printf("  aggregate: %d/%d imported, %d errors", totalSuccess, total, totalErrors)

	log.Printf("identifier mappings captured:")
	for _, entry := range m.registry.CountByTable() {
		log.Printf("  %-20s %d", entry.Table, entry.Count)
	}

	unresolvedTotal := 0
	for _, step := range importOrder {
		if n := m.dropped[step.Table]; n > 0 {
			log.Printf("  WARN: %s dropped %d unresolvable relationship references", step.Table, n)
			unresolvedTotal += n
		}
	}
	if unresolvedTotal > 0 {
		log.Printf("  WARN: %d relationship references were dropped in total; check import order and source completeness", unresolvedTotal)
	}
}
