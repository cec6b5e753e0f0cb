package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

// fakeDest is an in-memory stand-in for the Baserow API, recording every
// mutation the orchestrator issues.
type fakeDest struct {
	tables  []tableMeta
	fields  map[int][]fieldMeta
	nextRow int

	creates []fakeCreate
	updates []fakeUpdate
	cleared map[int]int

	failCreate bool
	failUpdate bool
}

type fakeCreate struct {
	tableID int
	fields  map[string]any
	rowID   int
}

type fakeUpdate struct {
	tableID int
	rowID   int
	fields  map[string]any
}

func (f *fakeDest) ListTables(ctx context.Context, databaseID int) ([]tableMeta, error) {
	return f.tables, nil
}

func (f *fakeDest) ListFields(ctx context.Context, tableID int) ([]fieldMeta, error) {
	return f.fields[tableID], nil
}

func (f *fakeDest) CreateRow(ctx context.Context, tableID int, fields map[string]any) (int, error) {
	if f.failCreate {
		return 0, fmt.Errorf("simulated create failure")
	}
	f.nextRow++
	f.creates = append(f.creates, fakeCreate{tableID: tableID, fields: fields, rowID: f.nextRow})
	return f.nextRow, nil
}

func (f *fakeDest) UpdateRow(ctx context.Context, tableID, rowID int, fields map[string]any) error {
	if f.failUpdate {
		return fmt.Errorf("simulated patch failure")
	}
	f.updates = append(f.updates, fakeUpdate{tableID: tableID, rowID: rowID, fields: fields})
	return nil
}

func (f *fakeDest) ClearTable(ctx context.Context, tableID int) (int, error) {
	if f.cleared == nil {
		f.cleared = make(map[int]int)
	}
	f.cleared[tableID]++
	return 0, nil
}

// newFakeDest builds a destination with all expected tables present.
// Location and Infrastructure carry real field layouts; the rest get a
// bare primary Name field.
func newFakeDest() *fakeDest {
	f := &fakeDest{fields: make(map[int][]fieldMeta), nextRow: 100}
	for i, name := range expectedTables {
		id := i + 1
		f.tables = append(f.tables, tableMeta{ID: id, Name: name})
		f.fields[id] = []fieldMeta{{ID: id * 1000, Name: "Name", Type: "text", Primary: true}}
	}
	locID := f.tableID("Location")
	f.fields[locID] = []fieldMeta{
		{ID: 1100, Name: "Name", Type: "text", Primary: true},
		{ID: 1101, Name: "notes", Type: "long_text"},
	}
	infraID := f.tableID("Infrastructure")
	f.fields[infraID] = []fieldMeta{
		{ID: 6100, Name: "Name", Type: "text", Primary: true},
		{ID: 6101, Name: "linked_location", Type: linkRowType, LinkRowTableID: locID},
	}
	return f
}

func (f *fakeDest) tableID(name string) int {
	for _, t := range f.tables {
		if t.Name == name {
			return t.ID
		}
	}
	return 0
}

func writeExport(t *testing.T, dir, file string, records []map[string]any) {
	t.Helper()
	data, err := json.Marshal(records)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), data, 0644))
}

func testConfig(t *testing.T) *MigrationConfig {
	t.Helper()
	return &MigrationConfig{
		DataDir: t.TempDir(),
		Baserow: BaserowConfig{BaseURL: "http://test", DatabaseID: 1},
	}
}

func newTestMigrator(cfg *MigrationConfig, dest *fakeDest, opts migrateOptions) *migrator {
	m := newMigrator(cfg, dest, opts)
	m.pause = func(time.Duration) {}
	return m
}

func TestMigrate_PlainRecord(t *testing.T) {
	cfg := testConfig(t)
	dest := newFakeDest()
	writeExport(t, cfg.DataDir, "Location_data.json", []map[string]any{
		{"Id": float64(1), "location": "Lagos", "notes": "port city"},
	})

	m := newTestMigrator(cfg, dest, migrateOptions{Table: "Location"})
	require.NoError(t, m.run(context.Background()))

	require.Len(t, dest.creates, 1)
	require.Equal(t, dest.tableID("Location"), dest.creates[0].tableID)
	require.Equal(t, map[string]any{"field_1100": "Lagos", "field_1101": "port city"}, dest.creates[0].fields)
	require.Empty(t, dest.updates)

	destID, ok := m.registry.Lookup("Location", 1)
	require.True(t, ok)
	require.Equal(t, dest.creates[0].rowID, destID)

	stats := m.stats["Location"]
	require.Equal(t, &tableStats{Success: 1, Errors: 0, Total: 1}, stats)
}

func TestMigrate_RelationshipPatch(t *testing.T) {
	cfg := testConfig(t)
	dest := newFakeDest()
	writeExport(t, cfg.DataDir, "Location_data.json", []map[string]any{
		{"Id": float64(1), "location": "Lagos"},
	})
	writeExport(t, cfg.DataDir, "Infrastructure_data.json", []map[string]any{
		{
			"Id":                  float64(10),
			"infrastructure_name": "Depot",
			"_nc_m2m_infrastructure_locations": []any{
				map[string]any{"location_id": float64(1)},
			},
		},
	})

	m := newTestMigrator(cfg, dest, migrateOptions{})
	require.NoError(t, m.run(context.Background()))

	locationDestID, ok := m.registry.Lookup("Location", 1)
	require.True(t, ok)

	require.Len(t, dest.updates, 1)
	patch := dest.updates[0]
	require.Equal(t, dest.tableID("Infrastructure"), patch.tableID)
	require.Equal(t, map[string]any{"field_6101": []int{locationDestID}}, patch.fields)
}

func TestMigrate_UnresolvedRelationshipSkipsPatch(t *testing.T) {
	cfg := testConfig(t)
	dest := newFakeDest()
	// Location 1 is never imported; the Infrastructure record must still be
	// created, with no patch call at all.
	writeExport(t, cfg.DataDir, "Infrastructure_data.json", []map[string]any{
		{
			"Id":                  float64(10),
			"infrastructure_name": "Depot",
			"_nc_m2m_infrastructure_locations": []any{
				map[string]any{"location_id": float64(1)},
			},
		},
	})

	m := newTestMigrator(cfg, dest, migrateOptions{Table: "Infrastructure"})
	require.NoError(t, m.run(context.Background()))

	require.Len(t, dest.creates, 1)
	require.Empty(t, dest.updates)
	require.Equal(t, &tableStats{Success: 1, Errors: 0, Total: 1}, m.stats["Infrastructure"])
	require.Equal(t, 1, m.dropped["Infrastructure"])
}

func TestMigrate_NothingToImportCountsAsError(t *testing.T) {
	cfg := testConfig(t)
	dest := newFakeDest()
	writeExport(t, cfg.DataDir, "Location_data.json", []map[string]any{
		{"Id": float64(1), "no_such_field": "value"},
	})

	m := newTestMigrator(cfg, dest, migrateOptions{Table: "Location"})
	require.NoError(t, m.run(context.Background()))

	require.Empty(t, dest.creates)
	require.Equal(t, &tableStats{Success: 0, Errors: 1, Total: 1}, m.stats["Location"])
}

func TestMigrate_RecordFailureDoesNotAbortTable(t *testing.T) {
	cfg := testConfig(t)
	dest := newFakeDest()
	dest.failCreate = true
	writeExport(t, cfg.DataDir, "Location_data.json", []map[string]any{
		{"Id": float64(1), "location": "Lagos"},
		{"Id": float64(2), "location": "Accra"},
	})

	m := newTestMigrator(cfg, dest, migrateOptions{Table: "Location"})
	require.NoError(t, m.run(context.Background()))

	require.Equal(t, &tableStats{Success: 0, Errors: 2, Total: 2}, m.stats["Location"])
	_, ok := m.registry.Lookup("Location", 1)
	require.False(t, ok, "failed create must not register an identifier")
}

func TestMigrate_PatchFailureKeepsCreatedRow(t *testing.T) {
	cfg := testConfig(t)
	dest := newFakeDest()
	dest.failUpdate = true
	writeExport(t, cfg.DataDir, "Location_data.json", []map[string]any{
		{"Id": float64(1), "location": "Lagos"},
	})
	writeExport(t, cfg.DataDir, "Infrastructure_data.json", []map[string]any{
		{
			"Id":                  float64(10),
			"infrastructure_name": "Depot",
			"_nc_m2m_infrastructure_locations": []any{
				map[string]any{"location_id": float64(1)},
			},
		},
	})

	m := newTestMigrator(cfg, dest, migrateOptions{})
	require.NoError(t, m.run(context.Background()))

	require.Equal(t, 1, m.stats["Infrastructure"].Errors)
	_, ok := m.registry.Lookup("Infrastructure", 10)
	require.True(t, ok, "the created row stands even when its patch fails")
}

func TestMigrate_DryRun(t *testing.T) {
	cfg := testConfig(t)
	dest := newFakeDest()
	writeExport(t, cfg.DataDir, "Location_data.json", []map[string]any{
		{"Id": float64(1), "location": "Lagos"},
		{"Id": float64(2), "location": "Accra"},
		{"Id": float64(3), "location": "Abidjan"},
	})

	m := newTestMigrator(cfg, dest, migrateOptions{DryRun: true})
	require.NoError(t, m.run(context.Background()))

	require.Empty(t, dest.creates)
	require.Empty(t, dest.updates)
	require.Empty(t, dest.cleared)
	require.Equal(t, 3, m.stats["Location"].Total)
}

func TestMigrate_ClearBeforeImport(t *testing.T) {
	cfg := testConfig(t)
	dest := newFakeDest()
	writeExport(t, cfg.DataDir, "Location_data.json", []map[string]any{
		{"Id": float64(1), "location": "Lagos"},
	})

	m := newTestMigrator(cfg, dest, migrateOptions{Table: "Location", Clear: true})
	require.NoError(t, m.run(context.Background()))

	require.Equal(t, 1, dest.cleared[dest.tableID("Location")])
}

func TestMigrate_MissingExpectedTableIsFatal(t *testing.T) {
	cfg := testConfig(t)
	dest := newFakeDest()
	dest.tables = dest.tables[:len(dest.tables)-1] // drop Memory

	m := newTestMigrator(cfg, dest, migrateOptions{})
	err := m.run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "Memory")
}

func TestMigrate_UnknownTableFilter(t *testing.T) {
	cfg := testConfig(t)
	m := newTestMigrator(cfg, newFakeDest(), migrateOptions{Table: "NotATable"})
	require.Error(t, m.run(context.Background()))
}

func TestMigrate_RegistrySnapshotSpansRuns(t *testing.T) {
	cfg := testConfig(t)
	registryPath := filepath.Join(t.TempDir(), "registry.db")

	// First run imports Location and persists the identifier mapping.
	dest := newFakeDest()
	writeExport(t, cfg.DataDir, "Location_data.json", []map[string]any{
		{"Id": float64(1), "location": "Lagos"},
	})
	first := newTestMigrator(cfg, dest, migrateOptions{Table: "Location", RegistryPath: registryPath})
	require.NoError(t, first.run(context.Background()))
	locationDestID, ok := first.registry.Lookup("Location", 1)
	require.True(t, ok)

	// Second run starts with a fresh registry but preloads the snapshot, so
	// the Infrastructure relationship resolves to the first run's row.
	require.NoError(t, os.Remove(filepath.Join(cfg.DataDir, "Location_data.json")))
	writeExport(t, cfg.DataDir, "Infrastructure_data.json", []map[string]any{
		{
			"Id":                  float64(10),
			"infrastructure_name": "Depot",
			"_nc_m2m_infrastructure_locations": []any{
				map[string]any{"location_id": float64(1)},
			},
		},
	})
	second := newTestMigrator(cfg, dest, migrateOptions{Table: "Infrastructure", RegistryPath: registryPath})
	require.NoError(t, second.run(context.Background()))

	require.Len(t, dest.updates, 1)
	require.Equal(t, map[string]any{"field_6101": []int{locationDestID}}, dest.updates[0].fields)
}

func TestLoadExportFile(t *testing.T) {
	dir := t.TempDir()

	listPath := filepath.Join(dir, "bare.json")
	require.NoError(t, os.WriteFile(listPath, []byte(`[{"Id": 1}]`), 0644))
	records, err := loadExportFile(listPath)
	require.NoError(t, err)
	require.Len(t, records, 1)

	wrappedPath := filepath.Join(dir, "wrapped.json")
	require.NoError(t, os.WriteFile(wrappedPath, []byte(`{"list": [{"Id": 1}, {"Id": 2}]}`), 0644))
	records, err = loadExportFile(wrappedPath)
	require.NoError(t, err)
	require.Len(t, records, 2)

	badPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte(`{"rows": []}`), 0644))
	_, err = loadExportFile(badPath)
	require.Error(t, err)

	_, err = loadExportFile(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}
