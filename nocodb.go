package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// nocoClient wraps the NocoDB records API for export fetching. Transient
// request failures are retried with exponential backoff, bounded by
// retryAttempts and capped at maxRetryDelay.
type nocoClient struct {
	baseURL       string
	token         string
	http          *http.Client
	pageDelay     time.Duration
	retryAttempts int
	maxRetryDelay time.Duration
	sleep         func(time.Duration) // injectable for tests
}

// nocoPage is one page of a NocoDB record listing.
type nocoPage struct {
	List     []map[string]any `json:"list"`
	PageInfo struct {
		IsLastPage bool `json:"isLastPage"`
	} `json:"pageInfo"`
}

func newNocoClient(cfg SourceConfig, token string) *nocoClient {
	return &nocoClient{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		token:         token,
		http:          &http.Client{Timeout: 30 * time.Second},
		pageDelay:     time.Duration(cfg.PageDelayMS) * time.Millisecond,
		retryAttempts: cfg.RetryAttempts,
		maxRetryDelay: time.Duration(cfg.MaxRetryDelayMS) * time.Millisecond,
		sleep:         time.Sleep,
	}
}

// FetchAll pulls every record of one source table, following pagination
// until the API reports the last page.
func (c *nocoClient) FetchAll(ctx context.Context, tableID string) ([]map[string]any, error) {
	var records []map[string]any
	page := 1

	for {
		if page > 1 && c.pageDelay > 0 {
			c.sleep(c.pageDelay)
		}

		result, err := c.fetchPage(ctx, tableID, page)
		if err != nil {
			return records, fmt.Errorf("table %s page %d: %w", tableID, page, err)
		}
		records = append(records, result.List...)
		log.Printf("    page %d: %d records (total %d)", page, len(result.List), len(records))

		if result.PageInfo.IsLastPage {
			return records, nil
		}
		page++
	}
}

// fetchPage requests one page, retrying transient failures with doubled
// delays up to the configured attempt bound.
func (c *nocoClient) fetchPage(ctx context.Context, tableID string, page int) (*nocoPage, error) {
	delay := c.pageDelay
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		if attempt > 1 {
			if delay > c.maxRetryDelay && c.maxRetryDelay > 0 {
				delay = c.maxRetryDelay
			}
			log.Printf("    retrying page %d in %s (attempt %d/%d)", page, delay, attempt, c.retryAttempts)
			c.sleep(delay)
			delay *= 2
		}

		result, err := c.requestPage(ctx, tableID, page)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, fmt.Errorf("after %d attempts: %w", c.retryAttempts, lastErr)
}

func (c *nocoClient) requestPage(ctx context.Context, tableID string, page int) (*nocoPage, error) {
	url := fmt.Sprintf("%s/tables/%s/records?page=%d", c.baseURL, tableID, page)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xc-token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncateBody(data))
	}

	var result nocoPage
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	return &result, nil
}

// runFetch pulls every configured source table into <Table>_data.json files
// under the data directory. A failed table is logged and skipped; the run
// continues with the next one.
func runFetch(ctx context.Context, cfg *MigrationConfig, creds credentials) error {
	if creds.SourceToken == "" {
		return fmt.Errorf("NOCODB_TOKEN must be set for fetch")
	}
	if cfg.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url is required for fetch")
	}
	if len(cfg.SourceTables) == 0 {
		return fmt.Errorf("no source_tables configured")
	}

	client := newNocoClient(cfg.Source, creds.SourceToken)
	dataDir := cfg.resolvePath(cfg.DataDir)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	start := time.Now()
	fetched, totalRecords := 0, 0

	for i, st := range cfg.SourceTables {
		log.Printf("[%d/%d] fetching %s (source id %s)...", i+1, len(cfg.SourceTables), st.Name, st.ID)

		records, err := client.FetchAll(ctx, st.ID)
		if err != nil {
			log.Printf("  failed: %v", err)
			continue
		}

		path := filepath.Join(dataDir, st.Name+"_data.json")
		data, err := json.MarshalIndent(records, "", "    ")
		if err != nil {
			log.Printf("  encode %s: %v", st.Name, err)
			continue
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			log.Printf("  write %s: %v", path, err)
			continue
		}

		fetched++
		totalRecords += len(records)
		log.Printf("  saved %d records to %s", len(records), path)

		if i < len(cfg.SourceTables)-1 && cfg.Source.TableDelayMS > 0 {
			client.sleep(time.Duration(cfg.Source.TableDelayMS) * time.Millisecond)
		}
	}

	log.Printf("fetch completed in %s: %d/%d tables, %d records",
		time.Since(start).Round(time.Millisecond), fetched, len(cfg.SourceTables), totalRecords)
	return nil
}
