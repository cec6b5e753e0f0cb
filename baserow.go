package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

// baserowClient wraps the Baserow HTTP API. Row operations authenticate
// with the long-lived database token; structural operations (table listing
// and creation) need a JWT obtained from the operator's email/password.
// Every request passes through a fixed-interval rate limiter to respect the
// destination's throughput limits.
type baserowClient struct {
	baseURL string
	token   string
	jwt     string
	http    *http.Client
	limiter *rate.Limiter
}

// tableMeta is the destination's summary of one table.
type tableMeta struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// fieldMeta is the destination's description of one field.
type fieldMeta struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	Primary        bool   `json:"primary"`
	Required       bool   `json:"required"`
	LinkRowTableID int    `json:"link_row_table_id"`
}

// rowPage is one page of a paginated row listing.
type rowPage struct {
	Count   int     `json:"count"`
	Next    *string `json:"next"`
	Results []struct {
		ID int `json:"id"`
	} `json:"results"`
}

func newBaserowClient(baseURL, token string, requestInterval time.Duration) *baserowClient {
	if requestInterval <= 0 {
		requestInterval = 100 * time.Millisecond
	}
	return &baserowClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(requestInterval), 1),
	}
}

// TokenAuth exchanges the operator's email/password for a JWT session token
// and installs it for structural operations.
func (c *baserowClient) TokenAuth(ctx context.Context, email, password string) error {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return fmt.Errorf("encode token-auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/user/token-auth/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build token-auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("token-auth: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("token-auth: status %d: %s", resp.StatusCode, truncateBody(data))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return fmt.Errorf("decode token-auth response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return fmt.Errorf("token-auth: response carried no access token")
	}
	c.jwt = tokenResp.AccessToken
	return nil
}

// doRequest performs one rate-limited API call and decodes the JSON
// response into out (when non-nil). Non-2xx responses become errors
// carrying status and body.
func (c *baserowClient) doRequest(ctx context.Context, method, endpoint string, useJWT bool, payload, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, endpoint, err)
		}
		body = bytes.NewReader(data)
	}

	url := c.baseURL + "/api/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if useJWT {
		if c.jwt == "" {
			return fmt.Errorf("%s %s requires a JWT session (run token-auth first)", method, endpoint)
		}
		req.Header.Set("Authorization", "JWT "+c.jwt)
	} else {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: status %d: %s", method, endpoint, resp.StatusCode, truncateBody(data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, endpoint, err)
	}
	return nil
}

// ListTables returns all tables of a database. Structural call, needs JWT.
func (c *baserowClient) ListTables(ctx context.Context, databaseID int) ([]tableMeta, error) {
	var tables []tableMeta
	err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("database/tables/database/%d/", databaseID), true, nil, &tables)
	return tables, err
}

// ListFields returns all fields of a table.
func (c *baserowClient) ListFields(ctx context.Context, tableID int) ([]fieldMeta, error) {
	var fields []fieldMeta
	err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("database/fields/table/%d/", tableID), false, nil, &fields)
	return fields, err
}

// ListRows fetches one page of rows.
func (c *baserowClient) ListRows(ctx context.Context, tableID, page, size int) (rowPage, error) {
	var rows rowPage
	endpoint := fmt.Sprintf("database/rows/table/%d/?page=%d&size=%d", tableID, page, size)
	err := c.doRequest(ctx, http.MethodGet, endpoint, false, nil, &rows)
	return rows, err
}

// CreateRow creates a row from "field_<id>"-keyed values and returns the
// destination row id.
func (c *baserowClient) CreateRow(ctx context.Context, tableID int, fields map[string]any) (int, error) {
	var created struct {
		ID int `json:"id"`
	}
	err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("database/rows/table/%d/", tableID), false, fields, &created)
	if err != nil {
		return 0, err
	}
	return created.ID, nil
}

// UpdateRow patches an existing row with "field_<id>"-keyed values.
func (c *baserowClient) UpdateRow(ctx context.Context, tableID, rowID int, fields map[string]any) error {
	endpoint := fmt.Sprintf("database/rows/table/%d/%d/", tableID, rowID)
	return c.doRequest(ctx, http.MethodPatch, endpoint, false, fields, nil)
}

// DeleteRow removes one row.
func (c *baserowClient) DeleteRow(ctx context.Context, tableID, rowID int) error {
	endpoint := fmt.Sprintf("database/rows/table/%d/%d/", tableID, rowID)
	return c.doRequest(ctx, http.MethodDelete, endpoint, false, nil, nil)
}

// ClearTable deletes every existing row, page by page, and returns how many
// were removed. Intended for idempotent re-runs.
func (c *baserowClient) ClearTable(ctx context.Context, tableID int) (int, error) {
	deleted := 0
	for {
		page, err := c.ListRows(ctx, tableID, 1, 200)
		if err != nil {
			return deleted, err
		}
		if len(page.Results) == 0 {
			return deleted, nil
		}
		for _, row := range page.Results {
			if err := c.DeleteRow(ctx, tableID, row.ID); err != nil {
				return deleted, err
			}
			deleted++
		}
	}
}

// CreateTable creates an empty table. Structural call, needs JWT.
func (c *baserowClient) CreateTable(ctx context.Context, databaseID int, name string) (tableMeta, error) {
	var created tableMeta
	payload := map[string]any{"name": name, "init_with_data": false}
	err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("database/tables/database/%d/", databaseID), true, payload, &created)
	return created, err
}

// CreateField adds a field to a table. Structural call, needs JWT.
func (c *baserowClient) CreateField(ctx context.Context, tableID int, config map[string]any) (fieldMeta, error) {
	var created fieldMeta
	err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("database/fields/table/%d/", tableID), true, config, &created)
	return created, err
}

// truncateBody keeps error messages readable when the API returns HTML or
// long validation payloads.
func truncateBody(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > 300 {
		return s[:300] + "..."
	}
	return s
}
