// =============================================================================
// Usage Insights Reporter - Keboola Storage Client
// =============================================================================
//
// This module is the input boundary of the system: a client for the Keboola
// Storage API that downloads one table as CSV text. The export flow mirrors
// the Storage API's async export:
//
//   1. GET  /v2/storage/tables/{id}            - table detail (column names)
//   2. POST /v2/storage/tables/{id}/export-async
//   3. GET  /v2/storage/jobs/{jobId}           - poll until success/error
//   4. GET  /v2/storage/files/{fileId}?federationToken=1 - file metadata
//      (manifest URL + federated GCS credentials)
//   5. GET  manifest URL                       - slice entry list
//   6. GET  each slice                         - raw CSV fragments
//
// The exported file lives on Google Cloud Storage, not on the Storage API:
// manifest entries arrive as gs:// URLs, which are rewritten to the GCS
// JSON-API download form and fetched with the federated access token from
// the file metadata. The Storage token is sent to the Storage API only,
// never to the file store.
//
// Exported slices are headerless; the client prepends a header row built
// from the table's column metadata so the downstream parser sees a complete
// payload. The pipeline itself never calls this client - the fetch happens
// exactly once, before the pipeline runs, and the resulting text is
// injected as a fixed input.
//
// =============================================================================

package keboola

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Job statuses reported by the Storage API.
const (
	jobStatusSuccess   = "success"
	jobStatusError     = "error"
	jobStatusCancelled = "cancelled"
)

// gcsEndpoint is the Google Cloud Storage JSON API base URL slice downloads
// go through.
const gcsEndpoint = "https://storage.googleapis.com"

// =============================================================================
// CLIENT
// =============================================================================

// Config carries the settings for a Storage client.
type Config struct {
	// BaseURL is the Storage API endpoint, e.g. "https://connection.keboola.com".
	BaseURL string

	// Token is the Storage API token sent as X-StorageApi-Token.
	Token string

	// Timeout bounds each individual HTTP request.
	// Default: 30s.
	Timeout time.Duration

	// PollInterval is the delay between export job status checks.
	// Default: 2s.
	PollInterval time.Duration

	// MaxPollAttempts bounds how many times a job is polled before the
	// export is abandoned.
	// Default: 30.
	MaxPollAttempts int
}

// Client talks to the Keboola Storage API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger

	// fileStoreURL replaces gcsEndpoint as the slice download base.
	// Overridden in tests only.
	fileStoreURL string
}

// NewClient creates a Storage client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("storage client requires a base URL")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("storage client requires an API token")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxPollAttempts == 0 {
		cfg.MaxPollAttempts = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		cfg:          cfg,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		logger:       logger,
		fileStoreURL: gcsEndpoint,
	}, nil
}

// =============================================================================
// API RESPONSE SHAPES
// =============================================================================

type tableDetail struct {
	Columns []string `json:"columns"`
}

type exportJob struct {
	ID      json.Number `json:"id"`
	Status  string      `json:"status"`
	Results struct {
		File struct {
			ID json.Number `json:"id"`
		} `json:"file"`
	} `json:"results"`
}

type gcsCredentials struct {
	AccessToken string `json:"access_token"`
}

type fileMetadata struct {
	URL            string         `json:"url"`
	GCSCredentials gcsCredentials `json:"gcsCredentials"`

	// Credentials is the older spelling of the federated credentials field;
	// used as a fallback when gcsCredentials is absent.
	Credentials gcsCredentials `json:"credentials"`
}

// accessToken returns the federated file-store token from whichever
// credentials field the API populated.
func (m *fileMetadata) accessToken() string {
	if m.GCSCredentials.AccessToken != "" {
		return m.GCSCredentials.AccessToken
	}
	return m.Credentials.AccessToken
}

type manifest struct {
	Entries []struct {
		URL string `json:"url"`
	} `json:"entries"`
}

// =============================================================================
// OPERATIONS
// =============================================================================

// TableColumns fetches the column names of a table from its metadata.
func (c *Client) TableColumns(ctx context.Context, tableID string) ([]string, error) {
	var detail tableDetail
	path := fmt.Sprintf("/v2/storage/tables/%s", url.PathEscape(tableID))
	if err := c.getJSON(ctx, c.cfg.BaseURL+path, &detail); err != nil {
		return nil, fmt.Errorf("failed to fetch table detail for %s: %w", tableID, err)
	}
	if len(detail.Columns) == 0 {
		return nil, fmt.Errorf("table %s has no columns", tableID)
	}
	return detail.Columns, nil
}

// ExportTableCSV downloads a table via async export and returns its full
// contents as CSV text, header row included.
func (c *Client) ExportTableCSV(ctx context.Context, tableID string) (string, error) {
	columns, err := c.TableColumns(ctx, tableID)
	if err != nil {
		return "", err
	}

	c.logger.Info("starting async export", zap.String("table_id", tableID))

	job, err := c.startExport(ctx, tableID)
	if err != nil {
		return "", err
	}

	job, err = c.waitForJob(ctx, job.ID.String())
	if err != nil {
		return "", err
	}

	entries, fileToken, err := c.fileManifest(ctx, job.Results.File.ID.String())
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer

	// Slices carry no header; rebuild it from the table metadata.
	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return "", fmt.Errorf("failed to write header row: %w", err)
	}
	w.Flush()

	for _, sliceURL := range entries {
		data, err := c.downloadSlice(ctx, sliceURL, fileToken)
		if err != nil {
			return "", fmt.Errorf("failed to download slice: %w", err)
		}
		buf.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			buf.WriteByte('\n')
		}
		c.logger.Debug("downloaded slice", zap.String("url", sliceURL), zap.Int("bytes", len(data)))
	}

	c.logger.Info("table downloaded",
		zap.String("table_id", tableID),
		zap.Int("slices", len(entries)),
		zap.Int("bytes", buf.Len()))

	return buf.String(), nil
}

// startExport kicks off an async table export and returns the created job.
func (c *Client) startExport(ctx context.Context, tableID string) (*exportJob, error) {
	path := fmt.Sprintf("/v2/storage/tables/%s/export-async", url.PathEscape(tableID))
	body := strings.NewReader(`{"format":"rfc"}`)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var job exportJob
	if err := c.do(req, &job); err != nil {
		return nil, fmt.Errorf("failed to start export for %s: %w", tableID, err)
	}
	return &job, nil
}

// waitForJob polls the export job until it completes, fails, or the poll
// budget is exhausted.
func (c *Client) waitForJob(ctx context.Context, jobID string) (*exportJob, error) {
	jobURL := fmt.Sprintf("%s/v2/storage/jobs/%s", c.cfg.BaseURL, url.PathEscape(jobID))

	for attempt := 1; attempt <= c.cfg.MaxPollAttempts; attempt++ {
		var job exportJob
		if err := c.getJSON(ctx, jobURL, &job); err != nil {
			return nil, fmt.Errorf("failed to poll job %s: %w", jobID, err)
		}

		c.logger.Debug("job status",
			zap.String("job_id", jobID),
			zap.Int("attempt", attempt),
			zap.String("status", job.Status))

		switch job.Status {
		case jobStatusSuccess:
			return &job, nil
		case jobStatusError, jobStatusCancelled:
			return nil, fmt.Errorf("export job %s finished with status %q", jobID, job.Status)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}
	}

	return nil, fmt.Errorf("export job %s did not complete within %d attempts", jobID, c.cfg.MaxPollAttempts)
}

// fileManifest resolves the exported file into its slice URLs and the
// federated token they are downloaded with.
func (c *Client) fileManifest(ctx context.Context, fileID string) ([]string, string, error) {
	metaURL := fmt.Sprintf("%s/v2/storage/files/%s?federationToken=1", c.cfg.BaseURL, url.PathEscape(fileID))

	var meta fileMetadata
	if err := c.getJSON(ctx, metaURL, &meta); err != nil {
		return nil, "", fmt.Errorf("failed to fetch file metadata for %s: %w", fileID, err)
	}

	// The manifest lives on the file store, not the Storage API; the
	// Storage token must not travel there.
	var m manifest
	if err := c.getExternalJSON(ctx, meta.URL, &m); err != nil {
		return nil, "", fmt.Errorf("failed to fetch manifest: %w", err)
	}

	urls := make([]string, len(m.Entries))
	for i, entry := range m.Entries {
		urls[i] = entry.URL
	}
	return urls, meta.accessToken(), nil
}

// downloadSlice fetches one exported slice. gs:// entries are rewritten to
// the GCS JSON-API download form and authenticated with the federated
// token; any other scheme is fetched as-is without credentials.
func (c *Client) downloadSlice(ctx context.Context, sliceURL, fileToken string) ([]byte, error) {
	downloadURL := sliceURL
	var bearer string

	if strings.HasPrefix(sliceURL, "gs://") {
		rewritten, err := c.gcsDownloadURL(sliceURL)
		if err != nil {
			return nil, err
		}
		downloadURL = rewritten
		bearer = fileToken
	}

	return c.download(ctx, downloadURL, bearer)
}

// gcsDownloadURL rewrites a gs://bucket/object URL to the JSON-API media
// download form. The object path is escaped whole, slashes included, as the
// API expects a single path segment.
func (c *Client) gcsDownloadURL(gsURL string) (string, error) {
	bucket, object, ok := strings.Cut(strings.TrimPrefix(gsURL, "gs://"), "/")
	if !ok || bucket == "" || object == "" {
		return "", fmt.Errorf("malformed slice URL %q", gsURL)
	}
	return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", c.fileStoreURL, bucket, url.PathEscape(object)), nil
}

// =============================================================================
// HTTP PLUMBING
// =============================================================================

// getJSON performs a Storage API GET and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// getExternalJSON performs an unauthenticated GET against a non-Storage
// host and decodes the JSON response.
func (c *Client) getExternalJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return c.send(req, out)
}

// download GETs a raw body from a non-Storage host, with an optional OAuth
// bearer token.
func (c *Client) download(ctx context.Context, rawURL, bearer string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return io.ReadAll(resp.Body)
}

// do executes a Storage API request with auth headers and decodes the JSON
// response.
func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("X-StorageApi-Token", c.cfg.Token)
	req.Header.Set("Accept", "application/json")
	return c.send(req, out)
}

// send executes a request and decodes the JSON response. Headers are the
// caller's business.
func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
