package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/openconceptlab/ocldev/internal/logging"
	"github.com/openconceptlab/ocldev/resources"
)

// ErrExportNotAvailable is returned when the server has no cached
// export for the requested repository version and generation was not
// requested or did not finish in time.
var ErrExportNotAvailable = errors.New("export not available")

// Default polling parameters for export generation.
const (
	DefaultPollDelay = 5 * time.Second
	DefaultMaxWait   = 2 * time.Minute
)

// Factory downloads repository version exports from the OCL API.
type Factory struct {
	client        *http.Client
	token         string
	waitForExport bool
	pollDelay     time.Duration
	maxWait       time.Duration
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// FactoryHTTPClient replaces the default HTTP client.
func FactoryHTTPClient(c *http.Client) FactoryOption {
	return func(f *Factory) { f.client = c }
}

// WaitForExport makes Load trigger export generation when no cached
// export exists, polling until one is ready.
func WaitForExport(wait bool) FactoryOption {
	return func(f *Factory) { f.waitForExport = wait }
}

// WithPolling overrides the polling schedule used while waiting for
// export generation.
func WithPolling(pollDelay, maxWait time.Duration) FactoryOption {
	return func(f *Factory) {
		f.pollDelay = pollDelay
		f.maxWait = maxWait
	}
}

// NewFactory creates an export factory. The token may be empty for
// public repositories.
func NewFactory(token string, opts ...FactoryOption) *Factory {
	f := &Factory{
		client:    &http.Client{Timeout: 120 * time.Second},
		token:     token,
		pollDelay: DefaultPollDelay,
		maxWait:   DefaultMaxWait,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Factory) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Token "+f.token)
	}
}

// Load fetches the export for a repository version URL, e.g.
// https://api.openconceptlab.org/orgs/MyOrg/sources/MySource/v1.0/.
// The zipped payload is decompressed and parsed in memory.
func (f *Factory) Load(ctx context.Context, repoVersionURL string) (*Export, error) {
	exportURL := repoVersionURL + "export/"

	status, body, err := f.fetch(ctx, exportURL)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK && f.waitForExport {
		if status == http.StatusNoContent {
			// No cached export; ask the server to generate one.
			if err := f.triggerGeneration(ctx, exportURL); err != nil {
				return nil, err
			}
		}
		status, body, err = f.pollForExport(ctx, exportURL)
		if err != nil {
			return nil, err
		}
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w at %s: status %d", ErrExportNotAvailable, exportURL, status)
	}

	return parseZippedExport(repoVersionURL, body)
}

func (f *Factory) fetch(ctx context.Context, exportURL string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, exportURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build export request: %w", err)
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("fetch export: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read export response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return 0, nil, fmt.Errorf("export request to %s failed: status %d", exportURL, resp.StatusCode)
	}
	return resp.StatusCode, body, nil
}

func (f *Factory) triggerGeneration(ctx context.Context, exportURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, exportURL, nil)
	if err != nil {
		return fmt.Errorf("build export generation request: %w", err)
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("trigger export generation: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("export generation at %s rejected: status %d", exportURL, resp.StatusCode)
	}
	logging.FromContext(ctx).Info("export generation triggered", "url", exportURL)
	return nil
}

func (f *Factory) pollForExport(ctx context.Context, exportURL string) (int, []byte, error) {
	policy := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(f.pollDelay),
		backoff.WithMaxInterval(f.pollDelay*4),
		backoff.WithMaxElapsedTime(f.maxWait),
	)

	var status int
	var body []byte
	operation := func() error {
		var err error
		status, body, err = f.fetch(ctx, exportURL)
		if err != nil {
			return backoff.Permanent(err)
		}
		if status != http.StatusOK {
			logging.FromContext(ctx).Debug("export not ready", "url", exportURL, "status", status)
			return fmt.Errorf("export not ready (status %d)", status)
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return 0, nil, perm.Unwrap()
		}
		return 0, nil, fmt.Errorf("%w at %s: generation did not finish within %s",
			ErrExportNotAvailable, exportURL, f.maxWait)
	}
	return status, body, nil
}

// parseZippedExport extracts export.json from the zip payload.
func parseZippedExport(repoVersionURL string, payload []byte) (*Export, error) {
	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("open export archive for %s: %w", repoVersionURL, err)
	}
	for _, file := range zr.File {
		if file.Name != "export.json" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open export.json: %w", err)
		}
		defer rc.Close()
		var raw resources.Resource
		if err := json.NewDecoder(rc).Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse export.json: %w", err)
		}
		return New(raw)
	}
	return nil, fmt.Errorf("invalid repository export for %s: export.json not found in archive",
		repoVersionURL)
}

// LatestVersionID returns the ID of the most recent released version
// of the repository at the given URL.
func (f *Factory) LatestVersionID(ctx context.Context, repoURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, repoURL+"latest/", nil)
	if err != nil {
		return "", fmt.Errorf("build latest version request: %w", err)
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch latest version: %w", err)
	}
	defer resp.Body.Close()

	var version struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil || version.ID == "" {
		return "", fmt.Errorf("repository %q does not exist or has no released version", repoURL)
	}
	return version.ID, nil
}

// LoadLatest fetches the export of the repository's most recent
// released version. The repo URL should be of the form
// https://api.openconceptlab.org/orgs/MyOrg/sources/MySource/.
func (f *Factory) LoadLatest(ctx context.Context, repoURL string) (*Export, error) {
	versionID, err := f.LatestVersionID(ctx, repoURL)
	if err != nil {
		return nil, err
	}
	return f.Load(ctx, repoURL+versionID+"/")
}

// LoadAll fetches multiple repository version exports concurrently.
// Results are returned in input order; the first failure cancels the
// remaining fetches.
func (f *Factory) LoadAll(ctx context.Context, repoVersionURLs []string) ([]*Export, error) {
	exports := make([]*Export, len(repoVersionURLs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, url := range repoVersionURLs {
		i, url := i, url
		g.Go(func() error {
			e, err := f.Load(gctx, url)
			if err != nil {
				return fmt.Errorf("load %s: %w", url, err)
			}
			exports[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return exports, nil
}

// LoadFile loads a previously saved export.json from disk.
func LoadFile(path string) (*Export, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read export file: %w", err)
	}
	var doc resources.Resource
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse export file %s: %w", path, err)
	}
	return New(doc)
}
