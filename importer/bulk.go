package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/openconceptlab/ocldev/internal/logging"
	"github.com/openconceptlab/ocldev/resources"
)

const bulkImportEndpoint = "/manage/bulkimport/"

// Task states reported by the bulk import API while an import is still
// being processed.
const (
	TaskStatePending = "PENDING"
	TaskStateStarted = "STARTED"
)

// Default polling parameters for Wait.
const (
	DefaultPollDelay    = 5 * time.Second
	DefaultMaxPollDelay = 30 * time.Second
	DefaultMaxWait      = 120 * time.Minute
)

// Task identifies a submitted bulk import.
type Task struct {
	ID    string `json:"task"`
	State string `json:"state"`
	Queue string `json:"queue"`
}

// InProgress reports whether the task is still queued or running.
func (t Task) InProgress() bool {
	return t.State == TaskStatePending || t.State == TaskStateStarted
}

// BulkImporter submits JSON-lines payloads to the OCL bulk import API
// and polls for the asynchronous result.
type BulkImporter struct {
	client       *http.Client
	apiURL       string
	token        string
	queue        string
	pollDelay    time.Duration
	maxPollDelay time.Duration
	maxWait      time.Duration
	testMode     bool
}

// BulkOption configures a BulkImporter.
type BulkOption func(*BulkImporter)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) BulkOption {
	return func(b *BulkImporter) { b.client = c }
}

// WithQueue routes the import to a named bulk import queue.
func WithQueue(queue string) BulkOption {
	return func(b *BulkImporter) { b.queue = queue }
}

// WithPolling overrides the polling schedule used by Wait. The delay
// grows exponentially from pollDelay up to maxPollDelay; Wait gives up
// after maxWait.
func WithPolling(pollDelay, maxPollDelay, maxWait time.Duration) BulkOption {
	return func(b *BulkImporter) {
		b.pollDelay = pollDelay
		b.maxPollDelay = maxPollDelay
		b.maxWait = maxWait
	}
}

// WithTestMode submits imports as dry runs. The server validates and
// reports without persisting changes.
func WithTestMode(testMode bool) BulkOption {
	return func(b *BulkImporter) { b.testMode = testMode }
}

// NewBulkImporter creates a bulk importer for the given API root
// (e.g. https://api.openconceptlab.org) and token.
func NewBulkImporter(apiURL, token string, opts ...BulkOption) *BulkImporter {
	b := &BulkImporter{
		client:       &http.Client{Timeout: 120 * time.Second},
		apiURL:       apiURL,
		token:        token,
		pollDelay:    DefaultPollDelay,
		maxPollDelay: DefaultMaxPollDelay,
		maxWait:      DefaultMaxWait,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.pollDelay < DefaultPollDelay {
		b.pollDelay = DefaultPollDelay
	}
	if b.maxWait > DefaultMaxWait {
		b.maxWait = DefaultMaxWait
	}
	return b
}

func (b *BulkImporter) endpoint() string {
	if b.queue != "" {
		return b.apiURL + bulkImportEndpoint + url.PathEscape(b.queue) + "/"
	}
	return b.apiURL + bulkImportEndpoint
}

// Submit posts a resource list as JSON lines and returns the server's
// task handle.
func (b *BulkImporter) Submit(ctx context.Context, list *resources.ResourceList) (Task, error) {
	var body bytes.Buffer
	if err := list.WriteJSONLines(&body); err != nil {
		return Task{}, fmt.Errorf("encode import payload: %w", err)
	}
	return b.submit(ctx, &body)
}

// SubmitFile posts the contents of a JSON-lines file.
func (b *BulkImporter) SubmitFile(ctx context.Context, path string) (Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return Task{}, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()
	return b.submit(ctx, f)
}

func (b *BulkImporter) submit(ctx context.Context, body io.Reader) (Task, error) {
	endpoint := b.endpoint()
	if b.testMode {
		endpoint += "?test_mode=true"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return Task{}, fmt.Errorf("build bulk import request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+b.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return Task{}, fmt.Errorf("submit bulk import: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Task{}, fmt.Errorf("read bulk import response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Task{}, fmt.Errorf("bulk import rejected: status %d: %s", resp.StatusCode, raw)
	}

	var task Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return Task{}, fmt.Errorf("parse bulk import response: %w", err)
	}
	if task.ID == "" {
		return Task{}, fmt.Errorf("bulk import response missing task id: %s", raw)
	}

	logging.FromContext(ctx).Info("bulk import submitted",
		"task", task.ID, "state", task.State, "queue", b.queue)
	return task, nil
}

// Status fetches the current state of a task. When the import has
// finished, the returned task state is empty and results are set.
func (b *BulkImporter) Status(ctx context.Context, taskID string) (Task, *ImportResults, error) {
	endpoint := fmt.Sprintf("%s%s?task=%s&result=json",
		b.apiURL, bulkImportEndpoint, url.QueryEscape(taskID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Task{}, nil, fmt.Errorf("build status request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+b.token)

	resp, err := b.client.Do(req)
	if err != nil {
		return Task{}, nil, fmt.Errorf("fetch import status: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Task{}, nil, fmt.Errorf("read status response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Task{}, nil, fmt.Errorf("import status request failed: status %d: %s",
			resp.StatusCode, raw)
	}

	// A payload with an in-progress state means the import is still
	// running; anything else is the final results object.
	var task Task
	if err := json.Unmarshal(raw, &task); err == nil && task.InProgress() {
		task.ID = taskID
		return task, nil, nil
	}

	results, err := ParseImportResults(raw)
	if err != nil {
		return Task{}, nil, err
	}
	return Task{ID: taskID}, results, nil
}

// Wait polls until the task completes, the wait budget runs out, or
// the context is cancelled.
func (b *BulkImporter) Wait(ctx context.Context, taskID string) (*ImportResults, error) {
	log := logging.FromContext(ctx)

	policy := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(b.pollDelay),
		backoff.WithMaxInterval(b.maxPollDelay),
		backoff.WithMaxElapsedTime(b.maxWait),
	)

	var results *ImportResults
	operation := func() error {
		task, res, err := b.Status(ctx, taskID)
		if err != nil {
			return backoff.Permanent(err)
		}
		if res == nil {
			log.Debug("import still in progress", "task", taskID, "state", task.State)
			return fmt.Errorf("task %s still %s", taskID, task.State)
		}
		results = res
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Unwrap()
		}
		return nil, fmt.Errorf("bulk import did not complete within %s: %w", b.maxWait, err)
	}
	return results, nil
}

// Run submits the list and waits for the results.
func (b *BulkImporter) Run(ctx context.Context, list *resources.ResourceList) (*ImportResults, error) {
	task, err := b.Submit(ctx, list)
	if err != nil {
		return nil, err
	}
	return b.Wait(ctx, task.ID)
}
