// Package incore provides a client for the IN-CORE dataset catalog service.
package incore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the catalog operations the pipeline needs.
type Client interface {
	// SearchDatasets returns the datasets whose title matches the query.
	SearchDatasets(ctx context.Context, title string) ([]Dataset, error)
	// GetDataset fetches one dataset by id.
	GetDataset(ctx context.Context, id string) (*Dataset, error)
	// CreateDataset registers a new dataset and returns it with its id.
	CreateDataset(ctx context.Context, meta DatasetMeta) (*Dataset, error)
	// AttachFile uploads a local file to an existing dataset.
	AttachFile(ctx context.Context, datasetID, path string) (*Dataset, error)
}

// DatasetMeta is the metadata sent when registering a dataset.
type DatasetMeta struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DataType    string `json:"dataType"`
	Format      string `json:"format"`
}

// FileDescriptor is one file attached to a dataset.
type FileDescriptor struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Dataset is a catalog entry.
type Dataset struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	DataType        string           `json:"dataType"`
	Format          string           `json:"format"`
	FileDescriptors []FileDescriptor `json:"fileDescriptors"`
}

// Option configures the catalog client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	token   string
	baseURL string
	limiter *rate.Limiter
	http    *http.Client
}

// NewClient creates a catalog client. The token, when set, is sent as a
// static bearer credential on every request.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: "https://incore.ncsa.illinois.edu",
		limiter: rate.NewLimiter(5, 1),
		http: &http.Client{
			Timeout: 5 * time.Minute, // uploads carry whole community tables
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wait blocks until the rate limiter allows one event, or ctx is cancelled.
func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *httpClient) setHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes an HTTP request with exponential backoff retries on
// transient failures (429, 500, 502, 503). Requests with a body supply a
// GetBody so the clone can replay it.
func (c *httpClient) retryDo(ctx context.Context, req *http.Request) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.wait(ctx); err != nil {
			return nil, 0, err
		}

		retryReq := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, 0, eris.Wrap(err, "incore: replay request body")
			}
			retryReq.Body = body
		}

		resp, err := c.http.Do(retryReq)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "incore: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("incore: status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

func (c *httpClient) SearchDatasets(ctx context.Context, title string) ([]Dataset, error) {
	reqURL := fmt.Sprintf("%s/data/api/datasets?title=%s", c.baseURL, url.QueryEscape(title))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "incore: create search request")
	}
	c.setHeaders(req)

	body, statusCode, err := c.retryDo(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "incore: search request failed")
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("incore: search unexpected status %d: %s", statusCode, string(body))
	}

	var result []Dataset
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "incore: unmarshal search response")
	}
	return result, nil
}

func (c *httpClient) GetDataset(ctx context.Context, id string) (*Dataset, error) {
	reqURL := fmt.Sprintf("%s/data/api/datasets/%s", c.baseURL, url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "incore: create get request")
	}
	c.setHeaders(req)

	body, statusCode, err := c.retryDo(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "incore: get request failed")
	}
	if statusCode == http.StatusNotFound {
		return nil, eris.Errorf("incore: dataset %s not found", id)
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("incore: get unexpected status %d: %s", statusCode, string(body))
	}

	var result Dataset
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "incore: unmarshal dataset")
	}
	return &result, nil
}

func (c *httpClient) CreateDataset(ctx context.Context, meta DatasetMeta) (*Dataset, error) {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, eris.Wrap(err, "incore: marshal dataset metadata")
	}

	// The catalog takes the metadata as a multipart form field named
	// "dataset", not as a JSON request body.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("dataset", string(metaJSON)); err != nil {
		return nil, eris.Wrap(err, "incore: write dataset field")
	}
	if err := mw.Close(); err != nil {
		return nil, eris.Wrap(err, "incore: close multipart writer")
	}

	req, err := newMultipartRequest(ctx, http.MethodPost, c.baseURL+"/data/api/datasets", buf.Bytes(), mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	body, statusCode, err := c.retryDo(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "incore: create request failed")
	}
	if statusCode != http.StatusOK && statusCode != http.StatusCreated {
		return nil, eris.Errorf("incore: create unexpected status %d: %s", statusCode, string(body))
	}

	var result Dataset
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "incore: unmarshal created dataset")
	}
	return &result, nil
}

func (c *httpClient) AttachFile(ctx context.Context, datasetID, path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "incore: read upload file %s", path)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, eris.Wrap(err, "incore: create file part")
	}
	if _, err := fw.Write(data); err != nil {
		return nil, eris.Wrap(err, "incore: write file part")
	}
	if err := mw.Close(); err != nil {
		return nil, eris.Wrap(err, "incore: close multipart writer")
	}

	reqURL := fmt.Sprintf("%s/data/api/datasets/%s/files", c.baseURL, url.PathEscape(datasetID))
	req, err := newMultipartRequest(ctx, http.MethodPost, reqURL, buf.Bytes(), mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	body, statusCode, err := c.retryDo(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "incore: upload request failed")
	}
	if statusCode != http.StatusOK && statusCode != http.StatusCreated {
		return nil, eris.Errorf("incore: upload unexpected status %d: %s", statusCode, string(body))
	}

	var result Dataset
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "incore: unmarshal upload response")
	}
	return &result, nil
}

// newMultipartRequest builds a POST whose body can be replayed by retryDo.
func newMultipartRequest(ctx context.Context, method, reqURL string, payload []byte, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "incore: create request")
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	req.Header.Set("Content-Type", contentType)
	return req, nil
}
