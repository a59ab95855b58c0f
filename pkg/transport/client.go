// Package transport implements the HTTP API of the processing server.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/askiada/go-imgpipe/pkg/pipeline"
	"github.com/askiada/go-imgpipe/pkg/pipeline/model"
)

const (
	OperationsPath = "/api/operations"
	ProcessPath    = "/api/process"
	RequestIDKey   = "X-Request-ID"

	DefaultTimeout = 60 * time.Second
	DefaultRetries = 3

	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 4 << 10
)

// Client talks to the processing server.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
	retries    uint64
	newBackOff func() backoff.BackOff
}

type Option func(c *Client)

// WithHTTPClient replaces the default client, which has a DefaultTimeout timeout.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: timeout}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRetries sets how many times a failed catalog fetch is retried.
func WithRetries(retries uint64) Option {
	return func(c *Client) {
		c.retries = retries
	}
}

// WithBackOff sets the policy between two catalog fetch attempts.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(c *Client) {
		c.newBackOff = newBackOff
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(ErrBaseURL, "%s: %s", baseURL, err)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.Wrapf(ErrBaseURL, "%q", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		retries:    DefaultRetries,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff(backoff.WithInitialInterval(200 * time.Millisecond))
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return c, nil
}

func (c *Client) endpoint(p string) string {
	u := *c.baseURL
	u.Path = path.Join("/", strings.TrimSuffix(c.baseURL.Path, "/"), p)

	return u.String()
}

// FetchCatalog returns the operation catalog. Network failures and 5xx responses are retried;
// 4xx responses and invalid catalogs are not.
func (c *Client) FetchCatalog(ctx context.Context) (*model.Catalog, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.retries), ctx)

	attempt := 0
	catalog, err := backoff.RetryNotifyWithData(func() (*model.Catalog, error) {
		attempt++

		return c.fetchCatalog(ctx)
	}, policy, func(err error, next time.Duration) {
		c.logger.Warn("unable to fetch operations, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("next", next),
			slog.Any("error", err),
		)
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to fetch operations")
	}

	return catalog, nil
}

func (c *Client) fetchCatalog(ctx context.Context) (*model.Catalog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(OperationsPath), http.NoBody)
	if err != nil {
		return nil, backoff.Permanent(errors.Wrap(err, "unable to create request"))
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}

		return nil, errors.Wrap(err, "unable to send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := statusError(resp)
		if !serr.Temporary() {
			return nil, backoff.Permanent(serr)
		}

		return nil, serr
	}

	catalog := &model.Catalog{}

	err = json.NewDecoder(resp.Body).Decode(catalog)
	if err != nil {
		return nil, backoff.Permanent(errors.Wrapf(ErrMalformedResponse, "%s", err))
	}

	err = catalog.Validate()
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	return catalog, nil
}

func statusError(resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// wireStep is a step as sent to the server.
type wireStep struct {
	ID     string       `json:"id"`
	Params model.Params `json:"params"`
}

func encodeProcessRequest(req model.ProcessRequest) (*bytes.Buffer, string, error) {
	steps := make([]wireStep, 0, len(req.Steps))
	for _, step := range req.Steps {
		params := step.Params
		if params == nil {
			params = model.Params{}
		}

		steps = append(steps, wireStep{ID: step.OperationID, Params: params})
	}

	previews := req.PreviewSteps
	if previews == nil {
		previews = []int{}
	}

	pipelineJSON, err := json.Marshal(steps)
	if err != nil {
		return nil, "", errors.Wrap(err, "unable to encode pipeline")
	}

	previewsJSON, err := json.Marshal(previews)
	if err != nil {
		return nil, "", errors.Wrap(err, "unable to encode preview steps")
	}

	body := &bytes.Buffer{}
	wrt := multipart.NewWriter(body)

	name := req.Image.Name
	if name == "" {
		name = "image"
	}

	part, err := wrt.CreateFormFile("image", name)
	if err != nil {
		return nil, "", errors.Wrap(err, "unable to create image part")
	}

	_, err = part.Write(req.Image.Data)
	if err != nil {
		return nil, "", errors.Wrap(err, "unable to write image part")
	}

	err = wrt.WriteField("pipeline", string(pipelineJSON))
	if err != nil {
		return nil, "", errors.Wrap(err, "unable to write pipeline field")
	}

	err = wrt.WriteField("preview_steps", string(previewsJSON))
	if err != nil {
		return nil, "", errors.Wrap(err, "unable to write preview steps field")
	}

	err = wrt.Close()
	if err != nil {
		return nil, "", errors.Wrap(err, "unable to close multipart body")
	}

	return body, wrt.FormDataContentType(), nil
}

// Process submits the image and the steps. A failure reported by the server, including a non 2xx
// response with a JSON error, is returned as a result with Success set to false.
func (c *Client) Process(ctx context.Context, preq model.ProcessRequest) (*model.ProcessResult, error) {
	body, contentType, err := encodeProcessRequest(preq)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(ProcessPath), body)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create request")
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	if preq.ID != "" {
		req.Header.Set(RequestIDKey, preq.ID)
	}

	logger := c.logger.With(slog.String("request_id", preq.ID))
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "unable to send request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read response")
	}

	logger.Debug("process response",
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(raw)),
		slog.Duration("elapsed", time.Since(start)),
	)

	res := &model.ProcessResult{}
	decodeErr := json.Unmarshal(raw, res)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && res.Error != "" {
			res.Success = false

			return res, nil
		}

		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}

		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if decodeErr != nil {
		return nil, errors.Wrapf(ErrMalformedResponse, "%s", decodeErr)
	}

	return res, nil
}

var _ pipeline.Transport = (*Client)(nil)
