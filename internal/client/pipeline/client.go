package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
)

// Call describes one API request. Body must be re-sendable (a value that
// resty marshals, not a stream) since a call may be issued twice.
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Header map[string]string
	Body   any
	Result any
}

// StatusError is returned for non-2xx answers other than a handled 401.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

type ClientOpts struct {
	BaseURL string
	Timeout time.Duration
	Policy  Policy
}

// Client is an HTTP client that authenticates every protected call.
type Client struct {
	httpClient *resty.Client
	policy     *Policy
}

func NewClient(opts ClientOpts) *Client {
	c := &Client{policy: &opts.Policy}
	c.httpClient = resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetRetryCount(0).
		OnBeforeRequest(c.authorize)
	if opts.Timeout > 0 {
		c.httpClient.SetTimeout(opts.Timeout)
	}
	return c
}

// authorize reads the token fresh from the store for every attempt.
func (c *Client) authorize(_ *resty.Client, r *resty.Request) error {
	if r.Header.Get(common.RequestIDHeaderName) == "" {
		r.SetHeader(common.RequestIDHeaderName, uuid.NewString())
	}
	if c.policy.isPublic(r.URL) {
		r.Header.Del(common.AuthorizationHeaderName)
		return nil
	}
	if tok, ok := c.policy.bearer(r.Context()); ok {
		r.SetHeader(common.AuthorizationHeaderName, common.BearerScheme+" "+tok)
	}
	return nil
}

// Do sends call. A 401 on a protected path triggers one refresh and one
// retry; a second 401, or a failed refresh, yields common.ErrRequestUnauthorized.
// When the stored token changed while the call was in flight the retry uses
// it without refreshing again.
func (c *Client) Do(ctx context.Context, call Call) (*resty.Response, error) {
	if call.Method == "" {
		call.Method = http.MethodGet
	}

	public := c.policy.isPublic(call.Path)
	if !public {
		if _, ok := c.policy.bearer(ctx); !ok {
			return nil, c.policy.refuse(ctx, call.Path)
		}
	}

	res, err := c.send(WithAttempt(ctx, AttemptInitial), call)
	if err != nil {
		return res, err
	}
	if public || res.StatusCode() != http.StatusUnauthorized {
		return res, checkStatus(call, res)
	}

	sent := strings.TrimPrefix(res.Request.Header.Get(common.AuthorizationHeaderName), common.BearerScheme+" ")
	ctx = WithAttempt(ctx, AttemptRetriedAfterRefresh)
	if _, err := c.policy.retryToken(ctx, call.Path, sent); err != nil {
		return res, c.policy.unauthorized(ctx, call.Path, err)
	}

	c.policy.Metrics.RecordRetry("http")
	c.policy.log().Debug(ctx, "retrying after refresh", "method", call.Method, "path", call.Path)

	res, err = c.send(ctx, call)
	if err != nil {
		return res, err
	}
	if res.StatusCode() == http.StatusUnauthorized {
		return res, c.policy.unauthorized(ctx, call.Path, checkStatus(call, res))
	}
	return res, checkStatus(call, res)
}

func (c *Client) send(ctx context.Context, call Call) (*resty.Response, error) {
	r := c.httpClient.R().SetContext(ctx)
	if call.Body != nil {
		r.SetBody(call.Body)
	}
	if call.Result != nil {
		r.SetResult(call.Result)
	}
	if len(call.Query) > 0 {
		r.SetQueryParamsFromValues(call.Query)
	}
	for k, v := range call.Header {
		r.SetHeader(k, v)
	}

	res, err := r.Execute(call.Method, call.Path)
	if err != nil {
		return res, fmt.Errorf("%s %s: %w", call.Method, call.Path, err)
	}
	c.policy.log().Debug(ctx, "api call",
		"method", call.Method,
		"path", call.Path,
		"status", res.StatusCode(),
		"attempt", AttemptFrom(ctx),
		"request_id", r.Header.Get(common.RequestIDHeaderName),
	)
	return res, nil
}

func checkStatus(call Call, res *resty.Response) error {
	if !res.IsError() {
		return nil
	}
	return &StatusError{
		Method:     call.Method,
		Path:       call.Path,
		StatusCode: res.StatusCode(),
		Body:       strings.TrimSpace(res.String()),
	}
}

func (c *Client) Get(ctx context.Context, path string, result any) (*resty.Response, error) {
	return c.Do(ctx, Call{Method: http.MethodGet, Path: path, Result: result})
}

func (c *Client) Post(ctx context.Context, path string, body, result any) (*resty.Response, error) {
	return c.Do(ctx, Call{Method: http.MethodPost, Path: path, Body: body, Result: result})
}

func (c *Client) Put(ctx context.Context, path string, body, result any) (*resty.Response, error) {
	return c.Do(ctx, Call{Method: http.MethodPut, Path: path, Body: body, Result: result})
}

func (c *Client) Delete(ctx context.Context, path string) (*resty.Response, error) {
	return c.Do(ctx, Call{Method: http.MethodDelete, Path: path})
}
