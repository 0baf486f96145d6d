package authapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/tokenkeeper/internal/client/token"
	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
)

// Auth service routes.
const (
	LoginPath          = "/auth/login"
	RenewPath          = "/auth/renew"
	SignupPath         = "/auth/signup"
	ForgotPasswordPath = "/auth/forgot-password"
	ResetPasswordPath  = "/auth/reset-password"
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type ResetPasswordRequest struct {
	Code     string `json:"code"`
	Password string `json:"password"`
}

type HTTPClientOpts struct {
	BaseURL string
	Timeout time.Duration
	Logger  logging.Logger
}

// HTTPClient is the HTTP binding of the auth service.
type HTTPClient struct {
	httpClient *resty.Client
	log        logging.Logger
}

var _ Renewer = (*HTTPClient)(nil)

func NewHTTPClient(opts HTTPClientOpts) *HTTPClient {
	c := &HTTPClient{log: opts.Logger}
	if c.log == nil {
		c.log = logging.Nop()
	}
	c.httpClient = resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	if opts.Timeout > 0 {
		c.httpClient.SetTimeout(opts.Timeout)
	}
	return c
}

func (c *HTTPClient) req(ctx context.Context) *resty.Request {
	return c.httpClient.R().
		SetContext(ctx).
		SetHeader(common.RequestIDHeaderName, uuid.NewString())
}

// Renew posts the current token to /auth/renew.
func (c *HTTPClient) Renew(ctx context.Context, current string) (token.Session, error) {
	res, err := c.req(ctx).
		SetHeader(common.AuthorizationHeaderName, common.BearerScheme+" "+current).
		Post(RenewPath)
	if err != nil {
		c.log.Warn(ctx, "renewal transport failure", "err", err)
		return token.Session{}, mapTransportError(err)
	}
	if res.IsError() {
		c.log.Warn(ctx, "renewal refused", "status", res.StatusCode())
		return token.Session{}, mapRenewStatus(res.StatusCode(), strings.TrimSpace(res.String()))
	}
	return decodeSession("renew", res.Body())
}

// Login exchanges credentials for a session. Wrong credentials yield
// common.ErrInvalidCredentials.
func (c *HTTPClient) Login(ctx context.Context, creds Credentials) (token.Session, error) {
	res, err := c.req(ctx).SetBody(creds).Post(LoginPath)
	if err != nil {
		return token.Session{}, fmt.Errorf("login: %w", mapTransportError(err))
	}
	switch {
	case res.StatusCode() == http.StatusUnauthorized, res.StatusCode() == http.StatusForbidden:
		return token.Session{}, common.ErrInvalidCredentials
	case res.IsError():
		return token.Session{}, &ResponseError{Op: "login", StatusCode: res.StatusCode(), Body: strings.TrimSpace(res.String())}
	}
	return decodeSession("login", res.Body())
}

func (c *HTTPClient) Signup(ctx context.Context, in SignupRequest) error {
	return c.post(ctx, "signup", SignupPath, in)
}

func (c *HTTPClient) ForgotPassword(ctx context.Context, email string) error {
	return c.post(ctx, "forgot password", ForgotPasswordPath, map[string]string{"email": email})
}

func (c *HTTPClient) ResetPassword(ctx context.Context, in ResetPasswordRequest) error {
	return c.post(ctx, "reset password", ResetPasswordPath, in)
}

// post sends an unauthenticated request whose answer body is ignored.
func (c *HTTPClient) post(ctx context.Context, op, path string, body any) error {
	res, err := c.req(ctx).SetBody(body).Post(path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapTransportError(err))
	}
	if res.IsError() {
		return &ResponseError{Op: op, StatusCode: res.StatusCode(), Body: strings.TrimSpace(res.String())}
	}
	return nil
}

func decodeSession(op string, body []byte) (token.Session, error) {
	var out sessionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return token.Session{}, fmt.Errorf("%s: %w: %w", op, common.ErrRenewalMalformed, err)
	}
	if strings.TrimSpace(out.Token) == "" {
		return token.Session{}, fmt.Errorf("%s: %w: empty token", op, common.ErrRenewalMalformed)
	}
	return out.session(), nil
}
