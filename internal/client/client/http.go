package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/vaultguard/internal/client/apperr"
	"github.com/dmitrijs2005/vaultguard/internal/client/models"
	"github.com/dmitrijs2005/vaultguard/internal/common"
	"github.com/dmitrijs2005/vaultguard/internal/logging"
	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
)

const maxBodySize = 1 << 20

// successEnvelope is the success shape of every API response.
type successEnvelope struct {
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message"`
}

// HTTPClient implements Client over the REST API. Cookies are kept in an
// in-memory jar; nothing is written to disk.
type HTTPClient struct {
	baseURL  string
	base     *url.URL
	http     *http.Client
	pipeline *Pipeline
	log      logging.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds a client for the API rooted at baseURL, e.g.
// "http://localhost:8000/api".
func NewHTTPClient(baseURL string, timeout time.Duration, log logging.Logger) (*HTTPClient, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}
	hc := &http.Client{Jar: jar, Timeout: timeout}

	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		base:    base,
		http:    hc,
		log:     log,
	}
	c.pipeline = NewPipeline(hc, c.rawRefresh, log)
	return c, nil
}

// Pipeline exposes the request pipeline, mostly for tests.
func (c *HTTPClient) Pipeline() *Pipeline { return c.pipeline }

func (c *HTTPClient) OnSessionLost(fn func(ctx context.Context)) {
	c.pipeline.OnSessionLost(fn)
}

// ClearSession expires the token cookies in the jar. The signup session
// cookie is kept.
func (c *HTTPClient) ClearSession() {
	expired := make([]*http.Cookie, 0, 2)
	for _, name := range []string{common.AccessTokenCookieName, common.RefreshTokenCookieName} {
		expired = append(expired, &http.Cookie{Name: name, Path: "/", MaxAge: -1})
	}
	c.http.Jar.SetCookies(c.base, expired)
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, in any) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// call sends one request through the pipeline and decodes the data field of
// the response into out, if out is not nil.
func (c *HTTPClient) call(ctx context.Context, method, path string, in, out any) error {
	req, err := c.newRequest(ctx, method, path, in)
	if err != nil {
		return err
	}

	resp, err := c.pipeline.Do(req)
	if err != nil {
		return c.transportError(ctx, method, path, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func (c *HTTPClient) transportError(ctx context.Context, method, path string, err error) error {
	var e *apperr.Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	c.log.Warn(ctx, "request failed", "method", method, "path", path, "error", err)
	return apperr.NewRequest("Network error, please try again", err)
}

func decodeResponse(resp *http.Response, out any) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return apperr.NewRequest("failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e := apperr.FromResponse(resp.StatusCode, raw)
		if e.RequestID == "" {
			e.RequestID = resp.Header.Get(common.RequestIDHeaderName)
		}
		return e
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	var env successEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return apperr.NewServer("malformed response", resp.Header.Get(common.RequestIDHeaderName))
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apperr.NewServer("malformed response data", resp.Header.Get(common.RequestIDHeaderName))
	}
	return nil
}

// rawRefresh rotates the token cookies without the 401 handling.
func (c *HTTPClient) rawRefresh(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodPost, pathRefresh, nil)
	if err != nil {
		return err
	}
	req.Header.Set(common.RequestIDHeaderName, uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, nil)
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *HTTPClient) Signup(ctx context.Context, username, email string) error {
	in := struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}{username, email}
	return c.call(ctx, http.MethodPost, "/auth", in, nil)
}

func (c *HTTPClient) GetIdentifier(ctx context.Context, email string) (*models.Identifier, error) {
	var id *models.Identifier
	if err := c.call(ctx, http.MethodPost, "/user/identifier", emailBody{email}, &id); err != nil {
		return nil, err
	}
	if id == nil || id.EncryptedDEK == "" {
		return nil, nil
	}
	return id, nil
}

func (c *HTTPClient) Login(ctx context.Context, email, authVerifier string) (models.UserInfo, error) {
	in := struct {
		Email        string `json:"email"`
		AuthVerifier string `json:"authVerifier"`
	}{email, authVerifier}

	var user models.UserInfo
	err := c.call(ctx, http.MethodPost, pathLogin, in, &user)
	return user, err
}

func (c *HTTPClient) SetupIdentifier(ctx context.Context, id models.Identifier) error {
	return c.call(ctx, http.MethodPatch, "/auth/verif/identifier", id, nil)
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	return c.call(ctx, http.MethodDelete, pathLogout, nil, nil)
}

func (c *HTTPClient) Refresh(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, pathRefresh, nil, nil)
}

type emailBody struct {
	Email string `json:"email"`
}

func (c *HTTPClient) ReportFailed(ctx context.Context, email string) error {
	return c.call(ctx, http.MethodPost, pathReportFailed, emailBody{email}, nil)
}

func (c *HTTPClient) Me(ctx context.Context) (models.UserInfo, error) {
	var user models.UserInfo
	err := c.call(ctx, http.MethodGet, "/auth/me", nil, &user)
	return user, err
}

func (c *HTTPClient) OTPStatus(ctx context.Context) (models.OTPStatus, error) {
	var st models.OTPStatus
	err := c.call(ctx, http.MethodGet, "/session/otp/status", nil, &st)
	return st, err
}

func (c *HTTPClient) ResendOTP(ctx context.Context) (models.ResendOTPResponse, error) {
	var r models.ResendOTPResponse
	err := c.call(ctx, http.MethodPatch, "/session/otp/resend", nil, &r)
	return r, err
}

func (c *HTTPClient) VerifyOTP(ctx context.Context, code string) error {
	in := struct {
		OTPCode string `json:"otpCode"`
	}{code}
	return c.call(ctx, http.MethodPost, "/session/otp/verify", in, nil)
}

func (c *HTTPClient) CheckSession(ctx context.Context) (models.SessionCheck, error) {
	var sc models.SessionCheck
	err := c.call(ctx, http.MethodGet, "/session/check", nil, &sc)
	return sc, err
}

func (c *HTTPClient) ListVault(ctx context.Context) ([]models.VaultRecord, error) {
	var items []models.VaultRecord
	err := c.call(ctx, http.MethodGet, "/vault/all", nil, &items)
	return items, err
}

func (c *HTTPClient) CreateVaultItem(ctx context.Context, item models.EncryptedVault) error {
	return c.call(ctx, http.MethodPost, "/vault", item, nil)
}
