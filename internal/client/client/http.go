package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/songbook/songbook-session/internal/client/models"
)

// Backend endpoint paths, relative to the API base URL.
const (
	PathLogin                  = "/auth/login"
	PathMe                     = "/auth/me"
	PathForgotPassword         = "/auth/forgot-password"
	PathResetPassword          = "/auth/reset-password"
	PathVerifyEmail            = "/auth/verify-email"
	PathResendVerification     = "/auth/resend-verification"
	PathConfirmAccountDeletion = "/auth/confirm-account-deletion"
	PathConfirmEmailChange     = "/auth/confirm-email-change"
	// The reset router is mounted under /password-reset and declares the
	// same prefix itself.
	PathVerifyResetToken = "/password-reset/password-reset/verify-token"
)

const maxBodySize = 1 << 20

type HTTPClient struct {
	baseURL string
	http    *http.Client
	oauth   *oauth2.Config
}

// NewHTTPClient returns a client for the API rooted at baseURL. timeout
// bounds every request, including the credential exchange.
func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported api url scheme %q", u.Scheme)
	}
	base := strings.TrimRight(u.String(), "/")

	return &HTTPClient{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
		oauth: &oauth2.Config{
			Endpoint: oauth2.Endpoint{
				TokenURL:  base + PathLogin,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}, nil
}

// Login exchanges a username (or email) and password for a bearer token.
func (c *HTTPClient) Login(ctx context.Context, username, password string) (models.TokenResponse, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)

	tok, err := c.oauth.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		return models.TokenResponse{}, c.mapLoginError(err)
	}

	return models.TokenResponse{
		AccessToken: tok.AccessToken,
		TokenType:   tok.Type(),
		Expiry:      tok.Expiry,
	}, nil
}

func (c *HTTPClient) mapLoginError(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return mapTransportError(err)
	}
	status := 0
	if re.Response != nil {
		status = re.Response.StatusCode
	}
	apiErr := &APIError{StatusCode: status, Detail: parseDetail(re.Body)}
	if status == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, apiErr.Detail)
	}
	return apiErr
}

// Me returns the profile of the user the token belongs to.
func (c *HTTPClient) Me(ctx context.Context, token string) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodGet, PathMe, nil, nil, token, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

type emailRequest struct {
	Email string `json:"email"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type resetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type resetTokenResponse struct {
	Valid   bool   `json:"valid"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

type messageResponse struct {
	Msg                 string     `json:"msg"`
	Message             string     `json:"message"`
	DeletionScheduledAt *time.Time `json:"deletion_scheduled_at"`
}

func (m messageResponse) text() string {
	if m.Msg != "" {
		return m.Msg
	}
	return m.Message
}

func (c *HTTPClient) ForgotPassword(ctx context.Context, email string) (string, error) {
	var resp messageResponse
	if err := c.do(ctx, http.MethodPost, PathForgotPassword, nil, emailRequest{Email: email}, "", &resp); err != nil {
		return "", err
	}
	return resp.text(), nil
}

func (c *HTTPClient) ResetPassword(ctx context.Context, token, password string) (string, error) {
	var resp messageResponse
	if err := c.do(ctx, http.MethodPost, PathResetPassword, nil, resetRequest{Token: token, Password: password}, "", &resp); err != nil {
		return "", err
	}
	return resp.text(), nil
}

// VerifyResetToken checks a reset token without consuming it.
func (c *HTTPClient) VerifyResetToken(ctx context.Context, token string) (models.ResetTokenCheck, error) {
	var resp resetTokenResponse
	q := url.Values{"token": {token}}
	if err := c.do(ctx, http.MethodPost, PathVerifyResetToken, q, nil, "", &resp); err != nil {
		return models.ResetTokenCheck{}, err
	}
	return models.ResetTokenCheck{Valid: resp.Valid, Email: resp.Email, Message: resp.Message}, nil
}

func (c *HTTPClient) ConfirmEmailChange(ctx context.Context, token string) (string, error) {
	var resp messageResponse
	q := url.Values{"token": {token}}
	if err := c.do(ctx, http.MethodGet, PathConfirmEmailChange, q, nil, "", &resp); err != nil {
		return "", err
	}
	return resp.text(), nil
}

func (c *HTTPClient) VerifyEmail(ctx context.Context, token string) (string, error) {
	var resp messageResponse
	q := url.Values{"token": {token}}
	if err := c.do(ctx, http.MethodGet, PathVerifyEmail, q, nil, "", &resp); err != nil {
		return "", err
	}
	return resp.text(), nil
}

func (c *HTTPClient) ResendVerification(ctx context.Context, email string) (string, error) {
	var resp messageResponse
	q := url.Values{"email": {email}}
	if err := c.do(ctx, http.MethodPost, PathResendVerification, q, nil, "", &resp); err != nil {
		return "", err
	}
	return resp.text(), nil
}

func (c *HTTPClient) ConfirmAccountDeletion(ctx context.Context, token string) (models.DeletionConfirmation, error) {
	var resp messageResponse
	if err := c.do(ctx, http.MethodPost, PathConfirmAccountDeletion, nil, tokenRequest{Token: token}, "", &resp); err != nil {
		return models.DeletionConfirmation{}, err
	}
	out := models.DeletionConfirmation{Message: resp.text()}
	if resp.DeletionScheduledAt != nil {
		out.ScheduledAt = *resp.DeletionScheduledAt
	}
	return out, nil
}

// do performs one JSON round trip. A non-empty bearer is sent as an
// Authorization header; out may be nil.
func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, in any, bearer string, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		(&oauth2.Token{AccessToken: bearer, TokenType: "Bearer"}).SetAuthHeader(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return mapTransportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return mapTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Detail: parseDetail(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
