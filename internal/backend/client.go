package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Options configures an HTTPClient.
type Options struct {
	BaseURL  string
	APIKey   string
	ClientID string
	Timeout  time.Duration
}

// HTTPClient calls the remote fitness backend's REST API. Auth endpoints
// follow the OAuth2 token conventions; everything else is JSON over bearer
// tokens obtained from SignIn or SignUp.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	oauth      *oauth2.Config
}

// NewHTTPClient creates an HTTPClient targeting opts.BaseURL.
func NewHTTPClient(opts Options) *HTTPClient {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	base := strings.TrimRight(opts.BaseURL, "/")
	return &HTTPClient{
		baseURL: base,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &apiKeyTransport{key: opts.APIKey, base: http.DefaultTransport},
		},
		oauth: &oauth2.Config{
			ClientID: opts.ClientID,
			Endpoint: oauth2.Endpoint{
				TokenURL:  base + "/auth/v1/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

// apiKeyTransport stamps the project API key on every outgoing request.
type apiKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if t.key == "" {
		return t.base.RoundTrip(r)
	}
	r2 := r.Clone(r.Context())
	r2.Header.Set("X-API-Key", t.key)
	return t.base.RoundTrip(r2)
}

// clientFor returns an http.Client that authenticates as tok. A nil token
// yields the anonymous client.
func (c *HTTPClient) clientFor(tok *oauth2.Token) *http.Client {
	if tok == nil || tok.AccessToken == "" {
		return c.httpClient
	}
	return &http.Client{
		Timeout: c.httpClient.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(tok),
			Base:   c.httpClient.Transport,
		},
	}
}

// oauthContext makes the oauth2 package use our transport for token calls.
func (c *HTTPClient) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func (c *HTTPClient) do(ctx context.Context, tok *oauth2.Token, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("backend: encode %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("backend: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.clientFor(tok).Do(req)
	if err != nil {
		return transportError(path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{
			Op:      path,
			Status:  resp.StatusCode,
			Kind:    kindForStatus(resp.StatusCode),
			Message: errorMessage(data),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("backend: decode %s: %w", path, err)
	}
	return nil
}

// errorMessage pulls a human readable message out of an error body.
func errorMessage(body []byte) string {
	var e struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
		Message     string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil {
		switch {
		case e.Message != "":
			return e.Message
		case e.Description != "":
			return e.Description
		case e.Error != "":
			return e.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
