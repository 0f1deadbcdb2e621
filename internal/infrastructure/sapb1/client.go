// Package sapb1 is the SAP Business One Service Layer adapter: a
// session-holding HTTP client, the read-side query facade and the
// delivery-note poster.
package sapb1

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"grnflow/internal/core/apperror"
	"grnflow/pkg/logger"
)

// Config holds Service Layer connection settings.
type Config struct {
	// BaseURL is the server root, e.g. https://sap.example.com:50000.
	BaseURL   string
	Username  string
	Password  string
	CompanyDB string

	// Timeout per request, default 30s.
	Timeout time.Duration

	// InsecureSkipVerify disables TLS verification. Service Layer instances
	// frequently run on self-signed certificates inside the LAN.
	InsecureSkipVerify bool
}

// Client is a Service Layer HTTP client. It logs in lazily, keeps the
// session value explicitly, and on a 401 re-logins exactly once before
// retrying the same call.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu      sync.Mutex
	session string
}

// NewClient creates the client. No connection is made until the first call.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}
}

type loginRequest struct {
	UserName  string `json:"UserName"`
	Password  string `json:"Password"`
	CompanyDB string `json:"CompanyDB"`
}

type loginResponse struct {
	SessionID string `json:"SessionId"`
}

// Login authenticates against the Service Layer and stores the session value.
func (c *Client) Login(ctx context.Context) error {
	if c.cfg.BaseURL == "" || c.cfg.Username == "" || c.cfg.Password == "" || c.cfg.CompanyDB == "" {
		return apperror.NewSAPAuthFailed(fmt.Errorf("incomplete service layer configuration"))
	}

	body, err := json.Marshal(loginRequest{
		UserName:  c.cfg.Username,
		Password:  c.cfg.Password,
		CompanyDB: c.cfg.CompanyDB,
	})
	if err != nil {
		return fmt.Errorf("marshal login: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/b1s/v1/Login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperror.NewSAPUnreachable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apperror.NewSAPAuthFailed(fmt.Errorf("login status %d: %s", resp.StatusCode, respBody))
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}
	if lr.SessionID == "" {
		return apperror.NewSAPAuthFailed(fmt.Errorf("login response carried no session id"))
	}

	c.mu.Lock()
	c.session = lr.SessionID
	c.mu.Unlock()

	logger.Info(ctx, "service layer login ok", "company_db", c.cfg.CompanyDB)
	return nil
}

func (c *Client) sessionValue() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) clearSession() {
	c.mu.Lock()
	c.session = ""
	c.mu.Unlock()
}

// do issues one Service Layer call. path is relative to /b1s/v1.
// A 401 response triggers exactly one re-login and one retry of the same
// request; a second 401 surfaces as an auth failure.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.sessionValue() == "" {
		if err := c.Login(ctx); err != nil {
			return err
		}
	}

	status, respBody, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized {
		logger.Warn(ctx, "service layer session expired, re-authenticating", "path", path)
		c.clearSession()
		if err := c.Login(ctx); err != nil {
			return err
		}
		status, respBody, err = c.send(ctx, method, path, query, body)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			return apperror.NewSAPAuthFailed(fmt.Errorf("still unauthorized after re-login"))
		}
	}

	switch {
	case status == http.StatusNotFound:
		return apperror.NewNotFound("sap resource", path)
	case status < 200 || status > 299:
		return apperror.NewSAPRejected(status, string(respBody))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	reqURL := c.cfg.BaseURL + "/b1s/v1" + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Disable server-side paging so list reads come back whole.
	req.Header.Set("Prefer", "odata.maxpagesize=0")
	req.AddCookie(&http.Cookie{Name: "B1SESSION", Value: c.sessionValue()})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, apperror.NewSAPUnreachable(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}
