// Package dashboard is the HTTP gateway to the remote sender dashboard: one
// CSRF-guarded endpoint for batch reads and one for submitting new senders.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/senderwatch/internal/domain"
	"github.com/bnema/senderwatch/internal/ports"
)

const (
	DefaultTokenTTL = 30 * time.Minute

	senderPagePath = "/senderPage"
	batchPath      = "/dataFunctions/updateSenderPage"
	addPath        = "/dataFunctions/addAccount"
)

var (
	errAuthExpired = errors.New("csrf token rejected")

	csrfMetaPattern = regexp.MustCompile(`<meta name="csrf-token" content="([^"]+)"`)
)

// SubmissionDefaults are the dashboard form fields the operator does not
// type per submission.
type SubmissionDefaults struct {
	GroupName   string
	AccountLock string
	AmountTake  string
	AmountKeep  string
	Priority    string
	ForceProxy  string
	UserPrice   string
}

type Config struct {
	BaseURL  string
	Cookies  map[string]string
	TokenTTL time.Duration
	Defaults SubmissionDefaults
}

type Client struct {
	baseURL    string
	cookies    map[string]string
	defaults   SubmissionDefaults
	tokenTTL   time.Duration
	httpClient *http.Client
	clock      ports.Clock
	logger     zerolog.Logger

	mu             sync.Mutex
	token          string
	tokenExpiresAt time.Time
}

var _ ports.FetchGateway = (*Client)(nil)
var _ ports.AccountSubmitter = (*Client)(nil)

func NewClient(cfg Config, httpClient *http.Client, clock ports.Clock, logger zerolog.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("dashboard base url is empty")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}

	return &Client{
		baseURL:    baseURL,
		cookies:    cfg.Cookies,
		defaults:   cfg.Defaults,
		tokenTTL:   tokenTTL,
		httpClient: httpClient,
		clock:      clock,
		logger:     logger.With().Str("component", "dashboard").Logger(),
	}, nil
}

// FetchBatch pulls the full sender table. A 403/419 means the CSRF token
// expired; the token is refreshed and the fetch retried once before the
// failure surfaces.
func (c *Client) FetchBatch(ctx context.Context) ([]domain.AccountRecord, error) {
	records, err := c.fetchBatchOnce(ctx, false)
	if errors.Is(err, errAuthExpired) {
		c.logger.Info().Msg("csrf token expired, refreshing")
		records, err = c.fetchBatchOnce(ctx, true)
	}
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) fetchBatchOnce(ctx context.Context, forceToken bool) ([]domain.AccountRecord, error) {
	token, err := c.csrfToken(ctx, forceToken)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"date":       {"0"},
		"bigUpdate":  {"0"},
		"csrf_token": {token},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+batchPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build batch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.attachCookies(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("batch fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == 419 {
		c.invalidateToken()
		return nil, errAuthExpired
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("batch fetch: unexpected status %d", resp.StatusCode)
	}

	var payload batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode batch response: %w", err)
	}

	records := make([]domain.AccountRecord, 0, len(payload.Data))
	for _, row := range payload.Data {
		if record, ok := decodeRow(row); ok {
			records = append(records, record)
		}
	}

	c.logger.Debug().Int("accounts", len(records)).Msg("batch fetched")
	return records, nil
}

// AddAccount submits a new sender. An "already exists" rejection counts as
// success: the account is on the dashboard either way.
func (c *Client) AddAccount(ctx context.Context, sub domain.Submission) (string, error) {
	token, err := c.csrfToken(ctx, false)
	if err != nil {
		return "", err
	}

	amountTake := sub.AmountTake
	if amountTake == "" {
		amountTake = c.defaults.AmountTake
	}
	amountKeep := sub.AmountKeep
	if amountKeep == "" {
		amountKeep = c.defaults.AmountKeep
	}

	payload := map[string]string{
		"email":        sub.Email,
		"password":     sub.Password,
		"backupCodes":  sub.BackupCodes,
		"groupName":    c.defaults.GroupName,
		"accountLock":  c.defaults.AccountLock,
		"amountToTake": amountTake,
		"amountToKeep": amountKeep,
		"priority":     c.defaults.Priority,
		"forceProxy":   c.defaults.ForceProxy,
		"userPrice":    c.defaults.UserPrice,
		"csrf_token":   token,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode add request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+addPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build add request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.attachCookies(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("add account: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == 419 {
		c.invalidateToken()
		return "", errAuthExpired
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("add account: unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read add response: %w", err)
	}

	var result struct {
		Success string `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		// Some responses are plain text.
		if strings.Contains(strings.ToLower(string(raw)), "success") {
			return "Success", nil
		}
		return "", fmt.Errorf("add account rejected: %s", truncate(string(raw), 100))
	}

	switch {
	case result.Success != "":
		return result.Success, nil
	case strings.Contains(strings.ToLower(result.Error), "already"):
		return "Exists", nil
	case result.Error != "":
		return "", fmt.Errorf("add account rejected: %s", result.Error)
	default:
		return "Success", nil
	}
}

// csrfToken returns the cached token, scraping the sender page for a fresh
// one when the cached value is missing, expired, or force-refreshed.
func (c *Client) csrfToken(ctx context.Context, force bool) (string, error) {
	c.mu.Lock()
	if !force && c.token != "" && c.clock.Now().Before(c.tokenExpiresAt) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+senderPagePath, nil)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	c.attachCookies(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch csrf token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch csrf token: unexpected status %d", resp.StatusCode)
	}

	html, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read sender page: %w", err)
	}

	match := csrfMetaPattern.FindSubmatch(html)
	if match == nil {
		return "", domain.ErrNoAuthToken
	}

	token := string(match[1])
	c.mu.Lock()
	c.token = token
	c.tokenExpiresAt = c.clock.Now().Add(c.tokenTTL)
	c.mu.Unlock()

	c.logger.Debug().Dur("ttl", c.tokenTTL).Msg("csrf token cached")
	return token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.tokenExpiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *Client) attachCookies(req *http.Request) {
	for name, value := range c.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
