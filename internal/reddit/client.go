package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Joel-Projects/modlogd/config"
	apperrors "github.com/Joel-Projects/modlogd/internal/errors"
	"github.com/Joel-Projects/modlogd/internal/logger"
)

const (
	defaultAPIBase  = "https://oauth.reddit.com"
	defaultTokenURL = "https://www.reddit.com/api/v1/access_token"
)

// Credentials authorizes one service account against the source API
type Credentials struct {
	Username string
	Password string
}

// CredentialSource resolves the credentials of a registered service
// account. Credential issuance itself is owned by an external flow.
type CredentialSource interface {
	Credentials(account string) (Credentials, bool)
}

// EnvCredentialSource reads account passwords from the environment
// (REDDIT_PASSWORD_<ACCOUNT>, uppercased)
type EnvCredentialSource struct{}

func (EnvCredentialSource) Credentials(account string) (Credentials, bool) {
	password := os.Getenv("REDDIT_PASSWORD_" + strings.ToUpper(account))
	if password == "" {
		return Credentials{}, false
	}
	return Credentials{Username: account, Password: password}, true
}

// LogParams parameterizes one mod-log fetch
type LogParams struct {
	Limit     int
	After     string
	Before    string
	AdminOnly bool
}

// Client is a mod-log client bound to one service account. Its pagination
// state is not safe for concurrent use; each stream worker owns its own
// client.
type Client struct {
	http     *http.Client
	limiter  *rate.Limiter
	cfg      config.RedditConfig
	creds    Credentials
	apiBase  string
	tokenURL string

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// NewClient creates a client for one service account
func NewClient(cfg config.RedditConfig, creds Credentials) *Client {
	return &Client{
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		cfg:      cfg,
		creds:    creds,
		apiBase:  defaultAPIBase,
		tokenURL: defaultTokenURL,
	}
}

// ensureToken fetches or refreshes the OAuth token for the service account
func (c *Client) ensureToken(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.tokenExp) > time.Minute {
		return nil
	}

	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.creds.Username},
		"password":   {c.creds.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.SourceError{Op: "token", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperrors.SourceError{
			StatusCode: resp.StatusCode,
			Op:         "token",
			Err:        fmt.Errorf("HTTP %d", resp.StatusCode),
			Fatal:      resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden,
		}
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return apperrors.SourceError{Op: "token", Err: fmt.Errorf("empty access token"), Fatal: true}
	}

	c.token = body.AccessToken
	c.tokenExp = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	return nil
}

// ModLog fetches one page of the moderation log for a set of subreddits,
// newest first. It returns the raw entries and the continuation cursor for
// older history. Transient failures are retried with a bounded attempt
// count; anything else is a fatal source error.
func (c *Client) ModLog(ctx context.Context, subreddits []string, p LogParams) ([]map[string]any, string, error) {
	var entries []map[string]any
	var after string
	var err error

	for attempt := 0; attempt <= c.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * c.cfg.RetryDelay
			logger.Debug("Retrying mod log fetch", "account", c.creds.Username, "attempt", attempt, "delay", delay)

			select {
			case <-ctx.Done():
				return nil, "", ctx.Err()
			case <-time.After(delay):
			}
		}

		entries, after, err = c.fetchLog(ctx, subreddits, p)
		if err == nil || apperrors.IsSourceFatal(err) {
			break
		}

		logger.Warn("Mod log fetch attempt failed",
			"account", c.creds.Username,
			"attempt", attempt+1,
			"error", err,
		)
	}

	if err != nil {
		return nil, "", err
	}
	return entries, after, nil
}

func (c *Client) fetchLog(ctx context.Context, subreddits []string, p LogParams) ([]map[string]any, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}
	if err := c.ensureToken(ctx); err != nil {
		return nil, "", err
	}

	q := url.Values{}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.After != "" {
		q.Set("after", p.After)
	}
	if p.Before != "" {
		q.Set("before", p.Before)
	}
	if p.AdminOnly {
		q.Set("mod", "a")
	}

	endpoint := c.apiBase + "/r/" + strings.Join(subreddits, "+") + "/about/log?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", apperrors.SourceError{Op: "mod log", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout:
		return nil, "", apperrors.SourceError{StatusCode: resp.StatusCode, Op: "mod log", Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	default:
		// Revoked access, unknown subreddit, or a server error: the worker
		// cannot make progress against this partition.
		return nil, "", apperrors.SourceError{StatusCode: resp.StatusCode, Op: "mod log", Err: fmt.Errorf("HTTP %d", resp.StatusCode), Fatal: true}
	}

	var listing struct {
		Data struct {
			After    string `json:"after"`
			Children []struct {
				Data map[string]any `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, "", fmt.Errorf("decode mod log: %w", err)
	}

	entries := make([]map[string]any, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		entries = append(entries, child.Data)
	}
	return entries, listing.Data.After, nil
}
