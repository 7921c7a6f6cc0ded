package reddit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Joel-Projects/modlogd/config"
	apperrors "github.com/Joel-Projects/modlogd/internal/errors"
)

func testConfig() config.RedditConfig {
	return config.RedditConfig{
		ClientID:      "cid",
		ClientSecret:  "secret",
		UserAgent:     "modlogd/test",
		StreamPause:   time.Millisecond,
		PageLimit:     500,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
		RateLimit:     1000,
	}
}

type listingPage struct {
	after   string
	entries []map[string]any
}

// newModLogServer serves a token endpoint and a scripted sequence of
// mod-log pages, one per request.
func newModLogServer(t *testing.T, pages []listingPage, record func(r *http.Request)) *httptest.Server {
	t.Helper()
	var served int
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/access_token" {
			json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
			return
		}
		if record != nil {
			record(r)
		}
		page := listingPage{}
		if served < len(pages) {
			page = pages[served]
			served++
		}
		children := make([]map[string]any, 0, len(page.entries))
		for _, e := range page.entries {
			children = append(children, map[string]any{"kind": "modaction", "data": e})
		}
		json.NewEncoder(w).Encode(map[string]any{
			"kind": "Listing",
			"data": map[string]any{"after": page.after, "children": children},
		})
	}))
}

func newTestClient(srv *httptest.Server, cfg config.RedditConfig) *Client {
	c := NewClient(cfg, Credentials{Username: "svc_account", Password: "pw"})
	c.apiBase = srv.URL
	c.tokenURL = srv.URL + "/api/v1/access_token"
	return c
}

func TestModLogDecodesEntries(t *testing.T) {
	var got *http.Request
	srv := newModLogServer(t, []listingPage{
		{after: "ModAction_2", entries: []map[string]any{
			{"id": "ModAction_1", "action": "removelink"},
			{"id": "ModAction_2", "action": "banuser"},
		}},
	}, func(r *http.Request) { got = r })
	defer srv.Close()

	c := newTestClient(srv, testConfig())
	entries, after, err := c.ModLog(context.Background(), []string{"suba", "subb"}, LogParams{Limit: 500})
	if err != nil {
		t.Fatalf("ModLog: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0]["id"] != "ModAction_1" {
		t.Errorf("unexpected first entry: %v", entries[0])
	}
	if after != "ModAction_2" {
		t.Errorf("after = %q", after)
	}
	if got.URL.Path != "/r/suba+subb/about/log" {
		t.Errorf("path = %q", got.URL.Path)
	}
	if got.URL.Query().Get("mod") != "" {
		t.Errorf("unexpected actor filter on ordinary stream: %q", got.URL.Query().Get("mod"))
	}
	if got.Header.Get("Authorization") != "Bearer tok" {
		t.Errorf("missing bearer token")
	}
}

func TestModLogAdminFilter(t *testing.T) {
	var got *http.Request
	srv := newModLogServer(t, nil, func(r *http.Request) { got = r })
	defer srv.Close()

	c := newTestClient(srv, testConfig())
	if _, _, err := c.ModLog(context.Background(), []string{"suba"}, LogParams{AdminOnly: true}); err != nil {
		t.Fatalf("ModLog: %v", err)
	}
	if got.URL.Query().Get("mod") != "a" {
		t.Errorf("expected admin actor filter, got %q", got.URL.Query().Get("mod"))
	}
}

func TestModLogRetriesTransientErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/access_token" {
			json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
			return
		}
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"kind": "Listing",
			"data": map[string]any{"after": "", "children": []any{}},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv, testConfig())
	if _, _, err := c.ModLog(context.Background(), []string{"suba"}, LogParams{}); err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 fetch attempts, got %d", calls)
	}
}

func TestModLogFatalErrorNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/access_token" {
			json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
			return
		}
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(srv, testConfig())
	_, _, err := c.ModLog(context.Background(), []string{"suba"}, LogParams{})
	if !apperrors.IsSourceFatal(err) {
		t.Fatalf("expected fatal source error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("fatal error should not be retried, got %d attempts", calls)
	}
}
