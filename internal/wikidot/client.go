// Package wikidot speaks the wikidot AJAX / quick-module dialect:
// cookie-based sessions, a rotating per-request anti-forgery token, and
// module responses whose JSON body is itself an HTML fragment.
package wikidot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wikidot-tools/reservebot/internal/logger"
)

const (
	// wikidot rejects requests without a browser-ish user agent.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

	defaultLoginURL  = "https://www.wikidot.com/default--flow/login__LoginPopupScreen"
	sessionCookie    = "WIKIDOT_SESSION_ID"
	tokenCookie      = "wikidot_token7"
	contentTypeForm  = "application/x-www-form-urlencoded; charset=UTF-8"
	ajaxPath         = "/ajax-module-connector.php"
	quickPath        = "/quickmodule.php"
	defaultHTTPLimit = 60 * time.Second
)

// ErrBadCredentials is returned by Login when wikidot reports that the
// login and password do not match. It is never retried.
var ErrBadCredentials = errors.New("wikidot: login and password do not match")

// ModuleResponse is the JSON envelope of ajax-module-connector.php. Body
// is an HTML fragment to be scraped by the caller.
type ModuleResponse struct {
	Status  string `json:"status"`
	Body    string `json:"body"`
	Message string `json:"message"`
}

// PageHit is one result of the quick page-lookup module.
type PageHit struct {
	UnixName string `json:"unix_name"`
	Title    string `json:"title"`
}

// lookupResponse is the JSON envelope of quickmodule.php.
type lookupResponse struct {
	Pages []PageHit `json:"pages"`
}

// Client talks to one wikidot site. The session cookie is written once by
// Login and read by every later request; create one Client per site, never
// share one across sites.
type Client struct {
	base     string
	ajaxURL  string
	quickURL string
	loginURL string

	httpc *http.Client
	log   logger.Logger
	retry retryConfig

	cookie string // "WIKIDOT_SESSION_ID=...; wikidot_udsession=1;" once logged in
}

// NewClient builds a client for the site at base (ex:
// "https://backrooms-tech-cn.wikidot.com").
func NewClient(base string, log logger.Logger) *Client {
	base = strings.TrimRight(base, "/")
	return &Client{
		base:     base,
		ajaxURL:  base + ajaxPath,
		quickURL: base + quickPath,
		loginURL: defaultLoginURL,
		httpc:    &http.Client{Timeout: defaultHTTPLimit},
		log:      log,
		retry:    retryConfig{maxAttempts: defaultMaxAttempts, baseDelay: defaultBaseDelay},
	}
}

// newToken7 generates the per-request anti-forgery token. It mimics
// wikidot's own convention (a short lowercase base36 string) and is not a
// security boundary, so math/rand is fine.
func newToken7() string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, 8)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(b)
}

// Login authenticates the bot account and stores the session cookie.
// A credential mismatch returns ErrBadCredentials immediately; everything
// else is retried.
func (c *Client) Login(ctx context.Context, username, password string) error {
	return withRetry(ctx, c.retry, c.log, "login", func() error {
		token := newToken7()
		form := url.Values{
			"callbackIndex": {"0"},
			tokenCookie:     {token},
			"login":         {username},
			"password":      {password},
			"action":        {"Login2Action"},
			"event":         {"login"},
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loginURL, strings.NewReader(form.Encode()))
		if err != nil {
			return permanent(err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Content-Type", contentTypeForm)
		req.Header.Set("Origin", c.base)
		req.Header.Set("Referer", c.base)
		req.Header.Set("Cookie", fmt.Sprintf("%s=%s;", tokenCookie, token))

		resp, err := c.httpc.Do(req)
		if err != nil {
			return fmt.Errorf("login request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read login response: %w", err)
		}

		// The mismatch heading is authoritative regardless of HTTP status.
		if scrapeLoginMismatch(string(body)) {
			return permanent(ErrBadCredentials)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("login returned status %d", resp.StatusCode)
		}

		for _, ck := range resp.Cookies() {
			if ck.Name == sessionCookie {
				c.cookie = fmt.Sprintf("%s=%s; wikidot_udsession=1;", sessionCookie, ck.Value)
				c.log.Info("logged in to wikidot", logger.String("site", c.base))
				return nil
			}
		}
		return errors.New("login response carried no session cookie")
	})
}

// CallModule posts to the AJAX module connector under the current session.
// The client does not interpret params; callers compose moduleName, action
// and event fields themselves.
func (c *Client) CallModule(ctx context.Context, params map[string]string, moduleName string) (*ModuleResponse, error) {
	var out ModuleResponse
	err := withRetry(ctx, c.retry, c.log, "module "+moduleName, func() error {
		token := newToken7()
		form := url.Values{
			"moduleName":    {moduleName},
			"callbackIndex": {"0"},
			tokenCookie:     {token},
		}
		for k, v := range params {
			form.Set(k, v)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ajaxURL, strings.NewReader(form.Encode()))
		if err != nil {
			return permanent(err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Content-Type", contentTypeForm)
		req.Header.Set("Origin", c.base)
		req.Header.Set("Referer", c.base)
		req.Header.Set("Cookie", strings.TrimSpace(fmt.Sprintf("%s %s=%s;", c.cookie, tokenCookie, token)))

		resp, err := c.httpc.Do(req)
		if err != nil {
			return fmt.Errorf("module request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("module %s returned status %d", moduleName, resp.StatusCode)
		}

		if err := decodeJSON(resp.Body, &out); err != nil {
			return fmt.Errorf("module %s returned malformed JSON: %w", moduleName, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// QuickLookup issues a GET against the quick-module endpoint. This is the
// legacy lookup path and is operationally unreliable; it frequently
// answers with server errors, which is why it sits behind the same retry
// policy as everything else.
func (c *Client) QuickLookup(ctx context.Context, params map[string]string, moduleName string) ([]PageHit, error) {
	var out lookupResponse
	err := withRetry(ctx, c.retry, c.log, "quick "+moduleName, func() error {
		q := url.Values{"module": {moduleName}}
		for k, v := range params {
			q.Set(k, v)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.quickURL+"?"+q.Encode(), nil)
		if err != nil {
			return permanent(err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.httpc.Do(req)
		if err != nil {
			return fmt.Errorf("quick request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("quick module %s returned status %d", moduleName, resp.StatusCode)
		}

		if err := decodeJSON(resp.Body, &out); err != nil {
			return fmt.Errorf("quick module %s returned malformed JSON: %w", moduleName, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.Pages, nil
}

// FetchRendered fetches a page's markup. pageOrURL may be a bare page key
// (resolved against the site base) or an absolute URL. noRender asks
// wikidot for the raw page without rendering the wiki syntax.
func (c *Client) FetchRendered(ctx context.Context, pageOrURL string, noRender bool) (string, error) {
	target := pageOrURL
	if !strings.HasPrefix(target, "http") {
		target = c.base + "/" + target
	}
	if noRender {
		target += "/norender/true"
	}

	var body string
	err := withRetry(ctx, c.retry, c.log, "fetch "+pageOrURL, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return permanent(err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Referer", c.base)
		if c.cookie != "" {
			req.Header.Set("Cookie", c.cookie)
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			return fmt.Errorf("page fetch failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("page fetch returned status %d", resp.StatusCode)
		}

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read page body: %w", err)
		}
		body = string(raw)
		return nil
	})
	if err != nil {
		return "", err
	}
	return body, nil
}

// PageID resolves the numeric wikidot page id, needed by every page-action
// call.
func (c *Client) PageID(ctx context.Context, page string) (int64, error) {
	body, err := c.FetchRendered(ctx, page, true)
	if err != nil {
		return 0, err
	}
	id, ok := scrapePageID(body)
	if !ok {
		return 0, fmt.Errorf("no page id found on %s", page)
	}
	return id, nil
}
