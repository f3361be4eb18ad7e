// Package wiki fetches auxiliary character data from the Blood on the
// Clocktower wiki.
//
// A Client is an explicitly constructed handle: it owns one HTTP client and
// a page cache for the duration of a sync run, and must be closed when the
// run ends.
package wiki

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"

	"github.com/roach88/botcsync/internal/entity"
)

// Defaults for Config.
const (
	DefaultBaseURL      = "https://wiki.bloodontheclocktower.com"
	DefaultUserAgent    = "BOTC-Data-Sync/1.0 (+https://github.com/roach88/botcsync)"
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = time.Second
	maxRetryWait        = 8 * time.Second

	// MaxNameLength bounds a character name used to build a page URL.
	MaxNameLength = 100
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9\s\-'\x{00C0}-\x{00FF}]+$`)

var (
	// ErrNotFound is returned for a missing wiki page. It is permanent.
	ErrNotFound = errors.New("wiki page not found")
	// ErrInvalidName is returned for names that cannot form a page URL.
	ErrInvalidName = errors.New("invalid character name")
	// ErrNoContent is returned when a page has no extractable value.
	ErrNoContent = errors.New("no content found on wiki page")
)

// StatusError is a non-success HTTP status left after retries.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("wiki request %s: status %d", e.URL, e.Code)
}

// Permanent reports whether retrying could not help.
func (e *StatusError) Permanent() bool {
	return e.Code >= 400 && e.Code < 500 && e.Code != http.StatusTooManyRequests
}

// Config configures a Client.
type Config struct {
	BaseURL      string
	UserAgent    string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		UserAgent:    DefaultUserAgent,
		Timeout:      DefaultTimeout,
		MaxRetries:   DefaultMaxRetries,
		RetryBackoff: DefaultRetryBackoff,
	}
}

// Client fetches and parses wiki pages.
type Client struct {
	http *resty.Client
	base *url.URL

	group singleflight.Group
	mu    sync.Mutex
	pages map[string]*goquery.Document
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse wiki base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("wiki base url %q: unsupported scheme", cfg.BaseURL)
	}

	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}
	maxWait := maxRetryWait
	if backoff > maxWait {
		maxWait = backoff
	}

	client := resty.New()
	client.SetHeader("user-agent", cfg.UserAgent)
	client.SetTimeout(cfg.Timeout)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(base.Hostname()))
	client.SetRetryCount(cfg.MaxRetries)
	client.SetRetryWaitTime(backoff)
	client.SetRetryMaxWaitTime(maxWait)
	client.AddRetryCondition(retryable)

	return &Client{
		http:  client,
		base:  base,
		pages: make(map[string]*goquery.Document),
	}, nil
}

// retryable retries network errors, 5xx and 429. Other 4xx are permanent.
func retryable(res *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	code := res.StatusCode()
	return code == http.StatusTooManyRequests || code >= 500
}

// Close releases pooled connections and drops cached pages.
func (c *Client) Close() error {
	c.http.GetClient().CloseIdleConnections()
	c.mu.Lock()
	c.pages = make(map[string]*goquery.Document)
	c.mu.Unlock()
	return nil
}

// PageURL validates name and returns its wiki page URL. Spaces become
// underscores; everything else outside the unreserved set is escaped.
func (c *Client) PageURL(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", fmt.Errorf("%w: longer than %d", ErrInvalidName, MaxNameLength)
	}
	if !namePattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	page := url.PathEscape(strings.ReplaceAll(name, " ", "_"))
	return c.base.String() + "/" + page, nil
}

// Page returns the parsed wiki page for a character name. Each page is
// requested at most once per Client; concurrent callers share the request.
func (c *Client) Page(ctx context.Context, name string) (*goquery.Document, error) {
	link, err := c.PageURL(name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	doc, ok := c.pages[link]
	c.mu.Unlock()
	if ok {
		return doc, nil
	}

	v, err, _ := c.group.Do(link, func() (any, error) {
		doc, err := c.get(ctx, link)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.pages[link] = doc
		c.mu.Unlock()
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*goquery.Document), nil
}

func (c *Client) get(ctx context.Context, link string) (*goquery.Document, error) {
	slog.DebugContext(ctx, "fetching wiki page", "url", link)

	res, err := c.http.R().SetContext(ctx).Get(link)
	if err != nil {
		return nil, fmt.Errorf("wiki request %s: %w", link, err)
	}
	if res.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, link)
	}
	if res.IsError() {
		return nil, &StatusError{URL: link, Code: res.StatusCode()}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", link, err)
	}
	return doc, nil
}

// Fetch retrieves the value of category cat for e.
func (c *Client) Fetch(ctx context.Context, cat entity.AuxCategory, e *entity.Entity) (entity.AuxValue, error) {
	if cat == entity.Reminders {
		if tokens, ok := reminderOverrides[e.ID]; ok {
			return entity.AuxValue{Reminders: append([]string(nil), tokens...)}, nil
		}
	}

	doc, err := c.Page(ctx, e.Name)
	if err != nil {
		return entity.AuxValue{}, err
	}

	switch cat {
	case entity.Flavor:
		flavor := ExtractFlavor(doc)
		if flavor == "" {
			return entity.AuxValue{}, fmt.Errorf("%s flavor: %w", e.ID, ErrNoContent)
		}
		return entity.AuxValue{Flavor: flavor}, nil
	case entity.Reminders:
		return entity.AuxValue{Reminders: ExtractReminders(doc, e.Name)}, nil
	}
	return entity.AuxValue{}, fmt.Errorf("unsupported category %q", cat)
}
