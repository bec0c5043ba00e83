// Package fetch implements the web_fetch tool: it downloads a public
// URL and turns the body into text the model can read. HTML becomes
// lightly formatted markdown, JSON is pretty-printed, and anything else
// is returned as-is.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tokamak-network/ai-tokamak/internal/httpkit"
)

// Defaults for the web_fetch tool.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultMaxChars       = 50000
	MinMaxChars           = 100
	DefaultMaxBytes int64 = 5 * 1024 * 1024
	maxRedirects          = 5
)

// Extractor names reported in results.
const (
	ExtractorHTML = "html"
	ExtractorJSON = "json"
	ExtractorRaw  = "raw"
)

// browserUA is sent instead of the default agent string; several docs
// sites refuse unknown clients.
const browserUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_7_2) AppleWebKit/537.36 (KHTML, like Gecko) ai-tokamak"

// Result is the web_fetch payload.
type Result struct {
	URL       string `json:"url"`
	FinalURL  string `json:"final_url"`
	Status    int    `json:"status"`
	Extractor string `json:"extractor"`
	Truncated bool   `json:"truncated"`
	Length    int    `json:"length"`
	Text      string `json:"text"`
}

// Config configures a Fetcher.
type Config struct {
	MaxChars int
	Timeout  time.Duration
	// AllowPrivate disables the private network guard.
	AllowPrivate bool
}

// Fetcher downloads and extracts readable content from web pages.
type Fetcher struct {
	client   *http.Client
	guard    *httpkit.DialGuard
	maxChars int
	maxBytes int64
	logger   *slog.Logger
}

// New creates a Fetcher. Zero config values take the defaults.
func New(cfg Config, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	guard := httpkit.NewDialGuard()
	guard.AllowPrivate = cfg.AllowPrivate

	client := httpkit.NewClient(
		httpkit.WithTimeout(cfg.Timeout),
		httpkit.WithUserAgent(browserUA),
		httpkit.WithDialGuard(guard),
		httpkit.WithRetry(1, 500*time.Millisecond),
		httpkit.WithLogger(logger),
	)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return checkScheme(req.URL)
	}

	return &Fetcher{
		client:   client,
		guard:    guard,
		maxChars: cfg.MaxChars,
		maxBytes: DefaultMaxBytes,
		logger:   logger,
	}
}

// Validate checks that rawURL is an http(s) URL whose host does not
// resolve into a private network.
func (f *Fetcher) Validate(ctx context.Context, rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if err := checkScheme(u); err != nil {
		return nil, err
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("no hostname in URL")
	}
	if err := f.guard.CheckHost(ctx, u.Hostname()); err != nil {
		return nil, fmt.Errorf("access to internal networks is not allowed: %w", err)
	}
	return u, nil
}

func checkScheme(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %q", u.Scheme)
	}
	return nil
}

// Fetch downloads rawURL and extracts its text. maxChars <= 0 uses the
// fetcher default; smaller values are raised to MinMaxChars.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, maxChars int) (*Result, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("url is required")
	}
	if maxChars <= 0 {
		maxChars = f.maxChars
	}
	maxChars = max(maxChars, MinMaxChars)

	u, err := f.Validate(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,text/plain;q=0.8,*/*;q=0.7")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	text, extractor := extract(resp.Header.Get("Content-Type"), body)

	truncated := false
	if utf8.RuneCountInString(text) > maxChars {
		text = truncateRunes(text, maxChars)
		truncated = true
	}

	f.logger.Debug("web page fetched",
		"url", rawURL,
		"status", resp.StatusCode,
		"extractor", extractor,
		"chars", utf8.RuneCountInString(text),
		"truncated", truncated,
	)

	return &Result{
		URL:       rawURL,
		FinalURL:  resp.Request.URL.String(),
		Status:    resp.StatusCode,
		Extractor: extractor,
		Truncated: truncated,
		Length:    utf8.RuneCountInString(text),
		Text:      text,
	}, nil
}

// extract picks an extractor from the content type, sniffing for HTML
// when the type is missing or generic.
func extract(contentType string, body []byte) (string, string) {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "application/json") || strings.HasSuffix(strings.Split(ct, ";")[0], "+json"):
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, body, "", "  "); err == nil {
			return pretty.String(), ExtractorJSON
		}
		return string(body), ExtractorRaw
	case strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml") || looksLikeHTML(body):
		return extractHTML(string(body)), ExtractorHTML
	default:
		if !utf8.Valid(body) {
			return fmt.Sprintf("Binary content (%s), %d bytes", contentType, len(body)), ExtractorRaw
		}
		return string(body), ExtractorRaw
	}
}

func looksLikeHTML(body []byte) bool {
	head := strings.ToLower(strings.TrimSpace(string(body[:min(len(body), 256)])))
	return strings.HasPrefix(head, "<!doctype") || strings.HasPrefix(head, "<html")
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
