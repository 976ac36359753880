// Package feed fetches RSS/Atom resources and normalizes their items.
// Real-world feeds are frequently invalid XML, so the raw bytes are sanitized
// before parsing, with a second parse attempt on the untouched bytes when the
// sanitized pass fails.
package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/habernet/newscore/internal/dates"
	"github.com/habernet/newscore/internal/textutil"
)

const (
	userAgent    = "Mozilla/5.0 (compatible; newscore/1.0; +https://github.com/habernet/newscore)"
	acceptHeader = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"

	maxFeedBytes = 10 << 20
)

// Item is one normalized feed entry.
type Item struct {
	Title       string
	Link        string
	Description string
	PublishedAt time.Time
	Author      string
	GUID        string
	Enclosure   *Enclosure
}

// Enclosure is an attached media resource.
type Enclosure struct {
	URL    string
	Type   string
	Length string
}

// Result is the outcome of one feed fetch.
type Result struct {
	FeedTitle string
	URL       string
	Items     []Item
	FetchedAt time.Time
}

// FetchError reports a transport-level failure, carrying the HTTP status when
// the server answered at all.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a feed that could not be parsed on either pass.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse feed %s: %v", e.URL, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// Reader fetches and parses feeds.
type Reader struct {
	client *http.Client
	parser *gofeed.Parser
}

func NewReader(timeout time.Duration) *Reader {
	return &Reader{
		client: &http.Client{Timeout: timeout},
		parser: gofeed.NewParser(),
	}
}

// Fetch downloads and parses the feed at url.
func (r *Reader) Fetch(ctx context.Context, url string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	// Several feed servers reject the default Go user agent.
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	parsed, err := r.parser.ParseString(string(sanitizeXML(raw)))
	if err != nil {
		// Some malformed feeds parse fine raw but fail after sanitization,
		// and vice versa. Try the untouched bytes before giving up.
		slog.Debug("sanitized feed parse failed, retrying raw", "url", url, "error", err)
		parsed, err = r.parser.ParseString(string(raw))
		if err != nil {
			return nil, &ParseError{URL: url, Err: err}
		}
	}

	result := &Result{
		FeedTitle: parsed.Title,
		URL:       url,
		Items:     make([]Item, 0, len(parsed.Items)),
		FetchedAt: time.Now(),
	}
	for _, raw := range parsed.Items {
		result.Items = append(result.Items, normalizeItem(raw))
	}
	return result, nil
}

func normalizeItem(raw *gofeed.Item) Item {
	item := Item{
		Title:       textutil.CleanHTML(raw.Title),
		Link:        raw.Link,
		Description: textutil.CleanHTML(raw.Description),
	}
	if item.Description == "" {
		item.Description = textutil.CleanHTML(raw.Content)
	}

	// GUID is a dedup key only within a single feed; fall back to the link.
	item.GUID = raw.GUID
	if item.GUID == "" {
		item.GUID = raw.Link
	}

	if raw.Author != nil {
		item.Author = raw.Author.Name
	}

	switch {
	case raw.PublishedParsed != nil:
		item.PublishedAt = *raw.PublishedParsed
	case raw.UpdatedParsed != nil:
		item.PublishedAt = *raw.UpdatedParsed
	case raw.Published != "":
		if t, err := dates.Normalize(raw.Published); err == nil {
			item.PublishedAt = t
		}
	}
	// Freshness is approximate by design: an unparseable date means "now"
	// rather than a rejected item.
	if item.PublishedAt.IsZero() {
		item.PublishedAt = time.Now()
	}

	if len(raw.Enclosures) > 0 && raw.Enclosures[0].URL != "" {
		item.Enclosure = &Enclosure{
			URL:    raw.Enclosures[0].URL,
			Type:   raw.Enclosures[0].Type,
			Length: raw.Enclosures[0].Length,
		}
	}

	return item
}
