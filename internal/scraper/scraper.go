// Package scraper extracts article content from raw HTML pages. Feeds often
// carry only a link and a snippet; the scraper fills in the full text using
// scored heuristics over the parsed document.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/habernet/newscore/internal/dates"
	"github.com/habernet/newscore/internal/textutil"
)

const (
	browserUA      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	acceptHTML     = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLanguage = "tr-TR,tr;q=0.9,en-US;q=0.8,en;q=0.7"

	maxPageBytes    = 5 << 20
	minParagraphLen = 20
)

// Elements removed before body scoring.
const boilerplateSelector = "script, style, noscript, iframe, svg, form, nav, header, footer, aside, " +
	".comments, .comment-list, .social-share, .share-buttons, .advertisement, .ad-container, .related-news, .yorumlar"

// Content is the structured output of a successful scrape.
type Content struct {
	Title       string
	Body        string
	Summary     string
	Author      string
	PublishedAt time.Time
	ImageURL    string

	// ExtractionScore is the winning body container's heuristic score. It is
	// a transient ranking value, not meant for persistence.
	ExtractionScore float64
}

// Result is always returned by Scrape, success or not.
type Result struct {
	URL        string
	Success    bool
	Error      string
	DurationMs int64
	Content    Content
}

type Scraper struct {
	client *http.Client
}

func NewScraper(timeout time.Duration) *Scraper {
	return &Scraper{
		client: &http.Client{Timeout: timeout},
	}
}

// Scrape fetches pageURL and extracts article content. It never returns an
// error across the boundary; failures are reported inside the Result.
func (s *Scraper) Scrape(ctx context.Context, pageURL string) *Result {
	start := time.Now()
	result := &Result{URL: pageURL}
	defer func() {
		result.DurationMs = time.Since(start).Milliseconds()
	}()

	raw, base, err := s.fetch(ctx, pageURL)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		result.Error = fmt.Sprintf("parse html: %v", err)
		return result
	}

	content := extract(doc, base)

	if content.Body == "" {
		// Scored extraction found nothing usable; run readability over the
		// page as a last resort before reporting failure.
		if article, rerr := readability.FromReader(bytes.NewReader(raw), base); rerr == nil {
			content.Body = textutil.CollapseWhitespace(article.TextContent)
			if content.Title == "" {
				content.Title = article.Title
			}
			if content.Author == "" {
				content.Author = article.Byline
			}
			if content.ImageURL == "" {
				content.ImageURL = article.Image
			}
			if content.Summary == "" {
				content.Summary = article.Excerpt
			}
		}
	}

	if content.Body == "" {
		result.Error = "no content extracted"
		return result
	}

	result.Success = true
	result.Content = content
	slog.Debug("scraped article",
		"url", pageURL,
		"title", content.Title,
		"body_len", len(content.Body),
		"score", content.ExtractionScore)
	return result
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) ([]byte, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	// Many sites block default client identifiers, so look like a browser.
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Accept", acceptHTML)
	req.Header.Set("Accept-Language", acceptLanguage)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("fetch page: status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("read page: %w", err)
	}
	return raw, resp.Request.URL, nil
}

func extract(doc *goquery.Document, base *url.URL) Content {
	var content Content

	content.Title = extractTitle(doc)
	content.Summary = extractSummary(doc)
	content.Author = extractAuthor(doc)
	content.PublishedAt = extractDate(doc)
	content.ImageURL = extractImage(doc, base)

	doc.Find(boilerplateSelector).Remove()
	content.Body, content.ExtractionScore = extractBody(doc)

	return content
}

func extractTitle(doc *goquery.Document) string {
	for _, sel := range []string{`meta[property="og:title"]`, `meta[name="twitter:title"]`} {
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			v = textutil.CollapseWhitespace(v)
			if len([]rune(v)) > metaTitleMinLen {
				return v
			}
		}
	}

	headings := doc.Find("h1")
	if headings.Length() == 0 {
		headings = doc.Find("h2")
	}
	total := headings.Length()

	best := ""
	bestScore := 0.0
	headings.Each(func(i int, h *goquery.Selection) {
		if score := scoreHeading(h, i, total); score > bestScore {
			bestScore = score
			best = textutil.CollapseWhitespace(h.Text())
		}
	})
	if best != "" {
		return best
	}

	return stripSiteSuffix(textutil.CollapseWhitespace(doc.Find("title").First().Text()))
}

// stripSiteSuffix removes trailing " - Site" / " | Site" fragments from a
// page title.
func stripSiteSuffix(title string) string {
	for _, sep := range []string{" - ", " | ", " – "} {
		if idx := strings.LastIndex(title, sep); idx > 0 {
			title = title[:idx]
		}
	}
	return strings.TrimSpace(title)
}

func extractBody(doc *goquery.Document) (string, float64) {
	var best *goquery.Selection
	bestScore := 0.0

	doc.Find("article, main, section, div").Each(func(_ int, sel *goquery.Selection) {
		if score := scoreContainer(sel); score > bestScore {
			bestScore = score
			best = sel
		}
	})
	if best == nil {
		return "", 0
	}

	var paragraphs []string
	best.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := textutil.CollapseWhitespace(p.Text())
		if len([]rune(text)) >= minParagraphLen {
			paragraphs = append(paragraphs, text)
		}
	})

	if len(paragraphs) == 0 {
		// No paragraph markup; fall back to direct child blocks.
		best.Children().Each(func(_ int, c *goquery.Selection) {
			text := textutil.CollapseWhitespace(c.Text())
			if len([]rune(text)) >= minParagraphLen {
				paragraphs = append(paragraphs, text)
			}
		})
	}
	if len(paragraphs) == 0 {
		// Raw text as last resort.
		if text := textutil.CollapseWhitespace(best.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}

	return strings.Join(paragraphs, "\n\n"), bestScore
}

func extractSummary(doc *goquery.Document) string {
	for _, sel := range []string{
		`meta[property="og:description"]`,
		`meta[name="twitter:description"]`,
		`meta[name="description"]`,
	} {
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			if v = textutil.CollapseWhitespace(v); v != "" {
				return v
			}
		}
	}
	for _, sel := range []string{".summary", ".spot", ".article-summary", ".excerpt", ".ozet"} {
		if v := textutil.CollapseWhitespace(doc.Find(sel).First().Text()); v != "" {
			return v
		}
	}
	return ""
}

func extractAuthor(doc *goquery.Document) string {
	if v, ok := doc.Find(`meta[name="author"]`).First().Attr("content"); ok {
		if v = textutil.CollapseWhitespace(v); v != "" {
			return v
		}
	}
	for _, sel := range []string{`[rel="author"]`, ".author", ".byline", ".author-name", ".yazar"} {
		if v := textutil.CollapseWhitespace(doc.Find(sel).First().Text()); v != "" {
			return v
		}
	}
	return ""
}

func extractDate(doc *goquery.Document) time.Time {
	if v, ok := doc.Find(`meta[property="article:published_time"]`).First().Attr("content"); ok {
		if t, err := dates.Normalize(v); err == nil {
			return t
		}
	}
	if v, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		if t, err := dates.Normalize(v); err == nil {
			return t
		}
	}
	for _, sel := range []string{".date", ".article-date", ".publish-date", ".tarih"} {
		if v := textutil.CollapseWhitespace(doc.Find(sel).First().Text()); v != "" {
			if t, err := dates.Normalize(v); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

func extractImage(doc *goquery.Document, base *url.URL) string {
	for _, sel := range []string{`meta[property="og:image"]`, `meta[name="twitter:image"]`} {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && v != "" {
			return absoluteURL(v, base)
		}
	}
	if v, ok := doc.Find(`link[rel="image_src"]`).First().Attr("href"); ok && v != "" {
		return absoluteURL(v, base)
	}
	if v, ok := doc.Find("article img[src], .content img[src]").First().Attr("src"); ok && v != "" {
		return absoluteURL(v, base)
	}
	return ""
}

// absoluteURL resolves src against the source page.
func absoluteURL(src string, base *url.URL) string {
	u, err := url.Parse(strings.TrimSpace(src))
	if err != nil {
		return src
	}
	if u.IsAbs() || base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}
