// Package pipeline wires the ingestion stages together: fetch feeds, scrape
// thin items, embed candidates, reject semantic duplicates, deliver the rest
// to a sink.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/habernet/newscore/internal/config"
	"github.com/habernet/newscore/internal/embedding"
	"github.com/habernet/newscore/internal/feed"
	"github.com/habernet/newscore/internal/metrics"
	"github.com/habernet/newscore/internal/ratelimit"
	"github.com/habernet/newscore/internal/retry"
	"github.com/habernet/newscore/internal/scraper"
	"github.com/habernet/newscore/internal/vectorcache"
)

// Article is one accepted news item on its way to the sink.
type Article struct {
	Title       string
	Link        string
	Source      string
	Summary     string
	Body        string
	Author      string
	ImageURL    string
	PublishedAt time.Time
	Hash        string
	Vector      []float32
}

// Sink receives the articles that survived dedup. The storage side lives
// outside this module; LogSink ships as the default.
type Sink interface {
	Deliver(ctx context.Context, articles []Article) error
}

// LogSink writes accepted articles to the log.
type LogSink struct{}

func (LogSink) Deliver(_ context.Context, articles []Article) error {
	for _, a := range articles {
		slog.Info("accepted article", "title", a.Title, "link", a.Link, "source", a.Source)
	}
	return nil
}

type Pipeline struct {
	cfg      *config.Config
	sources  []feed.Source
	reader   *feed.Reader
	scraper  *scraper.Scraper
	embedder *embedding.Client
	cache    *vectorcache.Cache
	budget   *ratelimit.Budget
	sink     Sink
}

func New(cfg *config.Config, sink Sink) (*Pipeline, error) {
	sources, err := feed.LoadSources(cfg.FeedsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load feed sources: %w", err)
	}

	cache := vectorcache.New(cfg.CacheFilePath, cfg.CacheTTLHours)
	if err := cache.Load(); err != nil {
		return nil, fmt.Errorf("load vector cache: %w", err)
	}

	budget := ratelimit.NewBudget(0)
	budget.SetLimit(ratelimit.ServiceEmbedding, cfg.MaxEmbedRequests)
	budget.SetLimit(ratelimit.ServiceResearch, cfg.MaxResearchRequests)

	if sink == nil {
		sink = LogSink{}
	}

	return &Pipeline{
		cfg:     cfg,
		sources: sources,
		reader:  feed.NewReader(cfg.FeedTimeout),
		scraper: scraper.NewScraper(cfg.ScrapeTimeout),
		embedder: embedding.NewClient(embedding.Config{
			Endpoint:   cfg.EmbeddingEndpoint,
			Token:      cfg.EmbeddingToken,
			Dimension:  cfg.EmbeddingDimension,
			MaxChars:   cfg.EmbeddingMaxChars,
			Threshold:  cfg.SimilarityThreshold,
			Timeout:    cfg.RequestTimeout,
			BatchSize:  cfg.EmbedBatchSize,
			BatchDelay: cfg.EmbedBatchDelay,
		}),
		cache:  cache,
		budget: budget,
		sink:   sink,
	}, nil
}

// Budget exposes the shared request budget for the monitoring endpoint.
func (p *Pipeline) Budget() *ratelimit.Budget { return p.budget }

// Run executes one ingestion cycle. Per-item failures are logged and never
// abort sibling items.
func (p *Pipeline) Run(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.Global.RecordRunDuration(time.Since(start))
	}()

	candidates := p.collect(ctx)
	if len(candidates) == 0 {
		slog.Info("no new items this run")
		metrics.Global.SetLastRun()
		return p.cache.Save()
	}

	p.enrich(ctx, candidates)
	accepted := p.deduplicate(ctx, candidates)

	if len(accepted) > 0 {
		if err := p.sink.Deliver(ctx, accepted); err != nil {
			metrics.Global.SetError(err.Error())
			return fmt.Errorf("deliver articles: %w", err)
		}
	}

	p.cache.Cleanup()
	if err := p.cache.Save(); err != nil {
		return err
	}

	metrics.Global.SetLastRun()
	slog.Info("run finished",
		"candidates", len(candidates),
		"accepted", len(accepted),
		"duration", time.Since(start))
	return nil
}

// collect fetches every configured feed and returns fresh, not-yet-seen
// items capped at the per-run article limit.
func (p *Pipeline) collect(ctx context.Context) []*Article {
	var items []*Article
	cutoff := time.Now().Add(-p.cfg.MaxItemAge)

	for _, source := range p.sources {
		var result *feed.Result
		err := retry.WithRetry(ctx, retry.Config{
			MaxAttempts: p.cfg.RetryAttempts,
			Delay:       p.cfg.RetryDelay,
			Backoff:     true,
		}, func() error {
			var ferr error
			result, ferr = p.reader.Fetch(ctx, source.URL)
			return ferr
		})
		if err != nil {
			slog.Error("feed fetch failed", "source", source.Name, "url", source.URL, "error", err)
			metrics.Global.IncrementFeedErrors()
			continue
		}

		for _, item := range result.Items {
			if item.PublishedAt.Before(cutoff) {
				continue
			}
			hash := vectorcache.Hash(item.Title, item.Link)
			if p.cache.Contains(hash) {
				metrics.Global.IncrementDuplicatesFiltered()
				continue
			}
			items = append(items, &Article{
				Title:       item.Title,
				Link:        item.Link,
				Source:      source.Name,
				Summary:     item.Description,
				Body:        item.Description,
				Author:      item.Author,
				PublishedAt: item.PublishedAt,
				Hash:        hash,
			})
			metrics.Global.IncrementItemsProcessed()
		}
	}

	if len(items) > p.cfg.ScrapeMaxArticles {
		items = items[:p.cfg.ScrapeMaxArticles]
	}
	return items
}

// enrich scrapes full content for items whose feed description is too thin,
// using a bounded worker pool.
func (p *Pipeline) enrich(ctx context.Context, items []*Article) {
	sem := make(chan struct{}, p.cfg.ScrapeConcurrency)
	var wg sync.WaitGroup

	for _, item := range items {
		if len([]rune(item.Body)) >= p.cfg.MinContentLength || item.Link == "" {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(item *Article) {
			defer wg.Done()
			defer func() { <-sem }()

			result := p.scraper.Scrape(ctx, item.Link)
			if !result.Success {
				// Thin description is still usable; scrape failure is not fatal.
				slog.Warn("scrape failed", "url", item.Link, "error", result.Error)
				metrics.Global.IncrementScrapesFailed()
				return
			}
			metrics.Global.IncrementScrapesSucceeded()

			item.Body = result.Content.Body
			if result.Content.Title != "" {
				item.Title = result.Content.Title
			}
			if item.Summary == "" {
				item.Summary = result.Content.Summary
			}
			if item.Author == "" {
				item.Author = result.Content.Author
			}
			item.ImageURL = result.Content.ImageURL
			if item.PublishedAt.IsZero() && !result.Content.PublishedAt.IsZero() {
				item.PublishedAt = result.Content.PublishedAt
			}
		}(item)
	}
	wg.Wait()
}

// deduplicate embeds each candidate and compares it against the recent
// window, dropping anything at or above the similarity threshold.
func (p *Pipeline) deduplicate(ctx context.Context, items []*Article) []Article {
	texts := make([]string, len(items))
	budgeted := make([]bool, len(items))
	for i, item := range items {
		if err := p.budget.Use(ratelimit.ServiceEmbedding); err != nil {
			slog.Warn("embedding budget exhausted, accepting without dedup", "title", item.Title)
			continue
		}
		budgeted[i] = true
		texts[i] = item.Title + "\n" + item.Body
	}

	batch := p.embedder.EmbedBatch(ctx, texts)

	// The dedup window can be narrower than the cache TTL: old entries still
	// block exact re-sends by hash but no longer vote on similarity.
	var recent []vectorcache.Entry
	windowStart := time.Now().Add(-time.Duration(p.cfg.DuplicateWindow) * time.Hour)
	for _, entry := range p.cache.Recent() {
		if entry.StoredAt.After(windowStart) {
			recent = append(recent, entry)
		}
	}

	var accepted []Article
	for i, item := range items {
		if budgeted[i] {
			if batch[i].Err != nil {
				slog.Warn("embedding failed, accepting without dedup",
					"title", item.Title, "error", batch[i].Err)
			} else {
				item.Vector = batch[i].Vector
				metrics.Global.IncrementEmbeddingsGenerated()
				if dup, match := p.isDuplicate(item.Vector, recent); dup {
					slog.Info("semantic duplicate dropped",
						"title", item.Title, "matched", match)
					metrics.Global.IncrementDuplicatesFiltered()
					continue
				}
			}
		}

		p.cache.Add(item.Hash, item.Title, item.Link, item.Vector)
		// An article accepted moments ago is as "recent" as anything in the
		// cache: the same story arriving from a second source in this run
		// must be compared against it too.
		recent = append(recent, vectorcache.Entry{
			Hash:     item.Hash,
			Title:    item.Title,
			Link:     item.Link,
			Vector:   item.Vector,
			StoredAt: time.Now(),
		})
		accepted = append(accepted, *item)
	}
	return accepted
}

func (p *Pipeline) isDuplicate(vector []float32, recent []vectorcache.Entry) (bool, string) {
	for _, entry := range recent {
		if len(entry.Vector) == 0 {
			continue
		}
		sim, err := embedding.Compare(vector, entry.Vector, p.embedder.Threshold())
		if err != nil {
			// Dimension changed between runs; old vectors are incomparable.
			continue
		}
		if sim.IsDuplicate {
			return true, entry.Title
		}
	}
	return false, ""
}
