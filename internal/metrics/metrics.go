// Package metrics collects pipeline counters exposed by the monitoring
// endpoint.
package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	ItemsProcessed      int64
	DuplicatesFiltered  int64
	ScrapesSucceeded    int64
	ScrapesFailed       int64
	EmbeddingsGenerated int64
	FeedErrors          int64
	ResearchRuns        int64

	// Timings
	LastRunDuration    time.Duration
	AverageRunDuration time.Duration
	totalRunDuration   time.Duration
	runCount           int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = &Metrics{IsHealthy: true}

func (m *Metrics) IncrementItemsProcessed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ItemsProcessed++
}

func (m *Metrics) IncrementDuplicatesFiltered() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicatesFiltered++
}

func (m *Metrics) IncrementScrapesSucceeded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ScrapesSucceeded++
}

func (m *Metrics) IncrementScrapesFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ScrapesFailed++
}

func (m *Metrics) IncrementEmbeddingsGenerated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EmbeddingsGenerated++
}

func (m *Metrics) IncrementFeedErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FeedErrors++
}

func (m *Metrics) IncrementResearchRuns() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResearchRuns++
}

func (m *Metrics) RecordRunDuration(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastRunDuration = duration
	m.totalRunDuration += duration
	m.runCount++
	m.AverageRunDuration = m.totalRunDuration / time.Duration(m.runCount)
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"items_processed":         m.ItemsProcessed,
		"duplicates_filtered":     m.DuplicatesFiltered,
		"scrapes_succeeded":       m.ScrapesSucceeded,
		"scrapes_failed":          m.ScrapesFailed,
		"embeddings_generated":    m.EmbeddingsGenerated,
		"feed_errors":             m.FeedErrors,
		"research_runs":           m.ResearchRuns,
		"last_run_duration_ms":    m.LastRunDuration.Milliseconds(),
		"average_run_duration_ms": m.AverageRunDuration.Milliseconds(),
		"last_run_time":           m.LastRunTime.Format(time.RFC3339),
		"last_error_time":         m.LastErrorTime.Format(time.RFC3339),
		"last_error":              m.LastError,
		"is_healthy":              m.IsHealthy,
	}
}
