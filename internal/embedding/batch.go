package embedding

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// BatchResult carries the outcome for one input of EmbedBatch. Index refers
// to the position in the original slice.
type BatchResult struct {
	Index  int
	Text   string
	Vector []float32
	Err    error
}

// EmbedBatch embeds texts in fixed-size batches. Items within a batch run
// concurrently; batches run sequentially with a pause in between so a
// rate-limited endpoint is not hammered. One failed item never aborts the
// rest; every input gets a result.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) []BatchResult {
	results := make([]BatchResult, len(texts))
	for i, text := range texts {
		results[i] = BatchResult{Index: i, Text: text}
	}

	for start := 0; start < len(texts); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		if err := ctx.Err(); err != nil {
			for i := start; i < len(texts); i++ {
				results[i].Err = err
			}
			return results
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				vector, err := c.Embed(ctx, texts[i])
				results[i].Vector = vector
				results[i].Err = err
			}(i)
		}
		wg.Wait()

		slog.Debug("embedded batch", "from", start, "to", end, "total", len(texts))

		if end < len(texts) && c.cfg.BatchDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(c.cfg.BatchDelay):
			}
		}
	}

	return results
}
