// Package embedding turns article text into fixed-length vectors via an
// external inference endpoint and provides the similarity primitives used for
// semantic duplicate detection.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/habernet/newscore/internal/textutil"
)

const (
	DefaultDimension = 384
	DefaultThreshold = 0.85
	DefaultMaxChars  = 2000
	DefaultBatchSize = 8

	minTextRunes = 10
)

// ErrTextTooShort rejects input below the useful minimum before any I/O.
var ErrTextTooShort = errors.New("text too short to embed")

// ShapeError reports an upstream vector that does not match the configured
// dimension. Mismatched vectors must never reach a comparison.
type ShapeError struct {
	Want, Got int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("embedding has %d dimensions, expected %d", e.Got, e.Want)
}

type Config struct {
	Endpoint   string
	Token      string
	Dimension  int
	MaxChars   int
	Threshold  float64
	Timeout    time.Duration
	BatchSize  int
	BatchDelay time.Duration
}

type Client struct {
	cfg    Config
	client *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Threshold returns the configured duplicate-decision threshold.
func (c *Client) Threshold() float64 { return c.cfg.Threshold }

type embedRequest struct {
	Inputs  []string     `json:"inputs"`
	Options embedOptions `json:"options"`
}

type embedOptions struct {
	WaitForModel bool `json:"wait_for_model"`
	UseCache     bool `json:"use_cache"`
}

// Embed converts text into a vector of the configured dimension.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	clean := Preprocess(text, c.cfg.MaxChars)
	if utf8.RuneCountInString(clean) < minTextRunes {
		return nil, ErrTextTooShort
	}

	payload, err := json.Marshal(embedRequest{
		Inputs:  []string{clean},
		Options: embedOptions{WaitForModel: true, UseCache: true},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding endpoint status %d: %s", resp.StatusCode, truncateForError(body))
	}

	vector, err := decodeVector(body)
	if err != nil {
		return nil, err
	}
	if len(vector) != c.cfg.Dimension {
		return nil, &ShapeError{Want: c.cfg.Dimension, Got: len(vector)}
	}
	return vector, nil
}

// decodeVector accepts both response shapes the endpoint is known to return:
// a nested array [[v0..vN]] or a flat array [v0..vN].
func decodeVector(body []byte) ([]float32, error) {
	var nested [][]float32
	if err := json.Unmarshal(body, &nested); err == nil && len(nested) > 0 {
		return nested[0], nil
	}

	var flat []float32
	if err := json.Unmarshal(body, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}

	return nil, fmt.Errorf("unexpected embedding response shape: %s", truncateForError(body))
}

// Preprocess cleans text for the inference model: collapse whitespace, keep
// letters, digits and basic punctuation (Turkish letters included), truncate
// at a word boundary.
func Preprocess(text string, maxChars int) string {
	text = textutil.CollapseWhitespace(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == ' ' || strings.ContainsRune(".,!?;:'\"-", r) {
			b.WriteRune(r)
		}
	}

	return textutil.TruncateAtWord(strings.TrimSpace(b.String()), maxChars)
}

func truncateForError(body []byte) string {
	const max = 200
	s := string(body)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
