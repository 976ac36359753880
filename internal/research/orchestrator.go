// Package research drives a remote deep-research agent over its thread/run
// HTTP protocol: open a thread, submit a run, then consume the answer as a
// server-sent event stream.
package research

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"
)

const (
	topicMinRunes = 3
	topicMaxRunes = 500

	DepthQuick    = "quick"
	DepthStandard = "standard"
	DepthDeep     = "deep"
)

var (
	ErrTopicLength  = errors.New("topic must be between 3 and 500 characters")
	ErrInvalidDepth = errors.New("depth must be one of quick, standard, deep")
)

// Request describes one research task.
type Request struct {
	Topic      string   `json:"topic"`
	Depth      string   `json:"depth"`
	MaxSources int      `json:"max_sources,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// Validate normalizes and checks the request before any network traffic.
func (r *Request) Validate() error {
	r.Topic = strings.TrimSpace(r.Topic)
	n := utf8.RuneCountInString(r.Topic)
	if n < topicMinRunes || n > topicMaxRunes {
		return ErrTopicLength
	}
	if r.Depth == "" {
		r.Depth = DepthStandard
	}
	switch r.Depth {
	case DepthQuick, DepthStandard, DepthDeep:
	default:
		return ErrInvalidDepth
	}
	return nil
}

// Source is one reference the agent consulted.
type Source struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Snippet     string  `json:"snippet,omitempty"`
	Reliability float64 `json:"reliability,omitempty"`
}

// Result is the final research answer. Partial marks an answer captured
// before the deadline cut the stream short.
type Result struct {
	Title      string   `json:"title,omitempty"`
	Content    string   `json:"content"`
	Summary    string   `json:"summary,omitempty"`
	Category   string   `json:"category,omitempty"`
	Confidence float64  `json:"confidence,omitempty"`
	Sources    []Source `json:"sources,omitempty"`
	Partial    bool     `json:"-"`
}

type Orchestrator struct {
	baseURL string
	token   string
	timeout time.Duration
	client  *http.Client
}

func NewOrchestrator(baseURL, token string, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Orchestrator{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
		// The stream stays open for the whole run, so the per-request
		// timeout lives on the context, not the client.
		client: &http.Client{},
	}
}

// ResearchTopic runs one research task end to end. A deadline that fires
// after content was captured yields a partial result instead of an error.
func (o *Orchestrator) ResearchTopic(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	sess := newSession()

	threadID, err := o.openThread(ctx)
	if err != nil {
		sess.transition(StatusFailed)
		return nil, fmt.Errorf("open thread: %w", err)
	}
	sess.ThreadID = threadID
	sess.transition(StatusThreadOpened)

	runID, err := o.submitRun(ctx, threadID, req)
	if err != nil {
		sess.transition(StatusFailed)
		return nil, fmt.Errorf("submit run: %w", err)
	}
	sess.RunID = runID
	sess.transition(StatusRunSubmitted)

	sess.transition(StatusStreaming)
	message, streamErr := o.consumeStream(ctx, threadID, runID)

	switch {
	case streamErr == nil:
		if message == "" {
			sess.transition(StatusFailed)
			return nil, errors.New("stream ended with no assistant message")
		}
		sess.transition(StatusCompleted)
		result := parseAnswer(message)
		slog.Info("research completed",
			"thread_id", threadID, "run_id", runID, "sources", len(result.Sources))
		return &result, nil

	case errors.Is(streamErr, context.DeadlineExceeded):
		sess.transition(StatusTimedOut)
		if message == "" {
			return nil, fmt.Errorf("research timed out with no content: %w", streamErr)
		}
		// Whatever was streamed before the deadline is still an answer.
		result := parseAnswer(message)
		result.Partial = true
		slog.Warn("research timed out, returning partial answer",
			"thread_id", threadID, "run_id", runID)
		return &result, nil

	default:
		sess.transition(StatusFailed)
		return nil, fmt.Errorf("stream: %w", streamErr)
	}
}

func (o *Orchestrator) openThread(ctx context.Context) (string, error) {
	var resp struct {
		ThreadID string `json:"thread_id"`
	}
	if err := o.postJSON(ctx, o.baseURL+"/threads", struct{}{}, &resp); err != nil {
		return "", err
	}
	if resp.ThreadID == "" {
		return "", errors.New("response missing thread_id")
	}
	return resp.ThreadID, nil
}

func (o *Orchestrator) submitRun(ctx context.Context, threadID string, req Request) (string, error) {
	var resp struct {
		RunID string `json:"run_id"`
	}
	url := fmt.Sprintf("%s/threads/%s/runs", o.baseURL, threadID)
	if err := o.postJSON(ctx, url, req, &resp); err != nil {
		return "", err
	}
	if resp.RunID == "" {
		return "", errors.New("response missing run_id")
	}
	return resp.RunID, nil
}

func (o *Orchestrator) postJSON(ctx context.Context, url string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if o.token != "" {
		req.Header.Set("Authorization", "Bearer "+o.token)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return describeTransportErr(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}

// consumeStream reads the SSE stream until [DONE], EOF, an error event, or a
// transport failure. It returns the last captured assistant message even
// alongside an error so the caller can salvage a partial answer.
func (o *Orchestrator) consumeStream(ctx context.Context, threadID, runID string) (string, error) {
	url := fmt.Sprintf("%s/threads/%s/runs/%s/stream", o.baseURL, threadID, runID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/event-stream")
	if o.token != "" {
		req.Header.Set("Authorization", "Bearer "+o.token)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", classifyTransportErr(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("stream status %d", resp.StatusCode)
	}

	dec := &streamDecoder{}
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if err := dec.feed(buf[:n]); err != nil {
				return dec.message, err
			}
			if dec.done {
				return dec.message, nil
			}
		}
		if readErr == io.EOF {
			if err := dec.flush(); err != nil {
				return dec.message, err
			}
			return dec.message, nil
		}
		if readErr != nil {
			return dec.message, classifyTransportErr(ctx, readErr)
		}
	}
}

// classifyTransportErr maps a transport failure caused by the run deadline to
// context.DeadlineExceeded so the caller can tell a timeout from a broken
// connection.
func classifyTransportErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return describeTransportErr(err)
}

// describeTransportErr names the common transport failure modes so setup and
// stream errors show up classifiable in logs.
func describeTransportErr(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connection refused: %w", err)
	case errors.Is(err, syscall.ECONNRESET):
		return fmt.Errorf("connection reset: %w", err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("timeout: %w", err)
	default:
		return err
	}
}
