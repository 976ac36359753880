package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRequestValidate(t *testing.T) {
	req := Request{Topic: "ab"}
	if err := req.Validate(); !errors.Is(err, ErrTopicLength) {
		t.Errorf("short topic error = %v", err)
	}

	req = Request{Topic: strings.Repeat("a", 501)}
	if err := req.Validate(); !errors.Is(err, ErrTopicLength) {
		t.Errorf("long topic error = %v", err)
	}

	req = Request{Topic: "enflasyon verileri", Depth: "exhaustive"}
	if err := req.Validate(); !errors.Is(err, ErrInvalidDepth) {
		t.Errorf("bad depth error = %v", err)
	}

	req = Request{Topic: "enflasyon verileri"}
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if req.Depth != DepthStandard {
		t.Errorf("default depth = %q", req.Depth)
	}
}

func TestResearchTopic_ValidationBeforeIO(t *testing.T) {
	o := NewOrchestrator("http://127.0.0.1:0", "", time.Second)
	if _, err := o.ResearchTopic(context.Background(), Request{Topic: "x"}); !errors.Is(err, ErrTopicLength) {
		t.Errorf("expected validation error before any request, got %v", err)
	}
}

func researchServer(t *testing.T, streamBody string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /threads", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"thread_id": "t-1"})
	})
	mux.HandleFunc("POST /threads/t-1/runs", func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode run request: %v", err)
		}
		if req.Topic == "" || req.Depth == "" {
			t.Errorf("run request incomplete: %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]string{"run_id": "r-1"})
	})
	mux.HandleFunc("GET /threads/t-1/runs/r-1/stream", func(w http.ResponseWriter, r *http.Request) {
		if accept := r.Header.Get("Accept"); accept != "text/event-stream" {
			t.Errorf("accept = %q", accept)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(streamBody))
	})
	return httptest.NewServer(mux)
}

func event(t *testing.T, e streamEvent) string {
	t.Helper()
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	return "data: " + string(b) + "\n"
}

func TestResearchTopic_FencedJSONResult(t *testing.T) {
	answer := "Analiz tamamlandi.\n```json\n" + `{
		"title": "Enflasyon raporu",
		"content": "Detayli analiz metni",
		"category": "ekonomi",
		"confidence": 0.9,
		"sources": [{"title": "TUIK", "url": "https://example.com/tuik"}]
	}` + "\n```"

	stream := event(t, streamEvent{Type: "message", Role: "assistant", Content: "Calisiyorum..."}) +
		event(t, streamEvent{Type: "message", Role: "assistant", Content: answer}) +
		"data: [DONE]\n"

	srv := researchServer(t, stream)
	defer srv.Close()

	o := NewOrchestrator(srv.URL, "", time.Minute)
	result, err := o.ResearchTopic(context.Background(), Request{Topic: "enflasyon verileri", Depth: DepthQuick})
	if err != nil {
		t.Fatalf("ResearchTopic: %v", err)
	}

	if result.Title != "Enflasyon raporu" {
		t.Errorf("title = %q", result.Title)
	}
	if result.Content != "Detayli analiz metni" {
		t.Errorf("content must come from the fenced json, got %q", result.Content)
	}
	if result.Category != "ekonomi" {
		t.Errorf("category = %q", result.Category)
	}
	if len(result.Sources) != 1 || result.Sources[0].URL != "https://example.com/tuik" {
		t.Errorf("sources = %+v", result.Sources)
	}
	if result.Partial {
		t.Error("completed run must not be partial")
	}
}

func TestResearchTopic_LastMessageWins(t *testing.T) {
	stream := event(t, streamEvent{Type: "message", Content: "eski icerik"}) +
		event(t, streamEvent{Type: "message", Content: "guncel tam icerik"}) +
		"data: [DONE]\n"

	srv := researchServer(t, stream)
	defer srv.Close()

	o := NewOrchestrator(srv.URL, "", time.Minute)
	result, err := o.ResearchTopic(context.Background(), Request{Topic: "deneme konusu"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Content != "guncel tam icerik" {
		t.Errorf("content = %q", result.Content)
	}
}

func TestResearchTopic_ErrorEvent(t *testing.T) {
	stream := event(t, streamEvent{Type: "error", Error: "agent crashed"})

	srv := researchServer(t, stream)
	defer srv.Close()

	o := NewOrchestrator(srv.URL, "", time.Minute)
	_, err := o.ResearchTopic(context.Background(), Request{Topic: "deneme konusu"})
	if err == nil || !strings.Contains(err.Error(), "agent crashed") {
		t.Errorf("expected upstream error, got %v", err)
	}
}

func TestResearchTopic_TimeoutWithPartialContent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /threads", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"thread_id": "t-1"})
	})
	mux.HandleFunc("POST /threads/t-1/runs", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"run_id": "r-1"})
	})
	mux.HandleFunc("GET /threads/t-1/runs/r-1/stream", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "data: %s\n", `{"type":"message","content":"ilk kismi geldi"}`)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	o := NewOrchestrator(srv.URL, "", 300*time.Millisecond)
	result, err := o.ResearchTopic(context.Background(), Request{Topic: "deneme konusu"})
	if err != nil {
		t.Fatalf("expected partial success, got %v", err)
	}
	if !result.Partial {
		t.Error("result must be marked partial")
	}
	if result.Content != "ilk kismi geldi" {
		t.Errorf("content = %q", result.Content)
	}
}

func TestResearchTopic_TimeoutWithoutContent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /threads", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"thread_id": "t-1"})
	})
	mux.HandleFunc("POST /threads/t-1/runs", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"run_id": "r-1"})
	})
	mux.HandleFunc("GET /threads/t-1/runs/r-1/stream", func(w http.ResponseWriter, r *http.Request) {
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	o := NewOrchestrator(srv.URL, "", 300*time.Millisecond)
	_, err := o.ResearchTopic(context.Background(), Request{Topic: "deneme konusu"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
}

func TestResearchTopic_ThreadOpenFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	o := NewOrchestrator(srv.URL, "", time.Minute)
	_, err := o.ResearchTopic(context.Background(), Request{Topic: "deneme konusu"})
	if err == nil || !strings.Contains(err.Error(), "open thread") {
		t.Errorf("expected open thread error, got %v", err)
	}
}

func TestResearchTopic_RefusedConnectionClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	o := NewOrchestrator(url, "", time.Minute)
	_, err := o.ResearchTopic(context.Background(), Request{Topic: "deneme konusu"})
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected classified refused-connection error, got %v", err)
	}
}

func TestStreamDecoder_PartialLineHoldback(t *testing.T) {
	d := &streamDecoder{}
	payload := `data: {"type":"message","content":"tam mesaj"}` + "\n"

	if err := d.feed([]byte(payload[:13])); err != nil {
		t.Fatal(err)
	}
	if d.message != "" {
		t.Errorf("partial line must not produce a message, got %q", d.message)
	}
	if err := d.feed([]byte(payload[13:])); err != nil {
		t.Fatal(err)
	}
	if d.message != "tam mesaj" {
		t.Errorf("message = %q", d.message)
	}
}

func TestStreamDecoder_SkipsMalformedAndForeignLines(t *testing.T) {
	d := &streamDecoder{}
	input := ": keepalive\n" +
		"data: {not json}\n" +
		"event: ping\n" +
		"data: {\"type\":\"message\",\"content\":\"gecerli\"}\n"
	if err := d.feed([]byte(input)); err != nil {
		t.Fatal(err)
	}
	if d.message != "gecerli" {
		t.Errorf("message = %q", d.message)
	}
}

func TestStreamDecoder_DoneStopsProcessing(t *testing.T) {
	d := &streamDecoder{}
	input := "data: {\"type\":\"message\",\"content\":\"sonuc\"}\n" +
		"data: [DONE]\n" +
		"data: {\"type\":\"message\",\"content\":\"sonrasi\"}\n"
	if err := d.feed([]byte(input)); err != nil {
		t.Fatal(err)
	}
	if !d.done {
		t.Error("done sentinel not detected")
	}
	if d.message != "sonuc" {
		t.Errorf("message = %q", d.message)
	}
}

func TestParseAnswer_FallsBackToRawText(t *testing.T) {
	result := parseAnswer("```json\n{broken\n```\nduz metin cevap")
	if !strings.Contains(result.Content, "duz metin cevap") {
		t.Errorf("content = %q", result.Content)
	}
}
