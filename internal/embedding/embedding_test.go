package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func testClient(endpoint string) *Client {
	return NewClient(Config{
		Endpoint:  endpoint,
		Token:     "test-token",
		Dimension: 4,
	})
}

func vectorServer(t *testing.T, response string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("authorization = %q", auth)
		}

		var req struct {
			Inputs  []string `json:"inputs"`
			Options struct {
				WaitForModel bool `json:"wait_for_model"`
				UseCache     bool `json:"use_cache"`
			} `json:"options"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Inputs) != 1 {
			t.Errorf("inputs = %v, want single element", req.Inputs)
		}
		if !req.Options.WaitForModel || !req.Options.UseCache {
			t.Errorf("options = %+v", req.Options)
		}

		w.Write([]byte(response))
	}))
}

func TestEmbed_NestedResponse(t *testing.T) {
	srv := vectorServer(t, "[[0.1, 0.2, 0.3, 0.4]]")
	defer srv.Close()

	vector, err := testClient(srv.URL).Embed(context.Background(), "Ankara'da bugun onemli gelismeler yasandi")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vector) != 4 {
		t.Errorf("len = %d", len(vector))
	}
}

func TestEmbed_FlatResponse(t *testing.T) {
	srv := vectorServer(t, "[0.1, 0.2, 0.3, 0.4]")
	defer srv.Close()

	vector, err := testClient(srv.URL).Embed(context.Background(), "Ankara'da bugun onemli gelismeler yasandi")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vector) != 4 {
		t.Errorf("len = %d", len(vector))
	}
}

func TestEmbed_WrongDimension(t *testing.T) {
	srv := vectorServer(t, "[[0.1, 0.2]]")
	defer srv.Close()

	_, err := testClient(srv.URL).Embed(context.Background(), "Ankara'da bugun onemli gelismeler yasandi")
	var shapeErr *ShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected *ShapeError, got %T: %v", err, err)
	}
	if shapeErr.Got != 2 || shapeErr.Want != 4 {
		t.Errorf("shape error = %+v", shapeErr)
	}
}

func TestEmbed_TooShortSkipsRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Embed(context.Background(), "kisa")
	if !errors.Is(err, ErrTextTooShort) {
		t.Fatalf("expected ErrTextTooShort, got %v", err)
	}
	if called {
		t.Error("endpoint must not be called for too-short input")
	}
}

func TestEmbed_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Embed(context.Background(), "Ankara'da bugun onemli gelismeler yasandi")
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestPreprocess(t *testing.T) {
	in := "Çok   önemli!! 🎉🎉 <haber> %100 şûrâ"
	out := Preprocess(in, 2000)

	if strings.ContainsAny(out, "🎉<>%") {
		t.Errorf("noise characters kept: %q", out)
	}
	if !strings.Contains(out, "Çok önemli") || !strings.Contains(out, "şûrâ") {
		t.Errorf("letters lost: %q", out)
	}
}

func TestPreprocess_TruncatesAtWord(t *testing.T) {
	out := Preprocess("birinci ikinci ucuncu dorduncu", 16)
	if out != "birinci ikinci" {
		t.Errorf("out = %q", out)
	}
}

func TestCosineSimilarity(t *testing.T) {
	score, err := CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(score-1.0) > 1e-9 {
		t.Errorf("self similarity = %f, want 1", score)
	}

	score, err = CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	if score != 0 {
		t.Errorf("orthogonal similarity = %f, want 0", score)
	}
}

func TestCosineSimilarity_ZeroVector(t *testing.T) {
	score, err := CosineSimilarity([]float32{0, 0, 0}, []float32{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if score != 0 {
		t.Errorf("zero vector similarity = %f, want 0", score)
	}
}

func TestCosineSimilarity_DimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	var dimErr *DimensionError
	if !errors.As(err, &dimErr) {
		t.Fatalf("expected *DimensionError, got %T: %v", err, err)
	}
}

func TestIsDuplicate_ThresholdInclusive(t *testing.T) {
	cases := []struct {
		score float64
		want  bool
	}{
		{0.86, true},
		{0.85, true},
		{0.84, false},
	}
	for _, c := range cases {
		if got := isDuplicate(c.score, 0.85); got != c.want {
			t.Errorf("isDuplicate(%f, 0.85) = %v, want %v", c.score, got, c.want)
		}
	}
}

func TestCompare(t *testing.T) {
	sim, err := Compare([]float32{1, 2, 3}, []float32{1, 2, 3}, 0.85)
	if err != nil {
		t.Fatal(err)
	}
	if !sim.IsDuplicate {
		t.Error("identical vectors must be duplicates")
	}
	if sim.Threshold != 0.85 {
		t.Errorf("threshold = %f", sim.Threshold)
	}

	sim, err = Compare([]float32{1, 0}, []float32{0, 1}, 0.85)
	if err != nil {
		t.Fatal(err)
	}
	if sim.IsDuplicate {
		t.Error("orthogonal vectors must not be duplicates")
	}
}

func TestEmbedBatch(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte("[[0.1, 0.2, 0.3, 0.4]]"))
	}))
	defer srv.Close()

	client := NewClient(Config{Endpoint: srv.URL, Dimension: 4, BatchSize: 2})

	texts := []string{
		"Birinci haberin embedding metni burada",
		"Ikinci haberin embedding metni burada",
		"kisa",
		"Dorduncu haberin embedding metni burada",
		"Besinci haberin embedding metni burada",
	}
	results := client.EmbedBatch(context.Background(), texts)

	if len(results) != len(texts) {
		t.Fatalf("results = %d, want %d", len(results), len(texts))
	}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("result %d has index %d", i, r.Index)
		}
	}

	if !errors.Is(results[2].Err, ErrTextTooShort) {
		t.Errorf("short item error = %v", results[2].Err)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if results[i].Err != nil {
			t.Errorf("item %d failed: %v", i, results[i].Err)
		}
		if len(results[i].Vector) != 4 {
			t.Errorf("item %d vector len = %d", i, len(results[i].Vector))
		}
	}

	if requests.Load() != 4 {
		t.Errorf("requests = %d, want 4", requests.Load())
	}
}

func TestEmbedBatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(Config{Endpoint: "http://127.0.0.1:0", Dimension: 4, BatchSize: 2})
	results := client.EmbedBatch(ctx, []string{"Birinci haberin embedding metni burada"})

	if results[0].Err == nil {
		t.Error("expected error for cancelled context")
	}
}
