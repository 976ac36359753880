package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/habernet/newscore/internal/config"
	"github.com/habernet/newscore/internal/logger"
	"github.com/habernet/newscore/internal/metrics"
	"github.com/habernet/newscore/internal/pipeline"
	"github.com/habernet/newscore/internal/ratelimit"
	"github.com/habernet/newscore/internal/research"
)

func main() {
	// Local development convenience; in production settings come from the
	// real environment.
	_ = godotenv.Load()
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if len(os.Args) > 1 && os.Args[1] == "research" {
		runResearch(cfg, strings.Join(os.Args[2:], " "))
		return
	}

	p, err := pipeline.New(cfg, nil)
	if err != nil {
		logger.Error("pipeline setup failed", "error", err)
		os.Exit(1)
	}

	if os.Getenv("ENABLE_HTTP_MONITORING") == "true" {
		go startMonitoringServer(p.Budget())
	}

	if err := p.Run(context.Background()); err != nil {
		logger.Error("run failed", "error", err)
		metrics.Global.SetError(err.Error())
		os.Exit(1)
	}
}

// runResearch executes one deep-research task and prints the answer as JSON.
func runResearch(cfg *config.Config, topic string) {
	if cfg.ResearchBaseURL == "" {
		logger.Error("RESEARCH_BASE_URL is required for research")
		os.Exit(1)
	}

	budget := ratelimit.NewBudget(0)
	budget.SetLimit(ratelimit.ServiceResearch, cfg.MaxResearchRequests)
	if err := budget.Use(ratelimit.ServiceResearch); err != nil {
		logger.Error("research refused", "error", err)
		os.Exit(1)
	}

	o := research.NewOrchestrator(cfg.ResearchBaseURL, cfg.ResearchToken, cfg.ResearchTimeout)
	result, err := o.ResearchTopic(context.Background(), research.Request{
		Topic: topic,
		Depth: os.Getenv("RESEARCH_DEPTH"),
	})
	if err != nil {
		logger.Error("research failed", "error", err)
		os.Exit(1)
	}
	metrics.Global.IncrementResearchRuns()

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Error("encode result", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
	if result.Partial {
		logger.Warn("answer is partial, the run timed out mid-stream")
	}
}

func startMonitoringServer(budget *ratelimit.Budget) {
	port := os.Getenv("MONITORING_PORT")
	if port == "" {
		port = "8080"
	}

	http.HandleFunc("/health", healthHandler)
	http.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		stats := metrics.Global.GetStats()
		stats["budget"] = budget.Stats()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	})

	logger.Info("starting monitoring server", "port", port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		logger.Error("monitoring server stopped", "error", err)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	stats := metrics.Global.GetStats()

	status := "ok"
	if !stats["is_healthy"].(bool) {
		status = "error"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":     status,
		"last_run":   stats["last_run_time"],
		"last_error": stats["last_error"],
	})
}
