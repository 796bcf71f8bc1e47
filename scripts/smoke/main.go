package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// CLI flags
var (
	apiURL = flag.String("api-url", "http://localhost:8080", "Syphon API base URL")
	apiKey = flag.String("api-key", "", "API key for authenticated requests")
	runs   = flag.Int("runs", 3, "Number of runs per query for averaging")
	output = flag.String("output", "smoke-results.json", "JSON output file path")
)

// Probe queries covering common discovery shapes. Repeat runs of the
// same query exercise the cache path.
var testQueries = []struct {
	Label string
	Query string
}{
	{"Short", "lofi hip hop"},
	{"Phrase", "jazz piano study mix"},
	{"Niche", "synthwave retrowave mix"},
	{"Longtail", "rainy night coding ambience 1 hour"},
	{"Unicode", "café bossa nova"},
}

// --- Request / Response types (mirrors models package) ---

type searchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

type searchResponse struct {
	Success     bool         `json:"success"`
	Query       string       `json:"query"`
	URLs        []string     `json:"urls"`
	Total       int          `json:"total"`
	CacheStatus string       `json:"cache_status"`
	Error       *errorDetail `json:"error,omitempty"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- Smoke result types ---

type runResult struct {
	Run         int    `json:"run"`
	LatencyMs   int64  `json:"latency_ms"`
	Total       int    `json:"total"`
	CacheStatus string `json:"cache_status"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}

type queryAverages struct {
	LatencyMs     float64 `json:"latency_ms"`
	ColdLatencyMs float64 `json:"cold_latency_ms"`
	WarmLatencyMs float64 `json:"warm_latency_ms"`
	Total         float64 `json:"total"`
}

type queryResult struct {
	Query    string         `json:"query"`
	Label    string         `json:"label"`
	Runs     []runResult    `json:"runs"`
	Averages *queryAverages `json:"averages,omitempty"`
}

type smokeReport struct {
	Timestamp    string        `json:"timestamp"`
	APIURL       string        `json:"api_url"`
	RunsPerQuery int           `json:"runs_per_query"`
	Results      []queryResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== Syphon Discovery Smoke Suite ===")
	fmt.Printf("API URL:    %s\n", *apiURL)
	fmt.Printf("Runs/query: %d\n", *runs)
	fmt.Printf("Output:     %s\n", *output)
	fmt.Println()

	// Quick connectivity check.
	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure syphon-api is running\n")
		os.Exit(1)
	}

	report := smokeReport{
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		APIURL:       *apiURL,
		RunsPerQuery: *runs,
	}

	for _, t := range testQueries {
		fmt.Printf("Probing [%s] %q ...\n", t.Label, t.Query)
		qr := queryResult{Query: t.Query, Label: t.Label}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := searchOnce(t.Query, i)
			if rr.Success {
				fmt.Printf("OK  %dms  %d URLs  (cache %s)\n", rr.LatencyMs, rr.Total, rr.CacheStatus)
			} else {
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			qr.Runs = append(qr.Runs, rr)
		}

		qr.Averages = computeAverages(qr.Runs)
		report.Results = append(report.Results, qr)
		fmt.Println()
	}

	// Print summary table.
	printTable(report.Results)

	// Write JSON report.
	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequest("GET", baseURL+"/api/v1/health", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func searchOnce(query string, run int) runResult {
	rr := runResult{Run: run}

	bodyBytes, err := json.Marshal(searchRequest{Query: query})
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	req, err := http.NewRequest("POST", *apiURL+"/api/v1/search", bytes.NewReader(bodyBytes))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	client := &http.Client{Timeout: 60 * time.Second}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()
	rr.LatencyMs = time.Since(start).Milliseconds()

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}

	rr.Success = sr.Success
	rr.Total = sr.Total
	rr.CacheStatus = sr.CacheStatus

	if sr.Error != nil {
		rr.Error = sr.Error.Message
	}

	return rr
}

func computeAverages(runs []runResult) *queryAverages {
	var successCount, coldCount, warmCount int
	var avg queryAverages

	for _, r := range runs {
		if !r.Success {
			continue
		}
		successCount++
		avg.LatencyMs += float64(r.LatencyMs)
		avg.Total += float64(r.Total)
		switch r.CacheStatus {
		case "miss":
			coldCount++
			avg.ColdLatencyMs += float64(r.LatencyMs)
		case "hit":
			warmCount++
			avg.WarmLatencyMs += float64(r.LatencyMs)
		}
	}

	if successCount == 0 {
		return nil
	}

	avg.LatencyMs /= float64(successCount)
	avg.Total /= float64(successCount)
	if coldCount > 0 {
		avg.ColdLatencyMs /= float64(coldCount)
	}
	if warmCount > 0 {
		avg.WarmLatencyMs /= float64(warmCount)
	}
	return &avg
}

func printTable(results []queryResult) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Query\tAvg Latency\tCold\tWarm\tURLs\tHits\n")
	fmt.Fprintf(w, "─────\t───────────\t────\t────\t────\t────\n")

	for _, r := range results {
		if r.Averages == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t-\t-\n", r.Query)
			continue
		}

		fmt.Fprintf(w, "%s\t%dms\t%dms\t%dms\t%.1f\t%d/%d\n",
			r.Query,
			int64(r.Averages.LatencyMs),
			int64(r.Averages.ColdLatencyMs),
			int64(r.Averages.WarmLatencyMs),
			r.Averages.Total,
			cacheHits(r.Runs),
			len(r.Runs),
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

func cacheHits(runs []runResult) int {
	n := 0
	for _, r := range runs {
		if r.Success && r.CacheStatus == "hit" {
			n++
		}
	}
	return n
}

func writeJSON(path string, report smokeReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
