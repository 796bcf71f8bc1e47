package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// searchResponse mirrors the Syphon search API response model.
type searchResponse struct {
	Success     bool     `json:"success"`
	Query       string   `json:"query"`
	URLs        []string `json:"urls"`
	Total       int      `json:"total"`
	CacheStatus string   `json:"cache_status"`
	Error       *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// jobResponse mirrors the Syphon job-submission response.
type jobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// jobStatusResponse mirrors the Syphon job status API response.
type jobStatusResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Outcome *struct {
		Query string `json:"query"`
		URLs  []struct {
			URL      string `json:"url"`
			Rotation *struct {
				Rotated bool   `json:"rotated"`
				Before  string `json:"before"`
				After   string `json:"after"`
			} `json:"rotation"`
			Kinds []struct {
				Kind       string `json:"kind"`
				Status     string `json:"status"`
				Error      string `json:"error"`
				DurationMs int64  `json:"duration_ms"`
			} `json:"kinds"`
		} `json:"urls"`
		Summary struct {
			Discovered       int            `json:"discovered"`
			Succeeded        int            `json:"succeeded"`
			FailuresByKind   map[string]int `json:"failures_by_kind"`
			RotationFailures int            `json:"rotation_failures"`
		} `json:"summary"`
	} `json:"outcome"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	apiURL := os.Getenv("SYPHON_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("SYPHON_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "SYPHON_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"syphon",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	discoverTool := mcp.NewTool("discover_media",
		mcp.WithDescription("Search for media URLs matching a query and return them without downloading anything. Useful for previewing what a collection run would fetch."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search phrase, e.g. 'lofi hip hop radio'"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of URLs to return (default 10, max 50)"),
		),
	)
	s.AddTool(discoverTool, handleDiscoverMedia(apiURL, apiKey))

	collectTool := mcp.NewTool("collect_media",
		mcp.WithDescription("Search for media matching a query and download the selected kinds (audio, video, transcripts) for every result. Long-running: returns once the whole batch has finished."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search phrase describing the media to collect"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of URLs to collect (default 10, max 50)"),
		),
		mcp.WithBoolean("audio",
			mcp.Description("Download audio tracks (default when no kind is selected)"),
		),
		mcp.WithBoolean("video",
			mcp.Description("Download full videos"),
		),
		mcp.WithBoolean("transcript",
			mcp.Description("Download transcripts/subtitles"),
		),
		mcp.WithString("audio_format",
			mcp.Description("Target audio container: mp3, aac, flac, wav, ogg, opus, m4a (default mp3)"),
		),
	)
	s.AddTool(collectTool, handleCollectMedia(apiURL, apiKey))

	fetchTool := mcp.NewTool("fetch_urls",
		mcp.WithDescription("Download the selected media kinds for an explicit list of URLs, skipping discovery. Long-running: returns once the whole batch has finished."),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description("URLs to fetch"),
		),
		mcp.WithBoolean("audio",
			mcp.Description("Download audio tracks (default when no kind is selected)"),
		),
		mcp.WithBoolean("video",
			mcp.Description("Download full videos"),
		),
		mcp.WithBoolean("transcript",
			mcp.Description("Download transcripts/subtitles"),
		),
		mcp.WithString("audio_format",
			mcp.Description("Target audio container: mp3, aac, flac, wav, ogg, opus, m4a (default mp3)"),
		),
	)
	s.AddTool(fetchTool, handleFetchURLs(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// --- Shared helpers ---

func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// pollJobCompletion polls a job endpoint until it leaves the queue and
// finishes, or the context is cancelled.
func pollJobCompletion(ctx context.Context, client *http.Client, apiURL, apiKey, endpoint string) ([]byte, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+endpoint, nil)
			if err != nil {
				return nil, fmt.Errorf("create poll request: %w", err)
			}
			req.Header.Set("X-API-Key", apiKey)

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("poll request failed: %w", err)
			}

			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("read poll response: %w", err)
			}

			// Quick check if the job is still pending or in flight.
			var status struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(body, &status); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}

			if status.Status != "queued" && status.Status != "running" {
				return body, nil
			}
		}
	}
}

// runCollectionJob submits a collection payload, waits for the job to
// finish, and renders the outcome. Shared by collect_media and fetch_urls.
func runCollectionJob(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload map[string]interface{}) (*mcp.CallToolResult, error) {
	respBody, err := apiPost(ctx, client, apiURL, apiKey, path, payload)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("submit request failed: %v", err)), nil
	}

	var jobResp jobResponse
	if err := json.Unmarshal(respBody, &jobResp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse job response: %v", err)), nil
	}

	if jobResp.ID == "" {
		var apiErr struct {
			Error *struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != nil {
			return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", apiErr.Error.Code, apiErr.Error.Message)), nil
		}
		return mcp.NewToolResultError("job creation failed"), nil
	}

	resultBody, err := pollJobCompletion(ctx, client, apiURL, apiKey, "/api/v1/jobs/"+jobResp.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("polling job failed: %v", err)), nil
	}

	var statusResp jobStatusResponse
	if err := json.Unmarshal(resultBody, &statusResp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse job status: %v", err)), nil
	}

	if statusResp.Status == "failed" {
		errMsg := "collection failed"
		if statusResp.Error != nil {
			errMsg = fmt.Sprintf("[%s] %s", statusResp.Error.Code, statusResp.Error.Message)
		}
		return mcp.NewToolResultError(errMsg), nil
	}

	return mcp.NewToolResultText(formatOutcome(statusResp)), nil
}

// formatOutcome renders a finished job as readable text.
func formatOutcome(js jobStatusResponse) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Job %s: %s\n", js.ID, js.Status))

	if js.Outcome == nil {
		return sb.String()
	}
	o := js.Outcome
	sb.WriteString(fmt.Sprintf("%d URLs processed, %d with at least one successful download\n\n",
		o.Summary.Discovered, o.Summary.Succeeded))

	for i, u := range o.URLs {
		sb.WriteString(fmt.Sprintf("--- [%d] %s ---\n", i+1, u.URL))
		for _, k := range u.Kinds {
			if k.Status == "ok" {
				sb.WriteString(fmt.Sprintf("%s: ok (%dms)\n", k.Kind, k.DurationMs))
			} else {
				sb.WriteString(fmt.Sprintf("%s: FAILED: %s\n", k.Kind, k.Error))
			}
		}
		sb.WriteString("\n")
	}

	if o.Summary.RotationFailures > 0 {
		sb.WriteString(fmt.Sprintf("%d identity rotations failed\n", o.Summary.RotationFailures))
	}
	return sb.String()
}

// mediaSelection reads the kind booleans, defaulting to audio-only when
// nothing was selected.
func mediaSelection(request mcp.CallToolRequest) (audio, video, transcript bool) {
	audio = request.GetBool("audio", false)
	video = request.GetBool("video", false)
	transcript = request.GetBool("transcript", false)
	if !audio && !video && !transcript {
		audio = true
	}
	return audio, video, transcript
}

// --- Tool handlers ---

func handleDiscoverMedia(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}

		payload := map[string]interface{}{"query": query}
		if maxResults := request.GetInt("max_results", 0); maxResults > 0 {
			payload["max_results"] = maxResults
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/search", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search request failed: %v", err)), nil
		}

		var searchResp searchResponse
		if err := json.Unmarshal(respBody, &searchResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse search response: %v", err)), nil
		}

		if !searchResp.Success {
			errMsg := "search failed"
			if searchResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", searchResp.Error.Code, searchResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Found %d URLs for %q:\n\n", searchResp.Total, searchResp.Query))
		for _, u := range searchResp.URLs {
			sb.WriteString(u + "\n")
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleCollectMedia(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 600 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}

		audio, video, transcript := mediaSelection(request)

		payload := map[string]interface{}{
			"query":      query,
			"audio":      audio,
			"video":      video,
			"transcript": transcript,
		}
		if maxResults := request.GetInt("max_results", 0); maxResults > 0 {
			payload["max_results"] = maxResults
		}
		if format := request.GetString("audio_format", ""); format != "" {
			payload["audio_format"] = format
		}

		return runCollectionJob(ctx, client, apiURL, apiKey, "/api/v1/collect", payload)
	}
}

func handleFetchURLs(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 600 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		urls, err := request.RequireStringSlice("urls")
		if err != nil {
			return mcp.NewToolResultError("urls is required and must be an array of strings"), nil
		}

		audio, video, transcript := mediaSelection(request)

		payload := map[string]interface{}{
			"urls":       urls,
			"audio":      audio,
			"video":      video,
			"transcript": transcript,
		}
		if format := request.GetString("audio_format", ""); format != "" {
			payload["audio_format"] = format
		}

		return runCollectionJob(ctx, client, apiURL, apiKey, "/api/v1/fetch", payload)
	}
}
