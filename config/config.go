package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Search    SearchConfig
	Store     StoreConfig
	Tor       TorConfig
	Download  DownloadConfig
	Server    ServerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// SearchConfig controls the discovery backend.
type SearchConfig struct {
	// Endpoint is the primary search endpoint.
	Endpoint string // default: "https://html.duckduckgo.com/html/"

	// FallbackEndpoint is tried when the primary fails or serves a
	// challenge page. Empty disables the fallback.
	FallbackEndpoint string // default: "https://lite.duckduckgo.com/lite/"

	// Selector matches result anchors on the primary endpoint's markup.
	Selector string // default: "a.result__a"

	// FallbackSelector matches result anchors on the fallback markup.
	FallbackSelector string // default: "a.result-link"

	// SiteFilter is appended to every query to restrict the backend
	// to the target sites.
	SiteFilter string // default: "site:youtube.com OR site:music.youtube.com"

	// AllowedDomains filters extracted hrefs by host substring.
	AllowedDomains []string // default: ["youtube.com", "youtu.be"]

	// UserAgent is sent with every search request.
	UserAgent string

	// Timeout bounds one search transport call.
	Timeout time.Duration // default: 30s

	// MaxResults is the default result cap per query.
	MaxResults int // default: 10
}

// StoreConfig controls the result artifact.
type StoreConfig struct {
	// ResultsFile is the path of the URL-list artifact.
	ResultsFile string // default: "urls.txt"
}

// TorConfig controls identity rotation and proxied transport.
type TorConfig struct {
	// Enabled routes search, probe, and download traffic through the
	// SOCKS proxy and allows rotation.
	Enabled bool // default: true

	// SocksAddr is the SOCKS5 proxy address.
	SocksAddr string // default: "127.0.0.1:9050"

	// ControlAddr is the control-port address used for rotation.
	ControlAddr string // default: "127.0.0.1:9051"

	// ControlPassword authenticates the control connection. When empty,
	// CookiePath is tried, then a null AUTHENTICATE.
	ControlPassword string

	// CookiePath points at the control auth cookie file.
	CookiePath string

	// DialTimeout bounds the control-port dial.
	DialTimeout time.Duration // default: 10s

	// Cooldown is the settle delay after a successful NEWNYM signal.
	Cooldown time.Duration // default: 5s

	// RotatePerURL requests a fresh identity before each URL.
	RotatePerURL bool // default: true

	// ProbeURL returns the caller's visible address in its body.
	ProbeURL string // default: "https://ident.me"

	// ProbeTimeout bounds one identity probe.
	ProbeTimeout time.Duration // default: 10s
}

// DownloadConfig controls the media-fetching tool invocations.
type DownloadConfig struct {
	// ToolBin is the yt-dlp binary name or path.
	ToolBin string // default: "yt-dlp"

	// OutputDir is the root of the per-kind destination tree.
	OutputDir string // default: "output"

	// Per-kind destination directories. Default: OutputDir/audio,
	// OutputDir/video, OutputDir/transcripts.
	AudioDir      string
	VideoDir      string
	TranscriptDir string

	// SplitByQuery nests downloads one level deeper in a directory
	// named after the sanitized query.
	SplitByQuery bool // default: true

	// AudioFormat is the default target audio container.
	AudioFormat string // default: "mp3"

	// SubtitleLang is the transcript language code.
	SubtitleLang string // default: "en"

	// SubtitleFormat is the transcript output format ("txt" or "srt").
	SubtitleFormat string // default: "txt"

	// ManualSubtitles also requests uploader-provided subtitles.
	ManualSubtitles bool // default: false

	// LaunchInterval paces subprocess launches. 0 disables pacing.
	LaunchInterval time.Duration // default: 1s
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"

	// QueueSize bounds the job queue; submissions beyond it are rejected.
	QueueSize int // default: 16
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// CacheConfig controls the discovery result cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached queries.
	MaxEntries int // default: 256

	// TTL is how long a cached discovery stays valid.
	TTL time.Duration // default: 5m
}

// WebhookConfig controls run-completion notifications.
type WebhookConfig struct {
	// URL receives a POST with the run outcome. Empty disables delivery.
	URL string

	// Secret signs the payload (X-Syphon-Signature) when set.
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	outDir := envOr("SYPHON_OUTPUT_DIR", "output")

	return &Config{
		Search: SearchConfig{
			Endpoint:         envOr("SYPHON_SEARCH_ENDPOINT", "https://html.duckduckgo.com/html/"),
			FallbackEndpoint: envOr("SYPHON_SEARCH_FALLBACK", "https://lite.duckduckgo.com/lite/"),
			Selector:         envOr("SYPHON_RESULT_SELECTOR", "a.result__a"),
			FallbackSelector: envOr("SYPHON_FALLBACK_SELECTOR", "a.result-link"),
			SiteFilter:       envOr("SYPHON_SITE_FILTER", "site:youtube.com OR site:music.youtube.com"),
			AllowedDomains:   envSliceOr("SYPHON_ALLOWED_DOMAINS", []string{"youtube.com", "youtu.be"}),
			UserAgent:        envOr("SYPHON_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"),
			Timeout:          envDurationOr("SYPHON_SEARCH_TIMEOUT", 30*time.Second),
			MaxResults:       envIntOr("SYPHON_MAX_RESULTS", 10),
		},
		Store: StoreConfig{
			ResultsFile: envOr("SYPHON_RESULTS_FILE", "urls.txt"),
		},
		Tor: TorConfig{
			Enabled:         envBoolOr("SYPHON_TOR_ENABLED", true),
			SocksAddr:       envOr("SYPHON_SOCKS_ADDR", "127.0.0.1:9050"),
			ControlAddr:     envOr("SYPHON_CONTROL_ADDR", "127.0.0.1:9051"),
			ControlPassword: os.Getenv("SYPHON_CONTROL_PASSWORD"),
			CookiePath:      os.Getenv("SYPHON_TOR_COOKIE"),
			DialTimeout:     envDurationOr("SYPHON_CONTROL_DIAL_TIMEOUT", 10*time.Second),
			Cooldown:        envDurationOr("SYPHON_ROTATE_COOLDOWN", 5*time.Second),
			RotatePerURL:    envBoolOr("SYPHON_ROTATE_PER_URL", true),
			ProbeURL:        envOr("SYPHON_PROBE_URL", "https://ident.me"),
			ProbeTimeout:    envDurationOr("SYPHON_PROBE_TIMEOUT", 10*time.Second),
		},
		Download: DownloadConfig{
			ToolBin:         envOr("SYPHON_YTDLP_BIN", "yt-dlp"),
			OutputDir:       outDir,
			AudioDir:        envOr("SYPHON_AUDIO_DIR", filepath.Join(outDir, "audio")),
			VideoDir:        envOr("SYPHON_VIDEO_DIR", filepath.Join(outDir, "video")),
			TranscriptDir:   envOr("SYPHON_TRANSCRIPT_DIR", filepath.Join(outDir, "transcripts")),
			SplitByQuery:    envBoolOr("SYPHON_SPLIT_BY_QUERY", true),
			AudioFormat:     envOr("SYPHON_AUDIO_FORMAT", "mp3"),
			SubtitleLang:    envOr("SYPHON_SUB_LANG", "en"),
			SubtitleFormat:  envOr("SYPHON_SUB_FORMAT", "txt"),
			ManualSubtitles: envBoolOr("SYPHON_SUB_MANUAL", false),
			LaunchInterval:  envDurationOr("SYPHON_LAUNCH_INTERVAL", time.Second),
		},
		Server: ServerConfig{
			Host:      envOr("SYPHON_HOST", "0.0.0.0"),
			Port:      envIntOr("SYPHON_PORT", 8080),
			Mode:      envOr("SYPHON_MODE", "release"),
			QueueSize: envIntOr("SYPHON_QUEUE_SIZE", 16),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SYPHON_AUTH_ENABLED", true),
			APIKeys: envSliceOr("SYPHON_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SYPHON_RATE_RPS", 5.0),
			Burst:             envIntOr("SYPHON_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("SYPHON_CACHE_MAX_ENTRIES", 256),
			TTL:        envDurationOr("SYPHON_CACHE_TTL", 5*time.Minute),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("SYPHON_WEBHOOK_URL"),
			Secret: os.Getenv("SYPHON_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("SYPHON_LOG_LEVEL", "info"),
			Format: envOr("SYPHON_LOG_FORMAT", "text"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
