package models

// MediaKind identifies one of the independently dispatchable download types.
type MediaKind string

const (
	KindAudio      MediaKind = "audio"
	KindVideo      MediaKind = "video"
	KindTranscript MediaKind = "transcript"
)

// KindOrder is the fixed invocation order for media kinds within one URL.
var KindOrder = []MediaKind{KindAudio, KindVideo, KindTranscript}

// ResultSet is an order-preserving collection of unique candidate URLs.
// The extractor builds it incrementally; afterwards it is read-only.
// Uniqueness is on the canonical (fully decoded) URL string.
type ResultSet struct {
	urls []string
	seen map[string]struct{}
}

// NewResultSet creates an empty ResultSet.
func NewResultSet() *ResultSet {
	return &ResultSet{seen: make(map[string]struct{})}
}

// Add appends a canonical URL unless it was already seen.
// It reports whether the URL was newly added.
func (s *ResultSet) Add(url string) bool {
	if _, ok := s.seen[url]; ok {
		return false
	}
	s.seen[url] = struct{}{}
	s.urls = append(s.urls, url)
	return true
}

// Len returns the number of unique URLs collected so far.
func (s *ResultSet) Len() int {
	return len(s.urls)
}

// URLs returns the collected URLs in first-seen order.
// Callers must treat the returned slice as read-only.
func (s *ResultSet) URLs() []string {
	return s.urls
}

// DownloadRequest describes the work for a single URL: which media kinds
// to fetch, where each kind lands, and how the tool reaches the network.
type DownloadRequest struct {
	// URL is the media page to download from.
	URL string

	// Media selection. At least one must be set before dispatch.
	Audio      bool
	Video      bool
	Transcript bool

	// AudioFormat is the target container for extracted audio
	// (e.g. "mp3", "flac"). Only meaningful when Audio is set.
	AudioFormat string

	// Destination directory per media kind. A directory must exist
	// before dispatch if its kind is selected.
	AudioDir      string
	VideoDir      string
	TranscriptDir string

	// ProxyURL routes the tool's traffic (e.g. "socks5://127.0.0.1:9050").
	// Empty disables proxying.
	ProxyURL string

	// Subtitle options for the transcript kind.
	SubtitleLang    string // target language code, e.g. "en"
	SubtitleFormat  string // "txt" or "srt"
	ManualSubtitles bool   // also request uploader-provided subtitles
}

// Kinds returns the selected media kinds in fixed dispatch order.
func (r DownloadRequest) Kinds() []MediaKind {
	kinds := make([]MediaKind, 0, len(KindOrder))
	for _, k := range KindOrder {
		switch k {
		case KindAudio:
			if r.Audio {
				kinds = append(kinds, k)
			}
		case KindVideo:
			if r.Video {
				kinds = append(kinds, k)
			}
		case KindTranscript:
			if r.Transcript {
				kinds = append(kinds, k)
			}
		}
	}
	return kinds
}

// Dir returns the destination directory for the given kind.
func (r DownloadRequest) Dir(kind MediaKind) string {
	switch kind {
	case KindAudio:
		return r.AudioDir
	case KindVideo:
		return r.VideoDir
	case KindTranscript:
		return r.TranscriptDir
	}
	return ""
}
