package models

// CollectRequest is the resolved configuration for one pipeline run.
// It is also the payload for POST /api/v1/collect.
type CollectRequest struct {
	// Query is the search phrase. Required unless URLs is set.
	Query string `json:"query,omitempty"`

	// URLs switches the run into list mode: discovery and persistence
	// are skipped and these URLs are dispatched directly.
	URLs []string `json:"urls,omitempty" binding:"omitempty,max=100"`

	// MaxResults caps how many unique URLs discovery may return.
	// Default: 10. Ignored in list mode.
	MaxResults int `json:"max_results,omitempty" binding:"omitempty,min=1,max=50"`

	// Media selection. At least one kind must be requested.
	Audio      bool `json:"audio"`
	Video      bool `json:"video"`
	Transcript bool `json:"transcript"`

	// AudioFormat is the target audio container. Common values: mp3,
	// aac, flac, wav, ogg, opus, m4a. Any other code is passed through
	// to the tool unchanged. Default: "mp3".
	AudioFormat string `json:"audio_format,omitempty"`

	// Rotate requests an identity rotation before each URL.
	// Default: the service-level setting (on when routing is enabled).
	Rotate *bool `json:"rotate,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *CollectRequest) Defaults() {
	if r.MaxResults == 0 {
		r.MaxResults = 10
	}
	if r.AudioFormat == "" {
		r.AudioFormat = "mp3"
	}
}

// ListMode reports whether the run dispatches an explicit URL list
// instead of discovering one.
func (r *CollectRequest) ListMode() bool {
	return len(r.URLs) > 0
}

// SearchRequest is the payload for POST /api/v1/search.
type SearchRequest struct {
	// Query is the search phrase. Required.
	Query string `json:"query" binding:"required"`

	// MaxResults caps the returned URL count. Default: 10.
	MaxResults int `json:"max_results,omitempty" binding:"omitempty,min=1,max=50"`
}

// FetchRequest is the payload for POST /api/v1/fetch: dispatch-only runs
// over an explicit URL list.
type FetchRequest struct {
	// URLs to dispatch. Required.
	URLs []string `json:"urls" binding:"required,min=1,max=100"`

	Audio      bool `json:"audio"`
	Video      bool `json:"video"`
	Transcript bool `json:"transcript"`

	// AudioFormat is the target audio container. Default: "mp3".
	AudioFormat string `json:"audio_format,omitempty"`

	// Rotate requests an identity rotation before each URL.
	Rotate *bool `json:"rotate,omitempty"`
}

// ToCollect converts a fetch payload into the equivalent list-mode run.
func (r *FetchRequest) ToCollect() CollectRequest {
	return CollectRequest{
		URLs:        r.URLs,
		Audio:       r.Audio,
		Video:       r.Video,
		Transcript:  r.Transcript,
		AudioFormat: r.AudioFormat,
		Rotate:      r.Rotate,
	}
}
