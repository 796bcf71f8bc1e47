package dispatch

import (
	"path/filepath"

	"github.com/use-agent/syphon/models"
)

// outputTemplate is the tool's per-directory naming pattern. The literal
// percent tokens are expanded by the tool, never by this process.
func outputTemplate(dir string) string {
	return filepath.Join(dir, "%(title)s.%(ext)s")
}

// buildArgs returns the full argument vector for one (kind, request)
// invocation. Builders are pure: the same request always produces the
// same arguments.
func buildArgs(kind models.MediaKind, req models.DownloadRequest) []string {
	switch kind {
	case models.KindAudio:
		return audioArgs(req)
	case models.KindVideo:
		return videoArgs(req)
	case models.KindTranscript:
		return transcriptArgs(req)
	}
	return nil
}

func baseArgs(req models.DownloadRequest) []string {
	if req.ProxyURL == "" {
		return nil
	}
	return []string{"--proxy", req.ProxyURL}
}

// audioArgs extracts audio only, best quality, into the requested container.
func audioArgs(req models.DownloadRequest) []string {
	args := baseArgs(req)
	args = append(args,
		"-x",
		"--audio-format", req.AudioFormat,
		"--audio-quality", "0",
		"-o", outputTemplate(req.AudioDir),
		req.URL,
	)
	return args
}

// videoArgs fetches the best video+audio pair merged into an mp4.
func videoArgs(req models.DownloadRequest) []string {
	args := baseArgs(req)
	args = append(args,
		"-f", "bestvideo+bestaudio",
		"--merge-output-format", "mp4",
		"-o", outputTemplate(req.VideoDir),
		req.URL,
	)
	return args
}

// transcriptArgs fetches subtitles without media. Auto-generated captions
// are always requested; uploader-provided ones are added on demand. The
// srt format needs the extra --sub-format hint so the tool prefers srt
// sources over vtt before converting.
func transcriptArgs(req models.DownloadRequest) []string {
	args := baseArgs(req)
	args = append(args, "--skip-download", "--write-auto-sub")
	if req.ManualSubtitles {
		args = append(args, "--write-sub")
	}
	args = append(args,
		"--sub-lang", req.SubtitleLang,
		"--convert-subs", req.SubtitleFormat,
	)
	if req.SubtitleFormat == "srt" {
		args = append(args, "--sub-format", "srt")
	}
	args = append(args,
		"-o", outputTemplate(req.TranscriptDir),
		req.URL,
	)
	return args
}
