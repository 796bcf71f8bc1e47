package dispatch

import (
	"reflect"
	"testing"

	"github.com/use-agent/syphon/models"
)

func baseRequest() models.DownloadRequest {
	return models.DownloadRequest{
		URL:            "https://www.youtube.com/watch?v=abc",
		AudioFormat:    "mp3",
		AudioDir:       "out/audio",
		VideoDir:       "out/video",
		TranscriptDir:  "out/transcripts",
		ProxyURL:       "socks5://127.0.0.1:9050",
		SubtitleLang:   "en",
		SubtitleFormat: "txt",
	}
}

func TestBuildArgs_Audio(t *testing.T) {
	got := buildArgs(models.KindAudio, baseRequest())
	want := []string{
		"--proxy", "socks5://127.0.0.1:9050",
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", "0",
		"-o", "out/audio/%(title)s.%(ext)s",
		"https://www.youtube.com/watch?v=abc",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("audio args\n got %v\nwant %v", got, want)
	}
}

func TestBuildArgs_Video(t *testing.T) {
	got := buildArgs(models.KindVideo, baseRequest())
	want := []string{
		"--proxy", "socks5://127.0.0.1:9050",
		"-f", "bestvideo+bestaudio",
		"--merge-output-format", "mp4",
		"-o", "out/video/%(title)s.%(ext)s",
		"https://www.youtube.com/watch?v=abc",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("video args\n got %v\nwant %v", got, want)
	}
}

func TestBuildArgs_Transcript(t *testing.T) {
	got := buildArgs(models.KindTranscript, baseRequest())
	want := []string{
		"--proxy", "socks5://127.0.0.1:9050",
		"--skip-download",
		"--write-auto-sub",
		"--sub-lang", "en",
		"--convert-subs", "txt",
		"-o", "out/transcripts/%(title)s.%(ext)s",
		"https://www.youtube.com/watch?v=abc",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("transcript args\n got %v\nwant %v", got, want)
	}
}

func TestBuildArgs_TranscriptSrtWithManualSubs(t *testing.T) {
	req := baseRequest()
	req.SubtitleFormat = "srt"
	req.ManualSubtitles = true

	got := buildArgs(models.KindTranscript, req)
	want := []string{
		"--proxy", "socks5://127.0.0.1:9050",
		"--skip-download",
		"--write-auto-sub",
		"--write-sub",
		"--sub-lang", "en",
		"--convert-subs", "srt",
		"--sub-format", "srt",
		"-o", "out/transcripts/%(title)s.%(ext)s",
		"https://www.youtube.com/watch?v=abc",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("transcript srt args\n got %v\nwant %v", got, want)
	}
}

func TestBuildArgs_NoProxy(t *testing.T) {
	req := baseRequest()
	req.ProxyURL = ""

	got := buildArgs(models.KindAudio, req)
	if len(got) == 0 || got[0] != "-x" {
		t.Errorf("expected no proxy flag, got %v", got)
	}
	for _, a := range got {
		if a == "--proxy" {
			t.Errorf("proxy flag present without a proxy URL: %v", got)
		}
	}
}

func TestBuildArgs_AudioFormatVariants(t *testing.T) {
	for _, format := range []string{"mp3", "aac", "flac", "wav", "ogg", "opus", "m4a"} {
		req := baseRequest()
		req.AudioFormat = format

		got := buildArgs(models.KindAudio, req)
		found := false
		for i, a := range got {
			if a == "--audio-format" && i+1 < len(got) && got[i+1] == format {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("format %s missing from args %v", format, got)
		}
	}
}

func TestBuildArgs_UnknownKind(t *testing.T) {
	if got := buildArgs(models.MediaKind("bogus"), baseRequest()); got != nil {
		t.Errorf("expected nil args for an unknown kind, got %v", got)
	}
}
