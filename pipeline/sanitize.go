package pipeline

import "strings"

// unsafeDirChars strips characters that are invalid in directory names on
// at least one supported platform.
var unsafeDirChars = strings.NewReplacer(
	"<", "", ">", "", ":", "", `"`, "",
	"/", "", `\`, "", "|", "", "?", "", "*", "",
)

// sanitizeQueryDir turns a search query into a safe directory name:
// forbidden characters are removed and spaces become underscores. A query
// that sanitizes to nothing falls back to a fixed name so the run still
// has somewhere to land.
func sanitizeQueryDir(query string) string {
	s := unsafeDirChars.Replace(strings.TrimSpace(query))
	s = strings.ReplaceAll(s, " ", "_")
	if s == "" {
		return "search_results"
	}
	return s
}
