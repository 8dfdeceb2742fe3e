package draft

import (
	"regexp"
	"strings"

	"github.com/sahilm/fuzzy"
)

var jsonExtRe = regexp.MustCompile(`(?i)\.json$`)

// SelectFile picks the draft file that most likely holds assignmentID.
// In order: a file named after the assignment, a file whose name contains it,
// the closest fuzzy match, and finally the newest file.
func SelectFile(files []File, assignmentID string) (File, bool) {
	if len(files) == 0 {
		return File{}, false
	}
	sorted := SortFilesDesc(files)
	want := strings.TrimSpace(assignmentID)

	for _, f := range sorted {
		if strings.TrimSpace(jsonExtRe.ReplaceAllString(f.Name, "")) == want {
			return f, true
		}
	}
	for _, f := range sorted {
		if strings.Contains(f.Name, assignmentID) {
			return f, true
		}
	}
	if want != "" {
		names := make([]string, len(sorted))
		for i, f := range sorted {
			names[i] = f.Name
		}
		if matches := fuzzy.Find(want, names); len(matches) > 0 {
			return sorted[matches[0].Index], true
		}
	}
	return sorted[0], true
}

// SuggestAssignments ranks known assignment ids by how well they fuzzy-match query.
func SuggestAssignments(query string, known []string) []string {
	matches := fuzzy.Find(strings.TrimSpace(query), known)
	suggestions := make([]string, 0, len(matches))
	for _, m := range matches {
		suggestions = append(suggestions, m.Str)
	}
	return suggestions
}
