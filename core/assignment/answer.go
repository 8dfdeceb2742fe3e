package assignment

import (
	"strings"

	"golang.org/x/net/html"
)

// emptyEditorContent is what the rich-text editor leaves behind once cleared.
const emptyEditorContent = "<p><br></p>"

// IsEmptyAnswer reports whether an editor answer holds nothing.
func IsEmptyAnswer(answer string) bool {
	answer = strings.TrimSpace(answer)
	return answer == "" || answer == emptyEditorContent
}

// PlainText strips the markup from an editor answer; tags are treated as word separators.
func PlainText(answer string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(answer))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.Write(z.Text())
		default:
			b.WriteByte(' ')
		}
	}
}

// WordCount counts the whitespace separated words of an editor answer.
func WordCount(answer string) int {
	return len(strings.Fields(PlainText(answer)))
}
