package assignment

import (
	"html/template"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var (
	boldRe   = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicRe = regexp.MustCompile(`\*(.*?)\*`)

	policy = bluemonday.UGCPolicy()
)

// RenderMarkdown turns the **bold** and *italic* markers used in question texts into HTML.
func RenderMarkdown(s string) template.HTML {
	s = boldRe.ReplaceAllString(s, "<b>$1</b>")
	s = italicRe.ReplaceAllString(s, "<i>$1</i>")
	return template.HTML(policy.Sanitize(s))
}

// Sanitize makes untrusted answer or feedback HTML safe to embed.
func Sanitize(s string) template.HTML {
	return template.HTML(policy.Sanitize(s))
}
