package draft

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
)

// FlagThreshold is the similarity below which a new version is flagged as a suspicious rewrite.
const FlagThreshold = 0.3

// Text flattens every answer of a draft into plain text, in a stable order.
func (d Draft) Text() string {
	var b strings.Builder
	for _, aid := range core.SortedKeys(d.Assignments) {
		subs := d.Assignments[aid]
		for _, sid := range core.SortedKeys(subs) {
			for _, a := range subs[sid].AllAnswers() {
				if assignment.IsEmptyAnswer(a.Answer) {
					continue
				}
				b.WriteString(assignment.PlainText(a.Answer))
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}

// Similarity compares the answer text of two drafts word by word; 1 means identical.
func Similarity(prev, curr Draft) float64 {
	a, b := strings.Fields(prev.Text()), strings.Fields(curr.Text())
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	return difflib.NewMatcher(a, b).Ratio()
}

// IsFlagged reports whether a similarity score marks a suspicious change.
func IsFlagged(score *float64) bool {
	return score != nil && *score < FlagThreshold
}
