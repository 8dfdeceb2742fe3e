package draft

import (
	"time"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
)

// progress colour tiers
const (
	ColorGreen  = "#28a745"
	ColorYellow = "#ffc107"
	ColorRed    = "#dc3545"
)

// RecentWindow is how long after a save a draft still counts as being worked on.
const RecentWindow = 5 * time.Minute

type Progress struct {
	Answered   int        `json:"answered"`
	Total      int        `json:"total"`
	Percent    int        `json:"percent"`
	Words      int        `json:"words"`
	Color      string     `json:"color"`
	LastUpdate *time.Time `json:"lastUpdate,omitempty"`
	Recent     bool       `json:"recent"`
}

// ComputeProgress tallies the answers of one assignment in a draft.
// masterTotal is the number of questions of the master assignment; when it is 0
// the questions found in the draft itself are used as total.
func ComputeProgress(subs map[string]SubDraft, createdAt time.Time, masterTotal int, now time.Time) Progress {
	var p Progress
	var draftTotal int
	for _, sub := range subs {
		draftTotal += len(sub.Questions)
		for _, a := range sub.AllAnswers() {
			if assignment.IsEmptyAnswer(a.Answer) {
				continue
			}
			p.Answered++
			p.Words += assignment.WordCount(a.Answer)
		}
	}

	p.Total = draftTotal
	if masterTotal > 0 {
		p.Total = masterTotal
	}
	if p.Total > 0 {
		p.Percent = core.Round(float64(p.Answered) / float64(p.Total) * 100)
	}
	p.Color = ProgressColor(p.Percent)

	if !createdAt.IsZero() {
		t := createdAt
		p.LastUpdate = &t
		p.Recent = now.Sub(createdAt) < RecentWindow
	}
	return p
}

func ProgressColor(percent int) string {
	switch {
	case percent >= 80:
		return ColorGreen
	case percent >= 50:
		return ColorYellow
	default:
		return ColorRed
	}
}
