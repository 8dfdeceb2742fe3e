package draft

import (
	"html/template"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
)

// placeholders shown on student cards
const (
	TextNotStarted = "Noch nicht begonnen"
	TextNoSubs     = "Keine Teilaufgaben"
	TextNoAnswer   = "(Keine Antwort)"
)

type (
	// Card is the body of a student card in the live grid.
	Card struct {
		Empty    string        `json:"empty,omitempty"` // placeholder when there is nothing to show
		Sections []CardSection `json:"sections"`
	}

	CardSection struct {
		SubID string     `json:"subId"`
		Title string     `json:"title"`
		Items []CardItem `json:"items"`
	}

	CardItem struct {
		Number   int           `json:"number"`
		SlotID   string        `json:"slotId"` // where feedback for this question goes
		Question template.HTML `json:"question"`
		Answer   template.HTML `json:"answer,omitempty"`
		Missing  bool          `json:"missing"`
	}
)

// BuildCard lays out the answers of one assignment for display.
// subs is nil when the student has not started the assignment.
func BuildCard(subs map[string]SubDraft) Card {
	if subs == nil {
		return Card{Empty: TextNotStarted, Sections: []CardSection{}}
	}
	if len(subs) == 0 {
		return Card{Empty: TextNoSubs, Sections: []CardSection{}}
	}

	card := Card{Sections: make([]CardSection, 0, len(subs))}
	for _, subID := range core.SortedKeys(subs) {
		sub := subs[subID]
		section := CardSection{SubID: subID, Title: sub.Title, Items: make([]CardItem, 0, len(sub.Questions))}
		if section.Title == "" {
			section.Title = subID
		}
		for i, q := range sub.Questions {
			item := CardItem{
				Number:   i + 1,
				SlotID:   assignment.SlotID(subID, q.ID),
				Question: assignment.RenderMarkdown(q.Text),
			}
			if ans, ok := sub.AnswerFor(q.ID); ok && !assignment.IsEmptyAnswer(ans) {
				item.Answer = assignment.Sanitize(ans)
			} else {
				item.Answer = TextNoAnswer
				item.Missing = true
			}
			section.Items = append(section.Items, item)
		}
		card.Sections = append(card.Sections, section)
	}
	return card
}
