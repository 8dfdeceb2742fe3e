package feedback

import (
	"encoding/json"
	"strings"
)

// score colours
const (
	ColorFull    = "#22c55e"
	ColorPartial = "#f59e0b"
	ColorLow     = "#ef4444"

	// DefaultDateLabel is shown for entries saved without a date.
	DefaultDateLabel = "Gespeichert"
)

type (
	// Result is the assessment of one question, scored 0 to 3.
	Result struct {
		QuestionID   string  `json:"question_id"`
		Score        float64 `json:"score"`
		Concise      string  `json:"concise_feedback"`
		Detailed     string  `json:"detailed_feedback"`
		QuestionText string  `json:"question_text,omitempty"`
	}

	// Entry is one assessment run of a student's work.
	Entry struct {
		DateStr string   `json:"date_str"`
		Results []Result `json:"results"`
	}

	// History holds every assessment of a student for one assignment, oldest first.
	History struct {
		Entries []Entry `json:"history"`
	}

	// Key identifies the feedback of one student on one assignment.
	Key struct {
		Class      string `json:"className" validate:"required"`
		Assignment string `json:"assignmentId" validate:"required,assignmentid"`
		Student    string `json:"studentName" validate:"required"`
	}

	// Delta compares the latest entry to the one before it.
	Delta struct {
		Score    float64 `json:"score"`
		Answered int     `json:"answered"`
	}
)

// UnmarshalJSON also accepts a bare entry, which is read as a single version.
func (h *History) UnmarshalJSON(data []byte) error {
	var probe struct {
		History *[]Entry `json:"history"`
		Results []Result `json:"results"`
		DateStr string   `json:"date_str"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	switch {
	case probe.History != nil:
		h.Entries = *probe.History
	case probe.Results != nil || probe.DateStr != "":
		h.Entries = []Entry{{DateStr: probe.DateStr, Results: probe.Results}}
	default:
		h.Entries = nil
	}
	return nil
}

func (k Key) Normalize() Key {
	return Key{
		Class:      strings.ToUpper(strings.TrimSpace(k.Class)),
		Assignment: strings.TrimSpace(k.Assignment),
		Student:    strings.TrimSpace(k.Student),
	}
}

// ScoreColor maps a score to its badge colour.
func ScoreColor(score float64) string {
	switch score {
	case 3:
		return ColorFull
	case 2:
		return ColorPartial
	default:
		return ColorLow
	}
}

func (e Entry) Label() string {
	if e.DateStr == "" {
		return DefaultDateLabel
	}
	return e.DateStr
}

func (e Entry) TotalScore() float64 {
	var total float64
	for _, r := range e.Results {
		total += r.Score
	}
	return total
}

// Answered counts the results with a positive score.
func (e Entry) Answered() int {
	n := 0
	for _, r := range e.Results {
		if r.Score > 0 {
			n++
		}
	}
	return n
}

// Scores maps question ids to their score.
func (e Entry) Scores() map[string]float64 {
	scores := make(map[string]float64, len(e.Results))
	for _, r := range e.Results {
		scores[r.QuestionID] = r.Score
	}
	return scores
}

func (h History) Versions() int {
	return len(h.Entries)
}

func (h History) Latest() (Entry, bool) {
	if len(h.Entries) == 0 {
		return Entry{}, false
	}
	return h.Entries[len(h.Entries)-1], true
}

// Delta is only available once there are two versions.
func (h History) Delta() (Delta, bool) {
	n := len(h.Entries)
	if n < 2 {
		return Delta{}, false
	}
	curr, prev := h.Entries[n-1], h.Entries[n-2]
	return Delta{
		Score:    curr.TotalScore() - prev.TotalScore(),
		Answered: curr.Answered() - prev.Answered(),
	}, true
}
