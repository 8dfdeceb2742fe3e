package draft

import (
	"html/template"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/kazi/core/assignment"
)

func questions(ids ...string) []assignment.Question {
	qs := make([]assignment.Question, 0, len(ids))
	for _, id := range ids {
		qs = append(qs, assignment.Question{ID: id, Text: "Frage " + id})
	}
	return qs
}

func TestComputeProgress(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	subs := map[string]SubDraft{
		"1": {
			Questions: questions("a", "b", "c"),
			Answers: []Answer{
				{QuestionID: "a", Answer: "<p>zwei Wörter</p>"},
				{QuestionID: "b", Answer: "<p><br></p>"},
				{QuestionID: "c", Answer: "  "},
			},
		},
		"2": {
			Questions: questions("a"),
			Answers:   []Answer{{QuestionID: "a", Answer: "<p>eins</p>"}},
		},
	}

	tests := []struct {
		name        string
		subs        map[string]SubDraft
		createdAt   time.Time
		masterTotal int
		want        Progress
	}{
		{
			name: "draft total",
			subs: subs, createdAt: now.Add(-10 * time.Minute),
			want: Progress{Answered: 2, Total: 4, Percent: 50, Words: 3, Color: ColorYellow},
		},
		{
			name: "master total wins",
			subs: subs, createdAt: now.Add(-time.Minute), masterTotal: 10,
			want: Progress{Answered: 2, Total: 10, Percent: 20, Words: 3, Color: ColorRed, Recent: true},
		},
		{
			name: "not started",
			want: Progress{Color: ColorRed},
		},
		{
			name:      "legacy single answer",
			subs:      map[string]SubDraft{"1": {Questions: questions("a"), Answer: "<p>alt</p>"}},
			createdAt: now.Add(-RecentWindow),
			want:      Progress{Answered: 1, Total: 1, Percent: 100, Words: 1, Color: ColorGreen},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeProgress(tt.subs, tt.createdAt, tt.masterTotal, now)
			if !tt.createdAt.IsZero() {
				ts := tt.createdAt
				tt.want.LastUpdate = &ts
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ComputeProgress() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestProgressColor(t *testing.T) {
	tests := []struct {
		percent int
		want    string
	}{
		{0, ColorRed}, {49, ColorRed}, {50, ColorYellow}, {79, ColorYellow}, {80, ColorGreen}, {100, ColorGreen},
	}
	for _, tt := range tests {
		if got := ProgressColor(tt.percent); got != tt.want {
			t.Errorf("ProgressColor(%d) = %v; want %v", tt.percent, got, tt.want)
		}
	}
}

func TestSelectFile(t *testing.T) {
	files := []File{
		{Name: "2024-01-01_Brüche.json", Path: "p1"},
		{Name: "2024-02-01_Algebra.json", Path: "p2"},
		{Name: "Geometrie.json", Path: "p3"},
		{Name: "2024-03-01_Diverses.json", Path: "p4"},
	}
	tests := []struct {
		name         string
		files        []File
		assignmentID string
		wantPath     string
		wantOk       bool
	}{
		{name: "exact name", files: files, assignmentID: " Geometrie ", wantPath: "p3", wantOk: true},
		{name: "name contains id", files: files, assignmentID: "Algebra", wantPath: "p2", wantOk: true},
		{name: "fuzzy", files: files, assignmentID: "Brche", wantPath: "p1", wantOk: true},
		{name: "newest", files: files, assignmentID: "Stochastik", wantPath: "p3", wantOk: true},
		{name: "no files", assignmentID: "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectFile(tt.files, tt.assignmentID)
			if ok != tt.wantOk || got.Path != tt.wantPath {
				t.Errorf("SelectFile() = (%v, %v); want (%v, %v)", got.Path, ok, tt.wantPath, tt.wantOk)
			}
		})
	}
}

func TestSimilarity(t *testing.T) {
	mk := func(answers ...string) Draft {
		ans := make([]Answer, 0, len(answers))
		for i, a := range answers {
			ans = append(ans, Answer{QuestionID: string(rune('a' + i)), Answer: a})
		}
		return Draft{Assignments: map[string]map[string]SubDraft{"A": {"1": {Answers: ans}}}}
	}

	same := Similarity(mk("<p>der Hund bellt laut</p>"), mk("<p>der Hund bellt laut</p>"))
	assert.Equal(t, 1.0, same)

	edited := Similarity(mk("<p>der Hund bellt laut</p>"), mk("<p>der Hund bellt leise</p>"))
	assert.InDelta(t, 0.75, edited, 0.001)

	rewritten := Similarity(mk("<p>der Hund bellt laut</p>"), mk("<p>eine Katze schläft ruhig</p>"))
	assert.True(t, IsFlagged(&rewritten))
	assert.False(t, IsFlagged(&edited))
	assert.False(t, IsFlagged(nil), "first submissions are never flagged")

	assert.Equal(t, 1.0, Similarity(Draft{}, Draft{}))
}

func TestBuildCard(t *testing.T) {
	assert.Equal(t, TextNotStarted, BuildCard(nil).Empty)
	assert.Equal(t, TextNoSubs, BuildCard(map[string]SubDraft{}).Empty)

	card := BuildCard(map[string]SubDraft{
		"2": {Questions: questions("q1"), Answers: []Answer{{QuestionID: "q1", Answer: "<p><br></p>"}}}, // cleared editor
		"1": {
			Title:     "Einleitung",
			Questions: []assignment.Question{{ID: "q1", Text: "Was ist **x**?"}, {ID: "q2", Text: "Warum?"}},
			Answers:   []Answer{{QuestionID: "q2", Answer: "<p>Darum</p>"}},
		},
	})

	want := Card{Sections: []CardSection{
		{SubID: "1", Title: "Einleitung", Items: []CardItem{
			{Number: 1, SlotID: "1_q1", Question: "Was ist <b>x</b>?", Answer: TextNoAnswer, Missing: true},
			{Number: 2, SlotID: "1_q2", Question: "Warum?", Answer: template.HTML("<p>Darum</p>")},
		}},
		{SubID: "2", Title: "2", Items: []CardItem{
			{Number: 1, SlotID: "2_q1", Question: "Frage q1", Answer: TextNoAnswer, Missing: true},
		}},
	}}
	if diff := cmp.Diff(want, card); diff != "" {
		t.Errorf("BuildCard() mismatch (-want +got):\n%s", diff)
	}
}
