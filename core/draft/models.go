package draft

import (
	"sort"
	"strings"
	"time"

	"github.com/trezcool/kazi/core/assignment"
)

type (
	// File is a saved draft version on the backend.
	File struct {
		Name string `json:"name"`
		Path string `json:"path"`
	}

	// Index lists the draft files per class and student: {class: {student: [files]}}.
	Index map[string]map[string][]File

	// Draft is the content of one saved draft file.
	Draft struct {
		Assignments map[string]map[string]SubDraft `json:"assignments"` // {assignmentID: {subID: sub}}
		CreatedAt   time.Time                      `json:"createdAt"`
	}

	SubDraft struct {
		Title     string                `json:"title"`
		Type      string                `json:"type"`
		Questions []assignment.Question `json:"questions"`
		Answers   []Answer              `json:"answers,omitempty"`
		Answer    string                `json:"answer,omitempty"` // one answer for the whole sub (older drafts)
	}

	Answer struct {
		QuestionID string `json:"questionId"`
		Answer     string `json:"answer"`
	}

	ChangeData struct {
		SimilarityScore *float64 `json:"similarityScore"`
	}

	// SubmissionFile is a submitted version as listed by the backend.
	SubmissionFile struct {
		Name       string      `json:"name"`
		Path       string      `json:"path"`
		ChangeData *ChangeData `json:"changeData,omitempty"`
		Flagged    bool        `json:"flagged"`
	}

	// Submissions lists the submissions per class and student.
	Submissions map[string]map[string][]SubmissionFile

	// FilterData maps assignment names to their sub-assignment names.
	FilterData map[string][]string

	FilteredAnswer struct {
		StudentName    string                    `json:"studentName"`
		SubAssignments map[string]FilteredAnswer `json:"subAssignments,omitempty"`
		Answer         string                    `json:"answer,omitempty"`
	}

	AnswerFilter struct {
		ClassName         string `json:"className" query:"className" validate:"required"`
		AssignmentName    string `json:"assignmentName" query:"assignmentName" validate:"required,assignmentid"`
		SubAssignmentName string `json:"subAssignmentName,omitempty" query:"subAssignmentName"`
	}
)

// Assignment returns the sub drafts stored for assignmentID, matching the key loosely.
func (d Draft) Assignment(assignmentID string) (map[string]SubDraft, bool) {
	subs, _, ok := assignment.Lookup(d.Assignments, assignmentID)
	return subs, ok
}

// AllAnswers returns the answers of a sub draft; an older single answer is reported without a question id.
func (s SubDraft) AllAnswers() []Answer {
	if len(s.Answers) == 0 && s.Answer != "" {
		return []Answer{{Answer: s.Answer}}
	}
	return s.Answers
}

// AnswerFor returns the answer given to questionID.
func (s SubDraft) AnswerFor(questionID string) (string, bool) {
	for _, a := range s.Answers {
		if a.QuestionID == questionID {
			return a.Answer, true
		}
	}
	return "", false
}

// Students returns the students of class in ascending order.
func (idx Index) Students(class string) []string {
	students := make([]string, 0, len(idx[class]))
	for s := range idx[class] {
		students = append(students, s)
	}
	sort.Strings(students)
	return students
}

// Classes returns the classes in ascending order.
func (idx Index) Classes() []string {
	classes := make([]string, 0, len(idx))
	for c := range idx {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	return classes
}

// NormalizeClass is how class names are compared: trimmed and upper-cased.
func NormalizeClass(class string) string {
	return strings.ToUpper(strings.TrimSpace(class))
}

// SortFilesDesc returns a copy of files sorted by name, newest (highest) first.
func SortFilesDesc(files []File) []File {
	sorted := make([]File, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name > sorted[j].Name })
	return sorted
}
