package assignment

import "github.com/trezcool/kazi/core"

const SubTypeQuill = "quill"

type (
	// Assignment is the master definition of a task, as served by the backend.
	Assignment struct {
		ID             string                   `json:"assignmentId"`
		Title          string                   `json:"assignmentTitle"`
		SubAssignments map[string]SubAssignment `json:"subAssignments"`
	}

	SubAssignment struct {
		Title     string     `json:"title,omitempty"`
		Type      string     `json:"type"`
		Questions []Question `json:"questions"`
		Solution  *Solution  `json:"solution,omitempty"`
	}

	Question struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}

	Solution struct {
		Page      string           `json:"page"`
		Solutions []SolutionAnswer `json:"solutions"`
	}

	SolutionAnswer struct {
		ID     string `json:"id"`
		Answer string `json:"answer"`
	}

	// QuestionRef is a question flattened out of its sub-assignment.
	QuestionRef struct {
		SubID    string
		SubTitle string
		Question Question
	}
)

// SubIDs returns the sub-assignment ids in ascending order.
func (a Assignment) SubIDs() []string {
	return core.SortedKeys(a.SubAssignments)
}

// TotalQuestions is the number of questions across all sub-assignments.
func (a Assignment) TotalQuestions() int {
	var total int
	for _, sub := range a.SubAssignments {
		total += len(sub.Questions)
	}
	return total
}

// QuestionCount is the number of questions of one sub-assignment, 0 when there is no such sub.
func (a Assignment) QuestionCount(subID string) int {
	sub, _, _ := Lookup(a.SubAssignments, subID)
	return len(sub.Questions)
}

// Questions flattens the questions, ordered by sub-assignment id.
func (a Assignment) Questions() []QuestionRef {
	refs := make([]QuestionRef, 0, a.TotalQuestions())
	for _, id := range a.SubIDs() {
		sub := a.SubAssignments[id]
		for _, q := range sub.Questions {
			refs = append(refs, QuestionRef{SubID: id, SubTitle: sub.Title, Question: q})
		}
	}
	return refs
}

// SlotID identifies a question across sub-assignments; feedback results refer to it.
func SlotID(subID, questionID string) string {
	return subID + "_" + questionID
}

// HasSolutions reports whether any sub-assignment carries a non-empty solution.
func (a Assignment) HasSolutions() bool {
	for _, sub := range a.SubAssignments {
		if sub.Solution != nil && len(sub.Solution.Solutions) > 0 {
			return true
		}
	}
	return false
}

// WithoutSolutions returns a copy of a with every solution stripped.
func (a Assignment) WithoutSolutions() Assignment {
	subs := make(map[string]SubAssignment, len(a.SubAssignments))
	for id, sub := range a.SubAssignments {
		sub.Solution = nil
		subs[id] = sub
	}
	a.SubAssignments = subs
	return a
}
