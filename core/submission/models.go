package submission

import (
	"strings"
	"time"

	"github.com/trezcool/kazi/core/draft"
)

const answerPrefix = "modular-answer_"

type (
	// StudentInfo is what the backend knows about an authenticated student.
	StudentInfo struct {
		Class string `json:"klasse"`
		Name  string `json:"name"`
	}

	// Payload is what a student submits: every saved assignment at once.
	Payload = draft.Draft

	// AnswerRecord is one locally saved answer.
	AnswerRecord struct {
		AssignmentID string    `json:"assignmentId"`
		SubID        string    `json:"subId"`
		QuestionID   string    `json:"questionId"`
		Answer       string    `json:"answer"`
		SavedAt      time.Time `json:"savedAt"`
	}

	// AnswerInput is an answer typed by a student.
	AnswerInput struct {
		AssignmentID string `json:"assignmentId" validate:"required,assignmentid"`
		SubID        string `json:"subId" validate:"required"`
		QuestionID   string `json:"questionId" validate:"required"`
		Answer       string `json:"answer"`
	}
)

// Identifier is how submissions of a student are named on the backend.
func (s StudentInfo) Identifier() string {
	return strings.TrimSpace(s.Class) + "_" + strings.TrimSpace(s.Name)
}

// AnswerKey is the storage key of the answer to one question.
func AnswerKey(assignmentID, subID, questionID string) string {
	return answerPrefix + assignmentID + "_sub_" + subID + "_q_" + questionID
}

func (r AnswerRecord) Key() string {
	return AnswerKey(r.AssignmentID, r.SubID, r.QuestionID)
}
