package submission

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/draft"
)

// FallbackSubTitle titles the placeholder printed when an assignment has no sub-assignments at all.
const FallbackSubTitle = "Keine Teilaufgaben gefunden"

var (
	// errors
	ErrMissingStudentKey = errors.New("student key is required")
	ErrIncompleteInfo    = errors.New("class and name are required")
	ErrNothingToSubmit   = errors.New("no saved answers to submit")
)

type (
	// Gateway is the remote backend receiving student logins and submissions.
	Gateway interface {
		Authenticate(ctx context.Context, studentKey, mode string) (StudentInfo, error)
		Submit(ctx context.Context, identifier string, payload Payload) error
	}

	// AssignmentLookup resolves assignment definitions.
	AssignmentLookup interface {
		Get(ctx context.Context, id string) (assignment.Assignment, error)
	}

	PrintQuestion struct {
		Number int    `json:"number"`
		ID     string `json:"id"`
		Text   string `json:"text"`
		Answer string `json:"answer"`
	}

	PrintSub struct {
		SubID     string          `json:"subId"`
		Title     string          `json:"title"`
		Questions []PrintQuestion `json:"questions"`
	}

	// PrintDoc is everything a student sees when printing an assignment.
	PrintDoc struct {
		Student string     `json:"student"`
		Title   string     `json:"title"`
		Subs    []PrintSub `json:"subs"`
	}

	Service struct {
		gateway     Gateway
		store       Store
		autosaver   *Autosaver
		assignments AssignmentLookup
		logger      core.Logger
		now         func() time.Time
	}
)

func NewService(gateway Gateway, store Store, autosaver *Autosaver, assignments AssignmentLookup, logger core.Logger) *Service {
	return &Service{
		gateway:     gateway,
		store:       store,
		autosaver:   autosaver,
		assignments: assignments,
		logger:      logger,
		now:         time.Now,
	}
}

// Authenticate checks a student key against the backend.
func (svc *Service) Authenticate(ctx context.Context, studentKey, mode string) (StudentInfo, error) {
	studentKey = core.CleanString(studentKey)
	if studentKey == "" {
		return StudentInfo{}, core.NewValidationError(ErrMissingStudentKey, core.FieldError{Field: "studentKey", Error: ErrMissingStudentKey.Error()})
	}
	info, err := svc.gateway.Authenticate(ctx, studentKey, mode)
	if err != nil {
		return StudentInfo{}, err
	}
	info.Class = core.CleanString(info.Class)
	info.Name = core.CleanString(info.Name)
	if info.Class == "" || info.Name == "" {
		return StudentInfo{}, core.NewValidationError(ErrIncompleteInfo)
	}
	return info, nil
}

// SaveAnswer queues an answer for autosave.
func (svc *Service) SaveAnswer(owner string, in AnswerInput) error {
	return svc.autosaver.Save(owner, AnswerRecord{
		AssignmentID: in.AssignmentID,
		SubID:        in.SubID,
		QuestionID:   in.QuestionID,
		Answer:       in.Answer,
		SavedAt:      svc.now().UTC(),
	})
}

// Answers returns the saved answers of owner for one assignment, sorted by key.
func (svc *Service) Answers(ctx context.Context, owner, assignmentID string) ([]AnswerRecord, error) {
	all, err := svc.allAnswers(ctx, owner)
	if err != nil {
		return nil, err
	}
	want := assignment.NormalizeKey(assignmentID)
	answers := make([]AnswerRecord, 0, len(all))
	for _, rec := range all {
		if rec.AssignmentID == assignmentID || assignment.NormalizeKey(rec.AssignmentID) == want {
			answers = append(answers, rec)
		}
	}
	return answers, nil
}

func (svc *Service) allAnswers(ctx context.Context, owner string) ([]AnswerRecord, error) {
	if err := svc.autosaver.Flush(ctx); err != nil {
		return nil, err
	}
	all, err := svc.store.Answers(ctx, owner)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Key() < all[j].Key() })
	return all, nil
}

// Gather builds the submission payload from every answer owner saved.
// Sub-assignment titles, types and questions come from the assignment definitions when available.
func (svc *Service) Gather(ctx context.Context, owner string) (Payload, error) {
	all, err := svc.allAnswers(ctx, owner)
	if err != nil {
		return Payload{}, err
	}
	if len(all) == 0 {
		return Payload{}, ErrNothingToSubmit
	}

	payload := Payload{
		Assignments: make(map[string]map[string]draft.SubDraft),
		CreatedAt:   svc.now().UTC(),
	}
	defs := make(map[string]*assignment.Assignment)
	for _, rec := range all {
		def, ok := defs[rec.AssignmentID]
		if !ok {
			if a, err := svc.assignments.Get(ctx, rec.AssignmentID); err == nil {
				def = &a
			} else {
				svc.logger.Warn("resolving assignment for submission", err, map[string]interface{}{"assignment": rec.AssignmentID})
			}
			defs[rec.AssignmentID] = def
		}

		subs, ok := payload.Assignments[rec.AssignmentID]
		if !ok {
			subs = make(map[string]draft.SubDraft)
			payload.Assignments[rec.AssignmentID] = subs
		}
		sub, ok := subs[rec.SubID]
		if !ok && def != nil {
			if s, found := def.SubAssignments[rec.SubID]; found {
				sub = draft.SubDraft{Title: s.Title, Type: s.Type, Questions: s.Questions}
			}
		}
		sub.Answers = append(sub.Answers, draft.Answer{QuestionID: rec.QuestionID, Answer: rec.Answer})
		subs[rec.SubID] = sub
	}
	return payload, nil
}

// Submit sends every saved answer of a student to the backend.
func (svc *Service) Submit(ctx context.Context, info StudentInfo) (Payload, error) {
	identifier := info.Identifier()
	payload, err := svc.Gather(ctx, identifier)
	if err != nil {
		return Payload{}, err
	}
	if err = svc.gateway.Submit(ctx, identifier, payload); err != nil {
		return Payload{}, err
	}
	svc.logger.Info("assignments submitted", core.Identity{ID: identifier, Name: info.Name, Class: info.Class, Role: "student"})
	return payload, nil
}

// PrintData merges the saved answers of owner with the assignment definition.
// An unknown assignment still prints its saved answers.
func (svc *Service) PrintData(ctx context.Context, owner, assignmentID string) (PrintDoc, error) {
	answers, err := svc.Answers(ctx, owner, assignmentID)
	if err != nil {
		return PrintDoc{}, err
	}

	doc := PrintDoc{Student: owner, Title: "Aufgabe: " + assignmentID}
	def, err := svc.assignments.Get(ctx, assignmentID)
	if err != nil {
		svc.logger.Warn("resolving assignment for printing", err, map[string]interface{}{"assignment": assignmentID})
	} else if def.Title != "" {
		doc.Title = def.Title
	}

	saved := make(map[string]map[string]string) // {subID: {questionID: answer}}
	for _, rec := range answers {
		if saved[rec.SubID] == nil {
			saved[rec.SubID] = make(map[string]string)
		}
		saved[rec.SubID][rec.QuestionID] = rec.Answer
	}

	subIDs := make(map[string]bool)
	for id := range def.SubAssignments {
		subIDs[id] = true
	}
	for id := range saved {
		subIDs[id] = true
	}

	for _, subID := range core.SortedKeys(subIDs) {
		serverSub := def.SubAssignments[subID]
		sub := PrintSub{SubID: subID, Title: serverSub.Title, Questions: []PrintQuestion{}}
		if sub.Title == "" {
			sub.Title = subID
		}

		seen := make(map[string]bool)
		for i, q := range serverSub.Questions {
			seen[q.ID] = true
			sub.Questions = append(sub.Questions, PrintQuestion{Number: i + 1, ID: q.ID, Text: q.Text, Answer: saved[subID][q.ID]})
		}
		for _, qid := range core.SortedKeys(saved[subID]) { // answers to questions the definition does not know
			if !seen[qid] {
				sub.Questions = append(sub.Questions, PrintQuestion{Number: len(sub.Questions) + 1, ID: qid, Answer: saved[subID][qid]})
			}
		}
		doc.Subs = append(doc.Subs, sub)
	}

	if len(doc.Subs) == 0 {
		doc.Subs = []PrintSub{{SubID: "1", Title: FallbackSubTitle, Questions: []PrintQuestion{}}}
	}
	return doc, nil
}
