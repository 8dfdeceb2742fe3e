package feedback

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/draft"
)

// DateLayout formats the date of new entries.
const DateLayout = "02.01.2006 15:04"

var ErrNoStudentData = errors.New("student has no data for this assignment")

type (
	Repository interface {
		GetFeedback(ctx context.Context, key Key) (History, error)
		SaveFeedback(ctx context.Context, key Key, h History) error
	}

	// Request asks for one student's work to be assessed.
	Request struct {
		Key
		StudentData map[string]draft.SubDraft `json:"studentData"`
	}

	// Assessor grades student work.
	Assessor interface {
		Assess(ctx context.Context, req Request) (Entry, error)
	}

	// Progress reports how far a bulk assessment got.
	Progress struct {
		Processed int    `json:"processed"`
		Total     int    `json:"total"`
		Student   string `json:"student"`
	}

	BulkResult struct {
		Processed int               `json:"processed"`
		Total     int               `json:"total"`
		Canceled  bool              `json:"canceled"`
		Failed    map[string]string `json:"failed,omitempty"` // student: error
	}

	Service struct {
		repo     Repository
		assessor Assessor
		logger   core.Logger
		now      func() time.Time
	}
)

func NewService(repo Repository, assessor Assessor, logger core.Logger) *Service {
	return &Service{repo: repo, assessor: assessor, logger: logger, now: time.Now}
}

// Get returns core.ErrNotFound when the student was never assessed.
func (svc *Service) Get(ctx context.Context, key Key) (History, error) {
	return svc.repo.GetFeedback(ctx, key.Normalize())
}

// Assess grades req and appends the result to the student's history.
func (svc *Service) Assess(ctx context.Context, req Request) (History, error) {
	key := req.Key.Normalize()
	if len(req.StudentData) == 0 {
		return History{}, core.NewValidationError(ErrNoStudentData, core.FieldError{Field: "studentData", Error: ErrNoStudentData.Error()})
	}

	req.Key = key
	entry, err := svc.assessor.Assess(ctx, req)
	if err != nil {
		return History{}, errors.Wrap(err, "assessing")
	}
	if entry.DateStr == "" {
		entry.DateStr = svc.now().Format(DateLayout)
	}

	h, err := svc.repo.GetFeedback(ctx, key)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return History{}, err
	}
	h.Entries = append(h.Entries, entry)
	if err = svc.repo.SaveFeedback(ctx, key, h); err != nil {
		return History{}, errors.Wrap(err, "saving feedback")
	}
	return h, nil
}

// BulkAssess assesses reqs one after the other. A failed student is recorded and skipped;
// a canceled ctx stops the run and the partial result is returned with the context error.
func (svc *Service) BulkAssess(ctx context.Context, reqs []Request, onProgress func(Progress)) (BulkResult, error) {
	res := BulkResult{Total: len(reqs), Failed: make(map[string]string)}
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			res.Canceled = true
			return res, err
		}

		if _, err := svc.Assess(ctx, req); err != nil {
			if ctx.Err() != nil {
				res.Canceled = true
				return res, ctx.Err()
			}
			svc.logger.Warn("bulk assessment", err, map[string]interface{}{"student": req.Student, "class": req.Class})
			res.Failed[req.Student] = err.Error()
		}

		res.Processed++
		if onProgress != nil {
			onProgress(Progress{Processed: res.Processed, Total: res.Total, Student: req.Student})
		}
	}
	return res, nil
}
