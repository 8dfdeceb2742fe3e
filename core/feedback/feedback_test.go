package feedback

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/draft"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type (
	memRepo map[Key]History

	fakeAssessor struct {
		calls  int
		fail   map[string]bool
		cancel context.CancelFunc // called on the first request when set
	}

	nopLogger struct{}
)

func (r memRepo) GetFeedback(_ context.Context, key Key) (History, error) {
	h, ok := r[key]
	if !ok {
		return History{}, core.ErrNotFound
	}
	return h, nil
}

func (r memRepo) SaveFeedback(_ context.Context, key Key, h History) error {
	r[key] = h
	return nil
}

func (a *fakeAssessor) Assess(_ context.Context, req Request) (Entry, error) {
	a.calls++
	if a.cancel != nil {
		a.cancel()
	}
	if a.fail[req.Student] {
		return Entry{}, errors.New("assessor unavailable")
	}
	return Entry{Results: []Result{
		{QuestionID: "1_a", Score: 3},
		{QuestionID: "1_b", Score: float64(a.calls % 3)},
	}}, nil
}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

var studentData = map[string]draft.SubDraft{"1": {Answers: []draft.Answer{{QuestionID: "a", Answer: "<p>1/2</p>"}}}}

func TestHistory_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		versions int
		label    string
	}{
		{"history", `{"history":[{"date_str":"01.02.2026 10:00","results":[]},{"date_str":"","results":[{"question_id":"1_a","score":2}]}]}`, 2, DefaultDateLabel},
		{"bare entry", `{"date_str":"01.02.2026 10:00","results":[{"question_id":"1_a","score":3}]}`, 1, "01.02.2026 10:00"},
		{"empty", `{}`, 0, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var h History
			require.NoError(t, json.Unmarshal([]byte(tc.body), &h))
			assert.Equal(t, tc.versions, h.Versions())
			latest, ok := h.Latest()
			assert.Equal(t, tc.versions > 0, ok)
			if ok {
				assert.Equal(t, tc.label, latest.Label())
			}
		})
	}
}

func TestHistory_Delta(t *testing.T) {
	h := History{Entries: []Entry{
		{Results: []Result{{QuestionID: "a", Score: 1}, {QuestionID: "b", Score: 0}}},
	}}
	_, ok := h.Delta()
	assert.False(t, ok)

	h.Entries = append(h.Entries, Entry{Results: []Result{{QuestionID: "a", Score: 3}, {QuestionID: "b", Score: 2}}})
	d, ok := h.Delta()
	require.True(t, ok)
	assert.Equal(t, Delta{Score: 4, Answered: 1}, d)
}

func TestScoreColor(t *testing.T) {
	assert.Equal(t, ColorFull, ScoreColor(3))
	assert.Equal(t, ColorPartial, ScoreColor(2))
	assert.Equal(t, ColorLow, ScoreColor(1))
	assert.Equal(t, ColorLow, ScoreColor(0))
}

func TestService_Assess(t *testing.T) {
	repo := memRepo{}
	svc := NewService(repo, &fakeAssessor{}, nopLogger{})
	svc.now = func() time.Time { return time.Date(2026, 3, 4, 9, 5, 0, 0, time.UTC) }
	ctx := context.Background()

	_, err := svc.Get(ctx, Key{Class: "8a", Assignment: "A", Student: "Ada"})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.Assess(ctx, Request{Key: Key{Class: "8a", Assignment: "A", Student: "Ada"}})
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)

	for i := 0; i < 2; i++ {
		_, err = svc.Assess(ctx, Request{Key: Key{Class: " 8a", Assignment: "A", Student: "Ada "}, StudentData: studentData})
		require.NoError(t, err)
	}

	h, err := svc.Get(ctx, Key{Class: "8A", Assignment: "A", Student: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, 2, h.Versions())
	latest, _ := h.Latest()
	assert.Equal(t, "04.03.2026 09:05", latest.DateStr)
}

func TestService_BulkAssess(t *testing.T) {
	svc := NewService(memRepo{}, &fakeAssessor{fail: map[string]bool{"Bob": true}}, nopLogger{})
	reqs := []Request{
		{Key: Key{Class: "8A", Assignment: "A", Student: "Ada"}, StudentData: studentData},
		{Key: Key{Class: "8A", Assignment: "A", Student: "Bob"}, StudentData: studentData},
		{Key: Key{Class: "8A", Assignment: "A", Student: "Cy"}, StudentData: studentData},
	}

	var seen []Progress
	res, err := svc.BulkAssess(context.Background(), reqs, func(p Progress) { seen = append(seen, p) })
	require.NoError(t, err)
	assert.Equal(t, 3, res.Processed)
	assert.False(t, res.Canceled)
	assert.Contains(t, res.Failed, "Bob")
	require.Len(t, seen, 3)
	assert.Equal(t, Progress{Processed: 3, Total: 3, Student: "Cy"}, seen[2])
}

func TestService_BulkAssess_canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assessor := &fakeAssessor{cancel: cancel}
	svc := NewService(memRepo{}, assessor, nopLogger{})
	reqs := []Request{
		{Key: Key{Class: "8A", Assignment: "A", Student: "Ada"}, StudentData: studentData},
		{Key: Key{Class: "8A", Assignment: "A", Student: "Bob"}, StudentData: studentData},
	}

	res, err := svc.BulkAssess(ctx, reqs, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, res.Canceled)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, assessor.calls)
}
