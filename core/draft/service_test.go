package draft

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kazi/core"
)

type (
	fakeSource struct {
		mu     sync.Mutex
		index  Index
		drafts map[string]Draft
		broken map[string]bool
		reads  []string
	}

	nopLogger struct{}
)

var errBroken = errors.New("broken draft")

func (s *fakeSource) ListDrafts(_ context.Context, key string) (Index, error) {
	if key != "teacher" {
		return nil, &core.RemoteError{Action: "listDrafts", Message: "Invalid teacher key"}
	}
	return s.index, nil
}

func (s *fakeSource) Draft(_ context.Context, _, path string) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads = append(s.reads, path)
	if s.broken[path] {
		return Draft{}, errBroken
	}
	d, ok := s.drafts[path]
	if !ok {
		return Draft{}, core.ErrNotFound
	}
	return d, nil
}

func (s *fakeSource) ListSubmissions(context.Context, string) (Submissions, error) {
	low, high := 0.1, 0.9
	return Submissions{"8A": {"Ada": {
		{Name: "a.json", Path: "a", ChangeData: &ChangeData{SimilarityScore: &high}},
		{Name: "c.json", Path: "c", ChangeData: &ChangeData{SimilarityScore: &low}},
		{Name: "b.json", Path: "b"},
	}}}, nil
}

func (s *fakeSource) FilterData(context.Context, string) (FilterData, error) {
	return FilterData{"Brüche": {"2", "1"}}, nil
}

func (s *fakeSource) FilteredAnswers(context.Context, string, AnswerFilter) ([]FilteredAnswer, error) {
	return []FilteredAnswer{{StudentName: "Bob"}, {StudentName: "Ada"}}, nil
}

func (s *fakeSource) Submission(ctx context.Context, key, path string) (Draft, error) {
	return s.Draft(ctx, key, path)
}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func answered(assignmentID string, createdAt time.Time, answers ...string) Draft {
	ans := make([]Answer, 0, len(answers))
	qs := questions()
	for i, a := range answers {
		id := string(rune('a' + i))
		qs = append(qs, questions(id)...)
		ans = append(ans, Answer{QuestionID: id, Answer: a})
	}
	return Draft{
		Assignments: map[string]map[string]SubDraft{assignmentID: {"1": {Title: "Teil 1", Questions: qs, Answers: ans}}},
		CreatedAt:   createdAt,
	}
}

func setup(t *testing.T) (*Service, *fakeSource) {
	t.Helper()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{
		index: Index{
			"8a ": {
				"Ada":   {{Name: "2024-01-01.json", Path: "ada/1"}, {Name: "2024-02-01.json", Path: "ada/2"}},
				"Grace": {{Name: "2024-02-03.json", Path: "grace/1"}},
			},
			"8A": {
				"Ada":   {{Name: "2024-02-01.json", Path: "ada/2"}},
				"Linus": {{Name: "2024-02-05.json", Path: "linus/1"}},
			},
			"9B": {"Bob": {{Name: "x.json", Path: "bob/1"}}},
		},
		drafts: map[string]Draft{
			"ada/1":   answered("Brüche", now.Add(-48*time.Hour), "<p>eins</p>", "<p>zwei</p>"),
			"ada/2":   answered("Algebra", now.Add(-time.Hour), "<p>x</p>"),
			"grace/1": answered("Br%C3%BCche", now.Add(-2*time.Minute), "<p>a b c</p>", "", "<p>d</p>", "<p>e</p>"),
			"bob/1":   answered("Geometrie", now, "<p>g</p>"),
		},
		broken: map[string]bool{"linus/1": true},
	}
	svc := NewService(src, nopLogger{}, 2)
	svc.now = func() time.Time { return now }
	return svc, src
}

func TestService_ListDrafts(t *testing.T) {
	svc, _ := setup(t)

	idx, err := svc.ListDrafts(context.Background(), "teacher")
	require.NoError(t, err)
	assert.Equal(t, []string{"8A", "9B"}, idx.Classes())
	assert.Equal(t, []string{"Ada", "Grace", "Linus"}, idx.Students("8A"))
	assert.Len(t, idx["8A"]["Ada"], 2, "files are merged without duplicates")

	_, err = svc.ListDrafts(context.Background(), "wrong")
	assert.ErrorIs(t, err, core.ErrInvalidTeacherKey)
}

func TestService_Assignments(t *testing.T) {
	svc, _ := setup(t)

	got, err := svc.Assignments(context.Background(), "teacher", "8a")
	require.NoError(t, err)
	assert.Equal(t, []string{"Algebra", "Br%C3%BCche"}, got, "newest draft per student; broken drafts are skipped")

	_, err = svc.Assignments(context.Background(), "teacher", "10C")
	assert.ErrorIs(t, err, ErrClassNotFound)
}

func TestService_LiveGrid(t *testing.T) {
	svc, _ := setup(t)

	rows, err := svc.LiveGrid(context.Background(), "teacher", "8A", "Brüche", 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	ada, grace, linus := rows[0], rows[1], rows[2]

	assert.Equal(t, "Ada", ada.Student)
	require.NotNil(t, ada.File)
	assert.Equal(t, "ada/1", ada.File.Path, "older version holding the assignment is used")
	assert.Equal(t, Progress{Answered: 2, Total: 2, Percent: 100, Words: 2, Color: ColorGreen, LastUpdate: ada.Progress.LastUpdate}, ada.Progress)

	assert.Equal(t, "Grace", grace.Student)
	assert.Equal(t, 3, grace.Progress.Answered)
	assert.Equal(t, 75, grace.Progress.Percent)
	assert.True(t, grace.Progress.Recent)
	assert.Len(t, grace.Card.Sections, 1)

	assert.Equal(t, "Linus", linus.Student)
	assert.True(t, linus.NotStarted)
	assert.Equal(t, TextNotStarted, linus.Card.Empty)

	rows, err = svc.LiveGrid(context.Background(), "teacher", "8A", "Brüche", 8)
	require.NoError(t, err)
	assert.Equal(t, 8, rows[0].Progress.Total)
	assert.Equal(t, 25, rows[0].Progress.Percent)
}

func TestService_LiveGrid_canceled(t *testing.T) {
	svc, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := svc.source.(*fakeSource)
	svc.source = &cancelingSource{fakeSource: src}
	_, err := svc.LiveGrid(ctx, "teacher", "8A", "Brüche", 0)
	assert.ErrorIs(t, err, context.Canceled)
}

type cancelingSource struct {
	*fakeSource
}

func (s *cancelingSource) Draft(ctx context.Context, _, _ string) (Draft, error) {
	return Draft{}, ctx.Err()
}

func TestService_StudentDraft(t *testing.T) {
	svc, _ := setup(t)

	sd, err := svc.StudentDraft(context.Background(), "teacher", "8A", "Ada", "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, "ada/1", sd.File.Path)

	_, err = svc.StudentDraft(context.Background(), "teacher", "8A", "Nobody", "x")
	assert.ErrorIs(t, err, ErrStudentNotFound)
}

func TestService_NewestDrafts(t *testing.T) {
	svc, _ := setup(t)

	drafts, err := svc.NewestDrafts(context.Background(), "teacher", "8A")
	require.NoError(t, err)
	students := make([]string, 0, len(drafts))
	for _, d := range drafts {
		students = append(students, d.Student+"="+d.File.Path)
	}
	assert.Equal(t, []string{"Ada=ada/2", "Grace=grace/1"}, students)
}

func TestService_CompareVersions(t *testing.T) {
	svc, _ := setup(t)

	score, err := svc.CompareVersions(context.Background(), "teacher", "8A", "Ada")
	require.NoError(t, err)
	require.NotNil(t, score)
	assert.Less(t, *score, FlagThreshold)

	score, err = svc.CompareVersions(context.Background(), "teacher", "8A", "Grace")
	require.NoError(t, err)
	assert.Nil(t, score)
}

func TestService_Submissions(t *testing.T) {
	svc, _ := setup(t)

	subs, err := svc.Submissions(context.Background(), "teacher")
	require.NoError(t, err)
	files := subs["8A"]["Ada"]
	require.Len(t, files, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{files[0].Path, files[1].Path, files[2].Path})
	assert.True(t, files[0].Flagged)
	assert.False(t, files[1].Flagged)
	assert.False(t, files[2].Flagged)

	fd, err := svc.FilterData(context.Background(), "teacher")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, fd["Brüche"])

	answers, err := svc.FilteredAnswers(context.Background(), "teacher", AnswerFilter{ClassName: "8A", AssignmentName: "Brüche"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", answers[0].StudentName)
}
