package draft

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/kazi/core"
)

const (
	// ScanSampleSize is how many students are read to discover the assignments of a class.
	ScanSampleSize = 5

	defaultConcurrency = 8
)

var (
	// errors
	ErrClassNotFound   = errors.New("class not found")
	ErrStudentNotFound = errors.New("student not found")
	ErrNoDrafts        = errors.New("no drafts saved")
)

type (
	// Source is the remote backend holding the drafts and submissions.
	Source interface {
		ListDrafts(ctx context.Context, teacherKey string) (Index, error)
		Draft(ctx context.Context, teacherKey, path string) (Draft, error)
		ListSubmissions(ctx context.Context, teacherKey string) (Submissions, error)
		FilterData(ctx context.Context, teacherKey string) (FilterData, error)
		FilteredAnswers(ctx context.Context, teacherKey string, filter AnswerFilter) ([]FilteredAnswer, error)
		Submission(ctx context.Context, teacherKey, path string) (Draft, error)
	}

	// Row is one student in the live grid.
	Row struct {
		Student    string   `json:"student"`
		File       *File    `json:"file,omitempty"`
		Draft      *Draft   `json:"draft,omitempty"`
		NotStarted bool     `json:"notStarted"`
		Progress   Progress `json:"progress"`
		Card       Card     `json:"card"`
	}

	// StudentDraft is the draft chosen for one student.
	StudentDraft struct {
		Student string `json:"student"`
		File    File   `json:"file"`
		Draft   Draft  `json:"draft"`
	}

	Service struct {
		source      Source
		logger      core.Logger
		concurrency int
		now         func() time.Time
	}
)

func NewService(source Source, logger core.Logger, concurrency int) *Service {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Service{source: source, logger: logger, concurrency: concurrency, now: time.Now}
}

// ListDrafts returns the draft index with class names normalized.
// Classes that only differ in case or padding are merged; files are de-duplicated by path.
func (svc *Service) ListDrafts(ctx context.Context, teacherKey string) (Index, error) {
	raw, err := svc.source.ListDrafts(ctx, teacherKey)
	if err != nil {
		return nil, err
	}

	idx := make(Index, len(raw))
	for _, rawClass := range raw.Classes() {
		class := NormalizeClass(rawClass)
		students, ok := idx[class]
		if !ok {
			students = make(map[string][]File)
			idx[class] = students
		}
		for student, files := range raw[rawClass] {
			students[student] = mergeFiles(students[student], files)
		}
	}
	return idx, nil
}

func mergeFiles(dst, src []File) []File {
	seen := make(map[string]bool, len(dst))
	for _, f := range dst {
		seen[f.Path] = true
	}
	for _, f := range src {
		if !seen[f.Path] {
			seen[f.Path] = true
			dst = append(dst, f)
		}
	}
	return dst
}

func (svc *Service) classFiles(ctx context.Context, teacherKey, class string) (Index, map[string][]File, error) {
	idx, err := svc.ListDrafts(ctx, teacherKey)
	if err != nil {
		return nil, nil, err
	}
	students, ok := idx[NormalizeClass(class)]
	if !ok {
		return nil, nil, ErrClassNotFound
	}
	return idx, students, nil
}

// ClassFiles returns the draft files of every student of class.
func (svc *Service) ClassFiles(ctx context.Context, teacherKey, class string) (map[string][]File, error) {
	_, students, err := svc.classFiles(ctx, teacherKey, class)
	return students, err
}

// Draft fetches the content of a single draft file.
func (svc *Service) Draft(ctx context.Context, teacherKey, path string) (Draft, error) {
	return svc.source.Draft(ctx, teacherKey, path)
}

// Assignments discovers the assignments of a class by reading the newest draft
// of a sample of its students; drafts that fail to load are skipped.
func (svc *Service) Assignments(ctx context.Context, teacherKey, class string) ([]string, error) {
	idx, students, err := svc.classFiles(ctx, teacherKey, class)
	if err != nil {
		return nil, err
	}

	names := idx.Students(NormalizeClass(class))
	if len(names) > ScanSampleSize {
		names = names[:ScanSampleSize]
	}

	var mu sync.Mutex
	keys := make(map[string]bool)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(svc.concurrency)
	for _, name := range names {
		files := SortFilesDesc(students[name])
		if len(files) == 0 {
			continue
		}
		newest := files[0]
		g.Go(func() error {
			d, err := svc.source.Draft(gctx, teacherKey, newest.Path)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				svc.logger.Warn("reading draft", err, map[string]interface{}{"path": newest.Path})
				return nil
			}
			mu.Lock()
			for k := range d.Assignments {
				keys[k] = true
			}
			mu.Unlock()
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	return core.SortedKeys(keys), nil
}

// LiveGrid builds one row per student of class, sorted by student name.
// Each student's files are read newest first until one holds assignmentID.
// masterTotal is the question count of the master assignment (0 if unknown).
func (svc *Service) LiveGrid(ctx context.Context, teacherKey, class, assignmentID string, masterTotal int) ([]Row, error) {
	idx, students, err := svc.classFiles(ctx, teacherKey, class)
	if err != nil {
		return nil, err
	}
	names := idx.Students(NormalizeClass(class))
	rows := make([]Row, len(names))
	now := svc.now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(svc.concurrency)
	for i, name := range names {
		files := SortFilesDesc(students[name])
		g.Go(func() error {
			row, err := svc.studentRow(gctx, teacherKey, name, files, assignmentID, masterTotal, now)
			if err != nil {
				return err
			}
			rows[i] = row
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (svc *Service) studentRow(ctx context.Context, teacherKey, name string, files []File, assignmentID string, masterTotal int, now time.Time) (Row, error) {
	for _, f := range files {
		d, err := svc.source.Draft(ctx, teacherKey, f.Path)
		if err != nil {
			if ctx.Err() != nil {
				return Row{}, ctx.Err()
			}
			continue // try an older version
		}
		subs, ok := d.Assignment(assignmentID)
		if !ok {
			continue
		}
		file, found := f, d
		return Row{
			Student:  name,
			File:     &file,
			Draft:    &found,
			Progress: ComputeProgress(subs, d.CreatedAt, masterTotal, now),
			Card:     BuildCard(subs),
		}, nil
	}

	return Row{
		Student:    name,
		NotStarted: true,
		Progress:   ComputeProgress(nil, time.Time{}, masterTotal, now),
		Card:       BuildCard(nil),
	}, nil
}

// StudentDraft picks the file of student most likely holding assignmentID and reads it.
func (svc *Service) StudentDraft(ctx context.Context, teacherKey, class, student, assignmentID string) (StudentDraft, error) {
	_, students, err := svc.classFiles(ctx, teacherKey, class)
	if err != nil {
		return StudentDraft{}, err
	}
	files, ok := students[student]
	if !ok {
		return StudentDraft{}, ErrStudentNotFound
	}
	f, ok := SelectFile(files, assignmentID)
	if !ok {
		return StudentDraft{}, ErrNoDrafts
	}
	d, err := svc.source.Draft(ctx, teacherKey, f.Path)
	if err != nil {
		return StudentDraft{}, err
	}
	return StudentDraft{Student: student, File: f, Draft: d}, nil
}

// NewestDrafts reads the newest draft of every student of class.
// Students whose draft cannot be read are left out.
func (svc *Service) NewestDrafts(ctx context.Context, teacherKey, class string) ([]StudentDraft, error) {
	idx, students, err := svc.classFiles(ctx, teacherKey, class)
	if err != nil {
		return nil, err
	}
	names := idx.Students(NormalizeClass(class))
	found := make([]*StudentDraft, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(svc.concurrency)
	for i, name := range names {
		files := SortFilesDesc(students[name])
		if len(files) == 0 {
			continue
		}
		newest := files[0]
		g.Go(func() error {
			d, err := svc.source.Draft(gctx, teacherKey, newest.Path)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				svc.logger.Warn("reading draft", err, map[string]interface{}{"path": newest.Path})
				return nil
			}
			found[i] = &StudentDraft{Student: name, File: newest, Draft: d}
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	drafts := make([]StudentDraft, 0, len(found))
	for _, sd := range found {
		if sd != nil {
			drafts = append(drafts, *sd)
		}
	}
	return drafts, nil
}

// CompareVersions scores how much the two newest drafts of a student differ.
// A single version has nothing to compare against and yields a nil score.
func (svc *Service) CompareVersions(ctx context.Context, teacherKey, class, student string) (*float64, error) {
	_, students, err := svc.classFiles(ctx, teacherKey, class)
	if err != nil {
		return nil, err
	}
	files, ok := students[student]
	if !ok {
		return nil, ErrStudentNotFound
	}
	files = SortFilesDesc(files)
	if len(files) < 2 {
		return nil, nil
	}

	var curr, prev Draft
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		curr, err = svc.source.Draft(gctx, teacherKey, files[0].Path)
		return err
	})
	g.Go(func() (err error) {
		prev, err = svc.source.Draft(gctx, teacherKey, files[1].Path)
		return err
	})
	if err = g.Wait(); err != nil {
		return nil, err
	}
	score := Similarity(prev, curr)
	return &score, nil
}

// Submissions lists the submitted versions; versions that barely resemble their predecessor are flagged.
func (svc *Service) Submissions(ctx context.Context, teacherKey string) (Submissions, error) {
	subs, err := svc.source.ListSubmissions(ctx, teacherKey)
	if err != nil {
		return nil, err
	}
	for _, students := range subs {
		for name, files := range students {
			for i := range files {
				if files[i].ChangeData != nil {
					files[i].Flagged = IsFlagged(files[i].ChangeData.SimilarityScore)
				}
			}
			sort.SliceStable(files, func(i, j int) bool { return files[i].Name > files[j].Name })
			students[name] = files
		}
	}
	return subs, nil
}

func (svc *Service) FilterData(ctx context.Context, teacherKey string) (FilterData, error) {
	data, err := svc.source.FilterData(ctx, teacherKey)
	if err != nil {
		return nil, err
	}
	for name := range data {
		sort.Strings(data[name])
	}
	return data, nil
}

func (svc *Service) FilteredAnswers(ctx context.Context, teacherKey string, filter AnswerFilter) ([]FilteredAnswer, error) {
	answers, err := svc.source.FilteredAnswers(ctx, teacherKey, filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(answers, func(i, j int) bool { return answers[i].StudentName < answers[j].StudentName })
	return answers, nil
}

func (svc *Service) Submission(ctx context.Context, teacherKey, path string) (Draft, error) {
	return svc.source.Submission(ctx, teacherKey, path)
}
