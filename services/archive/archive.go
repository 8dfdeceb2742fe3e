package archivesvc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/draft"
	"github.com/trezcool/kazi/core/export"
)

const stampLayout = "20060102-150405"

// Archiver stores backup objects under a slash separated key.
type Archiver interface {
	Put(ctx context.Context, key string, r io.Reader) (location string, err error)
}

// Drafts reads the newest draft of every student of a class.
type Drafts interface {
	NewestDrafts(ctx context.Context, teacherKey, class string) ([]draft.StudentDraft, error)
}

// Result lists where the drafts of a backup went, sorted.
type Result struct {
	Prefix    string   `json:"prefix"`
	Locations []string `json:"locations"`
}

type Service struct {
	archiver    Archiver
	drafts      Drafts
	logger      core.Logger
	concurrency int
	now         func() time.Time
}

func NewService(archiver Archiver, drafts Drafts, logger core.Logger, concurrency int) *Service {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Service{archiver: archiver, drafts: drafts, logger: logger, concurrency: concurrency, now: time.Now}
}

// Backup uploads the newest draft of every student of class under {timestamp}/{class}/{student}/{file}.json.
func (svc *Service) Backup(ctx context.Context, teacherKey, class string) (Result, error) {
	drafts, err := svc.drafts.NewestDrafts(ctx, teacherKey, class)
	if err != nil {
		return Result{}, err
	}

	res := Result{Prefix: svc.now().UTC().Format(stampLayout)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(svc.concurrency)
	for _, sd := range drafts {
		g.Go(func() error {
			data, err := json.MarshalIndent(sd.Draft, "", "  ")
			if err != nil {
				return errors.Wrapf(err, "encoding draft of %s", sd.Student)
			}
			key := path.Join(res.Prefix, export.RawPath(draft.NormalizeClass(class), sd.Student, sd.File.Name))
			loc, err := svc.archiver.Put(gctx, key, bytes.NewReader(data))
			if err != nil {
				return errors.Wrapf(err, "archiving %s", key)
			}
			mu.Lock()
			res.Locations = append(res.Locations, loc)
			mu.Unlock()
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return Result{}, err
	}

	sort.Strings(res.Locations)
	svc.logger.Info("class archived", map[string]interface{}{"class": class, "prefix": res.Prefix, "files": len(res.Locations)})
	return res, nil
}

// FSArchiver writes backups below a local directory.
type FSArchiver struct {
	dir string
}

var _ Archiver = (*FSArchiver)(nil) // interface compliance check

func NewFSArchiver(dir string) *FSArchiver {
	return &FSArchiver{dir: dir}
}

func (a *FSArchiver) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fp := filepath.Join(a.dir, filepath.FromSlash(path.Clean("/" + key)))
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return "", errors.Wrap(err, "creating backup directory")
	}

	f, err := os.Create(fp)
	if err != nil {
		return "", errors.Wrap(err, "creating backup file")
	}
	if _, err = io.Copy(f, r); err != nil {
		_ = f.Close()
		return "", errors.Wrap(err, "writing backup file")
	}
	return fp, errors.Wrap(f.Close(), "closing backup file")
}
