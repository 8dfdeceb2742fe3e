package archivesvc

import (
	"context"
	"io"

	"github.com/kurin/blazer/b2"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
)

// B2Archiver uploads backups to a Backblaze B2 bucket.
type B2Archiver struct {
	bucket *b2.Bucket
}

var _ Archiver = (*B2Archiver)(nil) // interface compliance check

func NewB2Archiver(ctx context.Context, conf core.ArchiveConfig) (*B2Archiver, error) {
	client, err := b2.NewClient(ctx, conf.B2AccountID, conf.B2Key)
	if err != nil {
		return nil, errors.Wrap(err, "creating b2 client")
	}
	bucket, err := client.Bucket(ctx, conf.B2Bucket)
	if err != nil {
		return nil, errors.Wrapf(err, "opening bucket %s", conf.B2Bucket)
	}
	return &B2Archiver{bucket: bucket}, nil
}

func (a *B2Archiver) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	obj := a.bucket.Object(key)
	w := obj.NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", errors.Wrap(err, "writing object")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "closing object writer")
	}
	return obj.URL(), nil
}

// New picks B2 when useB2 is set, the local directory otherwise.
func New(ctx context.Context, conf core.ArchiveConfig, useB2 bool) (Archiver, error) {
	if !useB2 {
		return NewFSArchiver(conf.Dir), nil
	}
	if conf.B2AccountID == "" || conf.B2Key == "" || conf.B2Bucket == "" {
		return nil, errors.New("b2 archive is not configured")
	}
	return NewB2Archiver(ctx, conf)
}
