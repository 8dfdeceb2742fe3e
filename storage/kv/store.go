// Package kv keeps per-student data (saved answers and unlocked solution keys) in a bbolt file.
package kv

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/submission"
)

const (
	answersBucket      = "answers"
	solutionKeysBucket = "solution_keys"
	sep                = "\x00"
)

var (
	_ submission.Store    = (*Store)(nil) // interface compliance check
	_ assignment.KeyStore = (*Store)(nil) // interface compliance check

	errNotConfigured = errors.New("store is not configured")
	errMissingOwner  = errors.New("owner is required")
)

type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the store file at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "opening store")
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{answersBucket, solutionKeysBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return errors.Wrapf(err, "creating %s bucket", name)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ownerKey(owner, key string) []byte {
	return []byte(owner + sep + key)
}

func (s *Store) check(ctx context.Context, owner string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return errNotConfigured
	}
	if strings.TrimSpace(owner) == "" {
		return errMissingOwner
	}
	return nil
}

func (s *Store) PutAnswer(ctx context.Context, owner string, rec submission.AnswerRecord) error {
	if err := s.check(ctx, owner); err != nil {
		return err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshaling answer")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(answersBucket)).Put(ownerKey(owner, rec.Key()), payload)
	})
}

func (s *Store) DeleteAnswer(ctx context.Context, owner, key string) error {
	if err := s.check(ctx, owner); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(answersBucket)).Delete(ownerKey(owner, key))
	})
}

// Answers returns every answer saved by owner, ordered by key.
func (s *Store) Answers(ctx context.Context, owner string) ([]submission.AnswerRecord, error) {
	if err := s.check(ctx, owner); err != nil {
		return nil, err
	}

	var recs []submission.AnswerRecord
	prefix := []byte(owner + sep)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(answersBucket)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var rec submission.AnswerRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return errors.Wrapf(err, "unmarshaling answer %q", k)
			}
			recs = append(recs, rec)
		}
		return nil
	})
	return recs, err
}

// ClearAnswers removes every answer of owner.
func (s *Store) ClearAnswers(ctx context.Context, owner string) error {
	if err := s.check(ctx, owner); err != nil {
		return err
	}
	prefix := []byte(owner + sep)
	return s.db.Update(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(answersBucket)).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Seek(prefix) {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) SolutionKeyHash(ctx context.Context, owner, assignmentID string) ([]byte, error) {
	if err := s.check(ctx, owner); err != nil {
		return nil, err
	}
	var hash []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(solutionKeysBucket)).Get(ownerKey(owner, assignmentID))
		if v == nil {
			return core.ErrNotFound
		}
		hash = append([]byte(nil), v...) // v is only valid inside the transaction
		return nil
	})
	return hash, err
}

func (s *Store) PutSolutionKeyHash(ctx context.Context, owner, assignmentID string, hash []byte) error {
	if err := s.check(ctx, owner); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(solutionKeysBucket)).Put(ownerKey(owner, assignmentID), hash)
	})
}

func (s *Store) DeleteSolutionKeyHash(ctx context.Context, owner, assignmentID string) error {
	if err := s.check(ctx, owner); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(solutionKeysBucket)).Delete(ownerKey(owner, assignmentID))
	})
}
