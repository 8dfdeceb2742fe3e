package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/feedback"
)

type feedbackRepository struct {
	db *sqlx.DB
}

var _ feedback.Repository = (*feedbackRepository)(nil) // interface compliance check

func NewFeedbackRepository(db *sqlx.DB) feedback.Repository {
	return &feedbackRepository{db: db}
}

func (repo *feedbackRepository) GetFeedback(ctx context.Context, key feedback.Key) (feedback.History, error) {
	var data string
	q := repo.db.Rebind("SELECT history FROM feedback WHERE class_name = ? AND assignment = ? AND student = ?")
	if err := repo.db.GetContext(ctx, &data, q, key.Class, key.Assignment, key.Student); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return feedback.History{}, core.ErrNotFound
		}
		return feedback.History{}, errors.Wrap(err, "selecting feedback")
	}

	var h feedback.History
	if err := json.Unmarshal([]byte(data), &h); err != nil {
		return feedback.History{}, errors.Wrap(err, "decoding feedback")
	}
	return h, nil
}

func (repo *feedbackRepository) SaveFeedback(ctx context.Context, key feedback.Key, h feedback.History) error {
	data, err := json.Marshal(h)
	if err != nil {
		return errors.Wrap(err, "encoding feedback")
	}
	q := repo.db.Rebind(`
		INSERT INTO feedback (class_name, assignment, student, history, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (class_name, assignment, student) DO UPDATE SET history = excluded.history, updated_at = excluded.updated_at`)
	_, err = repo.db.ExecContext(ctx, q, key.Class, key.Assignment, key.Student, string(data), time.Now().UTC())
	return errors.Wrap(err, "saving feedback")
}
