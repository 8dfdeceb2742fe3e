package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
)

type assignmentRow struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	Data      string    `db:"data"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r assignmentRow) decode() (assignment.Assignment, error) {
	var a assignment.Assignment
	if err := json.Unmarshal([]byte(r.Data), &a); err != nil {
		return assignment.Assignment{}, errors.Wrapf(err, "decoding assignment %q", r.ID)
	}
	a.ID = r.ID
	return a, nil
}

type assignmentRepository struct {
	db *sqlx.DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *sqlx.DB) assignment.Repository {
	return &assignmentRepository{db: db}
}

func (repo *assignmentRepository) GetAssignment(ctx context.Context, id string) (assignment.Assignment, error) {
	var row assignmentRow
	q := repo.db.Rebind("SELECT id, title, data, updated_at FROM assignments WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return assignment.Assignment{}, core.ErrNotFound
		}
		return assignment.Assignment{}, errors.Wrap(err, "selecting assignment")
	}
	return row.decode()
}

func (repo *assignmentRepository) SaveAssignment(ctx context.Context, a assignment.Assignment) error {
	data, err := json.Marshal(a)
	if err != nil {
		return errors.Wrap(err, "encoding assignment")
	}
	q := repo.db.Rebind(`
		INSERT INTO assignments (id, title, data, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET title = excluded.title, data = excluded.data, updated_at = excluded.updated_at`)
	_, err = repo.db.ExecContext(ctx, q, a.ID, a.Title, string(data), time.Now().UTC())
	return errors.Wrap(err, "saving assignment")
}

func (repo *assignmentRepository) QueryAssignments(ctx context.Context) ([]assignment.Assignment, error) {
	var rows []assignmentRow
	if err := repo.db.SelectContext(ctx, &rows, "SELECT id, title, data, updated_at FROM assignments ORDER BY id"); err != nil {
		return nil, errors.Wrap(err, "selecting assignments")
	}
	all := make([]assignment.Assignment, 0, len(rows))
	for _, row := range rows {
		a, err := row.decode()
		if err != nil {
			return nil, err
		}
		all = append(all, a)
	}
	return all, nil
}
