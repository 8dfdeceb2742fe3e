package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/export"
	"github.com/trezcool/kazi/core/feedback"
)

type assignmentRepository struct {
	db *assignmentTable
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) assignment.Repository {
	return &assignmentRepository{db: db.assignment}
}

func (repo *assignmentRepository) GetAssignment(_ context.Context, id string) (assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.table[id]; ok {
		return a, nil
	}
	return assignment.Assignment{}, core.ErrNotFound
}

func (repo *assignmentRepository) SaveAssignment(_ context.Context, a assignment.Assignment) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.table[a.ID] = a
	return nil
}

func (repo *assignmentRepository) QueryAssignments(context.Context) ([]assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	all := make([]assignment.Assignment, 0, len(repo.db.table))
	for _, id := range core.SortedKeys(repo.db.table) {
		all = append(all, repo.db.table[id])
	}
	return all, nil
}

type feedbackRepository struct {
	db *feedbackTable
}

var _ feedback.Repository = (*feedbackRepository)(nil) // interface compliance check

func NewFeedbackRepository(db *DB) feedback.Repository {
	return &feedbackRepository{db: db.feedback}
}

func (repo *feedbackRepository) GetFeedback(_ context.Context, key feedback.Key) (feedback.History, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	h, ok := repo.db.table[key]
	if !ok {
		return feedback.History{}, core.ErrNotFound
	}
	// callers append to the entries
	return feedback.History{Entries: append([]feedback.Entry(nil), h.Entries...)}, nil
}

func (repo *feedbackRepository) SaveFeedback(_ context.Context, key feedback.Key, h feedback.History) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.table[key] = feedback.History{Entries: append([]feedback.Entry(nil), h.Entries...)}
	return nil
}

type exportLogRepository struct {
	db *exportLogTable
}

var _ export.LogRepository = (*exportLogRepository)(nil) // interface compliance check

func NewExportLogRepository(db *DB) export.LogRepository {
	return &exportLogRepository{db: db.exportLog}
}

func (repo *exportLogRepository) CreateExportLog(_ context.Context, l export.Log) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.rows = append(repo.db.rows, l)
	return nil
}

func (repo *exportLogRepository) QueryExportLogs(_ context.Context, limit int) ([]export.Log, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	logs := append([]export.Log(nil), repo.db.rows...)
	sort.SliceStable(logs, func(i, j int) bool { return logs[i].CreatedAt.After(logs[j].CreatedAt) })
	if limit > 0 && limit < len(logs) {
		logs = logs[:limit]
	}
	return logs, nil
}
