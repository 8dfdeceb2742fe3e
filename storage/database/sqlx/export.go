package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core/export"
)

const defaultLogLimit = 50

type exportLogRepository struct {
	db *sqlx.DB
}

var _ export.LogRepository = (*exportLogRepository)(nil) // interface compliance check

func NewExportLogRepository(db *sqlx.DB) export.LogRepository {
	return &exportLogRepository{db: db}
}

func (repo *exportLogRepository) CreateExportLog(ctx context.Context, l export.Log) error {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO export_log (id, kind, class, assignment, file_name, recipient, created_at)
		VALUES (:id, :kind, :class, :assignment, :file_name, :recipient, :created_at)`, l)
	return errors.Wrap(err, "inserting export log")
}

// QueryExportLogs returns the newest logs first.
func (repo *exportLogRepository) QueryExportLogs(ctx context.Context, limit int) ([]export.Log, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	var logs []export.Log
	q := repo.db.Rebind("SELECT id, kind, class, assignment, file_name, recipient, created_at FROM export_log ORDER BY created_at DESC, id LIMIT ?")
	if err := repo.db.SelectContext(ctx, &logs, q, limit); err != nil {
		return nil, errors.Wrap(err, "selecting export logs")
	}
	return logs, nil
}
