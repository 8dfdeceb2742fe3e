package database

import (
	"context"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kazi/core"
)

func TestPostgresURL(t *testing.T) {
	conf := &core.Config{Database: core.DatabaseConfig{
		Engine:     EnginePostgres,
		Host:       "db",
		Port:       5432,
		Name:       "kazi",
		User:       "kazi",
		Password:   "p@ss",
		AdminUser:  "postgres",
		DisableTLS: true,
	}}
	assert.Equal(t, "postgres://kazi:p%40ss@db:5432/kazi?sslmode=disable&timezone=utc", postgresURL("kazi", false, conf))
	assert.Equal(t, "postgres://postgres:@db:5432/postgres?sslmode=disable&timezone=utc", postgresURL("postgres", true, conf))
}

func TestOpen(t *testing.T) {
	_, err := Open(&core.Config{Database: core.DatabaseConfig{Engine: "oracle"}})
	assert.ErrorIs(t, err, ErrUnknownEngine)

	goose.SetLogger(goose.NopLogger())
	conf := &core.Config{Database: core.DatabaseConfig{Engine: EngineSqlite, Path: ":memory:"}}
	db, err := OpenAndMigrate(context.Background(), conf)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var tables []string
	require.NoError(t, db.Select(&tables, "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"))
	assert.Equal(t, []string{"assignments", "export_log", "feedback", "goose_db_version"}, tables)
}
