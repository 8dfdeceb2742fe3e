package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/draft"
	"github.com/trezcool/kazi/core/export"
	"github.com/trezcool/kazi/core/feedback"
	archivesvc "github.com/trezcool/kazi/services/archive"
	assessorsvc "github.com/trezcool/kazi/services/assessor"
	backendsvc "github.com/trezcool/kazi/services/backend"
	emailsvc "github.com/trezcool/kazi/services/email"
	logsvc "github.com/trezcool/kazi/services/logger"
	"github.com/trezcool/kazi/storage/database"
	sqlxrepos "github.com/trezcool/kazi/storage/database/sqlx"
)

var logger *logsvc.RollbarLogger

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZap(conf)
	if err != nil {
		log.Fatalf("setting up zap: %v", err)
	}
	logger = logsvc.NewRollbarLogger(zl.Named("admin"), conf)
	logger.Enable(false)
	defer logger.Sync()

	// set up DB
	ctx := context.Background()
	errAndDie(database.CreateIfNotExist(ctx, conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()
	errAndDie(db.PingContext(ctx))

	// set up services; solution keys are only needed by the API
	backend := backendsvc.NewClient(conf)
	drafts := draft.NewService(backend, logger, conf.FetchConcurrency)
	assignments := assignment.NewService(sqlxrepos.NewAssignmentRepository(db), backend, nil, logger)
	fb := feedback.NewService(sqlxrepos.NewFeedbackRepository(db), assessorsvc.NewClient(conf), logger)
	exports := export.NewService(drafts, assignments, fb, sqlxrepos.NewExportLogRepository(db), emailsvc.NewService(conf, logger), logger)

	// start CLI
	cli := commandLine{
		db:      db.DB,
		engine:  conf.Database.Engine,
		exports: exports,
		masters: assignments,
		backups: func(ctx context.Context, b2 bool) (backuper, error) {
			archiver, err := archivesvc.New(ctx, conf.Archive, b2)
			if err != nil {
				return nil, err
			}
			return archivesvc.NewService(archiver, drafts, logger, conf.FetchConcurrency), nil
		},
		out: os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("admin: %v", err), err)
		}
		logger.Sync()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
