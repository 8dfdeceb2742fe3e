package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/kazi/apps/api/echo"
	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/draft"
	"github.com/trezcool/kazi/core/export"
	"github.com/trezcool/kazi/core/feedback"
	"github.com/trezcool/kazi/core/submission"
	archivesvc "github.com/trezcool/kazi/services/archive"
	assessorsvc "github.com/trezcool/kazi/services/assessor"
	backendsvc "github.com/trezcool/kazi/services/backend"
	emailsvc "github.com/trezcool/kazi/services/email"
	logsvc "github.com/trezcool/kazi/services/logger"
	"github.com/trezcool/kazi/storage/database"
	sqlxrepos "github.com/trezcool/kazi/storage/database/sqlx"
	"github.com/trezcool/kazi/storage/kv"
)

// TODO:
// - stream bulk assessment progress to the dashboard (SSE) instead of logging it
func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	zl, err := logsvc.NewZap(conf)
	if err != nil {
		log.Fatalf("setting up zap: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("api"), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	defer logger.Sync()

	dbLogger := logsvc.NewRollbarLogger(zl.Named("db"), conf)

	// set up DB
	ctx := context.Background()
	db, err := database.OpenAndMigrate(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	store, err := kv.Open(conf.Store.Path)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening answer store: %v", err), err)
	}
	defer func() {
		if err = store.Close(); err != nil {
			dbLogger.Error("Failed to close answer store", err)
		}
	}()

	archiver, err := archivesvc.New(ctx, conf.Archive, conf.Archive.B2Bucket != "")
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up archive: %v", err), err)
	}

	// set up services
	backend := backendsvc.NewClient(conf)
	mailSvc := emailsvc.NewService(conf, logger)

	draftSvc := draft.NewService(backend, logger, conf.FetchConcurrency)
	assignmentSvc := assignment.NewService(sqlxrepos.NewAssignmentRepository(db), backend, store, logger)
	feedbackSvc := feedback.NewService(sqlxrepos.NewFeedbackRepository(db), assessorsvc.NewClient(conf), logger)
	exportSvc := export.NewService(draftSvc, assignmentSvc, feedbackSvc, sqlxrepos.NewExportLogRepository(db), mailSvc, logger)
	archiveSvc := archivesvc.NewService(archiver, draftSvc, logger, conf.FetchConcurrency)

	autosaver := submission.NewAutosaver(store, logger, conf.Store.SaveDebounce)
	defer func() {
		if err = autosaver.Close(); err != nil {
			logger.Error("flushing pending answers", err)
		}
	}()
	submissionSvc := submission.NewService(backend, store, autosaver, assignmentSvc, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:        conf,
			Logger:      logger,
			Validate:    validate,
			Translator:  translator,
			Drafts:      draftSvc,
			Assignments: assignmentSvc,
			Feedback:    feedbackSvc,
			Submissions: submissionSvc,
			Exports:     exportSvc,
			Archive:     archiveSvc,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
