package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/export"
	archivesvc "github.com/trezcool/kazi/services/archive"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type (
	exporter interface {
		Export(ctx context.Context, kind, teacherKey, class, assignmentID string) (export.File, error)
	}

	masterSaver interface {
		Save(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error)
	}

	backuper interface {
		Backup(ctx context.Context, teacherKey, class string) (archivesvc.Result, error)
	}
)

type commandLine struct {
	db      *sql.DB
	engine  string
	exports exporter
	masters masterSaver
	// backups returns the backup service writing to B2 or to the local archive dir
	backups func(ctx context.Context, b2 bool) (backuper, error)
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Println("  export -class CLASS -assignment ID -format csv|xlsx|grades|json [-out FILE] - export class results")
	fmt.Println("  backup -class CLASS [-b2] - archive the newest drafts of every student of a class")
	fmt.Println("  master -file FILE - import a master assignment (JSON)")
}

// formats maps the -format flag to an export kind
var formats = map[string]string{
	"csv":    export.KindAnalysisCSV,
	"xlsx":   export.KindAnalysisXLSX,
	"grades": export.KindGradesCSV,
	"json":   export.KindRawJSON,
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	exportCmd := flag.NewFlagSet("export", flag.ContinueOnError)
	exportClass := exportCmd.String("class", "", "The class. The teacher key will be prompted next.")
	exportAssignment := exportCmd.String("assignment", "", "The assignment ID (not needed for json).")
	exportFormat := exportCmd.String("format", "csv", "One of csv, xlsx, grades, json.")
	exportOut := exportCmd.String("out", "", "Output file. Defaults to the export's file name.")

	backupCmd := flag.NewFlagSet("backup", flag.ContinueOnError)
	backupClass := backupCmd.String("class", "", "The class. The teacher key will be prompted next.")
	backupB2 := backupCmd.Bool("b2", false, "Upload to Backblaze B2 instead of the local archive dir.")

	masterCmd := flag.NewFlagSet("master", flag.ContinueOnError)
	masterFile := masterCmd.String("file", "", "The master assignment JSON file.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "export":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return err
		}
		kind, ok := formats[*exportFormat]
		if *exportClass == "" || !ok || (kind != export.KindRawJSON && *exportAssignment == "") {
			exportCmd.Usage()
			return errHelp
		}
		key, err := promptTeacherKey()
		if err != nil {
			return err
		}
		if key == "" {
			exportCmd.Usage()
			return errHelp
		}
		return cli.export(ctx, kind, key, *exportClass, *exportAssignment, *exportOut)

	case "backup":
		if err := backupCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *backupClass == "" {
			backupCmd.Usage()
			return errHelp
		}
		key, err := promptTeacherKey()
		if err != nil {
			return err
		}
		if key == "" {
			backupCmd.Usage()
			return errHelp
		}
		return cli.backup(ctx, key, *backupClass, *backupB2)

	case "master":
		if err := masterCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *masterFile == "" {
			masterCmd.Usage()
			return errHelp
		}
		return cli.importMaster(ctx, *masterFile)

	default:
		cli.printUsage()
		return errHelp
	}
}

func promptTeacherKey() (string, error) {
	fmt.Print("Enter teacher key:")
	key, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", errors.Wrap(err, "reading teacher key")
	}
	return string(key), nil
}
