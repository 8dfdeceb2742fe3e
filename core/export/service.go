package export

import (
	"bytes"
	"context"
	"encoding/json"
	"net/mail"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/draft"
	"github.com/trezcool/kazi/core/feedback"
)

const mailTemplate = "export_report"

var (
	ErrUnknownKind  = errors.New("unknown export kind")
	ErrNoRecipient  = errors.New("a valid recipient is required")
	ErrNoAttachment = errors.New("nothing to send")
)

type (
	Drafts interface {
		ClassFiles(ctx context.Context, teacherKey, class string) (map[string][]draft.File, error)
		Draft(ctx context.Context, teacherKey, path string) (draft.Draft, error)
		NewestDrafts(ctx context.Context, teacherKey, class string) ([]draft.StudentDraft, error)
	}

	Masters interface {
		Master(ctx context.Context, id string) (assignment.Assignment, error)
	}

	Feedback interface {
		Get(ctx context.Context, key feedback.Key) (feedback.History, error)
	}

	LogRepository interface {
		CreateExportLog(ctx context.Context, l Log) error
		QueryExportLogs(ctx context.Context, limit int) ([]Log, error)
	}

	Service struct {
		drafts   Drafts
		masters  Masters
		feedback Feedback
		logs     LogRepository
		mailer   core.EmailService
		logger   core.Logger
		now      func() time.Time
	}
)

func NewService(drafts Drafts, masters Masters, fb Feedback, logs LogRepository, mailer core.EmailService, logger core.Logger) *Service {
	return &Service{
		drafts:   drafts,
		masters:  masters,
		feedback: fb,
		logs:     logs,
		mailer:   mailer,
		logger:   logger,
		now:      time.Now,
	}
}

// master returns an empty assignment when no master is stored.
func (svc *Service) master(ctx context.Context, assignmentID string) assignment.Assignment {
	m, err := svc.masters.Master(ctx, assignmentID)
	if err != nil {
		if !errors.Is(err, assignment.ErrNotFound) {
			svc.logger.Warn("export: reading master", err, map[string]interface{}{"assignment": assignmentID})
		}
		return assignment.Assignment{}
	}
	return m
}

func (svc *Service) students(ctx context.Context, teacherKey, class string) (map[string][]draft.File, []string, error) {
	files, err := svc.drafts.ClassFiles(ctx, teacherKey, class)
	if err != nil {
		return nil, nil, err
	}
	return files, core.SortedKeys(files), nil
}

func (svc *Service) analysisTable(ctx context.Context, teacherKey, class, assignmentID string) (Table, error) {
	_, names, err := svc.students(ctx, teacherKey, class)
	if err != nil {
		return Table{}, err
	}
	master := svc.master(ctx, assignmentID)

	histories := make(map[string]feedback.History, len(names))
	for _, name := range names {
		h, err := svc.feedback.Get(ctx, feedback.Key{Class: class, Assignment: assignmentID, Student: name})
		if err != nil {
			if !errors.Is(err, core.ErrNotFound) {
				svc.logger.Warn("export: reading feedback", err, map[string]interface{}{"student": name})
			}
			continue
		}
		histories[name] = h
	}
	return AnalysisTable(master, names, histories), nil
}

// AnalysisCSV exports the latest feedback scores of class.
func (svc *Service) AnalysisCSV(ctx context.Context, teacherKey, class, assignmentID string) (File, error) {
	t, err := svc.analysisTable(ctx, teacherKey, class, assignmentID)
	if err != nil {
		return File{}, err
	}
	return svc.record(ctx, KindAnalysisCSV, class, assignmentID, File{
		Name:        AnalysisFileName(class, assignmentID, "csv"),
		ContentType: ContentTypeCSV,
		Content:     t.CSV(),
	})
}

func (svc *Service) AnalysisXLSX(ctx context.Context, teacherKey, class, assignmentID string) (File, error) {
	t, err := svc.analysisTable(ctx, teacherKey, class, assignmentID)
	if err != nil {
		return File{}, err
	}
	content, err := t.XLSX()
	if err != nil {
		return File{}, err
	}
	return svc.record(ctx, KindAnalysisXLSX, class, assignmentID, File{
		Name:        AnalysisFileName(class, assignmentID, "xlsx"),
		ContentType: ContentTypeXLSX,
		Content:     content,
	})
}

// GradesCSV exports the answered question count of every student, for the LMS grade import.
func (svc *Service) GradesCSV(ctx context.Context, teacherKey, class, assignmentID string) (File, error) {
	files, names, err := svc.students(ctx, teacherKey, class)
	if err != nil {
		return File{}, err
	}
	total := svc.master(ctx, assignmentID).TotalQuestions()

	rows := make([]GradeRow, 0, len(names))
	for _, name := range names {
		var subs map[string]draft.SubDraft
		if f, ok := draft.SelectFile(files[name], assignmentID); ok {
			d, err := svc.drafts.Draft(ctx, teacherKey, f.Path)
			if err != nil {
				if ctx.Err() != nil {
					return File{}, ctx.Err()
				}
				svc.logger.Warn("export: reading draft", err, map[string]interface{}{"path": f.Path})
			} else {
				subs, _ = d.Assignment(assignmentID)
			}
		}
		rows = append(rows, Grade(name, subs, total))
	}

	return svc.record(ctx, KindGradesCSV, class, assignmentID, File{
		Name:        GradesFileName(class, assignmentID),
		ContentType: ContentTypeCSV,
		Content:     GradesTable(rows).CSV(),
	})
}

// RawJSON bundles the newest draft of every student, keyed {class}/{student}/{file}.json.
func (svc *Service) RawJSON(ctx context.Context, teacherKey, class string) (File, error) {
	drafts, err := svc.drafts.NewestDrafts(ctx, teacherKey, class)
	if err != nil {
		return File{}, err
	}
	bundle := make(map[string]draft.Draft, len(drafts))
	for _, sd := range drafts {
		bundle[RawPath(class, sd.Student, sd.File.Name)] = sd.Draft
	}
	content, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return File{}, errors.Wrap(err, "encoding drafts")
	}
	return svc.record(ctx, KindRawJSON, class, "", File{
		Name:        "Rohdaten_" + class + ".json",
		ContentType: ContentTypeJSON,
		Content:     content,
	})
}

// RawPath is where a raw draft goes in a class backup.
func RawPath(class, student, fileName string) string {
	return path.Join(class, student, strings.TrimSuffix(fileName, ".json")+".json")
}

// Export builds the export of the given kind.
func (svc *Service) Export(ctx context.Context, kind, teacherKey, class, assignmentID string) (File, error) {
	switch kind {
	case KindAnalysisCSV:
		return svc.AnalysisCSV(ctx, teacherKey, class, assignmentID)
	case KindAnalysisXLSX:
		return svc.AnalysisXLSX(ctx, teacherKey, class, assignmentID)
	case KindGradesCSV:
		return svc.GradesCSV(ctx, teacherKey, class, assignmentID)
	case KindRawJSON:
		return svc.RawJSON(ctx, teacherKey, class)
	default:
		return File{}, ErrUnknownKind
	}
}

// Mail sends the given exports of class/assignment to `to`, as attachments.
func (svc *Service) Mail(ctx context.Context, to, teacherKey, class, assignmentID string, kinds ...string) error {
	addr, err := mail.ParseAddress(to)
	if err != nil {
		return core.NewValidationError(ErrNoRecipient, core.FieldError{Field: "to", Error: ErrNoRecipient.Error()})
	}
	if len(kinds) == 0 {
		return ErrNoAttachment
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{*addr},
		Subject:      "Export " + class + " / " + assignmentID,
		TemplateName: mailTemplate,
	}
	names := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		f, err := svc.Export(ctx, kind, teacherKey, class, assignmentID)
		if err != nil {
			return err
		}
		if err = msg.Attach(bytes.NewReader(f.Content), f.Name, f.ContentType); err != nil {
			return err
		}
		names = append(names, f.Name)
	}
	msg.TemplateData = map[string]interface{}{"Class": class, "Assignment": assignmentID, "Files": names}

	svc.mailer.SendMessages(msg)
	_, err = svc.record(ctx, KindMail, class, assignmentID, File{Name: strings.Join(names, ", ")}, addr.Address)
	return err
}

// History lists the most recent exports.
func (svc *Service) History(ctx context.Context, limit int) ([]Log, error) {
	return svc.logs.QueryExportLogs(ctx, limit)
}

func (svc *Service) record(ctx context.Context, kind, class, assignmentID string, f File, recipient ...string) (File, error) {
	l := Log{
		ID:         uuid.NewString(),
		Kind:       kind,
		Class:      class,
		Assignment: assignmentID,
		FileName:   f.Name,
		CreatedAt:  svc.now().UTC(),
	}
	if len(recipient) > 0 {
		l.Recipient = recipient[0]
	}
	if err := svc.logs.CreateExportLog(ctx, l); err != nil {
		svc.logger.Error("recording export", err, map[string]interface{}{"kind": kind, "file": f.Name})
	}
	return f, nil
}
