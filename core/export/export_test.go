package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/draft"
	"github.com/trezcool/kazi/core/feedback"
)

var master = assignment.Assignment{
	ID: "Brüche",
	SubAssignments: map[string]assignment.SubAssignment{
		"2": {Title: "Erweitern", Questions: []assignment.Question{{ID: "a"}}},
		"1": {Title: "Kürzen", Questions: []assignment.Question{{ID: "a"}, {ID: "b"}}},
	},
}

func TestAnalysisTable(t *testing.T) {
	histories := map[string]feedback.History{
		"Ada": {Entries: []feedback.Entry{
			{DateStr: "01.03.2026 08:00", Results: []feedback.Result{{QuestionID: "1_a", Score: 1}}},
			{DateStr: "02.03.2026 08:00", Results: []feedback.Result{{QuestionID: "1_a", Score: 3}, {QuestionID: "2_a", Score: 2}}},
		}},
	}
	table := AnalysisTable(master, []string{"Ada", "Bob"}, histories)

	assert.Equal(t, []string{"Name", "Bewertungs-Datum", "Summe Punkte", "Durchschnitt", "Q1 (a) Punkte", "Q2 (b) Punkte", "Q3 (a) Punkte"}, table.Header)
	assert.Equal(t, [][]string{
		{"Ada", "02.03.2026 08:00", "5", "2,50", "3", "-", "2"},
		{"Bob", "-", "0", "0", "-", "-", "-"},
	}, table.Rows)

	csv := string(table.CSV())
	assert.True(t, strings.HasPrefix(csv, "\ufeffName;Bewertungs-Datum;"))
	assert.Equal(t, 3, len(strings.Split(csv, "\n")))
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		name, first, last, login string
	}{
		{"Ada Lovelace", "Ada", "Lovelace", "ada.lovelace"},
		{"Anna Maria  Schmidt", "Anna Maria", "Schmidt", "anna.maria.schmidt"},
		{" Linus ", "Linus", "", "linus."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			first, last := SplitName(tc.name)
			assert.Equal(t, tc.first, first)
			assert.Equal(t, tc.last, last)
			assert.Equal(t, tc.login, LoginName(first, last))
		})
	}
}

func TestGrade(t *testing.T) {
	subs := map[string]draft.SubDraft{
		"1": {
			Questions: []assignment.Question{{ID: "a"}, {ID: "b"}, {ID: "c"}},
			Answers:   []draft.Answer{{QuestionID: "a", Answer: "<p>x</p>"}, {QuestionID: "b", Answer: "<p><br></p>"}},
		},
		"2": {Answer: "legacy"},
	}
	assert.Equal(t, GradeRow{Login: "ada.lovelace", First: "Ada", Last: "Lovelace", Points: 2, Max: 10}, Grade("Ada Lovelace", subs, 10))
	assert.Equal(t, 3, Grade("Ada Lovelace", subs, 0).Max)
	assert.Equal(t, 0, Grade("Ada Lovelace", nil, 0).Max)
}

func TestFileNames(t *testing.T) {
	assert.Equal(t, "8A_Br_che_1.csv", GradesFileName("8A", "Brüche 1"))
	assert.Equal(t, "Analyse_8A_Brüche.xlsx", AnalysisFileName("8A", "Brüche", "xlsx"))
	assert.Equal(t, "8A/Ada/2026-03-01.json", RawPath("8A", "Ada", "2026-03-01.json"))
}

func TestTable_XLSX(t *testing.T) {
	table := Table{Header: []string{"Name", "Summe Punkte"}, Rows: [][]string{{"Ada", "5"}}}
	content, err := table.XLSX()
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Name", "Summe Punkte"}, {"Ada", "5"}}, rows)
}

type (
	fakeDrafts struct {
		files  map[string][]draft.File
		drafts map[string]draft.Draft
	}

	fakeMasters map[string]assignment.Assignment

	fakeFeedback map[string]feedback.History

	memLogs struct{ logs []Log }

	fakeMailer struct{ sent []*core.EmailMessage }

	nopLogger struct{}
)

func (d *fakeDrafts) ClassFiles(_ context.Context, _, class string) (map[string][]draft.File, error) {
	if class != "8A" {
		return nil, draft.ErrClassNotFound
	}
	return d.files, nil
}

func (d *fakeDrafts) Draft(_ context.Context, _, path string) (draft.Draft, error) {
	return d.drafts[path], nil
}

func (d *fakeDrafts) NewestDrafts(_ context.Context, _, _ string) ([]draft.StudentDraft, error) {
	var sds []draft.StudentDraft
	for _, name := range core.SortedKeys(d.files) {
		f := draft.SortFilesDesc(d.files[name])[0]
		sds = append(sds, draft.StudentDraft{Student: name, File: f, Draft: d.drafts[f.Path]})
	}
	return sds, nil
}

func (m fakeMasters) Master(_ context.Context, id string) (assignment.Assignment, error) {
	if id == "kaputt" {
		return assignment.Assignment{}, errors.New("database is locked")
	}
	a, ok := m[id]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	return a, nil
}

func (f fakeFeedback) Get(_ context.Context, key feedback.Key) (feedback.History, error) {
	h, ok := f[key.Student]
	if !ok {
		return feedback.History{}, core.ErrNotFound
	}
	return h, nil
}

func (l *memLogs) CreateExportLog(_ context.Context, log Log) error {
	l.logs = append(l.logs, log)
	return nil
}

func (l *memLogs) QueryExportLogs(_ context.Context, limit int) ([]Log, error) {
	if limit > len(l.logs) {
		limit = len(l.logs)
	}
	return l.logs[:limit], nil
}

func (m *fakeMailer) SendMessages(msgs ...*core.EmailMessage) {
	m.sent = append(m.sent, msgs...)
}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

// warnCounter counts warnings.
type warnCounter struct {
	nopLogger
	warns int
}

func (l *warnCounter) Warn(string, ...interface{}) { l.warns++ }

func setup() (*Service, *memLogs, *fakeMailer) {
	drafts := &fakeDrafts{
		files: map[string][]draft.File{
			"Ada Lovelace": {{Name: "Brüche.json", Path: "p/ada/1"}, {Name: "Zahlen.json", Path: "p/ada/2"}},
			"Bob":          {{Name: "Zahlen.json", Path: "p/bob/1"}},
		},
		drafts: map[string]draft.Draft{
			"p/ada/1": {Assignments: map[string]map[string]draft.SubDraft{"Brüche": {
				"1": {Answers: []draft.Answer{{QuestionID: "a", Answer: "<p>1/2</p>"}, {QuestionID: "b", Answer: "<p>1/3</p>"}}},
			}}},
			"p/ada/2": {Assignments: map[string]map[string]draft.SubDraft{"Zahlen": {}}},
			"p/bob/1": {Assignments: map[string]map[string]draft.SubDraft{"Zahlen": {}}},
		},
	}
	logs, mailer := &memLogs{}, &fakeMailer{}
	fb := fakeFeedback{"Ada Lovelace": {Entries: []feedback.Entry{{DateStr: "heute", Results: []feedback.Result{{QuestionID: "1_a", Score: 3}}}}}}
	return NewService(drafts, fakeMasters{"Brüche": master}, fb, logs, mailer, nopLogger{}), logs, mailer
}

func TestService_Export(t *testing.T) {
	svc, logs, _ := setup()
	ctx := context.Background()

	f, err := svc.Export(ctx, KindGradesCSV, "key", "8A", "Brüche")
	require.NoError(t, err)
	assert.Equal(t, "8A_Br_che.csv", f.Name)
	assert.Equal(t, "\ufeffAnmeldename;Vorname;Nachname;Punkte;Max.\nada.lovelace;Ada;Lovelace;2;3\nbob.;Bob;;0;3", string(f.Content))

	f, err = svc.Export(ctx, KindAnalysisCSV, "key", "8A", "Brüche")
	require.NoError(t, err)
	assert.Contains(t, string(f.Content), "\nAda Lovelace;heute;3;3,00;3;-;-\n")

	f, err = svc.Export(ctx, KindRawJSON, "key", "8A", "")
	require.NoError(t, err)
	assert.Contains(t, string(f.Content), `"8A/Ada Lovelace/Zahlen.json"`)

	_, err = svc.Export(ctx, "pdf", "key", "8A", "Brüche")
	assert.ErrorIs(t, err, ErrUnknownKind)
	_, err = svc.Export(ctx, KindAnalysisCSV, "key", "9Z", "Brüche")
	assert.ErrorIs(t, err, draft.ErrClassNotFound)

	assert.Len(t, logs.logs, 3)
	assert.Equal(t, KindGradesCSV, logs.logs[0].Kind)
	assert.NotEmpty(t, logs.logs[0].ID)
}

func TestService_Mail(t *testing.T) {
	svc, logs, mailer := setup()
	ctx := context.Background()

	err := svc.Mail(ctx, "not an address", "key", "8A", "Brüche", KindGradesCSV)
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)

	require.NoError(t, svc.Mail(ctx, "Frau Meier <meier@schule.de>", "key", "8A", "Brüche", KindGradesCSV, KindAnalysisXLSX))
	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "meier@schule.de", msg.To[0].Address)
	require.Len(t, msg.Attachments, 2)
	assert.Equal(t, ContentTypeXLSX, msg.Attachments[1].ContentType)

	content, err := base64.StdEncoding.DecodeString(msg.Attachments[0].Content)
	require.NoError(t, err)
	assert.Contains(t, string(content), "ada.lovelace")

	last := logs.logs[len(logs.logs)-1]
	assert.Equal(t, KindMail, last.Kind)
	assert.Equal(t, "meier@schule.de", last.Recipient)
}

func TestService_master(t *testing.T) {
	logger := &warnCounter{}
	svc := NewService(&fakeDrafts{}, fakeMasters{"Brüche": master}, fakeFeedback{}, &memLogs{}, &fakeMailer{}, logger)
	ctx := context.Background()

	assert.Equal(t, master, svc.master(ctx, "Brüche"))
	assert.Equal(t, assignment.Assignment{}, svc.master(ctx, "Zahlen"))
	assert.Zero(t, logger.warns, "a missing master is not worth a warning")

	assert.Equal(t, assignment.Assignment{}, svc.master(ctx, "kaputt"))
	assert.Equal(t, 1, logger.warns)
}
