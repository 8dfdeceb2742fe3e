package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/kazi/apps/api/echo"
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
	dummydb "github.com/trezcool/kazi/storage/database/dummy"
	"github.com/trezcool/kazi/storage/kv"
)

const (
	teacherKey = "lehrer-123"
	studentKey = "ada-456"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

// calls counts the actions received by the fake backend.
type calls struct {
	mu      sync.Mutex
	actions map[string]int
	last    map[string]map[string]interface{}
}

func (c *calls) record(action string, params map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions[action]++
	c.last[action] = params
}

func (c *calls) count(action string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.actions[action]
}

func (c *calls) params(action string) map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last[action]
}

// fakeBackend serves class 8A: Ada has two drafts of "Brüche", Ben's only draft cannot be read.
func fakeBackend(t *testing.T) (*httptest.Server, *calls) {
	t.Helper()
	c := &calls{actions: make(map[string]int), last: make(map[string]map[string]interface{})}
	drafts := map[string]string{
		"ada/1": `{"assignments":{"Brüche":{"1":{"title":"Kürzen","questions":[{"id":"a","text":"Kürze 4/8"},{"id":"b","text":"Kürze 3/9"}]}}},"createdAt":"2026-03-01T08:00:00Z"}`,
		"ada/2": `{"assignments":{"Brüche":{"1":{"title":"Kürzen","questions":[{"id":"a","text":"Kürze 4/8"},{"id":"b","text":"Kürze 3/9"}],"answers":[{"questionId":"a","answer":"<p>1/2</p>"}]}}},"createdAt":"2026-03-02T08:00:00Z"}`,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`{"status":"error","message":"Assignment not found"}`))
			return
		}

		var params map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&params)
		action, _ := params["action"].(string)
		c.record(action, params)

		if key, ok := params["teacherKey"]; ok && key != teacherKey {
			_, _ = w.Write([]byte(`{"status":"error","message":"Invalid teacher key"}`))
			return
		}
		switch action {
		case "listDrafts":
			_, _ = w.Write([]byte(`{"status":"success","8A":{` +
				`"Ada":[{"name":"2026-03-01_0800.json","path":"ada/1"},{"name":"2026-03-02_0800.json","path":"ada/2"}],` +
				`"Ben":[{"name":"2026-03-01_0900.json","path":"ben/1"}]}}`))
		case "getDraft":
			path, _ := params["draftPath"].(string)
			if d, ok := drafts[path]; ok {
				_, _ = w.Write([]byte(d))
				return
			}
			_, _ = w.Write([]byte(`{"status":"error","message":"Draft not found"}`))
		case "authenticateStudent":
			if params["studentKey"] != studentKey {
				_, _ = w.Write([]byte(`{"status":"error","message":"Invalid student key"}`))
				return
			}
			_, _ = w.Write([]byte(`{"status":"success","studentInfo":{"klasse":"8A","name":"Ada"}}`))
		case "submit":
			_, _ = w.Write([]byte(`{"status":"success"}`))
		case "verifySolutionKey":
			if params["key"] != "geheim" {
				_, _ = w.Write([]byte(`{"isValid":false}`))
				return
			}
			_, _ = w.Write([]byte(`{"isValid":true}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

// fakeAssessor gives full marks to the first question.
func fakeAssessor(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"date_str":"02.03.2026 10:00","results":[` +
			`{"question_id":"1_a","score":3,"concise_feedback":"Gut gekürzt","detailed_feedback":"4/8 = 1/2"},` +
			`{"question_id":"1_b","score":0,"concise_feedback":"Fehlt","detailed_feedback":"Keine Antwort"}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

type fixture struct {
	app      Server
	sessions *Sessions
	backend  *calls
	mailer   *emailsvc.ConsoleServiceMock
	archive  string
}

func setup(t *testing.T) fixture {
	t.Helper()
	backend, backendCalls := fakeBackend(t)
	assessor := fakeAssessor(t)

	conf := &core.Config{
		AppName:          "Kazi",
		Env:              "TEST",
		TestMode:         true,
		DefaultFromEmail: "noreply@localhost",
		Backend:          core.BackendConfig{ScriptURL: backend.URL, Timeout: 5 * time.Second},
		Assessor:         core.AssessorConfig{URL: assessor.URL, Timeout: 5 * time.Second},
		Store:            core.StoreConfig{SaveDebounce: time.Hour},
		Session:          core.SessionConfig{SecretKey: []byte("test-secret"), TTL: time.Hour},
	}
	logger := nopLogger{}

	// set up DB & stores
	db, err := dummydb.Open()
	require.NoError(t, err)
	store, err := kv.Open(filepath.Join(t.TempDir(), "answers.bolt"))
	require.NoError(t, err)
	archiveDir := t.TempDir()

	// set up services
	client := backendsvc.NewClient(conf)
	mailer := emailsvc.NewConsoleServiceMock(conf, logger)
	drafts := draft.NewService(client, logger, 4)
	assignments := assignment.NewService(dummydb.NewAssignmentRepository(db), client, store, logger)
	fb := feedback.NewService(dummydb.NewFeedbackRepository(db), assessorsvc.NewClient(conf), logger)
	exports := export.NewService(drafts, assignments, fb, dummydb.NewExportLogRepository(db), mailer, logger)
	autosaver := submission.NewAutosaver(store, logger, conf.Store.SaveDebounce)
	submissions := submission.NewService(client, store, autosaver, assignments, logger)

	t.Cleanup(func() {
		_ = autosaver.Close()
		_ = store.Close()
	})

	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)

	// set up server
	app := NewServer(ServerDeps{
		Conf:        conf,
		Logger:      logger,
		Validate:    validate,
		Translator:  translator,
		Drafts:      drafts,
		Assignments: assignments,
		Feedback:    fb,
		Submissions: submissions,
		Exports:     exports,
		Archive:     archivesvc.NewService(archivesvc.NewFSArchiver(archiveDir), drafts, logger, 2),
	})
	return fixture{app: app, sessions: NewSessions(conf), backend: backendCalls, mailer: mailer, archive: archiveDir}
}

func (f fixture) teacherToken(t *testing.T) string {
	t.Helper()
	token, err := f.sessions.GenerateToken(f.sessions.TeacherClaims(teacherKey))
	require.NoError(t, err)
	return token
}

func (f fixture) studentToken(t *testing.T) string {
	t.Helper()
	token, err := f.sessions.GenerateToken(f.sessions.StudentClaims(submission.StudentInfo{Class: "8A", Name: "Ada"}))
	require.NoError(t, err)
	return token
}

func (f fixture) do(tt httpTest) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	f.app.ServeHTTP(rec, req)
	return rec
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}
