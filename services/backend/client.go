package backendsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/draft"
	"github.com/trezcool/kazi/core/submission"
)

const statusError = "error"

// Client talks to the remote drafts endpoint.
// Every action is a JSON POST; assignment definitions are fetched with a GET.
type Client struct {
	scriptURL string
	http      *http.Client
}

var (
	_ draft.Source       = (*Client)(nil) // interface compliance check
	_ assignment.Source  = (*Client)(nil)
	_ submission.Gateway = (*Client)(nil)
)

func NewClient(conf *core.Config) *Client {
	timeout := conf.Backend.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		scriptURL: conf.Backend.ScriptURL,
		http:      &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// do sends req and returns the raw body, turning {"status": "error"} answers into *core.RemoteError.
func (c *Client) do(req *http.Request, action string) ([]byte, error) {
	res, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "backend %s", action)
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "backend %s: reading response", action)
	}

	var env envelope
	if len(bytes.TrimSpace(body)) > 0 && bytes.TrimSpace(body)[0] == '{' {
		_ = json.Unmarshal(body, &env)
	}
	if env.Status == statusError {
		return nil, &core.RemoteError{Action: action, Message: env.Message}
	}
	if res.StatusCode >= http.StatusBadRequest {
		return nil, &core.RemoteError{Action: action, Message: fmt.Sprintf("network error: %s", res.Status)}
	}
	return body, nil
}

func (c *Client) post(ctx context.Context, action string, params map[string]interface{}, out interface{}) error {
	payload := make(map[string]interface{}, len(params)+1)
	for k, v := range params {
		payload[k] = v
	}
	payload["action"] = action

	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "backend %s: encoding request", action)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.scriptURL, bytes.NewReader(data))
	if err != nil {
		return errors.Wrapf(err, "backend %s", action)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req, action)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err = json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "backend %s: decoding response", action)
	}
	return nil
}

// classMap decodes a top-level {class: ...} object, ignoring the status fields.
func classMap(raw map[string]json.RawMessage, action string, into func(class string, data json.RawMessage) error) error {
	for class, data := range raw {
		if class == "status" || class == "message" {
			continue
		}
		if err := into(class, data); err != nil {
			return errors.Wrapf(err, "backend %s: decoding class %q", action, class)
		}
	}
	return nil
}

func (c *Client) ListDrafts(ctx context.Context, teacherKey string) (draft.Index, error) {
	var raw map[string]json.RawMessage
	if err := c.post(ctx, "listDrafts", map[string]interface{}{"teacherKey": teacherKey}, &raw); err != nil {
		return nil, err
	}
	idx := make(draft.Index, len(raw))
	err := classMap(raw, "listDrafts", func(class string, data json.RawMessage) error {
		var students map[string][]draft.File
		if err := json.Unmarshal(data, &students); err != nil {
			return err
		}
		idx[class] = students
		return nil
	})
	return idx, err
}

func (c *Client) Draft(ctx context.Context, teacherKey, path string) (draft.Draft, error) {
	var d draft.Draft
	err := c.post(ctx, "getDraft", map[string]interface{}{"teacherKey": teacherKey, "draftPath": path}, &d)
	return d, err
}

func (c *Client) ListSubmissions(ctx context.Context, teacherKey string) (draft.Submissions, error) {
	var raw map[string]json.RawMessage
	if err := c.post(ctx, "listSubmissions", map[string]interface{}{"teacherKey": teacherKey}, &raw); err != nil {
		return nil, err
	}
	subs := make(draft.Submissions, len(raw))
	err := classMap(raw, "listSubmissions", func(class string, data json.RawMessage) error {
		var students map[string][]draft.SubmissionFile
		if err := json.Unmarshal(data, &students); err != nil {
			return err
		}
		subs[class] = students
		return nil
	})
	return subs, err
}

func (c *Client) FilterData(ctx context.Context, teacherKey string) (draft.FilterData, error) {
	var raw map[string]json.RawMessage
	if err := c.post(ctx, "getFilterData", map[string]interface{}{"teacherKey": teacherKey}, &raw); err != nil {
		return nil, err
	}
	data := make(draft.FilterData, len(raw))
	err := classMap(raw, "getFilterData", func(name string, subs json.RawMessage) error {
		var names []string
		if err := json.Unmarshal(subs, &names); err != nil {
			return err
		}
		data[name] = names
		return nil
	})
	return data, err
}

func (c *Client) FilteredAnswers(ctx context.Context, teacherKey string, filter draft.AnswerFilter) ([]draft.FilteredAnswer, error) {
	params := map[string]interface{}{
		"teacherKey":     teacherKey,
		"className":      filter.ClassName,
		"assignmentName": filter.AssignmentName,
	}
	if filter.SubAssignmentName != "" {
		params["subAssignmentName"] = filter.SubAssignmentName
	}
	var answers []draft.FilteredAnswer
	err := c.post(ctx, "getFilteredAnswers", params, &answers)
	return answers, err
}

func (c *Client) Submission(ctx context.Context, teacherKey, path string) (draft.Draft, error) {
	var d draft.Draft
	err := c.post(ctx, "getSubmission", map[string]interface{}{"teacherKey": teacherKey, "submissionPath": path}, &d)
	return d, err
}

func (c *Client) Authenticate(ctx context.Context, studentKey, mode string) (submission.StudentInfo, error) {
	var res struct {
		StudentInfo submission.StudentInfo `json:"studentInfo"`
	}
	err := c.post(ctx, "authenticateStudent", map[string]interface{}{"studentKey": studentKey, "mode": mode}, &res)
	return res.StudentInfo, err
}

func (c *Client) Submit(ctx context.Context, identifier string, payload submission.Payload) error {
	var env envelope
	if err := c.post(ctx, "submit", map[string]interface{}{"identifier": identifier, "payload": payload}, &env); err != nil {
		return err
	}
	if env.Status != "success" {
		return &core.RemoteError{Action: "submit", Message: fmt.Sprintf("unexpected status %q", env.Status)}
	}
	return nil
}

func (c *Client) VerifySolutionKey(ctx context.Context, assignmentID, key string) (bool, error) {
	var res struct {
		IsValid bool `json:"isValid"`
	}
	err := c.post(ctx, "verifySolutionKey", map[string]interface{}{"assignmentId": assignmentID, "key": key}, &res)
	return res.IsValid, err
}

func (c *Client) Assignment(ctx context.Context, id string) (assignment.Assignment, error) {
	u, err := url.Parse(c.scriptURL)
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "backend assignment: parsing url")
	}
	q := u.Query()
	q.Set("assignmentId", id)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "backend assignment")
	}
	body, err := c.do(req, "assignment")
	if err != nil {
		return assignment.Assignment{}, err
	}

	var a assignment.Assignment
	if err = json.Unmarshal(body, &a); err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "backend assignment: decoding response")
	}
	if a.ID == "" {
		a.ID = id
	}
	return a, nil
}
