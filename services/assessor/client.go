package assessorsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/feedback"
)

var ErrEmptyAssessment = errors.New("assessor returned no results")

// Client posts student work to the grading service.
type Client struct {
	url  string
	http *http.Client
}

var _ feedback.Assessor = (*Client)(nil) // interface compliance check

func NewClient(conf *core.Config) *Client {
	timeout := conf.Assessor.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{url: conf.Assessor.URL, http: &http.Client{Timeout: timeout}}
}

// Assess accepts either a single entry or a whole history in the response; of a history, the last entry is used.
func (c *Client) Assess(ctx context.Context, req feedback.Request) (feedback.Entry, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return feedback.Entry{}, errors.Wrap(err, "encoding assessment request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return feedback.Entry{}, errors.Wrap(err, "creating assessment request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(httpReq)
	if err != nil {
		return feedback.Entry{}, errors.Wrap(err, "assessor")
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return feedback.Entry{}, errors.Wrap(err, "assessor: reading response")
	}

	var apiErr struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &apiErr)
	if apiErr.Error != "" {
		return feedback.Entry{}, errors.Errorf("assessor: %s", apiErr.Error)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return feedback.Entry{}, errors.Errorf("assessor: %s", res.Status)
	}

	var h feedback.History
	if err = json.Unmarshal(body, &h); err != nil {
		return feedback.Entry{}, errors.Wrap(err, "assessor: decoding response")
	}
	entry, ok := h.Latest()
	if !ok || len(entry.Results) == 0 {
		return feedback.Entry{}, ErrEmptyAssessment
	}
	return entry, nil
}
