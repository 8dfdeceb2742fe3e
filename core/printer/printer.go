// Package printer renders printable HTML pages for feedback and student answers.
package printer

import (
	"embed"
	"html/template"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/feedback"
	"github.com/trezcool/kazi/core/submission"
)

// Mode selects how much feedback is printed.
type Mode string

const (
	ModeFull    Mode = "full"    // concise and detailed feedback
	ModeConcise Mode = "concise" // concise feedback only

	dateLayout = "2.1.2006"
	noAnswer   = "Keine Antwort gespeichert"
)

//go:embed templates
var templateFS embed.FS

var (
	tmpl     *template.Template
	tmplErr  error
	tmplOnce sync.Once
)

var ErrUnknownMode = errors.New("unknown print mode")

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeFull, nil
	case ModeFull, ModeConcise:
		return m, nil
	default:
		return "", ErrUnknownMode
	}
}

func scoreClass(score float64) string {
	switch score {
	case 3:
		return "score-high"
	case 2:
		return "score-mid"
	default:
		return "score-low"
	}
}

func templates() (*template.Template, error) {
	tmplOnce.Do(func() {
		tmpl, tmplErr = template.New("print").
			Funcs(template.FuncMap{
				"markdown":   assignment.RenderMarkdown,
				"sanitize":   assignment.Sanitize,
				"scoreClass": scoreClass,
			}).
			ParseFS(templateFS, "templates/*.gohtml")
	})
	return tmpl, tmplErr
}

type (
	// StudentFeedback is the feedback entry printed for one student.
	StudentFeedback struct {
		Student string
		Entry   feedback.Entry
	}

	feedbackSection struct {
		Name    string
		Results []feedback.Result
	}

	feedbackPage struct {
		Student  string
		Sections []feedbackSection
	}
)

// sections groups consecutive results by the sub-assignment part of their question id.
func sections(results []feedback.Result) []feedbackSection {
	var secs []feedbackSection
	last := ""
	for _, r := range results {
		name := strings.SplitN(r.QuestionID, "_", 2)[0]
		if len(secs) == 0 || (name != "" && name != last) {
			secs = append(secs, feedbackSection{Name: name})
			last = name
		}
		secs[len(secs)-1].Results = append(secs[len(secs)-1].Results, r)
	}
	return secs
}

// Feedback writes one page per student.
func Feedback(w io.Writer, assignmentName string, students []StudentFeedback, mode Mode, includePoints bool, now time.Time) error {
	t, err := templates()
	if err != nil {
		return errors.Wrap(err, "parsing print templates")
	}

	pages := make([]feedbackPage, 0, len(students))
	for _, s := range students {
		pages = append(pages, feedbackPage{Student: s.Student, Sections: sections(s.Entry.Results)})
	}
	data := map[string]interface{}{
		"Assignment":    assignmentName,
		"Date":          now.Format(dateLayout),
		"Detailed":      mode == ModeFull,
		"IncludePoints": includePoints,
		"Pages":         pages,
	}
	return errors.Wrap(t.ExecuteTemplate(w, "feedback.gohtml", data), "rendering feedback print")
}

// Answers writes the answer sheet of a student.
func Answers(w io.Writer, doc submission.PrintDoc) error {
	t, err := templates()
	if err != nil {
		return errors.Wrap(err, "parsing print templates")
	}
	data := map[string]interface{}{
		"Doc":      doc,
		"NoAnswer": noAnswer,
	}
	return errors.Wrap(t.ExecuteTemplate(w, "answers.gohtml", data), "rendering answer print")
}
