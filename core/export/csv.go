package export

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/draft"
	"github.com/trezcool/kazi/core/feedback"
)

const (
	bom          = "\ufeff"
	csvSeparator = ";"
	missing      = "-"
)

var unsafeFileChars = regexp.MustCompile(`(?i)[^a-z0-9]`)

// AnalysisColumns lists one column per master question, sub-assignments in key order.
func AnalysisColumns(master assignment.Assignment) []Column {
	var cols []Column
	for _, subID := range master.SubIDs() {
		for _, q := range master.SubAssignments[subID].Questions {
			cols = append(cols, Column{
				ID:    assignment.SlotID(subID, q.ID),
				Label: "Q" + strconv.Itoa(len(cols)+1) + " (" + q.ID + ")",
			})
		}
	}
	return cols
}

// AnalysisTable builds the score overview of students (sorted) from their latest feedback.
// Students missing from histories get a placeholder row.
func AnalysisTable(master assignment.Assignment, students []string, histories map[string]feedback.History) Table {
	cols := AnalysisColumns(master)
	t := Table{Header: []string{"Name", "Bewertungs-Datum", "Summe Punkte", "Durchschnitt"}}
	for _, c := range cols {
		t.Header = append(t.Header, c.Label+" Punkte")
	}

	for _, name := range students {
		row := []string{name, missing, "0", "0"}
		var scores map[string]float64
		if latest, ok := histories[name].Latest(); ok {
			if latest.DateStr != "" {
				row[1] = latest.DateStr
			}
			total := latest.TotalScore()
			row[2] = formatNumber(total)
			if n := len(latest.Results); n > 0 {
				row[3] = strings.Replace(strconv.FormatFloat(total/float64(n), 'f', 2, 64), ".", ",", 1)
			}
			scores = latest.Scores()
		}
		for _, c := range cols {
			if s, ok := scores[c.ID]; ok {
				row = append(row, formatNumber(s))
			} else {
				row = append(row, missing)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// CSV joins t with semicolons, prefixed by a byte order mark so spreadsheet apps detect UTF-8.
func (t Table) CSV() []byte {
	var sb strings.Builder
	sb.WriteString(bom)
	sb.WriteString(strings.Join(t.Header, csvSeparator))
	for _, row := range t.Rows {
		sb.WriteString("\n")
		sb.WriteString(strings.Join(row, csvSeparator))
	}
	return []byte(sb.String())
}

// AnalysisFileName names the analysis export; ext is csv or xlsx.
func AnalysisFileName(class, assignmentID, ext string) string {
	return "Analyse_" + class + "_" + assignmentID + "." + ext
}

// SplitName takes the last word of name as the last name.
func SplitName(name string) (first, last string) {
	parts := strings.Fields(name)
	if len(parts) <= 1 {
		return strings.TrimSpace(name), ""
	}
	return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
}

// LoginName derives the LMS login of a student: first.last, lower-cased, spaces as dots.
func LoginName(first, last string) string {
	clean := func(s string) string {
		return strings.Join(strings.Fields(strings.ToLower(s)), ".")
	}
	return clean(first) + "." + clean(last)
}

// GradeRow is one line of the LMS grade import.
type GradeRow struct {
	Login  string
	First  string
	Last   string
	Points int
	Max    int
}

// Grade counts the answered questions of a student's assignment data.
// Max falls back to the student's own question count when masterTotal is 0.
func Grade(name string, subs map[string]draft.SubDraft, masterTotal int) GradeRow {
	first, last := SplitName(name)
	row := GradeRow{Login: LoginName(first, last), First: first, Last: last, Max: masterTotal}

	own := 0
	for _, sub := range subs {
		own += len(sub.Questions)
		for _, a := range sub.AllAnswers() {
			if !assignment.IsEmptyAnswer(a.Answer) {
				row.Points++
			}
		}
	}
	if row.Max == 0 && subs != nil {
		row.Max = own
	}
	return row
}

func GradesTable(rows []GradeRow) Table {
	t := Table{Header: []string{"Anmeldename", "Vorname", "Nachname", "Punkte", "Max."}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{r.Login, r.First, r.Last, strconv.Itoa(r.Points), strconv.Itoa(r.Max)})
	}
	return t
}

func GradesFileName(class, assignmentID string) string {
	return class + "_" + unsafeFileChars.ReplaceAllString(assignmentID, "_") + ".csv"
}
