package export

import (
	"time"
)

// export kinds
const (
	KindAnalysisCSV  = "analysis.csv"
	KindAnalysisXLSX = "analysis.xlsx"
	KindGradesCSV    = "grades.csv"
	KindRawJSON      = "raw.json"
	KindMail         = "mail"
)

const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeJSON = "application/json"
)

type (
	// File is a generated export, ready to download or attach.
	File struct {
		Name        string
		ContentType string
		Content     []byte
	}

	// Table is a header row followed by data rows.
	Table struct {
		Header []string
		Rows   [][]string
	}

	// Column is a per-question score column of the analysis export.
	Column struct {
		ID    string // subID_questionID, as in feedback results
		Label string
	}

	// Log records an export, for the admin overview.
	Log struct {
		ID         string    `db:"id" json:"id"`
		Kind       string    `db:"kind" json:"kind"`
		Class      string    `db:"class" json:"class"`
		Assignment string    `db:"assignment" json:"assignment"`
		FileName   string    `db:"file_name" json:"fileName"`
		Recipient  string    `db:"recipient" json:"recipient,omitempty"`
		CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	}
)
