package dummydb

import (
	"sync"

	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/export"
	"github.com/trezcool/kazi/core/feedback"
)

// DB keeps every table in memory; it backs tests and throwaway dev runs.
type (
	DB struct {
		assignment *assignmentTable
		feedback   *feedbackTable
		exportLog  *exportLogTable
	}

	assignmentTable struct {
		sync.RWMutex
		table map[string]assignment.Assignment
	}

	feedbackTable struct {
		sync.RWMutex
		table map[feedback.Key]feedback.History
	}

	exportLogTable struct {
		sync.RWMutex
		rows []export.Log
	}
)

func Open() (*DB, error) {
	db := &DB{
		assignment: &assignmentTable{table: make(map[string]assignment.Assignment)},
		feedback:   &feedbackTable{table: make(map[feedback.Key]feedback.History)},
		exportLog:  &exportLogTable{},
	}
	return db, nil
}
