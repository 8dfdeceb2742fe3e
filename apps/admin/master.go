package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core/assignment"
)

// importMaster updates or creates the master assignment read from a JSON file.
// The file name (without extension) is the ID when the JSON has none.
func (cli *commandLine) importMaster(ctx context.Context, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return errors.Wrap(err, "reading master")
	}
	var a assignment.Assignment
	if err = json.Unmarshal(data, &a); err != nil {
		return errors.Wrap(err, "decoding master")
	}
	if a.ID == "" {
		a.ID = fileID(file)
	}

	if a, err = cli.masters.Save(ctx, a); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "master %q saved (%d questions)\n", a.ID, a.TotalQuestions())
	return nil
}

func fileID(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
