package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// export writes the export of class/assignment to out (or to the export's own file name).
func (cli *commandLine) export(ctx context.Context, kind, teacherKey, class, assignmentID, out string) error {
	f, err := cli.exports.Export(ctx, kind, teacherKey, class, assignmentID)
	if err != nil {
		return err
	}
	if out == "" {
		out = f.Name
	}
	if err = os.WriteFile(out, f.Content, 0o644); err != nil {
		return errors.Wrap(err, "writing export")
	}
	_, _ = fmt.Fprintf(cli.out, "%s: %d bytes written\n", out, len(f.Content))
	return nil
}
