package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) backup(ctx context.Context, teacherKey, class string, b2 bool) error {
	svc, err := cli.backups(ctx, b2)
	if err != nil {
		return err
	}
	res, err := svc.Backup(ctx, teacherKey, class)
	if err != nil {
		return err
	}
	for _, loc := range res.Locations {
		_, _ = fmt.Fprintln(cli.out, loc)
	}
	_, _ = fmt.Fprintf(cli.out, "%d drafts archived under %s\n", len(res.Locations), res.Prefix)
	return nil
}
