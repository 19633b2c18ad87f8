package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/syllabus/pkg/service/loader"
	"github.com/secmon-lab/syllabus/pkg/usecase"
	"github.com/secmon-lab/syllabus/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdIngest() *cli.Command {
	var docs string
	var clear bool
	var rtCfg runtimeConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "docs",
			Usage:       "Course documents to ingest (directory or gs://bucket/prefix)",
			Value:       "docs",
			Sources:     cli.EnvVars("SYLLABUS_DOCS"),
			Destination: &docs,
		},
		&cli.BoolFlag{
			Name:        "clear",
			Usage:       "Drop all indexed courses before ingesting",
			Destination: &clear,
		},
	}
	flags = append(flags, rtCfg.Flags()...)

	return &cli.Command{
		Name:    "ingest",
		Aliases: []string{"i"},
		Usage:   "Ingest course documents into the catalog and content indexes",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			rt, err := rtCfg.build(ctx, c)
			if err != nil {
				return err
			}
			defer rt.Close()

			src, err := loader.Open(ctx, docs)
			if err != nil {
				return goerr.Wrap(err, "failed to open course documents", goerr.V("docs", docs))
			}
			defer safe.CloseIf(ctx, src)

			report, err := rt.uc.Ingest.IngestSource(ctx, src, clear)
			if err != nil {
				return goerr.Wrap(err, "failed to ingest documents")
			}

			printReport(os.Stdout, report)
			return nil
		},
	}
}

func printReport(w io.Writer, report *usecase.IngestReport) {
	added := color.New(color.FgGreen)
	muted := color.New(color.FgHiBlack)
	failed := color.New(color.FgRed)

	for _, title := range report.Courses {
		_, _ = added.Fprintf(w, "+ %s\n", title)
	}
	for _, title := range report.Existing {
		_, _ = muted.Fprintf(w, "= %s (already indexed)\n", title)
	}
	for _, name := range report.Skipped {
		_, _ = muted.Fprintf(w, "- %s (unsupported format)\n", name)
	}
	for _, f := range report.Failed {
		_, _ = failed.Fprintf(w, "! %s: %v\n", f.Name, f.Err)
	}

	_, _ = fmt.Fprintf(w, "\n%d courses added, %d chunks indexed\n", len(report.Courses), report.Chunks)
}
