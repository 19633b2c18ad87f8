package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/syllabus/pkg/agent/tool"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
	"github.com/secmon-lab/syllabus/pkg/service/loader"
	"github.com/secmon-lab/syllabus/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdAsk() *cli.Command {
	var docs string
	var sessionID string
	var rtCfg runtimeConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "docs",
			Usage:       "Course documents to ingest before asking (directory or gs://bucket/prefix)",
			Sources:     cli.EnvVars("SYLLABUS_DOCS"),
			Destination: &docs,
		},
		&cli.StringFlag{
			Name:        "session",
			Usage:       "Session ID to continue (requires a persistent session backend)",
			Destination: &sessionID,
		},
	}
	flags = append(flags, rtCfg.Flags()...)

	return &cli.Command{
		Name:      "ask",
		Usage:     "Ask one question about the indexed courses",
		ArgsUsage: "<question>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if question == "" {
				return goerr.Wrap(model.ErrInvalidArgument, "question is required")
			}

			rt, err := rtCfg.build(ctx, c)
			if err != nil {
				return err
			}
			defer rt.Close()

			if docs != "" {
				src, err := loader.Open(ctx, docs)
				if err != nil {
					return goerr.Wrap(err, "failed to open course documents", goerr.V("docs", docs))
				}
				defer safe.CloseIf(ctx, src)
				if _, err := rt.uc.Ingest.IngestSource(ctx, src, false); err != nil {
					return goerr.Wrap(err, "failed to ingest documents")
				}
			}

			progress := color.New(color.FgHiBlack)
			ctx = tool.WithUpdate(ctx, func(ctx context.Context, message string) {
				_, _ = progress.Fprintf(os.Stderr, "%s...\n", message)
			})

			answer, err := rt.uc.Query.Ask(ctx, model.SessionID(sessionID), question)
			if err != nil {
				return err
			}

			printAnswer(os.Stdout, answer)
			return nil
		},
	}
}

func printAnswer(w io.Writer, answer *model.Answer) {
	_, _ = fmt.Fprintln(w, answer.Text)

	if len(answer.Sources) > 0 {
		heading := color.New(color.FgCyan, color.Bold)
		item := color.New(color.FgBlue)

		_, _ = heading.Fprintln(w, "\nSources")
		for _, src := range answer.Sources {
			_, _ = item.Fprintf(w, "  - %s\n", src.Markdown())
		}
	}

	_, _ = color.New(color.FgHiBlack).Fprintf(w, "\nsession: %s\n", answer.SessionID)
}
