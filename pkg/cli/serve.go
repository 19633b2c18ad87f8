package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/syllabus/pkg/cli/config"
	httpctrl "github.com/secmon-lab/syllabus/pkg/controller/http"
	"github.com/secmon-lab/syllabus/pkg/service/loader"
	"github.com/secmon-lab/syllabus/pkg/service/worker"
	"github.com/secmon-lab/syllabus/pkg/utils/async"
	"github.com/secmon-lab/syllabus/pkg/utils/logging"
	"github.com/secmon-lab/syllabus/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var docs string
	var watch bool
	var resyncInterval time.Duration
	var queryTimeout time.Duration
	var rtCfg runtimeConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8000",
			Sources:     cli.EnvVars("SYLLABUS_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "docs",
			Usage:       "Course documents to ingest at startup (directory or gs://bucket/prefix)",
			Sources:     cli.EnvVars("SYLLABUS_DOCS"),
			Destination: &docs,
		},
		&cli.BoolFlag{
			Name:        "watch",
			Usage:       "Re-ingest documents of a local --docs directory when they change",
			Sources:     cli.EnvVars("SYLLABUS_WATCH"),
			Destination: &watch,
		},
		&cli.DurationFlag{
			Name:        "resync-interval",
			Usage:       "Ingest --docs again at this interval to pick up new courses (0 disables)",
			Sources:     cli.EnvVars("SYLLABUS_RESYNC_INTERVAL"),
			Destination: &resyncInterval,
		},
		&cli.DurationFlag{
			Name:        "query-timeout",
			Usage:       "Timeout of a single query",
			Value:       httpctrl.DefaultQueryTimeout,
			Sources:     cli.EnvVars("SYLLABUS_QUERY_TIMEOUT"),
			Destination: &queryTimeout,
		},
	}
	flags = append(flags, rtCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			rt, err := rtCfg.build(ctx, c)
			if err != nil {
				return err
			}
			defer rt.Close()

			var stoppers []func()
			defer func() {
				for _, stop := range stoppers {
					stop()
				}
			}()

			if docs != "" {
				src, err := loader.Open(ctx, docs)
				if err != nil {
					return goerr.Wrap(err, "failed to open course documents", goerr.V("docs", docs))
				}
				defer safe.CloseIf(ctx, src)

				if resyncInterval > 0 {
					w := worker.NewResyncWorker(rt.uc.Ingest, src, resyncInterval)
					if err := w.Start(ctx); err != nil {
						return goerr.Wrap(err, "failed to start document resync worker")
					}
					stoppers = append(stoppers, w.Stop)
				} else {
					// Startup ingestion does not block serving; queries see
					// courses as soon as each one is written.
					async.Dispatch(ctx, "startup-ingest", func(ctx context.Context) error {
						report, err := rt.uc.Ingest.IngestSource(ctx, src, false)
						if err != nil {
							return err
						}
						logging.From(ctx).Info("Startup ingestion completed",
							"added", report.Courses,
							"existing", len(report.Existing),
							"chunks", report.Chunks)
						return nil
					})
				}

				if watch {
					dir, ok := src.(*loader.Dir)
					if !ok {
						return goerr.Wrap(config.ErrInvalidConfig, "--watch requires a local --docs directory", goerr.V("docs", docs))
					}
					w := worker.NewDocsWatcher(rt.uc.Ingest, dir)
					if err := w.Start(ctx); err != nil {
						return goerr.Wrap(err, "failed to start document watcher")
					}
					stoppers = append(stoppers, w.Stop)
				}
			} else if watch {
				return goerr.Wrap(config.ErrInvalidConfig, "--watch requires --docs")
			}

			httpHandler, err := httpctrl.New(rt.uc.Query, httpctrl.WithQueryTimeout(queryTimeout))
			if err != nil {
				return goerr.Wrap(err, "failed to create http server")
			}
			server := &http.Server{
				Addr:              addr,
				Handler:           httpHandler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
