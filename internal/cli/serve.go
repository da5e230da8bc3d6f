package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/morozRed/engview/internal/api"
	"github.com/morozRed/engview/internal/queue"
	"github.com/morozRed/engview/internal/scanner"
)

const shutdownTimeout = 5 * time.Second

func RunServe(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	addr, err := OptionalStringFlag(cmd, "addr")
	if err != nil {
		return err
	}
	if addr == "" {
		addr = a.cfg.Server.Addr()
	}
	noWatch, err := BoolFlag(cmd, "no-watch")
	if err != nil {
		return err
	}

	root, err := a.dataDir(nil)
	if err != nil {
		return err
	}
	store, err := a.store()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	logger := a.logger
	q := queue.New(queue.Options{
		Concurrency: a.cfg.Queue.Concurrency,
		Logger:      logger,
		Metrics:     queue.NewMetrics(reg),
	})
	q.OnIdle(func(st queue.Status) {
		logger.Info("metadata extraction idle", zap.Int("completed", st.Completed), zap.Int("total", st.Total))
	})
	q.OnError(func(te queue.TaskError) {
		logger.Warn("metadata extraction failed", zap.String("id", te.ID), zap.String("file", te.File.Path), zap.Error(te.Err))
	})

	sc := a.scanner(root, store, q)
	srv := api.New(api.Deps{
		Scanner:  sc,
		Store:    store,
		Queue:    q,
		Gatherer: reg,
		Logger:   logger,
	})
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", zap.String("addr", addr), zap.String("data", root))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if a.cfg.Files.ScanOnStartup {
		g.Go(func() error {
			entries, err := sc.ScanProjects(gctx)
			if err != nil {
				// A missing data directory is reported per request by the API.
				logger.Warn("startup scan failed", zap.Error(err))
				return nil
			}
			logger.Info("startup scan complete", zap.Int("projects", len(entries)))
			return nil
		})
	}

	if a.cfg.Watcher.Enabled && !noWatch {
		w, err := sc.Watch(scanner.WatchOptions{
			StabilityThreshold: a.cfg.Watcher.StabilityThreshold,
			PollInterval:       a.cfg.Watcher.PollInterval,
		})
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		w.OnEvent(func(ev scanner.WatchEvent) {
			fields := []zap.Field{
				zap.String("event", ev.Kind.String()),
				zap.String("path", ev.Path),
				zap.Bool("scheduled", ev.Scheduled),
			}
			if ev.Err != nil {
				logger.Warn("watch event", append(fields, zap.Error(ev.Err))...)
				return
			}
			logger.Info("watch event", fields...)
		})
		g.Go(func() error { return w.Run(gctx) })
	}

	return g.Wait()
}
