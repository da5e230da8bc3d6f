package cli

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/morozRed/engview/internal/parser"
	"github.com/morozRed/engview/internal/queue"
	"github.com/morozRed/engview/internal/scanner"
)

func RunQueue(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	asJSON, err := BoolFlag(cmd, "json")
	if err != nil {
		return err
	}
	concurrency, err := cmd.Flags().GetInt("concurrency")
	if err != nil {
		return err
	}
	if concurrency <= 0 {
		concurrency = a.cfg.Queue.Concurrency
	}

	root, err := a.dataDir(args)
	if err != nil {
		return err
	}
	store, err := a.store()
	if err != nil {
		return err
	}

	start := time.Now()
	files, err := scanner.ScanDirectory(root, []string{".prt"})
	if err != nil {
		return err
	}

	q := queue.New(queue.Options{Concurrency: concurrency, Logger: a.logger})
	sc := a.scanner(root, store, q)

	progress := newExtractProgressReporter("extract", asJSON)
	q.OnProgress(progress.Update)

	// Failures are recorded inside the task so they are all in before the
	// queue reports idle.
	var mu sync.Mutex
	var failed []string
	extract := func(ctx context.Context, file queue.FileDescriptor) error {
		err := sc.Extractor().Extract(ctx, file)
		if err != nil {
			mu.Lock()
			failed = append(failed, file.Path)
			mu.Unlock()
		}
		return err
	}

	stale := 0
	for _, f := range files {
		if !sc.ShouldReExtract(f.Path, parser.NormalizeID(f.Name)) {
			continue
		}
		stale++
		q.Enqueue(f.Descriptor(), extract, queue.PriorityLow)
	}

	if err := q.WaitIdle(cmdContext(cmd)); err != nil {
		return err
	}
	status := q.Status()
	progress.Done(status.Completed)

	mu.Lock()
	sort.Strings(failed)
	mu.Unlock()
	a.logger.Debug("queue run finished", zap.Int("stale", stale), zap.Int("failed", len(failed)))

	return PrintRunSummary(cmd.OutOrStdout(), RunSummary{
		Mode:        "queue",
		RootPath:    root,
		Scanned:     len(files),
		Stale:       stale,
		Extracted:   status.Completed,
		Failed:      len(failed),
		DurationMS:  time.Since(start).Milliseconds(),
		FailedFiles: failed,
	}, asJSON)
}
