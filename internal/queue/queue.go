// Package queue runs narrative-file extractions in the background with a
// fixed concurrency ceiling, priority admission and per-project dedup.
package queue

import (
	"container/heap"
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/morozRed/engview/internal/parser"
)

// DefaultConcurrency is the number of extractions allowed to run at once.
const DefaultConcurrency = 3

// Priority weights admission; higher runs first.
type Priority int

const (
	PriorityLow  Priority = 1
	PriorityHigh Priority = 10
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// FileDescriptor identifies the file a task extracts from.
type FileDescriptor struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// ExtractFunc does the work for one file. Returned errors and panics are
// reported through OnError; they never reach the enqueuer.
type ExtractFunc func(ctx context.Context, file FileDescriptor) error

// Status is the externally visible queue state.
type Status struct {
	Total        int  `json:"total"`
	Pending      int  `json:"pending"`
	Completed    int  `json:"completed"`
	IsProcessing bool `json:"isProcessing"`
}

// TaskError describes one failed extraction.
type TaskError struct {
	ID   string
	File FileDescriptor
	Err  error
}

func (e TaskError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.File.Name, e.Err)
}

func (e TaskError) Unwrap() error {
	return e.Err
}

type Options struct {
	Concurrency int
	Logger      *zap.Logger
	Metrics     *Metrics
}

func (o *Options) defaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Queue is safe for concurrent use. Construct one per process and hand it
// to whoever enqueues.
type Queue struct {
	opts Options
	ctx  context.Context

	mu        sync.Mutex
	waiting   taskHeap
	seq       uint64
	running   int
	pending   map[string]struct{}
	completed map[string]struct{}
	total     int
	idle      chan struct{}

	onProgress []func(Status)
	onIdle     []func(Status)
	onError    []func(TaskError)
}

func New(opts Options) *Queue {
	opts.defaults()
	return &Queue{
		opts:      opts,
		ctx:       context.Background(),
		pending:   make(map[string]struct{}),
		completed: make(map[string]struct{}),
		idle:      make(chan struct{}),
	}
}

// OnProgress registers fn to run after every task completion.
func (q *Queue) OnProgress(fn func(Status)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onProgress = append(q.onProgress, fn)
}

// OnIdle registers fn to run once each time the pending set drains to zero.
func (q *Queue) OnIdle(fn func(Status)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onIdle = append(q.onIdle, fn)
}

// OnError registers fn to run for every failed task.
func (q *Queue) OnError(fn func(TaskError)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onError = append(q.onError, fn)
}

// Enqueue admits file unless its project is already pending. It reports
// whether the task was admitted.
func (q *Queue) Enqueue(file FileDescriptor, fn ExtractFunc, priority Priority) bool {
	id := parser.NormalizeID(file.Name)

	q.mu.Lock()
	if _, dup := q.pending[id]; dup {
		q.mu.Unlock()
		q.opts.Metrics.deduped()
		q.opts.Logger.Debug("extraction already pending", zap.String("id", id), zap.String("file", file.Name))
		return false
	}

	q.pending[id] = struct{}{}
	q.total++
	q.seq++
	heap.Push(&q.waiting, &task{id: id, file: file, fn: fn, priority: priority, seq: q.seq})
	q.dispatchLocked()
	q.opts.Metrics.enqueued(priority)
	q.opts.Metrics.gauges(len(q.pending), q.running)
	q.mu.Unlock()

	q.opts.Logger.Debug("extraction queued",
		zap.String("id", id),
		zap.String("file", file.Name),
		zap.Stringer("priority", priority))
	return true
}

// Status returns a snapshot of the counters.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statusLocked()
}

// IsPending reports whether id is waiting or running.
func (q *Queue) IsPending(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.pending[id]
	return ok
}

// IsCompleted reports whether id finished successfully since the last Reset.
func (q *Queue) IsCompleted(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.completed[id]
	return ok
}

// Reset clears the completed set and total counter. Pending tasks keep
// running and are still deduplicated.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = make(map[string]struct{})
	q.total = len(q.pending)
}

// WaitIdle blocks until nothing is pending or ctx is done.
func (q *Queue) WaitIdle(ctx context.Context) error {
	q.mu.Lock()
	if len(q.pending) == 0 {
		q.mu.Unlock()
		return nil
	}
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) statusLocked() Status {
	return Status{
		Total:        q.total,
		Pending:      len(q.pending),
		Completed:    len(q.completed),
		IsProcessing: len(q.pending) > 0,
	}
}

// dispatchLocked starts waiting tasks while slots are free.
func (q *Queue) dispatchLocked() {
	for q.running < q.opts.Concurrency && q.waiting.Len() > 0 {
		t := heap.Pop(&q.waiting).(*task)
		q.running++
		go q.run(t)
	}
}

func (q *Queue) run(t *task) {
	started := time.Now()
	err := q.invoke(t)
	took := time.Since(started)
	q.opts.Metrics.finished(err, took)

	q.mu.Lock()
	q.running--
	delete(q.pending, t.id)
	if err == nil {
		q.completed[t.id] = struct{}{}
	}
	status := q.statusLocked()
	drained := len(q.pending) == 0
	if drained {
		close(q.idle)
		q.idle = make(chan struct{})
	}
	q.dispatchLocked()
	q.opts.Metrics.gauges(len(q.pending), q.running)
	progressFns := append([]func(Status){}, q.onProgress...)
	idleFns := append([]func(Status){}, q.onIdle...)
	errorFns := append([]func(TaskError){}, q.onError...)
	q.mu.Unlock()

	if err != nil {
		taskErr := TaskError{ID: t.id, File: t.file, Err: err}
		q.opts.Logger.Warn("extraction failed",
			zap.String("id", t.id),
			zap.String("file", t.file.Name),
			zap.Error(err))
		for _, fn := range errorFns {
			fn(taskErr)
		}
	} else {
		q.opts.Logger.Debug("extraction finished",
			zap.String("id", t.id),
			zap.Duration("took", took))
	}

	for _, fn := range progressFns {
		fn(status)
	}
	if drained {
		q.opts.Logger.Info("extraction queue idle",
			zap.Int("total", status.Total),
			zap.Int("completed", status.Completed))
		for _, fn := range idleFns {
			fn(status)
		}
	}
}

// invoke runs the task function and converts a panic into an error.
func (q *Queue) invoke(t *task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.opts.Logger.Error("extraction panicked",
				zap.String("file", t.file.Name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.fn(q.ctx, t.file)
}
