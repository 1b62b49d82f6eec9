// Package inbox implements a directory-polling front end (C10) that feeds
// files sitting in a watched folder into the pipeline orchestrator, for
// deployments that drop invoices on a filesystem rather than uploading
// them over HTTP.
package inbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/orchestrator"
)

// Submitter is the orchestrator surface the worker needs; narrowed to ease
// testing with a stub.
type Submitter interface {
	Submit(ctx context.Context, fileBytes []byte, filename string) (string, error)
}

// Status reports the poller's current health, mirroring the shape of the
// donor's InvoiceProcessorStatus.
type Status struct {
	IsRunning      bool
	LastPolled     time.Time
	ProcessedCount int
	FailedCount    int
	LastError      error
}

// Worker polls dir on a fixed interval, submits every file it finds, and
// moves each file into a "processed" or "failed" subdirectory so it is
// never resubmitted on the next tick.
type Worker struct {
	dir          string
	pollInterval time.Duration
	submitter    Submitter
	logger       *zap.Logger

	mu             sync.RWMutex
	ctx            context.Context
	cancel         context.CancelFunc
	isRunning      bool
	lastPolled     time.Time
	processedCount int
	failedCount    int
	lastError      error
}

// New builds a Worker. dir is created on Start if it does not exist.
func New(dir string, pollInterval time.Duration, submitter Submitter, logger *zap.Logger) *Worker {
	return &Worker{dir: dir, pollInterval: pollInterval, submitter: submitter, logger: logger}
}

// Start begins the polling loop in a background goroutine and returns
// immediately.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("inbox worker already running")
	}
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		w.mu.Unlock()
		return fmt.Errorf("creating inbox dir %s: %w", w.dir, err)
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true
	w.mu.Unlock()

	if w.logger != nil {
		w.logger.Info("inbox worker started", zap.String("dir", w.dir), zap.Duration("poll_interval", w.pollInterval))
	}

	go w.pollLoop()
	return nil
}

// Stop cancels the polling loop. It does not block for the loop to exit.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.isRunning {
		return
	}
	w.isRunning = false
	if w.cancel != nil {
		w.cancel()
	}
}

// Name identifies the worker for Manager logging, matching the donor's
// internal/worker.Worker contract.
func (w *Worker) Name() string { return "inbox:" + w.dir }

// GetStatus returns a point-in-time snapshot.
func (w *Worker) GetStatus() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Status{
		IsRunning:      w.isRunning,
		LastPolled:     w.lastPolled,
		ProcessedCount: w.processedCount,
		FailedCount:    w.failedCount,
		LastError:      w.lastError,
	}
}

func (w *Worker) pollLoop() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.pollOnce()
		}
	}
}

func (w *Worker) pollOnce() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.mu.Lock()
		w.lastError = err
		w.mu.Unlock()
		if w.logger != nil {
			w.logger.Error("inbox poll failed", zap.Error(err))
		}
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !orchestrator.AllowedExtensions[filepath.Ext(entry.Name())] {
			continue
		}
		w.submitOne(filepath.Join(w.dir, entry.Name()), entry.Name())
	}

	w.mu.Lock()
	w.lastPolled = time.Now()
	w.mu.Unlock()
}

func (w *Worker) submitOne(path, name string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.recordFailure(path, err)
		return
	}
	jobID, err := w.submitter.Submit(w.ctx, data, name)
	if err != nil {
		w.recordFailure(path, err)
		return
	}
	if w.logger != nil {
		w.logger.Info("inbox file submitted", zap.String("file", name), zap.String("job_id", jobID))
	}
	w.archive(path, "processed")
	w.mu.Lock()
	w.processedCount++
	w.mu.Unlock()
}

func (w *Worker) recordFailure(path string, err error) {
	if w.logger != nil {
		w.logger.Warn("inbox file failed", zap.String("file", path), zap.Error(err))
	}
	w.archive(path, "failed")
	w.mu.Lock()
	w.failedCount++
	w.lastError = err
	w.mu.Unlock()
}

// archive moves a consumed file into a subdirectory of the inbox so it is
// never resubmitted on the next tick.
func (w *Worker) archive(path, subdir string) {
	dest := filepath.Join(w.dir, subdir)
	if err := os.MkdirAll(dest, 0755); err != nil {
		if w.logger != nil {
			w.logger.Warn("inbox archive mkdir failed", zap.Error(err))
		}
		return
	}
	if err := os.Rename(path, filepath.Join(dest, filepath.Base(path))); err != nil {
		if w.logger != nil {
			w.logger.Warn("inbox archive move failed", zap.Error(err))
		}
	}
}
