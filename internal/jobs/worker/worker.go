package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/peai-backend/internal/data/repos"
	"github.com/yungbote/peai-backend/internal/jobs/runtime"
	"github.com/yungbote/peai-backend/internal/observability"
	"github.com/yungbote/peai-backend/internal/platform/dbctx"
	"github.com/yungbote/peai-backend/internal/platform/envutil"
	"github.com/yungbote/peai-backend/internal/platform/logger"
)

type Config struct {
	Concurrency  int
	PollInterval time.Duration
	// StaleAfter is how long a running job may go without a heartbeat before
	// it is marked failed.
	StaleAfter time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		Concurrency:  envutil.Int("WORKER_CONCURRENCY", 4),
		PollInterval: envutil.Duration("WORKER_POLL_INTERVAL", time.Second),
		StaleAfter:   envutil.Duration("WORKER_STALE_AFTER", 30*time.Minute),
	}
}

type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *runtime.Registry
	metrics  *observability.Metrics
	cfg      Config
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry, metrics *observability.Metrics, cfg Config) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 30 * time.Minute
	}
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		metrics:  metrics,
		cfg:      cfg,
	}
}

// Run starts the pool and blocks until ctx is done and every loop returned.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Starting job worker pool",
		"concurrency", w.cfg.Concurrency,
		"poll_interval", w.cfg.PollInterval.String(),
		"job_types", w.registry.Types(),
	)
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.runLoop(ctx, workerID)
		}(i + 1)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.staleLoop(ctx)
	}()
	wg.Wait()
	return nil
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// Drain the queue before waiting for the next tick.
			for ctx.Err() == nil {
				ran, err := w.RunOnce(ctx)
				if err != nil {
					w.log.Warn("ClaimNextQueued failed", "worker_id", workerID, "error", err)
					break
				}
				if !ran {
					break
				}
			}
		}
	}
}

func (w *Worker) staleLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.StaleAfter / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.repo.FailStaleRunning(dbctx.Context{Ctx: ctx}, time.Now().Add(-w.cfg.StaleAfter))
			if err != nil {
				w.log.Warn("FailStaleRunning failed", "error", err)
				continue
			}
			if n > 0 {
				w.log.Warn("Marked stale jobs failed", "count", n)
			}
		}
	}
}

// RunOnce claims and executes at most one queued job. It reports whether a
// job was claimed.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.repo.ClaimNextQueued(dbctx.Context{Ctx: ctx, Tx: w.db})
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	start := time.Now()
	jc := runtime.NewContext(ctx, w.db, job, w.repo, w.log)
	h, ok := w.registry.Get(job.JobType)
	if !ok {
		jc.Log.Warn("No handler registered for job_type")
		jc.Fail("dispatch", &missingHandlerError{JobType: job.JobType})
		w.metrics.ObserveJob(job.JobType, jc.Job.Status, time.Since(start))
		return true, nil
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				jc.Log.Error("Job handler panic", "panic", fmt.Sprint(r))
				jc.Fail("panic", errFromRecover(r))
			}
		}()
		if runErr := h.Run(jc); runErr != nil && !jc.Terminal() {
			jc.Fail("run", runErr)
		}
	}()
	if !jc.Terminal() {
		jc.Succeed("done", nil)
	}

	w.metrics.ObserveJob(job.JobType, jc.Job.Status, time.Since(start))
	jc.Log.Info("Job finished", "status", jc.Job.Status, "duration_ms", time.Since(start).Milliseconds())
	return true, nil
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string { return "no handler registered for job_type=" + e.JobType }

func errFromRecover(v any) error { return &panicError{Val: v} }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
