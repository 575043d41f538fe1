// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package pipeline

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/segmentum/internal/config"
	"github.com/tomtom215/segmentum/internal/logging"
	"github.com/tomtom215/segmentum/internal/metrics"
)

// ActivityProcessor is the work a Pool runs. *Processor implements it.
type ActivityProcessor interface {
	ProcessActivity(ctx context.Context, activityID string) (*Result, error)
	BackfillSegment(ctx context.Context, segmentID string) (*BackfillResult, error)
}

type jobKind int

const (
	jobActivity jobKind = iota
	jobBackfill
)

func (k jobKind) String() string {
	if k == jobBackfill {
		return "backfill"
	}
	return "activity"
}

type job struct {
	kind          jobKind
	id            string
	attempt       int
	correlationID string
}

// Pool runs activity processing on a fixed number of workers fed by a
// bounded queue. Submit never blocks. Failed jobs are retried with
// exponential backoff unless the failure is an input defect.
type Pool struct {
	proc ActivityProcessor
	cfg  config.WorkerConfig

	queue   chan job
	stopped chan struct{}
	once    sync.Once
	running atomic.Bool
	retries sync.WaitGroup
}

// NewPool creates a Pool. PoolSize 0 means runtime.NumCPU().
func NewPool(proc ActivityProcessor, cfg config.WorkerConfig) *Pool {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = runtime.NumCPU()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	return &Pool{
		proc:    proc,
		cfg:     cfg,
		queue:   make(chan job, cfg.QueueSize),
		stopped: make(chan struct{}),
	}
}

// Submit queues an activity for processing.
func (p *Pool) Submit(ctx context.Context, activityID string) error {
	return p.enqueue(job{kind: jobActivity, id: activityID, attempt: 1, correlationID: logging.CorrelationIDFromContext(ctx)})
}

// SubmitBackfill queues a segment backfill.
func (p *Pool) SubmitBackfill(ctx context.Context, segmentID string) error {
	return p.enqueue(job{kind: jobBackfill, id: segmentID, attempt: 1, correlationID: logging.CorrelationIDFromContext(ctx)})
}

func (p *Pool) enqueue(j job) error {
	select {
	case <-p.stopped:
		return ErrPoolStopped
	default:
	}
	select {
	case p.queue <- j:
		metrics.SetWorkerQueueDepth(len(p.queue))
		return nil
	default:
		return ErrQueueFull
	}
}

// QueueDepth returns the number of queued jobs.
func (p *Pool) QueueDepth() int {
	return len(p.queue)
}

// Running reports whether the workers are started.
func (p *Pool) Running() bool {
	return p.running.Load()
}

// Run starts the workers and blocks until ctx is cancelled. A job already
// being processed runs to completion; queued jobs are left unprocessed.
func (p *Pool) Run(ctx context.Context) error {
	p.running.Store(true)
	defer p.running.Store(false)

	logging.Info().Int("workers", p.cfg.PoolSize).Int("queue_size", p.cfg.QueueSize).Msg("Worker pool started")

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.PoolSize; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.work(ctx)
		}()
	}
	wg.Wait()

	logging.Info().Int("queued", len(p.queue)).Msg("Worker pool stopped")
	return ctx.Err()
}

// Serve implements suture.Service.
func (p *Pool) Serve(ctx context.Context) error {
	return p.Run(ctx)
}

func (p *Pool) String() string {
	return "worker-pool"
}

// Stop rejects further submissions and waits for pending retry timers.
func (p *Pool) Stop() {
	p.once.Do(func() { close(p.stopped) })
	p.retries.Wait()
}

func (p *Pool) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.queue:
			metrics.SetWorkerQueueDepth(len(p.queue))
			p.runJob(ctx, j)
		}
	}
}

// runJob processes one job. Processing is detached from ctx so shutdown
// does not abandon an activity halfway through write-back.
func (p *Pool) runJob(ctx context.Context, j job) {
	jobCtx := context.WithoutCancel(ctx)
	if j.correlationID != "" {
		jobCtx = logging.ContextWithCorrelationID(jobCtx, j.correlationID)
	} else {
		jobCtx = logging.ContextWithNewCorrelationID(jobCtx)
	}

	var err error
	switch j.kind {
	case jobBackfill:
		_, err = p.proc.BackfillSegment(jobCtx, j.id)
	default:
		_, err = p.proc.ProcessActivity(jobCtx, j.id)
	}
	if err == nil {
		return
	}

	log := logging.Ctx(jobCtx).With().
		Str("job", j.kind.String()).
		Str("id", j.id).
		Int("attempt", j.attempt).
		Logger()

	if !Retryable(err) || j.attempt >= p.cfg.MaxAttempts {
		log.Warn().Err(err).Bool("retryable", Retryable(err)).Msg("Job failed permanently")
		return
	}

	delay := p.backoff(j.attempt)
	log.Warn().Err(err).Dur("retry_in", delay).Msg("Job failed, retrying")
	metrics.RecordWorkerRetry()

	next := j
	next.attempt++
	p.retries.Add(1)
	go func() {
		defer p.retries.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		case <-p.stopped:
			return
		}
		if err := p.enqueue(next); err != nil && !errors.Is(err, ErrPoolStopped) {
			log.Error().Err(err).Msg("Dropping job retry")
		}
	}()
}

// backoff returns InitialBackoff * 2^(attempt-1), capped at MaxBackoff.
func (p *Pool) backoff(attempt int) time.Duration {
	d := p.cfg.InitialBackoff
	for i := 1; i < attempt && d < p.cfg.MaxBackoff; i++ {
		d *= 2
	}
	if d > p.cfg.MaxBackoff {
		d = p.cfg.MaxBackoff
	}
	return d
}
