package worker

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kacperjurak/goarraycore/pkg/models"
	"github.com/kacperjurak/goarraycore/pkg/profiling"
)

// Pool manages concurrent array analysis workers
type Pool struct {
	jobs         chan models.WorkItem
	results      chan models.WorkResult
	webhookQueue chan models.WebhookItem
	workers      int
	bufferPool   sync.Pool
	shutdown     chan struct{}
	closeOnce    sync.Once
	wg           sync.WaitGroup
	inflight     sync.WaitGroup
	processor    ProcessorFunc
	sender       Sender
	timeout      time.Duration
	profile      bool
}

// ProcessorFunc runs one analysis request of the given kind.
type ProcessorFunc func(ctx context.Context, kind string, req interface{}) (models.Analysis, error)

// Sender delivers webhook items.
type Sender interface {
	Send(item models.WebhookItem) error
}

// Options holds configuration for creating a new worker pool
type Options struct {
	Workers   int
	Processor ProcessorFunc
	// Sender may be nil, in which case webhooks are dropped.
	Sender Sender
	// Timeout bounds a single job; zero means no limit.
	Timeout time.Duration
	// Profile logs per-job timing and memory.
	Profile bool
}

// New creates a new worker pool with specified configuration
func New(opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 5
	}

	// do not block queueing new jobs, and results even if the workers are already busy jobs/results * 2
	pool := &Pool{
		jobs:         make(chan models.WorkItem, opts.Workers*2),
		results:      make(chan models.WorkResult, opts.Workers*2),
		webhookQueue: make(chan models.WebhookItem, opts.Workers*4), // webhooks are slower than jobs
		workers:      opts.Workers,
		shutdown:     make(chan struct{}),
		processor:    opts.Processor,
		sender:       opts.Sender,
		timeout:      opts.Timeout,
		profile:      opts.Profile,
		bufferPool: sync.Pool{
			New: func() interface{} {
				// Auto-sized grids start at 181 samples; cuts at 361.
				return &models.BufferSet{Pattern: make([]float64, 0, 512)}
			},
		},
	}

	pool.start()
	return pool
}

// start initializes and starts all workers
func (p *Pool) start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.wg.Add(1)
	go p.webhookProcessor()

	log.Infof("🔧 Worker pool started with %d workers", p.workers)
}

// worker processes jobs from the jobs channel
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobs:
			result := p.processJob(id, job)
			if job.Reply != nil {
				job.Reply <- result
				continue
			}
			select {
			case p.results <- result:
			case <-p.shutdown:
				return
			}

		case <-p.shutdown:
			return
		}
	}
}

// processJob runs the processor with buffer reuse
func (p *Pool) processJob(id int, job models.WorkItem) models.WorkResult {
	buffers := p.bufferPool.Get().(*models.BufferSet)
	defer p.bufferPool.Put(buffers)
	buffers.Pattern = buffers.Pattern[:0]

	if p.profile {
		defer profiling.NewWorkerProfiler(id, job.Kind).Finish()
	}

	ctx := context.Background()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	startTime := time.Now()
	analysis, err := p.processor(ctx, job.Kind, job.Request)
	processingTime := time.Since(startTime)

	result := models.WorkResult{
		ID:             job.ID,
		RequestID:      job.RequestID,
		BatchID:        job.BatchID,
		Iteration:      job.Iteration,
		Kind:           job.Kind,
		ProcessingTime: processingTime,
		Success:        err == nil,
	}
	if err != nil {
		result.Error = err.Error()
		log.WithFields(log.Fields{
			"request_id": job.RequestID,
			"kind":       job.Kind,
			"iteration":  job.Iteration,
		}).WithError(err).Warn("⚠️  Job failed")
		return result
	}

	// The analysis may be shared with the response cache, so the pattern
	// handed on is a private copy.
	p.floorPattern(analysis.Pattern, buffers)
	pattern := make([]float64, len(buffers.Pattern))
	copy(pattern, buffers.Pattern)
	analysis.Pattern = pattern

	result.Analysis = analysis
	return result
}

// floorPattern copies g into the pooled buffer, raising anything below
// the report floor (or NaN) to it.
func (p *Pool) floorPattern(g []float64, buffers *models.BufferSet) {
	n := len(g)
	if cap(buffers.Pattern) < n {
		// Allocate with some extra capacity to handle size variations
		buffers.Pattern = make([]float64, n, n+n>>2)
	} else {
		buffers.Pattern = buffers.Pattern[:n]
	}
	for i, v := range g {
		if !(v >= models.FloorDB) {
			v = models.FloorDB
		}
		buffers.Pattern[i] = v
	}
}

// webhookProcessor handles webhook requests asynchronously
func (p *Pool) webhookProcessor() {
	defer p.wg.Done()

	for {
		select {
		case webhook := <-p.webhookQueue:
			// Process webhook asynchronously without blocking workers
			p.inflight.Add(1)
			go func() {
				defer p.inflight.Done()
				p.sendWebhook(webhook)
			}()

		case <-p.shutdown:
			return
		}
	}
}

func (p *Pool) sendWebhook(webhook models.WebhookItem) {
	if p.sender == nil {
		log.WithField("request_id", webhook.RequestID).Debug("No webhook configured, dropping result")
		return
	}
	prof := profiling.NewWebhookProfiler(webhook.RequestID)
	err := p.sender.Send(webhook)
	if err != nil {
		log.WithField("request_id", webhook.RequestID).WithError(err).Error("❌ Webhook delivery failed")
	}
	if p.profile {
		prof.Finish(err == nil)
	}
}

// SubmitJob submits a job to the worker pool. It blocks while the queue is
// full and reports false once the pool is shutting down.
func (p *Pool) SubmitJob(job models.WorkItem) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		log.Warn("⚠️  Worker pool jobs channel full, job may be delayed")
	}
	select {
	case p.jobs <- job:
		return true
	case <-p.shutdown:
		return false
	}
}

// GetResult retrieves a result for a job submitted without a reply channel
// (non-blocking)
func (p *Pool) GetResult() (models.WorkResult, bool) {
	select {
	case result := <-p.results:
		return result, true
	default:
		return models.WorkResult{}, false
	}
}

// QueueWebhook queues a webhook for async processing
func (p *Pool) QueueWebhook(webhook models.WebhookItem) {
	select {
	case p.webhookQueue <- webhook:
	default:
		log.WithField("request_id", webhook.RequestID).Warn("⚠️  Webhook queue full, dropping webhook")
	}
}

// Done is closed once Shutdown begins. Jobs still queued at that point are
// never run, so callers waiting on a reply should also select on Done.
func (p *Pool) Done() <-chan struct{} {
	return p.shutdown
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int {
	return p.workers
}

// Shutdown stops the workers and waits for webhooks already being sent.
// Queued jobs that no worker picked up are dropped.
func (p *Pool) Shutdown() {
	p.closeOnce.Do(func() {
		log.Info("🛑 Shutting down worker pool...")
		close(p.shutdown)
		p.wg.Wait()
		p.inflight.Wait()
		log.Info("✅ Worker pool shutdown complete")
	})
}
