// Package worker consumes job deliveries from RabbitMQ and runs the periodic sweep.
package worker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/voice-audit/internal/jobs"
	"github.com/suPer8Hu/voice-audit/internal/observe"
	"github.com/suPer8Hu/voice-audit/internal/store/rabbitmq"
)

type Runner interface {
	Run(ctx context.Context, jobID string) error
}

type Retrier interface {
	PublishRetry(ctx context.Context, jobID string, delay time.Duration) error
}

type PoolConfig struct {
	Concurrency int
	MaxAttempts int
	RetryDelay  time.Duration // doubled after each failed attempt
}

// Pool runs deliveries on a fixed number of goroutines. Failed jobs are parked on the
// retry queue until MaxAttempts, then rejected into the dead-letter queue.
type Pool struct {
	cfg     PoolConfig
	runner  Runner
	jobs    *jobs.Repo
	retry   Retrier
	metrics *observe.Metrics
}

func NewPool(cfg PoolConfig, runner Runner, repo *jobs.Repo, retry Retrier, metrics *observe.Metrics) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	return &Pool{cfg: cfg, runner: runner, jobs: repo, retry: retry, metrics: metrics}
}

// Run dispatches deliveries until ctx is done or msgs is closed, then waits for in-flight jobs.
func (p *Pool) Run(ctx context.Context, msgs <-chan amqp.Delivery) {
	queue := make(chan amqp.Delivery, p.cfg.Concurrency*2)

	var wg sync.WaitGroup
	wg.Add(p.cfg.Concurrency)
	for i := 0; i < p.cfg.Concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range queue {
				p.handle(ctx, workerID, d)
			}
		}(i)
	}

	defer func() {
		close(queue)
		wg.Wait()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[Worker] shutting down")
			return
		case d, ok := <-msgs:
			if !ok {
				log.Printf("[Worker] delivery channel closed")
				return
			}
			queue <- d
		}
	}
}

func (p *Pool) handle(ctx context.Context, workerID int, d amqp.Delivery) {
	m, err := rabbitmq.DecodeJobMessage(d.Body)
	if err != nil {
		log.Printf("[Worker] worker=%d bad message: %v", workerID, err)
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	runErr := p.runner.Run(ctx, m.JobID)

	j, err := p.jobs.GetByID(ctx, m.JobID)
	if err != nil {
		log.Printf("[Worker] worker=%d job=%s lookup failed err=%v", workerID, m.JobID, err)
		_ = d.Nack(false, false)
		return
	}
	p.metrics.JobProcessed(ctx, string(j.Kind), runErr)

	if runErr == nil {
		if err := d.Ack(false); err != nil {
			log.Printf("[Worker] worker=%d ack failed job=%s err=%v", workerID, m.JobID, err)
		}
		return
	}

	log.Printf("[Worker] worker=%d job=%s kind=%s attempt=%d failed cost=%s err=%v",
		workerID, j.ID, j.Kind, j.Attempts, time.Since(start), runErr)
	if err := p.scheduleRetry(ctx, j); err != nil {
		log.Printf("[Worker] worker=%d job=%s dead-lettered: %v", workerID, j.ID, err)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

var errAttemptsExhausted = errors.New("attempts exhausted")

func (p *Pool) scheduleRetry(ctx context.Context, j *jobs.Job) error {
	if p.retry == nil || j.Attempts >= p.cfg.MaxAttempts {
		return errAttemptsExhausted
	}
	return p.retry.PublishRetry(ctx, j.ID, p.backoff(j.Attempts))
}

// backoff is RetryDelay after the first attempt, doubling after each further one.
func (p *Pool) backoff(attempts int) time.Duration {
	d := p.cfg.RetryDelay
	for i := 1; i < attempts; i++ {
		d *= 2
	}
	return d
}
