package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/suPer8Hu/voice-audit/internal/app"
	"github.com/suPer8Hu/voice-audit/internal/config"
	"github.com/suPer8Hu/voice-audit/internal/db"
	"github.com/suPer8Hu/voice-audit/internal/jobs"
	"github.com/suPer8Hu/voice-audit/internal/observe"
	"github.com/suPer8Hu/voice-audit/internal/store/rabbitmq"
	"github.com/suPer8Hu/voice-audit/internal/store/redisstore"
	"github.com/suPer8Hu/voice-audit/internal/worker"
)

func main() {
	cfg := config.Load()
	if cfg.RabbitURL == "" {
		log.Fatalf("RABBIT_URL is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := observe.InitProvider(ctx, "voice-audit-worker")
	if err != nil {
		log.Fatalf("metrics provider: %v", err)
	}
	defer func() { _ = shutdownMetrics(context.Background()) }()
	metrics, err := observe.Default()
	if err != nil {
		log.Fatalf("metrics: %v", err)
	}

	gdb := db.Connect(cfg.DBDriver, cfg.DBDSN)

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rds.Close()
	opts := app.Options{Metrics: metrics}
	var locker worker.Locker
	if err := rds.Ping(ctx); err != nil {
		log.Printf("[Worker] redis unavailable, sweeping without lock and report cache err=%v", err)
	} else {
		opts.Cache = rds
		locker = rds
	}

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("rabbit publisher: %v", err)
	}
	defer pub.Close()
	opts.Publisher = pub

	a, err := app.New(cfg, gdb, opts)
	if err != nil {
		log.Fatalf("app: %v", err)
	}

	runner := jobs.NewRunner(a.JobsRepo)
	runner.Handle(jobs.KindTranscribe, a.Audit.TranscribeResponse)
	runner.Handle(jobs.KindSynthesize, a.Audit.SynthesizeQuestion)
	runner.Handle(jobs.KindNotify, a.Insights.NotifyStakeholders)

	consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, cfg.WorkerConcurrency)
	if err != nil {
		log.Fatalf("rabbit consumer: %v", err)
	}
	defer consumer.Close()

	maint := &worker.Maintenance{
		Sweeper:     a.Audit,
		Republisher: a.Jobs,
		Locker:      locker,
		Interval:    cfg.SweepInterval,
		Threshold:   cfg.AbandonAfter,
	}
	go maint.Run(ctx)

	log.Printf("[Worker] started queue=%s concurrency=%d", cfg.RabbitQueue, cfg.WorkerConcurrency)
	pool := worker.NewPool(worker.PoolConfig{Concurrency: cfg.WorkerConcurrency}, runner, a.JobsRepo, pub, metrics)
	pool.Run(ctx, consumer.Deliveries())
}
