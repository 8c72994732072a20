package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/suPer8Hu/voice-audit/internal/app"
	"github.com/suPer8Hu/voice-audit/internal/config"
	"github.com/suPer8Hu/voice-audit/internal/db"
	"github.com/suPer8Hu/voice-audit/internal/httpapi"
	"github.com/suPer8Hu/voice-audit/internal/observe"
	"github.com/suPer8Hu/voice-audit/internal/store/rabbitmq"
	"github.com/suPer8Hu/voice-audit/internal/store/redisstore"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := observe.InitProvider(ctx, "voice-audit")
	if err != nil {
		log.Fatalf("metrics provider: %v", err)
	}
	defer func() { _ = shutdownMetrics(context.Background()) }()
	metrics, err := observe.Default()
	if err != nil {
		log.Fatalf("metrics: %v", err)
	}

	gdb := db.Connect(cfg.DBDriver, cfg.DBDSN)
	opts := app.Options{Metrics: metrics}

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rds.Close()
	if err := rds.Ping(ctx); err != nil {
		log.Printf("[Server] redis unavailable, report cache disabled err=%v", err)
	} else {
		opts.Cache = rds
	}

	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Fatalf("rabbit publisher: %v", err)
		}
		defer pub.Close()
		opts.Publisher = pub
	} else {
		log.Printf("[Server] RABBIT_URL not set, jobs stay queued until a worker republishes them")
	}

	a, err := app.New(cfg, gdb, opts)
	if err != nil {
		log.Fatalf("app: %v", err)
	}

	servers := []*http.Server{{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(cfg, a.Audit, a.Insights, metrics),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observe.Handler())
		servers = append(servers, &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			log.Printf("[Server] listening addr=%s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, srv := range servers {
			_ = srv.Shutdown(shutdownCtx)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server: %v", err)
	}
}
