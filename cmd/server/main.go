package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	_ "github.com/lib/pq"

	"github.com/eventpulse/engage/internal/api"
	"github.com/eventpulse/engage/internal/audience"
	"github.com/eventpulse/engage/internal/config"
	"github.com/eventpulse/engage/internal/dispatch"
	"github.com/eventpulse/engage/internal/mailer"
	"github.com/eventpulse/engage/internal/personalize"
	"github.com/eventpulse/engage/internal/pkg/distlock"
	"github.com/eventpulse/engage/internal/scheduler"
	"github.com/eventpulse/engage/internal/store"
	"github.com/eventpulse/engage/internal/store/memory"
	"github.com/eventpulse/engage/internal/store/postgres"
	"github.com/eventpulse/engage/internal/template"
	"github.com/eventpulse/engage/internal/tracking"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	log.Println("Starting EventPulse Engage server...")

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store: Postgres when configured, in-memory otherwise.
	var st store.Store
	var db *sql.DB
	if cfg.Database.URL != "" {
		db, err = openDB(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		pg := postgres.New(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to ensure schema: %v", err)
		}
		st = pg
		log.Println("Connected to database")
	} else {
		st = memory.New()
		log.Println("No DATABASE_URL set, using in-memory store")
	}

	// Sender: SES when credentials are present, log-only otherwise.
	var sender mailer.Sender
	if cfg.SES.AccessKey != "" && cfg.SES.SecretKey != "" {
		ses, err := mailer.NewSESSender(ctx, cfg.SES.AccessKey, cfg.SES.SecretKey,
			cfg.SES.Region, cfg.SES.FromName, cfg.SES.FromEmail)
		if err != nil {
			log.Fatalf("Failed to initialize SES sender: %v", err)
		}
		sender = ses
		log.Printf("SES sender initialized (region=%s from=%s)", cfg.SES.Region, cfg.SES.FromEmail)
	} else {
		sender = mailer.LogSender()
		log.Println("No SES credentials, emails will be logged only")
	}

	resolver := audience.NewResolver(st)
	renderer := template.NewRenderer(cfg.Tracking.BaseURL+"/resources", cfg.Tracking.BaseURL+"/feedback")

	dispatchOpts := []dispatch.Option{
		dispatch.WithBatchSize(cfg.Dispatch.BatchSize),
		dispatch.WithBatchDelay(time.Duration(cfg.Dispatch.BatchDelayMS) * time.Millisecond),
	}

	// Optional AI personalization and scoring via Bedrock.
	var scorer personalize.Scorer
	if cfg.Bedrock.Enabled {
		bedrock, err := personalize.NewBedrockClient(ctx, cfg.Bedrock.Region, cfg.Bedrock.ModelID)
		if err != nil {
			log.Printf("Bedrock unavailable, personalization disabled: %v", err)
		} else {
			dispatchOpts = append(dispatchOpts, dispatch.WithPersonalizer(bedrock))
			scorer = bedrock
			log.Printf("Bedrock personalization enabled (model=%s)", cfg.Bedrock.ModelID)
		}
	}

	// Optional Redis-backed send rate limiting.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("Redis unavailable, send rate limiting disabled: %v", err)
			rdb = nil
		} else {
			limiter := mailer.NewRateLimiter(rdb, mailer.Limits{
				PerSecond: cfg.Dispatch.SendsPerSecond,
				PerMinute: cfg.Dispatch.SendsPerMinute,
				Daily:     cfg.Dispatch.DailySendLimit,
			})
			defer limiter.Close()
			dispatchOpts = append(dispatchOpts, dispatch.WithRateLimiter(limiter))
			log.Printf("Send rate limiter enabled (%d/s, %d/min, %d/day)",
				cfg.Dispatch.SendsPerSecond, cfg.Dispatch.SendsPerMinute, cfg.Dispatch.DailySendLimit)
		}
	}

	dispatcher := dispatch.New(st, resolver, renderer, sender, dispatchOpts...)

	sched := scheduler.New(st, dispatcher, scorer, scheduler.Intervals{
		Promote:        cfg.Scheduler.PromoteInterval,
		Engagement:     cfg.Scheduler.EngagementInterval,
		Reminder:       cfg.Scheduler.ReminderInterval,
		Prune:          cfg.Scheduler.PruneInterval,
		Retention:      time.Duration(cfg.Scheduler.RetentionDays) * 24 * time.Hour,
		ActivityWindow: time.Duration(cfg.Scheduler.ActivityWindowDays) * 24 * time.Hour,
	})
	// With a shared store another instance (e.g. the worker binary) may run
	// the same triggers, so guard ticks with a distributed lock.
	if rdb != nil || db != nil {
		sched.UseLocks(func(name string) distlock.Lock {
			return distlock.New(rdb, db, "scheduler:"+name, 5*time.Minute)
		})
	}
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	trackingSvc := tracking.New(st, cfg.Tracking.SigningKey, cfg.Tracking.BaseURL)
	handlers := api.NewHandlers(st, sched, dispatcher, resolver, renderer, tracking.NewHandler(trackingSvc))
	router := api.SetupRoutes(handlers)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
