// The worker binary runs the campaign scheduler and send path without
// the HTTP API, for deployments that separate the two.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	_ "github.com/lib/pq"

	"github.com/eventpulse/engage/internal/audience"
	"github.com/eventpulse/engage/internal/config"
	"github.com/eventpulse/engage/internal/dispatch"
	"github.com/eventpulse/engage/internal/mailer"
	"github.com/eventpulse/engage/internal/personalize"
	"github.com/eventpulse/engage/internal/pkg/distlock"
	"github.com/eventpulse/engage/internal/scheduler"
	"github.com/eventpulse/engage/internal/store/postgres"
	"github.com/eventpulse/engage/internal/template"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	log.Println("Starting EventPulse Engage worker...")

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required for the worker")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(ctx); err != nil {
		cancel()
		log.Fatalf("Failed to ping database: %v", err)
	}
	cancel()
	log.Println("Connected to database")

	st := postgres.New(db)

	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	if err := st.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	var sender mailer.Sender
	if cfg.SES.AccessKey != "" && cfg.SES.SecretKey != "" {
		ses, err := mailer.NewSESSender(ctx, cfg.SES.AccessKey, cfg.SES.SecretKey,
			cfg.SES.Region, cfg.SES.FromName, cfg.SES.FromEmail)
		if err != nil {
			log.Fatalf("Failed to initialize SES sender: %v", err)
		}
		sender = ses
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

	var scorer personalize.Scorer
	if cfg.Bedrock.Enabled {
		bedrock, err := personalize.NewBedrockClient(ctx, cfg.Bedrock.Region, cfg.Bedrock.ModelID)
		if err != nil {
			log.Printf("Bedrock unavailable, personalization disabled: %v", err)
		} else {
			dispatchOpts = append(dispatchOpts, dispatch.WithPersonalizer(bedrock))
			scorer = bedrock
		}
	}

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
	// The API server may run the same triggers against this store; the lock
	// keeps each tick on a single instance.
	sched.UseLocks(func(name string) distlock.Lock {
		return distlock.New(rdb, db, "scheduler:"+name, 5*time.Minute)
	})
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Worker running...")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Worker stopped")
}
