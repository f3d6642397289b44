package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/content"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/dedup"
	dedupmetrics "github.com/Ghostmonday/Goldleaves-sub001/internal/dedup/metrics"
	dirhandler "github.com/Ghostmonday/Goldleaves-sub001/internal/directory/handler"
	dirservice "github.com/Ghostmonday/Goldleaves-sub001/internal/directory/service"
	dirstore "github.com/Ghostmonday/Goldleaves-sub001/internal/directory/store"
	feedbackhandler "github.com/Ghostmonday/Goldleaves-sub001/internal/feedback/handler"
	feedbackmetrics "github.com/Ghostmonday/Goldleaves-sub001/internal/feedback/metrics"
	feedbackservice "github.com/Ghostmonday/Goldleaves-sub001/internal/feedback/service"
	feedbackstore "github.com/Ghostmonday/Goldleaves-sub001/internal/feedback/store"
	formshandler "github.com/Ghostmonday/Goldleaves-sub001/internal/forms/handler"
	formmetrics "github.com/Ghostmonday/Goldleaves-sub001/internal/forms/metrics"
	formservice "github.com/Ghostmonday/Goldleaves-sub001/internal/forms/service"
	formstore "github.com/Ghostmonday/Goldleaves-sub001/internal/forms/store"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/notify"
	notifymetrics "github.com/Ghostmonday/Goldleaves-sub001/internal/notify/metrics"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/platform/config"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/platform/httpserver"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/platform/kafka"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/platform/logger"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/platform/metrics"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/platform/middleware"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/platform/postgres"
	platformredis "github.com/Ghostmonday/Goldleaves-sub001/internal/platform/redis"
	rewardmetrics "github.com/Ghostmonday/Goldleaves-sub001/internal/rewards/metrics"
	rewardshandler "github.com/Ghostmonday/Goldleaves-sub001/internal/rewards/handler"
	rewardservice "github.com/Ghostmonday/Goldleaves-sub001/internal/rewards/service"
	rewardstore "github.com/Ghostmonday/Goldleaves-sub001/internal/rewards/store"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/throttle"
	httptransport "github.com/Ghostmonday/Goldleaves-sub001/internal/transport/http"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/circuit"
	platformtx "github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/tx"
)

const startupTimeout = 15 * time.Second

// formIndex is everything the registry hangs off the form store: the form
// lifecycle port, the duplicate-detection index, and the existence check the
// feedback service performs on intake.
type formIndex interface {
	formservice.Store
	dedup.FormIndex
	feedbackservice.FormCatalog
}

// feedbackBackend couples report persistence with the reviewer roster; both
// live in the same store so triage assignment commits with the report.
type feedbackBackend interface {
	feedbackservice.Store
	feedbackservice.Roster
}

// main wires configuration, storage, domain services and transport, then
// runs the server until a shutdown signal. Business rules live in the
// internal service packages; this file only decides which implementation of
// each port runs.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "goldleaves: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)
	m := metrics.New()
	notifyMetrics := notifymetrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startupCtx, cancelStartup := context.WithTimeout(ctx, startupTimeout)
	defer cancelStartup()

	var readiness []httptransport.ReadyCheck

	// Notifications. Without brokers the dispatcher logs events instead of
	// publishing them.
	var publisher notify.Publisher = notify.NewLogPublisher(log)
	kafkaClient, err := kafka.New(cfg.Kafka)
	if err != nil {
		fatal(log, "kafka client", err)
	}
	if kafkaClient != nil {
		defer kafkaClient.Close()
		if err := kafkaClient.EnsureTopic(startupCtx, cfg.Kafka.Topic); err != nil {
			log.Warn("kafka topic check failed", "topic", cfg.Kafka.Topic, "error", err)
		}
		publisher = notify.NewKafkaPublisher(kafkaClient, cfg.Kafka.Topic,
			notify.WithKafkaLogger(log),
			notify.WithKafkaMetrics(notifyMetrics),
			notify.WithBreaker(circuit.New("kafka-publish")),
		)
		readiness = append(readiness, httptransport.ReadyCheck{Name: "kafka", Check: kafkaClient.Health})
	}
	dispatcher := notify.NewDispatcher(publisher, notify.WithLogger(log), notify.WithMetrics(notifyMetrics))
	go func() { _ = dispatcher.Run(ctx) }()

	// Storage. An empty Postgres URL selects the in-memory stores, the
	// development and single-node arrangement.
	var (
		forms       formIndex
		stats       rewardservice.StatsStore
		ledger      rewardservice.LedgerStore
		dirStore    dirservice.Store
		fbStore     feedbackBackend
		registryTx  formservice.StoreTx
		feedbackTx  feedbackservice.StoreTx
		storageMode = "memory"
	)
	if cfg.Postgres.URL != "" {
		db, err := postgres.Open(startupCtx, cfg.Postgres)
		if err != nil {
			fatal(log, "postgres", err)
		}
		defer db.Close()
		if err := postgres.EnsureSchema(startupCtx, db); err != nil {
			fatal(log, "postgres schema", err)
		}
		pool, err := postgres.OpenPool(startupCtx, cfg.Postgres)
		if err != nil {
			fatal(log, "pgx pool", err)
		}
		defer pool.Close()

		pgFeedback := feedbackstore.NewPostgres(pool)
		forms = formstore.NewPostgres(db)
		stats = rewardstore.NewPostgresStats(db)
		ledger = rewardstore.NewPostgresLedger(db)
		dirStore = dirstore.NewPostgres(db)
		fbStore = pgFeedback
		registryTx = newRegistryPostgresTx(db)
		feedbackTx = pgFeedback
		storageMode = "postgres"
		readiness = append(readiness,
			httptransport.ReadyCheck{Name: "postgres", Check: db.PingContext},
			httptransport.ReadyCheck{Name: "postgres_pool", Check: pool.Ping},
		)
	} else {
		memDir := dirstore.NewInMemory()
		seeded := dirstore.SeedBootstrapJurisdictions(ctx, memDir)

		sharedTx := platformtx.NewSharded()
		forms = formstore.NewInMemory()
		stats = rewardstore.NewMemoryStats()
		ledger = rewardstore.NewMemoryLedger()
		dirStore = memDir
		fbStore = feedbackstore.NewInMemory()
		registryTx = sharedTx
		feedbackTx = sharedTx
		log.Warn("running on in-memory stores; data is lost on restart",
			"seeded_jurisdictions", len(seeded))
	}

	// Domain services. Form content lives in the in-process blob store until
	// an object storage backend is wired; the relational schema only carries
	// handles and digests either way.
	directory := dirservice.New(dirStore, dirservice.WithLogger(log))
	rewards := rewardservice.New(stats, ledger, registryTx,
		rewardservice.WithLogger(log),
		rewardservice.WithMetrics(rewardmetrics.New()),
	)
	formsService := formservice.New(
		forms,
		dedup.New(forms, dedup.WithLogger(log), dedup.WithMetrics(dedupmetrics.New())),
		content.NewInMemory(),
		directory,
		rewards,
		registryTx,
		formservice.WithLogger(log),
		formservice.WithMetrics(formmetrics.New()),
		formservice.WithNotifier(dispatcher),
	)
	feedbackService := feedbackservice.New(fbStore, fbStore, forms, feedbackTx,
		feedbackservice.WithLogger(log),
		feedbackservice.WithMetrics(feedbackmetrics.New()),
		feedbackservice.WithNotifier(dispatcher),
	)

	// Submission throttling. Redis shares the window across replicas; the
	// in-memory window covers a single node.
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		fatal(log, "redis", err)
	}
	var throttleStore throttle.Store = throttle.NewMemory()
	if redisClient != nil {
		defer redisClient.Close()
		throttleStore = throttle.NewRedis(redisClient.Client)
		readiness = append(readiness, httptransport.ReadyCheck{Name: "redis", Check: redisClient.Health})
	}
	limiter := throttle.New(throttleStore, log, throttle.WithDisabled(cfg.Throttle.Disabled))
	submitLimit := limiter.Limit(throttle.Rule{
		Name:   "form_submit",
		Limit:  cfg.Throttle.SubmissionLimit,
		Window: cfg.Throttle.SubmissionWindow,
	})
	feedbackLimit := limiter.Limit(throttle.Rule{
		Name:   "feedback_submit",
		Limit:  cfg.Throttle.FeedbackLimit,
		Window: cfg.Throttle.FeedbackWindow,
	})

	verifier := middleware.NewJWTVerifier(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:  log,
		Metrics: m,
		Timeout: cfg.Server.RequestTimeout,
		Handlers: []httptransport.Handler{
			formshandler.New(formsService, log, verifier, formshandler.WithSubmitLimiter(submitLimit)),
			feedbackhandler.New(feedbackService, log, verifier, feedbackhandler.WithSubmitLimiter(feedbackLimit)),
			rewardshandler.New(rewards, log, verifier),
			dirhandler.New(directory, log, verifier),
		},
		Ready: readiness,
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	log.Info("goldleaves registry listening",
		"addr", cfg.Server.Addr,
		"storage", storageMode,
		"kafka", kafkaClient != nil,
		"redis", redisClient != nil,
	)

	select {
	case err := <-serverErr:
		fatal(log, "server error", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fatal(log, "graceful shutdown failed", err)
	}
	log.Info("server stopped")
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
