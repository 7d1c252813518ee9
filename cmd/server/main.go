package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/talentfold/pulse/internal/cache"
	"github.com/talentfold/pulse/internal/config"
	"github.com/talentfold/pulse/internal/genai"
	"github.com/talentfold/pulse/internal/repository"
	"github.com/talentfold/pulse/internal/service"
	"github.com/talentfold/pulse/internal/transport/rest"
	"github.com/talentfold/pulse/internal/transport/ws"
)

func main() {
	defaults := config.Load()

	fs := flag.NewFlagSet("pulse-server", flag.ExitOnError)
	var (
		mongoURI      = fs.String("mongo-uri", defaults.MongoURI, "MongoDB connection URI")
		mongoDB       = fs.String("mongo-db", defaults.MongoDB, "MongoDB database name")
		redisAddr     = fs.String("redis-addr", defaults.RedisAddr, "Redis address")
		httpPort      = fs.String("port", defaults.HTTPPort, "HTTP listen port")
		abandonAfter  = fs.Duration("abandon-after", defaults.AbandonAfter, "idle time before a session is swept to abandoned")
		sweepSchedule = fs.String("sweep-schedule", defaults.SweepSchedule, "cron expression for the abandon sweep")
		jwtSecret     = fs.String("jwt-secret", defaults.JWTSecret, "JWT signing secret")
		logFile       = fs.String("log-file", defaults.LogFile, "JSON log file path")
		logLevel      = fs.String("log-level", "INFO", "log level: DEBUG, INFO, WARN, ERROR")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("PULSE")); err != nil {
		os.Exit(2)
	}

	log, closeLog := config.SetupLogger(*logFile, config.ParseLogLevel(*logLevel))
	defer closeLog()

	ctx := context.Background()

	aiConfig := config.DefaultAIConfig()
	log.Info("text-generation config",
		"classify", aiConfig.Models.Classify,
		"episode", aiConfig.Models.Episode,
		"narrative", aiConfig.Models.Narrative,
		"enabled", aiConfig.IsEnabled())
	if !aiConfig.IsEnabled() {
		log.Warn("GEMINI_API_KEY not set, using mock generation")
	}

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(*mongoURI))
	if err != nil {
		log.Error("failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer mongoClient.Disconnect(ctx)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Error("failed to ping MongoDB", "error", err)
		os.Exit(1)
	}
	log.Info("connected to MongoDB", "db", *mongoDB)

	db := mongoClient.Database(*mongoDB)
	if err := repository.EnsureIndexes(ctx, db); err != nil {
		log.Error("failed to ensure indexes", "error", err)
		os.Exit(1)
	}

	// Redis connection
	addr := *redisAddr
	if len(addr) > 8 && addr[:8] == "redis://" {
		addr = addr[8:]
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Error("failed to ping Redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Redis", "addr", addr)

	// WebSocket hub
	wsHub := ws.NewHub(log)

	// Repositories
	graphRepo := repository.NewGraphRepo(db)
	sessionRepo := repository.NewSessionRepo(db)
	episodeRepo := repository.NewEpisodeRepo(db)
	profileRepo := repository.NewProfileRepo(db)
	artifactRepo := repository.NewArtifactRepo(db)

	// Caches
	profileCache := cache.NewProfileCache(rdb)
	regenCache := cache.NewRegenCache(rdb)

	// Services
	gen := genai.NewClient(aiConfig, log)
	authSvc := service.NewAuthService(*jwtSecret)
	graphSvc := service.NewGraphService(graphRepo, log)
	reconcileSvc := service.NewReconcileService(gen, aiConfig, log)
	aggregateSvc := service.NewAggregateService(episodeRepo, profileRepo, profileCache, log)
	narrativeSvc := service.NewNarrativeService(sessionRepo, episodeRepo, artifactRepo, profileRepo, regenCache, gen, aiConfig, log)
	sessionSvc := service.NewSessionService(sessionRepo, graphRepo, reconcileSvc, *abandonAfter, log)
	episodeSvc := service.NewEpisodeService(episodeRepo, aggregateSvc, gen, aiConfig, log)

	// Late wiring (wsHub implements service.Broadcaster)
	narrativeSvc.SetBroadcaster(wsHub)
	sessionSvc.SetNarrativeService(narrativeSvc)
	episodeSvc.SetNarrativeService(narrativeSvc)

	// Periodic abandon sweep
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(*sweepSchedule, func() {
		sweepCtx, sweepCancel := context.WithTimeout(context.Background(), time.Minute)
		defer sweepCancel()
		if _, err := sessionSvc.SweepAbandoned(sweepCtx); err != nil {
			log.Warn("abandon sweep failed", "error", err)
		}
	}); err != nil {
		log.Error("invalid sweep schedule", "schedule", *sweepSchedule, "error", err)
		os.Exit(1)
	}
	sweeper.Start()
	defer sweeper.Stop()

	container := &rest.Container{
		AuthService:      authSvc,
		GraphService:     graphSvc,
		SessionService:   sessionSvc,
		EpisodeService:   episodeSvc,
		AggregateService: aggregateSvc,
		NarrativeService: narrativeSvc,
		WSHandler:        ws.NewHandler(wsHub, authSvc, log),
	}
	router := rest.NewRouter(container)

	srv := &http.Server{
		Addr:    ":" + *httpPort,
		Handler: router,
	}

	go func() {
		log.Info("server starting", "port", *httpPort, "sweepSchedule", *sweepSchedule)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	log.Info("server exited")
}
