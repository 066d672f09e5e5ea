package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	api "github.com/mind-engage/coursetrack/internal/api/http"
	authmw "github.com/mind-engage/coursetrack/internal/auth/middleware"
	"github.com/mind-engage/coursetrack/internal/config"
	"github.com/mind-engage/coursetrack/internal/course"
	"github.com/mind-engage/coursetrack/internal/db"
	"github.com/mind-engage/coursetrack/internal/enrollment"
	"github.com/mind-engage/coursetrack/internal/eventlog"
	"github.com/mind-engage/coursetrack/internal/grading"
	"github.com/mind-engage/coursetrack/internal/logger"
	"github.com/mind-engage/coursetrack/internal/progress"
	"github.com/mind-engage/coursetrack/internal/quiz"
	"github.com/mind-engage/coursetrack/internal/storage"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", "err", err)
	}

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	driver, err := db.ParseDriver(cfg.DBDriver)
	if err != nil {
		log.Fatal("bad db driver", "err", err)
	}
	dbh, err := db.Open(ctx, driver, cfg.DBDSN)
	if err != nil {
		log.Fatal("db open failed", "driver", driver, "err", err)
	}
	defer dbh.Close()

	// --- Tree cache ---
	var cache course.TreeCache
	switch cfg.CacheDriver {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("redis ping failed", "addr", cfg.RedisAddr, "err", err)
		}
		defer rdb.Close()
		cache = course.NewRedisCache(rdb, cfg.CacheTTL)
	case "none":
		cache = course.NoCache{}
	default:
		cache = course.NewMemoryCache(cfg.CacheTTL)
	}

	// --- Services ---
	policy, err := progress.ParseRetakePolicy(cfg.RetakePolicy)
	if err != nil {
		log.Fatal("bad retake policy", "err", err)
	}
	blobs := storage.NewFSStore(cfg.BlobBasePath, cfg.BlobPublicURL)
	loader := course.NewLoader(dbh, cache, blobs, log)
	catalog := course.NewCatalog(dbh, loader, log)
	agg := progress.NewAggregator(policy, log)
	catalog.OnWrite(agg.RecomputeCourse)
	tracker := enrollment.NewTracker(dbh, loader, agg, log)
	engine := quiz.NewEngine(dbh, grading.NewDefaultGrader(), agg,
		quiz.Options{RequireAllAnswers: cfg.RequireAllAnswers}, log)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, api.AccessLog(log), middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	api.Mount(r, api.Services{
		DB:       dbh,
		Loader:   loader,
		Catalog:  catalog,
		Tracker:  tracker,
		Engine:   engine,
		Events:   eventlog.NewRepo(dbh),
		Verifier: authmw.NewVerifier(cfg.AuthHMACSecret),
		Log:      log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", driver,
			"cache", cfg.CacheDriver, "retake_policy", policy)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, done := context.WithTimeout(context.Background(), 15*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}
	log.Info("stopped")
}
