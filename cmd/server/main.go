package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/schoolsecure/hallpass/internal/config"
	"github.com/schoolsecure/hallpass/internal/database"
	"github.com/schoolsecure/hallpass/internal/handler"
	"github.com/schoolsecure/hallpass/internal/jobs"
	"github.com/schoolsecure/hallpass/internal/middleware"
	"github.com/schoolsecure/hallpass/internal/queue"
	"github.com/schoolsecure/hallpass/internal/repository"
	"github.com/schoolsecure/hallpass/internal/router"
	queue_publisher "github.com/schoolsecure/hallpass/internal/service"
)

func main() {
	config.LoadDotenv()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.Params{
		User: cfg.DBUser,
		Pass: cfg.DBPass,
		Host: cfg.DBHost,
		Port: cfg.DBPort,
		Name: cfg.DBName,
	})
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer db.Close()

	// Redis is optional: a nil client disables rate limiting and caching.
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	users := repository.NewUserRepo(db)
	schools := repository.NewSchoolRepo(db)
	locations := repository.NewLocationRepo(db)
	passes := repository.NewPassRepo(db)
	tokens := repository.NewTokenRepo(db)

	// Empty QUEUE_URL turns the publisher into a no-op.
	pub := queue_publisher.NewPublisher(cfg.QueueURL)

	authH := handler.NewAuthHandler(cfg, users, schools, tokens)
	passH := handler.NewPassHandler(passes, locations, schools, pub)
	staffH := handler.NewStaffHandler(passes, locations, schools, users, pub)
	dashH := handler.NewDashboardHandler(passes, users, schools)
	schoolH := handler.NewSchoolHandler(schools)
	locationH := handler.NewLocationHandler(locations)

	e := echo.New()
	e.Validator = router.NewValidator()
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterStudent(e, passH, dashH, cfg.JWTSecret, cache)
	router.RegisterStaff(e, staffH, dashH, cfg.JWTSecret, cache)
	router.RegisterAdmin(e, schoolH, locationH, dashH, cfg.JWTSecret, cache)
	router.RegisterShared(e, passH, schoolH, locationH, cfg.JWTSecret, cache)

	go func() {
		if err := queue.StartPassEventConsumer(ctx, cfg.QueueURL); err != nil {
			log.Printf("pass event consumer stopped: %v", err)
		}
	}()
	jobs.StartPassExpiryJob(ctx, cfg, passes, tokens, pub)

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
