package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"smarttest/internal/admin"
	"smarttest/internal/auth"
	"smarttest/internal/bot"
	"smarttest/internal/config"
	"smarttest/internal/conversation"
	"smarttest/internal/dashboard"
	"smarttest/internal/exam"
	"smarttest/internal/membership"
	"smarttest/internal/scheduler"
	"smarttest/pkg/cache"
	"smarttest/pkg/database"
	"smarttest/pkg/websocket"
)

const stateTTL = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.Open(&database.Config{
		Driver:   cfg.Database.Driver,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.Name,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Redis is optional. Without it tests are read from the database and
	// conversations live in memory.
	var (
		testCache exam.Cache
		states    conversation.Store = conversation.NewMemoryStore()
	)
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCache(cfg.RedisAddr)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("Warning: redis at %s unavailable, running without cache: %v", cfg.RedisAddr, err)
		} else {
			defer redisCache.Close()
			testCache = redisCache
			states = conversation.NewRemoteStore(redisCache, cache.ErrMiss, stateTTL)
		}
	}

	// Initialize WebSocket hub
	var events exam.Events
	var wsHub *websocket.Hub
	if cfg.HTTPAddr != "" {
		wsHub = websocket.NewHub()
		go wsHub.Run()
		events = wsHub
	}

	b, err := bot.NewBot(cfg)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	// Initialize repositories and services
	memberRepo := membership.NewRepository(db)
	authService := auth.NewService(auth.NewRepository(db), cfg.JWTSecret)
	examService := exam.NewService(exam.NewRepository(db), testCache, events)
	results := exam.NewResults(examService, b, exam.ResultsOptions{
		CertificatesDir: cfg.CertificatesDir,
		Pace:            cfg.BroadcastPace,
	})
	members := membership.NewService(memberRepo, b, b)
	adminService := admin.NewService(memberRepo, b, b, cfg.BroadcastPace)

	handler := bot.New(bot.Deps{
		Context:  ctx,
		Exams:    examService,
		Results:  results,
		Members:  members,
		Admin:    adminService,
		Auth:     authService,
		States:   states,
		Editor:   b,
		IsAdmin:  cfg.IsSuperAdmin,
		Location: cfg.Location,
	})
	handler.Register(b, membership.NewGate(ctx, members, cfg.IsSuperAdmin))

	var srv *http.Server
	if cfg.HTTPAddr != "" {
		dash := dashboard.NewHandler(examService, authService, cfg.IsSuperAdmin)
		wsHub.SetAuthorizer(dash.AuthorizeWatcher)
		router := dashboard.NewRouter(dash, auth.NewHandler(authService), authService, wsHub, cfg.AllowedOrigins)
		srv = dashboard.NewServer(cfg.HTTPAddr, router)

		go func() {
			log.Printf("Dashboard starting on %s", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()
	}

	purge, err := scheduler.New(cfg.PurgeSchedule, cfg.PurgeAfter, examService)
	if err != nil {
		log.Fatalf("Failed to schedule purge: %v", err)
	}
	purge.Start()

	go func() {
		log.Printf("Bot @%s starting", b.Me.Username)
		b.Start()
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Println("Shutting down...")

	b.Stop()
	purge.Stop()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
		}
		wsHub.Close()
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Println("Shutdown complete")
}
