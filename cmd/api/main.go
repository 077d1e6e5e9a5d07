package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/muzaffarmhd/mindscape/internal/application"
	appsentiments "github.com/muzaffarmhd/mindscape/internal/application/sentiments"
	"github.com/muzaffarmhd/mindscape/internal/config"
	"github.com/muzaffarmhd/mindscape/internal/directory"
	domain "github.com/muzaffarmhd/mindscape/internal/domain/sentiments"
	openaiClient "github.com/muzaffarmhd/mindscape/internal/infra/ai/openai"
	mysqlp "github.com/muzaffarmhd/mindscape/internal/infra/db/mysql"
	postgresp "github.com/muzaffarmhd/mindscape/internal/infra/db/postgres"
	"github.com/muzaffarmhd/mindscape/internal/infra/httpserver"
	minioStore "github.com/muzaffarmhd/mindscape/internal/infra/storage"
	"github.com/muzaffarmhd/mindscape/internal/middleware"
	"github.com/muzaffarmhd/mindscape/internal/tasks"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// connect database (driver dipilih lewat config)
	var db *sql.DB
	var repo domain.Repository
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		repo = postgresp.NewSentimentRepository(db)
	case "mysql", "":
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		repo = mysqlp.NewSentimentRepository(db)
	default:
		log.Fatalf("unknown database driver: %s", cfg.Database.Driver)
	}
	defer db.Close()

	// init AI client: one provider client behind all the AI ports
	ai := openaiClient.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)

	// init minio media store
	store, err := minioStore.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		log.Fatalf("minio init error: %v", err)
	}

	// init service
	svc := &appsentiments.Service{
		Repo:        repo,
		Analyzer:    ai,
		Images:      ai,
		Transcriber: ai,
		Clock:       application.SystemClock{},
	}

	// init dispatcher; faults are logged by the dispatcher, the channel
	// stays available for richer observability later
	dispatcher := tasks.NewDispatcher(cfg.Dispatcher.Workers, cfg.Dispatcher.QueueSize)
	go func() {
		for range dispatcher.Faults() {
		}
	}()

	// therapist directory
	dir := directory.NewService(cfg.Directory.DataPath)

	// init router
	checkers := map[string]middleware.HealthChecker{
		"database":  &middleware.DatabaseHealthChecker{DB: db},
		"directory": &middleware.FileHealthChecker{Path: cfg.Directory.DataPath},
	}
	mux := chi.NewRouter()
	mux.Mount("/", httpserver.NewRouter(svc, ai, store, dir, dispatcher, checkers))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown: stop accepting requests, then drain background tasks
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	dispatcher.Close()
}
