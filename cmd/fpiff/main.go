package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/config"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/engine"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/messaging"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/stationstate"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/store"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "fpiff.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable verbose engine logging")
	flag.Parse()

	if *showVersion {
		fmt.Println("fpiff", Version)
		return
	}
	if *debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Database
	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Printf("fpiff: database open (%s)", db.Driver())

	// Redis occupancy cache
	var redisStore *stationstate.RedisStore
	if cfg.Redis.Address != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		redisStore, err = stationstate.Connect(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		cancel()
		if err != nil {
			log.Printf("fpiff: redis not available (%v), running without cache", err)
			redisStore = nil
		} else {
			log.Printf("fpiff: redis connected (%s)", cfg.Redis.Address)
			defer redisStore.Close()
		}
	}

	// Messaging client
	var msgClient *messaging.Client
	if cfg.Messaging.Enabled {
		msgClient = messaging.NewClient(&cfg.Messaging)
		if err := msgClient.Connect(); err != nil {
			log.Printf("fpiff: messaging connect failed (%v), outbox will hold messages", err)
		} else {
			log.Printf("fpiff: messaging connected (%s)", cfg.Messaging.Backend)
		}
		defer msgClient.Close()
	}

	// Engine
	eng := engine.New(engine.Config{
		AppConfig:  cfg,
		ConfigPath: *configPath,
		DB:         db,
		Redis:      redisStore,
		MsgClient:  msgClient,
		LogFunc:    log.Printf,
		Debug:      *debug,
	})
	if err := eng.Start(); err != nil {
		log.Fatalf("engine start: %v", err)
	}
	defer eng.Stop()

	// Web server
	handler, stopWeb := www.NewRouter(eng)
	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("fpiff: web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("web server: %v", err)
		}
	}()

	log.Printf("fpiff: ready (node %s)", cfg.NodeID())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	log.Printf("fpiff: shutting down...")
	stopWeb()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("fpiff: web server shutdown: %v", err)
	}
}
