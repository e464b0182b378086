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

	"github.com/joho/godotenv"

	"github.com/forestpark/assistant/backend/internal/config"
	"github.com/forestpark/assistant/backend/internal/database"
	"github.com/forestpark/assistant/backend/internal/handler"
	"github.com/forestpark/assistant/backend/internal/model/preset"
	"github.com/forestpark/assistant/backend/internal/service/auth"
	"github.com/forestpark/assistant/backend/internal/service/chat"
	"github.com/forestpark/assistant/backend/internal/service/conversation"
	"github.com/forestpark/assistant/backend/internal/service/history"
	"github.com/forestpark/assistant/backend/internal/service/relay"
	"github.com/forestpark/assistant/backend/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db, err := database.Open(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close(db)

	authSvc := auth.NewService(db,
		auth.NewTokenIssuer(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL),
		cfg.Auth.CookieName,
		auth.WithSecureCookie(cfg.Auth.SecureCookie),
	)
	if cfg.Auth.BootstrapAdmin() {
		if err := authSvc.EnsureAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			log.Fatalf("failed to bootstrap admin account: %v", err)
		}
	}

	kv, err := storage.New(ctx, cfg.Storage, db)
	if err != nil {
		log.Fatalf("failed to open chat store: %v", err)
	}
	defer kv.Close()
	log.Printf("chat history stored via %s driver", cfg.Storage.Driver)

	botRelay, err := relay.NewFromConfig(ctx, cfg.Bot, cfg.Ark)
	if err != nil {
		log.Fatalf("failed to initialize %s relay: %v - 请检查机器人相关环境变量", cfg.Bot.Provider, err)
	}
	log.Printf("chat relay initialized with provider %s", cfg.Bot.Provider)

	historySvc := history.NewService(database.NewExecutor(db))
	chatSvc := chat.NewService(
		conversation.NewStore(kv),
		botRelay,
		chat.WithNamespace(cfg.Storage.Namespace),
		chat.WithArchive(historySvc),
	)

	router := handler.NewRouter(handler.Deps{
		Auth:           authSvc,
		Chat:           chatSvc,
		History:        historySvc,
		Presets:        preset.NewMemoryStore(preset.Seed()),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Forest park assistant listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Printf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
