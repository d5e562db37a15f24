package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joonhyoung1/crypto-trading-bot/internal/app"
	"github.com/joonhyoung1/crypto-trading-bot/internal/config"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Сборка и запуск приложения. Инициализация бирж идёт в фоне:
	// сервер отвечает сразу, готовность видна через /api/status.
	application := app.New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application.Start(ctx)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	application.Shutdown(shutdownCtx)

	log.Println("Server exited")
}
