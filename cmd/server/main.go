package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Greenrenge/cf-boardgames-sub000/internal/cache"
	"github.com/Greenrenge/cf-boardgames-sub000/internal/config"
	"github.com/Greenrenge/cf-boardgames-sub000/internal/repository"
	"github.com/Greenrenge/cf-boardgames-sub000/internal/room"
	"github.com/Greenrenge/cf-boardgames-sub000/internal/transport/rest"
)

func main() {
	log.Println("started")
	if err := godotenv.Load(); err == nil {
		log.Println("loaded .env")
	}
	cfg := config.Load()
	ctx := context.Background()

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(ctx)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB:", err)
	}
	log.Println("Connected to MongoDB")

	db := mongoClient.Database(cfg.MongoDB)

	// Redis connection
	redisAddr := strings.TrimPrefix(cfg.RedisAddr, "redis://")
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	defer rdb.Close()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatal("Failed to ping Redis:", err)
	}
	log.Println("Connected to Redis")

	// Storage + caches
	roomStore := repository.NewRoomStore(db)
	wakes := cache.NewWakeCache(rdb)
	leaderboard := cache.NewLeaderboardCache(rdb)

	// Room registry + durable wake scheduler
	registry := room.NewRegistry(roomStore, wakes, leaderboard)
	scheduler := room.NewScheduler(wakes, registry, time.Second)
	scheduler.Start()
	defer scheduler.Stop()
	log.Println("Room scheduler started")

	router := rest.NewRouter(&rest.Container{
		Registry:    registry,
		Leaderboard: leaderboard,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		log.Println("Endpoints:")
		log.Println("  POST  /v1/rooms")
		log.Println("  GET   /v1/rooms/{code}")
		log.Println("  PATCH /v1/rooms/{code}/config")
		log.Println("  GET   /v1/rooms/{code}/leaderboard")
		log.Println("  WS    /v1/ws/rooms/{code}")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe:", err)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
