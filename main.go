package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"batepapo/backend/config"
	"batepapo/backend/database"
	"batepapo/backend/handlers"
	"batepapo/backend/middleware"
	"batepapo/backend/reaper"
	"batepapo/backend/registry"
	"batepapo/backend/store"
	"batepapo/backend/websocket"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9" // 引入 Redis 客戶端，用於限流
	"github.com/rs/cors"
)

func main() {
	cfg := config.LoadConfig()

	db, err := database.Connect(cfg.MongoDBURI, cfg.DBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer database.Disconnect(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	participantRegistry, err := registry.New(ctx, db)
	if err != nil {
		log.Fatalf("Failed to initialize participant registry: %v", err)
	}
	messageStore := store.New(db)

	// WebSocket Hub，即時推送新訊息
	hub := websocket.NewHub()
	go hub.Run(ctx)

	// Reaper 獨立於請求處理，定期清除逾時的參與者
	presenceReaper := reaper.New(participantRegistry, messageStore, hub, cfg.ReapInterval, cfg.LivenessWindow)
	go presenceReaper.Run(ctx)

	// Redis 限流（REDIS_ADDR 留空時停用）
	var rateLimiter *middleware.RateLimiter
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("Failed to ping Redis at %s: %v, rate limiting disabled", cfg.RedisAddr, err)
		} else {
			rateLimiter = middleware.NewRateLimiter(redisClient, cfg.RateLimit, cfg.RateWindow)
			log.Printf("Rate limiting enabled: %d requests per %s", cfg.RateLimit, cfg.RateWindow)
		}
	}

	handler := handlers.NewHandler(participantRegistry, messageStore, hub)

	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Identity)

	// 健康檢查路由
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "Backend is running!")
	}).Methods("GET")

	// 參與者 API 路由
	router.HandleFunc("/participants", handler.JoinParticipant).Methods("POST")
	router.HandleFunc("/participants", handler.GetParticipants).Methods("GET")
	router.Handle("/status", rateLimiter.Limit(http.HandlerFunc(handler.Heartbeat))).Methods("POST")

	// 訊息 API 路由
	router.Handle("/messages", rateLimiter.Limit(http.HandlerFunc(handler.PostMessage))).Methods("POST")
	router.HandleFunc("/messages", handler.GetMessages).Methods("GET")
	router.HandleFunc("/messages/{id}", handler.UpdateMessage).Methods("PUT")
	router.HandleFunc("/messages/{id}", handler.DeleteMessage).Methods("DELETE")

	// WebSocket 即時訊息路由
	router.HandleFunc("/ws", websocket.HandleConnections(hub, participantRegistry)).Methods("GET")

	// 設置 CORS 中介軟體
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "User"},
		AllowCredentials: true,
	})

	serverAddr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      c.Handler(router),
		IdleTimeout:  120 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// 如果錯誤不是因為主動關閉伺服器，就記錄錯誤並結束程式
			log.Fatalf("Could not listen on %s: %v", serverAddr, err)
		}
	}()

	//當按下 Ctrl+C，程式會收到 SIGINT
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("Received signal %s, shutting down server...", sig)

	// 先停掉 Reaper 和 Hub，再關閉 HTTP 伺服器
	cancel()

	//最多等30秒關閉，避免資料損壞，請求中斷
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited gracefully.")
}
