package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv" // 引入這個庫來讀取 .env 檔案
)

// Config 結構體用於儲存應用程式的配置
type Config struct {
	MongoDBURI string
	DBName     string
	Port       string

	// Reaper 的執行週期與允許的靜默時間
	ReapInterval   time.Duration
	LivenessWindow time.Duration

	// Redis 限流設定，RedisAddr 留空時停用限流
	RedisAddr  string
	RateLimit  int64
	RateWindow time.Duration

	AllowedOrigins []string
}

// LoadConfig 載入配置，優先從環境變數讀取，其次從 .env 檔案讀取
func LoadConfig() *Config {
	// 嘗試載入 .env 檔案，如果不存在也不會報錯
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, relying on environment variables.")
	}

	cfg := &Config{
		MongoDBURI:     getEnv("DATABASE_URL", "mongodb://localhost:27017"),
		DBName:         getEnv("DB_NAME", "chatUOL"),
		Port:           getEnv("PORT", "5000"),
		ReapInterval:   getDurationEnv("REAP_INTERVAL", 15*time.Second),
		LivenessWindow: getDurationEnv("LIVENESS_WINDOW", 10*time.Second),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RateLimit:      getInt64Env("RATE_LIMIT", 30),
		RateWindow:     getDurationEnv("RATE_WINDOW", time.Minute),
		AllowedOrigins: []string{getEnv("ALLOWED_ORIGINS", "*")},
	}
	return cfg
}

// getEnv 輔助函數，用於從環境變數獲取值，如果不存在則使用預設值
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getDurationEnv 輔助函數，解析形如 "15s" 的時間設定，解析失敗則使用預設值
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("Invalid duration for %s: %q, using default %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

// getInt64Env 輔助函數，解析整數設定，解析失敗則使用預設值
func getInt64Env(key string, defaultValue int64) int64 {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n <= 0 {
		log.Printf("Invalid integer for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}
