package middleware

import (
	"context"
	"log"
	"net/http"
	"time"

	"batepapo/backend/utils"

	"github.com/redis/go-redis/v9"
)

// RateLimiter 以 Redis 上的滑動窗口限制每位參與者的寫入頻率。
// 計數用 INCR+EXPIRE 管線維護，鍵為 "rl:" 加參與者名稱。
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// NewRateLimiter 建立限流器。client 為 nil 時限流整體停用。
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window}
}

func (l *RateLimiter) allow(ctx context.Context, key string) (bool, error) {
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, "rl:"+key)
	pipe.Expire(ctx, "rl:"+key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= l.limit, nil
}

// Limit 套用限流。沒有身份的請求直接放行，交給下游的身份檢查處理；
// Redis 故障時也放行並記錄，限流不能把整個服務拖下線。
func (l *RateLimiter) Limit(next http.Handler) http.Handler {
	if l == nil || l.client == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, err := utils.ParticipantFromContext(r.Context())
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		ok, err := l.allow(r.Context(), name)
		if err != nil {
			log.Printf("Rate limiter error for %s: %v", name, err)
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
