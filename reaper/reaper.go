//go:generate go run go.uber.org/mock/mockgen -source=reaper.go -destination=mocks/mock_reaper.go -package=mocks
package reaper

import (
	"context"
	"log"
	"time"

	"batepapo/backend/models"
)

// ParticipantEvicter 是 Reaper 對註冊表的依賴
type ParticipantEvicter interface {
	EvictExpired(ctx context.Context, window time.Duration, now time.Time) ([]models.Participant, error)
}

// MessageAppender 是 Reaper 對訊息儲存的依賴
type MessageAppender interface {
	Append(ctx context.Context, message *models.Message) error
}

// Broadcaster 把新訊息推送給已連線的 WebSocket 客戶端
type Broadcaster interface {
	Publish(message models.Message)
}

// Reaper 週期性掃描註冊表，移除逾時未送心跳的參與者，
// 並為每一位補上一則離開的系統訊息。
type Reaper struct {
	registry ParticipantEvicter
	store    MessageAppender
	hub      Broadcaster // 可為 nil
	interval time.Duration
	window   time.Duration
}

// New 建立 Reaper。interval 是掃描週期，window 是允許的最長靜默時間。
func New(registry ParticipantEvicter, store MessageAppender, hub Broadcaster, interval, window time.Duration) *Reaper {
	return &Reaper{
		registry: registry,
		store:    store,
		hub:      hub,
		interval: interval,
		window:   window,
	}
}

// Run 啟動 Reaper 的主迴圈，直到 ctx 被取消。
// 應在單獨的 goroutine 中呼叫。
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Printf("Reaper started: interval=%s, liveness window=%s", r.interval, r.window)
	for {
		select {
		case <-ctx.Done():
			log.Println("Reaper stopped.")
			return
		case <-ticker.C:
			tickCtx, cancel := context.WithTimeout(context.Background(), r.interval)
			r.reap(tickCtx, time.Now())
			cancel()
		}
	}
}

// reap 執行一次掃描。列舉或移除失敗就記錄並跳過這一輪；
// 離開訊息寫入失敗只記錄，不回滾移除——移除才是權威事件，
// 訊息是盡力而為。這一輪不重試，下一輪獨立執行。
func (r *Reaper) reap(ctx context.Context, now time.Time) {
	evicted, err := r.registry.EvictExpired(ctx, r.window, now)
	if err != nil {
		log.Printf("Reaper: error evicting participants: %v", err)
		return
	}
	if len(evicted) == 0 {
		return
	}

	for _, p := range evicted {
		message := models.Message{
			From: p.Name,
			To:   models.BroadcastTarget,
			Text: models.StatusTextLeft,
			Type: models.MessageTypeStatus,
			Time: now.Format(models.TimeLayout),
		}
		if err := r.store.Append(ctx, &message); err != nil {
			log.Printf("Reaper: error recording departure of %s: %v", p.Name, err)
			continue
		}
		if r.hub != nil {
			r.hub.Publish(message)
		}
	}
	log.Printf("Reaper: removed %d inactive participant(s)", len(evicted))
}
