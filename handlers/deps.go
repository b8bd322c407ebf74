//go:generate go run go.uber.org/mock/mockgen -source=deps.go -destination=mocks/mock_deps.go -package=mocks
package handlers

import (
	"context"
	"time"

	"batepapo/backend/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ParticipantRegistry 是 handler 對參與者註冊表的依賴
type ParticipantRegistry interface {
	Join(ctx context.Context, name string) (*models.Participant, error)
	Heartbeat(ctx context.Context, name string) error
	IsActive(ctx context.Context, name string) (bool, error)
	List(ctx context.Context) ([]models.Participant, error)
	EvictExpired(ctx context.Context, window time.Duration, now time.Time) ([]models.Participant, error)
}

// MessageStore 是 handler 對訊息儲存的依賴
type MessageStore interface {
	Append(ctx context.Context, message *models.Message) error
	VisibleTo(ctx context.Context, name string, limit int) ([]models.Message, error)
	Update(ctx context.Context, id primitive.ObjectID, editorName string, patch models.MessagePatch) error
	Delete(ctx context.Context, id primitive.ObjectID, requesterName string) (*models.Message, error)
}

// Broadcaster 把新儲存的訊息推送給已連線的 WebSocket 客戶端
type Broadcaster interface {
	Publish(message models.Message)
}
