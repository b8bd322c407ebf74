package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"batepapo/backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Registry 是目前在線參與者的權威集合，以顯示名稱為唯一鍵。
// 所有變更都是單一 MongoDB 操作，請求處理與 Reaper 可以安全地並行呼叫。
type Registry struct {
	coll *mongo.Collection
}

// New 建立 Registry 並在 participants 集合上建立 name 的唯一索引
func New(ctx context.Context, db *mongo.Database) (*Registry, error) {
	coll := db.Collection("participants")

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := coll.Indexes().CreateOne(ctx, indexModel); err != nil {
		return nil, fmt.Errorf("create unique index for participants: %w", err)
	}

	return &Registry{coll: coll}, nil
}

// Join 建立一個新的參與者。名稱已被佔用時回傳 ErrConflict，
// 唯一性交由索引判斷，插入本身就是衝突檢查。
func (r *Registry) Join(ctx context.Context, name string) (*models.Participant, error) {
	p := &models.Participant{
		Name:       name,
		LastStatus: time.Now().UnixMilli(),
	}

	result, err := r.coll.InsertOne(ctx, p)
	if mongo.IsDuplicateKeyError(err) {
		return nil, models.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("%w: insert participant: %v", models.ErrStorage, err)
	}

	p.ID = result.InsertedID.(primitive.ObjectID)
	return p, nil
}

// Heartbeat 更新參與者的 lastStatus。參與者不存在時回傳 ErrNotFound，
// 已被 Reaper 移除的參與者不會被復活，必須重新 Join。
func (r *Registry) Heartbeat(ctx context.Context, name string) error {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"name": name},
		bson.M{"$set": bson.M{"lastStatus": time.Now().UnixMilli()}},
	)
	if err != nil {
		return fmt.Errorf("%w: update lastStatus: %v", models.ErrStorage, err)
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// IsActive 檢查指定名稱是否為在線參與者，作為發送訊息的授權依據
func (r *Registry) IsActive(ctx context.Context, name string) (bool, error) {
	err := r.coll.FindOne(ctx, bson.M{"name": name}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: find participant: %v", models.ErrStorage, err)
	}
	return true, nil
}

// List 回傳目前所有在線參與者的快照，順序不具意義
func (r *Registry) List(ctx context.Context) ([]models.Participant, error) {
	cursor, err := r.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("%w: find participants: %v", models.ErrStorage, err)
	}
	defer cursor.Close(ctx)

	participants := []models.Participant{}
	if err = cursor.All(ctx, &participants); err != nil {
		return nil, fmt.Errorf("%w: decode participants: %v", models.ErrStorage, err)
	}
	return participants, nil
}

// EvictExpired 移除所有 lastStatus 早於 now-window 的參與者，並回傳被移除的集合。
// 截止時間只計算一次，逐筆使用 FindOneAndDelete：刪除與回傳是同一個原子操作，
// 在選擇與刪除之間送出心跳的參與者會脫離查詢條件，不會被誤刪。
func (r *Registry) EvictExpired(ctx context.Context, window time.Duration, now time.Time) ([]models.Participant, error) {
	cutoff := now.Add(-window).UnixMilli()
	filter := bson.M{"lastStatus": bson.M{"$lt": cutoff}}

	evicted := []models.Participant{}
	for {
		var p models.Participant
		err := r.coll.FindOneAndDelete(ctx, filter).Decode(&p)
		if errors.Is(err, mongo.ErrNoDocuments) {
			break
		}
		if err != nil {
			return evicted, fmt.Errorf("%w: evict participant: %v", models.ErrStorage, err)
		}
		evicted = append(evicted, p)
	}
	return evicted, nil
}
