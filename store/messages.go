package store

import (
	"context"
	"errors"
	"fmt"

	"batepapo/backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MessageStore 持有 messages 集合，負責可見性過濾與所有權檢查。
// 讀取順序就是插入順序，除此之外不保證跨訊息的排序。
type MessageStore struct {
	coll *mongo.Collection
}

// New 建立 MessageStore
func New(db *mongo.Database) *MessageStore {
	return &MessageStore{coll: db.Collection("messages")}
}

// Append 儲存一則新訊息並回填資料庫產生的唯一 ID
func (s *MessageStore) Append(ctx context.Context, message *models.Message) error {
	result, err := s.coll.InsertOne(ctx, message)
	if err != nil {
		return fmt.Errorf("%w: insert message: %v", models.ErrStorage, err)
	}
	message.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

// VisibleTo 回傳指定參與者看得到的所有訊息：自己發的、發給自己的、
// 或是廣播給 "Todos" 的，依儲存順序排列。
// limit > 0 時只保留最後 limit 則（最新的），相對順序不變；
// limit == 0 表示不截斷；負數回傳 ErrInvalidLimit。
func (s *MessageStore) VisibleTo(ctx context.Context, name string, limit int) ([]models.Message, error) {
	if limit < 0 {
		return nil, models.ErrInvalidLimit
	}

	filter := bson.M{"$or": []bson.M{
		{"from": name},
		{"to": name},
		{"to": models.BroadcastTarget},
	}}

	cursor, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: find messages: %v", models.ErrStorage, err)
	}
	defer cursor.Close(ctx)

	messages := []models.Message{}
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("%w: decode messages: %v", models.ErrStorage, err)
	}

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

// Update 以單一 UpdateOne 替換 to/text/type，過濾條件同時帶上 _id 與 from，
// 所有權檢查就在操作本身完成。沒有命中時再查一次 _id 以區分
// ErrNotFound 與 ErrForbidden。id、from、time 保持不變。
func (s *MessageStore) Update(ctx context.Context, id primitive.ObjectID, editorName string, patch models.MessagePatch) error {
	result, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "from": editorName},
		bson.M{"$set": bson.M{
			"to":   patch.To,
			"text": patch.Text,
			"type": patch.Type,
		}},
	)
	if err != nil {
		return fmt.Errorf("%w: update message: %v", models.ErrStorage, err)
	}
	if result.MatchedCount > 0 {
		return nil
	}
	return s.classifyMiss(ctx, id)
}

// Delete 以 FindOneAndDelete 移除訊息並回傳被刪除的內容，
// 過濾條件同樣帶上 from，刪除與所有權檢查是同一個原子操作。
func (s *MessageStore) Delete(ctx context.Context, id primitive.ObjectID, requesterName string) (*models.Message, error) {
	var deleted models.Message
	err := s.coll.FindOneAndDelete(ctx, bson.M{"_id": id, "from": requesterName}).Decode(&deleted)
	if err == nil {
		return &deleted, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: delete message: %v", models.ErrStorage, err)
	}
	return nil, s.classifyMiss(ctx, id)
}

// classifyMiss 在 _id+from 沒有命中之後區分「訊息不存在」與「不是作者」。
// 這次讀取只影響回傳的錯誤分類，前置條件的驗證仍由原本的過濾條件保證。
func (s *MessageStore) classifyMiss(ctx context.Context, id primitive.ObjectID) error {
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: find message: %v", models.ErrStorage, err)
	}
	return models.ErrForbidden
}
