package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JoinRequest 結構體用於處理加入聊天室的請求
type JoinRequest struct {
	Name string `json:"name" validate:"required"`
}

// ErrorResponse 結構體用於返回 JSON 格式的錯誤訊息
type ErrorResponse struct {
	Message string `json:"message"`
}

// Participant 代表一個在線上的參與者
type Participant struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Name       string             `bson:"name" json:"name"`             // 顯示名稱，也是唯一鍵
	LastStatus int64              `bson:"lastStatus" json:"lastStatus"` // 最後一次心跳的時間（epoch 毫秒）
}

// 註：`name` 的唯一性由 participants 集合上的唯一索引保證，
// 索引會在 Registry 初始化時建立。
