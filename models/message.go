package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessageType 定義消息類型
type MessageType string

const (
	MessageTypePublic  MessageType = "message"         // 廣播消息
	MessageTypePrivate MessageType = "private_message" // 私人消息
	MessageTypeStatus  MessageType = "status"          // 系統消息(加入/離開)
)

const (
	// BroadcastTarget 是廣播消息的收件人，所有參與者都看得到
	BroadcastTarget = "Todos"

	// 系統消息的固定內容
	StatusTextJoined = "entra na sala"
	StatusTextLeft   = "sai da sala"

	// TimeLayout 是 time 欄位的顯示格式 (HH:mm:ss)
	TimeLayout = "15:04:05"
)

// Message 代表一個聊天訊息
type Message struct {
	ID   primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	From string             `bson:"from" json:"from"`
	To   string             `bson:"to" json:"to"`
	Text string             `bson:"text" json:"text"`
	Type MessageType        `bson:"type" json:"type"`
	Time string             `bson:"time" json:"time"` // 顯示用時間字串，不用於排序
}

// MessageRequest 結構體用於處理發送訊息的請求，from 由身份標頭補上
type MessageRequest struct {
	To   string `json:"to" validate:"required"`
	Text string `json:"text" validate:"required"`
	Type string `json:"type" validate:"required,oneof=message private_message"`
}

// MessagePatch 是編輯訊息時可被替換的欄位。id、from、time 永遠不變。
type MessagePatch struct {
	To   string      `bson:"to"`
	Text string      `bson:"text"`
	Type MessageType `bson:"type"`
}

// VisibleTo 回報這則訊息對指定參與者是否可見：
// 自己發的、發給自己的、或是廣播的訊息。
func (m Message) VisibleTo(name string) bool {
	return m.From == name || m.To == name || m.To == BroadcastTarget
}
