package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"batepapo/backend/models"

	"github.com/go-playground/validator/v10"
)

// dbTimeout 是單次資料庫操作允許的最長時間
const dbTimeout = 5 * time.Second

var validate = validator.New()

// Handler 持有請求處理需要的服務，全部由 main 注入，沒有套件層級的單例
type Handler struct {
	Registry ParticipantRegistry
	Store    MessageStore
	Hub      Broadcaster // 可為 nil
}

// NewHandler 建立 Handler
func NewHandler(registry ParticipantRegistry, store MessageStore, hub Broadcaster) *Handler {
	return &Handler{Registry: registry, Store: store, Hub: hub}
}

// sendJSONError 統一發送 JSON 格式錯誤響應
func sendJSONError(w http.ResponseWriter, message string, statusCode int) {
	var errorResponse models.ErrorResponse
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	errorResponse.Message = message
	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		log.Printf("Failed to write error response: %v", err)
	}
}

// sendValidationErrors 把 validator 的逐欄位錯誤以 422 回傳
func sendValidationErrors(w http.ResponseWriter, err error) {
	messages := []string{}
	if fieldErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range fieldErrors {
			messages = append(messages, fmt.Sprintf("field %s failed on %s", fe.Field(), fe.Tag()))
		}
	} else {
		messages = append(messages, err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	if err := json.NewEncoder(w).Encode(messages); err != nil {
		log.Printf("Failed to write validation errors: %v", err)
	}
}

// writeJSON 發送 JSON 響應
func writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}
