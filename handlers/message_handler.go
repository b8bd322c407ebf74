package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"batepapo/backend/models"
	"batepapo/backend/utils"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PostMessage 處理發送訊息的請求。
// 順序固定：先解碼身份，再檢查是否在線，最後驗證內容。
// 不在線的發送者與格式錯誤的內容都回 422。
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	name, err := utils.ParticipantFromContext(r.Context())
	if err != nil {
		sendJSONError(w, "Sender is not an active participant", http.StatusUnprocessableEntity)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	active, err := h.Registry.IsActive(ctx, name)
	if err != nil {
		log.Printf("Error checking participant %s: %v", name, err)
		sendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if !active {
		sendJSONError(w, "Sender is not an active participant", http.StatusUnprocessableEntity)
		return
	}

	var messageReq models.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&messageReq); err != nil {
		log.Printf("JSON decode error: %v", err)
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	messageReq.To = utils.CleanText(messageReq.To)
	messageReq.Text = utils.CleanText(messageReq.Text)
	if err := validate.Struct(messageReq); err != nil {
		sendValidationErrors(w, err)
		return
	}

	message := models.Message{
		From: name,
		To:   messageReq.To,
		Text: messageReq.Text,
		Type: models.MessageType(messageReq.Type),
		Time: time.Now().Format(models.TimeLayout),
	}
	if err := h.Store.Append(ctx, &message); err != nil {
		log.Printf("Error storing message from %s: %v", name, err)
		sendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if h.Hub != nil {
		h.Hub.Publish(message)
	}

	writeJSON(w, http.StatusCreated, message)
}

// GetMessages 處理讀取訊息的請求，只回傳請求者看得到的部分。
// limit 必須是正整數，否則回 422；沒給 limit 就回傳全部。
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	name, err := utils.ParticipantFromContext(r.Context())
	if err != nil {
		sendJSONError(w, "Missing identity header", http.StatusUnprocessableEntity)
		return
	}

	limit := 0
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		limit, err = strconv.Atoi(rawLimit)
		if err != nil || limit <= 0 {
			sendJSONError(w, "'limit' must be a positive integer", http.StatusUnprocessableEntity)
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	messages, err := h.Store.VisibleTo(ctx, name, limit)
	if errors.Is(err, models.ErrInvalidLimit) {
		sendJSONError(w, "'limit' must be a positive integer", http.StatusUnprocessableEntity)
		return
	}
	if err != nil {
		log.Printf("Error reading messages for %s: %v", name, err)
		sendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

// UpdateMessage 處理編輯訊息的請求，只有作者本人可以改 to/text/type。
// 訊息不存在回 404，不是作者回 403。
func (h *Handler) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	name, err := utils.ParticipantFromContext(r.Context())
	if err != nil {
		sendJSONError(w, "Requester is not the author", http.StatusForbidden)
		return
	}

	id, ok := messageIDFromPath(w, r)
	if !ok {
		return
	}

	var messageReq models.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&messageReq); err != nil {
		log.Printf("JSON decode error: %v", err)
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	messageReq.To = utils.CleanText(messageReq.To)
	messageReq.Text = utils.CleanText(messageReq.Text)
	if err := validate.Struct(messageReq); err != nil {
		sendValidationErrors(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	patch := models.MessagePatch{
		To:   messageReq.To,
		Text: messageReq.Text,
		Type: models.MessageType(messageReq.Type),
	}
	err = h.Store.Update(ctx, id, name, patch)
	switch {
	case errors.Is(err, models.ErrNotFound):
		sendJSONError(w, "Message not found", http.StatusNotFound)
	case errors.Is(err, models.ErrForbidden):
		sendJSONError(w, "Requester is not the author", http.StatusForbidden)
	case err != nil:
		log.Printf("Error updating message %s: %v", id.Hex(), err)
		sendJSONError(w, "Internal server error", http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// DeleteMessage 處理刪除訊息的請求，所有權檢查同 UpdateMessage，
// 成功時回傳被刪除的訊息。
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	name, err := utils.ParticipantFromContext(r.Context())
	if err != nil {
		sendJSONError(w, "Requester is not the author", http.StatusForbidden)
		return
	}

	id, ok := messageIDFromPath(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	deleted, err := h.Store.Delete(ctx, id, name)
	switch {
	case errors.Is(err, models.ErrNotFound):
		sendJSONError(w, "Message not found", http.StatusNotFound)
	case errors.Is(err, models.ErrForbidden):
		sendJSONError(w, "Requester is not the author", http.StatusForbidden)
	case err != nil:
		log.Printf("Error deleting message %s: %v", id.Hex(), err)
		sendJSONError(w, "Internal server error", http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, deleted)
	}
}

// messageIDFromPath 從 URL 路徑解析訊息 ID，格式不合法視同訊息不存在
func messageIDFromPath(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	idStr := mux.Vars(r)["id"]
	id, err := primitive.ObjectIDFromHex(idStr)
	if err != nil {
		sendJSONError(w, "Message not found", http.StatusNotFound)
		return primitive.NilObjectID, false
	}
	return id, true
}
