package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"batepapo/backend/models"
	"batepapo/backend/utils"
)

// JoinParticipant 處理加入聊天室的請求。
// 名稱已被佔用回 409，欄位缺漏回 422，成功時補上一則加入的系統訊息。
func (h *Handler) JoinParticipant(w http.ResponseWriter, r *http.Request) {
	var joinReq models.JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&joinReq); err != nil {
		log.Printf("JSON decode error: %v", err)
		sendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	joinReq.Name = utils.CleanText(joinReq.Name)
	if err := validate.Struct(joinReq); err != nil {
		sendValidationErrors(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	participant, err := h.Registry.Join(ctx, joinReq.Name)
	if errors.Is(err, models.ErrConflict) {
		sendJSONError(w, "Participant name already taken", http.StatusConflict)
		return
	}
	if err != nil {
		log.Printf("Error joining participant %q: %v", joinReq.Name, err)
		sendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// 加入的系統訊息由這裡補上，註冊表只負責參與者狀態
	statusMessage := models.Message{
		From: participant.Name,
		To:   models.BroadcastTarget,
		Text: models.StatusTextJoined,
		Type: models.MessageTypeStatus,
		Time: time.Now().Format(models.TimeLayout),
	}
	if err := h.Store.Append(ctx, &statusMessage); err != nil {
		log.Printf("Error recording join of %s: %v", participant.Name, err)
		sendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if h.Hub != nil {
		h.Hub.Publish(statusMessage)
	}

	log.Printf("Participant joined: %s", participant.Name)
	writeJSON(w, http.StatusCreated, participant)
}

// GetParticipants 處理獲取所有在線參與者的請求
func (h *Handler) GetParticipants(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	participants, err := h.Registry.List(ctx)
	if err != nil {
		log.Printf("Error listing participants: %v", err)
		sendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, participants)
}

// Heartbeat 處理心跳請求，刷新參與者的 lastStatus。
// 標頭缺漏或參與者不存在（包括已被 Reaper 移除的）都回 404。
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	name, err := utils.ParticipantFromContext(r.Context())
	if err != nil {
		sendJSONError(w, "Participant not found", http.StatusNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	err = h.Registry.Heartbeat(ctx, name)
	if errors.Is(err, models.ErrNotFound) {
		sendJSONError(w, "Participant not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("Error refreshing heartbeat for %s: %v", name, err)
		sendJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
