package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"batepapo/backend/handlers/mocks"
	"batepapo/backend/middleware"
	"batepapo/backend/models"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// newTestMocks 準備一組 gomock 依賴
func newTestMocks(t *testing.T) (*mocks.MockParticipantRegistry, *mocks.MockMessageStore, *mocks.MockBroadcaster) {
	t.Helper()
	ctrl := gomock.NewController(t)
	return mocks.NewMockParticipantRegistry(ctrl), mocks.NewMockMessageStore(ctrl), mocks.NewMockBroadcaster(ctrl)
}

// testRouter 建立測試用路由，與 main 的註冊方式一致
func testRouter(h *Handler) http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.Identity)
	router.HandleFunc("/participants", h.JoinParticipant).Methods("POST")
	router.HandleFunc("/participants", h.GetParticipants).Methods("GET")
	router.HandleFunc("/status", h.Heartbeat).Methods("POST")
	router.HandleFunc("/messages", h.PostMessage).Methods("POST")
	router.HandleFunc("/messages", h.GetMessages).Methods("GET")
	router.HandleFunc("/messages/{id}", h.UpdateMessage).Methods("PUT")
	router.HandleFunc("/messages/{id}", h.DeleteMessage).Methods("DELETE")
	return router
}

func doRequest(router http.Handler, method, target, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if user != "" {
		req.Header.Set("User", user)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestJoinParticipant(t *testing.T) {
	registry, store, hub := newTestMocks(t)
	router := testRouter(NewHandler(registry, store, hub))

	// 名稱先經過 Sanitizer 才進註冊表
	registry.EXPECT().Join(gomock.Any(), "Alice").
		Return(&models.Participant{Name: "Alice", LastStatus: 1700000000000}, nil)

	var statusMessage models.Message
	store.EXPECT().Append(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, m *models.Message) { statusMessage = *m }).
		Return(nil)
	hub.EXPECT().Publish(gomock.Any())

	recorder := doRequest(router, "POST", "/participants", "", `{"name":" <b>Alice</b> "}`)
	assert.Equal(t, http.StatusCreated, recorder.Code)

	var participant models.Participant
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&participant))
	assert.Equal(t, "Alice", participant.Name)

	// 加入時要補上一則進場的系統訊息
	assert.Equal(t, "Alice", statusMessage.From)
	assert.Equal(t, models.BroadcastTarget, statusMessage.To)
	assert.Equal(t, models.StatusTextJoined, statusMessage.Text)
	assert.Equal(t, models.MessageTypeStatus, statusMessage.Type)
}

func TestJoinParticipantConflict(t *testing.T) {
	registry, store, hub := newTestMocks(t)
	router := testRouter(NewHandler(registry, store, hub))

	registry.EXPECT().Join(gomock.Any(), "Alice").Return(nil, models.ErrConflict)

	recorder := doRequest(router, "POST", "/participants", "", `{"name":"Alice"}`)
	assert.Equal(t, http.StatusConflict, recorder.Code)
}

func TestJoinParticipantValidation(t *testing.T) {
	registry, store, hub := newTestMocks(t)
	router := testRouter(NewHandler(registry, store, hub))

	// 清掉標記之後名稱是空的，不該碰到註冊表
	recorder := doRequest(router, "POST", "/participants", "", `{"name":"  <br/>  "}`)
	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)

	recorder = doRequest(router, "POST", "/participants", "", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)

	recorder = doRequest(router, "POST", "/participants", "", `not json`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestGetParticipants(t *testing.T) {
	registry, store, hub := newTestMocks(t)
	router := testRouter(NewHandler(registry, store, hub))

	registry.EXPECT().List(gomock.Any()).Return([]models.Participant{
		{Name: "Alice", LastStatus: 1700000000000},
		{Name: "Bob", LastStatus: 1700000001000},
	}, nil)

	recorder := doRequest(router, "GET", "/participants", "", "")
	assert.Equal(t, http.StatusOK, recorder.Code)

	var participants []models.Participant
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&participants))
	assert.Len(t, participants, 2)
}

func TestHeartbeat(t *testing.T) {
	registry, store, hub := newTestMocks(t)
	router := testRouter(NewHandler(registry, store, hub))

	registry.EXPECT().Heartbeat(gomock.Any(), "Alice").Return(nil)

	recorder := doRequest(router, "POST", "/status", "Alice", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestHeartbeatUnknownParticipant(t *testing.T) {
	registry, store, hub := newTestMocks(t)
	router := testRouter(NewHandler(registry, store, hub))

	registry.EXPECT().Heartbeat(gomock.Any(), "Alice").Return(models.ErrNotFound)

	recorder := doRequest(router, "POST", "/status", "Alice", "")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestHeartbeatMissingHeader(t *testing.T) {
	registry, store, hub := newTestMocks(t)
	router := testRouter(NewHandler(registry, store, hub))

	// 標頭缺漏不該碰到註冊表
	recorder := doRequest(router, "POST", "/status", "", "")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestIdentityHeaderDecodedBytePerByte(t *testing.T) {
	registry, store, hub := newTestMocks(t)
	router := testRouter(NewHandler(registry, store, hub))

	// "João" 的 latin1 位元組要還原成同樣的名稱
	rawName := string([]byte{0x4A, 0x6F, 0xE3, 0x6F})
	registry.EXPECT().Heartbeat(gomock.Any(), "João").Return(nil)

	recorder := doRequest(router, "POST", "/status", rawName, "")
	assert.Equal(t, http.StatusOK, recorder.Code)
}
