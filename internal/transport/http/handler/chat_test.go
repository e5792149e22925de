package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"docchat/internal/app"
	"docchat/internal/model"
	"docchat/internal/notify"
	"docchat/internal/repository"
	"docchat/internal/transport/http/response"
)

type stubQueue struct{}

func (stubQueue) Publish(_ context.Context, _ interface{}) error { return nil }

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&model.File{}, &model.Chat{}, &model.Message{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	chatService := app.NewChatService(
		repository.NewChatRepository(db),
		repository.NewMessageRepository(db),
		stubQueue{},
		nil,
		nil,
	)
	h := NewChatHandler(chatService, nil)

	router := gin.New()
	router.GET("/api/v1/chats/:id", h.Get)
	router.POST("/api/v1/chats/:id/messages", h.Send)
	router.GET("/api/v1/chats/:id/messages", h.History)
	return router, db
}

func seedChat(t *testing.T, db *gorm.DB) *model.Chat {
	t.Helper()
	file := &model.File{StorageKey: "uploads/01A.pdf", Name: "a.pdf", Status: model.FileStatusReady}
	chat := &model.Chat{Title: "a.pdf"}
	if err := repository.NewChatRepository(db).CreateWithFile(file, chat); err != nil {
		t.Fatalf("seed chat: %v", err)
	}
	return chat
}

func decodeEnvelope(t *testing.T, body []byte) (int, json.RawMessage) {
	t.Helper()
	var envelope struct {
		Code int             `json:"code"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return envelope.Code, envelope.Data
}

func TestSendMessageAccepted(t *testing.T) {
	router, db := newTestRouter(t)
	chat := seedChat(t, db)

	body := strings.NewReader(`{"content":"what is this about?"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/1/messages", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	code, data := decodeEnvelope(t, w.Body.Bytes())
	if code != response.CodeOK {
		t.Fatalf("envelope code = %d", code)
	}
	var message model.Message
	if err := json.Unmarshal(data, &message); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if message.ChatID != chat.ID || message.Role != model.RoleUser {
		t.Fatalf("unexpected message: %+v", message)
	}
}

func TestSendMessageUnknownChat(t *testing.T) {
	router, _ := newTestRouter(t)

	body := strings.NewReader(`{"content":"hello"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/99/messages", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	code, _ := decodeEnvelope(t, w.Body.Bytes())
	if code != response.CodeChatNotFound {
		t.Fatalf("envelope code = %d, want %d", code, response.CodeChatNotFound)
	}
}

func TestSendMessageMissingContent(t *testing.T) {
	router, db := newTestRouter(t)
	seedChat(t, db)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chats/1/messages", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetChatInvalidID(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chats/abc", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

// lateAppendSubscriber appends one more message to the chat at subscribe
// time, standing in for an assistant reply that lands while the client is
// connecting. The live channel is closed immediately, so the only way the
// stream can carry that message is through the backlog read.
type lateAppendSubscriber struct {
	db      *gorm.DB
	content string
}

func (s *lateAppendSubscriber) Subscribe(_ context.Context, chatID uint) (<-chan notify.MessageEvent, func()) {
	message := &model.Message{ChatID: chatID, Role: model.RoleAssistant, Content: s.content}
	_ = repository.NewMessageRepository(s.db).Create(message)
	events := make(chan notify.MessageEvent)
	close(events)
	return events, func() {}
}

func TestEventsDeliverMessageAppendedDuringSubscribe(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&model.File{}, &model.Chat{}, &model.Message{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	chat := seedChat(t, db)

	messageRepo := repository.NewMessageRepository(db)
	if err := messageRepo.Create(&model.Message{ChatID: chat.ID, Role: model.RoleUser, Content: "question"}); err != nil {
		t.Fatalf("create message: %v", err)
	}

	chatService := app.NewChatService(
		repository.NewChatRepository(db),
		repository.NewMessageRepository(db),
		stubQueue{},
		nil,
		nil,
	)
	h := NewChatHandler(chatService, &lateAppendSubscriber{db: db, content: "late reply"})

	router := gin.New()
	router.GET("/api/v1/chats/:id/events", h.Events)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chats/1/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, "question") {
		t.Fatalf("stream missing existing message: %s", body)
	}
	if !strings.Contains(body, "late reply") {
		t.Fatalf("stream missing message appended during subscribe: %s", body)
	}
}

func TestHistoryReturnsMessagesInOrder(t *testing.T) {
	router, db := newTestRouter(t)
	chat := seedChat(t, db)

	messageRepo := repository.NewMessageRepository(db)
	for _, content := range []string{"first", "second"} {
		if err := messageRepo.Create(&model.Message{ChatID: chat.ID, Role: model.RoleUser, Content: content}); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chats/1/messages", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	_, data := decodeEnvelope(t, w.Body.Bytes())
	var messages []model.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	if len(messages) != 2 || messages[0].Content != "first" || messages[1].Content != "second" {
		t.Fatalf("unexpected history: %+v", messages)
	}
}
