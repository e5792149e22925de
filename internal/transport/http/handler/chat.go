package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docchat/internal/app"
	"docchat/internal/notify"
	"docchat/internal/transport/http/response"
)

// EventSubscriber delivers live message events for one chat. *notify.Notifier
// satisfies it.
type EventSubscriber interface {
	Subscribe(ctx context.Context, chatID uint) (<-chan notify.MessageEvent, func())
}

type ChatHandler struct {
	chatService *app.ChatService
	notifier    EventSubscriber
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func NewChatHandler(chatService *app.ChatService, notifier EventSubscriber) *ChatHandler {
	return &ChatHandler{chatService: chatService, notifier: notifier}
}

func (h *ChatHandler) List(c *gin.Context) {
	chats, err := h.chatService.List()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list chats failed")
		return
	}
	response.OK(c, chats)
}

func (h *ChatHandler) Get(c *gin.Context) {
	chatID, err := parseChatID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid chat id")
		return
	}

	chat, err := h.chatService.Get(chatID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrChatNotFound):
			response.Error(c, http.StatusNotFound, response.CodeChatNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get chat failed")
		}
		return
	}
	response.OK(c, chat)
}

func (h *ChatHandler) Delete(c *gin.Context) {
	chatID, err := parseChatID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid chat id")
		return
	}

	if err := h.chatService.Delete(c.Request.Context(), chatID); err != nil {
		switch {
		case errors.Is(err, app.ErrChatNotFound):
			response.Error(c, http.StatusNotFound, response.CodeChatNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete chat failed")
		}
		return
	}
	response.OK(c, gin.H{"deleted_chat_id": chatID})
}

// Send appends the user message and triggers the answering job. The reply
// arrives through the events stream, never in this response.
func (h *ChatHandler) Send(c *gin.Context) {
	chatID, err := parseChatID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid chat id")
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	message, err := h.chatService.Send(c.Request.Context(), chatID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrMessageEmpty):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrChatNotFound):
			response.Error(c, http.StatusNotFound, response.CodeChatNotFound, err.Error())
		case errors.Is(err, app.ErrAnswerEnqueue):
			response.Error(c, http.StatusServiceUnavailable, response.CodeUpstreamError, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "send message failed")
		}
		return
	}
	response.OK(c, message)
}

func (h *ChatHandler) History(c *gin.Context) {
	chatID, err := parseChatID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid chat id")
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
			limit = parsed
		}
	}

	history, err := h.chatService.History(c.Request.Context(), chatID, limit)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrChatNotFound):
			response.Error(c, http.StatusNotFound, response.CodeChatNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get history failed")
		}
		return
	}
	response.OK(c, history)
}

// Events is the live subscription: it replays the current backlog as SSE
// message events, then forwards every append until the client disconnects.
// This is the only way a client learns that an answer arrived.
func (h *ChatHandler) Events(c *gin.Context) {
	chatID, err := parseChatID(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid chat id")
		return
	}

	// Subscribe before reading the backlog. A message appended in between is
	// then on the live stream; the reverse order would lose it entirely. The
	// lastSeen dedupe below absorbs the overlap.
	events, cancel := h.notifier.Subscribe(c.Request.Context(), chatID)
	defer cancel()

	backlog, err := h.chatService.History(c.Request.Context(), chatID, 0)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrChatNotFound):
			response.Error(c, http.StatusNotFound, response.CodeChatNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "subscribe failed")
		}
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	lastSeen := uint(0)
	for _, msg := range backlog {
		if !writeMessageEvent(c, flusher, msg) {
			return
		}
		lastSeen = msg.ID
	}

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			// The backlog read and the subscription overlap; skip replays.
			if event.Message.ID <= lastSeen {
				continue
			}
			if !writeMessageEvent(c, flusher, event.Message) {
				return
			}
			lastSeen = event.Message.ID
		}
	}
}

func writeMessageEvent(c *gin.Context, flusher http.Flusher, msg interface{}) bool {
	payload, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	if _, err := c.Writer.Write([]byte("event: message\ndata: " + string(payload) + "\n\n")); err != nil {
		return false
	}
	flusher.Flush()
	return true
}

func parseChatID(c *gin.Context) (uint, error) {
	id64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id64 == 0 {
		return 0, errors.New("invalid chat id")
	}
	return uint(id64), nil
}
