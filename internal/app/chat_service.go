package app

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"docchat/internal/job"
	"docchat/internal/model"
	"docchat/internal/notify"
	"docchat/internal/repository"
)

type ChatService struct {
	chatRepo     *repository.ChatRepository
	messageRepo  *repository.MessageRepository
	queue        JobQueue
	historyCache HistoryCache
	notifier     MessageNotifier
}

func NewChatService(
	chatRepo *repository.ChatRepository,
	messageRepo *repository.MessageRepository,
	queue JobQueue,
	historyCache HistoryCache,
	notifier MessageNotifier,
) *ChatService {
	return &ChatService{
		chatRepo:     chatRepo,
		messageRepo:  messageRepo,
		queue:        queue,
		historyCache: historyCache,
		notifier:     notifier,
	}
}

// Send appends the user message and enqueues the answering job. It returns as
// soon as the message is durable and the job is on the queue; the reply
// arrives through the subscription, never through this call.
func (s *ChatService) Send(ctx context.Context, chatID uint, content string) (*model.Message, error) {
	if chatID == 0 {
		return nil, ErrInvalidInput
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrMessageEmpty
	}

	chat, err := s.chatRepo.GetByID(chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}

	message := &model.Message{
		ChatID:    chatID,
		Role:      model.RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := s.messageRepo.Create(message); err != nil {
		return nil, err
	}

	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, chatID)
		_ = s.historyCache.DeleteHistory(ctx, chatID)
	}

	answerJob := job.Answer{
		JobID:     uuid.NewString(),
		ChatID:    chatID,
		MessageID: message.ID,
		Question:  content,
	}
	if err := s.queue.Publish(ctx, answerJob); err != nil {
		log.Printf("chat: enqueue answer job for chat %d failed: %v", chatID, err)
		return nil, ErrAnswerEnqueue
	}

	if s.notifier != nil {
		if err := s.notifier.PublishMessage(ctx, notify.MessageEvent{ChatID: chatID, Message: *message}); err != nil {
			log.Printf("chat: notify user message for chat %d failed: %v", chatID, err)
		}
	}

	return message, nil
}

// History reads the ordered message log through the cache.
func (s *ChatService) History(ctx context.Context, chatID uint, limit int) ([]model.Message, error) {
	if chatID == 0 {
		return nil, ErrInvalidInput
	}

	chat, err := s.chatRepo.GetByID(chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}

	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, chatID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, chatID); cacheErr == nil && hit {
				return trimMessages(cached, limit), nil
			}
		}
	}

	messages, err := s.messageRepo.ListByChatID(chatID, limit)
	if err != nil {
		return nil, err
	}
	// Only an unbounded read may populate the cache; caching a shorter window
	// would later serve it as if it were the full history.
	if s.historyCache != nil && limit <= 0 {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, chatID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, chatID, messages)
		}
	}
	return messages, nil
}

func (s *ChatService) Get(chatID uint) (*model.Chat, error) {
	if chatID == 0 {
		return nil, ErrInvalidInput
	}
	chat, err := s.chatRepo.GetByID(chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}
	return chat, nil
}

func (s *ChatService) List() ([]model.Chat, error) {
	return s.chatRepo.List()
}

// Delete removes a chat and its messages. The file row and stored object are
// kept; passages are removed separately when the file itself is deleted.
func (s *ChatService) Delete(ctx context.Context, chatID uint) error {
	if chatID == 0 {
		return ErrInvalidInput
	}
	chat, err := s.chatRepo.GetByID(chatID)
	if err != nil {
		return err
	}
	if chat == nil {
		return ErrChatNotFound
	}
	if err := s.messageRepo.DeleteByChatID(chatID); err != nil {
		return err
	}
	if err := s.chatRepo.DeleteByID(chatID); err != nil {
		return err
	}
	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(ctx, chatID)
	}
	return nil
}

func trimMessages(messages []model.Message, limit int) []model.Message {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}
