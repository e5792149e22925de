package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"docchat/internal/ai"
	"docchat/internal/job"
	"docchat/internal/model"
	"docchat/internal/notify"
	"docchat/internal/repository"
)

// AnswerService runs the answering job: resolve the chat's document, retrieve
// passages scoped to it, assemble the prompt with bounded history, generate,
// and persist exactly one assistant message. Every failure collapses to
// ErrAnswerFailed for the caller; the cause is logged per job.
type AnswerService struct {
	chatRepo     *repository.ChatRepository
	fileRepo     *repository.FileRepository
	messageRepo  *repository.MessageRepository
	retriever    Retriever
	llm          Generator
	historyCache HistoryCache
	notifier     MessageNotifier

	chatCfg         ai.ChatConfig
	embCfg          ai.EmbeddingConfig
	topK            int
	maxHistory      int
	generateTimeout time.Duration
}

func NewAnswerService(
	chatRepo *repository.ChatRepository,
	fileRepo *repository.FileRepository,
	messageRepo *repository.MessageRepository,
	retriever Retriever,
	llm Generator,
	historyCache HistoryCache,
	notifier MessageNotifier,
	chatCfg ai.ChatConfig,
	embCfg ai.EmbeddingConfig,
	topK, maxHistory int,
	generateTimeout time.Duration,
) *AnswerService {
	if topK <= 0 {
		topK = 5
	}
	if maxHistory <= 0 {
		maxHistory = 20
	}
	if generateTimeout <= 0 {
		generateTimeout = 60 * time.Second
	}
	return &AnswerService{
		chatRepo:        chatRepo,
		fileRepo:        fileRepo,
		messageRepo:     messageRepo,
		retriever:       retriever,
		llm:             llm,
		historyCache:    historyCache,
		notifier:        notifier,
		chatCfg:         chatCfg,
		embCfg:          embCfg,
		topK:            topK,
		maxHistory:      maxHistory,
		generateTimeout: generateTimeout,
	}
}

func (s *AnswerService) Answer(ctx context.Context, j job.Answer) error {
	chat, err := s.chatRepo.GetByID(j.ChatID)
	if err != nil {
		return s.fail(j, "resolve chat", err)
	}
	if chat == nil {
		return s.fail(j, "resolve chat", ErrChatNotFound)
	}
	file, err := s.fileRepo.GetByID(chat.FileID)
	if err != nil {
		return s.fail(j, "resolve document", err)
	}
	if file == nil {
		return s.fail(j, "resolve document", ErrChatNotFound)
	}
	// Only a fully indexed document can ground an answer. Anything else would
	// retrieve against an empty or partial index and reply with confidence.
	if file.Status != model.FileStatusReady {
		return s.fail(j, "resolve document", fmt.Errorf("file %d is %s, not ready", file.ID, file.Status))
	}

	vector, err := s.llm.Embed(ctx, s.embCfg, j.Question)
	if err != nil {
		return s.fail(j, "embed question", err)
	}

	passages, err := s.retriever.Search(ctx, vector, file.ID, s.topK)
	if err != nil {
		return s.fail(j, "retrieve passages", err)
	}

	history, err := s.messageRepo.ListRecentByChatID(j.ChatID, s.maxHistory)
	if err != nil {
		return s.fail(j, "load history", err)
	}
	history = turnsBefore(history, j.MessageID)

	prompt := buildAnswerPrompt(history, passages, j.Question)

	genCtx, cancel := context.WithTimeout(ctx, s.generateTimeout)
	defer cancel()
	answer, err := s.llm.Complete(genCtx, s.chatCfg, prompt)
	if err != nil {
		return s.fail(j, "generate", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return s.fail(j, "generate", ErrAnswerFailed)
	}

	assistant := &model.Message{
		ChatID:    j.ChatID,
		Role:      model.RoleAssistant,
		Content:   answer,
		CreatedAt: time.Now(),
	}
	if err := s.messageRepo.Create(assistant); err != nil {
		return s.fail(j, "persist answer", err)
	}

	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, j.ChatID)
		_ = s.historyCache.DeleteHistory(ctx, j.ChatID)
	}
	if s.notifier != nil {
		if err := s.notifier.PublishMessage(ctx, notify.MessageEvent{ChatID: j.ChatID, Message: *assistant}); err != nil {
			log.Printf("answer job %s: notify assistant message failed: %v", j.JobID, err)
		}
	}
	return nil
}

func (s *AnswerService) fail(j job.Answer, step string, cause error) error {
	log.Printf("answer job %s (chat %d): %s failed: %v", j.JobID, j.ChatID, step, cause)
	return ErrAnswerFailed
}

// turnsBefore drops the triggering message and anything after it from the
// history window, so the question is not duplicated in the prompt.
func turnsBefore(history []model.Message, triggerID uint) []model.Message {
	if triggerID == 0 {
		return history
	}
	out := history[:0]
	for _, m := range history {
		if m.ID < triggerID {
			out = append(out, m)
		}
	}
	return out
}
