package app

import (
	"context"
	"io"

	"docchat/internal/ai"
	"docchat/internal/model"
	"docchat/internal/notify"
	"docchat/internal/objectstore"
	"docchat/internal/vectorstore"
)

// JobQueue hands a job payload to the async workers. Fire-and-forget from the
// caller's point of view.
type JobQueue interface {
	Publish(ctx context.Context, payload interface{}) error
}

// HistoryCache is the cache-aside store for chat histories.
type HistoryCache interface {
	GetHistory(ctx context.Context, chatID uint) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, chatID uint, messages []model.Message) error
	DeleteHistory(ctx context.Context, chatID uint) error
	MarkDirty(ctx context.Context, chatID uint) error
	IsDirty(ctx context.Context, chatID uint) (bool, error)
}

// MessageNotifier broadcasts appended messages to live subscribers.
type MessageNotifier interface {
	PublishMessage(ctx context.Context, event notify.MessageEvent) error
}

// Retriever maps a query vector to the most relevant passages of one file.
// The file ID is a required argument, not an option: retrieval scoped to the
// wrong document must be unrepresentable.
type Retriever interface {
	Search(ctx context.Context, vector []float32, fileID uint, topK int) ([]vectorstore.Passage, error)
}

// VectorIndex is the write side of the passage index.
type VectorIndex interface {
	Upsert(ctx context.Context, fileID uint, chunks []string, vectors [][]float32) error
}

// Generator is the embedding and completion capability. *ai.Client satisfies it.
type Generator interface {
	Complete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (string, error)
	Embed(ctx context.Context, cfg ai.EmbeddingConfig, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, cfg ai.EmbeddingConfig, texts []string) ([][]float32, error)
}

// SlotStore issues and finalizes upload slots.
type SlotStore interface {
	ReserveSlot(ctx context.Context) (*objectstore.Slot, error)
	Finalize(ctx context.Context, slotID string) (string, error)
}

// ObjectOpener streams finished uploads back for ingestion.
type ObjectOpener interface {
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}
