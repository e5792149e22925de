package app

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"docchat/internal/ai"
	"docchat/internal/model"
	"docchat/internal/notify"
	"docchat/internal/vectorstore"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&model.File{}, &model.Chat{}, &model.Message{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

type fakeQueue struct {
	published []interface{}
	err       error
}

func (q *fakeQueue) Publish(_ context.Context, payload interface{}) error {
	if q.err != nil {
		return q.err
	}
	q.published = append(q.published, payload)
	return nil
}

type fakeNotifier struct {
	events []notify.MessageEvent
}

func (n *fakeNotifier) PublishMessage(_ context.Context, event notify.MessageEvent) error {
	n.events = append(n.events, event)
	return nil
}

// fakeHistoryCache is an in-memory stand-in for the Redis history cache.
// Dirty markers never expire, unlike the real TTL-bound ones.
type fakeHistoryCache struct {
	histories map[uint][]model.Message
	dirty     map[uint]bool
}

func newFakeHistoryCache() *fakeHistoryCache {
	return &fakeHistoryCache{
		histories: make(map[uint][]model.Message),
		dirty:     make(map[uint]bool),
	}
}

func (c *fakeHistoryCache) GetHistory(_ context.Context, chatID uint) ([]model.Message, bool, error) {
	messages, ok := c.histories[chatID]
	return messages, ok, nil
}

func (c *fakeHistoryCache) SetHistory(_ context.Context, chatID uint, messages []model.Message) error {
	c.histories[chatID] = append([]model.Message(nil), messages...)
	return nil
}

func (c *fakeHistoryCache) DeleteHistory(_ context.Context, chatID uint) error {
	delete(c.histories, chatID)
	return nil
}

func (c *fakeHistoryCache) MarkDirty(_ context.Context, chatID uint) error {
	c.dirty[chatID] = true
	return nil
}

func (c *fakeHistoryCache) IsDirty(_ context.Context, chatID uint) (bool, error) {
	return c.dirty[chatID], nil
}

// recordingRetriever captures the file scope of every search so tests can
// assert that retrieval never runs unscoped.
type recordingRetriever struct {
	gotFileID uint
	gotTopK   int
	passages  []vectorstore.Passage
	err       error
}

func (r *recordingRetriever) Search(_ context.Context, _ []float32, fileID uint, topK int) ([]vectorstore.Passage, error) {
	r.gotFileID = fileID
	r.gotTopK = topK
	if r.err != nil {
		return nil, r.err
	}
	return r.passages, nil
}

type fakeGenerator struct {
	completion    string
	completeErr   error
	embedErr      error
	gotPrompt     []ai.ChatMessage
	embedBatchErr error
}

func (g *fakeGenerator) Complete(_ context.Context, _ ai.ChatConfig, messages []ai.ChatMessage) (string, error) {
	g.gotPrompt = messages
	if g.completeErr != nil {
		return "", g.completeErr
	}
	return g.completion, nil
}

func (g *fakeGenerator) Embed(_ context.Context, _ ai.EmbeddingConfig, _ string) ([]float32, error) {
	if g.embedErr != nil {
		return nil, g.embedErr
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (g *fakeGenerator) EmbedBatch(_ context.Context, _ ai.EmbeddingConfig, texts []string) ([][]float32, error) {
	if g.embedBatchErr != nil {
		return nil, g.embedBatchErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}
