package app

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"

	"docchat/internal/job"
	"docchat/internal/model"
	"docchat/internal/objectstore"
	"docchat/internal/repository"
)

// UploadService turns a raw file upload into a chat-ready document: reserve a
// slot, let the client push bytes to it, then commit.
type UploadService struct {
	slots    SlotStore
	chatRepo *repository.ChatRepository
	fileRepo *repository.FileRepository
	queue    JobQueue
}

func NewUploadService(
	slots SlotStore,
	chatRepo *repository.ChatRepository,
	fileRepo *repository.FileRepository,
	queue JobQueue,
) *UploadService {
	return &UploadService{
		slots:    slots,
		chatRepo: chatRepo,
		fileRepo: fileRepo,
		queue:    queue,
	}
}

func (s *UploadService) RequestSlot(ctx context.Context) (*objectstore.Slot, error) {
	slot, err := s.slots.ReserveSlot(ctx)
	if err != nil {
		log.Printf("upload: reserve slot failed: %v", err)
		return nil, ErrStorageUnavailable
	}
	return slot, nil
}

// Commit validates the finished upload, then creates the file and its chat in
// one transaction and enqueues ingestion. Validation happens before anything
// is written, so a rejected upload leaves no chat behind.
func (s *UploadService) Commit(ctx context.Context, uploadID, fileName string) (*model.Chat, error) {
	uploadID = strings.TrimSpace(uploadID)
	if uploadID == "" {
		return nil, ErrInvalidInput
	}

	storageKey, err := s.slots.Finalize(ctx, uploadID)
	if err != nil {
		switch {
		case errors.Is(err, objectstore.ErrObjectMissing):
			return nil, ErrUploadIncomplete
		case errors.Is(err, objectstore.ErrWrongContentType):
			return nil, ErrInvalidFileType
		default:
			log.Printf("upload: finalize slot %s failed: %v", uploadID, err)
			return nil, ErrStorageUnavailable
		}
	}

	name := strings.TrimSpace(fileName)
	if name == "" {
		name = "Untitled"
	}

	file := &model.File{
		StorageKey: storageKey,
		Name:       name,
		Status:     model.FileStatusIngesting,
	}
	chat := &model.Chat{Title: name}
	if err := s.chatRepo.CreateWithFile(file, chat); err != nil {
		return nil, err
	}

	ingestJob := job.Ingest{JobID: uuid.NewString(), FileID: file.ID}
	if err := s.queue.Publish(ctx, ingestJob); err != nil {
		// The chat exists and the object is stored; mark the file failed so
		// answering reports a clear state until re-ingestion.
		log.Printf("upload: enqueue ingest for file %d failed: %v", file.ID, err)
		_ = s.fileRepo.UpdateStatus(file.ID, model.FileStatusFailed)
	}

	return chat, nil
}
