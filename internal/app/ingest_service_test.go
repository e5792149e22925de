package app

import (
	"context"
	"errors"
	"io"
	"testing"

	"docchat/internal/ai"
	"docchat/internal/job"
	"docchat/internal/model"
	"docchat/internal/repository"
)

type failingOpener struct {
	err error
}

func (o *failingOpener) Open(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, o.err
}

type recordingIndex struct {
	gotFileID uint
	chunks    []string
	vectors   [][]float32
}

func (x *recordingIndex) Upsert(_ context.Context, fileID uint, chunks []string, vectors [][]float32) error {
	x.gotFileID = fileID
	x.chunks = chunks
	x.vectors = vectors
	return nil
}

func TestIngestUnknownFile(t *testing.T) {
	db := openTestDB(t)
	svc := NewIngestService(
		repository.NewFileRepository(db),
		&failingOpener{err: errors.New("unused")},
		&recordingIndex{},
		&fakeGenerator{},
		ai.EmbeddingConfig{},
		0, 0, 0,
	)

	if err := svc.Ingest(context.Background(), job.Ingest{JobID: "j1", FileID: 5}); err == nil {
		t.Fatal("expected error for unknown file")
	}
}

func TestIngestOpenFailureMarksFileFailed(t *testing.T) {
	db := openTestDB(t)
	file, _ := seedChatWithFile(t, db)

	fileRepo := repository.NewFileRepository(db)
	svc := NewIngestService(
		fileRepo,
		&failingOpener{err: errors.New("object gone")},
		&recordingIndex{},
		&fakeGenerator{},
		ai.EmbeddingConfig{},
		0, 0, 0,
	)

	if err := svc.Ingest(context.Background(), job.Ingest{JobID: "j1", FileID: file.ID}); err == nil {
		t.Fatal("expected error when the object cannot be opened")
	}

	got, err := fileRepo.GetByID(file.ID)
	if err != nil || got == nil {
		t.Fatalf("load file: %v", err)
	}
	if got.Status != model.FileStatusFailed {
		t.Fatalf("file status = %q, want %q", got.Status, model.FileStatusFailed)
	}
}
