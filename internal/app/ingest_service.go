package app

import (
	"context"
	"fmt"
	"strings"

	"docchat/internal/ai"
	"docchat/internal/job"
	"docchat/internal/model"
	"docchat/internal/pkg/pdfextract"
	"docchat/internal/repository"
)

const defaultEmbedBatch = 10 // embedding APIs often limit batch size

// IngestService indexes an uploaded PDF into the vector store: extract text,
// chunk, embed in batches, upsert with the owning file's ID in every payload.
type IngestService struct {
	fileRepo *repository.FileRepository
	objects  ObjectOpener
	index    VectorIndex
	llm      Generator

	embCfg       ai.EmbeddingConfig
	chunkSize    int
	chunkOverlap int
	embedBatch   int
}

func NewIngestService(
	fileRepo *repository.FileRepository,
	objects ObjectOpener,
	index VectorIndex,
	llm Generator,
	embCfg ai.EmbeddingConfig,
	chunkSize, chunkOverlap, embedBatch int,
) *IngestService {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if chunkOverlap <= 0 {
		chunkOverlap = defaultChunkOverlap
	}
	if embedBatch <= 0 {
		embedBatch = defaultEmbedBatch
	}
	return &IngestService{
		fileRepo:     fileRepo,
		objects:      objects,
		index:        index,
		llm:          llm,
		embCfg:       embCfg,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		embedBatch:   embedBatch,
	}
}

func (s *IngestService) Ingest(ctx context.Context, j job.Ingest) error {
	file, err := s.fileRepo.GetByID(j.FileID)
	if err != nil {
		return err
	}
	if file == nil {
		return fmt.Errorf("ingest job %s: file %d not found", j.JobID, j.FileID)
	}

	if err := s.ingest(ctx, file); err != nil {
		_ = s.fileRepo.UpdateStatus(file.ID, model.FileStatusFailed)
		return fmt.Errorf("ingest job %s (file %d): %w", j.JobID, file.ID, err)
	}
	return s.fileRepo.UpdateStatus(file.ID, model.FileStatusReady)
}

func (s *IngestService) ingest(ctx context.Context, file *model.File) error {
	rc, err := s.objects.Open(ctx, file.StorageKey)
	if err != nil {
		return err
	}
	defer rc.Close()

	text, err := pdfextract.ExtractText(rc)
	if err != nil {
		return fmt.Errorf("extract pdf text failed: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("pdf contains no extractable text")
	}

	chunks := chunkText(text, s.chunkSize, s.chunkOverlap)
	if len(chunks) == 0 {
		return fmt.Errorf("chunking produced no passages")
	}

	var embeddings [][]float32
	for i := 0; i < len(chunks); i += s.embedBatch {
		end := i + s.embedBatch
		if end > len(chunks) {
			end = len(chunks)
		}
		batch, err := s.llm.EmbedBatch(ctx, s.embCfg, chunks[i:end])
		if err != nil {
			return fmt.Errorf("embed chunk batch failed: %w", err)
		}
		embeddings = append(embeddings, batch...)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(embeddings))
	}

	if err := s.index.Upsert(ctx, file.ID, chunks, embeddings); err != nil {
		return fmt.Errorf("upsert passages failed: %w", err)
	}
	return nil
}
