package app

import "strings"

const (
	defaultChunkSize    = 512
	defaultChunkOverlap = 64
)

// chunkText splits text into overlapping chunks by rune count. Windows that
// contain only whitespace are skipped; they carry nothing to embed and the
// embedding API rejects them.
func chunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap >= size {
		overlap = size / 2
	}
	var chunks []string
	runes := []rune(text)
	for i := 0; i < len(runes); {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunk := string(runes[i:end])
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
		i += size - overlap
		if i >= len(runes) {
			break
		}
	}
	return chunks
}
