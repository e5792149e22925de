package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Passage is one retrieved document chunk.
type Passage struct {
	FileID uint    `json:"file_id"`
	Index  int     `json:"index"`
	Text   string  `json:"text"`
	Score  float32 `json:"score"`
}

// Qdrant is a minimal REST client to a Qdrant collection holding document
// passages. Search takes the owning file ID as a required argument and always
// sends it as a payload filter, so a caller cannot retrieve passages from
// another document.
type Qdrant struct {
	baseURL    string
	apiKey     string
	collection string
	httpClient *http.Client
}

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewQdrant(cfg QdrantConfig) *Qdrant {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Qdrant{
		baseURL:    cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// EnsureCollection creates the collection with cosine distance if it does not
// exist yet. Qdrant answers 200 for an existing collection with the same schema.
func (q *Qdrant) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid vector dimension %d", dimension)
	}
	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return q.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", q.collection), body, nil)
}

// Upsert stores the chunks of one file with their vectors. Point IDs are
// derived from file ID and chunk index so re-ingestion overwrites in place.
func (q *Qdrant) Upsert(ctx context.Context, fileID uint, chunks []string, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	points := make([]map[string]interface{}, len(chunks))
	for i := range chunks {
		points[i] = map[string]interface{}{
			"id":     uint64(fileID)<<20 | uint64(i),
			"vector": vectors[i],
			"payload": map[string]interface{}{
				"file_id": fileID,
				"index":   i,
				"text":    chunks[i],
			},
		}
	}
	body := map[string]interface{}{"points": points}
	path := fmt.Sprintf("/collections/%s/points?wait=true", q.collection)
	return q.do(ctx, http.MethodPut, path, body, nil)
}

// Search returns the topK most similar passages belonging to fileID, best
// first. The file filter is not optional.
func (q *Qdrant) Search(ctx context.Context, vector []float32, fileID uint, topK int) ([]Passage, error) {
	if fileID == 0 {
		return nil, fmt.Errorf("file id is required for passage search")
	}
	if topK <= 0 {
		topK = 5
	}
	body := map[string]interface{}{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
		"filter": map[string]interface{}{
			"must": []map[string]interface{}{
				{"key": "file_id", "match": map[string]interface{}{"value": fileID}},
			},
		},
	}

	var resp struct {
		Result []struct {
			Score   float32                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", q.collection)
	if err := q.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}

	passages := make([]Passage, 0, len(resp.Result))
	for _, r := range resp.Result {
		p := Passage{Score: r.Score}
		if v, ok := r.Payload["file_id"].(float64); ok {
			p.FileID = uint(v)
		}
		if v, ok := r.Payload["index"].(float64); ok {
			p.Index = int(v)
		}
		if v, ok := r.Payload["text"].(string); ok {
			p.Text = v
		}
		passages = append(passages, p)
	}
	return passages, nil
}

// DeleteByFileID removes all passages of a file from the collection.
func (q *Qdrant) DeleteByFileID(ctx context.Context, fileID uint) error {
	body := map[string]interface{}{
		"filter": map[string]interface{}{
			"must": []map[string]interface{}{
				{"key": "file_id", "match": map[string]interface{}{"value": fileID}},
			},
		},
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", q.collection)
	return q.do(ctx, http.MethodPost, path, body, nil)
}

func (q *Qdrant) do(ctx context.Context, method, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal qdrant request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build qdrant request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read qdrant response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant response status %d: %s", resp.StatusCode, string(raw))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("parse qdrant json failed: %w", err)
		}
	}
	return nil
}
