package vectorstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchAlwaysSendsFileFilter(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("decode search body: %v", err)
		}
		_, _ = w.Write([]byte(`{"result":[{"score":0.9,"payload":{"file_id":7,"index":0,"text":"hello"}}]}`))
	}))
	defer server.Close()

	q := NewQdrant(QdrantConfig{URL: server.URL, Collection: "passages"})
	passages, err := q.Search(context.Background(), []float32{0.1, 0.2}, 7, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	filter, ok := body["filter"].(map[string]interface{})
	if !ok {
		t.Fatal("search request has no filter")
	}
	must, ok := filter["must"].([]interface{})
	if !ok || len(must) != 1 {
		t.Fatalf("filter.must malformed: %+v", filter)
	}
	cond := must[0].(map[string]interface{})
	if cond["key"] != "file_id" {
		t.Fatalf("filter key = %v, want file_id", cond["key"])
	}
	match := cond["match"].(map[string]interface{})
	if match["value"].(float64) != 7 {
		t.Fatalf("filter value = %v, want 7", match["value"])
	}

	if len(passages) != 1 || passages[0].Text != "hello" || passages[0].FileID != 7 {
		t.Fatalf("unexpected passages: %+v", passages)
	}
}

func TestSearchRejectsZeroFileID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for zero file id")
	}))
	defer server.Close()

	q := NewQdrant(QdrantConfig{URL: server.URL, Collection: "passages"})
	if _, err := q.Search(context.Background(), []float32{0.1}, 0, 5); err == nil {
		t.Fatal("expected error for zero file id")
	}
}

func TestUpsertCarriesFilePayload(t *testing.T) {
	var body struct {
		Points []struct {
			ID      uint64                 `json:"id"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"points"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("decode upsert body: %v", err)
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	q := NewQdrant(QdrantConfig{URL: server.URL, Collection: "passages"})
	chunks := []string{"one", "two"}
	vectors := [][]float32{{0.1}, {0.2}}
	if err := q.Upsert(context.Background(), 3, chunks, vectors); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if len(body.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(body.Points))
	}
	for i, p := range body.Points {
		if p.Payload["file_id"].(float64) != 3 {
			t.Fatalf("point %d file_id = %v, want 3", i, p.Payload["file_id"])
		}
		if p.Payload["text"].(string) != chunks[i] {
			t.Fatalf("point %d text = %v", i, p.Payload["text"])
		}
	}
	// Re-ingestion must land on the same point ids.
	if body.Points[0].ID != uint64(3)<<20 || body.Points[1].ID != uint64(3)<<20|1 {
		t.Fatalf("unexpected point ids: %d, %d", body.Points[0].ID, body.Points[1].ID)
	}
}

func TestUpsertLengthMismatch(t *testing.T) {
	q := NewQdrant(QdrantConfig{URL: "http://unused", Collection: "passages"})
	if err := q.Upsert(context.Background(), 1, []string{"a", "b"}, [][]float32{{0.1}}); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestDeleteByFileIDSendsFilter(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	q := NewQdrant(QdrantConfig{URL: server.URL, Collection: "passages"})
	if err := q.DeleteByFileID(context.Background(), 9); err != nil {
		t.Fatalf("delete: %v", err)
	}

	filter := body["filter"].(map[string]interface{})
	must := filter["must"].([]interface{})
	cond := must[0].(map[string]interface{})
	if cond["key"] != "file_id" {
		t.Fatalf("filter key = %v", cond["key"])
	}
}

func TestSearchSurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "collection not found", http.StatusNotFound)
	}))
	defer server.Close()

	q := NewQdrant(QdrantConfig{URL: server.URL, Collection: "missing"})
	if _, err := q.Search(context.Background(), []float32{0.1}, 1, 5); err == nil {
		t.Fatal("expected error from 404 response")
	}
}
