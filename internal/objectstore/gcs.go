package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/oklog/ulid/v2"
)

const pdfContentType = "application/pdf"

var (
	ErrObjectMissing    = errors.New("uploaded object not found")
	ErrWrongContentType = errors.New("uploaded object is not a pdf")
)

// Slot is a single-use upload destination. The client PUTs the file body to
// URL with Content-Type application/pdf, then exchanges ID for a storage key
// via Finalize.
type Slot struct {
	ID  string `json:"upload_id"`
	URL string `json:"url"`
}

// GCS issues signed upload slots on a bucket and reads finished uploads back
// for ingestion.
type GCS struct {
	bucket       *storage.BucketHandle
	prefix       string
	signedExpiry time.Duration
	entropy      io.Reader
}

func New(client *storage.Client, bucket, prefix string, signedExpiry time.Duration) *GCS {
	if signedExpiry <= 0 {
		signedExpiry = 10 * time.Minute
	}
	return &GCS{
		bucket:       client.Bucket(bucket),
		prefix:       prefix,
		signedExpiry: signedExpiry,
		entropy:      ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// ReserveSlot returns a fresh slot backed by a V4 signed PUT URL. The URL is
// restricted to the pdf content type, so a client pushing anything else is
// rejected by the bucket itself.
func (g *GCS) ReserveSlot(ctx context.Context) (*Slot, error) {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
	object := g.objectName(id)

	url, err := g.bucket.SignedURL(object, &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      http.MethodPut,
		Expires:     time.Now().Add(g.signedExpiry),
		ContentType: pdfContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("sign upload url failed: %w", err)
	}
	return &Slot{ID: id, URL: url}, nil
}

// Finalize verifies that the slot's object was fully uploaded as a PDF and
// returns its storage key.
func (g *GCS) Finalize(ctx context.Context, slotID string) (string, error) {
	object := g.objectName(slotID)
	attrs, err := g.bucket.Object(object).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return "", ErrObjectMissing
	}
	if err != nil {
		return "", fmt.Errorf("stat uploaded object failed: %w", err)
	}
	if !strings.EqualFold(attrs.ContentType, pdfContentType) {
		return "", ErrWrongContentType
	}
	return object, nil
}

// Open streams a stored object for ingestion. The caller closes the reader.
func (g *GCS) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	r, err := g.bucket.Object(storageKey).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrObjectMissing
	}
	if err != nil {
		return nil, fmt.Errorf("open stored object failed: %w", err)
	}
	return r, nil
}

func (g *GCS) objectName(slotID string) string {
	return g.prefix + slotID + ".pdf"
}
