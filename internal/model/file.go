package model

import "time"

const (
	FileStatusIngesting = "ingesting"
	FileStatusReady     = "ready"
	FileStatusFailed    = "failed"
)

// File is one uploaded PDF. StorageKey points at the object in the bucket;
// the row is immutable after creation except for Status, which tracks
// ingestion into the vector index.
type File struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	StorageKey string    `gorm:"size:256;not null;uniqueIndex" json:"storage_key"`
	Name       string    `gorm:"size:256;not null" json:"name"`
	Status     string    `gorm:"size:16;not null" json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}
