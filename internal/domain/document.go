package domain

import (
	"time"

	"github.com/google/uuid"
)

// DocumentMetadata describes where a document came from and how to treat it.
type DocumentMetadata struct {
	Type      string    `json:"type,omitempty" yaml:"type,omitempty"`
	Tags      []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	Source    string    `json:"source,omitempty" yaml:"source,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Document is a unit of text handed to the ingest pipeline.
type Document struct {
	ID       string
	Content  string
	Metadata DocumentMetadata
}

// NewDocument creates a document with a fresh UUID and timestamps.
func NewDocument(content string, meta DocumentMetadata) Document {
	now := time.Now().UTC()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	if meta.UpdatedAt.IsZero() {
		meta.UpdatedAt = meta.CreatedAt
	}
	return Document{ID: uuid.NewString(), Content: content, Metadata: meta}
}
