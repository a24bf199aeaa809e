// Package entry defines the clipboard entry model shared by the store,
// the rule engine and the watch loop.
package entry

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

type ContentType string

const (
	TypeText  ContentType = "text"
	TypeImage ContentType = "image"
)

// Entry is one captured clipboard item. Two entries with the same
// ContentHash are the same logical entry regardless of other fields.
type Entry struct {
	bun.BaseModel `bun:"table:clipboard_entries"`

	ID          int64       `bun:"id,pk,autoincrement" json:"id"`
	ContentType ContentType `bun:"content_type,notnull" json:"content_type"`
	TextContent string      `bun:"text_content" json:"text_content,omitempty"`
	BlobContent []byte      `bun:"blob_content" json:"-"`
	ContentHash string      `bun:"content_hash,unique,notnull" json:"content_hash"`
	SourceApp   *string     `bun:"source_app" json:"source_app,omitempty"`
	SourceTitle *string     `bun:"source_title" json:"source_title,omitempty"`
	CreatedAt   time.Time   `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	ExpiresAt   *time.Time  `bun:"expires_at" json:"expires_at,omitempty"`
	Metadata    string      `bun:"metadata,default:'{}'" json:"metadata,omitempty"`
}

// NewText builds a text entry. sourceApp and sourceTitle may be empty.
func NewText(text, sourceApp, sourceTitle string) *Entry {
	return &Entry{
		ContentType: TypeText,
		TextContent: text,
		ContentHash: HashBytes([]byte(text)),
		SourceApp:   optional(sourceApp),
		SourceTitle: optional(sourceTitle),
	}
}

// NewImage builds an image entry from already-encoded PNG bytes.
func NewImage(pngBytes []byte, sourceApp, sourceTitle string) *Entry {
	return &Entry{
		ContentType: TypeImage,
		BlobContent: pngBytes,
		ContentHash: HashBytes(pngBytes),
		SourceApp:   optional(sourceApp),
		SourceTitle: optional(sourceTitle),
	}
}

func (e *Entry) IsImage() bool { return e.ContentType == TypeImage }
func (e *Entry) IsText() bool  { return e.ContentType == TypeText }

// SetText replaces the text content and recomputes the content hash.
func (e *Entry) SetText(text string) {
	e.TextContent = text
	e.ContentHash = HashBytes([]byte(text))
}

// Size returns the content payload size in bytes.
func (e *Entry) Size() int {
	if e.IsImage() {
		return len(e.BlobContent)
	}
	return len(e.TextContent)
}

// HashBytes computes the SHA-256 content hash used as the dedup key.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
