package storage

import (
	"context"
	"time"
)

// TranscriptObject is one encoded session transcript on its way to the archive.
type TranscriptObject struct {
	Owner       string
	SessionID   string
	Variant     string
	Turns       int
	ArchivedAt  time.Time
	ContentType string
	Data        []byte
}

// Stored is what the bucket reports for an uploaded transcript.
type Stored struct {
	Key  string
	Size int64
	ETag string
}

// TranscriptStore is the write side of the transcript archive. Objects are
// keyed by BuildTranscriptKey and never read back.
type TranscriptStore interface {
	PutTranscript(ctx context.Context, object TranscriptObject) (Stored, error)
}
