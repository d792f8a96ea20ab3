package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/sqlchat/sqlchat/internal/storage"
)

const contentTypeParquet = "application/vnd.apache.parquet"

type Receipt struct {
	Key   string
	Size  int64
	ETag  string
	Turns int
}

// Archiver exports session transcripts to object storage. It never reads them back.
type Archiver struct {
	store storage.TranscriptStore
	now   func() time.Time
}

func New(store storage.TranscriptStore) *Archiver {
	return &Archiver{store: store, now: time.Now}
}

func (a *Archiver) Archive(ctx context.Context, transcript Transcript) (Receipt, error) {
	if a == nil || a.store == nil {
		return Receipt{}, fmt.Errorf("archive store is not configured")
	}
	encoded, err := EncodeTranscript(transcript)
	if err != nil {
		return Receipt{}, err
	}
	stored, err := a.store.PutTranscript(ctx, storage.TranscriptObject{
		Owner:       transcript.Owner,
		SessionID:   transcript.SessionID,
		Variant:     string(transcript.Variant),
		Turns:       encoded.TurnCount,
		ArchivedAt:  a.now().UTC(),
		ContentType: contentTypeParquet,
		Data:        encoded.Data,
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("upload transcript: %w", err)
	}
	return Receipt{Key: stored.Key, Size: stored.Size, ETag: stored.ETag, Turns: encoded.TurnCount}, nil
}
