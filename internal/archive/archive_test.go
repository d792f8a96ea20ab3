package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/sqlchat/sqlchat/internal/conversation"
	"github.com/sqlchat/sqlchat/internal/storage"
)

func sampleTranscript() Transcript {
	at := time.Date(2026, time.February, 19, 10, 0, 0, 0, time.UTC)
	return Transcript{
		SessionID: "s-1",
		Owner:     "alice",
		Variant:   conversation.VariantMock,
		Turns: []conversation.Turn{
			conversation.NewTurn(conversation.RoleAssistant, conversation.MockGreeting, at),
			conversation.NewTurn(conversation.RoleHuman, "List 10 customer names", at.Add(time.Second)),
			conversation.NewTurn(conversation.RoleAssistant, "It lists names.", at.Add(2*time.Second)),
		},
	}
}

func TestEncodeTranscript(t *testing.T) {
	result, err := EncodeTranscript(sampleTranscript())
	if err != nil {
		t.Fatalf("EncodeTranscript() error = %v", err)
	}
	if result.TurnCount != 3 || len(result.Data) == 0 {
		t.Fatalf("result = %d turns, %d bytes", result.TurnCount, len(result.Data))
	}

	reader := parquet.NewGenericReader[transcriptRow](bytes.NewReader(result.Data))
	defer func() { _ = reader.Close() }()
	rows := make([]transcriptRow, 3)
	count, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("reader.Read() error = %v", err)
	}
	if count != 3 {
		t.Fatalf("read rows = %d", count)
	}
	if rows[1].Seq != 1 || rows[1].Role != "human" || rows[1].Content != "List 10 customer names" {
		t.Fatalf("row 1 = %+v", rows[1])
	}
	if rows[2].Owner != "alice" || rows[2].Variant != "mock" || rows[2].SessionID != "s-1" {
		t.Fatalf("row 2 = %+v", rows[2])
	}
}

func TestEncodeTranscriptRequiresTurns(t *testing.T) {
	if _, err := EncodeTranscript(Transcript{SessionID: "s"}); err == nil {
		t.Fatal("expected error for empty transcript")
	}
}

type memoryStore struct {
	objects map[string]storage.TranscriptObject
	err     error
}

func (m *memoryStore) PutTranscript(_ context.Context, object storage.TranscriptObject) (storage.Stored, error) {
	if m.err != nil {
		return storage.Stored{}, m.err
	}
	key, err := storage.BuildTranscriptKey(object.Owner, object.SessionID, object.ArchivedAt)
	if err != nil {
		return storage.Stored{}, err
	}
	m.objects[key] = object
	return storage.Stored{Key: key, Size: int64(len(object.Data)), ETag: "etag"}, nil
}

func TestArchiverUploadsParquet(t *testing.T) {
	store := &memoryStore{objects: map[string]storage.TranscriptObject{}}
	archiver := New(store)
	archiver.now = func() time.Time { return time.UnixMilli(1771495200000).UTC() }

	receipt, err := archiver.Archive(context.Background(), sampleTranscript())
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if receipt.Key != "alice/date=2026-02-19/s-1-1771495200000.parquet" {
		t.Fatalf("Key = %q", receipt.Key)
	}
	if receipt.Turns != 3 || receipt.ETag != "etag" {
		t.Fatalf("receipt = %+v", receipt)
	}
	object := store.objects[receipt.Key]
	if object.ContentType != contentTypeParquet || object.Variant != "mock" || object.Turns != 3 {
		t.Fatalf("object = %+v", object)
	}
	if int64(len(object.Data)) != receipt.Size || receipt.Size == 0 {
		t.Fatalf("size = %d, data = %d bytes", receipt.Size, len(object.Data))
	}
}

func TestArchiverPropagatesStoreErrors(t *testing.T) {
	archiver := New(&memoryStore{err: errors.New("bucket missing")})
	if _, err := archiver.Archive(context.Background(), sampleTranscript()); err == nil {
		t.Fatal("expected upload error")
	}
	var nilArchiver *Archiver
	if _, err := nilArchiver.Archive(context.Background(), sampleTranscript()); err == nil {
		t.Fatal("expected not configured error")
	}
}
