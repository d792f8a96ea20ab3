package s3

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/sqlchat/sqlchat/internal/config"
	"github.com/sqlchat/sqlchat/internal/storage"
)

func sampleObject() storage.TranscriptObject {
	return storage.TranscriptObject{
		Owner:       "alice",
		SessionID:   "s1",
		Variant:     "live",
		Turns:       3,
		ArchivedAt:  time.UnixMilli(1771495200000).UTC(),
		ContentType: "application/vnd.apache.parquet",
		Data:        []byte("abc"),
	}
}

func TestPutTranscriptKeysByOwnerAndDay(t *testing.T) {
	fake := &fakeClient{}
	store, err := newWithClient("chat-archive", "/transcripts/prod/", fake)
	if err != nil {
		t.Fatalf("newWithClient() error = %v", err)
	}

	stored, err := store.PutTranscript(context.Background(), sampleObject())
	if err != nil {
		t.Fatalf("PutTranscript() error = %v", err)
	}
	want := "transcripts/prod/alice/date=2026-02-19/s1-1771495200000.parquet"
	if fake.bucket != "chat-archive" || fake.key != want {
		t.Fatalf("put = %s/%s, want chat-archive/%s", fake.bucket, fake.key, want)
	}
	if stored.Key != want || stored.Size != 3 || stored.ETag != "etag-1" {
		t.Fatalf("stored = %+v", stored)
	}
	if string(fake.body) != "abc" || fake.opts.ContentType != "application/vnd.apache.parquet" {
		t.Fatalf("body=%q content type=%q", fake.body, fake.opts.ContentType)
	}
	meta := fake.opts.UserMetadata
	if meta["session-id"] != "s1" || meta["owner"] != "alice" || meta["variant"] != "live" || meta["turns"] != "3" {
		t.Fatalf("metadata = %v", meta)
	}
}

func TestPutTranscriptRejectsUnsafeOwner(t *testing.T) {
	fake := &fakeClient{}
	store, _ := newWithClient("chat-archive", "", fake)
	object := sampleObject()
	object.Owner = "../etc"
	if _, err := store.PutTranscript(context.Background(), object); err == nil {
		t.Fatal("expected invalid owner error")
	}
	if fake.key != "" {
		t.Fatalf("uploaded %q despite invalid owner", fake.key)
	}
}

func TestPutTranscriptWrapsUploadErrors(t *testing.T) {
	store, _ := newWithClient("chat-archive", "", &fakeClient{putErr: errors.New("access denied")})
	if _, err := store.PutTranscript(context.Background(), sampleObject()); err == nil {
		t.Fatal("expected upload error")
	}
}

func TestReadyRequiresExistingBucket(t *testing.T) {
	fake := &fakeClient{}
	store, _ := newWithClient("chat-archive", "", fake)
	if err := store.Ready(context.Background()); err == nil {
		t.Fatal("expected missing bucket error")
	}
	fake.bucketExists = true
	if err := store.Ready(context.Background()); err != nil {
		t.Fatalf("Ready() error = %v", err)
	}
	fake.existsErr = errors.New("connection refused")
	if err := store.Ready(context.Background()); err == nil {
		t.Fatal("expected reachability error")
	}
}

func TestEnsureBucketCreatesWhenMissing(t *testing.T) {
	fake := &fakeClient{}
	store, _ := newWithClient("chat-archive", "", fake)
	if err := store.ensureBucket(context.Background(), "us-east-1"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if fake.madeBucket != "chat-archive" || fake.madeRegion != "us-east-1" {
		t.Fatalf("MakeBucket(%q, %q)", fake.madeBucket, fake.madeRegion)
	}

	fake.madeBucket = ""
	fake.bucketExists = true
	if err := store.ensureBucket(context.Background(), "us-east-1"); err != nil || fake.madeBucket != "" {
		t.Fatalf("existing bucket: err=%v made=%q", err, fake.madeBucket)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(context.Background(), config.ArchiveConfig{Bucket: "b"}); err == nil {
		t.Fatal("expected endpoint error")
	}
	if _, err := New(context.Background(), config.ArchiveConfig{Endpoint: "localhost:9000"}); err == nil {
		t.Fatal("expected bucket error")
	}
}

func TestParseEndpoint(t *testing.T) {
	endpoint, secure, err := parseEndpoint("https://minio.example.com", false)
	if err != nil {
		t.Fatalf("parseEndpoint() error = %v", err)
	}
	if endpoint != "minio.example.com" || !secure {
		t.Fatalf("endpoint/secure = %q/%v", endpoint, secure)
	}
	endpoint, secure, err = parseEndpoint("localhost:9000", true)
	if err != nil || endpoint != "localhost:9000" || !secure {
		t.Fatalf("endpoint/secure/err = %q/%v/%v", endpoint, secure, err)
	}
}

type fakeClient struct {
	bucket       string
	key          string
	body         []byte
	opts         minio.PutObjectOptions
	putErr       error
	bucketExists bool
	existsErr    error
	madeBucket   string
	madeRegion   string
}

func (f *fakeClient) PutObject(_ context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	f.bucket, f.key, f.opts = bucket, key, opts
	f.body, _ = io.ReadAll(reader)
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size, ETag: "etag-1"}, nil
}

func (f *fakeClient) BucketExists(context.Context, string) (bool, error) {
	return f.bucketExists, f.existsErr
}

func (f *fakeClient) MakeBucket(_ context.Context, bucket string, opts minio.MakeBucketOptions) error {
	f.madeBucket, f.madeRegion = bucket, opts.Region
	return nil
}
