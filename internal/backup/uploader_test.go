package backup

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperengineering/topika/internal/config"
)

type fakeS3Client struct {
	bucket string
	key    string
	path   string
	err    error
}

func (f *fakeS3Client) FPutObject(ctx context.Context, bucket, objectName, filePath string) error {
	f.bucket = bucket
	f.key = objectName
	f.path = filePath
	return f.err
}

func TestNewUploader_NoopWithoutBucket(t *testing.T) {
	u, err := NewUploader(config.OffsiteConfig{})
	if err != nil {
		t.Fatalf("NewUploader error = %v", err)
	}
	if _, ok := u.(*NoopUploader); !ok {
		t.Errorf("uploader type = %T, want NoopUploader", u)
	}
	if err := u.Upload(context.Background(), "/tmp/x.json"); err != nil {
		t.Errorf("noop Upload error = %v", err)
	}
}

func TestS3Uploader_KeyLayout(t *testing.T) {
	fake := &fakeS3Client{}
	u := &S3Uploader{client: fake, bucket: "topika-backups"}

	if err := u.Upload(context.Background(), "/data/backups/manual_backup_20250601_090000.json"); err != nil {
		t.Fatalf("Upload error = %v", err)
	}
	if fake.bucket != "topika-backups" {
		t.Errorf("bucket = %q", fake.bucket)
	}
	if fake.key != "backups/manual_backup_20250601_090000.json" {
		t.Errorf("key = %q", fake.key)
	}
}

func TestS3Uploader_Error(t *testing.T) {
	fake := &fakeS3Client{err: errors.New("denied")}
	u := &S3Uploader{client: fake, bucket: "b"}
	if err := u.Upload(context.Background(), "/x.json"); err == nil {
		t.Error("Upload = nil error, want wrapped failure")
	}
}
