package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fakeUploader struct {
	uploads map[string]string // key -> content type
	copies  []string
	objects map[string]bool
}

func (f *fakeUploader) UploadFile(ctx context.Context, key, localPath, contentType string) error {
	if f.uploads == nil {
		f.uploads = map[string]string{}
	}
	f.uploads[key] = contentType
	return nil
}

func (f *fakeUploader) CopyToLatest(ctx context.Context, srcKey, filename, contentType string) error {
	f.copies = append(f.copies, filename)
	return nil
}

func (f *fakeUploader) KeyForDate(t time.Time, filename string) string {
	y, m, d := t.UTC().Date()
	return "genix/" + time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Format("2006/01/02") + "/" + filename
}

func (f *fakeUploader) Exists(ctx context.Context, key string) (bool, error) {
	return f.objects[key], nil
}

func swapUploader(t *testing.T, fake uploader) {
	t.Helper()
	orig := newUploader
	t.Cleanup(func() { newUploader = orig })
	newUploader = func(ctx context.Context, bucket, prefix, region string) (uploader, error) {
		return fake, nil
	}
}

func TestPublishUploadsWithDatedKey(t *testing.T) {
	tmp := chdirTemp(t)
	t.Setenv("AWS_S3_BUCKET", "media-bucket")

	asset := filepath.Join(tmp, "speech.mp3")
	if err := os.WriteFile(asset, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	fake := &fakeUploader{}
	swapUploader(t, fake)

	if code := run([]string{"publish", asset}); code != 0 {
		t.Fatalf("publish returned %d", code)
	}
	if len(fake.uploads) != 1 {
		t.Fatalf("uploads = %v", fake.uploads)
	}
	for key, contentType := range fake.uploads {
		if !strings.HasPrefix(key, "genix/") || !strings.HasSuffix(key, "/speech.mp3") {
			t.Fatalf("key = %q", key)
		}
		if contentType != "audio/mpeg" {
			t.Fatalf("content type = %q", contentType)
		}
	}
	if len(fake.copies) != 0 {
		t.Fatalf("unexpected latest copies: %v", fake.copies)
	}
}

func TestPublishLatestCopy(t *testing.T) {
	tmp := chdirTemp(t)
	t.Setenv("AWS_S3_BUCKET", "media-bucket")

	asset := filepath.Join(tmp, "video.mp4")
	if err := os.WriteFile(asset, []byte("mp4"), 0o644); err != nil {
		t.Fatal(err)
	}
	fake := &fakeUploader{}
	swapUploader(t, fake)

	if code := run([]string{"publish", asset, "-latest"}); code != 0 {
		t.Fatalf("publish returned %d", code)
	}
	if len(fake.copies) != 1 || fake.copies[0] != "video.mp4" {
		t.Fatalf("copies = %v", fake.copies)
	}
}

func TestPublishRefusesOverwrite(t *testing.T) {
	tmp := chdirTemp(t)
	t.Setenv("AWS_S3_BUCKET", "media-bucket")

	asset := filepath.Join(tmp, "speech.mp3")
	if err := os.WriteFile(asset, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	fake := &fakeUploader{objects: map[string]bool{}}
	key := fake.KeyForDate(time.Now().UTC(), "speech.mp3")
	fake.objects[key] = true
	swapUploader(t, fake)

	if code := run([]string{"publish", asset}); code != 1 {
		t.Fatalf("publish over existing object returned %d, want 1", code)
	}
	if len(fake.uploads) != 0 {
		t.Fatalf("uploaded despite existing object: %v", fake.uploads)
	}

	if code := run([]string{"publish", asset, "-force"}); code != 0 {
		t.Fatalf("publish -force returned %d", code)
	}
	if len(fake.uploads) != 1 {
		t.Fatalf("force upload missing: %v", fake.uploads)
	}
}

func TestPublishRequiresBucket(t *testing.T) {
	tmp := chdirTemp(t)
	t.Setenv("AWS_S3_BUCKET", "")

	asset := filepath.Join(tmp, "speech.mp3")
	if err := os.WriteFile(asset, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	swapUploader(t, &fakeUploader{})

	if code := run([]string{"publish", asset}); code != 1 {
		t.Fatalf("publish without bucket returned %d, want 1", code)
	}
}
