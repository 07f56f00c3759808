package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"genix/internal/google"
)

type fakeGeminiClient struct {
	lastReq google.ImageRequest
	calls   int
	result  *google.ImageResult
}

func (f *fakeGeminiClient) GenerateImage(ctx context.Context, req google.ImageRequest) (*google.ImageResult, error) {
	f.lastReq = req
	f.calls++
	return f.result, nil
}

func swapGeminiClient(t *testing.T, fake geminiImageClient, constructed *int) {
	t.Helper()
	orig := newGeminiImageClient
	t.Cleanup(func() { newGeminiImageClient = orig })
	newGeminiImageClient = func(apiKey string) (geminiImageClient, error) {
		if constructed != nil {
			*constructed++
		}
		return fake, nil
	}
}

func TestGeminiImageWritesPNG(t *testing.T) {
	tmp := chdirTemp(t)
	t.Setenv("GOOGLE_CLOUD_API_KEY", "g-test")

	fake := &fakeGeminiClient{result: &google.ImageResult{Text: "done", Data: []byte("pngdata")}}
	swapGeminiClient(t, fake, nil)

	if code := run([]string{"gemini-image", "a fox", "-a", "16:9", "-r", "2k"}); code != 0 {
		t.Fatalf("gemini-image returned %d", code)
	}
	if fake.lastReq.AspectRatio != "16:9" || fake.lastReq.Resolution != "2K" {
		t.Fatalf("request = %+v", fake.lastReq)
	}
	data, err := os.ReadFile(filepath.Join(tmp, "generated_image.png"))
	if err != nil {
		t.Fatalf("missing generated_image.png: %v", err)
	}
	if string(data) != "pngdata" {
		t.Fatalf("output = %q", data)
	}
}

func TestGeminiImageInvalidAspectBeforeNetwork(t *testing.T) {
	chdirTemp(t)
	t.Setenv("GOOGLE_CLOUD_API_KEY", "g-test")

	constructed := 0
	swapGeminiClient(t, &fakeGeminiClient{}, &constructed)

	if code := run([]string{"gemini-image", "x", "-a", "7:3"}); code != 1 {
		t.Fatalf("invalid aspect returned %d, want 1", code)
	}
	if constructed != 0 {
		t.Fatalf("client constructed %d times before validation", constructed)
	}
}

func TestGeminiImageInputImages(t *testing.T) {
	tmp := chdirTemp(t)
	t.Setenv("GOOGLE_CLOUD_API_KEY", "g-test")

	img := filepath.Join(tmp, "ref.jpg")
	if err := os.WriteFile(img, []byte("jpegdata"), 0o644); err != nil {
		t.Fatal(err)
	}
	fake := &fakeGeminiClient{result: &google.ImageResult{Data: []byte("out")}}
	swapGeminiClient(t, fake, nil)

	if code := run([]string{"gemini-image", "restyle", "-i", img}); code != 0 {
		t.Fatalf("gemini-image returned %d", code)
	}
	if len(fake.lastReq.Images) != 1 {
		t.Fatalf("images = %d", len(fake.lastReq.Images))
	}
	if fake.lastReq.Images[0].MIMEType != "image/jpeg" {
		t.Fatalf("mime = %q", fake.lastReq.Images[0].MIMEType)
	}
}
