package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"genix/internal/gen"
	"genix/internal/tripo"
)

type fakeModelClient struct {
	genStatus    gen.Status
	genErr       string
	submitCalls  int
	convertCalls int
	uploads      []string
	lastParams   tripo.GenerationParams
	assets       map[string]string // output name -> content
}

func (f *fakeModelClient) UploadImage(ctx context.Context, path string) (tripo.FileRef, error) {
	f.uploads = append(f.uploads, path)
	return tripo.FileRef{Type: "png", Token: fmt.Sprintf("tok-%d", len(f.uploads))}, nil
}

func (f *fakeModelClient) TextToModel(ctx context.Context, prompt, negativePrompt string, params tripo.GenerationParams) (string, error) {
	f.submitCalls++
	f.lastParams = params
	return "task-gen", nil
}

func (f *fakeModelClient) ImageToModel(ctx context.Context, file tripo.FileRef, params tripo.GenerationParams) (string, error) {
	f.submitCalls++
	f.lastParams = params
	return "task-gen", nil
}

func (f *fakeModelClient) MultiviewToModel(ctx context.Context, files []tripo.FileRef, params tripo.GenerationParams) (string, error) {
	f.submitCalls++
	f.lastParams = params
	return "task-gen", nil
}

func (f *fakeModelClient) ConvertModel(ctx context.Context, originalTaskID, format string) (string, error) {
	f.convertCalls++
	return "task-conv", nil
}

func (f *fakeModelClient) Task(ctx context.Context, id string) (*tripo.Task, error) {
	task := &tripo.Task{ID: id, Output: map[string]string{}}
	task.Job = gen.Job{ID: id, Status: f.genStatus, Err: f.genErr, Progress: 100}
	for name := range f.assets {
		task.Output[name] = "https://cdn.example.com/" + name
	}
	return task, nil
}

func (f *fakeModelClient) DownloadModels(ctx context.Context, task *tripo.Task, dir string) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	paths := map[string]string{}
	for name, content := range f.assets {
		p := filepath.Join(dir, name+".glb")
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			return nil, err
		}
		paths[name] = p
	}
	return paths, nil
}

func swapModelClient(t *testing.T, fake modelClient, constructed *int) {
	t.Helper()
	orig := newModelClient
	t.Cleanup(func() { newModelClient = orig })
	newModelClient = func(apiKey string) (modelClient, error) {
		if constructed != nil {
			*constructed++
		}
		return fake, nil
	}
}

func Test3DTextToModel(t *testing.T) {
	tmp := chdirTemp(t)
	t.Setenv("TRIPO_API_KEY", "t-test")

	fake := &fakeModelClient{
		genStatus: gen.StatusSucceeded,
		assets:    map[string]string{"model": "glb-main", "pbr_model": "glb-pbr"},
	}
	swapModelClient(t, fake, nil)

	if code := run([]string{"3d", "a small castle"}); code != 0 {
		t.Fatalf("3d returned %d", code)
	}
	if fake.submitCalls != 1 || fake.convertCalls != 0 {
		t.Fatalf("submit=%d convert=%d", fake.submitCalls, fake.convertCalls)
	}
	if !fake.lastParams.Texture || !fake.lastParams.PBR {
		t.Fatalf("params = %+v", fake.lastParams)
	}
	data, err := os.ReadFile(filepath.Join(tmp, "text_to_3d.glb"))
	if err != nil {
		t.Fatalf("missing text_to_3d.glb: %v", err)
	}
	if string(data) != "glb-main" {
		t.Fatalf("primary asset = %q, want the model output", data)
	}
}

func Test3DGenerationFailureSkipsConversion(t *testing.T) {
	chdirTemp(t)
	t.Setenv("TRIPO_API_KEY", "t-test")

	fake := &fakeModelClient{genStatus: gen.StatusFailed, genErr: "prompt rejected"}
	swapModelClient(t, fake, nil)

	if code := run([]string{"3d", "a castle", "-format", "FBX"}); code != 1 {
		t.Fatalf("failed generation returned %d, want 1", code)
	}
	if fake.convertCalls != 0 {
		t.Fatalf("conversion submitted %d times after failed generation", fake.convertCalls)
	}
}

func Test3DConversionPipeline(t *testing.T) {
	tmp := chdirTemp(t)
	t.Setenv("TRIPO_API_KEY", "t-test")

	fake := &fakeModelClient{
		genStatus: gen.StatusSucceeded,
		assets:    map[string]string{"model": "fbx-bytes"},
	}
	swapModelClient(t, fake, nil)

	if code := run([]string{"3d", "a castle", "-format", "FBX"}); code != 0 {
		t.Fatalf("3d returned %d", code)
	}
	if fake.convertCalls != 1 {
		t.Fatalf("convert calls = %d, want 1", fake.convertCalls)
	}
	if _, err := os.Stat(filepath.Join(tmp, "text_to_3d.glb")); err != nil {
		t.Fatalf("missing output: %v", err)
	}
}

func Test3DMultiviewRequiresV2(t *testing.T) {
	tmp := chdirTemp(t)
	t.Setenv("TRIPO_API_KEY", "t-test")

	img := filepath.Join(tmp, "front.png")
	if err := os.WriteFile(img, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	constructed := 0
	swapModelClient(t, &fakeModelClient{}, &constructed)

	if code := run([]string{"3d", "-images", img, "-m", "v1.4-20240625"}); code != 1 {
		t.Fatalf("multiview with v1.4 returned %d, want 1", code)
	}
	if constructed != 0 {
		t.Fatalf("client constructed %d times before validation", constructed)
	}
}

func Test3DImageMode(t *testing.T) {
	tmp := chdirTemp(t)
	t.Setenv("TRIPO_API_KEY", "t-test")

	img := filepath.Join(tmp, "input.png")
	if err := os.WriteFile(img, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	fake := &fakeModelClient{
		genStatus: gen.StatusSucceeded,
		assets:    map[string]string{"base_model": "glb-base"},
	}
	swapModelClient(t, fake, nil)

	if code := run([]string{"3d", "-i", img}); code != 0 {
		t.Fatalf("3d returned %d", code)
	}
	if len(fake.uploads) != 1 || fake.uploads[0] != img {
		t.Fatalf("uploads = %v", fake.uploads)
	}
	data, err := os.ReadFile(filepath.Join(tmp, "image_to_3d.glb"))
	if err != nil {
		t.Fatalf("missing image_to_3d.glb: %v", err)
	}
	if string(data) != "glb-base" {
		t.Fatalf("asset = %q", data)
	}
}

func Test3DRequiresAnInput(t *testing.T) {
	chdirTemp(t)
	if code := run([]string{"3d"}); code != 2 {
		t.Fatalf("no input returned %d, want 2", code)
	}
}
