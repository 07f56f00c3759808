package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"genix/internal/dashscope"
)

type fakeCustomizer struct {
	lastClone  dashscope.CloneRequest
	lastDesign dashscope.DesignRequest
	cloneCalls int
	listCalls  int
	design     *dashscope.DesignResult
}

func (f *fakeCustomizer) CreateClonedVoice(ctx context.Context, req dashscope.CloneRequest) (string, error) {
	f.lastClone = req
	f.cloneCalls++
	return "myvoice-abc123", nil
}

func (f *fakeCustomizer) DesignVoice(ctx context.Context, req dashscope.DesignRequest) (*dashscope.DesignResult, error) {
	f.lastDesign = req
	return f.design, nil
}

func (f *fakeCustomizer) ListVoices(ctx context.Context, model string, pageIndex, pageSize int) ([]dashscope.VoiceInfo, int, error) {
	f.listCalls++
	return []dashscope.VoiceInfo{{Voice: "v1", TargetModel: model}}, 1, nil
}

func (f *fakeCustomizer) QueryVoice(ctx context.Context, model, voice string) (*dashscope.VoiceInfo, error) {
	return &dashscope.VoiceInfo{Voice: voice, TargetModel: model}, nil
}

func (f *fakeCustomizer) DeleteVoice(ctx context.Context, model, voice string) (string, error) {
	return voice, nil
}

func swapCustomizer(t *testing.T, fake voiceCustomizer, constructed *int) {
	t.Helper()
	orig := newVoiceCustomizer
	t.Cleanup(func() { newVoiceCustomizer = orig })
	newVoiceCustomizer = func(apiKey string) (voiceCustomizer, error) {
		if constructed != nil {
			*constructed++
		}
		return fake, nil
	}
}

func TestVoiceCloneCreate(t *testing.T) {
	tmp := chdirTemp(t)
	t.Setenv("DASHSCOPE_API_KEY", "ds-test")

	audio := filepath.Join(tmp, "sample.wav")
	if err := os.WriteFile(audio, []byte("RIFFaudio"), 0o644); err != nil {
		t.Fatal(err)
	}
	fake := &fakeCustomizer{}
	swapCustomizer(t, fake, nil)

	if code := run([]string{"voice-clone", "create", audio, "-n", "my_voice", "-l", "en"}); code != 0 {
		t.Fatalf("voice-clone create returned %d", code)
	}
	if fake.cloneCalls != 1 {
		t.Fatalf("expected 1 clone call, got %d", fake.cloneCalls)
	}
	if !strings.HasPrefix(fake.lastClone.AudioDataURI, "data:audio/wav;base64,") {
		t.Fatalf("data uri = %q", fake.lastClone.AudioDataURI)
	}
	if fake.lastClone.PreferredName != "my_voice" || fake.lastClone.Language != "en" {
		t.Fatalf("request = %+v", fake.lastClone)
	}
	if fake.lastClone.TargetModel != "qwen3-tts-vc-realtime-2026-01-15" {
		t.Fatalf("target model = %q", fake.lastClone.TargetModel)
	}
}

func TestVoiceCloneNameTooLongBeforeNetwork(t *testing.T) {
	tmp := chdirTemp(t)
	t.Setenv("DASHSCOPE_API_KEY", "ds-test")

	audio := filepath.Join(tmp, "sample.wav")
	if err := os.WriteFile(audio, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
	constructed := 0
	swapCustomizer(t, &fakeCustomizer{}, &constructed)

	if code := run([]string{"voice-clone", "create", audio, "-n", "seventeen_chars_x"}); code != 1 {
		t.Fatalf("17-char name returned %d, want 1", code)
	}
	if constructed != 0 {
		t.Fatalf("client constructed %d times before validation", constructed)
	}
}

func TestVoiceCloneRejectsBadAudioFormat(t *testing.T) {
	tmp := chdirTemp(t)
	t.Setenv("DASHSCOPE_API_KEY", "ds-test")

	audio := filepath.Join(tmp, "sample.flac")
	if err := os.WriteFile(audio, []byte("fLaC"), 0o644); err != nil {
		t.Fatal(err)
	}
	constructed := 0
	swapCustomizer(t, &fakeCustomizer{}, &constructed)

	if code := run([]string{"voice-clone", "create", audio, "-n", "voice"}); code != 1 {
		t.Fatalf("flac input returned %d, want 1", code)
	}
	if constructed != 0 {
		t.Fatalf("client constructed %d times before validation", constructed)
	}
}

func TestVoiceCloneList(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DASHSCOPE_API_KEY", "ds-test")

	fake := &fakeCustomizer{}
	swapCustomizer(t, fake, nil)

	if code := run([]string{"voice-clone", "list"}); code != 0 {
		t.Fatalf("voice-clone list returned %d", code)
	}
	if fake.listCalls != 1 {
		t.Fatalf("expected 1 list call, got %d", fake.listCalls)
	}
}

func TestVoiceCloneUnknownAction(t *testing.T) {
	if code := run([]string{"voice-clone", "rename"}); code != 2 {
		t.Fatalf("unknown action returned %d, want 2", code)
	}
}

func TestVoiceDesignCreateWritesPreview(t *testing.T) {
	tmp := chdirTemp(t)
	t.Setenv("DASHSCOPE_API_KEY", "ds-test")

	fake := &fakeCustomizer{design: &dashscope.DesignResult{
		Voice:        "designed-1",
		PreviewAudio: []byte("preview-mp3"),
	}}
	swapCustomizer(t, fake, nil)

	if code := run([]string{"voice-design", "create", "a warm storyteller", "-t", "Hello there"}); code != 0 {
		t.Fatalf("voice-design create returned %d", code)
	}
	if fake.lastDesign.VoicePrompt != "a warm storyteller" || fake.lastDesign.PreviewText != "Hello there" {
		t.Fatalf("request = %+v", fake.lastDesign)
	}
	if fake.lastDesign.Language != "zh" || fake.lastDesign.SampleRate != 24000 {
		t.Fatalf("request defaults = %+v", fake.lastDesign)
	}
	data, err := os.ReadFile(filepath.Join(tmp, "voice_preview.mp3"))
	if err != nil {
		t.Fatalf("missing voice_preview.mp3: %v", err)
	}
	if string(data) != "preview-mp3" {
		t.Fatalf("preview = %q", data)
	}
}

func TestVoiceDesignAcceptsMultibytePrompt(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DASHSCOPE_API_KEY", "ds-test")

	fake := &fakeCustomizer{design: &dashscope.DesignResult{Voice: "designed-2"}}
	swapCustomizer(t, fake, nil)

	// 1500 CJK characters are 4500 bytes; the 2048 limit is in characters.
	prompt := strings.Repeat("声", 1500)
	if code := run([]string{"voice-design", "create", prompt, "-t", "你好"}); code != 0 {
		t.Fatalf("multibyte prompt returned %d, want 0", code)
	}
	if fake.lastDesign.VoicePrompt != prompt {
		t.Fatalf("prompt not passed through (%d chars)", len(fake.lastDesign.VoicePrompt))
	}
}

func TestVoiceDesignRequiresPreviewText(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DASHSCOPE_API_KEY", "ds-test")

	constructed := 0
	swapCustomizer(t, &fakeCustomizer{}, &constructed)

	if code := run([]string{"voice-design", "create", "a voice"}); code != 1 {
		t.Fatalf("missing preview text returned %d, want 1", code)
	}
	if constructed != 0 {
		t.Fatalf("client constructed %d times before validation", constructed)
	}
}
