package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"genix/internal/config"
	"genix/internal/constraint"
	"genix/internal/dashscope"
	"genix/internal/gen"
)

var (
	cloneTargetModels = constraint.String{Field: "target-model", Allowed: []string{
		"qwen3-tts-vc-realtime-2026-01-15",
		"qwen3-tts-vc-realtime-2025-11-27",
	}}
	voiceLanguages = constraint.String{Field: "language", Allowed: []string{
		"zh", "en", "de", "it", "pt", "es", "ja", "ko", "fr", "ru",
	}}
)

// cloneAudioMIME maps accepted reference-audio extensions to MIME types.
var cloneAudioMIME = map[string]string{
	".wav": "audio/wav",
	".mp3": "audio/mpeg",
	".m4a": "audio/mp4",
}

const (
	defaultCloneTargetModel = "qwen3-tts-vc-realtime-2026-01-15"
	maxCloneAudioBytes      = 10 * 1024 * 1024
	maxVoiceNameLen         = 16
)

type voiceCustomizer interface {
	CreateClonedVoice(ctx context.Context, req dashscope.CloneRequest) (string, error)
	DesignVoice(ctx context.Context, req dashscope.DesignRequest) (*dashscope.DesignResult, error)
	ListVoices(ctx context.Context, model string, pageIndex, pageSize int) ([]dashscope.VoiceInfo, int, error)
	QueryVoice(ctx context.Context, model, voice string) (*dashscope.VoiceInfo, error)
	DeleteVoice(ctx context.Context, model, voice string) (string, error)
}

var newVoiceCustomizer = func(apiKey string) (voiceCustomizer, error) {
	return dashscope.NewClient(apiKey)
}

// genix voice-clone create|list|delete
func cmdVoiceClone(args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "voice-clone requires an action: create, list, delete")
		return errUsage
	}
	switch args[0] {
	case "create":
		return cmdVoiceCloneCreate(args[1:])
	case "list":
		return cmdVoiceCloneList(args[1:])
	case "delete":
		return cmdVoiceCloneDelete(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown voice-clone action: %s\n", args[0])
		return errUsage
	}
}

func cmdVoiceCloneCreate(args []string) error {
	var cf commonFlags
	var name, language, text, targetModel string
	fs := flag.NewFlagSet("voice-clone create", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addCommonFlags(fs, &cf)
	fs.StringVar(&name, "n", "", "Preferred name (max 16 chars, alphanumeric/underscore)")
	fs.StringVar(&language, "l", "", "Audio language (optional)")
	fs.StringVar(&text, "t", "", "Transcript of the audio (optional)")
	fs.StringVar(&targetModel, "target-model", defaultCloneTargetModel, "Target TTS model")

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "voice-clone create requires an audio file argument")
		return errUsage
	}
	audioFile := positional[0]
	if err := cf.setup(); err != nil {
		return err
	}

	if err := checkVoiceName(name); err != nil {
		return err
	}
	if err := cloneTargetModels.Check(targetModel); err != nil {
		return err
	}
	if language != "" {
		if err := voiceLanguages.Check(language); err != nil {
			return err
		}
	}
	mimeType, ok := cloneAudioMIME[strings.ToLower(filepath.Ext(audioFile))]
	if !ok {
		return gen.NewValidationError("audio file", "unsupported format %q (allowed: .wav, .mp3, .m4a)",
			filepath.Ext(audioFile))
	}
	info, err := os.Stat(audioFile)
	if err != nil {
		return fmt.Errorf("audio file: %w", err)
	}
	if info.Size() > maxCloneAudioBytes {
		return gen.NewValidationError("audio file", "too large (%.1fMB, maximum 10MB)",
			float64(info.Size())/(1024*1024))
	}

	apiKey, err := config.APIKey(config.EnvDashScopeKey)
	if err != nil {
		return err
	}
	client, err := newVoiceCustomizer(apiKey)
	if err != nil {
		return err
	}

	audio, err := os.ReadFile(audioFile)
	if err != nil {
		return fmt.Errorf("read audio file: %w", err)
	}
	dataURI := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(audio))

	voice, err := client.CreateClonedVoice(context.Background(), dashscope.CloneRequest{
		AudioDataURI:  dataURI,
		PreferredName: name,
		TargetModel:   targetModel,
		Language:      language,
		Text:          text,
	})
	if err != nil {
		return err
	}
	slog.Info("voice cloned", "voice", voice, "targetModel", targetModel)
	fmt.Println(voice)
	return nil
}

func cmdVoiceCloneList(args []string) error {
	return listVoices("voice-clone list", dashscope.EnrollmentModel, args)
}

func cmdVoiceCloneDelete(args []string) error {
	return deleteVoice("voice-clone delete", dashscope.EnrollmentModel, args)
}

// listVoices is shared by the clone and design listings.
func listVoices(name, model string, args []string) error {
	var cf commonFlags
	var pageIndex, pageSize int
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addCommonFlags(fs, &cf)
	fs.IntVar(&pageIndex, "page-index", 0, "Page index, 0-based")
	fs.IntVar(&pageSize, "page-size", 10, "Number of items per page")

	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	if err := cf.setup(); err != nil {
		return err
	}

	apiKey, err := config.APIKey(config.EnvDashScopeKey)
	if err != nil {
		return err
	}
	client, err := newVoiceCustomizer(apiKey)
	if err != nil {
		return err
	}
	voices, total, err := client.ListVoices(context.Background(), model, pageIndex, pageSize)
	if err != nil {
		return err
	}
	for _, v := range voices {
		fmt.Printf("%s\t%s\t%s\n", v.Voice, v.TargetModel, v.Created)
	}
	slog.Info("voices listed", "model", model, "page", pageIndex, "count", len(voices), "total", total)
	return nil
}

func deleteVoice(name, model string, args []string) error {
	var cf commonFlags
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addCommonFlags(fs, &cf)

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, name+" requires a voice name argument")
		return errUsage
	}
	if err := cf.setup(); err != nil {
		return err
	}

	apiKey, err := config.APIKey(config.EnvDashScopeKey)
	if err != nil {
		return err
	}
	client, err := newVoiceCustomizer(apiKey)
	if err != nil {
		return err
	}
	deleted, err := client.DeleteVoice(context.Background(), model, positional[0])
	if err != nil {
		return err
	}
	slog.Info("voice deleted", "voice", deleted, "model", model)
	return nil
}

// checkVoiceName enforces the preferred-name rules shared by clone and
// design: non-empty, at most 16 chars, letters/digits/underscore only.
func checkVoiceName(name string) error {
	if name == "" {
		return gen.NewValidationError("name", "is required")
	}
	if utf8.RuneCountInString(name) > maxVoiceNameLen {
		return gen.NewValidationError("name", "must be at most %d characters", maxVoiceNameLen)
	}
	for _, r := range name {
		if r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			continue
		}
		return gen.NewValidationError("name", "must contain only letters, numbers, and underscores")
	}
	return nil
}
