package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"genix/internal/config"
	"genix/internal/constraint"
	"genix/internal/dashscope"
	"genix/internal/gen"
	"genix/internal/output"
)

var (
	designTargetModels = constraint.String{Field: "target-model", Allowed: []string{
		"qwen3-tts-vd-realtime-2025-12-16",
	}}
	designSampleRates = constraint.Int{Field: "sample-rate", Allowed: []int{8000, 16000, 24000, 48000}}
	designFormats     = constraint.String{Field: "format", Allowed: []string{"mp3", "wav", "pcm", "opus"}}
)

const (
	defaultDesignTargetModel = "qwen3-tts-vd-realtime-2025-12-16"
	maxVoicePromptLen        = 2048
	maxPreviewTextLen        = 1024
)

// genix voice-design create|list|query|delete
func cmdVoiceDesign(args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "voice-design requires an action: create, list, query, delete")
		return errUsage
	}
	switch args[0] {
	case "create":
		return cmdVoiceDesignCreate(args[1:])
	case "list":
		return listVoices("voice-design list", dashscope.DesignModel, args[1:])
	case "query":
		return cmdVoiceDesignQuery(args[1:])
	case "delete":
		return deleteVoice("voice-design delete", dashscope.DesignModel, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown voice-design action: %s\n", args[0])
		return errUsage
	}
}

func cmdVoiceDesignCreate(args []string) error {
	var cf commonFlags
	var previewText, name, language, format, targetModel, outPath string
	var sampleRate int
	fs := flag.NewFlagSet("voice-design create", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addCommonFlags(fs, &cf)
	fs.StringVar(&previewText, "t", "", "Text to preview the voice (max 1024 chars)")
	fs.StringVar(&name, "n", "", "Preferred name (max 16 chars, alphanumeric/underscore)")
	fs.StringVar(&language, "l", "zh", "Voice language")
	fs.IntVar(&sampleRate, "r", 24000, "Audio sample rate in Hz")
	fs.StringVar(&format, "f", "mp3", "Audio format")
	fs.StringVar(&outPath, "o", "", "Output file path for preview audio (default: voice_preview.<ext>)")
	fs.StringVar(&targetModel, "target-model", defaultDesignTargetModel, "Target TTS model")

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "voice-design create requires a voice description argument")
		return errUsage
	}
	voicePrompt := positional[0]
	if err := cf.setup(); err != nil {
		return err
	}

	if err := constraint.MaxLen("voice prompt", voicePrompt, maxVoicePromptLen); err != nil {
		return err
	}
	if previewText == "" {
		return gen.NewValidationError("preview text", "is required")
	}
	if err := constraint.MaxLen("preview text", previewText, maxPreviewTextLen); err != nil {
		return err
	}
	if name != "" {
		if err := checkVoiceName(name); err != nil {
			return err
		}
	}
	if err := voiceLanguages.Check(language); err != nil {
		return err
	}
	if err := designSampleRates.Check(sampleRate); err != nil {
		return err
	}
	if err := designFormats.Check(format); err != nil {
		return err
	}
	if err := designTargetModels.Check(targetModel); err != nil {
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

	res, err := client.DesignVoice(context.Background(), dashscope.DesignRequest{
		VoicePrompt:   voicePrompt,
		PreviewText:   previewText,
		PreferredName: name,
		TargetModel:   targetModel,
		Language:      language,
		SampleRate:    sampleRate,
		Format:        format,
	})
	if err != nil {
		return err
	}

	if len(res.PreviewAudio) > 0 {
		paths, err := output.Write([][]byte{res.PreviewAudio}, output.Request{
			Path: outPath,
			Stem: "voice_preview",
			Ext:  "." + format,
		})
		if err != nil {
			return err
		}
		slog.Info("voice designed", "voice", res.Voice, "preview", paths[0])
	} else {
		slog.Info("voice designed", "voice", res.Voice)
	}
	fmt.Println(res.Voice)
	return nil
}

func cmdVoiceDesignQuery(args []string) error {
	var cf commonFlags
	fs := flag.NewFlagSet("voice-design query", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addCommonFlags(fs, &cf)

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "voice-design query requires a voice name argument")
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
	info, err := client.QueryVoice(context.Background(), dashscope.DesignModel, positional[0])
	if err != nil {
		return err
	}
	fmt.Printf("voice: %s\ntarget model: %s\nlanguage: %s\nprompt: %s\npreview text: %s\ncreated: %s\n",
		info.Voice, info.TargetModel, info.Language, info.VoicePrompt, info.PreviewText, info.Created)
	return nil
}
