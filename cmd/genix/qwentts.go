package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"genix/internal/config"
	"genix/internal/constraint"
	"genix/internal/dashscope"
	"genix/internal/output"
)

var (
	qwenModels = constraint.String{Field: "model", Allowed: []string{
		"qwen3-tts-flash-realtime",
		"qwen3-tts-flash-realtime-2025-11-27",
		"qwen-tts-realtime",
		"qwen-tts-realtime-latest",
		"qwen3-tts-vd-realtime-2025-12-16",
		"qwen3-tts-vc-realtime-2026-01-15",
		"qwen3-tts-vc-realtime-2025-11-27",
	}}
	qwenFormats     = constraint.String{Field: "format", Allowed: []string{"pcm", "wav", "mp3", "opus"}}
	qwenSampleRates = constraint.Int{Field: "sample-rate", Allowed: []int{8000, 16000, 22050, 24000, 44100, 48000}}
	qwenVolume      = constraint.IntRange{Field: "volume", Min: 0, Max: 100}
	qwenSpeed       = constraint.FloatRange{Field: "speed", Min: 0.5, Max: 2.0}
	qwenPitch       = constraint.FloatRange{Field: "pitch", Min: 0.5, Max: 2.0}
)

const (
	defaultQwenModel = "qwen3-tts-flash-realtime"
	defaultQwenVoice = "Cherry"
)

type qwenSynthesizer interface {
	Synthesize(ctx context.Context, req dashscope.SpeechRequest) ([]byte, error)
}

var newQwenSynthesizer = func(apiKey string) (qwenSynthesizer, error) {
	return dashscope.NewSynthesizer(apiKey)
}

// genix qwen-tts
func cmdQwenTTS(args []string) error {
	var cf commonFlags
	var inputFile, voice, model, format, outPath string
	var sampleRate, volume int
	var speed, pitch float64
	fs := flag.NewFlagSet("qwen-tts", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addCommonFlags(fs, &cf)
	fs.StringVar(&inputFile, "i", "", "Input text file path")
	fs.StringVar(&voice, "v", defaultQwenVoice, "Voice name")
	fs.StringVar(&model, "m", defaultQwenModel, "TTS model")
	fs.StringVar(&format, "f", "mp3", "Output audio format")
	fs.IntVar(&sampleRate, "r", 24000, "Sample rate in Hz")
	fs.StringVar(&outPath, "o", "", "Output file path (default: tts_output.<ext>)")
	fs.IntVar(&volume, "volume", 50, "Volume level 0-100")
	fs.Float64Var(&speed, "speed", 1.0, "Speech speed 0.5-2.0")
	fs.Float64Var(&pitch, "pitch", 1.0, "Pitch adjustment 0.5-2.0")

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := cf.setup(); err != nil {
		return err
	}

	text, err := resolveText(positional, inputFile)
	if err != nil {
		return err
	}
	if err := qwenModels.Check(model); err != nil {
		return err
	}
	if err := qwenFormats.Check(format); err != nil {
		return err
	}
	if err := qwenSampleRates.Check(sampleRate); err != nil {
		return err
	}
	if err := qwenVolume.Check(volume); err != nil {
		return err
	}
	if err := qwenSpeed.Check(speed); err != nil {
		return err
	}
	if err := qwenPitch.Check(pitch); err != nil {
		return err
	}

	apiKey, err := config.APIKey(config.EnvDashScopeKey)
	if err != nil {
		return err
	}
	synth, err := newQwenSynthesizer(apiKey)
	if err != nil {
		return err
	}

	audio, err := synth.Synthesize(context.Background(), dashscope.SpeechRequest{
		Text:       text,
		Voice:      voice,
		Model:      model,
		Format:     format,
		SampleRate: sampleRate,
		Volume:     volume,
		Speed:      speed,
		Pitch:      pitch,
	})
	if err != nil {
		return err
	}

	paths, err := output.Write([][]byte{audio}, output.Request{
		Path: outPath,
		Stem: "tts_output",
		Ext:  "." + format,
	})
	if err != nil {
		return err
	}
	slog.Info("speech generated", "voice", voice, "model", model, "format", format, "bytes", len(audio), "path", paths[0])
	return nil
}

// resolveText takes the text from the positional argument or the input
// file, exactly one of which must be provided.
func resolveText(positional []string, inputFile string) (string, error) {
	switch {
	case len(positional) == 1 && inputFile == "":
		return positional[0], nil
	case len(positional) == 0 && inputFile != "":
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return "", fmt.Errorf("read input file: %w", err)
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			return "", fmt.Errorf("input file %s is empty", inputFile)
		}
		return text, nil
	default:
		fmt.Fprintln(os.Stderr, "provide either a text argument or -i <file>, not both")
		return "", errUsage
	}
}
