package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"genix/internal/config"
	"genix/internal/constraint"
	"genix/internal/elevenlabs"
	"genix/internal/output"
)

var (
	speechModels = constraint.String{Field: "model", Allowed: []string{
		"eleven_v3",
		"eleven_multilingual_v2",
		"eleven_flash_v2_5",
		"eleven_turbo_v2_5",
	}}
	speechFormats = constraint.String{Field: "format", Allowed: []string{
		"mp3_22050_32",
		"mp3_44100_64",
		"mp3_44100_128",
		"mp3_44100_192",
		"pcm_16000",
		"pcm_22050",
		"pcm_44100",
		"pcm_48000",
		"opus_48000_64",
		"opus_48000_128",
	}}
	stabilityRange  = constraint.FloatRange{Field: "stability", Min: 0, Max: 1}
	similarityRange = constraint.FloatRange{Field: "similarity", Min: 0, Max: 1}
	speechSpeed     = constraint.FloatRange{Field: "speed", Min: 0.7, Max: 1.2}
)

// elevenExt maps an ElevenLabs output format to a file extension. PCM gets
// .wav so players can open it.
var elevenExt = map[string]string{
	"mp3":  ".mp3",
	"pcm":  ".wav",
	"opus": ".opus",
}

const defaultSpeechModel = "eleven_multilingual_v2"

type speechClient interface {
	Speech(ctx context.Context, req elevenlabs.SpeechRequest) (io.ReadCloser, error)
	FindVoice(ctx context.Context, query string) (*elevenlabs.Voice, error)
}

var newSpeechClient = func(apiKey string) (speechClient, error) {
	return elevenlabs.New(apiKey)
}

// genix speech
func cmdSpeech(args []string) error {
	var cf commonFlags
	var voiceID, voiceSearch string
	var model, format string
	var stability, similarity, speed floatFlag
	var outPath string
	fs := flag.NewFlagSet("speech", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addCommonFlags(fs, &cf)
	fs.StringVar(&voiceID, "v", "", "Voice ID (default: "+elevenlabs.DefaultVoiceName+")")
	fs.StringVar(&voiceSearch, "s", "", "Search query to find a voice")
	fs.StringVar(&model, "m", defaultSpeechModel, "Model")
	fs.StringVar(&format, "f", elevenlabs.DefaultOutputFormat, "Output audio format")
	fs.Var(&stability, "stability", "Voice stability (0-1)")
	fs.Var(&similarity, "similarity", "Voice similarity boost (0-1)")
	fs.Var(&speed, "speed", "Speech speed (0.7-1.2)")
	fs.StringVar(&outPath, "o", "", "Output file path (default: generated_speech.<ext>)")

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "speech requires exactly one text argument")
		return errUsage
	}
	text := positional[0]
	if err := cf.setup(); err != nil {
		return err
	}

	if err := speechModels.Check(model); err != nil {
		return err
	}
	if err := speechFormats.Check(format); err != nil {
		return err
	}
	var settings elevenlabs.VoiceSettings
	if stability.set {
		if err := stabilityRange.Check(stability.v); err != nil {
			return err
		}
		v := stability.v
		if model == "eleven_v3" {
			v = snapStability(v)
			if v != stability.v {
				slog.Warn("stability adjusted for eleven_v3", "requested", stability.v, "used", v)
			}
		}
		settings.Stability = &v
	}
	if similarity.set {
		if err := similarityRange.Check(similarity.v); err != nil {
			return err
		}
		settings.SimilarityBoost = &similarity.v
	}
	if speed.set {
		if err := speechSpeed.Check(speed.v); err != nil {
			return err
		}
		settings.Speed = &speed.v
	}

	apiKey, err := config.APIKey(config.EnvElevenLabsKey)
	if err != nil {
		return err
	}
	client, err := newSpeechClient(apiKey)
	if err != nil {
		return err
	}
	ctx := context.Background()

	voice, voiceName, err := resolveVoice(ctx, client, voiceID, voiceSearch)
	if err != nil {
		return err
	}

	req := elevenlabs.SpeechRequest{
		Text:         text,
		VoiceID:      voice,
		ModelID:      model,
		OutputFormat: format,
	}
	if settings != (elevenlabs.VoiceSettings{}) {
		req.VoiceSettings = &settings
	}
	stream, err := client.Speech(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	path, n, err := output.WriteStream(stream, output.Request{
		Path: outPath,
		Stem: "generated_speech",
		Ext:  output.ExtByPrefix(format, elevenExt, ".mp3"),
	})
	if err != nil {
		return err
	}
	slog.Info("speech generated", "voice", voiceName, "model", model, "format", format, "bytes", n, "path", path)
	return nil
}

// resolveVoice picks the voice ID: explicit ID wins, then search (own
// voices, then the shared library), then the default voice.
func resolveVoice(ctx context.Context, client speechClient, voiceID, search string) (id, name string, err error) {
	if voiceID != "" {
		return voiceID, voiceID, nil
	}
	if search != "" {
		v, err := client.FindVoice(ctx, search)
		if err != nil {
			return "", "", err
		}
		if v != nil {
			slog.Info("voice found", "query", search, "voice", v.Name, "id", v.VoiceID)
			return v.VoiceID, v.Name, nil
		}
		slog.Warn("no voice matched, using default", "query", search, "voice", elevenlabs.DefaultVoiceName)
	}
	return elevenlabs.DefaultVoiceID, elevenlabs.DefaultVoiceName, nil
}

// snapStability maps stability to the nearest value eleven_v3 accepts.
func snapStability(v float64) float64 {
	snapped, best := 0.0, math.Inf(1)
	for _, cand := range []float64{0, 0.5, 1} {
		if d := math.Abs(cand - v); d < best {
			snapped, best = cand, d
		}
	}
	return snapped
}
