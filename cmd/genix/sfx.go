package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"genix/internal/config"
	"genix/internal/constraint"
	"genix/internal/elevenlabs"
	"genix/internal/gen"
	"genix/internal/output"
)

var (
	sfxModels = constraint.String{Field: "model", Allowed: []string{
		"eleven_text_to_sound_v1",
		"eleven_text_to_sound_v2",
	}}
	sfxFormats = constraint.String{Field: "format", Allowed: []string{
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
	sfxDuration        = constraint.FloatRange{Field: "duration", Min: 0.5, Max: 30}
	sfxPromptInfluence = constraint.FloatRange{Field: "prompt-influence", Min: 0, Max: 1}
)

const sfxLoopModel = "eleven_text_to_sound_v2"

type sfxClient interface {
	SoundEffect(ctx context.Context, req elevenlabs.SoundEffectRequest) (io.ReadCloser, error)
}

var newSFXClient = func(apiKey string) (sfxClient, error) {
	return elevenlabs.New(apiKey)
}

// genix sfx
func cmdSFX(args []string) error {
	var cf commonFlags
	var model, format, outPath string
	var duration, promptInfluence floatFlag
	var loop boolFlag
	fs := flag.NewFlagSet("sfx", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addCommonFlags(fs, &cf)
	fs.StringVar(&model, "m", sfxLoopModel, "Model for sound generation")
	fs.Var(&duration, "d", "Duration in seconds (0.5-30, default: auto)")
	fs.Var(&promptInfluence, "p", "How closely to follow the prompt (0-1)")
	fs.Var(&loop, "l", "Create a seamless looping sound (v2 model only)")
	fs.StringVar(&format, "f", elevenlabs.DefaultOutputFormat, "Output audio format")
	fs.StringVar(&outPath, "o", "", "Output file path (default: generated_sound.<ext>)")

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "sfx requires exactly one text argument")
		return errUsage
	}
	text := positional[0]
	if err := cf.setup(); err != nil {
		return err
	}

	if err := sfxModels.Check(model); err != nil {
		return err
	}
	if err := sfxFormats.Check(format); err != nil {
		return err
	}
	if duration.set {
		if err := sfxDuration.Check(duration.v); err != nil {
			return err
		}
	}
	influence := 0.3
	if promptInfluence.set {
		if err := sfxPromptInfluence.Check(promptInfluence.v); err != nil {
			return err
		}
		influence = promptInfluence.v
	}
	if loop.v && model != sfxLoopModel {
		return gen.NewValidationError("loop", "requires the %s model", sfxLoopModel)
	}

	apiKey, err := config.APIKey(config.EnvElevenLabsKey)
	if err != nil {
		return err
	}
	client, err := newSFXClient(apiKey)
	if err != nil {
		return err
	}

	req := elevenlabs.SoundEffectRequest{
		Text:            text,
		ModelID:         model,
		PromptInfluence: influence,
		Loop:            loop.v,
		OutputFormat:    format,
	}
	if duration.set {
		req.DurationSeconds = &duration.v
	}
	stream, err := client.SoundEffect(context.Background(), req)
	if err != nil {
		return err
	}
	defer stream.Close()

	path, n, err := output.WriteStream(stream, output.Request{
		Path: outPath,
		Stem: "generated_sound",
		Ext:  output.ExtByPrefix(format, elevenExt, ".mp3"),
	})
	if err != nil {
		return err
	}
	slog.Info("sound effect generated", "model", model, "loop", loop.v, "bytes", n, "path", path)
	return nil
}
