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
	"genix/internal/output"
)

var (
	musicModels = constraint.String{Field: "model", Allowed: []string{
		"music_v1",
	}}
	musicFormats = constraint.String{Field: "format", Allowed: []string{
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
		"opus_48000_192",
	}}
	musicDuration = constraint.IntRange{Field: "duration", Min: 10, Max: 300}
)

type musicClient interface {
	Music(ctx context.Context, req elevenlabs.MusicRequest) (io.ReadCloser, error)
}

var newMusicClient = func(apiKey string) (musicClient, error) {
	return elevenlabs.New(apiKey)
}

// genix music
func cmdMusic(args []string) error {
	var cf commonFlags
	var model, format, outPath string
	var duration int
	var instrumental boolFlag
	fs := flag.NewFlagSet("music", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addCommonFlags(fs, &cf)
	fs.StringVar(&model, "m", "music_v1", "Model for music generation")
	fs.IntVar(&duration, "d", 30, "Duration in seconds (10-300)")
	fs.Var(&instrumental, "i", "Force instrumental (no vocals)")
	fs.StringVar(&format, "f", elevenlabs.DefaultOutputFormat, "Output audio format")
	fs.StringVar(&outPath, "o", "", "Output file path (default: generated_music.<ext>)")

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "music requires exactly one prompt argument")
		return errUsage
	}
	prompt := positional[0]
	if err := cf.setup(); err != nil {
		return err
	}

	if err := musicModels.Check(model); err != nil {
		return err
	}
	if err := musicFormats.Check(format); err != nil {
		return err
	}
	if err := musicDuration.Check(duration); err != nil {
		return err
	}

	apiKey, err := config.APIKey(config.EnvElevenLabsKey)
	if err != nil {
		return err
	}
	client, err := newMusicClient(apiKey)
	if err != nil {
		return err
	}

	stream, err := client.Music(context.Background(), elevenlabs.MusicRequest{
		Prompt:       prompt,
		ModelID:      model,
		LengthMS:     duration * 1000,
		Instrumental: instrumental.v,
		OutputFormat: format,
	})
	if err != nil {
		return err
	}
	defer stream.Close()

	path, n, err := output.WriteStream(stream, output.Request{
		Path: outPath,
		Stem: "generated_music",
		Ext:  output.ExtByPrefix(format, elevenExt, ".mp3"),
	})
	if err != nil {
		return err
	}
	slog.Info("music generated", "model", model, "duration", duration, "instrumental", instrumental.v, "bytes", n, "path", path)
	return nil
}
