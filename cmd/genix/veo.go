package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"genix/internal/config"
	"genix/internal/constraint"
	"genix/internal/gen"
	"genix/internal/google"
	"genix/internal/output"
)

var (
	veoModels = constraint.String{Field: "model", Allowed: []string{
		"veo-3.1-generate-001", "veo-3.1-fast-generate-001",
	}}
	veoAspectRatios = constraint.String{Field: "aspect-ratio", Allowed: []string{"16:9", "9:16"}}
	veoDurations    = constraint.Int{Field: "duration", Allowed: []int{4, 6, 8}}
	veoResolutions  = constraint.String{Field: "resolution", Allowed: []string{"720p", "1080p"}}
	veoSeed         = constraint.IntRange{Field: "seed", Min: 0, Max: 4294967295}
)

var veoPollInterval = 10 * time.Second

type veoClient interface {
	StartVideo(ctx context.Context, req google.VideoRequest) (string, error)
	VideoOperation(ctx context.Context, name string) (*google.Operation, error)
	DownloadVideo(ctx context.Context, uri string) (io.ReadCloser, error)
}

var newVeoClient = func(apiKey string) (veoClient, error) {
	return google.New(apiKey)
}

// genix veo
func cmdVeo(args []string) error {
	var cf commonFlags
	var imagePath, model, aspectRatio, resolution, negativePrompt, outPath string
	var duration int
	var seed intFlag
	fs := flag.NewFlagSet("veo", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addCommonFlags(fs, &cf)
	fs.StringVar(&imagePath, "i", "", "Input image file path for image-to-video")
	fs.StringVar(&model, "m", "veo-3.1-generate-001", "Model")
	fs.StringVar(&aspectRatio, "a", "16:9", "Aspect ratio")
	fs.IntVar(&duration, "d", 8, "Duration in seconds")
	fs.StringVar(&resolution, "r", "720p", "Resolution (1080p only with 8s + 16:9)")
	fs.StringVar(&negativePrompt, "n", "", "Content to avoid generating")
	fs.Var(&seed, "seed", "Seed for reproducibility (0-4294967295)")
	fs.StringVar(&outPath, "o", "", "Output file path (default: generated_video.mp4)")

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "veo requires exactly one prompt argument")
		return errUsage
	}
	prompt := positional[0]
	if err := cf.setup(); err != nil {
		return err
	}

	if err := veoModels.Check(model); err != nil {
		return err
	}
	if err := veoAspectRatios.Check(aspectRatio); err != nil {
		return err
	}
	if err := veoDurations.Check(duration); err != nil {
		return err
	}
	if err := veoResolutions.Check(resolution); err != nil {
		return err
	}
	if seed.set {
		if err := veoSeed.Check(seed.v); err != nil {
			return err
		}
	}

	var inputImage *google.InlineImage
	if imagePath != "" {
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return fmt.Errorf("read input image: %w", err)
		}
		inputImage = &google.InlineImage{MIMEType: imageFileMIME(imagePath), Data: data}
	}

	apiKey, err := config.APIKey(config.EnvGoogleKey)
	if err != nil {
		return err
	}
	client, err := newVeoClient(apiKey)
	if err != nil {
		return err
	}
	ctx := context.Background()

	req := google.VideoRequest{
		Prompt:          prompt,
		Model:           model,
		AspectRatio:     aspectRatio,
		DurationSeconds: duration,
		Resolution:      resolution,
		NegativePrompt:  negativePrompt,
		Image:           inputImage,
	}
	if seed.set {
		v := int64(seed.v)
		req.Seed = &v
	}
	opName, err := client.StartVideo(ctx, req)
	if err != nil {
		return err
	}
	slog.Info("video operation started", "operation", opName, "model", model, "duration", duration, "resolution", resolution)

	var videoURI string
	_, err = gen.Wait(ctx, func(ctx context.Context) (gen.Job, error) {
		op, err := client.VideoOperation(ctx, opName)
		if err != nil {
			return gen.Job{}, err
		}
		job := gen.Job{ID: op.Name, Progress: -1}
		switch {
		case op.Done && op.ErrMsg != "":
			job.Status = gen.StatusFailed
			job.Err = op.ErrMsg
		case op.Done && op.VideoURI == "":
			job.Status = gen.StatusFailed
			job.Err = "operation finished without a video"
		case op.Done:
			job.Status = gen.StatusSucceeded
			videoURI = op.VideoURI
		default:
			job.Status = gen.StatusRunning
		}
		return job, nil
	}, gen.WaitOptions{
		Interval: veoPollInterval,
		OnPoll: func(j gen.Job) {
			slog.Info("video operation pending", "operation", j.ID)
		},
	})
	if err != nil {
		return err
	}

	stream, err := client.DownloadVideo(ctx, videoURI)
	if err != nil {
		return err
	}
	defer stream.Close()

	path, n, err := output.WriteStream(stream, output.Request{
		Path: outPath,
		Stem: "generated_video",
		Ext:  ".mp4",
	})
	if err != nil {
		return err
	}
	slog.Info("video generated", "operation", opName, "bytes", n, "path", path)
	return nil
}
