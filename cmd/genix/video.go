package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"genix/internal/ai"
	"genix/internal/config"
	"genix/internal/constraint"
	"genix/internal/gen"
	"genix/internal/output"
)

var (
	soraModels    = constraint.String{Field: "model", Allowed: []string{"sora-2", "sora-2-pro"}}
	soraDurations = constraint.Int{Field: "duration", Allowed: []int{4, 8, 12}}
	soraSizes     = constraint.String{Field: "size", Allowed: []string{
		"720x1280", "1280x720", "1024x1792", "1792x1024",
	}}
)

var soraPollInterval = 5 * time.Second

type videoClient interface {
	CreateVideo(ctx context.Context, req ai.VideoRequest) (gen.Job, error)
	VideoStatus(ctx context.Context, id string) (gen.Job, error)
	DownloadVideo(ctx context.Context, id string) (io.ReadCloser, error)
}

var newVideoClient = func(apiKey, baseURL string) (videoClient, error) {
	return ai.New(apiKey, baseURL)
}

// genix video
func cmdVideo(args []string) error {
	var cf commonFlags
	var imagePath, model, size, outPath string
	var duration int
	fs := flag.NewFlagSet("video", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addCommonFlags(fs, &cf)
	fs.StringVar(&imagePath, "i", "", "Input image file path for image-to-video")
	fs.StringVar(&model, "m", "sora-2", "Model")
	fs.IntVar(&duration, "d", 4, "Duration in seconds")
	fs.StringVar(&size, "s", "720x1280", "Output resolution")
	fs.StringVar(&outPath, "o", "", "Output file path (default: generated_video.mp4)")

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "video requires exactly one prompt argument")
		return errUsage
	}
	prompt := positional[0]
	if err := cf.setup(); err != nil {
		return err
	}

	if err := soraModels.Check(model); err != nil {
		return err
	}
	if err := soraDurations.Check(duration); err != nil {
		return err
	}
	if err := soraSizes.Check(size); err != nil {
		return err
	}

	var inputImage []byte
	if imagePath != "" {
		inputImage, err = os.ReadFile(imagePath)
		if err != nil {
			return fmt.Errorf("read input image: %w", err)
		}
	}

	key, baseURL, err := config.OpenAI()
	if err != nil {
		return err
	}
	client, err := newVideoClient(key, baseURL)
	if err != nil {
		return err
	}
	ctx := context.Background()

	job, err := client.CreateVideo(ctx, ai.VideoRequest{
		Prompt:     prompt,
		InputImage: inputImage,
		Model:      model,
		Seconds:    duration,
		Size:       size,
	})
	if err != nil {
		return err
	}
	slog.Info("video job created", "id", job.ID, "model", model, "duration", duration, "size", size)

	if job.Status == gen.StatusFailed {
		msg := job.Err
		if msg == "" {
			msg = "unknown error"
		}
		return &gen.GenerationError{JobID: job.ID, Message: msg}
	}
	if !job.Status.Terminal() {
		job, err = gen.Wait(ctx, func(ctx context.Context) (gen.Job, error) {
			return client.VideoStatus(ctx, job.ID)
		}, gen.WaitOptions{
			Interval: soraPollInterval,
			OnPoll: func(j gen.Job) {
				slog.Info("video job progress", "id", j.ID, "status", j.Status, "progress", j.Progress)
			},
		})
		if err != nil {
			return err
		}
	}

	stream, err := client.DownloadVideo(ctx, job.ID)
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
	slog.Info("video generated", "id", job.ID, "bytes", n, "path", path)
	return nil
}
