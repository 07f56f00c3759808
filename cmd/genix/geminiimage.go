package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"genix/internal/config"
	"genix/internal/constraint"
	"genix/internal/gen"
	"genix/internal/google"
	"genix/internal/output"
)

var (
	geminiAspectRatios = constraint.String{Field: "aspect-ratio", Allowed: []string{
		"1:1", "2:3", "3:2", "3:4", "4:3", "4:5", "5:4", "9:16", "16:9", "21:9",
	}}
	geminiResolutions = constraint.String{Field: "resolution", Allowed: []string{"1K", "2K", "4K"}}
)

const maxGeminiInputImages = 14

type geminiImageClient interface {
	GenerateImage(ctx context.Context, req google.ImageRequest) (*google.ImageResult, error)
}

var newGeminiImageClient = func(apiKey string) (geminiImageClient, error) {
	return google.New(apiKey)
}

// genix gemini-image
func cmdGeminiImage(args []string) error {
	var cf commonFlags
	var images multiFlag
	var aspectRatio, resolution, outPath string
	fs := flag.NewFlagSet("gemini-image", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addCommonFlags(fs, &cf)
	fs.Var(&images, "i", "Input image file path (repeatable, max 14)")
	fs.StringVar(&aspectRatio, "a", "1:1", "Aspect ratio")
	fs.StringVar(&resolution, "r", "1K", "Output resolution")
	fs.StringVar(&outPath, "o", "", "Output file path (default: generated_image.png)")

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "gemini-image requires exactly one prompt argument")
		return errUsage
	}
	prompt := positional[0]
	if err := cf.setup(); err != nil {
		return err
	}

	if err := geminiAspectRatios.Check(aspectRatio); err != nil {
		return err
	}
	resolution = strings.ToUpper(resolution)
	if err := geminiResolutions.Check(resolution); err != nil {
		return err
	}
	if len(images) > maxGeminiInputImages {
		return gen.NewValidationError("images", "at most %d input images are supported", maxGeminiInputImages)
	}

	apiKey, err := config.APIKey(config.EnvGoogleKey)
	if err != nil {
		return err
	}
	client, err := newGeminiImageClient(apiKey)
	if err != nil {
		return err
	}

	inline := make([]google.InlineImage, 0, len(images))
	for _, p := range images {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read input image: %w", err)
		}
		inline = append(inline, google.InlineImage{MIMEType: imageFileMIME(p), Data: data})
	}

	res, err := client.GenerateImage(context.Background(), google.ImageRequest{
		Prompt:      prompt,
		Images:      inline,
		AspectRatio: aspectRatio,
		Resolution:  resolution,
	})
	if err != nil {
		return err
	}
	if res.Text != "" {
		fmt.Println(res.Text)
	}

	paths, err := output.Write([][]byte{res.Data}, output.Request{
		Path: outPath,
		Stem: "generated_image",
		Ext:  ".png",
	})
	if err != nil {
		return err
	}
	slog.Info("image generated", "model", google.ImageModel, "aspectRatio", aspectRatio, "resolution", resolution, "path", paths[0])
	return nil
}

func imageFileMIME(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "image/png"
}
