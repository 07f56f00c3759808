package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"genix/internal/ai"
	"genix/internal/config"
	"genix/internal/constraint"
	"genix/internal/gen"
	"genix/internal/output"
)

var (
	imageModels = constraint.String{Field: "model", Allowed: []string{
		"gpt-image-1.5", "gpt-image-1", "gpt-image-1-mini",
	}}
	imageSizes = constraint.String{Field: "size", Allowed: []string{
		"1024x1024", "1536x1024", "1024x1536", "auto",
	}}
	imageQualities   = constraint.String{Field: "quality", Allowed: []string{"auto", "high", "medium", "low"}}
	imageFormats     = constraint.String{Field: "format", Allowed: []string{"png", "jpeg", "webp"}}
	imageBackgrounds = constraint.String{Field: "background", Allowed: []string{"auto", "transparent", "opaque"}}
	imageCount       = constraint.IntRange{Field: "n", Min: 1, Max: 10}
)

const (
	maxImagePromptLen = 32000
	maxInputImages    = 16
)

type imageClient interface {
	GenerateImages(ctx context.Context, req ai.ImageRequest) ([][]byte, error)
}

var newImageClient = func(apiKey, baseURL string) (imageClient, error) {
	return ai.New(apiKey, baseURL)
}

// genix image
func cmdImage(args []string) error {
	var cf commonFlags
	var images multiFlag
	var model, size, quality, format, background, outPath string
	var n int
	fs := flag.NewFlagSet("image", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addCommonFlags(fs, &cf)
	fs.Var(&images, "i", "Input image file path for editing (repeatable, max 16)")
	fs.StringVar(&model, "m", "gpt-image-1.5", "Model")
	fs.StringVar(&size, "s", "1024x1024", "Output size")
	fs.StringVar(&quality, "q", "auto", "Image quality")
	fs.StringVar(&format, "f", "png", "Output format")
	fs.StringVar(&background, "b", "auto", "Background type")
	fs.IntVar(&n, "n", 1, "Number of images to generate (1-10)")
	fs.StringVar(&outPath, "o", "", "Output file path (default: generated_image.<format>)")

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "image requires exactly one prompt argument")
		return errUsage
	}
	prompt := positional[0]
	if err := cf.setup(); err != nil {
		return err
	}

	if err := constraint.MaxLen("prompt", prompt, maxImagePromptLen); err != nil {
		return err
	}
	if err := imageModels.Check(model); err != nil {
		return err
	}
	if err := imageSizes.Check(size); err != nil {
		return err
	}
	if err := imageQualities.Check(quality); err != nil {
		return err
	}
	if err := imageFormats.Check(format); err != nil {
		return err
	}
	if err := imageBackgrounds.Check(background); err != nil {
		return err
	}
	if background == "transparent" && format == "jpeg" {
		return gen.NewValidationError("background", "transparent is not supported with jpeg output")
	}
	if err := imageCount.Check(n); err != nil {
		return err
	}
	if len(images) > maxInputImages {
		return gen.NewValidationError("images", "at most %d input images are supported", maxInputImages)
	}
	for _, p := range images {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("input image: %w", err)
		}
	}

	key, baseURL, err := config.OpenAI()
	if err != nil {
		return err
	}
	client, err := newImageClient(key, baseURL)
	if err != nil {
		return err
	}

	assets, err := client.GenerateImages(context.Background(), ai.ImageRequest{
		Prompt:     prompt,
		ImagePaths: images,
		Model:      model,
		Size:       size,
		Quality:    quality,
		Format:     format,
		Background: background,
		N:          n,
	})
	if err != nil {
		return err
	}

	paths, err := output.Write(assets, output.Request{
		Path: outPath,
		Stem: "generated_image",
		Ext:  "." + format,
	})
	if err != nil {
		return err
	}
	mode := "generate"
	if len(images) > 0 {
		mode = "edit"
	}
	slog.Info("images generated", "mode", mode, "model", model, "count", len(paths), "paths", paths)
	return nil
}
