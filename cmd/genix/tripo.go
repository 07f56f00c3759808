package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"genix/internal/config"
	"genix/internal/constraint"
	"genix/internal/gen"
	"genix/internal/output"
	"genix/internal/tripo"
)

var (
	tripoVersions = constraint.String{Field: "model", Allowed: []string{
		"Turbo-v1.0-20250506",
		"v1.4-20240625",
		"v2.0-20240919",
		"v2.5-20250123",
		"v3.0-20250812",
	}}
	tripoMultiviewVersions = constraint.String{Field: "model", Allowed: []string{
		"v2.0-20240919",
		"v2.5-20250123",
		"v3.0-20250812",
	}}
	tripoFormats   = constraint.String{Field: "format", Allowed: []string{"GLTF", "USDZ", "FBX", "OBJ", "STL", "3MF"}}
	tripoQualities = constraint.String{Field: "quality", Allowed: []string{"standard", "detailed"}}
)

const (
	defaultTripoVersion   = "v3.0-20250812"
	defaultNegativePrompt = "low quality, blurry, deformed, extra limbs, multiple heads"
	tripoPollInterval     = 5 * time.Second
	maxMultiviewImages    = 4
)

// primaryModelKeys is the preference order for the main downloadable asset.
var primaryModelKeys = []string{"model", "pbr_model", "base_model"}

type modelClient interface {
	UploadImage(ctx context.Context, path string) (tripo.FileRef, error)
	TextToModel(ctx context.Context, prompt, negativePrompt string, params tripo.GenerationParams) (string, error)
	ImageToModel(ctx context.Context, file tripo.FileRef, params tripo.GenerationParams) (string, error)
	MultiviewToModel(ctx context.Context, files []tripo.FileRef, params tripo.GenerationParams) (string, error)
	ConvertModel(ctx context.Context, originalTaskID, format string) (string, error)
	Task(ctx context.Context, id string) (*tripo.Task, error)
	DownloadModels(ctx context.Context, task *tripo.Task, dir string) (map[string]string, error)
}

var newModelClient = func(apiKey string) (modelClient, error) {
	return tripo.New(apiKey)
}

// genix 3d
func cmd3D(args []string) error {
	var cf commonFlags
	var image, negativePrompt, version, textureQuality, geometryQuality, format, outPath string
	var images multiFlag
	var faceLimit intFlag
	var noTexture, noPBR boolFlag
	fs := flag.NewFlagSet("3d", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addCommonFlags(fs, &cf)
	fs.StringVar(&image, "i", "", "Single image path for image-to-3d")
	fs.Var(&images, "images", "Image path for multiview-to-3d (repeatable; order: front, back, left, right)")
	fs.StringVar(&negativePrompt, "negative-prompt", defaultNegativePrompt, "Negative prompt (text-to-3d only)")
	fs.StringVar(&version, "m", defaultTripoVersion, "Model version")
	fs.StringVar(&textureQuality, "texture-quality", "standard", "Texture quality")
	fs.StringVar(&geometryQuality, "geometry-quality", "standard", "Geometry quality")
	fs.Var(&faceLimit, "face-limit", "Maximum number of faces")
	fs.StringVar(&format, "format", "", "Output format for conversion (default: keep original GLB)")
	fs.Var(&noTexture, "no-texture", "Do not generate texture")
	fs.Var(&noPBR, "no-pbr", "Do not generate PBR material")
	fs.StringVar(&outPath, "o", "", "Output file path")

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) > 1 {
		fmt.Fprintln(os.Stderr, "3d accepts at most one prompt argument")
		return errUsage
	}
	var prompt string
	if len(positional) == 1 {
		prompt = positional[0]
	}
	if err := cf.setup(); err != nil {
		return err
	}

	var mode string
	switch {
	case len(images) > 0:
		mode = "multiview"
		if err := tripoMultiviewVersions.Check(version); err != nil {
			return err
		}
		if len(images) > maxMultiviewImages {
			return gen.NewValidationError("images", "at most %d views are supported", maxMultiviewImages)
		}
	case image != "":
		mode = "image"
	case prompt != "":
		mode = "text"
	default:
		fmt.Fprintln(os.Stderr, "3d requires a prompt, -i <image>, or -images <view>")
		return errUsage
	}
	if err := tripoVersions.Check(version); err != nil {
		return err
	}
	if err := tripoQualities.Check(textureQuality); err != nil {
		return err
	}
	if err := tripoQualities.Check(geometryQuality); err != nil {
		return err
	}
	if format != "" {
		if err := tripoFormats.Check(format); err != nil {
			return err
		}
	}

	apiKey, err := config.APIKey(config.EnvTripoKey)
	if err != nil {
		return err
	}
	client, err := newModelClient(apiKey)
	if err != nil {
		return err
	}
	ctx := context.Background()

	params := tripo.GenerationParams{
		ModelVersion:    version,
		TextureQuality:  textureQuality,
		GeometryQuality: geometryQuality,
		Texture:         !noTexture.v,
		PBR:             !noPBR.v,
	}
	if faceLimit.set {
		params.FaceLimit = faceLimit.v
	}

	var taskID string
	switch mode {
	case "text":
		taskID, err = client.TextToModel(ctx, prompt, negativePrompt, params)
	case "image":
		var ref tripo.FileRef
		ref, err = client.UploadImage(ctx, image)
		if err == nil {
			taskID, err = client.ImageToModel(ctx, ref, params)
		}
	case "multiview":
		refs := make([]tripo.FileRef, 0, len(images))
		for _, p := range images {
			ref, uerr := client.UploadImage(ctx, p)
			if uerr != nil {
				return uerr
			}
			refs = append(refs, ref)
		}
		taskID, err = client.MultiviewToModel(ctx, refs, params)
	}
	if err != nil {
		return err
	}
	slog.Info("generation task submitted", "mode", mode, "task", taskID, "version", version)

	task, err := waitForTask(ctx, client, taskID)
	if err != nil {
		return err
	}

	if format != "" {
		convertID, err := client.ConvertModel(ctx, task.ID, format)
		if err != nil {
			return err
		}
		slog.Info("conversion task submitted", "task", convertID, "format", format)
		task, err = waitForTask(ctx, client, convertID)
		if err != nil {
			return err
		}
	}

	tmpDir, err := os.MkdirTemp("", "genix-3d-")
	if err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	files, err := client.DownloadModels(ctx, task, tmpDir)
	if err != nil {
		return err
	}
	primary := ""
	for _, key := range primaryModelKeys {
		if p, ok := files[key]; ok {
			primary = p
			break
		}
	}
	if primary == "" {
		return fmt.Errorf("task %s produced no model file", task.ID)
	}

	path, err := output.Place(primary, output.Request{
		Path: outPath,
		Stem: mode + "_to_3d",
		Ext:  filepath.Ext(primary),
	})
	if err != nil {
		return err
	}
	for name, p := range files {
		if p == primary {
			continue
		}
		aux, err := output.Place(p, output.Request{Path: filepath.Base(p)})
		if err != nil {
			return err
		}
		slog.Info("auxiliary file saved", "name", name, "path", aux)
	}
	slog.Info("3d model generated", "mode", mode, "task", task.ID, "path", path)
	return nil
}

// waitForTask polls a Tripo task to completion, logging progress.
func waitForTask(ctx context.Context, client modelClient, id string) (*tripo.Task, error) {
	var last *tripo.Task
	_, err := gen.Wait(ctx, func(ctx context.Context) (gen.Job, error) {
		task, err := client.Task(ctx, id)
		if err != nil {
			return gen.Job{}, err
		}
		last = task
		return task.Job, nil
	}, gen.WaitOptions{
		Interval: tripoPollInterval,
		OnPoll: func(j gen.Job) {
			slog.Info("task progress", "task", j.ID, "status", j.Status, "progress", j.Progress)
		},
	})
	if err != nil {
		return nil, err
	}
	return last, nil
}
