// Package ai wraps the official OpenAI SDK client and exposes the image
// and video generation helpers used by the app.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"genix/internal/gen"
)

// Client wraps the OpenAI SDK client.
type Client struct {
	apiKey  string
	baseURL string
	sdk     openai.Client
}

// New constructs a new client. The apiKey is required; baseURL is optional
// (empty string uses the default API endpoint).
func New(apiKey, baseURL string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	sdk := openai.NewClient(opts...)
	return &Client{apiKey: apiKey, baseURL: baseURL, sdk: sdk}, nil
}

// ImageRequest generates or edits images with the GPT Image API.
type ImageRequest struct {
	Prompt     string
	ImagePaths []string // non-empty switches to edit mode
	Model      string
	Size       string
	Quality    string
	Format     string
	Background string
	N          int
}

// GenerateImages returns the decoded image payloads, one per generated
// image.
func (c *Client) GenerateImages(ctx context.Context, req ImageRequest) ([][]byte, error) {
	var res *openai.ImagesResponse
	var err error
	if len(req.ImagePaths) > 0 {
		res, err = c.editImages(ctx, req)
	} else {
		params := openai.ImageGenerateParams{
			Prompt:       req.Prompt,
			Model:        openai.ImageModel(req.Model),
			Size:         openai.ImageGenerateParamsSize(req.Size),
			Quality:      openai.ImageGenerateParamsQuality(req.Quality),
			OutputFormat: openai.ImageGenerateParamsOutputFormat(req.Format),
			Background:   openai.ImageGenerateParamsBackground(req.Background),
			N:            openai.Int(int64(req.N)),
		}
		res, err = c.sdk.Images.Generate(ctx, params)
	}
	if err != nil {
		return nil, fmt.Errorf("openai image request: %w", err)
	}
	images := make([][]byte, 0, len(res.Data))
	for _, img := range res.Data {
		decoded, err := base64.StdEncoding.DecodeString(img.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("decode image payload: %w", err)
		}
		images = append(images, decoded)
	}
	if len(images) == 0 {
		return nil, errors.New("openai returned no images")
	}
	return images, nil
}

func (c *Client) editImages(ctx context.Context, req ImageRequest) (*openai.ImagesResponse, error) {
	readers := make([]io.Reader, 0, len(req.ImagePaths))
	var closers []io.Closer
	defer func() {
		for _, cl := range closers {
			_ = cl.Close()
		}
	}()
	for _, p := range req.ImagePaths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("open input image: %w", err)
		}
		closers = append(closers, f)
		readers = append(readers, openai.File(f, filepath.Base(p), imageMIME(p)))
	}
	var image openai.ImageEditParamsImageUnion
	if len(readers) == 1 {
		image.OfFile = readers[0]
	} else {
		image.OfFileArray = readers
	}
	params := openai.ImageEditParams{
		Image:        image,
		Prompt:       req.Prompt,
		Model:        openai.ImageModel(req.Model),
		Size:         openai.ImageEditParamsSize(req.Size),
		Quality:      openai.ImageEditParamsQuality(req.Quality),
		OutputFormat: openai.ImageEditParamsOutputFormat(req.Format),
		Background:   openai.ImageEditParamsBackground(req.Background),
		N:            openai.Int(int64(req.N)),
	}
	return c.sdk.Images.Edit(ctx, params)
}

// VideoRequest creates a Sora video generation job.
type VideoRequest struct {
	Prompt     string
	InputImage []byte // optional reference frame, PNG bytes
	Model      string
	Seconds    int
	Size       string
}

// CreateVideo submits the generation job and returns its initial state.
func (c *Client) CreateVideo(ctx context.Context, req VideoRequest) (gen.Job, error) {
	params := openai.VideoNewParams{
		Prompt:  req.Prompt,
		Model:   openai.VideoModel(req.Model),
		Seconds: openai.VideoSeconds(strconv.Itoa(req.Seconds)),
		Size:    openai.VideoSize(req.Size),
	}
	if len(req.InputImage) > 0 {
		params.InputReference = openai.File(bytes.NewReader(req.InputImage), "image.png", "image/png")
	}
	video, err := c.sdk.Videos.New(ctx, params)
	if err != nil {
		return gen.Job{}, fmt.Errorf("create video job: %w", err)
	}
	return videoJob(video), nil
}

// VideoStatus fetches the current state of a video job.
func (c *Client) VideoStatus(ctx context.Context, id string) (gen.Job, error) {
	video, err := c.sdk.Videos.Get(ctx, id)
	if err != nil {
		return gen.Job{}, fmt.Errorf("poll video job: %w", err)
	}
	return videoJob(video), nil
}

// DownloadVideo returns the rendered video content stream.
func (c *Client) DownloadVideo(ctx context.Context, id string) (io.ReadCloser, error) {
	resp, err := c.sdk.Videos.DownloadContent(ctx, id, openai.VideoDownloadContentParams{})
	if err != nil {
		return nil, fmt.Errorf("download video: %w", err)
	}
	return resp.Body, nil
}

func videoJob(v *openai.Video) gen.Job {
	job := gen.Job{ID: v.ID, Progress: int(v.Progress)}
	switch v.Status {
	case openai.VideoStatusQueued:
		job.Status = gen.StatusPending
	case openai.VideoStatusInProgress:
		job.Status = gen.StatusRunning
	case openai.VideoStatusCompleted:
		job.Status = gen.StatusSucceeded
	case openai.VideoStatusFailed:
		job.Status = gen.StatusFailed
		job.Err = v.Error.Message
	default:
		job.Status = gen.StatusRunning
	}
	return job
}

func imageMIME(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "image/png"
}
