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
	"genix/internal/storage"
)

type uploader interface {
	UploadFile(ctx context.Context, key, localPath, contentType string) error
	CopyToLatest(ctx context.Context, srcKey, filename, contentType string) error
	KeyForDate(t time.Time, filename string) string
	Exists(ctx context.Context, key string) (bool, error)
}

var newUploader = func(ctx context.Context, bucket, prefix, region string) (uploader, error) {
	return storage.New(ctx, bucket, prefix, region)
}

// genix publish
func cmdPublish(args []string) error {
	var cf commonFlags
	var bucket, prefix, region stringFlag
	var latest, force boolFlag
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addCommonFlags(fs, &cf)
	fs.Var(&bucket, "bucket", "S3 bucket name (default: AWS_S3_BUCKET)")
	fs.Var(&prefix, "prefix", "S3 key prefix (default: AWS_S3_PREFIX or genix)")
	fs.Var(&region, "region", "AWS region (default: AWS_REGION or us-west-2)")
	fs.Var(&latest, "latest", "Also copy the asset to the latest/ key")
	fs.Var(&force, "force", "Overwrite an existing object at the key")

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "publish requires exactly one file argument")
		return errUsage
	}
	localPath := positional[0]
	if err := cf.setup(); err != nil {
		return err
	}

	if _, err := os.Stat(localPath); err != nil {
		return fmt.Errorf("missing local file %s: %w", localPath, err)
	}

	target, err := publishTarget(bucket, prefix, region)
	if err != nil {
		return err
	}
	ctx := context.Background()
	up, err := newUploader(ctx, target.Bucket, target.Prefix, target.Region)
	if err != nil {
		return err
	}

	filename := filepath.Base(localPath)
	contentType := storage.ContentTypeFor(localPath)
	key := up.KeyForDate(time.Now().UTC(), filename)

	if !force.v {
		exists, err := up.Exists(ctx, key)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("object already exists at %s (use -force to overwrite)", key)
		}
	}
	if err := up.UploadFile(ctx, key, localPath, contentType); err != nil {
		return err
	}
	if latest.v {
		if err := up.CopyToLatest(ctx, key, filename, contentType); err != nil {
			return err
		}
	}

	url := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", target.Bucket, target.Region, key)
	slog.Info("publish completed", "bucket", target.Bucket, "key", key, "contentType", contentType, "latest", latest.v)
	fmt.Println(url)
	return nil
}

// publishTarget resolves the destination from env, then applies flag
// overrides.
func publishTarget(bucket, prefix, region stringFlag) (config.S3, error) {
	target, err := config.PublishTarget()
	if err != nil {
		// A bucket flag can stand in for the env var.
		if !bucket.set {
			return config.S3{}, err
		}
		target = config.S3{Prefix: "genix", Region: "us-west-2"}
	}
	if bucket.set {
		target.Bucket = bucket.v
	}
	if prefix.set {
		target.Prefix = prefix.v
	}
	if region.set {
		target.Region = region.v
	}
	return target, nil
}
