package s3site

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/williamokano/web_deployer/pkg/task"
)

type uploadResult struct {
	key      string
	err      error
	duration time.Duration
}

// syncDir uploads every file under dir to the bucket, keyed by its
// slash-separated path relative to dir, with concurrency bounded by the
// configured upload limit
func (t *Task) syncDir(ctx context.Context, dir string) (int, error) {
	files, err := listFiles(dir)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("site directory %s has no files: %w", dir, task.ErrPreconditionFailed)
	}

	maxConcurrent := t.maxUploads
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	t.logger.Info().
		Int("files", len(files)).
		Int("max_concurrent", maxConcurrent).
		Str("bucket", t.opts.bucket).
		Msg("starting site upload")

	sem := semaphore.NewWeighted(int64(maxConcurrent))
	g, gCtx := errgroup.WithContext(ctx)
	resultsChan := make(chan uploadResult, len(files))

	for _, file := range files {
		file := file // capture loop variable

		g.Go(func() error {
			if err := sem.Acquire(gCtx, 1); err != nil {
				return fmt.Errorf("failed to acquire semaphore: %w", err)
			}
			defer sem.Release(1)

			start := time.Now()
			err := t.uploadOne(gCtx, dir, file)
			resultsChan <- uploadResult{key: file, err: err, duration: time.Since(start)}

			if err != nil {
				return fmt.Errorf("upload failed for %s: %w", file, err)
			}
			return nil
		})
	}

	waitErr := g.Wait()
	close(resultsChan)

	uploaded := 0
	for result := range resultsChan {
		if result.err != nil {
			t.logger.Error().Err(result.err).Str("key", result.key).Msg("upload failed")
			continue
		}
		uploaded++
		t.logger.Debug().Str("key", result.key).Dur("duration", result.duration).Msg("uploaded")
	}

	if waitErr != nil {
		return uploaded, task.WrapError(t.name, "sync", waitErr)
	}

	t.logger.Info().Int("uploaded", uploaded).Msg("site upload completed")
	return uploaded, nil
}

func (t *Task) uploadOne(ctx context.Context, dir, key string) error {
	return task.WithRetry(ctx, task.DefaultRetryConfig(), t.logger, "upload "+key, func() error {
		file, err := os.Open(filepath.Join(dir, filepath.FromSlash(key)))
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = t.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(t.opts.bucket),
			Key:         aws.String(key),
			Body:        file,
			ContentType: aws.String(contentType(key)),
		})
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("%v: %w", err, task.ErrTimeout)
			}
			return err
		}

		return nil
	})
}

func contentType(key string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(key))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// listFiles returns regular files under dir as slash-separated keys
// relative to dir
func listFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	return files, nil
}
