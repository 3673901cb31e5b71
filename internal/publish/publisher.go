// Package publish uploads resized images to S3.
package publish

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/acm19/resizer/internal/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Client is the subset of the S3 API the publisher needs.
type S3Client interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher defines the interface for uploading resized images
type Publisher interface {
	// Publish uploads the file at filePath and returns its object key.
	// An object with the same key and content is left alone; one with the same
	// key but different content is an error.
	Publish(ctx context.Context, filePath string) (string, error)
	// PublishFiles uploads files with at most maxConcurrent uploads in flight.
	PublishFiles(ctx context.Context, files []string, maxConcurrent int) error
}

// s3Publisher implements the Publisher interface
type s3Publisher struct {
	client S3Client
	bucket string
	prefix string
}

// NewS3Publisher creates a Publisher using the default AWS configuration chain.
func NewS3Publisher(ctx context.Context, bucket, prefix string) (Publisher, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3PublisherWithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// NewS3PublisherWithClient creates a Publisher around an existing client.
func NewS3PublisherWithClient(client S3Client, bucket, prefix string) Publisher {
	return &s3Publisher{client: client, bucket: bucket, prefix: prefix}
}

// objectKey joins the prefix and the file's base name with a single slash.
func (p *s3Publisher) objectKey(filePath string) string {
	name := filepath.Base(filePath)
	prefix := strings.Trim(p.prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Publish uploads a single file.
func (p *s3Publisher) Publish(ctx context.Context, filePath string) (string, error) {
	key := p.objectKey(filePath)

	localHash, err := calculateMD5(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to calculate MD5: %w", err)
	}

	headOutput, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		remoteETag := strings.Trim(aws.ToString(headOutput.ETag), `"`)
		if remoteETag == localHash {
			logger.Info("Object already exists in S3 with matching hash, skipping", "file", filePath, "key", key, "hash", localHash)
			return key, nil
		}
		return "", fmt.Errorf("hash mismatch for '%s': S3 object exists with different content (local: %s, remote: %s). Manual intervention required", key, localHash, remoteETag)
	} else if !isNotFoundError(err) {
		return "", fmt.Errorf("failed to check S3 object existence: %w", err)
	}

	logger.Info("Uploading to S3", "file", filePath, "bucket", p.bucket, "key", key, "hash", localHash)
	if err := p.upload(ctx, filePath, key); err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return key, nil
}

// PublishFiles uploads files in parallel
func (p *s3Publisher) PublishFiles(ctx context.Context, files []string, maxConcurrent int) error {
	if len(files) == 0 {
		logger.Info("No files to publish")
		return nil
	}
	maxConcurrent = max(1, min(maxConcurrent, len(files)))

	logger.Info("Starting S3 upload", "files", len(files), "bucket", p.bucket, "concurrency", maxConcurrent)

	jobs := make(chan string, len(files))
	results := make(chan error, len(files))
	var wg sync.WaitGroup

	for i := 0; i < maxConcurrent; i++ {
		wg.Add(1)
		go p.publishWorker(ctx, i, jobs, results, &wg)
	}

	for _, file := range files {
		jobs <- file
	}
	close(jobs)

	wg.Wait()
	close(results)

	var failed []error
	successCount := 0
	for err := range results {
		if err != nil {
			failed = append(failed, err)
		} else {
			successCount++
		}
	}

	if len(failed) > 0 {
		logger.Error("Upload completed with errors", "successful", successCount, "failed", len(failed))
		return fmt.Errorf("upload failed for %d files: %w", len(failed), errors.Join(failed...))
	}

	logger.Info("Upload completed successfully", "files_uploaded", successCount)
	return nil
}

// publishWorker processes upload jobs from the jobs channel
func (p *s3Publisher) publishWorker(ctx context.Context, workerID int, jobs <-chan string, results chan<- error, wg *sync.WaitGroup) {
	defer wg.Done()
	for file := range jobs {
		if err := ctx.Err(); err != nil {
			results <- fmt.Errorf("file %s: %w", file, err)
			continue
		}
		logger.Debug("Worker publishing file", "worker", workerID, "file", file)
		if _, err := p.Publish(ctx, file); err != nil {
			logger.Error("Failed to publish file", "file", file, "error", err)
			results <- fmt.Errorf("file %s: %w", file, err)
		} else {
			results <- nil
		}
	}
}

// upload streams a file to S3
func (p *s3Publisher) upload(ctx context.Context, filePath, key string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	return err
}

// calculateMD5 calculates the MD5 hash of a file
func calculateMD5(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// isNotFoundError checks if the error is a NotFound error
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
		return true
	}

	return strings.Contains(err.Error(), "StatusCode: 404")
}
