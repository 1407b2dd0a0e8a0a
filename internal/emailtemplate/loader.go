// Package emailtemplate loads and renders the HTML bodies of transactional emails.
package emailtemplate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// maxTemplateSize bounds a single template read.
const maxTemplateSize = 1 << 20

// ErrTemplateNotFound is returned by loaders when a template does not exist.
var ErrTemplateNotFound = errors.New("email template not found")

// Loader fetches raw template source by file name (e.g. "order_shipped.html").
type Loader interface {
	Load(ctx context.Context, name string) ([]byte, error)
}

// fileLoader reads templates from a local directory.
type fileLoader struct {
	dir    string
	logger zerolog.Logger
}

// NewFileLoader creates a loader reading templates from dir.
func NewFileLoader(dir string, logger zerolog.Logger) Loader {
	return &fileLoader{
		dir:    dir,
		logger: logger.With().Str("component", "template-loader").Logger(),
	}
}

func (l *fileLoader) Load(_ context.Context, name string) ([]byte, error) {
	path := filepath.Join(l.dir, filepath.Base(name))

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, path)
		}
		return nil, fmt.Errorf("failed to open template %s: %w", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxTemplateSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}

	l.logger.Debug().Str("file", path).Int("bytes", len(data)).Msg("template loaded")
	return data, nil
}

type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// s3Loader reads templates from an S3 bucket under a key prefix.
type s3Loader struct {
	client objectGetter
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3Loader creates a loader that reads bucket/prefix+name from S3.
func NewS3Loader(ctx context.Context, bucket, region, prefix string, logger zerolog.Logger) (Loader, error) {
	logger = logger.With().Str("component", "s3-template-loader").Logger()

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		logger.Error().Err(err).Msg("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	logger.Info().
		Str("bucket", bucket).
		Str("region", region).
		Str("prefix", prefix).
		Msg("S3 template loader initialised")

	return &s3Loader{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}, nil
}

func (l *s3Loader) Load(ctx context.Context, name string) ([]byte, error) {
	key := l.prefix + name

	result, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		l.logger.Error().
			Err(err).
			Str("bucket", l.bucket).
			Str("key", key).
			Msg("failed to get template from S3")
		return nil, fmt.Errorf("failed to get object from S3 (bucket=%s, key=%s): %w", l.bucket, key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(io.LimitReader(result.Body, maxTemplateSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object %s: %w", key, err)
	}

	l.logger.Info().Str("bucket", l.bucket).Str("key", key).Msg("template loaded from S3")
	return data, nil
}

// fallbackLoader tries the primary loader first and falls back to the secondary.
type fallbackLoader struct {
	primary   Loader
	secondary Loader
	logger    zerolog.Logger
}

// NewFallbackLoader creates a loader that tries primary (typically S3) before secondary.
// A nil primary means only secondary is used.
func NewFallbackLoader(primary, secondary Loader, logger zerolog.Logger) Loader {
	return &fallbackLoader{
		primary:   primary,
		secondary: secondary,
		logger:    logger.With().Str("component", "fallback-template-loader").Logger(),
	}
}

func (l *fallbackLoader) Load(ctx context.Context, name string) ([]byte, error) {
	if l.primary != nil {
		data, err := l.primary.Load(ctx, name)
		if err == nil {
			return data, nil
		}
		l.logger.Warn().
			Err(err).
			Str("template", name).
			Msg("primary template source failed, falling back")
	}
	return l.secondary.Load(ctx, name)
}
