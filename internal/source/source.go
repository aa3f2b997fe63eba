// Package source opens VCF input from local files, stdin or S3.
package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Stdin is the URI that selects standard input.
const Stdin = "-"

// S3Config configures access to S3-compatible object stores. Credentials
// come from the default AWS chain.
type S3Config struct {
	Region    string
	Endpoint  string // optional, e.g. a MinIO URL
	PathStyle bool
}

// Input is an opened input stream with whatever identity the backend
// reports. Size is -1 and ModTime zero when unknown.
type Input struct {
	io.ReadCloser
	Name    string
	Size    int64
	ModTime time.Time
}

// Open opens uri: "-" for stdin, "s3://bucket/key" for S3, anything else
// as a local path. Compressed input is left to the VCF reader.
func Open(ctx context.Context, uri string, s3cfg S3Config) (*Input, error) {
	switch {
	case uri == Stdin:
		return &Input{ReadCloser: io.NopCloser(os.Stdin), Name: "stdin", Size: -1}, nil
	case strings.HasPrefix(uri, "s3://"):
		return openS3(ctx, uri, s3cfg)
	default:
		return openFile(uri)
	}
}

func openFile(path string) (*Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat input: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("open input: %s is a directory", path)
	}
	return &Input{ReadCloser: f, Name: path, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func openS3(ctx context.Context, uri string, cfg S3Config) (*Input, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}
	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", uri, err)
	}
	in := &Input{ReadCloser: out.Body, Name: uri, Size: -1}
	if out.ContentLength != nil {
		in.Size = *out.ContentLength
	}
	if out.LastModified != nil {
		in.ModTime = *out.LastModified
	}
	return in, nil
}

func newS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// ParseS3URI splits "s3://bucket/key" into bucket and key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 uri must be s3://bucket/key: %q", uri)
	}
	return bucket, key, nil
}
