package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		uri    string
		bucket string
		key    string
		ok     bool
	}{
		{"s3://bucket/path/to/file.vcf.gz", "bucket", "path/to/file.vcf.gz", true},
		{"s3://bucket/file.vcf", "bucket", "file.vcf", true},
		{"s3://bucket/", "", "", false},
		{"s3://bucket", "", "", false},
		{"s3:///key", "", "", false},
		{"/local/file.vcf", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, key, err := ParseS3URI(tt.uri)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestOpen_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.vcf")
	require.NoError(t, os.WriteFile(path, []byte("##fileformat=VCFv4.2\n"), 0644))

	in, err := Open(context.Background(), path, S3Config{})
	require.NoError(t, err)
	defer in.Close()

	assert.Equal(t, path, in.Name)
	assert.Equal(t, int64(21), in.Size)
	assert.False(t, in.ModTime.IsZero())

	data, err := io.ReadAll(in)
	require.NoError(t, err)
	assert.Equal(t, "##fileformat=VCFv4.2\n", string(data))
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing.vcf"), S3Config{})
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Open(context.Background(), t.TempDir(), S3Config{})
	assert.Error(t, err)

	_, err = Open(context.Background(), "s3://bucket-only", S3Config{})
	assert.Error(t, err)
}

func TestOpen_Stdin(t *testing.T) {
	in, err := Open(context.Background(), Stdin, S3Config{})
	require.NoError(t, err)
	assert.Equal(t, "stdin", in.Name)
	assert.Equal(t, int64(-1), in.Size)
	assert.NoError(t, in.Close())
}
