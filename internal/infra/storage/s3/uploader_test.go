package s3

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Bucket: "photos"}, nil)
	assert.ErrorIs(t, err, ErrEndpointRequired)

	_, err = New(Config{Endpoint: "http://localhost:9000", Bucket: "  "}, nil)
	assert.ErrorIs(t, err, ErrBucketRequired)
}

func TestObjectURL(t *testing.T) {
	store, err := New(Config{Endpoint: "http://minio:9000", PublicEndpoint: "https://cdn.example.com/", Bucket: "photos"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/photos/listings/lst-1/a.jpg", store.ObjectURL("/listings/lst-1/a.jpg"))

	bare, err := New(Config{Endpoint: "minio:9000", Bucket: "photos"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000/photos/k.png", bare.ObjectURL("k.png"))
}

func TestUploadRejectsBadInput(t *testing.T) {
	store, err := New(Config{Endpoint: "http://localhost:9000", Bucket: "photos"}, nil)
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), "k", nil, "image/png")
	assert.ErrorIs(t, err, ErrBodyRequired)

	_, err = store.Upload(context.Background(), " / ", strings.NewReader("x"), "image/png")
	assert.ErrorIs(t, err, ErrKeyRequired)
}
