package MinIO

import (
	"context"
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"

	"drive-service/internal/errs"
)

func TestNew_InvalidEndpoint(t *testing.T) {
	_, err := New(context.Background(), Config{Endpoint: "bad endpoint:9000/x", Bucket: "storage"})
	assert.Error(t, err)
}

func TestMapError(t *testing.T) {
	err := mapError("h1", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	other := errors.New("connection reset")
	assert.Equal(t, other, mapError("h1", other))
}

func TestKeyPrefix(t *testing.T) {
	m := &MinIOClient{prefix: "blobs/"}
	assert.Equal(t, "blobs/abc", m.key("abc"))
}
