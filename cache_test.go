package ouicomply

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrUploadCachesByContent(t *testing.T) {
	remote := &stubRemote{}
	cache := NewDocumentCache(remote, nil)
	ctx := context.Background()

	doc := []byte("employment agreement v1")

	h1, err := cache.GetOrUpload(ctx, doc, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "file-stub-1", h1.RemoteID)
	assert.Equal(t, int64(len(doc)), h1.Size)
	assert.NotEmpty(t, h1.ContentHash)

	// Byte-identical resubmission must not hit the uploader again.
	h2, err := cache.GetOrUpload(ctx, doc, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, h1.RemoteID, h2.RemoteID)
	assert.Equal(t, h1.ContentHash, h2.ContentHash)
	assert.Equal(t, int64(1), remote.uploads.Load())

	// Different content is a different entry.
	_, err = cache.GetOrUpload(ctx, []byte("employment agreement v2"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, int64(2), remote.uploads.Load())
	assert.Equal(t, 2, cache.Stats().Entries)
}

func TestGetOrUploadEmptyDocument(t *testing.T) {
	cache := NewDocumentCache(&stubRemote{}, nil)
	_, err := cache.GetOrUpload(context.Background(), nil, "")
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestGetOrUploadDetectsMediaType(t *testing.T) {
	remote := &stubRemote{}
	cache := NewDocumentCache(remote, nil)

	h, err := cache.GetOrUpload(context.Background(), []byte("%PDF-1.4 fake"), "")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", h.MediaType)
}

func TestUploadFailureCachesNothing(t *testing.T) {
	remote := &stubRemote{FailErr: errors.New("service unavailable")}
	cache := NewDocumentCache(remote, nil)
	ctx := context.Background()

	doc := []byte("some bytes")
	_, err := cache.GetOrUpload(ctx, doc, "text/plain")
	require.Error(t, err)
	assert.Equal(t, 0, cache.Stats().Entries)

	// A later call retries the upload instead of serving the failure.
	remote.FailErr = nil
	h, err := cache.GetOrUpload(ctx, doc, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "file-stub-1", h.RemoteID)
	assert.Equal(t, int64(2), remote.uploads.Load())
	assert.Equal(t, 1, cache.Stats().Entries)
}

// slowUploader blocks each upload briefly so concurrent callers overlap.
type slowUploader struct {
	uploads atomic.Int64
}

func (s *slowUploader) Upload(ctx context.Context, data []byte, mediaType string) (string, error) {
	n := s.uploads.Add(1)
	time.Sleep(20 * time.Millisecond)
	return fmt.Sprintf("file-%d", n), nil
}

func TestConcurrentIdenticalUploadsCollapse(t *testing.T) {
	remote := &slowUploader{}
	cache := NewDocumentCache(remote, nil)
	ctx := context.Background()
	doc := []byte("shared contract body")

	const callers = 16
	var wg sync.WaitGroup
	ids := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := cache.GetOrUpload(ctx, doc, "text/plain")
			ids[i], errs[i] = h.RemoteID, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, int64(1), remote.uploads.Load())
	assert.Equal(t, 1, cache.Stats().Entries)
}

func TestClearDropsAllEntries(t *testing.T) {
	remote := &stubRemote{}
	cache := NewDocumentCache(remote, nil)
	ctx := context.Background()

	_, err := cache.GetOrUpload(ctx, []byte("a"), "text/plain")
	require.NoError(t, err)
	_, err = cache.GetOrUpload(ctx, []byte("b"), "text/plain")
	require.NoError(t, err)
	require.Equal(t, 2, cache.Stats().Entries)

	cache.Clear()
	assert.Equal(t, 0, cache.Stats().Entries)

	// Same bytes upload again after a clear.
	_, err = cache.GetOrUpload(ctx, []byte("a"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, int64(3), remote.uploads.Load())
}
