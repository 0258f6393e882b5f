package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	key := NewKey("invoice.pdf")
	assert.True(t, strings.HasSuffix(key, ".pdf"))

	body := "not really a pdf"
	require.NoError(t, s.Put(ctx, key, strings.NewReader(body), int64(len(body)), "application/pdf"))

	rc, err := s.Get(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, body, string(got))

	path, cleanup, err := s.Localize(ctx, key)
	require.NoError(t, err)
	defer cleanup()
	assert.FileExists(t, path)

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Get(ctx, key)
	assert.Error(t, err)

	// deleting a missing key is not an error
	assert.NoError(t, s.Delete(ctx, key))
}

func TestLocalizeMissingKey(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, _, err = s.Localize(context.Background(), "nope.pdf")
	assert.Error(t, err)
}
