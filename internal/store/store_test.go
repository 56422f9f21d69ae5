package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/artwork/internal/domain"
)

func TestResponseStoreRoundTrip(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{"bolt": t.TempDir(), "memory": ""} {
		t.Run(name, func(t *testing.T) {
			s, err := NewResponseStore(dir, "images.example.com")
			require.NoError(t, err)
			defer s.Close()

			const u = "https://images.example.com/a.png"
			_, ok := s.GetResponse(u)
			assert.False(t, ok)

			require.NoError(t, s.SaveResponse(u, &domain.CachedResponse{
				StatusCode:  200,
				ContentType: "image/png",
				ETag:        `"abc"`,
				Body:        []byte{1, 2, 3},
			}))

			got, ok := s.GetResponse(u)
			require.True(t, ok)
			assert.Equal(t, 200, got.StatusCode)
			assert.Equal(t, "image/png", got.ContentType)
			assert.Equal(t, `"abc"`, got.ETag)
			assert.Equal(t, []byte{1, 2, 3}, got.Body)
			assert.NotZero(t, got.StoredAt)
			assert.Equal(t, 1, s.Len())

			s.InvalidateResponse(u)
			_, ok = s.GetResponse(u)
			assert.False(t, ok)
		})
	}
}

func TestResponseStorePersists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	const u = "https://images.example.com/a.png"

	s, err := NewResponseStore(dir, "images.example.com")
	require.NoError(t, err)
	require.NoError(t, s.SaveResponse(u, &domain.CachedResponse{StatusCode: 200, Body: []byte("x")}))
	require.NoError(t, s.Close())

	reopened, err := NewResponseStore(dir, "images.example.com")
	require.NoError(t, err)
	defer reopened.Close()

	got, ok := reopened.GetResponse(u)
	require.True(t, ok)
	assert.Equal(t, []byte("x"), got.Body)

	// Another host gets its own database
	other, err := NewResponseStore(dir, "mirror.example.net")
	require.NoError(t, err)
	defer other.Close()
	_, ok = other.GetResponse(u)
	assert.False(t, ok)
}

func TestResponseStoreInvalidateAll(t *testing.T) {
	t.Parallel()

	s, err := NewResponseStore(t.TempDir(), "")
	require.NoError(t, err)
	defer s.Close()

	for _, u := range []string{"https://h/1", "https://h/2", "https://h/3"} {
		require.NoError(t, s.SaveResponse(u, &domain.CachedResponse{StatusCode: 200}))
	}
	require.Equal(t, 3, s.Len())

	s.InvalidateAll()
	assert.Equal(t, 0, s.Len())
	_, ok := s.GetResponse("https://h/2")
	assert.False(t, ok)

	// Still writable after the bucket is recreated
	require.NoError(t, s.SaveResponse("https://h/4", &domain.CachedResponse{StatusCode: 200}))
	assert.Equal(t, 1, s.Len())
}
