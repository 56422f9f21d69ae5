package main

import (
	"bytes"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/artwork/internal/adapter"
	"github.com/mmcdole/artwork/internal/domain"
	"github.com/mmcdole/artwork/internal/fetch"
	"github.com/mmcdole/artwork/internal/imagestore"
	"github.com/mmcdole/artwork/internal/loader"
	"github.com/mmcdole/artwork/internal/urlnorm"
)

func TestReadRefs(t *testing.T) {
	refs, err := readRefs([]string{"/a.png"}, strings.NewReader("/ignored.png\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"/a.png"}, refs)

	refs, err = readRefs(nil, strings.NewReader("/a.png\n\n  # comment\n  /b.png  \n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"/a.png", "/b.png"}, refs)

	refs, err = readRefs(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestMatchRefs(t *testing.T) {
	refs := []string{"/posters/alpha.png", "/posters/beta.png", "/alp.png"}

	assert.Equal(t, refs, matchRefs("", refs))
	assert.Equal(t, []string{"/alp.png", "/posters/alpha.png"}, matchRefs("ALP", refs))
	assert.Empty(t, matchRefs("zzz", refs))
}

func TestRunHeadless(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 3))))
	payload := buf.Bytes()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	host := mustHost(t, srv.URL)
	images, err := imagestore.New(t.TempDir(), nil)
	require.NoError(t, err)
	defer images.Close()

	client := fetch.New(nil, fetch.WithHTTPClient(srv.Client()))
	coord := loader.New(images, client, urlnorm.New(host), nil)
	defer coord.Close()

	var out bytes.Buffer
	err = runHeadless(coord, []string{"/a.png", "/missing.png"}, "", &out, adapter.NullLogger())
	assert.ErrorIs(t, err, errMissing)
	assert.Equal(t, "/a.png\t4x3 png\n/missing.png\tmissing\n", out.String())

	out.Reset()
	err = runHeadless(coord, []string{"/a.png"}, "entity-1", &out, adapter.NullLogger())
	require.NoError(t, err)
	assert.Equal(t, "/a.png\t4x3 png\n", out.String())
}

func TestOpenTransportCacheRefreshClears(t *testing.T) {
	dir := t.TempDir()
	const u = "https://images.example.com/a.png"

	responses, err := openTransportCache(dir, "images.example.com", false, adapter.NullLogger())
	require.NoError(t, err)
	require.NoError(t, responses.SaveResponse(u, &domain.CachedResponse{StatusCode: 200, Body: []byte("x")}))
	require.NoError(t, responses.Close())

	responses, err = openTransportCache(dir, "images.example.com", false, adapter.NullLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, responses.Len(), "plain run keeps stored responses")
	require.NoError(t, responses.Close())

	responses, err = openTransportCache(dir, "images.example.com", true, adapter.NullLogger())
	require.NoError(t, err)
	defer responses.Close()
	assert.Equal(t, 0, responses.Len())
	_, ok := responses.GetResponse(u)
	assert.False(t, ok)
}

func mustHost(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Host
}
