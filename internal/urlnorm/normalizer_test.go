package urlnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHost = "images.example.com"

func TestNormalize(t *testing.T) {
	t.Parallel()

	n := New(testHost)

	tests := []struct {
		name string
		ref  string
		want string
	}{
		{name: "bare path", ref: "/a.png", want: "https://images.example.com/a.png"},
		{name: "path without slash", ref: "covers/a.png", want: "https://images.example.com/covers/a.png"},
		{name: "surrounding whitespace", ref: "  /a.png\n", want: "https://images.example.com/a.png"},
		{name: "http api host", ref: "http://api.example.com/media/a.png", want: "https://images.example.com/media/a.png"},
		{name: "cdn mirror", ref: "https://cdn.example.net/media/a.png", want: "https://images.example.com/media/a.png"},
		{name: "query preserved", ref: "https://cdn.example.net/a.png?w=200&h=100", want: "https://images.example.com/a.png?w=200&h=100"},
		{name: "fragment dropped", ref: "/a.png#top", want: "https://images.example.com/a.png"},
		{name: "port dropped", ref: "http://localhost:8080/a.png", want: "https://images.example.com/a.png"},
		{name: "scheme relative", ref: "//cdn.example.net/a.png", want: "https://images.example.com/a.png"},
		{name: "escaped path", ref: "/art/the%20movie.png", want: "https://images.example.com/art/the%20movie.png"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := n.Normalize(tt.ref)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestNormalizeRejects(t *testing.T) {
	t.Parallel()

	n := New(testHost)
	for _, ref := range []string{"", "   ", "\t\n", "/%zz", "//"} {
		assert.Nil(t, n.Normalize(ref), "ref %q", ref)
	}

	assert.Nil(t, New("").Normalize("/a.png"), "no canonical host")
}

func TestNewStripsScheme(t *testing.T) {
	t.Parallel()

	n := New("https://images.example.com/")
	assert.Equal(t, testHost, n.Host())
	assert.Equal(t, "https://images.example.com/a.png", n.Normalize("a.png").String())
}

func TestNormalizeCollapsesMirrors(t *testing.T) {
	t.Parallel()

	n := New(testHost)
	a := n.Normalize("https://api.example.com/media/poster.jpg")
	b := n.Normalize("http://cdn.example.net/media/poster.jpg")
	c := n.Normalize("media/poster.jpg")

	require.NotNil(t, a)
	assert.Equal(t, a.String(), b.String())
	assert.Equal(t, a.String(), c.String())
}

var idempotenceSeeds = []string{
	"/a.png",
	"a.png",
	"https://cdn.example.net/x/y.jpg?size=large",
	"http://api.example.com//double//slash.png",
	"/art/the%20movie.png",
	"/with space.png",
	"http:opaque.png",
	"?only=query",
	"/a.png#frag",
	"//cdn.example.net/a.webp",
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	n := New(testHost)
	for _, ref := range idempotenceSeeds {
		assertIdempotent(t, n, ref)
	}
}

func FuzzNormalizeIdempotent(f *testing.F) {
	for _, ref := range idempotenceSeeds {
		f.Add(ref)
	}
	n := New(testHost)
	f.Fuzz(func(t *testing.T, ref string) {
		assertIdempotent(t, n, ref)
	})
}

func assertIdempotent(t *testing.T, n *Normalizer, ref string) {
	t.Helper()

	once := n.Normalize(ref)
	if once == nil {
		return
	}
	twice := n.Normalize(once.String())
	require.NotNil(t, twice, "normalize(%q) = %q does not normalize again", ref, once)
	assert.Equal(t, once.String(), twice.String(), "ref %q", ref)
}

func TestRequestsDedupesByReference(t *testing.T) {
	t.Parallel()

	n := New(testHost)
	reqs := n.Requests([]string{"/a.png", "", "/b.png", "/a.png", "https://cdn.example.net/a.png"})

	require.Len(t, reqs, 3)
	assert.Equal(t, "/a.png", reqs[0].Reference)
	assert.Equal(t, "/b.png", reqs[1].Reference)
	assert.Equal(t, "https://cdn.example.net/a.png", reqs[2].Reference)

	// Different references, same canonical URL
	assert.Equal(t, reqs[0].Key(), reqs[2].Key())
}
