package domain

import (
	"image"
	"net/url"
)

// Image is a decoded image payload together with the bytes it was decoded from.
type Image struct {
	Data   []byte      // Raw encoded bytes, as fetched and persisted
	Format string      // Format name reported by the decoder ("png", "jpeg", ...)
	Pixels image.Image // Decoded pixels
}

// Width returns the decoded width in pixels
func (i *Image) Width() int {
	if i == nil || i.Pixels == nil {
		return 0
	}
	return i.Pixels.Bounds().Dx()
}

// Height returns the decoded height in pixels
func (i *Image) Height() int {
	if i == nil || i.Pixels == nil {
		return 0
	}
	return i.Pixels.Bounds().Dy()
}

// Cost approximates the memory held by the image: raw bytes plus RGBA pixels.
func (i *Image) Cost() int64 {
	if i == nil {
		return 0
	}
	return int64(len(i.Data)) + int64(i.Width())*int64(i.Height())*4
}

// ImageMap maps an original reference string to its decoded image.
type ImageMap map[string]*Image

// Clone returns a shallow copy safe to hand to observers.
func (m ImageMap) Clone() ImageMap {
	out := make(ImageMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Request pairs a reference as a screen expressed it with its canonical URL.
// Published results are keyed by Reference; cache lookups use the URL.
type Request struct {
	Reference string
	URL       *url.URL
}

// Key returns the canonical URL string used as the cache identity.
func (r Request) Key() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Equal reports structural equality.
func (r Request) Equal(other Request) bool {
	return r.Reference == other.Reference && r.Key() == other.Key()
}

func requestsEqual(a, b []Request) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
