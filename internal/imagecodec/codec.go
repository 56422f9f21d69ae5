// Package imagecodec validates and decodes image payloads.
package imagecodec

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF
	_ "image/jpeg" // register JPEG
	_ "image/png"  // register PNG

	_ "golang.org/x/image/webp" // register WebP

	"github.com/mmcdole/artwork/internal/domain"
)

// Config describes a payload without decoding its pixels.
type Config struct {
	Format string
	Width  int
	Height int
}

// Probe reads only the image header and checks for positive dimensions.
func Probe(data []byte) (Config, error) {
	if len(data) == 0 {
		return Config{}, fmt.Errorf("%w: empty payload", domain.ErrDecode)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Config{}, fmt.Errorf("%w: zero dimensions %dx%d", domain.ErrDecode, cfg.Width, cfg.Height)
	}
	return Config{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// Decode fully decodes a payload. Truncated or zero-sized images fail with
// domain.ErrDecode.
func Decode(data []byte) (*domain.Image, error) {
	if _, err := Probe(data); err != nil {
		return nil, err
	}
	pixels, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	b := pixels.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: zero dimensions", domain.ErrDecode)
	}
	return &domain.Image{Data: data, Format: format, Pixels: pixels}, nil
}
