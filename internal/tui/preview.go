package tui

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/image/draw"
)

const halfBlock = "▀"

// renderPreview draws img with half-block cells: each cell is one pixel wide
// and two pixels tall, top pixel in the foreground and bottom in the background.
// The image is scaled down to fit maxCols x maxRows cells, never up.
func renderPreview(img image.Image, maxCols, maxRows int) string {
	if img == nil || maxCols <= 0 || maxRows <= 0 {
		return ""
	}
	bounds := img.Bounds()
	cols, rows := fitWithin(bounds.Dx(), bounds.Dy(), maxCols, maxRows*2)
	if cols == 0 || rows == 0 {
		return ""
	}

	scaled := image.NewRGBA(image.Rect(0, 0, cols, rows))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, bounds, draw.Src, nil)

	var sb strings.Builder
	for y := 0; y < rows; y += 2 {
		if y > 0 {
			sb.WriteByte('\n')
		}
		for x := 0; x < cols; x++ {
			style := lipgloss.NewStyle().Foreground(hexColor(scaled.RGBAAt(x, y)))
			if y+1 < rows {
				style = style.Background(hexColor(scaled.RGBAAt(x, y+1)))
			}
			sb.WriteString(style.Render(halfBlock))
		}
	}
	return sb.String()
}

// fitWithin scales w x h down to fit maxW x maxH, keeping the aspect ratio.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h), 1)
	return max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))
}

func hexColor(c color.RGBA) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}
