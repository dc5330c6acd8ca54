// Package compositor composites resolved captions onto still rasters and
// animated-GIF frame sequences.
//
// The still path is grounded on tailscale-tmemes' memedraw.Draw (one source
// image, N text overlays, flattened to RGBA) and on instructions/image.go's
// RGBA-conversion-then-draw-over pipeline, reduced to ordered caption
// compositing only: no resize, rotate, or mask.
package compositor

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/krispeckt/captionforge/internal/geom"
	"github.com/krispeckt/captionforge/internal/render"
	"github.com/krispeckt/captionforge/internal/textlayout"
)

// ResolvedCaption is a CaptionSpec after font/size/rect resolution: ready
// to hand straight to the text layout algorithm.
type ResolvedCaption struct {
	Text  string
	Font  *render.Font
	Color color.RGBA
	Align geom.Alignment
	Rect  geom.Rect
}

// RenderStill converts src to RGBA if needed and draws every non-empty
// caption onto it in declaration order, so later captions overwrite
// earlier pixels via alpha blending.
func RenderStill(src image.Image, captions []ResolvedCaption) *image.RGBA {
	dst := toRGBA(src)
	for _, c := range captions {
		if c.Text == "" {
			continue
		}
		textlayout.RenderText(dst, c.Font, c.Text, c.Align, c.Rect, c.Color)
	}
	return dst
}

// toRGBA returns src as an *image.RGBA, converting (by copy) only if it
// isn't already one.
func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok {
		// Copy so callers can render the same decoded template repeatedly
		// (e.g. once per animation frame, or across concurrent requests)
		// without one render's captions leaking into another's.
		out := image.NewRGBA(rgba.Bounds())
		draw.Draw(out, rgba.Bounds(), rgba, rgba.Bounds().Min, draw.Src)
		return out
	}
	out := image.NewRGBA(src.Bounds())
	draw.Draw(out, src.Bounds(), src, src.Bounds().Min, draw.Src)
	return out
}
