package compositor

import (
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"runtime"

	"github.com/creachadair/taskgroup"
)

// AnimationFrame is one already-flattened (canvas-sized, disposal-resolved)
// source frame plus the timing metadata to preserve on re-encode. Disposal
// chaining happens once, at decode time, in whatever Resolver produced
// these frames (see fsresolver) — grounded on other_examples's
// tailscale-tmemes DrawGIF, which performs exactly that backdrop-chaining
// pass before drawing. Pushing that pass upstream means this package can
// render every frame independently and in parallel.
type AnimationFrame struct {
	Image             image.Image
	DelayCentiseconds int
}

// RenderAnimation draws captions onto every frame concurrently, quantizes
// each to a palette sized by quality (1-100), and assembles a re-encodable
// *gif.GIF. Frame order and timing are preserved; disposal is forced to
// DisposalNone since every output frame is already a complete canvas.
// paletteHint, when non-nil, is the source template's own RGB-triple
// palette (see fsresolver's paletteHint) and is used as the quantization
// base instead of the standard library's Plan 9 palette; nil falls back
// to palette.Plan9.
//
// Grounded on other_examples's tailscale-tmemes DrawGIF for the
// bounded-concurrency, one-goroutine-per-frame shape (taskgroup.Limit), with
// the backdrop bookkeeping dropped because it already happened upstream.
func RenderAnimation(frames []AnimationFrame, canvas image.Rectangle, loopCount int, captions []ResolvedCaption, quality int, paletteHint []uint8) *gif.GIF {
	out := &gif.GIF{
		Image:     make([]*image.Paletted, len(frames)),
		Delay:     make([]int, len(frames)),
		Disposal:  make([]byte, len(frames)),
		LoopCount: loopCount,
		Config:    image.Config{Width: canvas.Dx(), Height: canvas.Dy()},
	}

	pal := paletteForQuality(quality, paletteHint)
	g, run := taskgroup.New(nil).Limit(runtime.NumCPU())
	for i, f := range frames {
		i, f := i, f
		run.Run(func() {
			rgba := RenderStill(f.Image, captions)
			dst := image.NewPaletted(canvas, pal)
			draw.FloydSteinberg.Draw(dst, canvas, rgba, canvas.Min)
			out.Image[i] = dst
			out.Delay[i] = f.DelayCentiseconds
			out.Disposal[i] = gif.DisposalNone
		})
	}
	g.Wait()
	return out
}

// paletteForQuality maps a 1-100 quality knob to a palette size: lower
// quality trades color fidelity for a smaller encoded frame. The base
// palette is hint (the source template's own palette) when one was
// supplied and carries at least two colors, otherwise the standard
// library's palette.Plan9; either way this stays on
// image/draw's Floyd-Steinberg ditherer rather than hand-rolling a
// color-cube reducer, since no quantization library appears anywhere in
// the retrieved corpus (see DESIGN.md).
func paletteForQuality(quality int, hint []uint8) color.Palette {
	base := palette.Plan9
	if p := paletteFromHint(hint); len(p) >= 2 {
		base = p
	}

	if quality >= 100 {
		return base
	}
	if quality < 1 {
		quality = 1
	}
	n := 2 + (len(base)-2)*quality/100
	if n < 2 {
		n = 2
	}
	if n >= len(base) {
		return base
	}
	// Stride through base rather than truncating its prefix, so low
	// quality still spans the palette's full hue range instead of
	// collapsing to whatever colors happen to sort first.
	out := make(color.Palette, n)
	for i := range out {
		out[i] = base[i*len(base)/n]
	}
	return out
}

// paletteFromHint reconstructs a color.Palette from a flattened RGB-triple
// byte slice (see fsresolver's paletteHint); nil or malformed input yields
// an empty palette.
func paletteFromHint(hint []uint8) color.Palette {
	n := len(hint) / 3
	if n == 0 {
		return nil
	}
	out := make(color.Palette, n)
	for i := 0; i < n; i++ {
		out[i] = color.RGBA{R: hint[i*3], G: hint[i*3+1], B: hint[i*3+2], A: 0xff}
	}
	return out
}
