// Package render wraps a decoded TrueType font with the pixel-accurate
// measurement and drawing helpers the text layout algorithm needs, and
// caches the rasterized font.Face instances it produces.
package render

import (
	"fmt"
	"image"
	"image/color"
	"unicode"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/krispeckt/captionforge/internal/cache"
)

// faceCache holds rasterized font.Face instances keyed by (font pointer, size).
// Faces are expensive to build and are reused across renders of the same
// logical font at the same pixel size.
var faceCache = cache.NewLRU[string, font.Face](64, closeFace)

func closeFace(f font.Face) {
	if c, ok := f.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}

// SetFaceCacheCapacity changes how many rasterized faces are kept alive.
func SetFaceCacheCapacity(n int) { faceCache.SetCapacity(n) }

// Font wraps a parsed TrueType font at a given pixel size. Size is expressed
// directly in pixels (as the original renderer does at its fixed 72 DPI),
// not in points, so callers never need to reason about DPI conversion.
type Font struct {
	tt       *truetype.Font
	sizePx   float64
	fontName string // logical name, returned by Name
}

// Load parses a TrueType font from raw bytes at the given pixel size.
func Load(data []byte, sizePx float64, name string) (*Font, error) {
	tt, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("render: parse font %q: %w", name, err)
	}
	if sizePx <= 0 {
		sizePx = 0.01
	}
	return &Font{tt: tt, sizePx: sizePx, fontName: name}, nil
}

// WithSize returns a shallow copy of f at a new pixel size. Used heavily by
// the auto-fit loop, which needs to probe many candidate sizes without
// mutating the caller's font.
func (f *Font) WithSize(sizePx float64) *Font {
	if sizePx <= 0 {
		sizePx = 0.01
	}
	cp := *f
	cp.sizePx = sizePx
	return &cp
}

// SizePx returns the font's current pixel size.
func (f *Font) SizePx() float64 { return f.sizePx }

// Name returns the logical name the font was loaded under.
func (f *Font) Name() string { return f.fontName }

func (f *Font) cacheKey() string {
	return fmt.Sprintf("%p_%.4f", f.tt, f.sizePx)
}

// Face returns a rasterized font.Face for the current size, reusing a
// cached instance when one already exists.
func (f *Font) Face() font.Face {
	key := f.cacheKey()
	if face, ok := faceCache.Get(key); ok {
		return face
	}
	face := truetype.NewFace(f.tt, &truetype.Options{
		Size:    f.sizePx,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	faceCache.Put(key, face)
	return face
}

// Ascent returns the distance from the baseline to the top of the font, in
// pixels.
func (f *Font) Ascent() float64 {
	return fixedToFloat(f.Face().Metrics().Ascent)
}

// Descent returns the distance from the baseline to the bottom of the
// font, in pixels (a positive value).
func (f *Font) Descent() float64 {
	return fixedToFloat(f.Face().Metrics().Descent)
}

// LineGap returns additional vertical space a layout engine should add
// between lines, beyond ascent+descent.
func (f *Font) LineGap() float64 {
	m := f.Face().Metrics()
	gap := fixedToFloat(m.Height) - fixedToFloat(m.Ascent) - fixedToFloat(m.Descent)
	if gap < 0 {
		gap = 0
	}
	return gap
}

// LineHeight is ascent + line gap, per the layout algorithm's definition.
func (f *Font) LineHeight() float64 {
	return f.Ascent() + f.LineGap()
}

// HasGlyph reports whether the font maps r to a glyph other than the
// missing-glyph (.notdef) glyph at index 0.
func (f *Font) HasGlyph(r rune) bool {
	return f.tt.Index(r) != 0
}

// MissingCodepoints returns the set of non-whitespace runes in s for which
// the font has no glyph, in first-seen order without duplicates.
func (f *Font) MissingCodepoints(s string) []rune {
	seen := make(map[rune]bool)
	var missing []rune
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		if seen[r] {
			continue
		}
		seen[r] = true
		if !f.HasGlyph(r) {
			missing = append(missing, r)
		}
	}
	return missing
}

// Width measures s as the caret's final X position after laying out every
// glyph starting at X=0: the bounding-box min.x of the last glyph plus its
// unpositioned horizontal advance. This differs subtly from a naive sum of
// advances once kerning is involved.
func (f *Font) Width(s string) float64 {
	if s == "" {
		return 0
	}
	face := f.Face()
	var (
		dot      fixed.Point26_6
		lastMinX fixed.Int26_6
		lastAdv  fixed.Int26_6
		have     bool
		prev     rune
		hasPrev  bool
	)
	for _, r := range s {
		if hasPrev {
			dot.X += face.Kern(prev, r)
		}
		bounds, adv, ok := face.GlyphBounds(r)
		if ok {
			lastMinX = dot.X + bounds.Min.X
			lastAdv = adv
			have = true
		}
		dot.X += adv
		prev, hasPrev = r, true
	}
	if !have {
		return 0
	}
	return fixedToFloat(lastMinX + lastAdv)
}

// Advance measures s as the sum of each rune's unpositioned horizontal
// advance (font.Face.GlyphAdvance), with no kerning applied between runes
// and no bounding-box left-side-bearing shift on the first or last glyph.
// This is the width hard-break carryover needs: Width's caret-position
// semantics would let kerning context nudge where an overlong token breaks.
func (f *Font) Advance(s string) float64 {
	if s == "" {
		return 0
	}
	face := f.Face()
	var total fixed.Int26_6
	for _, r := range s {
		if adv, ok := face.GlyphAdvance(r); ok {
			total += adv
		}
	}
	return fixedToFloat(total)
}

// Draw renders s as a single line starting at the given baseline-relative
// origin (x, baselineY), alpha-blending each glyph's coverage onto dst in
// the given color.
func (f *Font) Draw(dst *image.RGBA, col color.Color, s string, x, baselineY float64) {
	if s == "" {
		return
	}
	face := f.Face()
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: floatToFixed(x), Y: floatToFixed(baselineY)},
	}
	var prev rune
	var hasPrev bool
	for _, r := range s {
		if hasPrev {
			d.Dot.X += face.Kern(prev, r)
		}
		d.DrawString(string(r))
		prev, hasPrev = r, true
	}
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func floatToFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(v * 64)
}
