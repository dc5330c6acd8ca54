// Package textlayout implements the caption text layout algorithm: line
// measurement, greedy word-boundary line breaking with character-level
// carryover for overlong segments, iterative auto-fit sizing, and
// alignment-aware line rendering.
//
// It is a direct Go restatement of original_source/src/lib/util/text.rs
// (break_single_line, fit_text, fit_line, render_text/render_line),
// operating on render.Font and geom.Rect instead of rusttype's Font/Scale.
package textlayout

import (
	"image"
	"image/color"
	"regexp"
	"strings"

	"github.com/rivo/uniseg"

	"github.com/krispeckt/captionforge/internal/geom"
	"github.com/krispeckt/captionforge/internal/render"
)

// DefaultTextSize is the starting point size for auto-fit probing, before
// any shrink iterations are applied.
const DefaultTextSize = 96.0

const (
	shrinkFactor = 0.9
	maxIters     = 16
)

// wordBoundary splits text the same way the original renderer's lazy_static
// \b regex does: into alternating runs of word and non-word (here:
// whitespace) characters, including empty-string edges trimmed away.
var wordBoundary = regexp.MustCompile(`\s+`)

// segments splits s into alternating word/whitespace segments, preserving
// every character of the input when concatenated back together.
func segments(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	idxs := wordBoundary.FindAllStringIndex(s, -1)
	pos := 0
	for _, m := range idxs {
		if m[0] > pos {
			out = append(out, s[pos:m[0]])
		}
		out = append(out, s[m[0]:m[1]])
		pos = m[1]
	}
	if pos < len(s) {
		out = append(out, s[pos:])
	}
	return out
}

func isWhitespaceSegment(s string) bool {
	return strings.TrimSpace(s) == ""
}

// graphemeClusters splits s into user-perceived characters rather than raw
// runes, so the hard-break carryover step below never severs a combining
// mark or multi-rune emoji in two. Grounded on instructions/text_wrap.go's
// splitGraphemes, which uses the same library for the same reason.
func graphemeClusters(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		out = append(out, g.Str())
	}
	return out
}

// BreakLines splits s on explicit newlines, then word-wraps each logical
// line to fit within lineWidth pixels under f.
func BreakLines(f *render.Font, s string, lineWidth float64) []string {
	var result []string
	for _, line := range strings.Split(s, "\n") {
		result = append(result, breakSingleLine(f, line, lineWidth)...)
	}
	return result
}

// breakSingleLine implements the segment-based greedy line breaker
// described in original_source's break_single_line.
func breakSingleLine(f *render.Font, s string, lineWidth float64) []string {
	segs := segments(s)
	var result []string

	var currentLine strings.Builder
	currentWidth := 0.0

	flush := func() {
		if currentLine.Len() > 0 {
			result = append(result, currentLine.String())
			currentLine.Reset()
			currentWidth = 0
		}
	}

	for _, seg := range segs {
		segWidth := f.Width(seg)

		if currentWidth+segWidth < lineWidth {
			currentLine.WriteString(seg)
			currentWidth += segWidth
			continue
		}

		if segWidth < lineWidth {
			flush()
			if isWhitespaceSegment(seg) {
				continue // the overflowing whitespace run is dropped
			}
			currentLine.WriteString(seg)
			currentWidth = segWidth
			continue
		}

		// The segment alone is wider than the line: break it by shaving
		// grapheme clusters off the end into a carryover buffer until the
		// head fits.
		remaining := graphemeClusters(seg)
		for {
			var carryover []string
			carryoverWidth := 0.0
			for currentWidth+segWidth > lineWidth {
				if len(remaining) == 0 {
					segWidth = 0
					break
				}
				if len(remaining) == 1 && currentLine.Len() == 0 {
					// A single cluster wider than the line cannot be
					// shortened further and is emitted on a line of its own.
					break
				}
				c := remaining[len(remaining)-1]
				remaining = remaining[:len(remaining)-1]
				carryover = append(carryover, c)
				w := f.Advance(c)
				segWidth -= w
				carryoverWidth += w
			}

			currentLine.WriteString(strings.Join(remaining, ""))
			currentWidth += segWidth
			if len(carryover) == 0 {
				break
			}

			result = append(result, currentLine.String())
			currentLine.Reset()
			currentWidth = 0

			// Reverse carryover back into reading order and retry as the
			// new segment.
			for i, j := 0, len(carryover)-1; i < j; i, j = i+1, j-1 {
				carryover[i], carryover[j] = carryover[j], carryover[i]
			}
			remaining = carryover
			segWidth = carryoverWidth
		}
	}
	flush()
	return result
}

// FitResult is the outcome of an auto-fit search.
type FitResult struct {
	Size  float64
	Found bool
}

// FitText finds the largest size (shrinking DefaultTextSize by 0.9 each
// iteration, up to 16 iterations) such that breaking s at that size fits
// within rect. It returns Found=false if rect has zero/negative extent or
// no fitting size is found; the caller should then fall back to rendering
// at the last attempted size and log a warning.
func FitText(f *render.Font, rect geom.Rect, s string) (result FitResult, lastTried float64) {
	if rect.Width() <= 0 || rect.Height() <= 0 {
		return FitResult{}, 0
	}

	size := DefaultTextSize
	for iter := 1; iter <= maxIters; iter++ {
		probe := f.WithSize(size)
		lines := BreakLines(probe, s, rect.Width())

		width := 0.0
		for _, line := range lines {
			if w := probe.Width(line); w > width {
				width = w
			}
		}
		height := float64(len(lines)) * probe.LineHeight()

		if width <= rect.Width() && height <= rect.Height() {
			return FitResult{Size: size, Found: true}, size
		}

		newSize := size * shrinkFactor
		if newSize >= size || iter == maxIters {
			return FitResult{}, size
		}
		size = newSize
	}
	return FitResult{}, size
}

// FitLine is the single-line variant of FitText: it ignores embedded
// newlines and fits against a width-only constraint.
func FitLine(f *render.Font, maxWidth float64, s string) (result FitResult, lastTried float64) {
	if maxWidth <= 0 {
		return FitResult{}, 0
	}

	size := DefaultTextSize
	for iter := 1; iter <= maxIters; iter++ {
		probe := f.WithSize(size)
		if probe.Width(s) <= maxWidth {
			return FitResult{Size: size, Found: true}, size
		}
		newSize := size * shrinkFactor
		if newSize >= size || iter == maxIters {
			return FitResult{}, size
		}
		size = newSize
	}
	return FitResult{}, size
}

// RenderText lays s out within rect under alignment align and draws it onto
// dst in col, exactly as original_source's render_text: break into lines,
// reverse them for Bottom alignment, then shrink rect after each line
// drawn.
func RenderText(dst *image.RGBA, f *render.Font, s string, align geom.Alignment, rect geom.Rect, col color.Color) {
	lines := BreakLines(f, s, rect.Width())
	if align.Vertical == geom.Bottom {
		for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
			lines[i], lines[j] = lines[j], lines[i]
		}
	}

	lineHeight := f.LineHeight()
	for _, line := range lines {
		RenderLine(dst, f, line, align, rect, col)

		switch align.Vertical {
		case geom.Top:
			rect.MinY += lineHeight
		case geom.Middle:
			rect.MinY += lineHeight / 2
			rect.MaxY -= lineHeight / 2
		case geom.Bottom:
			rect.MaxY -= lineHeight
		}
	}
}

// RenderLine draws a single, already-unwrapped line of text onto dst.
func RenderLine(dst *image.RGBA, f *render.Font, s string, align geom.Alignment, rect geom.Rect, col color.Color) {
	x, y := align.OriginWithin(rect)

	if align.Horizontal != geom.Left {
		width := f.Width(s)
		switch align.Horizontal {
		case geom.Center:
			x -= width / 2
		case geom.Right:
			x -= width
		}
	}

	switch align.Vertical {
	case geom.Top:
		y += f.Ascent()
	case geom.Middle:
		y += f.Ascent() - f.SizePx()/2
	case geom.Bottom:
		y -= absF(f.Descent())
	}

	// font.Drawer alpha-blends each glyph's coverage mask onto dst using
	// standard Porter-Duff "over" compositing; pixels outside dst's bounds
	// are clipped by image/draw without error.
	f.Draw(dst, col, s, x, y)
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
