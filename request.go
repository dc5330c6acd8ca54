package captionforge

import "image/color"

// Format is an output (or preferred-source) image encoding.
type Format int

const (
	// FormatPreferred lets the engine pick PNG/JPEG/GIF based on the
	// template's kind and original format.
	FormatPreferred Format = iota
	FormatPNG
	FormatJPEG
	FormatGIF
)

func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatJPEG:
		return "jpeg"
	case FormatGIF:
		return "gif"
	default:
		return "preferred"
	}
}

// VAlign and HAlign mirror the geometry package's alignment enums (same
// values; the engine converts them) so callers building a CaptionRequest
// never need to import internal/geom.
type VAlign int

const (
	Top VAlign = iota
	Middle
	Bottom
)

type HAlign int

const (
	Left HAlign = iota
	Center
	Right
)

// Alignment is a nine-point (vertical x horizontal) text anchor.
type Alignment struct {
	Vertical   VAlign
	Horizontal HAlign
}

// Rect is a caption's bounding box in normalized image coordinates
// ([0,1] x [0,1], with (0,0) at the top-left), matching the request
// payload's `[x,y,w,h]` shape.
type Rect struct {
	X, Y, W, H float64
}

// SizePolicy picks an explicit pixel size or requests auto-fit.
type SizePolicy struct {
	// Explicit is the requested pixel size. It is only meaningful when
	// Auto is false, and must be > 0.
	Explicit float64
	Auto     bool
}

// AutoSize requests that the engine compute the largest size that fits
// the caption's bounding rectangle.
func AutoSize() SizePolicy { return SizePolicy{Auto: true} }

// FixedSize requests an explicit pixel size.
func FixedSize(px float64) SizePolicy { return SizePolicy{Explicit: px} }

// CaptionSpec is one text overlay: its content, style, placement, and
// sizing policy.
type CaptionSpec struct {
	Text      string
	FontName  string
	Color     color.RGBA
	Alignment Alignment
	Size      SizePolicy

	// Rect is the caption's bounding box, in normalized [0,1] coordinates.
	// A nil Rect uses a default derived from the template canvas alone: a
	// uniform inset of 5% of the shorter side on all four edges. The
	// alignment does not change the default (see computeDefaultRect).
	Rect *Rect
}

// CaptionRequest is the unit of work submitted to Engine.Caption. Two
// requests with structurally equal fields must produce byte-identical
// outputs under a fixed engine configuration.
type CaptionRequest struct {
	TemplateName string
	OutputFormat Format
	Captions     []CaptionSpec
}
