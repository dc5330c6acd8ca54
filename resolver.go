package captionforge

import (
	"image"

	"github.com/krispeckt/captionforge/internal/render"
)

// Font is the decoded font type captions are rendered with. The engine's
// font cache holds raw font bytes, which each caption parses into a Font.
type Font = render.Font

// Template is the decoded asset produced by Resolver.LoadTemplate: either a
// StillTemplate or an AnimationTemplate. It is a closed tagged union.
type Template interface {
	isTemplate()
	// Bounds returns the template's canvas dimensions.
	Bounds() image.Rectangle
}

// StillTemplate is a single decoded raster plus the image format it was
// decoded from (used to pick a default output format for "preferred").
type StillTemplate struct {
	Image  image.Image
	Format Format
}

func (StillTemplate) isTemplate() {}

// Bounds returns the still image's bounds.
func (t StillTemplate) Bounds() image.Rectangle { return t.Image.Bounds() }

// AnimationFrame is a single frame of an animated template, already
// flattened to a full CanvasSize-sized raster: any disposal-method backdrop
// chaining the source format required (background restore, previous-frame
// restore, frame accumulation) has already been resolved by the Resolver
// that produced it, so compositors can draw captions onto each frame
// independently and in any order.
type AnimationFrame struct {
	Image image.Image
	// DelayCentiseconds is the frame delay in 10ms units, matching the GIF
	// format's native delay unit.
	DelayCentiseconds int
	// Disposal and TransparentIndex are retained from the source frame for
	// diagnostic/round-trip purposes only; they play no role in rendering
	// since Image is already fully composed.
	Disposal         byte
	TransparentIndex int
}

// AnimationTemplate is an ordered sequence of frames sharing one canvas
// size, plus a global palette hint and the loop count to preserve on
// re-encode. Invariant: len(Frames) >= 1 and every frame's Image bounds
// equal CanvasSize.
type AnimationTemplate struct {
	Frames      []AnimationFrame
	CanvasSize  image.Rectangle
	LoopCount   int
	PaletteHint []uint8 // optional quantization hint; may be nil
}

func (AnimationTemplate) isTemplate() {}

// Bounds returns the animation's shared canvas size.
func (t AnimationTemplate) Bounds() image.Rectangle { return t.CanvasSize }

// Resolver turns template/font names into decoded assets. It is the core's
// sole external collaborator: HTTP routing, CLI parsing, logging
// configuration, and on-disk discovery of asset files all live outside
// this module and are expected to implement (or wrap) this interface. See
// fsresolver for a concrete filesystem-backed implementation.
type Resolver interface {
	// ListTemplates returns every known template name, used by preloading.
	ListTemplates() ([]string, error)
	// ListFonts returns every known font name, used by preloading.
	ListFonts() ([]string, error)
	// LoadTemplate decodes the template with the given name.
	LoadTemplate(name string) (Template, error)
	// LoadFontBytes returns the raw TrueType bytes for the font with the
	// given name; the engine itself parses them via render.Load so that
	// the engine can distinguish decode failures from not-found.
	LoadFontBytes(name string) ([]byte, error)
}
