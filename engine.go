package captionforge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math/rand"
	"runtime"
	"sort"
	"time"

	"github.com/krispeckt/captionforge/internal/cache"
	"github.com/krispeckt/captionforge/internal/compositor"
	"github.com/krispeckt/captionforge/internal/geom"
	"github.com/krispeckt/captionforge/internal/render"
	"github.com/krispeckt/captionforge/internal/textlayout"
	"github.com/krispeckt/captionforge/internal/workerpool"
)

// marginFraction is the default-rect inset: 5% of the template canvas's
// shorter side, applied uniformly to all four edges. original_source leaves
// the default-rect derivation to its HTTP layer rather than the core, so
// there is no reference implementation to match. A uniform inset is the
// simplest reading that keeps text off the canvas edge it is anchored to —
// see DESIGN.md.
const marginFraction = 0.05

// Engine is the caption-rendering core: template/font caches, a bounded
// render pool, and the mutable configuration that governs encoding and
// timeouts. The zero value is not usable; construct with NewEngine.
type Engine struct {
	resolver Resolver
	cfg      *config
	log      Logger

	templates *cache.LRU[string, Template]
	fonts     *cache.LRU[string, []byte]

	pool  *workerpool.Pool
	timer *workerpool.Timer

	templateCacheCapacity int
	fontCacheCapacity     int
	workerCount           int
}

// NewEngine builds an Engine around resolver, applying opts in order. There
// is deliberately no package-level singleton: callers that want one may
// keep their own global *Engine instead.
func NewEngine(resolver Resolver, opts ...EngineOption) *Engine {
	e := &Engine{
		resolver:              resolver,
		cfg:                   newConfig(),
		log:                   defaultLogger(),
		templateCacheCapacity: defaultCacheSize,
		fontCacheCapacity:     defaultCacheSize,
		workerCount:           0, // 0 => runtime.NumCPU(), resolved by workerpool.New
	}
	for _, opt := range opts {
		opt(e)
	}

	e.templates = cache.NewLRU[string, Template](e.templateCacheCapacity, nil)
	e.fonts = cache.NewLRU[string, []byte](e.fontCacheCapacity, nil)
	e.pool = workerpool.New(e.workerCount)
	e.timer = workerpool.NewTimer(timerSlotsFor(e.workerCount))
	return e
}

// timerSlotsFor sizes the timer-slot semaphore to the worker count so a
// fully-loaded pool can always have every in-flight task under a deadline
// at once; see workerpool.Timer.
func timerSlotsFor(workerCount int) int {
	if workerCount <= 0 {
		return runtime.NumCPU()
	}
	return workerCount
}

// Resize changes the render pool's worker count at runtime.
func (e *Engine) Resize(n int) { e.pool.Resize(n) }

// SetJPEGQuality updates the JPEG encode quality (1..100); out-of-range
// values are rejected and leave the prior value in place.
func (e *Engine) SetJPEGQuality(q int) bool { return e.cfg.SetJPEGQuality(q) }

// SetGIFQuality updates the GIF quantization quality (1..100).
func (e *Engine) SetGIFQuality(q int) bool { return e.cfg.SetGIFQuality(q) }

// SetTaskTimeout configures (or disables, with 0) the per-render deadline.
func (e *Engine) SetTaskTimeout(d time.Duration) { e.cfg.SetTaskTimeout(d) }

// SetTemplateCacheCapacity resizes the template cache; shrinking evicts the
// LRU tail immediately.
func (e *Engine) SetTemplateCacheCapacity(n int) { e.templates.SetCapacity(n) }

// SetFontCacheCapacity resizes the font cache.
func (e *Engine) SetFontCacheCapacity(n int) { e.fonts.SetCapacity(n) }

// Preload samples up to the template cache's capacity of template names (and
// separately, font names) from the resolver and loads them, logging but not
// propagating per-asset failures.
func (e *Engine) Preload() {
	if names, err := e.resolver.ListTemplates(); err != nil {
		e.log.Warn("preload: list templates failed", "error", err)
	} else {
		for _, name := range sampleNames(names, e.templates.Capacity()) {
			if _, err := e.loadTemplate(name); err != nil {
				e.log.Warn("preload: template failed", "name", name, "error", err)
			}
		}
	}

	if names, err := e.resolver.ListFonts(); err != nil {
		e.log.Warn("preload: list fonts failed", "error", err)
	} else {
		for _, name := range sampleNames(names, e.fonts.Capacity()) {
			if _, err := e.loadFontBytes(name); err != nil {
				e.log.Warn("preload: font failed", "name", name, "error", err)
			}
		}
	}
}

// sampleNames returns up to n names chosen at random without replacement.
func sampleNames(names []string, n int) []string {
	if n <= 0 || n >= len(names) {
		return names
	}
	idx := rand.Perm(len(names))[:n]
	sort.Ints(idx)
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = names[j]
	}
	return out
}

func (e *Engine) loadTemplate(name string) (Template, error) {
	return e.templates.GetOrLoad(name, func() (Template, error) {
		return e.resolver.LoadTemplate(name)
	})
}

func (e *Engine) loadFontBytes(name string) ([]byte, error) {
	return e.fonts.GetOrLoad(name, func() ([]byte, error) {
		return e.resolver.LoadFontBytes(name)
	})
}

// Caption renders req against the configured resolver, pool, and encode
// settings.
func (e *Engine) Caption(ctx context.Context, req CaptionRequest) (CaptionOutput, error) {
	if err := validateRequest(req); err != nil {
		return CaptionOutput{}, err
	}

	tmpl, err := e.loadTemplate(req.TemplateName)
	if err != nil {
		return CaptionOutput{}, NewError(templateErrorKind(err), fmt.Sprintf("load template %q", req.TemplateName), err)
	}

	resolved, err := e.resolveCaptions(req.Captions, tmpl.Bounds())
	if err != nil {
		return CaptionOutput{}, err
	}

	format, err := resolveFormat(req.OutputFormat, tmpl)
	if err != nil {
		return CaptionOutput{}, err
	}

	task := func() (any, error) {
		return e.render(tmpl, resolved, format)
	}

	var result any
	if d := e.cfg.TaskTimeout(); d > 0 {
		tctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		result, err = workerpool.WithTimeout(tctx, e.timer, e.pool, task)
	} else {
		var out <-chan workerpool.Result
		out, err = e.pool.Submit(task)
		if err == nil {
			r := <-out
			result, err = r.Value, r.Err
		}
	}
	if err != nil {
		return CaptionOutput{}, translatePoolError(err)
	}
	return result.(CaptionOutput), nil
}

// templateErrorKind recovers the Kind a Resolver already classified a
// template-load failure as (KindTemplateNotFound vs KindTemplateDecode, see
// fsresolver.LoadTemplate), defaulting to KindTemplateNotFound for a
// Resolver that returns plain errors instead.
func templateErrorKind(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindTemplateNotFound
}

func translatePoolError(err error) error {
	switch err {
	case workerpool.ErrUnavailable:
		return NewError(KindUnavailable, "render pool unavailable", err)
	case workerpool.ErrTimeout:
		return NewError(KindTimeout, "render timed out", err)
	default:
		return err
	}
}

func validateRequest(req CaptionRequest) error {
	if req.TemplateName == "" {
		return NewError(KindInvalidRequest, "template name is required", nil)
	}
	for i, c := range req.Captions {
		if c.Text == "" {
			continue
		}
		if c.FontName == "" {
			return NewError(KindInvalidRequest, fmt.Sprintf("caption %d: font name is required", i), nil)
		}
		if !c.Size.Auto && c.Size.Explicit <= 0 {
			return NewError(KindInvalidRequest, fmt.Sprintf("caption %d: explicit size must be > 0", i), nil)
		}
	}
	switch req.OutputFormat {
	case FormatPreferred, FormatPNG, FormatJPEG, FormatGIF:
	default:
		return NewError(KindInvalidRequest, "unknown output format", nil)
	}
	return nil
}

// resolveCaptions resolves fonts, default rects, and Auto sizes for every
// non-empty caption, converting public request types into the compositor's
// pixel-space ResolvedCaption.
func (e *Engine) resolveCaptions(specs []CaptionSpec, canvas image.Rectangle) ([]compositor.ResolvedCaption, error) {
	out := make([]compositor.ResolvedCaption, 0, len(specs))
	for _, spec := range specs {
		if spec.Text == "" {
			continue
		}

		fontBytes, err := e.loadFontBytes(spec.FontName)
		if err != nil {
			return nil, NewError(KindFontNotFound, fmt.Sprintf("load font %q", spec.FontName), err)
		}

		rect := pixelRect(canvas, spec.Rect, toGeomAlignment(spec.Alignment))

		var f *render.Font
		if spec.Size.Auto {
			base, err := render.Load(fontBytes, textlayout.DefaultTextSize, spec.FontName)
			if err != nil {
				return nil, NewError(KindFontDecode, fmt.Sprintf("decode font %q", spec.FontName), err)
			}
			fit, lastTried := textlayout.FitText(base, rect, spec.Text)
			size := lastTried
			if fit.Found {
				size = fit.Size
			} else {
				e.log.Warn("auto-fit failed, using last attempted size", "font", spec.FontName, "size", lastTried)
			}
			f = base.WithSize(size)
		} else {
			f, err = render.Load(fontBytes, spec.Size.Explicit, spec.FontName)
			if err != nil {
				return nil, NewError(KindFontDecode, fmt.Sprintf("decode font %q", spec.FontName), err)
			}
		}

		if missing := f.MissingCodepoints(spec.Text); len(missing) > 0 {
			e.log.Warn("font missing glyphs", "font", spec.FontName, "codepoints", missing)
		}

		out = append(out, compositor.ResolvedCaption{
			Text:  spec.Text,
			Font:  f,
			Color: spec.Color,
			Align: toGeomAlignment(spec.Alignment),
			Rect:  rect,
		})
	}
	return out, nil
}

// pixelRect converts a caption's normalized rect (or, if nil, the default
// from computeDefaultRect) into absolute pixel coordinates for canvas. The
// default does not depend on align.
func pixelRect(canvas image.Rectangle, r *Rect, align geom.Alignment) geom.Rect {
	w := float64(canvas.Dx())
	h := float64(canvas.Dy())
	if r != nil {
		return geom.NewRect(r.X*w, r.Y*h, r.W*w, r.H*h)
	}
	return computeDefaultRect(w, h)
}

// computeDefaultRect insets the full canvas by 5% of its shorter side on
// every edge.
func computeDefaultRect(w, h float64) geom.Rect {
	shorter := w
	if h < shorter {
		shorter = h
	}
	margin := shorter * marginFraction
	return geom.Rect{MinX: margin, MinY: margin, MaxX: w - margin, MaxY: h - margin}
}

func toGeomAlignment(a Alignment) geom.Alignment {
	return geom.Alignment{
		Vertical:   geom.VAlign(a.Vertical),
		Horizontal: geom.HAlign(a.Horizontal),
	}
}

// resolveFormat picks the output format: an explicit request is validated
// against the template's kind, while FormatPreferred falls back to GIF for
// an animation or the template's own source format (else PNG) for a still.
func resolveFormat(requested Format, tmpl Template) (Format, error) {
	switch t := tmpl.(type) {
	case StillTemplate:
		if requested == FormatGIF {
			return 0, NewError(KindFormatMismatch, "GIF output requested for a still template", nil)
		}
		if requested != FormatPreferred {
			return requested, nil
		}
		if t.Format == FormatJPEG {
			return FormatJPEG, nil
		}
		return FormatPNG, nil
	case AnimationTemplate:
		if requested != FormatPreferred && requested != FormatGIF {
			return 0, NewError(KindFormatMismatch, "non-GIF output requested for an animation template", nil)
		}
		return FormatGIF, nil
	default:
		return 0, NewError(KindInvalidRequest, "unknown template variant", nil)
	}
}

// render dispatches to the still or animation compositor and encodes the
// result, running entirely on a render-pool worker goroutine.
func (e *Engine) render(tmpl Template, captions []compositor.ResolvedCaption, format Format) (CaptionOutput, error) {
	switch t := tmpl.(type) {
	case StillTemplate:
		rgba := compositor.RenderStill(t.Image, captions)
		return e.encodeStill(rgba, format)
	case AnimationTemplate:
		frames := make([]compositor.AnimationFrame, len(t.Frames))
		for i, f := range t.Frames {
			frames[i] = compositor.AnimationFrame{Image: f.Image, DelayCentiseconds: f.DelayCentiseconds}
		}
		g := compositor.RenderAnimation(frames, t.CanvasSize, t.LoopCount, captions, e.cfg.GIFQuality(), t.PaletteHint)
		var buf bytes.Buffer
		if err := gif.EncodeAll(&buf, g); err != nil {
			return CaptionOutput{}, NewError(KindEncodeFailure, "encode gif", err)
		}
		return CaptionOutput{Bytes: buf.Bytes(), Format: FormatGIF}, nil
	default:
		return CaptionOutput{}, NewError(KindInvalidRequest, "unknown template variant", nil)
	}
}

func (e *Engine) encodeStill(img image.Image, format Format) (CaptionOutput, error) {
	var buf bytes.Buffer
	switch format {
	case FormatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.cfg.JPEGQuality()}); err != nil {
			return CaptionOutput{}, NewError(KindEncodeFailure, "encode jpeg", err)
		}
	case FormatPNG, FormatPreferred:
		if err := png.Encode(&buf, img); err != nil {
			return CaptionOutput{}, NewError(KindEncodeFailure, "encode png", err)
		}
		format = FormatPNG
	default:
		return CaptionOutput{}, NewError(KindFormatMismatch, "unsupported still output format", nil)
	}
	return CaptionOutput{Bytes: buf.Bytes(), Format: format}, nil
}
