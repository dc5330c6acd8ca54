package captionforge_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/krispeckt/captionforge"
)

// fakeResolver is an in-memory captionforge.Resolver for end-to-end Engine
// tests, avoiding any dependency on the filesystem-backed implementation.
type fakeResolver struct {
	templates map[string]captionforge.Template
	fonts     map[string][]byte

	templateLoads atomic.Int64
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		templates: map[string]captionforge.Template{},
		fonts:     map[string][]byte{"go-regular": goregular.TTF},
	}
}

func (r *fakeResolver) ListTemplates() ([]string, error) {
	names := make([]string, 0, len(r.templates))
	for n := range r.templates {
		names = append(names, n)
	}
	return names, nil
}

func (r *fakeResolver) ListFonts() ([]string, error) {
	names := make([]string, 0, len(r.fonts))
	for n := range r.fonts {
		names = append(names, n)
	}
	return names, nil
}

func (r *fakeResolver) LoadTemplate(name string) (captionforge.Template, error) {
	r.templateLoads.Add(1)
	tmpl, ok := r.templates[name]
	if !ok {
		return nil, errNotFound
	}
	return tmpl, nil
}

func (r *fakeResolver) LoadFontBytes(name string) ([]byte, error) {
	data, ok := r.fonts[name]
	if !ok {
		return nil, errNotFound
	}
	return data, nil
}

var errNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "not found" }

func solidStill(w, h int, c color.Color) captionforge.StillTemplate {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return captionforge.StillTemplate{Image: img, Format: captionforge.FormatPNG}
}

// TestCaptionStillSingleCaption checks that a still template with one
// caption renders a decodable image in the requested format.
func TestCaptionStillSingleCaption(t *testing.T) {
	r := newFakeResolver()
	r.templates["drake"] = solidStill(400, 300, color.Black)
	e := captionforge.NewEngine(r)

	out, err := e.Caption(context.Background(), captionforge.CaptionRequest{
		TemplateName: "drake",
		OutputFormat: captionforge.FormatPNG,
		Captions: []captionforge.CaptionSpec{
			{
				Text:      "TOP TEXT",
				FontName:  "go-regular",
				Color:     color.RGBA{R: 255, G: 255, B: 255, A: 255},
				Alignment: captionforge.Alignment{Vertical: captionforge.Top, Horizontal: captionforge.Center},
				Size:      captionforge.FixedSize(32),
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, captionforge.FormatPNG, out.Format)

	img, err := png.Decode(bytes.NewReader(out.Bytes))
	require.NoError(t, err)
	require.Equal(t, 400, img.Bounds().Dx())
	require.Equal(t, 300, img.Bounds().Dy())
}

func TestCaptionRejectsUnknownTemplate(t *testing.T) {
	r := newFakeResolver()
	e := captionforge.NewEngine(r)

	_, err := e.Caption(context.Background(), captionforge.CaptionRequest{TemplateName: "missing"})
	require.Error(t, err)
	require.Equal(t, captionforge.KindTemplateNotFound, captionforge.KindOf(err))
}

func TestCaptionRejectsEmptyTemplateName(t *testing.T) {
	r := newFakeResolver()
	e := captionforge.NewEngine(r)

	_, err := e.Caption(context.Background(), captionforge.CaptionRequest{})
	require.Error(t, err)
	require.Equal(t, captionforge.KindInvalidRequest, captionforge.KindOf(err))
}

func TestCaptionRejectsMissingFontNameForNonEmptyText(t *testing.T) {
	r := newFakeResolver()
	r.templates["drake"] = solidStill(100, 100, color.Black)
	e := captionforge.NewEngine(r)

	_, err := e.Caption(context.Background(), captionforge.CaptionRequest{
		TemplateName: "drake",
		Captions:     []captionforge.CaptionSpec{{Text: "hi"}},
	})
	require.Error(t, err)
	require.Equal(t, captionforge.KindInvalidRequest, captionforge.KindOf(err))
}

func TestCaptionRejectsNonPositiveExplicitSize(t *testing.T) {
	r := newFakeResolver()
	r.templates["drake"] = solidStill(100, 100, color.Black)
	e := captionforge.NewEngine(r)

	_, err := e.Caption(context.Background(), captionforge.CaptionRequest{
		TemplateName: "drake",
		Captions: []captionforge.CaptionSpec{
			{Text: "hi", FontName: "go-regular", Size: captionforge.FixedSize(0)},
		},
	})
	require.Error(t, err)
	require.Equal(t, captionforge.KindInvalidRequest, captionforge.KindOf(err))
}

// TestCaptionGIFOutputRejectedForStillTemplate and its mirror below cover
// resolveFormat's FormatMismatch rejections.
func TestCaptionGIFOutputRejectedForStillTemplate(t *testing.T) {
	r := newFakeResolver()
	r.templates["drake"] = solidStill(100, 100, color.Black)
	e := captionforge.NewEngine(r)

	_, err := e.Caption(context.Background(), captionforge.CaptionRequest{
		TemplateName: "drake",
		OutputFormat: captionforge.FormatGIF,
	})
	require.Error(t, err)
	require.Equal(t, captionforge.KindFormatMismatch, captionforge.KindOf(err))
}

func TestCaptionNonGIFOutputRejectedForAnimationTemplate(t *testing.T) {
	r := newFakeResolver()
	r.templates["dance"] = captionforge.AnimationTemplate{
		Frames: []captionforge.AnimationFrame{
			{Image: image.NewRGBA(image.Rect(0, 0, 20, 20)), DelayCentiseconds: 10},
		},
		CanvasSize: image.Rect(0, 0, 20, 20),
	}
	e := captionforge.NewEngine(r)

	_, err := e.Caption(context.Background(), captionforge.CaptionRequest{
		TemplateName: "dance",
		OutputFormat: captionforge.FormatPNG,
	})
	require.Error(t, err)
	require.Equal(t, captionforge.KindFormatMismatch, captionforge.KindOf(err))
}

func TestCaptionAnimationTemplateProducesGIF(t *testing.T) {
	r := newFakeResolver()
	r.templates["dance"] = captionforge.AnimationTemplate{
		Frames: []captionforge.AnimationFrame{
			{Image: image.NewRGBA(image.Rect(0, 0, 20, 20)), DelayCentiseconds: 10},
			{Image: image.NewRGBA(image.Rect(0, 0, 20, 20)), DelayCentiseconds: 10},
		},
		CanvasSize: image.Rect(0, 0, 20, 20),
		LoopCount:  0,
	}
	e := captionforge.NewEngine(r)

	out, err := e.Caption(context.Background(), captionforge.CaptionRequest{
		TemplateName: "dance",
		OutputFormat: captionforge.FormatPreferred,
	})
	require.NoError(t, err)
	require.Equal(t, captionforge.FormatGIF, out.Format)
	require.Greater(t, out.Len(), 0)
}

// TestCaptionTimeout checks that a render task running against an
// already-expired deadline surfaces KindTimeout rather than blocking the
// caller or silently succeeding.
func TestCaptionTimeout(t *testing.T) {
	r := newFakeResolver()
	r.templates["drake"] = solidStill(2000, 2000, color.Black)
	e := captionforge.NewEngine(r, captionforge.WithTaskTimeout(1*time.Nanosecond))

	_, err := e.Caption(context.Background(), captionforge.CaptionRequest{
		TemplateName: "drake",
		Captions: []captionforge.CaptionSpec{
			{Text: "a very long caption that takes some time to lay out and render onto a large canvas",
				FontName: "go-regular", Size: captionforge.AutoSize()},
		},
	})
	require.Error(t, err)
	require.Equal(t, captionforge.KindTimeout, captionforge.KindOf(err))
}

func TestCachePreventsRepeatedLoads(t *testing.T) {
	r := newFakeResolver()
	r.templates["drake"] = solidStill(50, 50, color.Black)
	e := captionforge.NewEngine(r)

	for i := 0; i < 5; i++ {
		_, err := e.Caption(context.Background(), captionforge.CaptionRequest{TemplateName: "drake"})
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, r.templateLoads.Load())
}

func TestSetJPEGQualityRejectsOutOfRange(t *testing.T) {
	e := captionforge.NewEngine(newFakeResolver())
	require.False(t, e.SetJPEGQuality(0))
	require.False(t, e.SetJPEGQuality(101))
	require.True(t, e.SetJPEGQuality(50))
}

func TestSetGIFQualityRejectsOutOfRange(t *testing.T) {
	e := captionforge.NewEngine(newFakeResolver())
	require.False(t, e.SetGIFQuality(-1))
	require.True(t, e.SetGIFQuality(10))
}
