package compositor_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/krispeckt/captionforge/internal/compositor"
	"github.com/krispeckt/captionforge/internal/geom"
	"github.com/krispeckt/captionforge/internal/render"
)

func solidSource(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func countWhitePixels(img *image.RGBA) int {
	count := 0
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] == 255 && img.Pix[i+1] == 255 && img.Pix[i+2] == 255 && img.Pix[i+3] == 255 {
			count++
		}
	}
	return count
}

// TestRenderStillEmptyCaptionSkipped checks a boundary case: empty caption
// text modifies no pixels.
func TestRenderStillEmptyCaptionSkipped(t *testing.T) {
	src := solidSource(100, 100, color.Black)
	f, err := render.Load(goregular.TTF, 32, "go-regular")
	require.NoError(t, err)

	out := compositor.RenderStill(src, []compositor.ResolvedCaption{
		{Text: "", Font: f, Color: color.RGBA{R: 255, G: 255, B: 255, A: 255}, Rect: geom.NewRect(0, 0, 100, 100)},
	})
	require.Equal(t, 0, countWhitePixels(out))
}

// TestRenderStillDrawsCaptionText checks that a white caption over a black
// 600x400 canvas produces non-zero white pixels within the top third, and
// none in the bottom half.
func TestRenderStillDrawsCaptionText(t *testing.T) {
	src := solidSource(600, 400, color.Black)
	f, err := render.Load(goregular.TTF, 64, "go-regular")
	require.NoError(t, err)

	out := compositor.RenderStill(src, []compositor.ResolvedCaption{
		{
			Text:  "HELLO",
			Font:  f,
			Color: color.RGBA{R: 255, G: 255, B: 255, A: 255},
			Align: geom.Alignment{Vertical: geom.Top, Horizontal: geom.Center},
			Rect:  geom.NewRect(0, 0, 600, 400),
		},
	})

	bounds := out.Bounds()
	require.Equal(t, 600, bounds.Dx())
	require.Equal(t, 400, bounds.Dy())

	topThird := subImageWhiteCount(out, 0, bounds.Dy()/3)
	bottomHalf := subImageWhiteCount(out, bounds.Dy()/2, bounds.Dy())
	require.Greater(t, topThird, 0)
	require.Equal(t, 0, bottomHalf)
}

func subImageWhiteCount(img *image.RGBA, y0, y1 int) int {
	count := 0
	for y := y0; y < y1; y++ {
		for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			if r>>8 == 255 && g>>8 == 255 && b>>8 == 255 && a>>8 == 255 {
				count++
			}
		}
	}
	return count
}
