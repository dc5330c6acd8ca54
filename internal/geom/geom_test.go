package geom_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/krispeckt/captionforge/internal/geom"
)

func TestRectWidthHeight(t *testing.T) {
	r := geom.NewRect(10, 20, 100, 50)
	require.Equal(t, 100.0, r.Width())
	require.Equal(t, 50.0, r.Height())
	require.Equal(t, 10.0, r.MinX)
	require.Equal(t, 120.0, r.MaxX)
}

func TestAlignmentOriginWithinNinePoints(t *testing.T) {
	rect := geom.NewRect(0, 0, 200, 100)

	cases := []struct {
		name    string
		align   geom.Alignment
		wantX   float64
		wantY   float64
	}{
		{"top-left", geom.Alignment{Vertical: geom.Top, Horizontal: geom.Left}, 0, 0},
		{"top-center", geom.Alignment{Vertical: geom.Top, Horizontal: geom.Center}, 100, 0},
		{"top-right", geom.Alignment{Vertical: geom.Top, Horizontal: geom.Right}, 200, 0},
		{"middle-left", geom.Alignment{Vertical: geom.Middle, Horizontal: geom.Left}, 0, 50},
		{"middle-center", geom.Alignment{Vertical: geom.Middle, Horizontal: geom.Center}, 100, 50},
		{"middle-right", geom.Alignment{Vertical: geom.Middle, Horizontal: geom.Right}, 200, 50},
		{"bottom-left", geom.Alignment{Vertical: geom.Bottom, Horizontal: geom.Left}, 0, 100},
		{"bottom-center", geom.Alignment{Vertical: geom.Bottom, Horizontal: geom.Center}, 100, 100},
		{"bottom-right", geom.Alignment{Vertical: geom.Bottom, Horizontal: geom.Right}, 200, 100},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			x, y := c.align.OriginWithin(rect)
			require.Equal(t, c.wantX, x)
			require.Equal(t, c.wantY, y)
		})
	}
}

func TestClampF64(t *testing.T) {
	require.Equal(t, 5.0, geom.ClampF64(5, 0, 10))
	require.Equal(t, 0.0, geom.ClampF64(-5, 0, 10))
	require.Equal(t, 10.0, geom.ClampF64(15, 0, 10))
}
