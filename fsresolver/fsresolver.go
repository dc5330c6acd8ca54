// Package fsresolver implements captionforge.Resolver against two flat
// on-disk asset directories: templates and fonts, each file named
// `<identifier>.<ext>`.
//
// Grounded on original_source/src/resources/templates.rs's load/list pair
// (glob `<name>.*`, pick the first match, extension-inferred format
// defaulting to PNG, file stem as the public name), generalized to also
// cover font assets the same way.
package fsresolver

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"image/color"
	"image/draw"
	"image/gif"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/krispeckt/captionforge"
)

// Resolver resolves templates and fonts from two directories on disk.
type Resolver struct {
	templateDir string
	fontDir     string
}

// New creates a Resolver rooted at templateDir and fontDir.
func New(templateDir, fontDir string) *Resolver {
	return &Resolver{templateDir: templateDir, fontDir: fontDir}
}

// ListTemplates returns the stem (extension-stripped) name of every file in
// the template directory, deduplicated and sorted for determinism.
func (r *Resolver) ListTemplates() ([]string, error) {
	return listStems(r.templateDir)
}

// ListFonts returns the stem name of every file in the font directory.
func (r *Resolver) ListFonts() ([]string, error) {
	return listStems(r.fontDir)
}

func listStems(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.*"))
	if err != nil {
		return nil, fmt.Errorf("fsresolver: list %s: %w", dir, err)
	}
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		stem := stemOf(m)
		if !seen[stem] {
			seen[stem] = true
			out = append(out, stem)
		}
	}
	sort.Strings(out)
	return out, nil
}

func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// findAsset globs dir for "<name>.*" and returns the lexicographically
// first match. original_source takes whatever its OS glob iterator yields
// first; picking the sorted-first match keeps this deterministic while
// preserving "first candidate path wins" when a name collides across
// extensions.
func findAsset(dir, name string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, name+".*"))
	if err != nil {
		return "", fmt.Errorf("fsresolver: glob %s.*: %w", name, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("fsresolver: no asset named %q in %s", name, dir)
	}
	sort.Strings(matches)
	return matches[0], nil
}

func formatFromExt(path string) captionforge.Format {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "jpg", "jpeg":
		return captionforge.FormatJPEG
	case "gif":
		return captionforge.FormatGIF
	default:
		return captionforge.FormatPNG
	}
}

// LoadTemplate loads and decodes the template named name. A GIF with more
// than one frame decodes as an AnimationTemplate; anything else (including
// a single-frame GIF) decodes as a StillTemplate.
// LoadTemplate classifies its failures as the Engine expects: a missing
// file (or one matching no known asset) is wrapped as KindTemplateNotFound,
// while a present-but-unparseable file is wrapped as KindTemplateDecode —
// the caller (Caption) inspects the returned *captionforge.Error's Kind
// rather than re-deriving it.
func (r *Resolver) LoadTemplate(name string) (captionforge.Template, error) {
	path, err := findAsset(r.templateDir, name)
	if err != nil {
		return nil, captionforge.NewError(captionforge.KindTemplateNotFound, fmt.Sprintf("load template %q", name), err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, captionforge.NewError(captionforge.KindTemplateNotFound, fmt.Sprintf("load template %q", name), err)
	}

	if g, gifErr := gif.DecodeAll(bytes.NewReader(data)); gifErr == nil {
		if len(g.Image) > 1 {
			return buildAnimation(g), nil
		}
		return captionforge.StillTemplate{Image: g.Image[0], Format: captionforge.FormatGIF}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, captionforge.NewError(captionforge.KindTemplateDecode, fmt.Sprintf("decode template %q", name), err)
	}
	return captionforge.StillTemplate{Image: img, Format: formatFromExt(path)}, nil
}

// LoadFontBytes returns the raw bytes of the font file named name.
func (r *Resolver) LoadFontBytes(name string) ([]byte, error) {
	path, err := findAsset(r.fontDir, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fsresolver: read %s: %w", path, err)
	}
	return data, nil
}

// buildAnimation flattens a decoded *gif.GIF into canvas-sized, fully
// composed frames, resolving each frame's disposal method against a
// running backdrop before the next frame is drawn on top of it.
//
// Grounded on other_examples's tailscale-tmemes DrawGIF, which performs
// this exact backdrop chain; here it runs once at decode time (sequentially
// — frame i+1's backdrop depends on frame i's disposal outcome, so there is
// no independent unit of work to parallelize) rather than once per render.
func buildAnimation(g *gif.GIF) captionforge.AnimationTemplate {
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	frames := make([]captionforge.AnimationFrame, len(g.Image))

	backdrop := image.NewRGBA(bounds)
	if g.BackgroundIndex < uint8(len(g.Image[0].Palette)) {
		bg := g.Image[0].Palette[g.BackgroundIndex]
		draw.Draw(backdrop, bounds, image.NewUniform(bg), image.Point{}, draw.Src)
	}

	for i, src := range g.Image {
		dst := image.NewRGBA(bounds)
		draw.Draw(dst, bounds, backdrop, image.Point{}, draw.Src)
		draw.Draw(dst, src.Bounds(), src, src.Bounds().Min, draw.Over)

		transparent := -1
		if src.Palette != nil {
			for idx, c := range src.Palette {
				if _, _, _, a := c.RGBA(); a == 0 {
					transparent = idx
					break
				}
			}
		}

		disposal := byte(gif.DisposalNone)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		delay := 0
		if i < len(g.Delay) {
			delay = g.Delay[i]
		}
		frames[i] = captionforge.AnimationFrame{
			Image:             dst,
			DelayCentiseconds: delay,
			Disposal:          disposal,
			TransparentIndex:  transparent,
		}

		if i == len(g.Image)-1 {
			continue
		}
		switch disposal {
		case gif.DisposalBackground:
			next := image.NewRGBA(bounds)
			if g.BackgroundIndex < uint8(len(src.Palette)) {
				draw.Draw(next, bounds, image.NewUniform(src.Palette[g.BackgroundIndex]), image.Point{}, draw.Src)
			}
			backdrop = next
		case gif.DisposalPrevious:
			// backdrop is left unchanged: this frame's draw is discarded.
		default: // DisposalNone and unknown values accumulate the frame.
			next := image.NewRGBA(bounds)
			draw.Draw(next, bounds, dst, image.Point{}, draw.Src)
			backdrop = next
		}
	}

	return captionforge.AnimationTemplate{
		Frames:      frames,
		CanvasSize:  bounds,
		LoopCount:   g.LoopCount,
		PaletteHint: paletteHint(g),
	}
}

// paletteHint flattens the first frame's palette into bytes for the GIF
// compositor, which uses it as its quantization base; nil if unavailable.
func paletteHint(g *gif.GIF) []uint8 {
	if len(g.Image) == 0 || g.Image[0].Palette == nil {
		return nil
	}
	pal := g.Image[0].Palette
	out := make([]uint8, 0, len(pal)*3)
	for _, c := range pal {
		r, gg, b := toRGB(c)
		out = append(out, r, gg, b)
	}
	return out
}

func toRGB(c color.Color) (r, g, b uint8) {
	rr, gg, bb, _ := c.RGBA()
	return uint8(rr >> 8), uint8(gg >> 8), uint8(bb >> 8)
}
