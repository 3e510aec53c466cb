package schedule

import (
	"fmt"
	"image/color"

	"weekcal/internal/model"
)

// Palette maps a color index to a base color. Indexes wrap around.
type Palette []color.NRGBA

// Tab10 is the ten-hue categorical palette used by default.
var Tab10 = Palette{
	{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
	{R: 0x8c, G: 0x56, B: 0x4b, A: 0xff},
	{R: 0xe3, G: 0x77, B: 0xc2, A: 0xff},
	{R: 0x7f, G: 0x7f, B: 0x7f, A: 0xff},
	{R: 0xbc, G: 0xbd, B: 0x22, A: 0xff},
	{R: 0x17, G: 0xbe, B: 0xcf, A: 0xff},
}

// Len returns the number of distinct entries.
func (p Palette) Len() int { return len(p) }

// Color returns the entry for index with alpha in [0,1] applied.
func (p Palette) Color(index int, alpha float64) color.NRGBA {
	if len(p) == 0 {
		return color.NRGBA{A: alphaByte(alpha)}
	}
	c := p[mod(index, len(p))]
	c.A = alphaByte(alpha)
	return c
}

// Hex returns the entry for index as #rrggbb.
func (p Palette) Hex(index int) string {
	c := p.Color(index, 1)
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// AssignColors builds the catalog for sourceIDs in first-seen order. Each
// distinct ID gets its position modulo paletteSize; a non-positive
// paletteSize falls back to the Tab10 size.
func AssignColors(sourceIDs []string, paletteSize int) model.SourceCatalog {
	if paletteSize <= 0 {
		paletteSize = Tab10.Len()
	}
	ids := make([]string, 0, len(sourceIDs))
	idx := make([]int, 0, len(sourceIDs))
	seen := make(map[string]bool, len(sourceIDs))
	for _, id := range sourceIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		idx = append(idx, len(ids)%paletteSize)
		ids = append(ids, id)
	}
	return model.NewSourceCatalog(ids, idx)
}

// DensityAlpha is the opacity of a bar in an hour bucket of k events.
func DensityAlpha(k int) float64 {
	return min(1, 0.5+0.5*float64(k)/10)
}

func alphaByte(a float64) uint8 {
	a = max(0, min(1, a))
	return uint8(a*255 + 0.5)
}

func mod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}
