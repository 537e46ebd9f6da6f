package renderer

import (
	"github.com/fzipp/bmfont"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/cache"
)

type Glyph struct {
	X, Y, Width, Height int
	XOffset, YOffset    int
	XAdvance            int
	Page                int
}

type kerningPair struct {
	first, second rune
}

// Font is a bitmap font with one texture per atlas page.
type Font struct {
	cache.CachedResource

	Face       string
	Size       int
	LineHeight int
	Baseline   int

	glyphs   map[rune]Glyph
	kernings map[kerningPair]int
	pages    []*cache.Holder[*Texture]
}

func newFont(desc *bmfont.Descriptor) *Font {
	f := &Font{
		Face:       desc.Info.Face,
		Size:       int(desc.Info.Size),
		LineHeight: int(desc.Common.LineHeight),
		Baseline:   int(desc.Common.Base),
		glyphs:     make(map[rune]Glyph, len(desc.Chars)),
		kernings:   make(map[kerningPair]int, len(desc.Kerning)),
	}
	for _, c := range desc.Chars {
		f.glyphs[rune(c.ID)] = Glyph{
			X:        int(c.X),
			Y:        int(c.Y),
			Width:    int(c.Width),
			Height:   int(c.Height),
			XOffset:  int(c.XOffset),
			YOffset:  int(c.YOffset),
			XAdvance: int(c.XAdvance),
			Page:     int(c.Page),
		}
	}
	for p, k := range desc.Kerning {
		f.kernings[kerningPair{rune(p.First), rune(p.Second)}] = int(k.Amount)
	}
	return f
}

func (f *Font) Glyph(r rune) (Glyph, bool) {
	g, ok := f.glyphs[r]
	return g, ok
}

func (f *Font) Kerning(first, second rune) int {
	return f.kernings[kerningPair{first, second}]
}

// Page returns the atlas texture of a page.
func (f *Font) Page(i int) *Texture {
	return f.pages[i].Get()
}

func (f *Font) PageCount() int {
	return len(f.pages)
}

// Advance is the horizontal size of s laid out on one line.
func (f *Font) Advance(s string) int {
	total := 0
	prev := rune(-1)
	for _, r := range s {
		if g, ok := f.glyphs[r]; ok {
			total += g.XAdvance
		}
		if prev >= 0 {
			total += f.Kerning(prev, r)
		}
		prev = r
	}
	return total
}

// DestroyCached releases the page textures with the font.
func (f *Font) DestroyCached() {
	for _, p := range f.pages {
		p.Release()
	}
	f.pages = nil
}
