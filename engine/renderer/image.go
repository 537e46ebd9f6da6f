package renderer

import (
	"bufio"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/pass"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// decodeImage reads any registered image format into tightly packed RGBA8.
func decodeImage(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.Errorf(core.InvalidArgument, "open image: %w", err)
	}
	defer f.Close()

	src, format, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, core.Errorf(core.InvalidArgument, "decode image `%s`: %w", path, err)
	}
	core.LogDebug("decoded %s image `%s` %v", format, path, src.Bounds().Size())
	return toRGBA(src), nil
}

func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok && rgba.Stride == 4*rgba.Rect.Dx() && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

func textureDescFromImage(name string, img *image.RGBA) TextureDesc {
	size := img.Bounds().Size()
	return TextureDesc{
		Name:   name,
		Extent: pass.Extent{Width: uint32(size.X), Height: uint32(size.Y)},
		Format: pass.FormatRGBA8,
		Pixels: img.Pix,
	}
}
