package codec

import (
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"io"

	"github.com/acm19/resizer/internal/resize"
	"golang.org/x/image/draw"
)

// decodeGIF returns one full-canvas frame per GIF image, composited the way
// a viewer would show it.
func decodeGIF(r io.Reader) ([]resize.Frame, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return nil, err
	}
	if len(g.Image) == 0 {
		return nil, nil
	}

	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		bounds = g.Image[0].Bounds()
	}
	canvas := image.NewNRGBA(bounds)

	frames := make([]resize.Frame, 0, len(g.Image))
	for i, img := range g.Image {
		disposal := byte(gif.DisposalNone)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		var previous *image.NRGBA
		if disposal == gif.DisposalPrevious {
			previous = cloneNRGBA(canvas)
		}

		draw.Draw(canvas, img.Bounds(), img, img.Bounds().Min, draw.Over)

		md := resize.NewMetadata()
		if i < len(g.Delay) {
			md.Set(MetaGIFDelay, g.Delay[i])
		}
		if i == 0 {
			md.Set(MetaGIFLoopCount, g.LoopCount)
		}
		frames = append(frames, resize.Frame{Image: cloneNRGBA(canvas), Metadata: md})

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, img.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = previous
		}
	}
	return frames, nil
}

// gifPalette is a transparent entry followed by the first 255 Plan9 colours.
var gifPalette = append(color.Palette{color.Transparent}, palette.Plan9[:255]...)

// encodeGIF writes frames as an animated GIF. Delay and loop count are taken
// from the frame bags.
func encodeGIF(w io.Writer, frames []resize.Frame) error {
	g := &gif.GIF{LoopCount: metaInt(frames[0].Metadata, MetaGIFLoopCount, 0)}
	for _, frame := range frames {
		bounds := frame.Image.Bounds()
		p := image.NewPaletted(image.Rect(0, 0, bounds.Dx(), bounds.Dy()), gifPalette)
		draw.FloydSteinberg.Draw(p, p.Bounds(), frame.Image, bounds.Min)

		g.Image = append(g.Image, p)
		g.Delay = append(g.Delay, metaInt(frame.Metadata, MetaGIFDelay, 0))
		g.Disposal = append(g.Disposal, gif.DisposalBackground)
	}
	g.Config = image.Config{
		ColorModel: gifPalette,
		Width:      g.Image[0].Bounds().Dx(),
		Height:     g.Image[0].Bounds().Dy(),
	}
	return gif.EncodeAll(w, g)
}

func cloneNRGBA(src *image.NRGBA) *image.NRGBA {
	dst := image.NewNRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}

func metaInt(md *resize.Metadata, key string, fallback int) int {
	v, ok := md.Get(key)
	if !ok {
		return fallback
	}
	if n, ok := v.(int); ok {
		return n
	}
	return fallback
}
