package resize

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Resampler performs the pixel work for the FrameTransformer.
type Resampler interface {
	// Scale resamples img to exactly width x height.
	Scale(img image.Image, width, height int) image.Image
	// Crop returns the rect portion of img, rebased to the origin.
	Crop(img image.Image, rect image.Rectangle) image.Image
}

// imagingResampler implements Resampler with disintegration/imaging.
type imagingResampler struct {
	filter imaging.ResampleFilter
}

// NewResampler returns the default resampler (Lanczos).
func NewResampler() Resampler {
	return &imagingResampler{filter: imaging.Lanczos}
}

func (r *imagingResampler) Scale(img image.Image, width, height int) image.Image {
	return imaging.Resize(img, width, height, r.filter)
}

func (r *imagingResampler) Crop(img image.Image, rect image.Rectangle) image.Image {
	return imaging.Crop(img, rect.Add(img.Bounds().Min))
}

// FrameTransformer applies a resolved geometry to a frame.
type FrameTransformer interface {
	// Transform returns a new frame of the target geometry carrying the source
	// frame's resolution, orientation and metadata.
	Transform(frame Frame, g Geometry) Frame
}

// frameTransformer implements the FrameTransformer interface
type frameTransformer struct {
	resampler Resampler
}

// NewFrameTransformer creates a FrameTransformer using resampler, or the
// default one when resampler is nil.
func NewFrameTransformer(resampler Resampler) FrameTransformer {
	if resampler == nil {
		resampler = NewResampler()
	}
	return &frameTransformer{resampler: resampler}
}

// Transform applies g to frame. Frames whose native size differs from the
// frame g was resolved from are scaled toward g under the same fit policy.
func (t *frameTransformer) Transform(frame Frame, g Geometry) Frame {
	out := Frame{
		DpiX:        frame.DpiX,
		DpiY:        frame.DpiY,
		Orientation: frame.Orientation,
		Metadata:    frame.Metadata.Clone(),
	}

	w, h := frame.Width(), frame.Height()
	if w == g.Width && h == g.Height {
		out.Image = frame.Image
		return out
	}

	switch g.Fit {
	case FitStretch:
		out.Image = t.resampler.Scale(frame.Image, g.Width, g.Height)
	case FitFill:
		scale := math.Max(float64(g.Width)/float64(w), float64(g.Height)/float64(h))
		sw := max(roundPixels(float64(w)*scale), g.Width)
		sh := max(roundPixels(float64(h)*scale), g.Height)
		scaled := t.resampler.Scale(frame.Image, sw, sh)
		out.Image = t.resampler.Crop(scaled, centeredCrop(sw, sh, g.Width, g.Height))
	default:
		if fitsExactly(w, h, g) {
			out.Image = t.resampler.Scale(frame.Image, g.Width, g.Height)
			break
		}
		scale := math.Min(float64(g.Width)/float64(w), float64(g.Height)/float64(h))
		out.Image = t.resampler.Scale(frame.Image, roundPixels(float64(w)*scale), roundPixels(float64(h)*scale))
	}
	return out
}

// fitsExactly reports whether a uniform scale along either axis rounds a
// w x h frame to exactly g. This holds for the frame g was resolved from,
// whose short side may have been rounded away from the box scale.
func fitsExactly(w, h int, g Geometry) bool {
	for _, scale := range []float64{
		float64(g.Width) / float64(w),
		float64(g.Height) / float64(h),
	} {
		if roundPixels(float64(w)*scale) == g.Width && roundPixels(float64(h)*scale) == g.Height {
			return true
		}
	}
	return false
}

// centeredCrop returns the width x height rectangle centered in a w x h image.
// Odd remainders are trimmed from the right and bottom edges.
func centeredCrop(w, h, width, height int) image.Rectangle {
	x0 := (w - width) / 2
	y0 := (h - height) / 2
	return image.Rect(x0, y0, x0+width, y0+height)
}
