package resize

import (
	"fmt"
	"math"
)

const (
	// defaultDPI is assumed when a frame carries no usable resolution.
	defaultDPI = 96.0
	cmPerInch  = 2.54
	// maxPixels bounds a requested dimension.
	maxPixels = math.MaxInt32
)

// SizeResolver computes the target geometry of an operation.
type SizeResolver interface {
	// Resolve computes the target size for frame under settings.
	//
	// The returned geometry is expressed in stored pixels: when the frame's EXIF
	// orientation rotates it by 90 or 270 degrees the computation happens on the
	// displayed dimensions and the result is swapped back.
	Resolve(frame Frame, settings Settings) (Geometry, error)
}

// sizeResolver implements the SizeResolver interface
type sizeResolver struct{}

// NewSizeResolver creates a new SizeResolver instance
func NewSizeResolver() SizeResolver {
	return &sizeResolver{}
}

// Resolve computes the target size for frame under settings.
func (r *sizeResolver) Resolve(frame Frame, settings Settings) (Geometry, error) {
	size := settings.SelectedSize
	storedW, storedH := frame.Width(), frame.Height()
	if storedW <= 0 || storedH <= 0 {
		return Geometry{}, fmt.Errorf("%w: frame is %dx%d", ErrInvalidGeometry, storedW, storedH)
	}
	if !validDimension(size.Width) || !validDimension(size.Height) {
		return Geometry{}, fmt.Errorf("%w: requested %vx%v", ErrInvalidGeometry, size.Width, size.Height)
	}
	if size.Width == 0 && size.Height == 0 {
		return Geometry{}, fmt.Errorf("%w: width and height are both auto", ErrInvalidGeometry)
	}

	w, h := float64(storedW), float64(storedH)
	dpiX, dpiY := dpiOrDefault(frame.DpiX), dpiOrDefault(frame.DpiY)
	rotated := !settings.IgnoreOrientation && frame.Orientation.SwapsAxes()
	if rotated {
		w, h = h, w
		dpiX, dpiY = dpiY, dpiX
	}

	reqW := toPixels(size.Width, size.Unit, dpiX, w)
	reqH := toPixels(size.Height, size.Unit, dpiY, h)

	fit := size.Fit
	if size.HasAuto() {
		fit = FitContain
		if size.Width == 0 {
			reqW = math.Inf(1)
		}
		if size.Height == 0 {
			reqH = math.Inf(1)
		}
	}
	for _, req := range []float64{reqW, reqH} {
		if math.IsInf(req, 1) {
			continue
		}
		if math.Round(req) < 1 || req > maxPixels {
			return Geometry{}, fmt.Errorf("%w: requested box %.2fx%.2f px", ErrInvalidGeometry, reqW, reqH)
		}
	}

	// Match the box to the image orientation (portrait vs landscape).
	if settings.IgnoreOrientation && !size.HasAuto() && size.Unit != Percent && (w < h) != (reqW < reqH) {
		reqW, reqH = reqH, reqW
	}

	scaleX, scaleY := reqW/w, reqH/h
	switch fit {
	case FitContain:
		s := math.Min(scaleX, scaleY)
		scaleX, scaleY = s, s
	case FitFill:
		s := math.Max(scaleX, scaleY)
		scaleX, scaleY = s, s
	}

	if settings.ShrinkOnly && size.Unit != Percent && (scaleX > 1 || scaleY > 1) {
		return Geometry{Width: storedW, Height: storedH, Fit: FitContain}, nil
	}

	fw, fh := reqW, reqH
	if fit == FitContain {
		fw, fh = w*scaleX, h*scaleY
	}
	if fw > maxPixels || fh > maxPixels {
		return Geometry{}, fmt.Errorf("%w: output %.0fx%.0f px is too large", ErrInvalidGeometry, fw, fh)
	}
	outW, outH := roundPixels(fw), roundPixels(fh)
	if rotated {
		outW, outH = outH, outW
	}
	return Geometry{Width: outW, Height: outH, Fit: fit}, nil
}

func validDimension(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func dpiOrDefault(dpi float64) float64 {
	if dpi <= 0 || math.IsNaN(dpi) || math.IsInf(dpi, 0) {
		return defaultDPI
	}
	return dpi
}

// toPixels converts a requested dimension to pixels. native is the frame's
// pixel size along the same axis, used as 100% for Percent.
func toPixels(v float64, unit Unit, dpi, native float64) float64 {
	switch unit {
	case Percent:
		return v / 100 * native
	case Inch:
		return v * dpi
	case Centimeter:
		return v * dpi / cmPerInch
	default:
		return v
	}
}

// roundPixels rounds to the nearest pixel with a 1px minimum.
func roundPixels(v float64) int {
	p := int(math.Round(v))
	if p < 1 {
		return 1
	}
	return p
}
