package codec

import (
	"bytes"
	"strings"

	"github.com/acm19/resizer/internal/resize"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// resolutionUnitCentimeter is the EXIF ResolutionUnit value for dots per cm.
const resolutionUnitCentimeter = 3

// bagWalker copies every EXIF tag into a metadata bag as a string.
type bagWalker struct {
	md *resize.Metadata
}

func (w bagWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	var value string
	if tag.Format() == tiff.StringVal {
		s, err := tag.StringVal()
		if err != nil {
			return nil
		}
		value = strings.TrimRight(s, "\x00 ")
	} else {
		value = strings.Trim(tag.String(), `"`)
	}
	w.md.Set(MetaEXIFPrefix+string(name), value)
	return nil
}

// readEXIF walks the EXIF block of a JPEG or TIFF file into md and returns
// its orientation.
func readEXIF(data []byte, md *resize.Metadata) (resize.Orientation, bool) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, false
	}
	x.Walk(bagWalker{md: md})

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0, false
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 0, false
	}
	return resize.Orientation(v), true
}

// exifDensity returns the resolution recorded in the EXIF block, in dots per inch.
func exifDensity(data []byte) (float64, float64, bool) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false
	}
	dpiX, okX := exifRational(x, exif.XResolution)
	dpiY, okY := exifRational(x, exif.YResolution)
	if !okX && !okY {
		return 0, 0, false
	}
	if !okX {
		dpiX = dpiY
	}
	if !okY {
		dpiY = dpiX
	}

	if tag, err := x.Get(exif.ResolutionUnit); err == nil {
		if unit, err := tag.Int(0); err == nil && unit == resolutionUnitCentimeter {
			dpiX *= 2.54
			dpiY *= 2.54
		}
	}
	return dpiX, dpiY, true
}

func exifRational(x *exif.Exif, name exif.FieldName) (float64, bool) {
	tag, err := x.Get(name)
	if err != nil {
		return 0, false
	}
	num, den, err := tag.Rat2(0)
	if err != nil || num <= 0 || den <= 0 {
		return 0, false
	}
	return float64(num) / float64(den), true
}
