package codec

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"math"

	"github.com/acm19/resizer/internal/resize"
)

const (
	metersPerInch = 0.0254
	cmPerInch     = 2.54
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// readDensity returns the resolution stored in the file, or 0, 0 when the
// file does not record one.
func readDensity(format resize.Format, data []byte) (float64, float64) {
	switch format {
	case resize.FormatJPEG:
		if x, y, ok := exifDensity(data); ok {
			return x, y
		}
		if x, y, ok := jfifDensity(data); ok {
			return x, y
		}
	case resize.FormatTIFF:
		if x, y, ok := exifDensity(data); ok {
			return x, y
		}
	case resize.FormatPNG:
		if x, y, ok := pngDensity(data); ok {
			return x, y
		}
	case resize.FormatBMP:
		if x, y, ok := bmpDensity(data); ok {
			return x, y
		}
	}
	return 0, 0
}

// jfifDensity reads the density of the JFIF APP0 segment.
func jfifDensity(data []byte) (float64, float64, bool) {
	for i := 2; i+4 <= len(data) && data[i] == 0xFF; {
		marker := data[i+1]
		if marker == 0xDA || marker == 0xD9 {
			break
		}
		length := int(binary.BigEndian.Uint16(data[i+2:]))
		end := i + 2 + length
		if length < 2 || end > len(data) {
			break
		}
		payload := data[i+4 : end]
		if marker == 0xE0 && len(payload) >= 12 && bytes.HasPrefix(payload, []byte("JFIF\x00")) {
			units := payload[7]
			x := float64(binary.BigEndian.Uint16(payload[8:]))
			y := float64(binary.BigEndian.Uint16(payload[10:]))
			switch units {
			case 1:
				return x, y, x > 0 && y > 0
			case 2:
				return x * cmPerInch, y * cmPerInch, x > 0 && y > 0
			}
			return 0, 0, false
		}
		i = end
	}
	return 0, 0, false
}

// withJPEGHeaders inserts a JFIF APP0 segment carrying the density and, for
// rotated images, an EXIF APP1 segment carrying the orientation.
func withJPEGHeaders(data []byte, dpiX, dpiY float64, orientation resize.Orientation) []byte {
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		return data
	}

	var out bytes.Buffer
	out.Grow(len(data) + 64)
	out.Write(data[:2])

	app0 := []byte{0xFF, 0xE0, 0, 16, 'J', 'F', 'I', 'F', 0, 1, 1, 0, 0, 1, 0, 1, 0, 0}
	if dpiX > 0 && dpiY > 0 {
		app0[11] = 1
		binary.BigEndian.PutUint16(app0[12:], clampUint16(dpiX))
		binary.BigEndian.PutUint16(app0[14:], clampUint16(dpiY))
	}
	out.Write(app0)

	if orientation > 1 && orientation <= 8 {
		out.Write(orientationAPP1(orientation))
	}

	out.Write(data[2:])
	return out.Bytes()
}

// orientationAPP1 builds a minimal big-endian EXIF block with a single
// Orientation entry in IFD0.
func orientationAPP1(orientation resize.Orientation) []byte {
	tiffBlock := []byte{
		'M', 'M', 0, 42, 0, 0, 0, 8, // header, IFD0 at 8
		0, 1, // one entry
		0x01, 0x12, 0, 3, 0, 0, 0, 1, 0, byte(orientation), 0, 0, // Orientation SHORT
		0, 0, 0, 0, // no next IFD
	}
	payload := append([]byte("Exif\x00\x00"), tiffBlock...)

	seg := []byte{0xFF, 0xE1, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(len(payload)+2))
	return append(seg, payload...)
}

// pngDensity reads the pHYs chunk.
func pngDensity(data []byte) (float64, float64, bool) {
	if !bytes.HasPrefix(data, pngSignature) {
		return 0, 0, false
	}
	for i := len(pngSignature); i+8 <= len(data); {
		length := int(binary.BigEndian.Uint32(data[i:]))
		typ := string(data[i+4 : i+8])
		end := i + 12 + length
		if length < 0 || end > len(data) || typ == "IDAT" {
			break
		}
		if typ == "pHYs" && length == 9 {
			chunk := data[i+8 : i+8+length]
			if chunk[8] != 1 {
				return 0, 0, false
			}
			x := float64(binary.BigEndian.Uint32(chunk[0:])) * metersPerInch
			y := float64(binary.BigEndian.Uint32(chunk[4:])) * metersPerInch
			return x, y, x > 0 && y > 0
		}
		i = end
	}
	return 0, 0, false
}

// withPNGDensity inserts a pHYs chunk right after IHDR.
func withPNGDensity(data []byte, dpiX, dpiY float64) []byte {
	const ihdrEnd = 8 + 4 + 4 + 13 + 4
	if dpiX <= 0 || dpiY <= 0 || len(data) < ihdrEnd || !bytes.HasPrefix(data, pngSignature) {
		return data
	}

	chunk := make([]byte, 4+4+9+4)
	binary.BigEndian.PutUint32(chunk[0:], 9)
	copy(chunk[4:], "pHYs")
	binary.BigEndian.PutUint32(chunk[8:], uint32(math.Round(dpiX/metersPerInch)))
	binary.BigEndian.PutUint32(chunk[12:], uint32(math.Round(dpiY/metersPerInch)))
	chunk[16] = 1
	binary.BigEndian.PutUint32(chunk[17:], crc32.ChecksumIEEE(chunk[4:17]))

	out := make([]byte, 0, len(data)+len(chunk))
	out = append(out, data[:ihdrEnd]...)
	out = append(out, chunk...)
	return append(out, data[ihdrEnd:]...)
}

// BITMAPINFOHEADER offsets.
const (
	bmpDIBSize    = 14
	bmpXPelsPerM  = 38
	bmpYPelsPerM  = 42
	bmpMinInfoLen = 40
)

// bmpDensity reads the pixels-per-meter fields of the info header.
func bmpDensity(data []byte) (float64, float64, bool) {
	if len(data) < bmpYPelsPerM+4 || data[0] != 'B' || data[1] != 'M' {
		return 0, 0, false
	}
	if binary.LittleEndian.Uint32(data[bmpDIBSize:]) < bmpMinInfoLen {
		return 0, 0, false
	}
	x := float64(int32(binary.LittleEndian.Uint32(data[bmpXPelsPerM:]))) * metersPerInch
	y := float64(int32(binary.LittleEndian.Uint32(data[bmpYPelsPerM:]))) * metersPerInch
	return x, y, x > 0 && y > 0
}

// setBMPDensity overwrites the pixels-per-meter fields in place.
func setBMPDensity(data []byte, dpiX, dpiY float64) {
	if dpiX <= 0 || dpiY <= 0 || len(data) < bmpYPelsPerM+4 {
		return
	}
	if binary.LittleEndian.Uint32(data[bmpDIBSize:]) < bmpMinInfoLen {
		return
	}
	binary.LittleEndian.PutUint32(data[bmpXPelsPerM:], uint32(math.Round(dpiX/metersPerInch)))
	binary.LittleEndian.PutUint32(data[bmpYPelsPerM:], uint32(math.Round(dpiY/metersPerInch)))
}

// TIFF tags rewritten by setTIFFDensity.
const (
	tiffXResolution  = 282
	tiffYResolution  = 283
	tiffResUnit      = 296
	tiffTypeShort    = 3
	tiffTypeRational = 5
	tiffResPerInch   = 2
)

// setTIFFDensity rewrites the resolution entries of IFD0 in place. Entries
// the encoder did not write are left absent.
func setTIFFDensity(data []byte, dpiX, dpiY float64) {
	if dpiX <= 0 || dpiY <= 0 || len(data) < 8 {
		return
	}
	var order binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return
	}

	ifd := int(order.Uint32(data[4:]))
	if ifd+2 > len(data) {
		return
	}
	count := int(order.Uint16(data[ifd:]))
	for n := 0; n < count; n++ {
		entry := ifd + 2 + n*12
		if entry+12 > len(data) {
			return
		}
		tag := order.Uint16(data[entry:])
		typ := order.Uint16(data[entry+2:])
		switch {
		case (tag == tiffXResolution || tag == tiffYResolution) && typ == tiffTypeRational:
			off := int(order.Uint32(data[entry+8:]))
			if off+8 > len(data) {
				continue
			}
			dpi := dpiX
			if tag == tiffYResolution {
				dpi = dpiY
			}
			order.PutUint32(data[off:], uint32(math.Round(dpi*100)))
			order.PutUint32(data[off+4:], 100)
		case tag == tiffResUnit && typ == tiffTypeShort:
			order.PutUint16(data[entry+8:], tiffResPerInch)
		}
	}
}

func clampUint16(v float64) uint16 {
	return uint16(math.Max(1, math.Min(math.Round(v), math.MaxUint16)))
}
