// Package codec implements resize.Codec on top of the Go image decoders,
// golang.org/x/image and disintegration/imaging.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/acm19/resizer/internal/logger"
	"github.com/acm19/resizer/internal/resize"
	"github.com/disintegration/imaging"

	// Register the decoders that imaging does not pull in.
	_ "golang.org/x/image/webp"
)

const (
	// MetaGIFDelay holds a frame's delay in 100ths of a second (int).
	MetaGIFDelay = "gif:Delay"
	// MetaGIFLoopCount holds the animation loop count on frame 0 (int).
	MetaGIFLoopCount = "gif:LoopCount"
	// MetaEXIFPrefix prefixes the EXIF tags walked into frame 0's bag.
	MetaEXIFPrefix = "exif:"
)

// DefaultJPEGQuality is used when EncodeOptions carries no quality.
const DefaultJPEGQuality = 90

// encodable lists the formats this codec writes; 0 means any frame count.
var encodable = map[resize.Format]int{
	resize.FormatJPEG: 1,
	resize.FormatPNG:  1,
	resize.FormatBMP:  1,
	resize.FormatTIFF: 1,
	resize.FormatGIF:  0,
}

// imagingFormats maps single-frame formats to imaging's encoders.
var imagingFormats = map[resize.Format]imaging.Format{
	resize.FormatJPEG: imaging.JPEG,
	resize.FormatPNG:  imaging.PNG,
	resize.FormatBMP:  imaging.BMP,
	resize.FormatTIFF: imaging.TIFF,
}

// nativeCodec implements the resize.Codec interface
type nativeCodec struct{}

// NewCodec creates the codec used by the CLI.
func NewCodec() resize.Codec {
	return &nativeCodec{}
}

// CanEncode reports whether format can hold frameCount frames.
func (c *nativeCodec) CanEncode(format resize.Format, frameCount int) bool {
	limit, ok := encodable[format]
	if !ok || frameCount < 1 {
		return false
	}
	return limit == 0 || frameCount <= limit
}

// Decode reads every frame of the image at path.
func (c *nativeCodec) Decode(path string) (*resize.SourceImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	_, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("unrecognised image format")
		}
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}
	format, err := resize.ParseFormat(name)
	if err != nil {
		return nil, err
	}

	src := &resize.SourceImage{Format: format}
	if format == resize.FormatGIF {
		src.Frames, err = decodeGIF(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode gif: %w", err)
		}
	} else {
		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", format, err)
		}
		src.Frames = []resize.Frame{{Image: img, Metadata: resize.NewMetadata()}}
	}

	first := &src.Frames[0]
	first.DpiX, first.DpiY = readDensity(format, data)
	if format == resize.FormatJPEG || format == resize.FormatTIFF {
		orientation, ok := readEXIF(data, first.Metadata)
		if ok {
			first.Orientation = orientation
		}
	}
	for i := 1; i < len(src.Frames); i++ {
		src.Frames[i].DpiX, src.Frames[i].DpiY = first.DpiX, first.DpiY
	}

	logger.Debug("Decoded image", "path", path, "format", format, "frames", len(src.Frames),
		"width", first.Width(), "height", first.Height(), "dpi_x", first.DpiX, "dpi_y", first.DpiY)
	return src, nil
}

// Encode writes frames as a single file of the given format.
func (c *nativeCodec) Encode(w io.Writer, frames []resize.Frame, format resize.Format, opts resize.EncodeOptions) error {
	if !c.CanEncode(format, len(frames)) {
		return fmt.Errorf("%s encoder cannot write %d frames", format, len(frames))
	}
	if format == resize.FormatGIF {
		return encodeGIF(w, frames)
	}

	frame := frames[0]
	quality := opts.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, frame.Image, imagingFormats[format], imaging.JPEGQuality(quality)); err != nil {
		return err
	}

	data := buf.Bytes()
	switch format {
	case resize.FormatJPEG:
		data = withJPEGHeaders(data, frame.DpiX, frame.DpiY, frame.Orientation)
	case resize.FormatPNG:
		data = withPNGDensity(data, frame.DpiX, frame.DpiY)
	case resize.FormatBMP:
		setBMPDensity(data, frame.DpiX, frame.DpiY)
	case resize.FormatTIFF:
		setTIFFDensity(data, frame.DpiX, frame.DpiY)
	}

	_, err := w.Write(data)
	return err
}
