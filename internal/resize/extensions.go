package resize

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// Format identifies an image container format.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
	FormatWebP Format = "webp"
	FormatICO  Format = "ico"
)

// formatExts lists accepted extensions per format; the first is canonical.
var formatExts = map[Format][]string{
	FormatJPEG: {".jpg", ".jpeg", ".jpe", ".jfif"},
	FormatPNG:  {".png"},
	FormatGIF:  {".gif"},
	FormatBMP:  {".bmp", ".dib"},
	FormatTIFF: {".tiff", ".tif"},
	FormatWebP: {".webp"},
	FormatICO:  {".ico"},
}

// Extension returns the canonical extension, including the dot.
func (f Format) Extension() string {
	exts := formatExts[f]
	if len(exts) == 0 {
		return "." + string(f)
	}
	return exts[0]
}

// HasExtension reports whether ext (with dot, any case) belongs to the format.
func (f Format) HasExtension(ext string) bool {
	return slices.Contains(formatExts[f], strings.ToLower(ext))
}

// ParseFormat parses a format name or extension ("tiff", ".tif", "JPG").
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return "", nil
	}
	if _, ok := formatExts[Format(name)]; ok {
		return Format(name), nil
	}
	if !strings.HasPrefix(name, ".") {
		name = "." + name
	}
	for f, exts := range formatExts {
		if slices.Contains(exts, name) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown image format: %s", s)
}

// Extensions defines the interface for file extension operations.
type Extensions interface {
	// IsImage returns true if the file extension is a supported image format.
	IsImage(filePath string) bool
	// FormatOf returns the format implied by the file extension.
	FormatOf(filePath string) (Format, bool)
}

// extensions implements the Extensions interface.
type extensions struct {
	byExt map[string]Format
}

// NewExtensions creates a new Extensions instance.
func NewExtensions() Extensions {
	byExt := make(map[string]Format)
	for f, exts := range formatExts {
		for _, ext := range exts {
			byExt[ext] = f
		}
	}
	return &extensions{byExt: byExt}
}

// IsImage returns true if the file extension is a supported image format.
func (e *extensions) IsImage(filePath string) bool {
	_, ok := e.FormatOf(filePath)
	return ok
}

// FormatOf returns the format implied by the file extension.
func (e *extensions) FormatOf(filePath string) (Format, bool) {
	f, ok := e.byExt[strings.ToLower(filepath.Ext(filePath))]
	return f, ok
}
