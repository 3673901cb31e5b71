package resize

import (
	"fmt"
	"image"
	"strings"
)

// Unit is the unit a requested size is expressed in.
type Unit int

const (
	// Pixel sizes are used as-is.
	Pixel Unit = iota
	// Percent sizes are relative to the image's native pixel size.
	Percent
	// Inch sizes are converted using the frame resolution.
	Inch
	// Centimeter sizes are converted using the frame resolution.
	Centimeter
)

var unitNames = map[Unit]string{
	Pixel:      "pixel",
	Percent:    "percent",
	Inch:       "inch",
	Centimeter: "centimeter",
}

func (u Unit) String() string {
	if name, ok := unitNames[u]; ok {
		return name
	}
	return fmt.Sprintf("unit(%d)", int(u))
}

// ParseUnit parses a unit name. Short forms (px, %, in, cm) are accepted.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pixel", "pixels", "px":
		return Pixel, nil
	case "percent", "%":
		return Percent, nil
	case "inch", "inches", "in":
		return Inch, nil
	case "centimeter", "centimeters", "cm":
		return Centimeter, nil
	}
	return Pixel, fmt.Errorf("unknown unit: %s", s)
}

// Fit is the policy for reconciling the requested box with the native aspect ratio.
type Fit int

const (
	// FitContain scales uniformly so the image fits inside the box.
	FitContain Fit = iota
	// FitFill scales uniformly so the image covers the box, then crops the overflow.
	FitFill
	// FitStretch forces the exact box, ignoring the aspect ratio.
	FitStretch
)

var fitNames = map[Fit]string{
	FitContain: "fit",
	FitFill:    "fill",
	FitStretch: "stretch",
}

func (f Fit) String() string {
	if name, ok := fitNames[f]; ok {
		return name
	}
	return fmt.Sprintf("fit(%d)", int(f))
}

// ParseFit parses a fit mode name.
func ParseFit(s string) (Fit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fit", "contain":
		return FitContain, nil
	case "fill", "cover":
		return FitFill, nil
	case "stretch":
		return FitStretch, nil
	}
	return FitContain, fmt.Errorf("unknown fit mode: %s", s)
}

// Size is a named requested size.
type Size struct {
	// Name is substituted for %2 in the file name template.
	Name string
	// Width is the requested width in Unit. 0 means auto.
	Width float64
	// Height is the requested height in Unit. 0 means auto.
	Height float64
	// Unit is the unit Width and Height are expressed in.
	Unit Unit
	// Fit is the fit policy.
	Fit Fit
}

// HasAuto reports whether one of the dimensions is left to the aspect ratio.
func (s Size) HasAuto() bool {
	return s.Width == 0 || s.Height == 0
}

// DefaultSizes returns the built-in size presets.
func DefaultSizes() []Size {
	return []Size{
		{Name: "Small", Width: 854, Height: 480, Unit: Pixel, Fit: FitContain},
		{Name: "Medium", Width: 1366, Height: 768, Unit: Pixel, Fit: FitContain},
		{Name: "Large", Width: 1920, Height: 1080, Unit: Pixel, Fit: FitContain},
		{Name: "Phone", Width: 320, Height: 568, Unit: Pixel, Fit: FitContain},
	}
}

// LookupSize finds a preset by case-insensitive name.
func LookupSize(name string) (Size, bool) {
	for _, s := range DefaultSizes() {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Size{}, false
}

// Settings holds the options of a single resize operation.
type Settings struct {
	// SelectedSize is the requested size.
	SelectedSize Size
	// KeepDateModified copies the source's last-write time onto the output.
	KeepDateModified bool
	// Replace writes the output over the original and removes the original.
	Replace bool
	// FileNameTemplate names the output; see ExpandTemplate for tokens.
	FileNameTemplate string
	// FallbackEncoder is used when the source format cannot be re-encoded. Empty means none.
	FallbackEncoder Format
	// IgnoreOrientation ignores both the EXIF orientation and the orientation of the requested box.
	IgnoreOrientation bool
	// ShrinkOnly forbids upscaling.
	ShrinkOnly bool
	// JPEGQuality is the quality used when encoding JPEG output (1-100).
	JPEGQuality int
	// CopyMetadata reads and writes file-level tags through the MetadataStore.
	CopyMetadata bool
}

// DefaultFileNameTemplate produces names such as "photo (Medium).jpg".
const DefaultFileNameTemplate = "%1 (%2)"

// DefaultSettings returns the default resize settings.
func DefaultSettings() Settings {
	medium, _ := LookupSize("Medium")
	return Settings{
		SelectedSize:     medium,
		FileNameTemplate: DefaultFileNameTemplate,
		JPEGQuality:      90,
		CopyMetadata:     true,
	}
}

// Geometry is the resolved output size in stored pixels.
type Geometry struct {
	Width  int
	Height int
	// Fit tells the transformer how frames of a different native size reach Width x Height.
	Fit Fit
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d", g.Width, g.Height)
}

// Orientation is the EXIF orientation value (1-8). 0 means unknown.
type Orientation int

// SwapsAxes reports whether the orientation implies a 90 or 270 degree rotation.
func (o Orientation) SwapsAxes() bool {
	return o >= 5 && o <= 8
}

// Frame is one still image of a possibly multi-frame source.
type Frame struct {
	Image       image.Image
	DpiX        float64
	DpiY        float64
	Orientation Orientation
	Metadata    *Metadata
}

// Width returns the frame's pixel width.
func (f Frame) Width() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dx()
}

// Height returns the frame's pixel height.
func (f Frame) Height() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dy()
}

// SourceImage is a decoded source file.
type SourceImage struct {
	Format Format
	Frames []Frame
}

// EncodeOptions are passed through to the codec.
type EncodeOptions struct {
	JPEGQuality int
}

// Result describes a completed operation.
type Result struct {
	// Source is the path that was resized.
	Source string
	// Output is the path of the written file.
	Output string
	// Geometry is the resolved target size.
	Geometry Geometry
	// Frames is the number of frames written.
	Frames int
	// Format is the encoder that produced the output.
	Format Format
	// Replaced is set when the original was replaced or removed.
	Replaced bool
}

// BatchOptions holds configuration for resizing many files.
type BatchOptions struct {
	// MaxConcurrency is the maximum number of files resized at once (0 = default).
	MaxConcurrency int
	// ProgressChan is an optional channel for receiving progress events.
	ProgressChan chan<- ProgressEvent
}

// DefaultBatchOptions returns the default batch options.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{
		MaxConcurrency: 4,
		ProgressChan:   nil,
	}
}

// ProgressEvent represents a progress update during a batch.
type ProgressEvent struct {
	// Stage is "resizing" while files are processed and "done" per finished file.
	Stage string
	// Current is the number of files handled so far.
	Current int
	// Total is the total number of files.
	Total int
	// Message is a human-readable description of the current operation.
	Message string
	// File is the source file the event refers to.
	File string
}
