package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/acm19/resizer/internal/codec"
	"github.com/acm19/resizer/internal/exifmeta"
	"github.com/acm19/resizer/internal/logger"
	"github.com/acm19/resizer/internal/publish"
	"github.com/acm19/resizer/internal/resize"
	"github.com/barasher/go-exiftool"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

// resizeFlags holds the values of the resize command's flags.
type resizeFlags struct {
	size              string
	width             float64
	height            float64
	unit              string
	fit               string
	output            string
	template          string
	keepDate          bool
	replace           bool
	fallback          string
	ignoreOrientation bool
	shrinkOnly        bool
	quality           int
	metadata          bool
	maxConcurrent     int
	bucket            string
	prefix            string
}

var flags resizeFlags

var rootCmd = &cobra.Command{
	Use:     "resizer",
	Short:   "Batch image resizer",
	Long:    `Resizer resizes images to preset or custom sizes, keeping metadata, timestamps and animation frames.`,
	Version: version,
}

var resizeCmd = &cobra.Command{
	Use:   "resize FILE|DIR...",
	Short: "Resize images",
	Long: `Resizes each image (directories contribute the images they contain) and writes the
result next to the source, or into --output. Output names come from --template:
%1 source name, %2 size name, %3/%5 width and %4/%6 height in pixels.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runResize(cmd.Context(), args, flags); err != nil {
			logger.Error("Resize failed", "error", err)
			os.Exit(1)
		}
	},
}

var sizesCmd = &cobra.Command{
	Use:   "sizes",
	Short: "List the preset sizes",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, s := range resize.DefaultSizes() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-8s %gx%g %s (%s)\n", s.Name, s.Width, s.Height, s.Unit, s.Fit)
		}
	},
}

func init() {
	defaults := resize.DefaultSettings()

	f := resizeCmd.Flags()
	f.StringVarP(&flags.size, "size", "s", defaults.SelectedSize.Name, "Preset size (see 'resizer sizes')")
	f.Float64VarP(&flags.width, "width", "W", 0, "Custom width; 0 keeps the aspect ratio")
	f.Float64VarP(&flags.height, "height", "H", 0, "Custom height; 0 keeps the aspect ratio")
	f.StringVarP(&flags.unit, "unit", "u", "", "Unit of --width/--height: px, %, in, cm (default px, or the preset's)")
	f.StringVarP(&flags.fit, "fit", "f", "", "Fit mode: fit, fill, stretch (default fit, or the preset's)")
	f.StringVarP(&flags.output, "output", "o", "", "Output directory (default: next to the source)")
	f.StringVarP(&flags.template, "template", "t", defaults.FileNameTemplate, "Output file name template")
	f.BoolVar(&flags.keepDate, "keep-date", defaults.KeepDateModified, "Copy the source's modification time to the output")
	f.BoolVar(&flags.replace, "replace", defaults.Replace, "Replace the original file")
	f.StringVar(&flags.fallback, "fallback", "", "Format to use when the source format cannot be written (e.g. png, tiff)")
	f.BoolVar(&flags.ignoreOrientation, "ignore-orientation", defaults.IgnoreOrientation, "Ignore EXIF orientation and match the box to the image orientation")
	f.BoolVar(&flags.shrinkOnly, "shrink-only", defaults.ShrinkOnly, "Never enlarge images")
	f.IntVarP(&flags.quality, "quality", "q", defaults.JPEGQuality, "JPEG quality (1-100)")
	f.BoolVar(&flags.metadata, "metadata", defaults.CopyMetadata, "Copy metadata tags using exiftool")
	f.IntVarP(&flags.maxConcurrent, "max-concurrent", "c", resize.DefaultBatchOptions().MaxConcurrency, "Maximum concurrent operations")
	f.StringVar(&flags.bucket, "bucket", "", "Upload the resized images to this S3 bucket")
	f.StringVar(&flags.prefix, "prefix", "", "S3 key prefix for uploads")

	rootCmd.AddCommand(resizeCmd, sizesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runResize(ctx context.Context, args []string, f resizeFlags) error {
	settings, err := buildSettings(f)
	if err != nil {
		return err
	}

	files, err := resize.ExpandImagePaths(args, resize.NewExtensions())
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no supported images found")
	}

	var store resize.MetadataStore
	if settings.CopyMetadata {
		et, err := exiftool.NewExiftool()
		if err != nil {
			logger.Warn("exiftool unavailable, only codec metadata will be kept", "error", err)
		} else {
			defer et.Close()
			store = exifmeta.NewMetadataStore(et)
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	progress := make(chan resize.ProgressEvent, f.maxConcurrent*2+1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for event := range progress {
			if event.Stage == "done" {
				logger.Debug("Progress", "current", event.Current, "total", event.Total, "file", event.File)
			}
		}
	}()

	logger.Info("Starting resize", "files", len(files), "size", settings.SelectedSize.Name, "output", f.output)
	batch := resize.NewBatch(resize.NewResizer(codec.NewCodec(), store))
	results, batchErr := batch.ResizeFiles(ctx, files, f.output, settings, resize.BatchOptions{
		MaxConcurrency: f.maxConcurrent,
		ProgressChan:   progress,
	})
	close(progress)
	wg.Wait()

	if f.bucket != "" {
		if err := publishResults(ctx, results, f); err != nil {
			return err
		}
	}
	if batchErr != nil {
		return batchErr
	}

	logger.Info("Resize completed successfully", "files", len(files))
	return nil
}

// publishResults uploads every output that was written.
func publishResults(ctx context.Context, results []*resize.Result, f resizeFlags) error {
	var outputs []string
	for _, result := range results {
		if result != nil {
			outputs = append(outputs, result.Output)
		}
	}

	publisher, err := publish.NewS3Publisher(ctx, f.bucket, f.prefix)
	if err != nil {
		return fmt.Errorf("failed to initialise publisher: %w", err)
	}
	return publisher.PublishFiles(ctx, outputs, f.maxConcurrent)
}

// buildSettings layers the flags over the default settings.
func buildSettings(f resizeFlags) (resize.Settings, error) {
	settings := resize.DefaultSettings()

	size, err := selectSize(f)
	if err != nil {
		return settings, err
	}
	settings.SelectedSize = size

	fallback, err := resize.ParseFormat(f.fallback)
	if err != nil {
		return settings, err
	}
	if fallback == resize.FormatWebP || fallback == resize.FormatICO {
		return settings, fmt.Errorf("fallback format %s cannot be written", fallback)
	}

	if f.quality < 1 || f.quality > 100 {
		return settings, fmt.Errorf("invalid quality %d (must be 1-100)", f.quality)
	}
	if f.maxConcurrent < 1 {
		return settings, fmt.Errorf("invalid max-concurrent %d (must be at least 1)", f.maxConcurrent)
	}
	if f.replace && f.output != "" {
		return settings, fmt.Errorf("--replace writes next to the original and cannot be combined with --output")
	}

	settings.FileNameTemplate = f.template
	settings.KeepDateModified = f.keepDate
	settings.Replace = f.replace
	settings.FallbackEncoder = fallback
	settings.IgnoreOrientation = f.ignoreOrientation
	settings.ShrinkOnly = f.shrinkOnly
	settings.JPEGQuality = f.quality
	settings.CopyMetadata = f.metadata
	return settings, nil
}

// selectSize returns the custom size when --width or --height is given,
// otherwise the named preset. --unit and --fit override either.
func selectSize(f resizeFlags) (resize.Size, error) {
	var size resize.Size
	if f.width != 0 || f.height != 0 {
		size = resize.Size{Name: "Custom", Width: f.width, Height: f.height, Unit: resize.Pixel, Fit: resize.FitContain}
	} else {
		preset, ok := resize.LookupSize(f.size)
		if !ok {
			return size, fmt.Errorf("unknown size: %s", f.size)
		}
		size = preset
	}

	if f.unit != "" {
		unit, err := resize.ParseUnit(f.unit)
		if err != nil {
			return size, err
		}
		size.Unit = unit
	}
	if f.fit != "" {
		fit, err := resize.ParseFit(f.fit)
		if err != nil {
			return size, err
		}
		size.Fit = fit
	}
	return size, nil
}
