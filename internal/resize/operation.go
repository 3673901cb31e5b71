package resize

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/acm19/resizer/internal/logger"
)

// Codec decodes and encodes image containers. Pixel resampling is not its job.
type Codec interface {
	EncoderCapabilities
	// Decode reads every frame of the image at path.
	Decode(path string) (*SourceImage, error)
	// Encode writes frames, in order, as a single file of the given format.
	Encode(w io.Writer, frames []Frame, format Format, opts EncodeOptions) error
}

// MetadataStore reads and writes file-level tags that the codec does not carry.
type MetadataStore interface {
	// ReadMetadata returns the tags of the file at path.
	ReadMetadata(path string) (*Metadata, error)
	// WriteMetadata writes the tags it understands from md onto the file at path.
	WriteMetadata(path string, md *Metadata) error
}

// Resizer runs single resize operations.
type Resizer interface {
	// Resize resizes sourcePath into outputDir (the source directory when empty).
	//
	// The operation runs Open, ResolveSize, TransformFrames, SelectEncoder,
	// BuildPath, Write and then, depending on settings, CopyTimestamp and
	// DeleteOriginal. Failures are returned as *OperationError wrapping one of
	// ErrSourceUnreadable, ErrInvalidGeometry, ErrUnsupportedFormat or
	// ErrWriteFailure; no output is left behind on failure and the original is
	// only removed after the output is fully written.
	Resize(sourcePath, outputDir string, settings Settings) (*Result, error)
}

// resizer implements the Resizer interface
type resizer struct {
	codec       Codec
	metadata    MetadataStore
	sizes       SizeResolver
	transformer FrameTransformer
	encoders    EncoderSelector
	names       FileNameBuilder
}

// NewResizer creates a Resizer. metadata may be nil, in which case only the
// metadata carried by the codec is preserved.
func NewResizer(codec Codec, metadata MetadataStore) Resizer {
	return &resizer{
		codec:       codec,
		metadata:    metadata,
		sizes:       NewSizeResolver(),
		transformer: NewFrameTransformer(nil),
		encoders:    NewEncoderSelector(codec),
		names:       NewFileNameBuilder(),
	}
}

// Resize resizes a single file.
func (r *resizer) Resize(sourcePath, outputDir string, settings Settings) (*Result, error) {
	logger.Debug("Opening source", "path", sourcePath)
	info, err := isValidFile(sourcePath)
	if err != nil {
		return nil, opError(sourcePath, ErrSourceUnreadable, err)
	}
	src, err := r.codec.Decode(sourcePath)
	if err != nil {
		return nil, opError(sourcePath, ErrSourceUnreadable, err)
	}
	if src == nil || len(src.Frames) == 0 {
		return nil, opError(sourcePath, ErrSourceUnreadable, errors.New("image has no frames"))
	}
	if settings.CopyMetadata && r.metadata != nil {
		r.mergeFileMetadata(sourcePath, &src.Frames[0])
	}

	g, err := r.sizes.Resolve(src.Frames[0], settings)
	if err != nil {
		return nil, &OperationError{Path: sourcePath, Err: err}
	}
	logger.Debug("Resolved geometry", "path", sourcePath, "geometry", g.String(), "fit", g.Fit.String(), "frames", len(src.Frames))

	frames := make([]Frame, len(src.Frames))
	for i, frame := range src.Frames {
		frames[i] = r.transformer.Transform(frame, g)
	}

	format, err := r.encoders.Select(src.Format, settings.FallbackEncoder, len(frames))
	if err != nil {
		return nil, &OperationError{Path: sourcePath, Err: err}
	}
	if format != src.Format {
		logger.Debug("Using fallback encoder", "path", sourcePath, "source_format", src.Format, "format", format)
	}

	dest, inPlace, err := r.destination(sourcePath, outputDir, g, format, settings)
	if err != nil {
		return nil, opError(sourcePath, ErrWriteFailure, err)
	}

	perm := fs.FileMode(0644)
	if inPlace {
		perm = info.Mode().Perm()
	}
	if err := r.write(dest, frames, format, perm, settings, info.ModTime()); err != nil {
		if !inPlace {
			os.Remove(dest)
		}
		return nil, opError(sourcePath, ErrWriteFailure, err)
	}

	result := &Result{
		Source:   sourcePath,
		Output:   dest,
		Geometry: g,
		Frames:   len(frames),
		Format:   format,
	}

	if settings.Replace {
		if !inPlace {
			if err := os.Remove(sourcePath); err != nil {
				return result, opError(sourcePath, ErrWriteFailure, fmt.Errorf("output written to %s but original not removed: %w", dest, err))
			}
		}
		result.Replaced = true
	}

	logger.Info("Resized image", "source", sourcePath, "output", dest, "size", g.String(), "frames", len(frames), "format", format)
	return result, nil
}

// mergeFileMetadata adds the file-level tags to the first frame's bag.
func (r *resizer) mergeFileMetadata(sourcePath string, frame *Frame) {
	md, err := r.metadata.ReadMetadata(sourcePath)
	if err != nil {
		logger.Warn("Failed to read metadata, continuing without it", "file", sourcePath, "error", err)
		return
	}
	if frame.Metadata == nil {
		frame.Metadata = NewMetadata()
	}
	frame.Metadata.Merge(md)
}

// destination reserves the output path. inPlace is set when the output
// replaces the source file itself.
func (r *resizer) destination(sourcePath, outputDir string, g Geometry, format Format, settings Settings) (string, bool, error) {
	if settings.Replace {
		dir := filepath.Dir(sourcePath)
		stem := baseName(sourcePath)
		ext := outputExtension(sourcePath, format)
		if samePath(filepath.Join(dir, stem+ext), sourcePath) {
			return sourcePath, true, nil
		}
		path, err := r.names.Reserve(dir, stem, ext)
		return path, false, err
	}

	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return "", false, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	path, err := r.names.Build(sourcePath, g, settings.SelectedSize.Name, settings.FileNameTemplate, outputDir, format)
	return path, false, err
}

// write encodes frames to a temporary file next to dest and renames it into
// place, so dest is never observed half written.
func (r *resizer) write(dest string, frames []Frame, format Format, perm fs.FileMode, settings Settings, modTime time.Time) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+baseName(dest)+"-*"+filepath.Ext(dest))
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := r.codec.Encode(tmp, frames, format, EncodeOptions{JPEGQuality: settings.JPEGQuality}); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		logger.Debug("Failed to set file mode", "file", tmpPath, "error", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if settings.CopyMetadata && r.metadata != nil && frames[0].Metadata.Len() > 0 {
		if err := r.metadata.WriteMetadata(tmpPath, frames[0].Metadata); err != nil {
			logger.Warn("Failed to write metadata", "file", dest, "error", err)
		}
	}

	if settings.KeepDateModified {
		if err := os.Chtimes(tmpPath, time.Now(), modTime); err != nil {
			return fmt.Errorf("failed to preserve modification time: %w", err)
		}
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}
