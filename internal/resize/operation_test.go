package resize

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func squareFrame(size int) fakeFrame {
	return fakeFrame{Width: size, Height: size, DpiX: 96, DpiY: 96}
}

func TestResize_DefaultTemplate(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	src := writeFakeImage(t, srcDir, "Test.jpg", FormatJPEG, squareFrame(192))

	result, err := NewResizer(newFakeCodec(), nil).Resize(src, outDir, testSettings(nil))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	want := filepath.Join(outDir, "Test (Test).jpg")
	if result.Output != want {
		t.Errorf("Expected output %s, got %s", want, result.Output)
	}
	if result.Geometry != (Geometry{Width: 96, Height: 96, Fit: FitContain}) {
		t.Errorf("Unexpected geometry %v", result.Geometry)
	}
	out := readFakeImage(t, want)
	if out.Frames[0].Width != 96 || out.Frames[0].Height != 96 {
		t.Errorf("Expected 96x96 output, got %dx%d", out.Frames[0].Width, out.Frames[0].Height)
	}
	assertFileExists(t, src)
	if names := fileNames(t, outDir); !slices.Equal(names, []string{"Test (Test).jpg"}) {
		t.Errorf("Expected only the output in %s, got %v", outDir, names)
	}
}

func TestResize_DefaultsToSourceDirectory(t *testing.T) {
	dir := t.TempDir()
	src := writeFakeImage(t, dir, "Test.jpg", FormatJPEG, squareFrame(192))

	if _, err := NewResizer(newFakeCodec(), nil).Resize(src, "", testSettings(nil)); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if names := fileNames(t, dir); !slices.Equal(names, []string{"Test (Test).jpg", "Test.jpg"}) {
		t.Errorf("Unexpected directory contents: %v", names)
	}
}

func TestResize_CreatesOutputDirectory(t *testing.T) {
	src := writeFakeImage(t, t.TempDir(), "Test.jpg", FormatJPEG, squareFrame(192))
	outDir := filepath.Join(t.TempDir(), "nested", "out")

	if _, err := NewResizer(newFakeCodec(), nil).Resize(src, outDir, testSettings(nil)); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	assertFileExists(t, filepath.Join(outDir, "Test (Test).jpg"))
}

func TestResize_Uniquifies(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	src := writeFakeImage(t, srcDir, "Test.jpg", FormatJPEG, squareFrame(192))
	r := NewResizer(newFakeCodec(), nil)

	for i := 0; i < 3; i++ {
		if _, err := r.Resize(src, outDir, testSettings(nil)); err != nil {
			t.Fatalf("Resize %d failed: %v", i, err)
		}
	}

	want := []string{"Test (Test) (1).jpg", "Test (Test) (2).jpg", "Test (Test).jpg"}
	if names := fileNames(t, outDir); !slices.Equal(names, want) {
		t.Errorf("Expected %v, got %v", want, names)
	}
}

func TestResize_CustomTemplate(t *testing.T) {
	outDir := t.TempDir()
	src := writeFakeImage(t, t.TempDir(), "Test.jpg", FormatJPEG, squareFrame(192))

	settings := testSettings(func(s *Settings) { s.FileNameTemplate = "%1_%2_%3_%4_%5_%6" })
	if _, err := NewResizer(newFakeCodec(), nil).Resize(src, outDir, settings); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	assertFileExists(t, filepath.Join(outDir, "Test_Test_96_96_96_96.jpg"))
}

func TestResize_Fallback(t *testing.T) {
	outDir := t.TempDir()
	src := writeFakeImage(t, t.TempDir(), "Test.ico", FormatICO, squareFrame(192))

	settings := testSettings(func(s *Settings) { s.FallbackEncoder = FormatTIFF })
	result, err := NewResizer(newFakeCodec(), nil).Resize(src, outDir, settings)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Format != FormatTIFF {
		t.Errorf("Expected tiff, got %s", result.Format)
	}
	want := filepath.Join(outDir, "Test (Test).tiff")
	assertFileExists(t, want)
	if out := readFakeImage(t, want); out.Format != string(FormatTIFF) {
		t.Errorf("Expected tiff content, got %s", out.Format)
	}
}

func TestResize_UnsupportedWithoutFallback(t *testing.T) {
	outDir := t.TempDir()
	src := writeFakeImage(t, t.TempDir(), "Test.ico", FormatICO, squareFrame(192))

	_, err := NewResizer(newFakeCodec(), nil).Resize(src, outDir, testSettings(nil))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Expected ErrUnsupportedFormat, got: %v", err)
	}
	var opErr *OperationError
	if !errors.As(err, &opErr) || opErr.Path != src {
		t.Errorf("Expected OperationError for %s, got: %v", src, err)
	}
	if names := fileNames(t, outDir); len(names) != 0 {
		t.Errorf("Expected no output, got %v", names)
	}
}

func TestResize_MultiFrame(t *testing.T) {
	outDir := t.TempDir()
	src := writeFakeImage(t, t.TempDir(), "Test.gif", FormatGIF, squareFrame(192), squareFrame(192))

	result, err := NewResizer(newFakeCodec(), nil).Resize(src, outDir, testSettings(nil))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Frames != 2 {
		t.Errorf("Expected 2 frames, got %d", result.Frames)
	}

	out := readFakeImage(t, filepath.Join(outDir, "Test (Test).gif"))
	if len(out.Frames) != 2 {
		t.Fatalf("Expected 2 frames in output, got %d", len(out.Frames))
	}
	for i, f := range out.Frames {
		if f.Width != 96 {
			t.Errorf("Frame %d: expected width 96, got %d", i, f.Width)
		}
	}
}

func TestResize_MultiFrameFallbackMustHoldAllFrames(t *testing.T) {
	outDir := t.TempDir()
	src := writeFakeImage(t, t.TempDir(), "Test.webp", FormatWebP, squareFrame(192), squareFrame(192))

	settings := testSettings(func(s *Settings) { s.FallbackEncoder = FormatPNG })
	_, err := NewResizer(newFakeCodec(), nil).Resize(src, outDir, settings)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got: %v", err)
	}
}

func TestResize_FitModes(t *testing.T) {
	tests := []struct {
		fit        Fit
		wantWidth  int
		wantHeight int
	}{
		{FitContain, 96, 48},
		{FitFill, 96, 96},
		{FitStretch, 96, 96},
	}

	for _, tt := range tests {
		t.Run(tt.fit.String(), func(t *testing.T) {
			outDir := t.TempDir()
			src := writeFakeImage(t, t.TempDir(), "Test.png", FormatPNG, fakeFrame{Width: 192, Height: 96, DpiX: 96, DpiY: 96})

			settings := testSettings(func(s *Settings) { s.SelectedSize.Fit = tt.fit })
			result, err := NewResizer(newFakeCodec(), nil).Resize(src, outDir, settings)
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			out := readFakeImage(t, result.Output)
			if out.Frames[0].Width != tt.wantWidth || out.Frames[0].Height != tt.wantHeight {
				t.Errorf("Expected %dx%d, got %dx%d", tt.wantWidth, tt.wantHeight, out.Frames[0].Width, out.Frames[0].Height)
			}
		})
	}
}

func TestResize_IgnoresOrientation(t *testing.T) {
	outDir := t.TempDir()
	src := writeFakeImage(t, t.TempDir(), "Test.png", FormatPNG, fakeFrame{Width: 192, Height: 96, DpiX: 96, DpiY: 96})

	settings := testSettings(func(s *Settings) {
		s.SelectedSize.Width = 96
		s.SelectedSize.Height = 192
		s.IgnoreOrientation = true
	})
	result, err := NewResizer(newFakeCodec(), nil).Resize(src, outDir, settings)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	out := readFakeImage(t, result.Output)
	if out.Frames[0].Width != 192 || out.Frames[0].Height != 96 {
		t.Errorf("Expected 192x96, got %dx%d", out.Frames[0].Width, out.Frames[0].Height)
	}
}

func TestResize_ShrinkOnly(t *testing.T) {
	outDir := t.TempDir()
	src := writeFakeImage(t, t.TempDir(), "Test.png", FormatPNG, squareFrame(48))

	settings := testSettings(func(s *Settings) { s.ShrinkOnly = true })
	result, err := NewResizer(newFakeCodec(), nil).Resize(src, outDir, settings)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	out := readFakeImage(t, result.Output)
	if out.Frames[0].Width != 48 || out.Frames[0].Height != 48 {
		t.Errorf("Expected 48x48, got %dx%d", out.Frames[0].Width, out.Frames[0].Height)
	}
}

func TestResize_InchUsesResolution(t *testing.T) {
	outDir := t.TempDir()
	src := writeFakeImage(t, t.TempDir(), "Test.jpg", FormatJPEG, fakeFrame{Width: 400, Height: 400, DpiX: 72, DpiY: 72})

	settings := testSettings(func(s *Settings) {
		s.SelectedSize = Size{Name: "Test", Width: 1, Height: 1, Unit: Inch, Fit: FitContain}
	})
	result, err := NewResizer(newFakeCodec(), nil).Resize(src, outDir, settings)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	out := readFakeImage(t, result.Output)
	if out.Frames[0].Width != 72 {
		t.Errorf("Expected width 72, got %d", out.Frames[0].Width)
	}
	if out.Frames[0].DpiX != 72 {
		t.Errorf("Expected DPI to be kept, got %v", out.Frames[0].DpiX)
	}
}

func TestResize_ExifOrientation(t *testing.T) {
	outDir := t.TempDir()
	// Stored landscape, displayed portrait.
	src := writeFakeImage(t, t.TempDir(), "Test.jpg", FormatJPEG, fakeFrame{Width: 192, Height: 96, DpiX: 96, DpiY: 96, Orientation: 6})

	settings := testSettings(func(s *Settings) {
		s.SelectedSize.Width = 96
		s.SelectedSize.Height = 48
	})
	result, err := NewResizer(newFakeCodec(), nil).Resize(src, outDir, settings)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	out := readFakeImage(t, result.Output)
	if out.Frames[0].Width != 48 || out.Frames[0].Height != 24 {
		t.Errorf("Expected stored 48x24, got %dx%d", out.Frames[0].Width, out.Frames[0].Height)
	}
	if out.Frames[0].Orientation != 6 {
		t.Errorf("Expected orientation 6 to be kept, got %d", out.Frames[0].Orientation)
	}
}

func TestResize_KeepDateModified(t *testing.T) {
	outDir := t.TempDir()
	src := writeFakeImage(t, t.TempDir(), "Test.jpg", FormatJPEG, squareFrame(192))
	modTime := time.Date(2020, 5, 17, 10, 30, 0, 0, time.UTC)
	if err := os.Chtimes(src, modTime, modTime); err != nil {
		t.Fatalf("Failed to set source time: %v", err)
	}

	settings := testSettings(func(s *Settings) { s.KeepDateModified = true })
	result, err := NewResizer(newFakeCodec(), nil).Resize(src, outDir, settings)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	info, err := os.Stat(result.Output)
	if err != nil {
		t.Fatalf("Failed to stat output: %v", err)
	}
	if !info.ModTime().Equal(modTime) {
		t.Errorf("Expected mtime %v, got %v", modTime, info.ModTime())
	}
}

func TestResize_DoesNotKeepDateByDefault(t *testing.T) {
	outDir := t.TempDir()
	src := writeFakeImage(t, t.TempDir(), "Test.jpg", FormatJPEG, squareFrame(192))
	modTime := time.Date(2020, 5, 17, 10, 30, 0, 0, time.UTC)
	if err := os.Chtimes(src, modTime, modTime); err != nil {
		t.Fatalf("Failed to set source time: %v", err)
	}

	result, err := NewResizer(newFakeCodec(), nil).Resize(src, outDir, testSettings(nil))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	info, err := os.Stat(result.Output)
	if err != nil {
		t.Fatalf("Failed to stat output: %v", err)
	}
	if info.ModTime().Equal(modTime) {
		t.Error("Expected output mtime to be the write time")
	}
}

func TestResize_ReplaceInPlace(t *testing.T) {
	dir := t.TempDir()
	src := writeFakeImage(t, dir, "Test.jpg", FormatJPEG, squareFrame(192))

	settings := testSettings(func(s *Settings) { s.Replace = true })
	result, err := NewResizer(newFakeCodec(), nil).Resize(src, "", settings)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !result.Replaced || result.Output != src {
		t.Errorf("Expected in-place replacement of %s, got %+v", src, result)
	}
	if names := fileNames(t, dir); !slices.Equal(names, []string{"Test.jpg"}) {
		t.Errorf("Expected a single file, got %v", names)
	}
	if out := readFakeImage(t, src); out.Frames[0].Width != 96 {
		t.Errorf("Expected width 96, got %d", out.Frames[0].Width)
	}
}

func TestResize_ReplaceIgnoresOutputDirectory(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()
	src := writeFakeImage(t, dir, "Test.jpg", FormatJPEG, squareFrame(192))

	settings := testSettings(func(s *Settings) { s.Replace = true })
	if _, err := NewResizer(newFakeCodec(), nil).Resize(src, outDir, settings); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if names := fileNames(t, outDir); len(names) != 0 {
		t.Errorf("Expected output directory to stay empty, got %v", names)
	}
}

func TestResize_ReplaceWithFallback(t *testing.T) {
	dir := t.TempDir()
	src := writeFakeImage(t, dir, "Test.ico", FormatICO, squareFrame(192))

	settings := testSettings(func(s *Settings) {
		s.Replace = true
		s.FallbackEncoder = FormatPNG
	})
	result, err := NewResizer(newFakeCodec(), nil).Resize(src, "", settings)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Output != filepath.Join(dir, "Test.png") {
		t.Errorf("Expected Test.png, got %s", result.Output)
	}
	assertFileNotExists(t, src)
	if names := fileNames(t, dir); !slices.Equal(names, []string{"Test.png"}) {
		t.Errorf("Expected a single file, got %v", names)
	}
}

func TestResize_ReplaceWithFallbackUniquifies(t *testing.T) {
	dir := t.TempDir()
	src := writeFakeImage(t, dir, "Test.ico", FormatICO, squareFrame(192))
	createFile(t, dir, "Test.png")

	settings := testSettings(func(s *Settings) {
		s.Replace = true
		s.FallbackEncoder = FormatPNG
	})
	result, err := NewResizer(newFakeCodec(), nil).Resize(src, "", settings)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if filepath.Base(result.Output) != "Test (1).png" {
		t.Errorf("Expected Test (1).png, got %s", result.Output)
	}
	assertFileNotExists(t, src)
}

func TestResize_CopiesMetadata(t *testing.T) {
	outDir := t.TempDir()
	frame := squareFrame(192)
	frame.Metadata = [][2]string{{"Author", "Jane Doe"}, {"Title", "Harbour"}}
	src := writeFakeImage(t, t.TempDir(), "Test.jpg", FormatJPEG, frame)

	store := newFakeMetadataStore()
	fileTags := NewMetadata()
	fileTags.Set("Copyright", "ACME")
	store.read["Test.jpg"] = fileTags

	result, err := NewResizer(newFakeCodec(), store).Resize(src, outDir, testSettings(nil))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	out := readFakeImage(t, result.Output)
	want := [][2]string{{"Author", "Jane Doe"}, {"Title", "Harbour"}, {"Copyright", "ACME"}}
	if !slices.Equal(out.Frames[0].Metadata, want) {
		t.Errorf("Expected metadata %v, got %v", want, out.Frames[0].Metadata)
	}

	written := store.written[".jpg"]
	if written == nil {
		t.Fatal("Expected metadata to be written through the store")
	}
	if v, _ := written.Get("Copyright"); v != "ACME" {
		t.Errorf("Expected Copyright ACME, got %v", v)
	}
}

func TestResize_SkipsMetadataStoreWhenDisabled(t *testing.T) {
	outDir := t.TempDir()
	src := writeFakeImage(t, t.TempDir(), "Test.jpg", FormatJPEG, squareFrame(192))

	store := newFakeMetadataStore()
	fileTags := NewMetadata()
	fileTags.Set("Copyright", "ACME")
	store.read["Test.jpg"] = fileTags

	settings := testSettings(func(s *Settings) { s.CopyMetadata = false })
	if _, err := NewResizer(newFakeCodec(), store).Resize(src, outDir, settings); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(store.written) != 0 {
		t.Errorf("Expected no metadata writes, got %d", len(store.written))
	}
}

func TestResize_MetadataReadFailureIsNotFatal(t *testing.T) {
	outDir := t.TempDir()
	src := writeFakeImage(t, t.TempDir(), "Test.jpg", FormatJPEG, squareFrame(192))

	store := newFakeMetadataStore()
	store.readErr = errors.New("exiftool crashed")

	if _, err := NewResizer(newFakeCodec(), store).Resize(src, outDir, testSettings(nil)); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	assertFileExists(t, filepath.Join(outDir, "Test (Test).jpg"))
}

func TestResize_SourceUnreadable(t *testing.T) {
	dir := t.TempDir()
	empty := createFile(t, dir, "empty.jpg")
	if err := os.WriteFile(filepath.Join(dir, "garbage.jpg"), []byte("not an image"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(dir, "missing.jpg")},
		{"empty", empty},
		{"undecodable", filepath.Join(dir, "garbage.jpg")},
		{"directory", t.TempDir()},
	}

	r := NewResizer(newFakeCodec(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outDir := t.TempDir()
			_, err := r.Resize(tt.path, outDir, testSettings(nil))
			if !errors.Is(err, ErrSourceUnreadable) {
				t.Errorf("Expected ErrSourceUnreadable, got: %v", err)
			}
			if names := fileNames(t, outDir); len(names) != 0 {
				t.Errorf("Expected no output, got %v", names)
			}
		})
	}
}

func TestResize_InvalidGeometry(t *testing.T) {
	outDir := t.TempDir()
	src := writeFakeImage(t, t.TempDir(), "Test.jpg", FormatJPEG, squareFrame(192))

	settings := testSettings(func(s *Settings) {
		s.SelectedSize.Width = 0
		s.SelectedSize.Height = 0
	})
	_, err := NewResizer(newFakeCodec(), nil).Resize(src, outDir, settings)
	if !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("Expected ErrInvalidGeometry, got: %v", err)
	}
	if names := fileNames(t, outDir); len(names) != 0 {
		t.Errorf("Expected no output, got %v", names)
	}
}

func TestResize_OutputDirectoryIsAFile(t *testing.T) {
	dir := t.TempDir()
	src := writeFakeImage(t, dir, "Test.jpg", FormatJPEG, squareFrame(192))
	blocker := createFile(t, dir, "blocker")

	_, err := NewResizer(newFakeCodec(), nil).Resize(src, blocker, testSettings(nil))
	if !errors.Is(err, ErrWriteFailure) {
		t.Errorf("Expected ErrWriteFailure, got: %v", err)
	}
}

// failingCodec decodes like fakeCodec but fails every encode.
type failingCodec struct {
	*fakeCodec
}

func (c failingCodec) Encode(w io.Writer, frames []Frame, format Format, opts EncodeOptions) error {
	io.WriteString(w, "partial")
	return errors.New("disk on fire")
}

func TestResize_EncodeFailureLeavesNothingBehind(t *testing.T) {
	outDir := t.TempDir()
	src := writeFakeImage(t, t.TempDir(), "Test.jpg", FormatJPEG, squareFrame(192))

	_, err := NewResizer(failingCodec{newFakeCodec()}, nil).Resize(src, outDir, testSettings(nil))
	if !errors.Is(err, ErrWriteFailure) {
		t.Fatalf("Expected ErrWriteFailure, got: %v", err)
	}
	if names := fileNames(t, outDir); len(names) != 0 {
		t.Errorf("Expected no output or temporary files, got %v", names)
	}
}

func TestResize_ReplaceEncodeFailureKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	src := writeFakeImage(t, dir, "Test.jpg", FormatJPEG, squareFrame(192))

	settings := testSettings(func(s *Settings) { s.Replace = true })
	_, err := NewResizer(failingCodec{newFakeCodec()}, nil).Resize(src, "", settings)
	if !errors.Is(err, ErrWriteFailure) {
		t.Fatalf("Expected ErrWriteFailure, got: %v", err)
	}
	if out := readFakeImage(t, src); out.Frames[0].Width != 192 {
		t.Errorf("Expected original to be untouched, got width %d", out.Frames[0].Width)
	}
	if names := fileNames(t, dir); !slices.Equal(names, []string{"Test.jpg"}) {
		t.Errorf("Expected only the original, got %v", names)
	}
}
