package resize

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
)

// fakeFile is the on-disk form used by fakeCodec: a JSON description of the
// frames instead of real pixels.
type fakeFile struct {
	Format string      `json:"format"`
	Frames []fakeFrame `json:"frames"`
}

type fakeFrame struct {
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	DpiX        float64     `json:"dpi_x"`
	DpiY        float64     `json:"dpi_y"`
	Orientation int         `json:"orientation,omitempty"`
	Metadata    [][2]string `json:"metadata,omitempty"`
}

// fakeCodec implements Codec. maxFrames maps a format to the number of frames
// it can hold; -1 means unlimited and a missing entry means it cannot be encoded.
type fakeCodec struct {
	maxFrames map[Format]int
}

func newFakeCodec() *fakeCodec {
	return &fakeCodec{maxFrames: map[Format]int{
		FormatJPEG: 1,
		FormatPNG:  1,
		FormatTIFF: 1,
		FormatBMP:  1,
		FormatGIF:  -1,
	}}
}

func (c *fakeCodec) CanEncode(format Format, frameCount int) bool {
	n, ok := c.maxFrames[format]
	if !ok || frameCount < 1 {
		return false
	}
	return n < 0 || frameCount <= n
}

func (c *fakeCodec) Decode(path string) (*SourceImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ff fakeFile
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("not an image: %w", err)
	}

	src := &SourceImage{Format: Format(ff.Format)}
	for _, f := range ff.Frames {
		md := NewMetadata()
		for _, kv := range f.Metadata {
			md.Set(kv[0], kv[1])
		}
		src.Frames = append(src.Frames, Frame{
			Image:       image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height)),
			DpiX:        f.DpiX,
			DpiY:        f.DpiY,
			Orientation: Orientation(f.Orientation),
			Metadata:    md,
		})
	}
	return src, nil
}

func (c *fakeCodec) Encode(w io.Writer, frames []Frame, format Format, opts EncodeOptions) error {
	if !c.CanEncode(format, len(frames)) {
		return fmt.Errorf("cannot encode %s", format)
	}
	ff := fakeFile{Format: string(format)}
	for _, f := range frames {
		ff.Frames = append(ff.Frames, toFakeFrame(f))
	}
	return json.NewEncoder(w).Encode(ff)
}

func toFakeFrame(f Frame) fakeFrame {
	out := fakeFrame{
		Width:       f.Width(),
		Height:      f.Height(),
		DpiX:        f.DpiX,
		DpiY:        f.DpiY,
		Orientation: int(f.Orientation),
	}
	f.Metadata.Range(func(key string, value any) bool {
		out.Metadata = append(out.Metadata, [2]string{key, fmt.Sprint(value)})
		return true
	})
	return out
}

// fakeMetadataStore implements MetadataStore in memory.
type fakeMetadataStore struct {
	mu      sync.Mutex
	read    map[string]*Metadata
	written map[string]*Metadata
	readErr error
}

func newFakeMetadataStore() *fakeMetadataStore {
	return &fakeMetadataStore{
		read:    make(map[string]*Metadata),
		written: make(map[string]*Metadata),
	}
}

func (s *fakeMetadataStore) ReadMetadata(path string) (*Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.read[filepath.Base(path)].Clone(), nil
}

func (s *fakeMetadataStore) WriteMetadata(path string, md *Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written[filepath.Ext(path)] = md.Clone()
	return nil
}

// Helper functions

func writeFakeImage(t *testing.T, dir, name string, format Format, frames ...fakeFrame) string {
	t.Helper()
	path := filepath.Join(dir, name)
	data, err := json.Marshal(fakeFile{Format: string(format), Frames: frames})
	if err != nil {
		t.Fatalf("Failed to marshal fake image: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write fake image %s: %v", path, err)
	}
	return path
}

func readFakeImage(t *testing.T, path string) fakeFile {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	var ff fakeFile
	if err := json.Unmarshal(data, &ff); err != nil {
		t.Fatalf("Output %s is not a fake image: %v", path, err)
	}
	return ff
}

func createFile(t *testing.T, dir, filename string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte{}, 0644); err != nil {
		t.Fatalf("Failed to create file %s: %v", path, err)
	}
	return path
}

func assertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected file to exist at %s", path)
	}
}

func assertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected file to not exist at %s", path)
	}
}

// fileNames lists the names in dir, sorted.
func fileNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read directory %s: %v", dir, err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names
}

func testSettings(modify func(s *Settings)) Settings {
	s := Settings{
		SelectedSize:     Size{Name: "Test", Width: 96, Height: 96, Unit: Pixel, Fit: FitContain},
		FileNameTemplate: DefaultFileNameTemplate,
		JPEGQuality:      90,
		CopyMetadata:     true,
	}
	if modify != nil {
		modify(&s)
	}
	return s
}

func testFrame(w, h int) Frame {
	return Frame{Image: image.NewNRGBA(image.Rect(0, 0, w, h)), DpiX: 96, DpiY: 96}
}
