// Package exifmeta carries file-level metadata tags across a resize using exiftool.
package exifmeta

import (
	"fmt"
	"path/filepath"
	"slices"
	"sort"

	"github.com/acm19/resizer/internal/logger"
	"github.com/acm19/resizer/internal/resize"
	"github.com/barasher/go-exiftool"
)

// CopiedTags are the descriptive tags copied from the source to the output.
// Structural tags (dimensions, compression, colour profile offsets) are
// left to the encoder.
var CopiedTags = []string{
	"Artist",
	"Author",
	"By-line",
	"Caption-Abstract",
	"City",
	"Copyright",
	"CopyrightNotice",
	"Country",
	"CreateDate",
	"Creator",
	"DateTimeOriginal",
	"Description",
	"GPSAltitude",
	"GPSAltitudeRef",
	"GPSLatitude",
	"GPSLatitudeRef",
	"GPSLongitude",
	"GPSLongitudeRef",
	"Headline",
	"ImageDescription",
	"Keywords",
	"LensModel",
	"Make",
	"Model",
	"Orientation",
	"Rating",
	"Rights",
	"Software",
	"Subject",
	"Title",
	"UserComment",
	"XPAuthor",
	"XPComment",
	"XPKeywords",
	"XPSubject",
	"XPTitle",
}

// exiftoolStore implements the resize.MetadataStore interface
type exiftoolStore struct {
	et *exiftool.Exiftool
}

// NewMetadataStore creates a MetadataStore backed by a running exiftool.
// The caller owns et and closes it.
func NewMetadataStore(et *exiftool.Exiftool) resize.MetadataStore {
	return &exiftoolStore{et: et}
}

// ReadMetadata returns the copied tags present in the file, in sorted order.
func (s *exiftoolStore) ReadMetadata(path string) (*resize.Metadata, error) {
	if s.et == nil {
		return nil, fmt.Errorf("exiftool not initialised")
	}

	fileInfos := s.et.ExtractMetadata(path)

	if len(fileInfos) == 0 {
		return nil, fmt.Errorf("no metadata found")
	}
	fileInfo := fileInfos[0]
	if fileInfo.Err != nil {
		return nil, fileInfo.Err
	}

	keys := make([]string, 0, len(fileInfo.Fields))
	for key := range fileInfo.Fields {
		if slices.Contains(CopiedTags, key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	md := resize.NewMetadata()
	for _, key := range keys {
		md.Set(key, fileInfo.Fields[key])
	}
	logger.Debug("Read metadata", "file", filepath.Base(path), "tags", md.Len())
	return md, nil
}

// WriteMetadata writes the copied tags present in md onto the file at path.
// Keys outside CopiedTags are ignored.
func (s *exiftoolStore) WriteMetadata(path string, md *resize.Metadata) error {
	if s.et == nil {
		return fmt.Errorf("exiftool not initialised")
	}

	fm := exiftool.FileMetadata{File: path, Fields: make(map[string]interface{})}
	md.Range(func(key string, value any) bool {
		if !slices.Contains(CopiedTags, key) {
			return true
		}
		if values, ok := stringList(value); ok {
			fm.SetStrings(key, values)
		} else {
			fm.SetString(key, fmt.Sprint(value))
		}
		return true
	})
	if len(fm.Fields) == 0 {
		return nil
	}

	files := []exiftool.FileMetadata{fm}
	s.et.WriteMetadata(files)

	if files[0].Err != nil {
		return fmt.Errorf("failed to write metadata to %s: %w", filepath.Base(path), files[0].Err)
	}
	logger.Debug("Wrote metadata", "file", filepath.Base(path), "tags", len(fm.Fields))
	return nil
}

// stringList converts list values as returned by exiftool.
func stringList(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []interface{}:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = fmt.Sprint(item)
		}
		return out, true
	}
	return nil, false
}
