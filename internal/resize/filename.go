package resize

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// maxUniqueAttempts bounds the " (N)" search in a single directory.
const maxUniqueAttempts = 100000

// FileNameBuilder names output files.
type FileNameBuilder interface {
	// Build expands template for the source and geometry and reserves a
	// non-colliding path in outputDir (the source directory when empty).
	//
	// The returned path exists as an empty placeholder owned by the caller, who
	// must either replace it with the real output or remove it.
	Build(sourcePath string, g Geometry, sizeName, template, outputDir string, format Format) (string, error)
	// Reserve claims dir/stem+ext, or the first free "stem (N)"+ext with N starting at 1.
	Reserve(dir, stem, ext string) (string, error)
}

// fileNameBuilder implements the FileNameBuilder interface
type fileNameBuilder struct{}

// NewFileNameBuilder creates a new FileNameBuilder instance
func NewFileNameBuilder() FileNameBuilder {
	return &fileNameBuilder{}
}

// Build expands the template and reserves a unique output path.
func (b *fileNameBuilder) Build(sourcePath string, g Geometry, sizeName, template, outputDir string, format Format) (string, error) {
	dir := outputDir
	if dir == "" {
		dir = filepath.Dir(sourcePath)
	}
	if template == "" {
		template = DefaultFileNameTemplate
	}

	stem := sanitizeFileName(ExpandTemplate(template, TemplateValues(sourcePath, sizeName, g)))
	if stem == "" {
		stem = baseName(sourcePath)
	}
	return b.Reserve(dir, stem, outputExtension(sourcePath, format))
}

// Reserve claims the first free candidate name using an exclusive create, so two
// operations racing for the same name never share it.
func (b *fileNameBuilder) Reserve(dir, stem, ext string) (string, error) {
	for n := 0; n < maxUniqueAttempts; n++ {
		name := stem + ext
		if n > 0 {
			name = fmt.Sprintf("%s (%d)%s", stem, n, ext)
		}
		candidate := filepath.Join(dir, name)

		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			if err := f.Close(); err != nil {
				os.Remove(candidate)
				return "", err
			}
			return candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("failed to reserve %s: %w", candidate, err)
		}
	}
	return "", fmt.Errorf("no free file name for %s%s in %s", stem, ext, dir)
}

// TemplateValues returns the substitution values for tokens %1..%6:
// base name, size name, width, height, width, height.
func TemplateValues(sourcePath, sizeName string, g Geometry) []string {
	width := strconv.Itoa(g.Width)
	height := strconv.Itoa(g.Height)
	return []string{baseName(sourcePath), sizeName, width, height, width, height}
}

// ExpandTemplate replaces %N (N=1..9) with values[N-1] in a single pass.
// Tokens without a value are kept verbatim.
func ExpandTemplate(template string, values []string) string {
	var sb strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c == '%' && i+1 < len(template) {
			d := template[i+1]
			if d >= '1' && d <= '9' {
				if idx := int(d - '1'); idx < len(values) {
					sb.WriteString(values[idx])
					i++
					continue
				}
			}
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// sanitizeFileName replaces characters that are invalid in file names.
func sanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
}

// outputExtension keeps the source extension when it belongs to format,
// otherwise returns the format's canonical extension.
func outputExtension(sourcePath string, format Format) string {
	ext := filepath.Ext(sourcePath)
	if format.HasExtension(ext) {
		return ext
	}
	return format.Extension()
}

func baseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
