package resize

import "fmt"

// EncoderCapabilities reports which formats can be written.
type EncoderCapabilities interface {
	// CanEncode reports whether format can hold frameCount frames.
	CanEncode(format Format, frameCount int) bool
}

// EncoderSelector chooses the output format.
type EncoderSelector interface {
	// Select returns source when it can be re-encoded, otherwise fallback when
	// one is configured and viable, otherwise ErrUnsupportedFormat.
	Select(source, fallback Format, frameCount int) (Format, error)
}

// encoderSelector implements the EncoderSelector interface
type encoderSelector struct {
	caps EncoderCapabilities
}

// NewEncoderSelector creates an EncoderSelector over caps.
func NewEncoderSelector(caps EncoderCapabilities) EncoderSelector {
	return &encoderSelector{caps: caps}
}

// Select chooses the output format.
func (s *encoderSelector) Select(source, fallback Format, frameCount int) (Format, error) {
	if source != "" && s.caps.CanEncode(source, frameCount) {
		return source, nil
	}
	if fallback == "" {
		return "", fmt.Errorf("%w: cannot encode %s and no fallback configured", ErrUnsupportedFormat, source)
	}
	if !s.caps.CanEncode(fallback, frameCount) {
		return "", fmt.Errorf("%w: cannot encode %s or fallback %s with %d frame(s)", ErrUnsupportedFormat, source, fallback, frameCount)
	}
	return fallback, nil
}
