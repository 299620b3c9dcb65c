package export

import (
	"fmt"
	"strings"

	"tinytales/internal/admin"
	"tinytales/internal/services"
	"tinytales/internal/story"
)

// FileBase names every exported artifact.
const FileBase = "tiny-cat-tale"

// Format is an export artifact kind.
type Format string

const (
	FormatPDF   Format = "pdf"
	FormatGIF   Format = "gif"
	FormatVideo Format = "video"
)

// ParseFormat validates a format name.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case FormatPDF:
		return FormatPDF, nil
	case FormatGIF:
		return FormatGIF, nil
	case FormatVideo:
		return FormatVideo, nil
	}
	return "", services.Wrap(services.ErrValidation, "export", "parse format", fmt.Sprintf("unknown export format %q", value), nil)
}

// Feature maps the format to its admin switch.
func (f Format) Feature() admin.Feature {
	switch f {
	case FormatPDF:
		return admin.FeaturePDF
	case FormatGIF:
		return admin.FeatureGIF
	default:
		return admin.FeatureVideo
	}
}

// FileName returns the artifact name for ext, for example tiny-cat-tale.webm.
func FileName(ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = "bin"
	}
	return FileBase + "." + ext
}

// Policy decides whether a feature is available to the caller.
// admin.Access satisfies it.
type Policy interface {
	Require(feature admin.Feature) error
}

// Gate refuses an export that the admin disabled, or whose illustrations
// are still loading.
func Gate(policy Policy, format Format, sentences []story.Sentence) error {
	if policy != nil {
		if err := policy.Require(format.Feature()); err != nil {
			return err
		}
	}
	if len(sentences) == 0 {
		return services.Wrap(services.ErrValidation, "export", "gate", "there is no story to export", nil)
	}
	for _, s := range sentences {
		if s.IsImageLoading && !story.IsPlaceholder(s.ImageURL) {
			return services.Wrap(services.ErrValidation, "export", "gate", "illustrations are still loading", nil)
		}
	}
	return nil
}
