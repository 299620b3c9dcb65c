package admin

import (
	"context"
	"fmt"

	"tinytales/internal/services"
	"tinytales/internal/store"
)

// Feature is a capability the admin can switch off.
type Feature string

const (
	FeatureStory        Feature = "story"
	FeatureIllustration Feature = "illustration"
	FeaturePDF          Feature = "pdf"
	FeatureGIF          Feature = "gif"
	FeatureVideo        Feature = "video"
)

// Features lists every switchable feature.
func Features() []Feature {
	return []Feature{FeatureStory, FeatureIllustration, FeaturePDF, FeatureGIF, FeatureVideo}
}

// Label is the user-facing feature name.
func (f Feature) Label() string {
	switch f {
	case FeatureStory:
		return "Story generation"
	case FeatureIllustration:
		return "Illustration generation"
	case FeaturePDF:
		return "PDF export"
	case FeatureGIF:
		return "GIF creation"
	case FeatureVideo:
		return "Video export"
	}
	return string(f)
}

// ParseFeature validates a feature name.
func ParseFeature(value string) (Feature, error) {
	for _, f := range Features() {
		if string(f) == value {
			return f, nil
		}
	}
	return "", services.Wrap(services.ErrValidation, "admin", "parse feature", fmt.Sprintf("unknown feature %q", value), nil)
}

// Access is the effective permission set for one caller.
type Access struct {
	Limits store.Limits
	User   *store.User
}

// Disabled reports whether f is off, either globally or for the user.
func (a Access) Disabled(f Feature) bool {
	if globallyDisabled(a.Limits, f) {
		return true
	}
	if a.User == nil {
		return false
	}
	switch f {
	case FeatureStory:
		return !a.User.CanGenerateStory
	case FeatureIllustration:
		return !a.User.CanGenerateIllustration
	case FeaturePDF:
		return !a.User.CanExportPDF
	case FeatureGIF:
		return !a.User.CanExportGIF
	case FeatureVideo:
		return !a.User.CanExportVideo
	}
	return false
}

// Require returns services.ErrDisabled when f is off.
func (a Access) Require(f Feature) error {
	if !a.Disabled(f) {
		return nil
	}
	who := "by admin"
	if !globallyDisabled(a.Limits, f) && a.User != nil {
		who = fmt.Sprintf("for user %s", a.User.Name)
	}
	return services.Wrap(services.ErrDisabled, "admin", "require", fmt.Sprintf("%s is disabled %s", f.Label(), who), nil)
}

func globallyDisabled(l store.Limits, f Feature) bool {
	switch f {
	case FeatureStory:
		return l.StoryGeneration
	case FeatureIllustration:
		return l.IllustrationGeneration
	case FeaturePDF:
		return l.PDFExport
	case FeatureGIF:
		return l.GIFExport
	case FeatureVideo:
		return l.VideoExport
	}
	return false
}

// SetLimit returns l with feature f switched off (disabled) or on.
func SetLimit(l store.Limits, f Feature, disabled bool) store.Limits {
	switch f {
	case FeatureStory:
		l.StoryGeneration = disabled
	case FeatureIllustration:
		l.IllustrationGeneration = disabled
	case FeaturePDF:
		l.PDFExport = disabled
	case FeatureGIF:
		l.GIFExport = disabled
	case FeatureVideo:
		l.VideoExport = disabled
	}
	return l
}

// Source is the subset of the store access resolution reads.
type Source interface {
	GetLimits(ctx context.Context) (store.Limits, error)
	GetUser(ctx context.Context, id string) (store.User, error)
}

// Resolve loads the global switches and, when userID is set, that user's
// capabilities.
func Resolve(ctx context.Context, src Source, userID string) (Access, error) {
	limits, err := src.GetLimits(ctx)
	if err != nil {
		return Access{}, err
	}
	access := Access{Limits: limits}
	if userID == "" {
		return access, nil
	}
	user, err := src.GetUser(ctx, userID)
	if err != nil {
		return Access{}, err
	}
	access.User = &user
	return access, nil
}
