package story

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Language is a narrative language supported by the generator.
type Language string

const (
	English Language = "english"
	Hindi   Language = "hindi"
)

var (
	englishTag = language.MustParse("en-US")
	hindiTag   = language.MustParse("hi-IN")
)

// Languages lists the supported languages in display order.
func Languages() []Language {
	return []Language{English, Hindi}
}

// ParseLanguage accepts names ("hindi"), ISO codes ("hi"), or BCP 47 tags ("hi-IN").
func ParseLanguage(value string) (Language, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	switch trimmed {
	case "", string(English):
		return English, nil
	case string(Hindi):
		return Hindi, nil
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("unsupported language %q", value)
	}
	base, _ := tag.Base()
	switch base.String() {
	case "en":
		return English, nil
	case "hi":
		return Hindi, nil
	default:
		return "", fmt.Errorf("unsupported language %q", value)
	}
}

// Tag returns the BCP 47 tag used for speech synthesis.
func (l Language) Tag() language.Tag {
	if l == Hindi {
		return hindiTag
	}
	return englishTag
}

// BCP47 returns the tag string, for example "hi-IN".
func (l Language) BCP47() string {
	return l.Tag().String()
}

// DisplayName returns the language name as shown to users and prompts.
func (l Language) DisplayName() string {
	return cases.Title(language.English).String(string(l.normalized()))
}

func (l Language) normalized() Language {
	if l == Hindi {
		return Hindi
	}
	return English
}

// VoiceFor picks the synthesis voice for a BCP 47 tag. Unknown tags fall back
// to the English voice.
func VoiceFor(tag string) string {
	lower := strings.ToLower(strings.TrimSpace(tag))
	switch {
	case strings.HasPrefix(lower, "hi"):
		return "hi-IN-Standard-A"
	default:
		return "en-US-Standard-F"
	}
}

// Voice returns the synthesis voice for the language.
func (l Language) Voice() string {
	return VoiceFor(l.BCP47())
}
