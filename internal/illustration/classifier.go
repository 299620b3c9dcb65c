package illustration

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
)

type httpStatuser interface {
	HTTPStatus() int
}

type providerStatuser interface {
	ProviderStatus() string
}

type retryHinter interface {
	RetryHint() (time.Duration, bool)
}

// Classifier decides whether a failed request was rate limited.
type Classifier struct {
	Statuses         []int
	ProviderStatuses []string
	Patterns         []*regexp.Regexp
}

var defaultPatterns = []string{`(?i)too many requests`, `429`, `RESOURCE_EXHAUSTED`}

// DefaultClassifier matches HTTP 429, RESOURCE_EXHAUSTED and the message
// forms providers use for the same condition.
func DefaultClassifier() Classifier {
	classifier, err := NewClassifier([]int{429}, defaultPatterns)
	if err != nil {
		panic(err)
	}
	return classifier
}

// NewClassifier compiles a classifier from status codes and message regexes.
func NewClassifier(statuses []int, patterns []string) (Classifier, error) {
	classifier := Classifier{
		Statuses:         slices.Clone(statuses),
		ProviderStatuses: []string{"RESOURCE_EXHAUSTED"},
	}
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return Classifier{}, fmt.Errorf("compile rate limit pattern %q: %w", pattern, err)
		}
		classifier.Patterns = append(classifier.Patterns, re)
	}
	return classifier, nil
}

// RateLimited reports whether err signals a rate limit.
func (c Classifier) RateLimited(err error) bool {
	if err == nil {
		return false
	}
	var status httpStatuser
	if errors.As(err, &status) && slices.Contains(c.Statuses, status.HTTPStatus()) {
		return true
	}
	var provider providerStatuser
	if errors.As(err, &provider) {
		if s := provider.ProviderStatus(); s != "" && slices.Contains(c.ProviderStatuses, s) {
			return true
		}
	}
	message := err.Error()
	for _, re := range c.Patterns {
		if re.MatchString(message) {
			return true
		}
	}
	return false
}

var hintPattern = regexp.MustCompile(`retryDelay"\s*:\s*"(\d+)s"`)

// Hint extracts a provider-requested delay from err.
func Hint(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	var hinter retryHinter
	if errors.As(err, &hinter) {
		if delay, ok := hinter.RetryHint(); ok {
			return delay, true
		}
	}
	match := hintPattern.FindStringSubmatch(err.Error())
	if match == nil {
		return 0, false
	}
	var seconds int
	if _, scanErr := fmt.Sscanf(match[1], "%d", &seconds); scanErr != nil || seconds <= 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}
