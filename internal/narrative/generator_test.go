package narrative_test

import (
	"context"
	"errors"
	"testing"

	"tinytales/internal/narrative"
	"tinytales/internal/services"
	"tinytales/internal/services/genai"
	"tinytales/internal/story"
)

type fakeModel struct {
	story    string
	err      error
	language string
	calls    int
}

func (f *fakeModel) GenerateStory(ctx context.Context, prompt, languageName string) (genai.StoryResult, error) {
	f.calls++
	f.language = languageName
	if f.err != nil {
		return genai.StoryResult{}, f.err
	}
	return genai.StoryResult{Story: f.story}, nil
}

func TestGenerateSplitsIntoLoadingSentences(t *testing.T) {
	model := &fakeModel{story: "Tiny cats met. They danced! Who won?"}
	gen := narrative.NewGenerator(model, nil)
	result, err := gen.Generate(context.Background(), "  cats dancing ", story.Hindi)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if model.language != "Hindi" {
		t.Fatalf("expected display name Hindi, got %q", model.language)
	}
	if len(result.Sentences) != 3 {
		t.Fatalf("expected 3 sentences, got %+v", result.Sentences)
	}
	for _, s := range result.Sentences {
		if !s.IsImageLoading || s.Language != story.Hindi {
			t.Fatalf("unexpected sentence %+v", s)
		}
	}
	if result.Progress != narrative.ProgressMessage || result.Prompt != "cats dancing" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	model := &fakeModel{story: "x."}
	_, err := narrative.NewGenerator(model, nil).Generate(context.Background(), "   ", story.English)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if model.calls != 0 {
		t.Fatal("provider should not be called for an empty prompt")
	}
}

func TestGenerateClassifiesProviderErrors(t *testing.T) {
	cases := []struct {
		err  error
		kind services.Kind
	}{
		{&genai.StatusError{StatusCode: 429}, services.KindRateLimited},
		{&genai.StatusError{StatusCode: 500}, services.KindProvider},
		{errors.New("boom"), services.KindProvider},
	}
	for _, tc := range cases {
		_, err := narrative.NewGenerator(&fakeModel{err: tc.err}, nil).Generate(context.Background(), "cats", story.English)
		if got := services.Classify(err); got != tc.kind {
			t.Errorf("Classify(%v) = %q, want %q", err, got, tc.kind)
		}
	}
}

func TestGenerateEmptyStoryIsProviderError(t *testing.T) {
	_, err := narrative.NewGenerator(&fakeModel{story: "   "}, nil).Generate(context.Background(), "cats", story.English)
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}
