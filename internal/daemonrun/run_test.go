package daemonrun

import (
	"context"
	"testing"

	"tinytales/internal/testsupport"
)

func TestBuildWiresManager(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Library.SeedBlog = true
	components, err := Build(cfg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = components.Close() })

	if components.Manager == nil || components.Exporter == nil || components.Speech == nil {
		t.Fatalf("missing components: %+v", components)
	}
	posts, err := components.Store.ListBlog(context.Background())
	if err != nil {
		t.Fatalf("ListBlog: %v", err)
	}
	if len(posts) == 0 {
		t.Fatal("expected the sample posts to be seeded")
	}
	if _, ok := components.Manager.Current(); ok {
		t.Fatal("fresh runtime should have no session")
	}
}

func TestBuildWithoutSpeechKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Speech.APIKey = ""
	components, err := Build(cfg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = components.Close() })
	if components.Speech != nil {
		t.Fatal("speech should be nil without an API key")
	}
}
