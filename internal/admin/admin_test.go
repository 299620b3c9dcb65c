package admin_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"tinytales/internal/admin"
	"tinytales/internal/services"
	"tinytales/internal/story"
	"tinytales/internal/store"
	"tinytales/internal/testsupport"
)

func TestGate(t *testing.T) {
	gate := admin.NewGate("adminpassword123")
	if !gate.Check("adminpassword123") {
		t.Fatal("expected password to match")
	}
	if gate.Check("adminpassword12") || gate.Check("") {
		t.Fatal("expected wrong passwords to fail")
	}
	if err := gate.Authorize("nope"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	locked := admin.NewGate("  ")
	if locked.Check("") {
		t.Fatal("empty password should never authenticate")
	}
	if err := locked.Authorize(""); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestAccessCombinesGlobalAndUser(t *testing.T) {
	user := store.NewUser("Charlie", "c@example.com")
	user.CanExportPDF = false

	cases := []struct {
		name     string
		access   admin.Access
		feature  admin.Feature
		disabled bool
	}{
		{"nothing disabled", admin.Access{}, admin.FeaturePDF, false},
		{"global switch", admin.Access{Limits: store.Limits{GIFExport: true}}, admin.FeatureGIF, true},
		{"user capability", admin.Access{User: &user}, admin.FeaturePDF, true},
		{"user allowed", admin.Access{User: &user}, admin.FeatureVideo, false},
		{"global wins over user", admin.Access{Limits: store.Limits{VideoExport: true}, User: &user}, admin.FeatureVideo, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.access.Disabled(tc.feature); got != tc.disabled {
				t.Fatalf("Disabled(%s) = %v, want %v", tc.feature, got, tc.disabled)
			}
			err := tc.access.Require(tc.feature)
			if tc.disabled != errors.Is(err, services.ErrDisabled) {
				t.Fatalf("Require(%s) = %v", tc.feature, err)
			}
		})
	}
}

func TestResolveLoadsUser(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if _, err := st.SeedUsers(ctx); err != nil {
		t.Fatalf("SeedUsers: %v", err)
	}
	if err := st.SetLimits(ctx, store.Limits{StoryGeneration: true}); err != nil {
		t.Fatalf("SetLimits: %v", err)
	}
	access, err := admin.Resolve(ctx, st, "user-3")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !access.Disabled(admin.FeatureStory) || !access.Disabled(admin.FeaturePDF) || access.Disabled(admin.FeatureGIF) {
		t.Fatalf("unexpected access %#v", access)
	}
	if _, err := admin.Resolve(ctx, st, "ghost"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSetLimitAndParseFeature(t *testing.T) {
	limits := admin.SetLimit(store.Limits{}, admin.FeatureIllustration, true)
	if !limits.IllustrationGeneration {
		t.Fatal("expected illustration limit set")
	}
	if _, err := admin.ParseFeature("pdf"); err != nil {
		t.Fatalf("ParseFeature: %v", err)
	}
	if _, err := admin.ParseFeature("hologram"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStoriesCSV(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	records := []store.StoryRecord{{
		ID:        "story-1",
		Prompt:    `Cats, "tiny" ones`,
		Language:  story.English,
		Story:     "Line one.\nLine two.",
		Timestamp: ts,
		Likes:     3,
		Comments:  []store.Comment{{ID: "c"}},
	}}
	var buf bytes.Buffer
	if err := admin.WriteStoriesCSV(&buf, records); err != nil {
		t.Fatalf("WriteStoriesCSV: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 || rows[0][3] != "Prompt/Title" {
		t.Fatalf("unexpected rows %q", rows)
	}
	want := []string{"story-1", "2024-05-01T12:00:00.000Z", "english", `Cats, "tiny" ones`, "Line one.\nLine two.", "3", "1"}
	if strings.Join(rows[1], "|") != strings.Join(want, "|") {
		t.Fatalf("row = %q, want %q", rows[1], want)
	}

	buf.Reset()
	if err := admin.WriteStoriesCSV(&buf, nil); err != nil || buf.Len() != 0 {
		t.Fatalf("empty list should write nothing, got %q, %v", buf.String(), err)
	}
}

func TestUsersCSV(t *testing.T) {
	limit := 10
	u := store.NewUser("Bob", "bob@example.com")
	u.ID = "user-2"
	u.SignupDate = time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.UTC)
	u.StoryGenerationLimit = &limit
	u.CanExportGIF = false

	var buf bytes.Buffer
	if err := admin.WriteUsersCSV(&buf, []store.User{u}); err != nil {
		t.Fatalf("WriteUsersCSV: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	want := []string{"user-2", "Bob", "bob@example.com", "pending", "2024-01-02T03:04:05.006Z", "true", "10", "true", "", "true", "false", "true"}
	if len(rows) != 2 || strings.Join(rows[1], "|") != strings.Join(want, "|") {
		t.Fatalf("rows = %q", rows)
	}
	if len(rows[0]) != 12 || rows[0][0] != "User ID" {
		t.Fatalf("unexpected header %q", rows[0])
	}
}
