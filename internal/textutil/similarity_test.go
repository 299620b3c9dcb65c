package textutil

import (
	"math"
	"testing"
)

func TestTokenizeUnicode(t *testing.T) {
	got := Tokenize("Tiny CATS build a castle! नन्ही बिल्ली, 42 x")
	want := []string{"tiny", "cats", "build", "castle", "नन्ही", "बिल्ली", "42"}
	if len(got) != len(want) {
		t.Fatalf("Tokenize = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Tokenize = %q, want %q", got, want)
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := NewFingerprint("tiny cats dance")
	b := NewFingerprint("tiny cats dance")
	if got := CosineSimilarity(a, b); math.Abs(got-1) > 1e-9 {
		t.Fatalf("identical texts scored %v", got)
	}
	if got := CosineSimilarity(a, NewFingerprint("purple elephants")); got != 0 {
		t.Fatalf("disjoint texts scored %v", got)
	}
	if got := CosineSimilarity(nil, a); got != 0 {
		t.Fatalf("nil fingerprint scored %v", got)
	}
	if CosineSimilarity(a, NewFingerprint("tiny dogs")) != CosineSimilarity(NewFingerprint("tiny dogs"), a) {
		t.Fatal("similarity should be symmetric")
	}
}

func TestNewFingerprintEmpty(t *testing.T) {
	if NewFingerprint("a ! ?") != nil {
		t.Fatal("expected nil fingerprint for text without tokens")
	}
}

func TestRankOrdersByRelevance(t *testing.T) {
	docs := []string{
		"cats build a castle of cushions",
		"a garden adventure",
		"cats in the garden of cushions castle",
		"dogs at sea",
	}
	matches := Rank("castle cushions", docs)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %+v", matches)
	}
	if matches[0].Index != 0 || matches[1].Index != 2 {
		t.Fatalf("unexpected order %+v", matches)
	}
	if Rank("", docs) != nil {
		t.Fatal("empty query should not match")
	}
}

func TestWithIDFDropsUbiquitousTerms(t *testing.T) {
	corpus := NewCorpus()
	for _, doc := range []string{"cats one", "cats two", "cats three"} {
		corpus.Add(NewFingerprint(doc))
	}
	idf := corpus.IDF()
	if idf["cats"] >= idf["one"] {
		t.Fatalf("common term should weigh less: %v", idf)
	}
	if fp := NewFingerprint("cats").WithIDF(map[string]float64{"cats": 0}); fp != nil {
		t.Fatal("fingerprint with all-zero weights should be nil")
	}
}

func TestTruncateKeepsGraphemes(t *testing.T) {
	if got := Truncate("Tiny cats everywhere", 9); got != "Tiny cats..." {
		t.Fatalf("Truncate = %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("Truncate = %q", got)
	}
	hindi := "नमस्ते बिल्ली"
	got := Truncate(hindi, 3)
	if got == hindi || len(got) <= 3 {
		t.Fatalf("unexpected Hindi truncation %q", got)
	}
}

func TestSlugAndSanitize(t *testing.T) {
	if got := Slug("  The Tiny Cat & the Flying Leaf! ", "story"); got != "the-tiny-cat-the-flying-leaf" {
		t.Fatalf("Slug = %q", got)
	}
	if got := Slug("!!!", "story"); got != "story" {
		t.Fatalf("Slug fallback = %q", got)
	}
	if got := SanitizeFileName(` a/b:c?"d" `); got != "a-b-cd" {
		t.Fatalf("SanitizeFileName = %q", got)
	}
}

func TestRankSingleDocumentStillMatches(t *testing.T) {
	matches := Rank("robot", []string{"a brave robot found a flower"})
	if len(matches) != 1 || matches[0].Index != 0 {
		t.Fatalf("expected the only document to match, got %+v", matches)
	}
	if got := Rank("dragon", []string{"a brave robot"}); len(got) != 0 {
		t.Fatalf("unrelated query should not match, got %+v", got)
	}
}
