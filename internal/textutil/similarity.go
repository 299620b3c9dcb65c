package textutil

import (
	"cmp"
	"slices"
)

// CosineSimilarity compares two fingerprints; nil inputs score 0.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	if len(b.tokens) < len(a.tokens) {
		a, b = b, a
	}
	var dot float64
	for token, w := range a.tokens {
		dot += w * b.tokens[token]
	}
	return dot / (a.norm * b.norm)
}

// Match is one ranked document.
type Match struct {
	Index int
	Score float64
}

// Rank scores docs against query with TF-IDF cosine similarity and returns
// matches scoring above zero, best first. Ties keep document order.
// When all query terms are ubiquitous, term frequency alone decides.
func Rank(query string, docs []string) []Match {
	q := NewFingerprint(query)
	if q == nil {
		return nil
	}
	corpus := NewCorpus()
	prints := make([]*Fingerprint, len(docs))
	for i, doc := range docs {
		prints[i] = NewFingerprint(doc)
		corpus.Add(prints[i])
	}
	idf := corpus.IDF()
	if weighted := q.WithIDF(idf); weighted != nil {
		q = weighted
	} else {
		// Every query term occurs in every document; fall back to raw counts.
		idf = nil
	}
	var out []Match
	for i, fp := range prints {
		if score := CosineSimilarity(q, fp.WithIDF(idf)); score > 0 {
			out = append(out, Match{Index: i, Score: score})
		}
	}
	slices.SortStableFunc(out, func(a, b Match) int { return cmp.Compare(b.Score, a.Score) })
	return out
}
