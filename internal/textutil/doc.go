// Package textutil holds small text helpers shared by the story pipeline and
// its surfaces: grapheme-safe truncation for status lines, filename
// sanitising for exports, and token fingerprints used to rank history
// entries against a search query.
//
// Tokenisation is Unicode aware so Devanagari prompts fingerprint as well as
// English ones. Tokens are lowercased runs of letters and digits; single
// character tokens are dropped.
package textutil
