// Package story holds the in-session story model: sentences, languages,
// placeholder images, and data URI helpers.
//
// Sentences are created when a narrative is split and are mutated as the
// illustration batch progresses. Image bytes live only in memory as data URIs;
// persistence layers receive sentence text through Texts.
package story
