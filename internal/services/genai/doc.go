// Package genai talks to the hosted generation providers used by the story
// pipeline: Gemini generateContent for prose and illustrations, and Cloud
// Text-to-Speech for narration.
//
// # Entry Points
//
// NewClient: construct the generation client from Config.
// Client.GenerateStory: prose for a prompt and language, decoded from JSON.
// Client.GenerateImage: one illustration as a data URI.
// Client.HealthCheck: verify the API key and model are reachable.
// NewSpeechClient / SpeechClient.Synthesize: narration audio as a data URI.
//
// # Retry Behaviour
//
// Transport failures (HTTP 408, 5xx, network timeouts) are retried with
// exponential backoff. HTTP 429 is never retried here: the error is returned as
// a *StatusError carrying the provider's retry hint so the illustration
// fetcher can apply its own policy. Context cancellation aborts immediately.
package genai
