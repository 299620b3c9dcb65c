// Package illustration fetches one image per sentence in narrative order.
//
// Rate-limited requests are retried with a provider hint or a doubling
// backoff up to RetryPolicy.MaxRetries; any other failure settles the
// sentence on the placeholder immediately. Failures are per item and never
// abort the batch. Cancelling the context stops the current wait and marks
// every unfinished sentence "Stopped by user" without further network calls.
package illustration
