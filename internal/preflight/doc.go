// Package preflight provides readiness checks for the external services and
// filesystem paths Tiny Tales depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs failures without refusing
//     to start, since PDF export and the library work offline.
//   - The CLI "tinytales status" command prints every result.
//
// Network checks use a single attempt with a short timeout.
package preflight
