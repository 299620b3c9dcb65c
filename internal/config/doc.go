// Package config loads, normalizes, and validates Tiny Tales configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads optional .env files, and honours
// environment fallbacks such as GEMINI_API_KEY. The Config type centralizes
// every knob the CLI, viewer, and local API need, so provider credentials,
// retry policy, and export geometry are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
