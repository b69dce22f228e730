// Package config loads, normalizes, and validates paradiso configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads .env files, and honours environment
// fallbacks such as ALGOLIA_ADMIN_KEY and OPENROUTER_API_KEY. The Config type
// centralizes every knob the reconciler needs: page size and limits, retry
// policy, backend selection, and store credentials.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical enum values, and clear validation errors.
package config
