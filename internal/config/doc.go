// Package config loads, normalizes, and validates wpqueue configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional .env file, and honours
// environment fallbacks such as WP_SITE_URL and WP_APP_PASSWORD. The Config
// type centralizes every knob the daemon and CLI need so the data directory,
// WordPress credentials, and storage backend are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
