// Package config provides configuration loading and validation for the
// speech generation applications. Configuration is YAML-based with
// per-section validation; secrets are overlaid from the environment, with
// .env files honored for local development.
package config
