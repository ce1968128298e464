// Package config loads noticast settings from YAML plus NOTICAST_* environment
// overrides.
package config
