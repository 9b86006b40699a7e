// Package config loads, validates, and defaults the shortline TOML
// configuration. All components receive a *Config at construction time;
// nothing reads configuration ambiently.
package config
