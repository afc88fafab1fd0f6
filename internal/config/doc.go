// Package config manages user-level settings stored at ~/.vizu/config.yaml.
// It provides functions to load, read, and write configuration keys such as
// the manifest URL, the check interval and the state backend used by the
// update checker. Every key can be overridden with a VIZU_ environment
// variable (for example VIZU_CHECK_INTERVAL=1h).
package config
