// Package manifest parses and validates the remote update manifest: the JSON
// descriptor that announces the latest release of a package. Documents are
// checked against an embedded JSON Schema before they are decoded, so a
// manifest missing "version" or "download_url" never reaches the updater.
package manifest
