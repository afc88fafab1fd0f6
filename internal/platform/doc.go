// Package platform provides cross-platform file permission helpers used when
// installing packages. On Unix systems it uses chmod directly. On Windows,
// where Unix-style permission bits do not exist, the helpers are no-ops.
package platform
