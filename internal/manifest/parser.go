package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// ErrInvalid is wrapped by every error Parse returns for a document that is not
// a usable manifest.
var ErrInvalid = errors.New("invalid manifest")

// InvalidError lists the schema violations found in a manifest.
type InvalidError struct {
	Issues []ValidationIssue
}

func (e *InvalidError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		if issue.Path == "" {
			parts = append(parts, issue.Message)
			continue
		}
		parts = append(parts, issue.Path+": "+issue.Message)
	}
	return "manifest failed validation: " + strings.Join(parts, "; ")
}

func (e *InvalidError) Unwrap() error { return ErrInvalid }

// Parse validates raw manifest JSON against the schema and decodes it.
// Unknown fields are ignored. The plugin-info fallbacks are applied:
// sections.changelog fills Changelog and requires fills MinimumHostVersion
// when the dedicated fields are empty.
func Parse(data []byte) (*Manifest, error) {
	result, err := Validate(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if !result.Valid {
		return nil, &InvalidError{Issues: result.Issues}
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: decoding: %w", ErrInvalid, err)
	}

	if m.Changelog == "" && m.Sections != nil {
		m.Changelog = m.Sections["changelog"]
	}
	if m.MinimumHostVersion == "" {
		m.MinimumHostVersion = m.Requires
	}
	m.SHA256 = strings.ToLower(m.SHA256)

	if err := CheckDownloadURL(m.DownloadURL); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return &m, nil
}

// ParseFile reads a manifest from disk and parses it.
func ParseFile(path string) (*Manifest, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return m, nil
}

// CheckDownloadURL reports whether raw is an absolute http or https URL.
func CheckDownloadURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("download_url %q: %w", raw, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("download_url %q is not an absolute URL", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("download_url %q: unsupported scheme %q", raw, u.Scheme)
	}
	return nil
}

// readFile reads the contents of a file at the given path.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return data, nil
}
