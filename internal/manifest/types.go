package manifest

// Manifest is the remote descriptor of the latest available package version.
// Only Version and DownloadURL are required; the remaining fields follow the
// plugin-info format published next to each release. The local check time is
// never part of a manifest.
type Manifest struct {
	Name               string            `json:"name,omitempty"`
	Slug               string            `json:"slug,omitempty"`
	Version            string            `json:"version"`
	DownloadURL        string            `json:"download_url"`
	Homepage           string            `json:"homepage,omitempty"`
	Changelog          string            `json:"changelog,omitempty"`
	MinimumHostVersion string            `json:"minimum_host_version,omitempty"`
	Requires           string            `json:"requires,omitempty"`
	Tested             string            `json:"tested,omitempty"`
	LastUpdated        string            `json:"last_updated,omitempty"`
	SHA256             string            `json:"sha256,omitempty"`
	Sections           map[string]string `json:"sections,omitempty"`
}

// Clone returns a deep copy of m.
func (m *Manifest) Clone() *Manifest {
	if m == nil {
		return nil
	}
	c := *m
	if m.Sections != nil {
		c.Sections = make(map[string]string, len(m.Sections))
		for k, v := range m.Sections {
			c.Sections[k] = v
		}
	}
	return &c
}
