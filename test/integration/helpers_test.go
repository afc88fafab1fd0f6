//go:build integration

package integration_test

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// testEnv holds paths to isolated test directories.
type testEnv struct {
	SiteDir    string // Plugins directory of a mock site
	InstallDir string // SiteDir/vizu-plugin
	StateDir   string // Persisted update state
}

// setupTestEnv creates isolated temp directories with version 1.0.0 of the
// plugin installed.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		SiteDir:  t.TempDir(),
		StateDir: t.TempDir(),
	}
	env.InstallDir = filepath.Join(env.SiteDir, "vizu-plugin")

	writeFile(t, filepath.Join(env.InstallDir, "vizu-plugin.php"), pluginHeader("1.0.0"))
	writeFile(t, filepath.Join(env.InstallDir, "lib", "helpers.php"), "<?php // 1.0.0 helpers\n")
	return env
}

func pluginHeader(version string) string {
	return fmt.Sprintf("<?php\n/**\n * Plugin Name:       Vizu Plugin\n * Version:           %s\n */\n", version)
}

// releaseServer publishes a manifest and a zipped package.
type releaseServer struct {
	*httptest.Server
	mu        sync.Mutex
	version   string
	archive   []byte
	manifests int
}

func newReleaseServer(t *testing.T, version string) *releaseServer {
	t.Helper()
	rs := &releaseServer{}
	rs.publish(t, version)

	mux := http.NewServeMux()
	mux.HandleFunc("/vizu-plugin-info.json", func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		defer rs.mu.Unlock()
		rs.manifests++
		sum := sha256.Sum256(rs.archive)
		fmt.Fprintf(w, `{
  "name": "Vizu Plugin",
  "slug": "vizu-plugin",
  "version": %q,
  "download_url": "%s/releases/vizu-plugin.zip",
  "requires": "6.0",
  "sha256": %q,
  "sections": {"changelog": "<h4>%s</h4><ul><li>Release</li></ul>"}
}`, rs.version, rs.URL, hex.EncodeToString(sum[:]), rs.version)
	})
	mux.HandleFunc("/releases/vizu-plugin.zip", func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		data := rs.archive
		rs.mu.Unlock()
		w.Header().Set("Content-Type", "application/zip")
		w.Write(data)
	})
	rs.Server = httptest.NewServer(mux)
	t.Cleanup(rs.Close)
	return rs
}

// publish builds the release archive for version.
func (rs *releaseServer) publish(t *testing.T, version string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"vizu-plugin/vizu-plugin.php":        pluginHeader(version),
		"vizu-plugin/lib/helpers.php":        "<?php // " + version + " helpers\n",
		"vizu-plugin/lib/year-shortcode.php": "<?php // shortcode\n",
	}
	for name, content := range files {
		f, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		f.Write([]byte(content))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.version = version
	rs.archive = buf.Bytes()
}

func (rs *releaseServer) manifestURL() string {
	return rs.URL + "/vizu-plugin-info.json"
}

func (rs *releaseServer) manifestRequests() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.manifests
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func assertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file %s to exist: %v", path, err)
	}
}

func assertOnlyInstallDir(t *testing.T, siteDir string) {
	t.Helper()
	entries, err := os.ReadDir(siteDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "vizu-plugin" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("site directory should only hold the install, found %v", names)
	}
}
