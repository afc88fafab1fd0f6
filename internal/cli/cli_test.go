package cli

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// resetFlags restores every package-level flag to its default, since cobra
// keeps values between executions of the same command tree.
func resetFlags() {
	flagLogLevel, flagLogFile, flagNoBanner = "", "", false
	versionShort, versionJSON = false, false
	checkJSON, checkForce, checkCurrent, checkPath = false, false, "", ""
	updateCheck, updateForce, updateCurrent, updatePath, updateHostVersion, updateQuiet = false, false, "", "", "", false
	watchCurrent, watchPath, watchApply = "", "", false
	renderCommerce, renderFilter = false, ""
	doctorConfig, doctorState, doctorInstall, doctorRemote, doctorManifest = false, false, false, false, ""
}

// runCLI executes the command tree in an isolated home directory.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	viper.Reset()
	t.Cleanup(viper.Reset)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// mustRunCLI is runCLI for invocations that must succeed.
func mustRunCLI(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("%s failed: %v", strings.Join(args, " "), err)
	}
	return out
}

func assertContains(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
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

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("VIZU_LOG_LEVEL", "error")
	return home
}

func releaseServer(t *testing.T, version string) *httptest.Server {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("vizu-plugin/vizu-plugin.php")
	if err != nil {
		t.Fatalf("creating zip entry: %v", err)
	}
	f.Write([]byte("<?php\n/**\n * Version: " + version + "\n */\n"))
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	archive := buf.Bytes()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/info.json":
			w.Write([]byte(`{"version":"` + version + `","download_url":"` + srv.URL + `/pkg.zip","requires":"6.0"}`))
		case "/pkg.zip":
			w.Write(archive)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVersionShort(t *testing.T) {
	isolateHome(t)
	buildVersion = "1.2.3"
	if out := mustRunCLI(t, "version", "--short"); out != "1.2.3\n" {
		t.Errorf("output = %q, want %q", out, "1.2.3\n")
	}
}

func TestRender(t *testing.T) {
	isolateHome(t)
	out := mustRunCLI(t, "render", "--no-banner", "© [vizu_year] Vizu")
	if want := "© " + strconv.Itoa(time.Now().Year()) + " Vizu\n"; out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestRenderCartFilter(t *testing.T) {
	isolateHome(t)

	out := mustRunCLI(t, "render", "--no-banner", "--filter", "woocommerce_product_single_add_to_cart_text", "Add to cart")
	if out != "Add to cart\n" {
		t.Errorf("without a shop: output = %q", out)
	}

	out = mustRunCLI(t, "render", "--no-banner", "--commerce", "--filter", "woocommerce_product_single_add_to_cart_text", "Add to cart")
	if out != "Add to Basket\n" {
		t.Errorf("with a shop: output = %q", out)
	}
}

func TestCheckJSON(t *testing.T) {
	isolateHome(t)
	srv := releaseServer(t, "1.1.0")
	t.Setenv("VIZU_MANIFEST_URL", srv.URL+"/info.json")

	out := mustRunCLI(t, "check", "--json", "--current", "1.0.2")
	assertContains(t, out, `"has_update": true`, `"remote_version": "1.1.0"`, `"checked": true`)

	// Inside the interval the recorded result is reported without a fetch.
	out = mustRunCLI(t, "check", "--json", "--current", "1.0.2")
	assertContains(t, out, `"checked": false`, `"has_update": true`)
}

func TestCheckReportsManifestError(t *testing.T) {
	isolateHome(t)
	srv := releaseServer(t, "1.1.0")
	t.Setenv("VIZU_MANIFEST_URL", srv.URL+"/missing.json")

	out := mustRunCLI(t, "check", "--json", "--force", "--current", "1.0.0")
	assertContains(t, out, `"error_kind": "NetworkError"`, `"has_update": false`)
}

func TestUpdate(t *testing.T) {
	isolateHome(t)
	srv := releaseServer(t, "1.1.0")
	t.Setenv("VIZU_MANIFEST_URL", srv.URL+"/info.json")

	install := filepath.Join(t.TempDir(), "vizu-plugin")
	writeFile(t, filepath.Join(install, "vizu-plugin.php"), "<?php\n/**\n * Version: 1.0.0\n */\n")

	if out := mustRunCLI(t, "update", "--check", "--path", install); out != "Update available: 1.0.0 -> 1.1.0\n" {
		t.Errorf("--check output = %q", out)
	}

	out, err := runCLI(t, "update", "--quiet", "--host-version", "5.9", "--path", install)
	if err == nil {
		t.Error("expected an error for a host older than the manifest minimum")
	}
	if out != "" {
		t.Errorf("refused update printed %q", out)
	}

	if out := mustRunCLI(t, "update", "--quiet", "--host-version", "6.4", "--path", install); out != "Successfully updated to 1.1.0\n" {
		t.Errorf("update output = %q", out)
	}
	if got := detectVersion(install, "vizu-plugin"); got != "1.1.0" {
		t.Errorf("installed version = %q, want 1.1.0", got)
	}

	if out := mustRunCLI(t, "update", "--quiet", "--path", install); out != "You are on the latest version (1.1.0)\n" {
		t.Errorf("second update output = %q", out)
	}
}

func TestUpdateRequiresPath(t *testing.T) {
	isolateHome(t)
	srv := releaseServer(t, "1.1.0")
	t.Setenv("VIZU_MANIFEST_URL", srv.URL+"/info.json")

	_, err := runCLI(t, "update", "--quiet", "--current", "1.0.0")
	if err == nil || !strings.Contains(err.Error(), "no install path") {
		t.Errorf("error = %v, want a missing install path error", err)
	}
}

func TestStateShowAndClear(t *testing.T) {
	isolateHome(t)
	srv := releaseServer(t, "1.1.0")
	t.Setenv("VIZU_MANIFEST_URL", srv.URL+"/info.json")
	t.Setenv("VIZU_STATE_BACKEND", "sqlite")

	mustRunCLI(t, "check", "--current", "1.0.0")

	out := mustRunCLI(t, "state", "show")
	assertContains(t, out, "remote_version: 1.1.0", "minimum_host_version: \"6.0\"")

	assertContains(t, mustRunCLI(t, "state", "list"), "vizu-plugin")

	mustRunCLI(t, "state", "clear")
	if out := mustRunCLI(t, "state", "show"); strings.Contains(out, "remote_version") {
		t.Errorf("state still shown after clear:\n%s", out)
	}
}

func TestConfigSetGet(t *testing.T) {
	home := isolateHome(t)

	mustRunCLI(t, "config", "set", "check_interval", "6h")
	if _, err := os.Stat(filepath.Join(home, ".vizu", "config.yaml")); err != nil {
		t.Errorf("config file not written: %v", err)
	}

	if out := mustRunCLI(t, "config", "get", "check_interval"); out != "6h\n" {
		t.Errorf("config get = %q, want %q", out, "6h\n")
	}

	if _, err := runCLI(t, "config", "set", "state_backend", "redis"); err == nil {
		t.Error("expected an error for an unknown backend")
	}
}

func TestDetectVersion(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"docblock", "<?php\n/**\n * Plugin Name: Vizu Plugin\n * Version:           1.0.4\n */", "1.0.4"},
		{"comment", "<?php\n// Version: 2.0.0-beta.1\n", "2.0.0-beta.1"},
		{"missing", "<?php echo 'hi';\n", "1.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			writeFile(t, filepath.Join(path, "vizu-plugin.php"), tt.header)
			if got := detectVersion(path, "vizu-plugin"); got != tt.want {
				t.Errorf("detectVersion = %q, want %q", got, tt.want)
			}
		})
	}
	if got := detectVersion("", "vizu-plugin"); got != "1.0.0" {
		t.Errorf("empty path: %q", got)
	}
	if got := detectVersion(filepath.Join(dir, "nope"), "vizu-plugin"); got != "1.0.0" {
		t.Errorf("missing dir: %q", got)
	}
}

func TestTopLevel(t *testing.T) {
	if got := topLevel(stateShowCmd).Name(); got != "state" {
		t.Errorf("topLevel(state show) = %q", got)
	}
	if got := topLevel(checkCmd).Name(); got != "check" {
		t.Errorf("topLevel(check) = %q", got)
	}
}

func TestDoctorManifest(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	bad := filepath.Join(dir, "bad.json")
	writeFile(t, good, `{"version":"1.1.0","download_url":"https://example.com/p.zip"}`)
	writeFile(t, bad, `{"version":"1.1.0"}`)

	assertContains(t, mustRunCLI(t, "doctor", "--no-banner", "--check-manifest", good), "[ OK ] Valid manifest")

	out, err := runCLI(t, "doctor", "--no-banner", "--check-manifest", bad)
	if err == nil {
		t.Error("expected an error for an invalid manifest")
	}
	assertContains(t, out, "validation issue(s)")
}

func TestDoctorRemote(t *testing.T) {
	isolateHome(t)
	srv := releaseServer(t, "1.1.0")
	t.Setenv("VIZU_MANIFEST_URL", srv.URL+"/info.json")

	out := mustRunCLI(t, "doctor", "--no-banner", "--check-config", "--check-remote")
	assertContains(t, out, "serves version 1.1.0", "[WARN] manifest has no sha256")
}
