package updater

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDetectArchiveFormat(t *testing.T) {
	tmp := t.TempDir()
	tests := []struct {
		name    string
		data    []byte
		want    ArchiveFormat
		wantErr bool
	}{
		{"zip", createTestZip(t, map[string]string{"a.txt": "a"}), FormatZip, false},
		{"tar.gz", createTestTarGz(t, map[string]string{"a.txt": "a"}), FormatTarGz, false},
		{"empty", nil, "", true},
		{"one byte", []byte{0x1f}, "", true},
		{"html", []byte("<!doctype html>"), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmp, tt.name)
			if err := os.WriteFile(path, tt.data, 0644); err != nil {
				t.Fatal(err)
			}
			got, err := DetectArchiveFormat(path)
			if tt.wantErr {
				if KindOf(err) != KindIntegrity {
					t.Errorf("expected IntegrityError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("format = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractPackage_UnwrapsSingleDirectory(t *testing.T) {
	tmp := t.TempDir()
	archivePath := filepath.Join(tmp, "p.zip")
	os.WriteFile(archivePath, createTestZip(t, map[string]string{
		"vizu-plugin/vizu-plugin.php": "main",
		"vizu-plugin/lib/x.php":       "x",
	}), 0644)

	root, err := ExtractPackage(archivePath, filepath.Join(tmp, "out"))
	if err != nil {
		t.Fatalf("ExtractPackage failed: %v", err)
	}
	if filepath.Base(root) != "vizu-plugin" {
		t.Errorf("root = %s, want the vizu-plugin directory", root)
	}
	data, err := os.ReadFile(filepath.Join(root, "lib", "x.php"))
	if err != nil || string(data) != "x" {
		t.Errorf("extracted content mismatch: %q, %v", data, err)
	}
}

func TestExtractPackage_TarGzOwnerCanWrite(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not tracked on Windows")
	}
	tmp := t.TempDir()
	archivePath := filepath.Join(tmp, "p.tar.gz")
	os.WriteFile(archivePath, createTestTarGz(t, map[string]string{"bin/tool": "#!/bin/sh", "readme.txt": "r"}), 0644)

	root, err := ExtractPackage(archivePath, filepath.Join(tmp, "out"))
	if err != nil {
		t.Fatalf("ExtractPackage failed: %v", err)
	}
	info, err := os.Stat(filepath.Join(root, "bin", "tool"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0600 != 0600 {
		t.Errorf("extracted file mode = %o, want owner read/write", info.Mode().Perm())
	}
}

func TestSafeJoin(t *testing.T) {
	root := filepath.Join("tmp", "root")
	tests := []struct {
		name    string
		entry   string
		wantErr bool
	}{
		{"plain", "a/b.txt", false},
		{"dot segments inside", "a/../b.txt", false},
		{"parent", "../b.txt", true},
		{"deep parent", "a/../../b.txt", true},
		{"bare parent", "..", true},
		{"absolute", "/etc/passwd", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := safeJoin(root, tt.entry)
			if (err != nil) != tt.wantErr {
				t.Errorf("safeJoin(%q) err = %v, wantErr %v", tt.entry, err, tt.wantErr)
			}
		})
	}
}

func TestVerifyChecksum(t *testing.T) {
	tmp := t.TempDir()
	data := []byte("fake archive content")
	path := filepath.Join(tmp, "p.zip")
	os.WriteFile(path, data, 0644)

	h := sha256.Sum256(data)
	sum := hex.EncodeToString(h[:])

	if err := verifyChecksum(path, sum); err != nil {
		t.Errorf("matching checksum rejected: %v", err)
	}
	if err := verifyChecksum(path, ""); err != nil {
		t.Errorf("empty checksum should be skipped: %v", err)
	}
	err := verifyChecksum(path, "0000000000000000000000000000000000000000000000000000000000000000")
	if KindOf(err) != KindIntegrity {
		t.Errorf("mismatch err = %v, want IntegrityError", err)
	}
}

func TestArchiveFileName(t *testing.T) {
	tests := map[string]string{
		"https://example.com/releases/vizu-plugin.zip":       "vizu-plugin.zip",
		"https://example.com/dl?file=x":                      "dl",
		"https://example.com/":                               defaultArchiveName,
		"https://example.com":                                defaultArchiveName,
		"https://example.com/v1.1.0/vizu-plugin.tar.gz?t=1": "vizu-plugin.tar.gz",
	}
	for in, want := range tests {
		if got := archiveFileName(in); got != want {
			t.Errorf("archiveFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMirrored(t *testing.T) {
	c := New(WithMirror("https://mirror.example.com/vizu/"))
	got := c.mirrored("https://github.com/o/r/releases/download/v1.1.0/vizu-plugin.zip")
	if got != "https://mirror.example.com/vizu/vizu-plugin.zip" {
		t.Errorf("mirrored = %q", got)
	}
	if New().mirrored("https://a/b.zip") != "https://a/b.zip" {
		t.Error("URL should be unchanged without a mirror")
	}
}
