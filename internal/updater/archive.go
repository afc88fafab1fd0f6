package updater

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vizu-disain/vizu/internal/platform"
)

// ArchiveFormat identifies a supported package archive.
type ArchiveFormat string

const (
	FormatZip   ArchiveFormat = "zip"
	FormatTarGz ArchiveFormat = "tar.gz"
)

var (
	zipMagic  = []byte("PK\x03\x04")
	gzipMagic = []byte{0x1f, 0x8b}
)

// DetectArchiveFormat sniffs the archive format from the file's leading bytes.
// Empty files and unknown formats are KindIntegrity errors.
func DetectArchiveFormat(archivePath string) (ArchiveFormat, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", &Error{Kind: KindIntegrity, Op: "verify", Err: fmt.Errorf("opening archive: %w", err)}
	}
	defer f.Close()

	head := make([]byte, 4)
	n, err := io.ReadFull(f, head)
	if n == 0 {
		return "", newError(KindIntegrity, "verify", "package is empty")
	}
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", &Error{Kind: KindIntegrity, Op: "verify", Err: fmt.Errorf("reading archive header: %w", err)}
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, zipMagic):
		return FormatZip, nil
	case bytes.HasPrefix(head, gzipMagic):
		return FormatTarGz, nil
	default:
		return "", newError(KindIntegrity, "verify", "unrecognized package format")
	}
}

// ExtractPackage fully extracts a zip or tar.gz archive into destDir and
// returns the package root. When the archive holds a single top-level
// directory (the usual plugin layout, e.g. "vizu-plugin/..."), that directory
// is the root. Corrupt archives, entries escaping destDir, links, and archives
// without any regular file are KindIntegrity errors.
func ExtractPackage(archivePath, destDir string) (string, error) {
	format, err := DetectArchiveFormat(archivePath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(destDir, platform.DirPermDefault); err != nil {
		return "", &Error{Kind: KindIntegrity, Op: "extract", Err: fmt.Errorf("creating extract directory: %w", err)}
	}

	var files int
	switch format {
	case FormatZip:
		files, err = extractZip(archivePath, destDir)
	default:
		files, err = extractTarGz(archivePath, destDir)
	}
	if err != nil {
		return "", &Error{Kind: KindIntegrity, Op: "extract", Err: err}
	}
	if files == 0 {
		return "", newError(KindIntegrity, "extract", "package contains no files")
	}

	return packageRoot(destDir)
}

func extractZip(archivePath, destDir string) (int, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, fmt.Errorf("opening zip archive: %w", err)
	}
	defer r.Close()

	files := 0
	for _, f := range r.File {
		target, err := safeJoin(destDir, f.Name)
		if err != nil {
			return 0, err
		}
		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, platform.DirPermDefault); err != nil {
				return 0, fmt.Errorf("creating directory %s: %w", f.Name, err)
			}
			continue
		case !mode.IsRegular():
			return 0, fmt.Errorf("unsupported entry %s (%s)", f.Name, mode.Type())
		}

		rc, err := f.Open()
		if err != nil {
			return 0, fmt.Errorf("opening zip entry %s: %w", f.Name, err)
		}
		err = writeFile(target, rc, mode.Perm())
		rc.Close()
		if err != nil {
			return 0, fmt.Errorf("extracting %s: %w", f.Name, err)
		}
		files++
	}
	return files, nil
}

func extractTarGz(archivePath, destDir string) (int, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return 0, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return 0, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gz.Close()

	files := 0
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("reading tar entry: %w", err)
		}

		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return 0, err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, platform.DirPermDefault); err != nil {
				return 0, fmt.Errorf("creating directory %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, os.FileMode(hdr.Mode).Perm()); err != nil {
				return 0, fmt.Errorf("extracting %s: %w", hdr.Name, err)
			}
			files++
		default:
			return 0, fmt.Errorf("unsupported entry %s (type %c)", hdr.Name, hdr.Typeflag)
		}
	}
	return files, nil
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if perm == 0 {
		perm = platform.FilePermDefault
	}
	if err := os.MkdirAll(filepath.Dir(target), platform.DirPermDefault); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, platform.FilePermDefault)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return platform.Chmod(target, perm|0600)
}

// safeJoin resolves an archive entry name under root, rejecting absolute
// paths and names that climb out of root.
func safeJoin(root, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.VolumeName(clean) != "" {
		return "", fmt.Errorf("entry %q escapes the package root", name)
	}
	return filepath.Join(root, clean), nil
}

// packageRoot unwraps a single top-level directory.
func packageRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", &Error{Kind: KindIntegrity, Op: "extract", Err: fmt.Errorf("reading extracted package: %w", err)}
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}
