package updater

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

const defaultArchiveName = "package.zip"

// downloadPackage fetches downloadURL into destDir and returns the file path.
// Any transport failure or non-2xx status is a KindDownload error.
func (c *Checker) downloadPackage(ctx context.Context, downloadURL, destDir string) (string, error) {
	downloadURL = c.mirrored(downloadURL)
	destPath := filepath.Join(destDir, archiveFileName(downloadURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return "", &Error{Kind: KindDownload, Op: "download", Err: fmt.Errorf("creating download request: %w", err)}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Kind: KindDownload, Op: "download", Err: fmt.Errorf("downloading %s: %w", downloadURL, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", newError(KindDownload, "download", "download returned status %d", resp.StatusCode)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return "", &Error{Kind: KindDownload, Op: "download", Err: fmt.Errorf("creating download file: %w", err)}
	}
	defer f.Close()

	total := resp.ContentLength
	var downloaded int64

	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				return "", &Error{Kind: KindDownload, Op: "download", Err: fmt.Errorf("writing download: %w", writeErr)}
			}
			downloaded += int64(n)
			if c.progress != nil {
				c.progress(downloaded, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", &Error{Kind: KindDownload, Op: "download", Err: fmt.Errorf("reading download stream: %w", readErr)}
		}
	}

	if err := f.Close(); err != nil {
		return "", &Error{Kind: KindDownload, Op: "download", Err: fmt.Errorf("closing download file: %w", err)}
	}
	if total > 0 && downloaded != total {
		return "", newError(KindIntegrity, "download", "truncated download: got %d of %d bytes", downloaded, total)
	}

	log.Debugf("downloaded %d bytes to %s", downloaded, destPath)
	return destPath, nil
}

// verifyChecksum compares the SHA-256 of archivePath with the expected hex
// digest. An empty expectation skips the comparison.
func verifyChecksum(archivePath, expected string) error {
	if expected == "" {
		return nil
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return &Error{Kind: KindIntegrity, Op: "verify", Err: fmt.Errorf("opening archive for checksum: %w", err)}
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return &Error{Kind: KindIntegrity, Op: "verify", Err: fmt.Errorf("computing checksum: %w", err)}
	}

	actual := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(actual, expected) {
		return newError(KindIntegrity, "verify", "checksum mismatch: expected %s, got %s", expected, actual)
	}
	return nil
}

// mirrored rewrites a download URL onto the configured mirror, keeping the
// file name.
func (c *Checker) mirrored(downloadURL string) string {
	if c.mirror == "" {
		return downloadURL
	}
	return strings.TrimRight(c.mirror, "/") + "/" + archiveFileName(downloadURL)
}

// archiveFileName derives a safe local file name from the URL path.
func archiveFileName(downloadURL string) string {
	u, err := url.Parse(downloadURL)
	if err != nil {
		return defaultArchiveName
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" || strings.ContainsAny(name, `\:`) {
		return defaultArchiveName
	}
	return name
}
