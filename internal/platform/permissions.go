package platform

import (
	"fmt"
	"os"
	"runtime"
)

// Default permissions for files and directories written during an install.
const (
	FilePermDefault os.FileMode = 0644
	DirPermDefault  os.FileMode = 0755
)

// Chmod sets file permissions. On Windows this is a no-op because Windows
// does not support Unix-style permission bits.
func Chmod(path string, mode os.FileMode) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	return os.Chmod(path, mode)
}

// CopyMode applies the permission bits of src to dst.
func CopyMode(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("reading mode of %s: %w", src, err)
	}
	return Chmod(dst, info.Mode().Perm())
}
