package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"sh2edit/types"
)

const BACKUP_STAMP = "20060102_150405"

// BackupName is "<file>.backup_<YYYYMMDD_HHMMSS>", next to the file.
func BackupName(filename string, now time.Time) string {
	return filename + ".backup_" + now.Format(BACKUP_STAMP)
}

// Backup copies filename to its backup name and returns that name.
// The copy keeps the original's permissions and modification time.
func Backup(filename string, now time.Time) (string, error) {
	backup := BackupName(filename, now)

	in, err := os.Open(filename)
	if err != nil {
		return "", fmt.Errorf("%w: backup: %v", types.ErrIO, err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return "", fmt.Errorf("%w: backup: %v", types.ErrIO, err)
	}

	// O_EXCL: two runs in the same second must not clobber the first backup
	out, err := os.OpenFile(backup, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return "", fmt.Errorf("%w: backup: %v", types.ErrIO, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(backup)
		return "", fmt.Errorf("%w: backup: %v", types.ErrIO, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(backup)
		return "", fmt.Errorf("%w: backup: %v", types.ErrIO, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(backup)
		return "", fmt.Errorf("%w: backup: %v", types.ErrIO, err)
	}
	os.Chtimes(backup, info.ModTime(), info.ModTime())

	return backup, nil
}

// Resolve finds a save file.  A name that exists as given wins; otherwise it
// is looked up in the save directory.
func Resolve(filename string, dir string) string {
	if _, err := os.Stat(filename); err == nil || filepath.IsAbs(filename) || dir == "" {
		return filename
	}
	candidate := filepath.Join(dir, filename)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return filename
}

// Same reports whether two paths name the same file.  A path that does not
// exist yet is only the same as itself.
func Same(a, b string) bool {
	ia, erra := os.Stat(a)
	ib, errb := os.Stat(b)
	if erra == nil && errb == nil {
		return os.SameFile(ia, ib)
	}
	if errors.Is(erra, os.ErrNotExist) || errors.Is(errb, os.ErrNotExist) {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return false
}
