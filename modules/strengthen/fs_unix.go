//go:build !windows

package strengthen

import "os"

// FinalizeObject atomically moves oldpath into place at newpath. On POSIX
// this is a plain rename: same-filesystem renames are atomic and silently
// replace an existing file at newpath. The loose store checks for an
// existing object before calling this, so a replace only happens when a
// concurrent writer stored the same content in between. fs_windows.go is a
// plain os.Rename as well; neither variant retries.
func FinalizeObject(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}
