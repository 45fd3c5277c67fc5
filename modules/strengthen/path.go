package strengthen

import (
	"errors"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

var (
	ErrDangerousRepoPath = errors.New("dangerous or unreachable repository path")
)

// IsDangerousRoot reports whether path, once cleaned and made absolute,
// names the filesystem root or a user's home directory — the two places a
// destructive recursive operation (a container "clear and reinit") must
// never be pointed at, however it got there (a typo, an unset env var, an
// empty string from an unvalidated config).
func IsDangerousRoot(path string) bool {
	abs := ExpandPath(path)
	clean := filepath.Clean(abs)
	if clean == string(filepath.Separator) {
		return true
	}
	if home, err := os.UserHomeDir(); err == nil && clean == filepath.Clean(home) {
		return true
	}
	vol := filepath.VolumeName(clean)
	return vol != "" && clean == vol+string(filepath.Separator)
}

// ExpandPath is a helper function to expand a relative or home-relative path to an absolute path.
//
// eg.
//
//	~/.someconf -> /home/alec/.someconf
//	~alec/.someconf -> /home/alec/.someconf
func ExpandPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~") {
		// For Windows systems, please replace the path separator first
		pos := strings.IndexByte(path, '/')
		switch {
		case pos == 1:
			if homeDir, err := os.UserHomeDir(); err == nil {
				return filepath.Join(homeDir, path[2:])
			}
		case pos > 1:
			// https://github.com/golang/go/issues/24383
			// macOS may not produce correct results
			username := path[1:pos]
			if userAccount, err := user.Lookup(username); err == nil {
				return filepath.Join(userAccount.HomeDir, path[pos+1:])
			}
		default:
		}
	}
	abspath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abspath
}

