package strengthen

import (
	"os"
	"testing"
)

func TestIsDangerousRootRejectsFilesystemRoot(t *testing.T) {
	if !IsDangerousRoot("/") {
		t.Fatalf("expected / to be flagged dangerous")
	}
}

func TestIsDangerousRootAcceptsOrdinarySubdirectory(t *testing.T) {
	if IsDangerousRoot("/tmp/some-container-root") {
		t.Fatalf("expected an ordinary subdirectory not to be flagged dangerous")
	}
}

func TestIsDangerousRootRejectsHomeDirectory(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory available: %v", err)
	}
	if !IsDangerousRoot(home) {
		t.Fatalf("expected the home directory to be flagged dangerous")
	}
}
