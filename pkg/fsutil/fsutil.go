package fsutil

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	// DirPerm is the permission used for created directories.
	DirPerm os.FileMode = 0o755

	// FilePerm is the permission used for created objects.
	FilePerm os.FileMode = 0o644
)

// Owner holds the UID/GID applied to created files and directories.
type Owner struct {
	UID int
	GID int
}

// ParseOwner parses a "UID:GID" string. Returns nil if empty.
func ParseOwner(owner string) (*Owner, error) {
	if owner == "" {
		return nil, nil
	}

	uidStr, gidStr, ok := strings.Cut(owner, ":")
	if !ok || strings.Contains(gidStr, ":") {
		return nil, fmt.Errorf("invalid format %q, expected UID:GID", owner)
	}

	uid, err := strconv.Atoi(uidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid UID %q: %w", uidStr, err)
	}

	gid, err := strconv.Atoi(gidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid GID %q: %w", gidStr, err)
	}

	return &Owner{UID: uid, GID: gid}, nil
}

// Chown sets ownership if owner is not nil. Best-effort, ignores errors.
func Chown(path string, owner *Owner) {
	if owner == nil {
		return
	}

	_ = os.Chown(path, owner.UID, owner.GID)
}

// MkdirAll creates a directory with all missing parents and sets ownership.
// It succeeds without change when the directory already exists.
func MkdirAll(path string, owner *Owner) error {
	if err := os.MkdirAll(path, DirPerm); err != nil {
		return err
	}

	Chown(path, owner)

	return nil
}

// CreateFile creates or truncates a file for writing. Unlike os.Create it
// is used where the parent directory must already exist: a missing parent
// surfaces as an fs.ErrNotExist error and is never created implicitly.
func CreateFile(path string, owner *Owner) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, FilePerm) //nolint:gosec // paths built from config
	if err != nil {
		return nil, err
	}

	Chown(path, owner)

	return f, nil
}
