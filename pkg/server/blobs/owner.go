package blobs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type owner struct {
	uid int
	gid int
}

// parseOwner parses a "UID:GID" string. Returns nil if empty.
func parseOwner(value string) (*owner, error) {
	if value == "" {
		return nil, nil
	}

	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid format %q, expected UID:GID", value)
	}

	uid, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid UID %q: %w", parts[0], err)
	}

	gid, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid GID %q: %w", parts[1], err)
	}

	return &owner{uid: uid, gid: gid}, nil
}

// chown is best-effort; errors are ignored.
func chown(p string, o *owner) {
	if o == nil {
		return
	}

	_ = os.Chown(p, o.uid, o.gid)
}

func mkdirAll(p string, o *owner) error {
	if err := os.MkdirAll(p, 0o755); err != nil {
		return err
	}

	chown(p, o)

	return nil
}
