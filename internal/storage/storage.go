// Package storage keeps uploaded content, one directory (or key prefix) per
// upload ID. The directory name is the ID's text form, which is what lets the
// expiry queue be rebuilt from a plain listing after a restart.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/dharsanguruparan/expiredrop/internal/uploadid"
)

var (
	// ErrNotFound is returned when an upload or file does not exist.
	ErrNotFound = errors.New("upload not found")
	// ErrExists is returned by Create when the ID is already in use.
	ErrExists = errors.New("upload already exists")
	// ErrInvalidName is returned for file names that could escape the upload
	// directory or are otherwise unusable.
	ErrInvalidName = errors.New("invalid file name")
)

// MaxNameLen is the longest file name accepted.
const MaxNameLen = 255

// Store is implemented by every storage backend.
type Store interface {
	// Create writes r as name under id and returns the number of bytes
	// written. On failure nothing is left behind under id.
	Create(ctx context.Context, id uploadid.ID, name string, r io.Reader) (int64, error)
	// Open returns the named file of an upload.
	Open(ctx context.Context, id uploadid.ID, name string) (*Object, error)
	// Remove deletes everything stored under id. Removing a missing upload is
	// not an error.
	Remove(ctx context.Context, id uploadid.ID) error
	// List returns the top-level keys, normally upload ID strings. Callers
	// must expect unrelated entries.
	List(ctx context.Context) ([]string, error)
}

// Object is an open stored file.
type Object struct {
	io.ReadSeekCloser
	Name    string
	Size    int64
	ModTime time.Time
}

// ValidName reports whether name can be used as a stored file name.
func ValidName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return ErrInvalidName
	case len(name) > MaxNameLen:
		return ErrInvalidName
	case strings.ContainsAny(name, "/\\\x00"):
		return ErrInvalidName
	}
	return nil
}
