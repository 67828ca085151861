package uploadid

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidID matches every error returned by Parse.
var ErrInvalidID = errors.New("invalid upload id")

// Kind tells apart the ways a string can fail to be an ID.
type Kind int

const (
	// KindEncoding means the text is not lowercase hexadecimal.
	KindEncoding Kind = iota + 1
	// KindLayout means the text decodes to the wrong shape: wrong length, or
	// not a version 4 RFC 4122 UUID.
	KindLayout
)

func (k Kind) String() string {
	switch k {
	case KindEncoding:
		return "encoding"
	case KindLayout:
		return "layout"
	default:
		return "unknown"
	}
}

var (
	errLength  = fmt.Errorf("expected %d characters", EncodedLen)
	errUpper   = errors.New("uppercase hex digit")
	errVersion = errors.New("not a version 4 uuid")
	errVariant = errors.New("not an RFC 4122 uuid")
)

// InvalidIDError is returned by Parse.
type InvalidIDError struct {
	Kind  Kind
	Input string
	Err   error
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("invalid upload id %q (%s): %v", e.Input, e.Kind, e.Err)
}

func (e *InvalidIDError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrInvalidID) hold for every InvalidIDError.
func (e *InvalidIDError) Is(target error) bool { return target == ErrInvalidID }

// Parse decodes the text form produced by ID.String.
func Parse(s string) (ID, error) {
	var id ID
	if len(s) != EncodedLen {
		return id, &InvalidIDError{Kind: KindLayout, Input: s, Err: errLength}
	}
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 'A' && c <= 'F' {
			return id, &InvalidIDError{Kind: KindEncoding, Input: s, Err: errUpper}
		}
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return ID{}, &InvalidIDError{Kind: KindEncoding, Input: s, Err: err}
	}
	u := uuid.UUID(id)
	if u.Version() != 4 {
		return ID{}, &InvalidIDError{Kind: KindLayout, Input: s, Err: errVersion}
	}
	if u.Variant() != uuid.RFC4122 {
		return ID{}, &InvalidIDError{Kind: KindLayout, Input: s, Err: errVariant}
	}
	return id, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}
