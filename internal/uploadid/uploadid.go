// Package uploadid implements upload identifiers that carry their own
// expiration time. An ID is a random (version 4) UUID whose trailing seven
// bytes hold the expiration instant masked with the leading entropy bytes, so
// the value looks like any other random UUID while the download path can
// still tell whether it has expired without looking anything up.
package uploadid

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/google/uuid"
)

// Size is the length of an ID in bytes; EncodedLen is the length of its text
// form.
const (
	Size       = 16
	EncodedLen = 2 * Size
)

// MaxExpiry is the largest expiration instant (Unix seconds) an ID can carry.
// Larger values lose their high-order bits.
const MaxExpiry = 1<<56 - 1

// Byte ranges inside an ID. The mask covers bytes 0..7, which include the
// version nibble in byte 6; byte 8 holds the variant bits and is not touched
// by encoding.
const (
	maskStart    = 0
	maskEnd      = 8
	payloadStart = 9
	payloadEnd   = Size
	payloadLen   = payloadEnd - payloadStart
)

// ID is an upload identifier. The zero value is not a valid ID.
type ID [Size]byte

// New returns a fresh ID that expires at the given Unix second. It is safe for
// concurrent use.
func New(expires uint64) ID {
	return encode(ID(uuid.New()), expires)
}

// NewFromReader is like New but draws entropy from r.
func NewFromReader(r io.Reader, expires uint64) (ID, error) {
	u, err := uuid.NewRandomFromReader(r)
	if err != nil {
		return ID{}, fmt.Errorf("read entropy: %w", err)
	}
	return encode(ID(u), expires), nil
}

func encode(id ID, expires uint64) ID {
	masked := expires ^ binary.LittleEndian.Uint64(id[maskStart:maskEnd])
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], masked)
	copy(id[payloadStart:payloadEnd], b[:payloadLen])
	return id
}

// Expires returns the Unix second at which the ID expires.
func (id ID) Expires() uint64 {
	var mask [8]byte
	copy(mask[:], id[maskStart:maskEnd])
	// the eighth mask byte never made it into the payload
	mask[7] = 0

	var stored [8]byte
	copy(stored[:], id[payloadStart:payloadEnd])

	return binary.LittleEndian.Uint64(stored[:]) ^ binary.LittleEndian.Uint64(mask[:])
}

// ExpiresAt returns the expiration as a time.Time in UTC.
func (id ID) ExpiresAt() time.Time {
	exp := id.Expires()
	if exp > math.MaxInt64 {
		exp = math.MaxInt64
	}
	return time.Unix(int64(exp), 0).UTC()
}

// Expired reports whether the ID has expired at now (Unix seconds). An ID is
// already expired at its exact expiration second.
func (id ID) Expired(now uint64) bool {
	return now >= id.Expires()
}

// String returns the lowercase hexadecimal form of the ID.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// UUID returns the ID as a uuid.UUID.
func (id ID) UUID() uuid.UUID {
	return uuid.UUID(id)
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	b := make([]byte, EncodedLen)
	hex.Encode(b, id[:])
	return b, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Unix converts t to the Unix second representation used by IDs. Instants
// before the epoch become 0.
func Unix(t time.Time) uint64 {
	s := t.Unix()
	if s < 0 {
		return 0
	}
	return uint64(s)
}
