package btree

import (
	"encoding/binary"
	"errors"

	"btidx/internal/block"
)

// Magic identifies a valid index file. It occupies the first 8 bytes of
// block 0.
var Magic = [8]byte{'4', '3', '4', '8', 'P', 'R', 'J', '3'}

// ErrBadMagic is returned when a header's magic tag does not match Magic.
var ErrBadMagic = errors.New("btree: bad magic")

const (
	offMagic      = 0
	offRootID     = 8
	offNextFreeID = 16
)

// header is the decoded form of block 0.
type header struct {
	rootID     uint64
	nextFreeID uint64
}

// encodeHeader produces block 0's exact on-disk image.
func encodeHeader(h *header) [block.Size]byte {
	var buf [block.Size]byte
	copy(buf[offMagic:], Magic[:])
	binary.BigEndian.PutUint64(buf[offRootID:], h.rootID)
	binary.BigEndian.PutUint64(buf[offNextFreeID:], h.nextFreeID)
	// bytes [24,512) are reserved and left zero.
	return buf
}

// decodeHeader is the inverse of encodeHeader. It fails with ErrBadMagic if
// the magic tag does not match; no other validation is performed.
func decodeHeader(buf [block.Size]byte) (*header, error) {
	var magic [8]byte
	copy(magic[:], buf[offMagic:offMagic+8])
	if magic != Magic {
		return nil, ErrBadMagic
	}
	return &header{
		rootID:     binary.BigEndian.Uint64(buf[offRootID:]),
		nextFreeID: binary.BigEndian.Uint64(buf[offNextFreeID:]),
	}, nil
}
