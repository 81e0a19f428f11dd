package parser

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Fixed width little endian readers over an in-memory record. All of
// them fail with OutOfBoundsReadError rather than panic when the
// field does not fit in the buffer.

func getUint8(buf []byte, offset int) (uint8, error) {
	if offset < 0 || offset+1 > len(buf) {
		return 0, errors.Wrapf(OutOfBoundsReadError,
			"uint8 at %#x (buffer %d bytes)", offset, len(buf))
	}
	return buf[offset], nil
}

func getUint16(buf []byte, offset int) (uint16, error) {
	if offset < 0 || offset+2 > len(buf) {
		return 0, errors.Wrapf(OutOfBoundsReadError,
			"uint16 at %#x (buffer %d bytes)", offset, len(buf))
	}
	return binary.LittleEndian.Uint16(buf[offset:]), nil
}

func getUint32(buf []byte, offset int) (uint32, error) {
	if offset < 0 || offset+4 > len(buf) {
		return 0, errors.Wrapf(OutOfBoundsReadError,
			"uint32 at %#x (buffer %d bytes)", offset, len(buf))
	}
	return binary.LittleEndian.Uint32(buf[offset:]), nil
}

func getUint64(buf []byte, offset int) (uint64, error) {
	if offset < 0 || offset+8 > len(buf) {
		return 0, errors.Wrapf(OutOfBoundsReadError,
			"uint64 at %#x (buffer %d bytes)", offset, len(buf))
	}
	return binary.LittleEndian.Uint64(buf[offset:]), nil
}

func CapInt64(v int64, max int64) int64 {
	if v > max {
		return max
	}
	return v
}
