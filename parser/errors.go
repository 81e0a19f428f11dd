package parser

import (
	"errors"
)

// Error classes raised while decoding. Callers should compare with
// errors.Is() because most of these are wrapped with context about
// the record or attribute that produced them.
var (
	// Fatal: the boot sector does not describe a usable volume.
	MalformedVolumeHeaderError = errors.New("MalformedVolumeHeader")

	// Recoverable: the current attribute is abandoned.
	OutOfBoundsReadError  = errors.New("OutOfBoundsRead")
	MalformedRunlistError = errors.New("MalformedRunlist")

	UnknownAttributeTypeError = errors.New("UnknownAttributeType")

	// A sentinel value is reported instead of the field.
	InvalidFileNameError  = errors.New("InvalidFileName")
	InvalidTimestampError = errors.New("InvalidTimestamp")

	// The attribute chain of a record can not be followed any
	// further.
	MalformedRecordError = errors.New("MalformedRecord")
	FixupError           = errors.New("FixupError")
)
