package parser

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

const (
	// 100ns ticks between 1601-01-01 and 1970-01-01.
	FILETIME_EPOCH_DELTA uint64 = 116444736000000000

	TimestampFormat = "2006-01-02 15:04:05"
)

var maxFileTime = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// Convert a Windows FILETIME into a UTC time. Times before the Unix
// epoch or beyond year 9999 are not plausible for file metadata and
// are rejected with InvalidTimestampError.
func DecodeFileTime(filetime uint64) (time.Time, error) {
	if filetime < FILETIME_EPOCH_DELTA {
		return time.Time{}, errors.Wrapf(InvalidTimestampError,
			"FILETIME %#x is before 1970", filetime)
	}

	us := (filetime - FILETIME_EPOCH_DELTA) / 10
	result := time.Unix(int64(us/1000000), int64(us%1000000)*1000).UTC()
	if result.After(maxFileTime) {
		return time.Time{}, errors.Wrapf(InvalidTimestampError,
			"FILETIME %#x is after 9999", filetime)
	}
	return result, nil
}

// A decoded timestamp which remembers the raw value so the report can
// still show something useful for invalid ones.
type WinFileTime struct {
	Raw  uint64
	Time time.Time
	Err  error
}

func NewWinFileTime(filetime uint64) WinFileTime {
	t, err := DecodeFileTime(filetime)
	return WinFileTime{Raw: filetime, Time: t, Err: err}
}

func (self WinFileTime) IsValid() bool {
	return self.Err == nil
}

func (self WinFileTime) String() string {
	if self.Err != nil {
		return fmt.Sprintf("INVALID (%#x)", self.Raw)
	}
	return self.Time.Format(TimestampFormat)
}
