package parser

import (
	"encoding/json"
	"sync"

	"github.com/Velocidex/ordereddict"
)

// Counters for a single walk over the MFT. Every walk gets its own
// Stats object.
type Stats struct {
	mu sync.Mutex

	RecordsScanned      int
	ReservedRecords     int
	EmptyRecords        int
	AllocatedRecords    int
	DeletedRecords      int
	RecordsWithWarnings int
	FixupErrors         int
	MalformedRecords    int

	AttributesDecoded   int
	AttributesSkipped   int
	UnknownAttributes   int
	InvalidFileNames    int
	InvalidTimestamps   int
	MalformedRunlists   int
	OutOfBoundsReads    int
	TruncatedContent    int
	RecoveredContentLen int64
}

func (self *Stats) DebugString() string {
	self.mu.Lock()
	defer self.mu.Unlock()

	serialized, _ := json.MarshalIndent(self, " ", " ")
	return string(serialized)
}

// Fold the counters of a single record into the walk totals.
func (self *Stats) Merge(other *Stats) {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.RecordsScanned += other.RecordsScanned
	self.ReservedRecords += other.ReservedRecords
	self.EmptyRecords += other.EmptyRecords
	self.AllocatedRecords += other.AllocatedRecords
	self.DeletedRecords += other.DeletedRecords
	self.RecordsWithWarnings += other.RecordsWithWarnings
	self.FixupErrors += other.FixupErrors
	self.MalformedRecords += other.MalformedRecords
	self.AttributesDecoded += other.AttributesDecoded
	self.AttributesSkipped += other.AttributesSkipped
	self.UnknownAttributes += other.UnknownAttributes
	self.InvalidFileNames += other.InvalidFileNames
	self.InvalidTimestamps += other.InvalidTimestamps
	self.MalformedRunlists += other.MalformedRunlists
	self.OutOfBoundsReads += other.OutOfBoundsReads
	self.TruncatedContent += other.TruncatedContent
	self.RecoveredContentLen += other.RecoveredContentLen
}

func (self *Stats) ToDict() *ordereddict.Dict {
	self.mu.Lock()
	defer self.mu.Unlock()

	return ordereddict.NewDict().
		Set("RecordsScanned", self.RecordsScanned).
		Set("ReservedRecords", self.ReservedRecords).
		Set("EmptyRecords", self.EmptyRecords).
		Set("AllocatedRecords", self.AllocatedRecords).
		Set("DeletedRecords", self.DeletedRecords).
		Set("RecordsWithWarnings", self.RecordsWithWarnings).
		Set("FixupErrors", self.FixupErrors).
		Set("MalformedRecords", self.MalformedRecords).
		Set("AttributesDecoded", self.AttributesDecoded).
		Set("AttributesSkipped", self.AttributesSkipped).
		Set("UnknownAttributes", self.UnknownAttributes).
		Set("InvalidFileNames", self.InvalidFileNames).
		Set("InvalidTimestamps", self.InvalidTimestamps).
		Set("MalformedRunlists", self.MalformedRunlists).
		Set("OutOfBoundsReads", self.OutOfBoundsReads).
		Set("TruncatedContent", self.TruncatedContent).
		Set("RecoveredContentLen", self.RecoveredContentLen)
}
