package parser

import (
	"context"
	"errors"
	"sync"

	pkg_errors "github.com/pkg/errors"
)

const (
	// MFT record header.
	recordFixupOffsetOffset    = 0x04
	recordFixupCountOffset     = 0x06
	recordAttributeOffsetField = 0x14
	recordFlagsOffset          = 0x16

	// Fixups protect the last two bytes of every 512 byte stride.
	fixupStride = 512

	// Records decoded per batch when running with several workers.
	batchPerWorker = 16
)

var recordSignature = []byte("FILE")

// Apply the update sequence array in place. The first entry in the
// array is the magic which must be found at the end of each stride,
// the rest are the original values to put back.
func FixUpRecord(buffer []byte) error {
	fixup_offset, err := getUint16(buffer, recordFixupOffsetOffset)
	if err != nil {
		return err
	}
	fixup_count, err := getUint16(buffer, recordFixupCountOffset)
	if err != nil {
		return err
	}
	if fixup_count == 0 {
		return nil
	}

	fixup_table_len := int(fixup_count) * 2
	start := int(fixup_offset)
	if start+fixup_table_len > len(buffer) {
		return pkg_errors.Wrapf(FixupError,
			"Fixup table %d entries at %#x outside record",
			fixup_count, fixup_offset)
	}
	fixup_table := buffer[start : start+fixup_table_len]

	fixup_magic := []byte{fixup_table[0], fixup_table[1]}

	// Check every stride before touching the buffer so a bad record
	// is left as it was.
	for idx := 2; idx < len(fixup_table); idx += 2 {
		sector_idx := idx/2 - 1
		fixup_offset := (sector_idx+1)*fixupStride - 2
		if fixup_offset+1 >= len(buffer) ||
			buffer[fixup_offset] != fixup_magic[0] ||
			buffer[fixup_offset+1] != fixup_magic[1] {
			return pkg_errors.Wrapf(FixupError,
				"Fixup magic mismatch in stride %d", sector_idx)
		}
	}

	replacements := make([]byte, len(fixup_table))
	copy(replacements, fixup_table)
	for idx := 2; idx < len(replacements); idx += 2 {
		fixup_offset := (idx/2)*fixupStride - 2
		buffer[fixup_offset] = replacements[idx]
		buffer[fixup_offset+1] = replacements[idx+1]
	}

	return nil
}

// Walks the $MFT stream looking for deleted records.
type MFTWalker struct {
	mft      []byte
	decoder  *AttributeDecoder
	options  Options
	clusters *ClusterReader
}

func NewMFTWalker(mft []byte, clusters *ClusterReader, options Options) *MFTWalker {
	return &MFTWalker{
		mft:      mft,
		decoder:  NewAttributeDecoder(clusters, options),
		options:  options,
		clusters: clusters,
	}
}

func (self *MFTWalker) RecordCount() int64 {
	return (int64(len(self.mft)) + RecordSize - 1) / RecordSize
}

// Slice record number id out of the stream. The final record may be
// short if the stream is not a multiple of the record size.
func (self *MFTWalker) Record(id int64) []byte {
	start := id * RecordSize
	if start >= int64(len(self.mft)) {
		return nil
	}
	end := CapInt64(start+RecordSize, int64(len(self.mft)))
	return self.mft[start:end]
}

// Decode a single record. Returns nil if the record is not a deleted
// file record. Problems are accounted for in stats.
func (self *MFTWalker) AnalyzeRecord(id int64, stats *Stats) *RecoveredFile {
	stats.RecordsScanned++

	if id < FirstUserRecord {
		stats.ReservedRecords++
		return nil
	}

	raw := self.Record(id)
	if self.options.RequireSignature &&
		(len(raw) < len(recordSignature) ||
			string(raw[:len(recordSignature)]) != string(recordSignature)) {
		stats.EmptyRecords++
		return nil
	}

	flags, err := getUint16(raw, recordFlagsOffset)
	if err != nil {
		stats.EmptyRecords++
		return nil
	}

	// Only a zero flags field marks a deleted record.
	if flags != 0 {
		stats.AllocatedRecords++
		return nil
	}
	stats.DeletedRecords++

	result := &RecoveredFile{RecordNumber: id}

	record := raw
	if self.options.ApplyFixups {
		fixed := make([]byte, len(raw))
		copy(fixed, raw)
		err := FixUpRecord(fixed)
		if err != nil {
			// Carry on with the raw bytes - most of the record is
			// still usable.
			stats.FixupErrors++
			result.addProblem(err)
		} else {
			record = fixed
		}
	}

	self.walkAttributes(record, result, stats)

	if len(result.Warnings) > 0 {
		stats.RecordsWithWarnings++
	}
	for _, w := range result.problems {
		warnRecord(id, w)
	}

	return result
}

// A single attribute sliced out of a record.
type RawAttribute struct {
	Offset int
	Type   uint32
	Raw    []byte
}

// Split the attribute chain of a record. Each attribute's declared
// length is checked against the record so a corrupt chain yields the
// attributes before the corruption together with a
// MalformedRecordError.
func EnumerateAttributes(record []byte) ([]*RawAttribute, error) {
	result := []*RawAttribute{}

	attr_offset, err := getUint16(record, recordAttributeOffsetField)
	if err != nil {
		return result, pkg_errors.Wrap(MalformedRecordError, err.Error())
	}

	// Every iteration consumes at least MinAttributeLength bytes.
	offset := int(attr_offset)
	for {
		attr_type, err := getUint32(record, offset)
		if err != nil {
			return result, pkg_errors.Wrapf(MalformedRecordError,
				"No end of attributes marker before %#x", offset)
		}

		// Reached the end of the MFT entry.
		if attr_type == ATTR_TYPE_END {
			return result, nil
		}

		attr_length, err := getUint32(record, offset+attrLengthOffset)
		if err != nil ||
			attr_length < MinAttributeLength ||
			int64(offset)+int64(attr_length) > int64(len(record)) {
			return result, pkg_errors.Wrapf(MalformedRecordError,
				"Attribute %#x at %#x declares length %d with %d bytes left in record",
				attr_type, offset, attr_length, len(record)-offset)
		}

		result = append(result, &RawAttribute{
			Offset: offset,
			Type:   attr_type,
			Raw:    record[offset : offset+int(attr_length)],
		})

		// Go to the next attribute.
		offset += int(attr_length)
	}
}

type DataAttribute struct {
	Header *AttributeHeader
	Raw    []byte
}

// Headers of all the $DATA attributes in a record (allocated or
// not). Used to inspect runlists.
func DataAttributeHeaders(record []byte) ([]*DataAttribute, error) {
	fixed := make([]byte, len(record))
	copy(fixed, record)
	if FixUpRecord(fixed) != nil {
		fixed = record
	}

	result := []*DataAttribute{}
	raw_attributes, err := EnumerateAttributes(fixed)
	for _, attr := range raw_attributes {
		if attr.Type != ATTR_TYPE_DATA {
			continue
		}
		header, err := ParseAttributeHeader(attr.Raw)
		if err != nil {
			return result, err
		}
		result = append(result, &DataAttribute{Header: header, Raw: attr.Raw})
	}
	return result, err
}

func (self *MFTWalker) walkAttributes(
	record []byte, result *RecoveredFile, stats *Stats) {
	raw_attributes, err := EnumerateAttributes(record)
	for _, raw := range raw_attributes {
		attribute, problems := self.decoder.Decode(raw.Raw)
		for _, p := range problems {
			countProblem(stats, p)
			result.addProblem(p)
		}

		if attribute == nil {
			stats.AttributesSkipped++
			continue
		}

		stats.AttributesDecoded++
		result.Attributes = append(result.Attributes, attribute)

		data, ok := attribute.(*Data)
		if ok {
			stats.RecoveredContentLen += int64(len(data.Content))
			if data.Truncated {
				stats.TruncatedContent++
			}
		}
	}

	// The rest of the chain can not be followed.
	if err != nil {
		stats.MalformedRecords++
		stats.AttributesSkipped++
		result.addProblem(err)
	}
}

func countProblem(stats *Stats, err error) {
	switch {
	case errors.Is(err, UnknownAttributeTypeError):
		stats.UnknownAttributes++
	case errors.Is(err, InvalidFileNameError):
		stats.InvalidFileNames++
	case errors.Is(err, InvalidTimestampError):
		stats.InvalidTimestamps++
	case errors.Is(err, MalformedRunlistError):
		stats.MalformedRunlists++
	case errors.Is(err, OutOfBoundsReadError):
		stats.OutOfBoundsReads++
	}
}

// Emit a RecoveredFile for each deleted record in record order.
func (self *MFTWalker) Walk(ctx context.Context, stats *Stats) chan *RecoveredFile {
	output := make(chan *RecoveredFile)

	workers := self.options.Workers
	if workers < 1 {
		workers = 1
	}

	go func() {
		defer close(output)

		// Sequential count of deleted files found so far.
		deleted_idx := 0

		emit := func(item *RecoveredFile) bool {
			item.Index = deleted_idx
			deleted_idx++

			select {
			case <-ctx.Done():
				return false
			case output <- item:
				return true
			}
		}

		total := self.RecordCount()
		batch_size := int64(workers * batchPerWorker)
		if workers == 1 {
			batch_size = 1
		}

		for start := int64(0); start < total; start += batch_size {
			end := CapInt64(start+batch_size, total)
			results := self.analyzeBatch(start, end, workers, stats)

			for _, item := range results {
				if item == nil {
					continue
				}
				if !emit(item) {
					return
				}
			}
		}
	}()

	return output
}

// Analyze records [start, end). Records are independent so they are
// spread over the workers; the result slice keeps record order.
func (self *MFTWalker) analyzeBatch(
	start, end int64, workers int, stats *Stats) []*RecoveredFile {
	results := make([]*RecoveredFile, end-start)

	if workers == 1 || end-start == 1 {
		for id := start; id < end; id++ {
			local := &Stats{}
			results[id-start] = self.AnalyzeRecord(id, local)
			stats.Merge(local)
		}
		return results
	}

	ids := make(chan int64)
	wg := &sync.WaitGroup{}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range ids {
				local := &Stats{}
				results[id-start] = self.AnalyzeRecord(id, local)
				stats.Merge(local)
			}
		}()
	}

	for id := start; id < end; id++ {
		ids <- id
	}
	close(ids)
	wg.Wait()

	return results
}

// Convenience wrapper which collects all the deleted records.
func RecoverDeletedFiles(ctx context.Context,
	mft []byte, clusters *ClusterReader, options Options) (
	[]*RecoveredFile, *Stats) {
	stats := &Stats{}
	result := []*RecoveredFile{}

	walker := NewMFTWalker(mft, clusters, options)
	for item := range walker.Walk(ctx, stats) {
		result = append(result, item)
	}

	return result, stats
}
