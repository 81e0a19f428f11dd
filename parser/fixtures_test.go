package parser

import (
	"bytes"
	"encoding/binary"
	"time"
	"unicode/utf16"

	"github.com/davecgh/go-spew/spew"
)

// Builders for synthetic MFT records and images.

const testAttributeOffset = 0x38

func init() {
	time.Local = time.UTC
	spew.Config.DisablePointerAddresses = true
	spew.Config.SortKeys = true
}

func align8(n int) int {
	return (n + 7) &^ 7
}

// A resident attribute with an unnamed 24 byte header.
func residentAttr(attr_type uint32, value []byte) []byte {
	length := align8(24 + len(value))
	buf := make([]byte, length)
	binary.LittleEndian.PutUint32(buf[0x00:], attr_type)
	binary.LittleEndian.PutUint32(buf[0x04:], uint32(length))
	buf[0x08] = 0
	binary.LittleEndian.PutUint16(buf[0x0A:], 0x18)
	binary.LittleEndian.PutUint32(buf[0x10:], uint32(len(value)))
	binary.LittleEndian.PutUint16(buf[0x14:], 24)
	copy(buf[24:], value)
	return buf
}

// A non-resident $DATA attribute with the runlist at 0x40.
func nonResidentAttr(runlist []byte, actual_size uint64) []byte {
	length := align8(0x40 + len(runlist))
	buf := make([]byte, length)
	binary.LittleEndian.PutUint32(buf[0x00:], ATTR_TYPE_DATA)
	binary.LittleEndian.PutUint32(buf[0x04:], uint32(length))
	buf[0x08] = 1
	binary.LittleEndian.PutUint16(buf[0x20:], 0x40)
	binary.LittleEndian.PutUint64(buf[0x28:], actual_size)
	binary.LittleEndian.PutUint64(buf[0x30:], actual_size)
	binary.LittleEndian.PutUint64(buf[0x38:], actual_size)
	copy(buf[0x40:], runlist)
	return buf
}

func siValue(creation, modification, mft_modified, access uint64) []byte {
	buf := make([]byte, 48)
	binary.LittleEndian.PutUint64(buf[0:], creation)
	binary.LittleEndian.PutUint64(buf[8:], modification)
	binary.LittleEndian.PutUint64(buf[16:], mft_modified)
	binary.LittleEndian.PutUint64(buf[24:], access)
	return buf
}

func utf16le(name string) []byte {
	encoded := utf16.Encode([]rune(name))
	buf := make([]byte, 2*len(encoded))
	for i, c := range encoded {
		binary.LittleEndian.PutUint16(buf[2*i:], c)
	}
	return buf
}

func fnValue(parent uint64, name string) []byte {
	encoded := utf16le(name)
	buf := make([]byte, FileNamePrefixLength+len(encoded))
	binary.LittleEndian.PutUint64(buf[0:], parent|(1<<48))
	buf[0x40] = byte(len(encoded) / 2)
	buf[0x41] = 1
	copy(buf[FileNamePrefixLength:], encoded)
	return buf
}

// A 1kb FILE record holding attrs followed by the end marker.
func buildRecord(flags uint16, attrs ...[]byte) []byte {
	buf := make([]byte, RecordSize)
	copy(buf, "FILE")
	binary.LittleEndian.PutUint16(buf[0x04:], 0x30)
	binary.LittleEndian.PutUint16(buf[0x14:], testAttributeOffset)
	binary.LittleEndian.PutUint16(buf[0x16:], flags)

	offset := testAttributeOffset
	for _, attr := range attrs {
		copy(buf[offset:], attr)
		offset += len(attr)
	}
	binary.LittleEndian.PutUint32(buf[offset:], ATTR_TYPE_END)
	binary.LittleEndian.PutUint32(buf[0x18:], uint32(offset+8))
	binary.LittleEndian.PutUint32(buf[0x1C:], RecordSize)
	return buf
}

// Add an update sequence array to a record built by buildRecord.
func protectRecord(record []byte, magic uint16) {
	binary.LittleEndian.PutUint16(record[0x06:], 3)
	binary.LittleEndian.PutUint16(record[0x30:], magic)
	for i := 1; i <= 2; i++ {
		end := i*512 - 2
		copy(record[0x30+2*i:0x30+2*i+2], record[end:end+2])
		binary.LittleEndian.PutUint16(record[end:], magic)
	}
}

func buildMFT(records ...[]byte) []byte {
	return bytes.Join(records, nil)
}

// Cluster i of the image is filled with the letter 'A' + i % 26.
func buildImage(cluster_size, clusters int) *bytes.Reader {
	buf := make([]byte, cluster_size*clusters)
	for i := 0; i < clusters; i++ {
		for j := 0; j < cluster_size; j++ {
			buf[i*cluster_size+j] = byte('A' + i%26)
		}
	}
	return bytes.NewReader(buf)
}

// Pack runs with the minimum number of bytes per field.
func encodeRunList(runs []ClusterRun) []byte {
	result := []byte{}
	previous := int64(0)

	for _, r := range runs {
		length := encodeUnsigned(r.Length())
		delta := encodeSigned(int64(r.Start) - previous)
		previous = int64(r.Start)

		result = append(result, byte(len(delta)<<4|len(length)))
		result = append(result, length...)
		result = append(result, delta...)
	}

	return append(result, 0)
}

func encodeUnsigned(v uint64) []byte {
	result := []byte{byte(v)}
	for v >>= 8; v != 0; v >>= 8 {
		result = append(result, byte(v))
	}
	return result
}

func encodeSigned(v int64) []byte {
	result := []byte{}
	for {
		b := byte(v)
		result = append(result, b)
		v >>= 8

		// Stop once the remaining bits are just sign extension of
		// the byte we wrote.
		if (v == 0 && b&0x80 == 0) || (v == -1 && b&0x80 != 0) {
			return result
		}
	}
}
