package parser

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// A contiguous range of clusters [Start, End).
type ClusterRun struct {
	Start uint64
	End   uint64
}

func (self ClusterRun) Length() uint64 {
	return self.End - self.Start
}

func (self ClusterRun) String() string {
	return fmt.Sprintf("Clusters %d-%d (Length %d)",
		self.Start, self.End, self.Length())
}

// Decode a packed NTFS runlist into absolute cluster runs.
//
// Each run starts with a header byte: the low nibble is the number of
// bytes holding the run length, the high nibble the number of bytes
// holding the signed offset of this run relative to the previous
// one. A zero header terminates the list.
//
// Sparse runs (offset size of 0) are not supported and are reported
// as MalformedRunlistError.
func DecodeRunList(buffer []byte, max_runs int) ([]ClusterRun, error) {
	result := []ClusterRun{}
	current_cluster := int64(0)

	for offset := 0; ; {
		if offset >= len(buffer) {
			return result, errors.Wrapf(MalformedRunlistError,
				"Runlist not terminated after %d bytes", len(buffer))
		}

		// Consume the first byte off the stream.
		idx := buffer[offset]
		if idx == 0 {
			break
		}

		if max_runs > 0 && len(result) >= max_runs {
			return result, errors.Wrapf(MalformedRunlistError,
				"Runlist exceeds %d runs", max_runs)
		}

		length_size := int(idx & 0xF)
		run_offset_size := int(idx >> 4)

		if length_size == 0 || run_offset_size == 0 ||
			length_size > 8 || run_offset_size > 8 {
			return result, errors.Wrapf(MalformedRunlistError,
				"Invalid run header %#x at %d", idx, offset)
		}

		end := offset + 1 + length_size + run_offset_size
		if end > len(buffer) {
			return result, errors.Wrapf(MalformedRunlistError,
				"Run at %d needs %d bytes but only %d remain",
				offset, end-offset, len(buffer)-offset)
		}
		offset += 1

		// Unsigned length, zero extended.
		run_length := uint64(0)
		for i := 0; i < length_size; i++ {
			run_length |= uint64(buffer[offset+i]) << (8 * uint(i))
		}
		offset += length_size

		// Sign extend from the top bit of the last byte.
		relative_run_offset := uint64(0)
		for i := 0; i < run_offset_size; i++ {
			relative_run_offset |= uint64(buffer[offset+i]) << (8 * uint(i))
		}
		if run_offset_size < 8 &&
			buffer[offset+run_offset_size-1]&0x80 != 0 {
			relative_run_offset |= math.MaxUint64 << (8 * uint(run_offset_size))
		}
		offset += run_offset_size

		delta := int64(relative_run_offset)
		if (delta > 0 && current_cluster > math.MaxInt64-delta) ||
			current_cluster+delta < 0 {
			return result, errors.Wrapf(MalformedRunlistError,
				"Run offset %d from cluster %d is out of range",
				delta, current_cluster)
		}
		current_cluster += delta

		start := uint64(current_cluster)
		if run_length > math.MaxUint64-start {
			return result, errors.Wrapf(MalformedRunlistError,
				"Run length %d from cluster %d overflows",
				run_length, start)
		}

		result = append(result, ClusterRun{
			Start: start,
			End:   start + run_length,
		})
	}

	return result, nil
}

func RunListClusters(runs []ClusterRun) uint64 {
	total := uint64(0)
	for _, r := range runs {
		total += r.Length()
	}
	return total
}
