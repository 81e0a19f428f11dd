package parser

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	ntfs "www.velocidex.com/golang/go-ntfs/parser"
)

// Sanity limit on the size of the $MFT we will load into memory.
const MaxMFTSize = 16 * 1024 * 1024 * 1024

// Locate and read the $MFT of the NTFS volume in image. Callers wrap
// image in an OffsetReader if the volume does not start at 0. The
// filesystem is bootstrapped with go-ntfs which follows the $MFT's own
// runlist (including attribute lists); only the raw bytes are taken
// from it.
func ReadMFTFromImage(image io.ReaderAt) ([]byte, error) {
	paged_reader, err := ntfs.NewPagedReader(image, 1024, 10000)
	if err != nil {
		return nil, err
	}

	ntfs_ctx, err := ntfs.GetNTFSContext(paged_reader, 0)
	if err != nil {
		return nil, errors.Wrap(err, "Can not open filesystem")
	}
	defer ntfs_ctx.Close()

	root_mft, err := ntfs_ctx.GetMFT(0)
	if err != nil {
		return nil, errors.Wrap(err, "Can not open MFT entry 0")
	}

	// The first unnamed $DATA attribute is VCN 0 of the $MFT stream
	// and carries the size of the whole stream.
	size := int64(-1)
	for _, attr := range root_mft.EnumerateAttributes(ntfs_ctx) {
		if attr.Type().Value == ATTR_TYPE_DATA && attr.Name() == "" {
			size = attr.DataSize()
			break
		}
	}
	if size < 0 {
		return nil, errors.New("$DATA attribute not found for $MFT")
	}

	return ReadMFTFile(ntfs_ctx.MFTReader, size)
}

// Read an already extracted $MFT of the given size.
func ReadMFTFile(reader io.ReaderAt, size int64) ([]byte, error) {
	if size < 0 || size > MaxMFTSize {
		return nil, errors.Errorf("Invalid $MFT size %d", size)
	}

	buffer := make([]byte, size)
	n, err := reader.ReadAt(buffer, 0)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "Reading $MFT")
	}
	DebugPrint("Read %d bytes of $MFT (expected %d)\n", n, size)
	if int64(n) < size {
		Logger.WithFields(logrus.Fields{
			"Read":     n,
			"Expected": size,
		}).Warn("$MFT is truncated, records past the end are lost")
	}

	return buffer[:n], nil
}
