package parser

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

type OffsetReader struct {
	Offset int64
	Reader io.ReaderAt
}

func (self *OffsetReader) ReadAt(buf []byte, offset int64) (int, error) {
	return self.Reader.ReadAt(buf, offset+self.Offset)
}

// Reads whole clusters from the image. The image is never written so
// a single ClusterReader may be shared between goroutines.
type ClusterReader struct {
	reader       io.ReaderAt
	image_size   int64
	cluster_size int64
}

func NewClusterReader(reader io.ReaderAt,
	image_size int64, cluster_size int64) (*ClusterReader, error) {
	if cluster_size <= 0 || cluster_size > MaxClusterSize {
		return nil, errors.Wrapf(MalformedVolumeHeaderError,
			"Invalid cluster size %d", cluster_size)
	}

	return &ClusterReader{
		reader:       reader,
		image_size:   image_size,
		cluster_size: cluster_size,
	}, nil
}

func (self *ClusterReader) ClusterSize() int64 {
	return self.cluster_size
}

func (self *ClusterReader) ImageSize() int64 {
	return self.image_size
}

// Returns exactly ClusterSize() bytes of cluster idx.
func (self *ClusterReader) ReadCluster(idx uint64) ([]byte, error) {
	if idx > uint64(math.MaxInt64/self.cluster_size) {
		return nil, errors.Wrapf(OutOfBoundsReadError,
			"Cluster %d offset overflows", idx)
	}

	offset := int64(idx) * self.cluster_size
	if offset > self.image_size-self.cluster_size {
		return nil, errors.Wrapf(OutOfBoundsReadError,
			"Cluster %d at %#x is past the end of the image (%d bytes)",
			idx, offset, self.image_size)
	}

	buf := make([]byte, self.cluster_size)
	n, err := self.reader.ReadAt(buf, offset)
	if n < len(buf) {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Wrapf(OutOfBoundsReadError,
			"Short read of cluster %d: %v", idx, err)
	}

	return buf, nil
}
